// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// User represents an account stored on the server. Passwords are never stored in plaintext.
type User struct {
	ID        uuid.UUID // PK, assigned on first save
	Email     string    // unique login identifier
	Name      string
	PwdHash   string // encoded Argon2id digest, see crypto.HashPassword
	CreatedAt time.Time
}

// LoginResult is returned to the caller after a successful login.
type LoginResult struct {
	AccessToken string
	TokenType   string
	Email       string
	Name        string
	ExpiresAt   time.Time // access token expiry (for diagnostics)
}

// AnalysisRecord is a persisted, immutable outcome of one upload.
type AnalysisRecord struct {
	ID            int64     // assigned by the store
	UserID        uuid.UUID // FK -> users.id
	FileName      string
	FileID        *string // engine-assigned file id, nil if absent
	Summary       *string
	ThumbnailPath *string
	ResultData    string    // raw engine response, verbatim
	CreatedAt     time.Time // assigned by the store
}

// Normalized is the stable subset extracted from an engine response.
// Every field is independently optional.
type Normalized struct {
	FileID    *string
	Summary   *string
	Thumbnail *string
}
