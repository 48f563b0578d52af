// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import (
	"errors"
	"fmt"
)

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden indicates the entity exists but belongs to another user.
	ErrForbidden = errors.New("forbidden")

	// ErrValidation indicates malformed or empty caller input.
	ErrValidation = errors.New("validation")

	// ErrUnauthorized indicates failed authentication (bad credentials, bad signature, expired token).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrMalformedToken indicates a bearer token that could not be decoded at all.
	ErrMalformedToken = errors.New("malformed token")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., email taken).
	ErrAlreadyExists = errors.New("already exists")
)

// TransportError reports a failed call to the analysis engine: either the
// request never got a response (StatusCode == 0) or the engine answered non-2xx.
type TransportError struct {
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("analysis engine: status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("analysis engine: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
