// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/and161185/analysis-keeper/internal/model"
	"github.com/gofrs/uuid/v5"
)

// UserRepository provides access to user credentials and profile data.
type UserRepository interface {
	// ExistsByEmail reports whether a user with the given email is stored.
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	// GetByEmail loads a user by email; errs.ErrNotFound when absent.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// GetByID loads a user by ID; errs.ErrNotFound when absent.
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	// Save inserts or updates the user keyed by ID, assigning an ID on first save.
	Save(ctx context.Context, u *model.User) (*model.User, error)
}
