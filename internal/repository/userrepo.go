// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/txguard/internal/model"
)

// UserRepository provides access to user credentials.
type UserRepository interface {
	// Create inserts a new user; a taken username yields errs.ErrAlreadyExists.
	Create(ctx context.Context, u *model.User) error
	// GetByID loads a user by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	// GetByUsername loads a user by username.
	GetByUsername(ctx context.Context, username string) (*model.User, error)
}
