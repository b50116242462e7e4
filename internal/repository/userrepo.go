// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/and161185/outfit-studio/internal/model"
	"github.com/gofrs/uuid/v5"
)

// UserRepository provides access to stored accounts.
type UserRepository interface {
	// Create inserts a new user; a taken username or email yields errs.ErrAlreadyExists.
	Create(ctx context.Context, u *model.User) error
	// GetByID loads a user by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	// GetByIdentifier loads a user by username or email.
	GetByIdentifier(ctx context.Context, identifier string) (*model.User, error)
}
