package repository

import (
	"context"

	"github.com/and161185/outfit-studio/internal/model"
	"github.com/gofrs/uuid/v5"
)

// ProjectRepository stores generated projects keyed by owner.
type ProjectRepository interface {
	// Create inserts p and fills the store-assigned CreatedAt.
	Create(ctx context.Context, p *model.Project) error

	// ListByOwner returns the owner's projects, newest first.
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.Project, error)

	// Delete removes one of the owner's projects; errs.ErrNotFound if there is none.
	Delete(ctx context.Context, ownerID, id uuid.UUID) error
}
