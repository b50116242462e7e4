package postgres

import (
	"context"

	"github.com/and161185/outfit-studio/internal/errs"
	"github.com/and161185/outfit-studio/internal/model"
	"github.com/gofrs/uuid/v5"
)

// ProjectRepo implements ProjectRepository using PostgreSQL.
type ProjectRepo struct{ db *DB }

// NewProjectRepo constructs a project repository.
func NewProjectRepo(db *DB) *ProjectRepo { return &ProjectRepo{db: db} }

// Create inserts a project row; created_at is assigned by the database.
func (r *ProjectRepo) Create(ctx context.Context, p *model.Project) error {
	const q = `
INSERT INTO projects (id, owner_id, image_url, garment_description, mode)
VALUES ($1, $2, $3, $4, $5)
RETURNING created_at`
	err := r.db.Pool.QueryRow(ctx, q, p.ID, p.OwnerID, p.ImageURL, p.GarmentDescription, string(p.Mode)).Scan(&p.CreatedAt)
	if isForeignKeyViolation(err) {
		return errs.ErrNotFound
	}
	return err
}

// ListByOwner returns all projects of the owner ordered by creation time, newest first.
func (r *ProjectRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.Project, error) {
	const q = `
SELECT id, owner_id, image_url, garment_description, mode, created_at
FROM projects
WHERE owner_id=$1
ORDER BY created_at DESC, seq DESC`
	rows, err := r.db.Pool.Query(ctx, q, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Project{}
	for rows.Next() {
		var (
			p    model.Project
			mode string
		)
		if err = rows.Scan(&p.ID, &p.OwnerID, &p.ImageURL, &p.GarmentDescription, &mode, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Mode = model.Mode(mode)
		out = append(out, p)
	}
	return out, rows.Err()
}

// Delete removes a project row owned by ownerID.
func (r *ProjectRepo) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	const q = `DELETE FROM projects WHERE id=$1 AND owner_id=$2`
	tag, err := r.db.Pool.Exec(ctx, q, id, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
