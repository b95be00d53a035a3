package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/gradebook-sync-api/internal/models"
)

// TagRepository persists assignment tags.
type TagRepository struct {
	db *sqlx.DB
}

// NewTagRepository creates a new tag repository.
func NewTagRepository(db *sqlx.DB) *TagRepository {
	return &TagRepository{db: db}
}

// ListByAssignment returns the tags of one assignment and period.
func (r *TagRepository) ListByAssignment(ctx context.Context, assignmentID, period string) ([]models.Tag, error) {
	const query = `SELECT id, assignment_id, student_id, period, kind, created_at
        FROM assignment_tags
        WHERE assignment_id = $1 AND period = $2
        ORDER BY student_id, kind`
	var tags []models.Tag
	if err := r.db.SelectContext(ctx, &tags, query, assignmentID, period); err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	return tags, nil
}

// Add stores a tag; adding an existing tag is a no-op.
func (r *TagRepository) Add(ctx context.Context, tag *models.Tag) error {
	if tag.ID == "" {
		tag.ID = uuid.NewString()
	}
	if tag.CreatedAt.IsZero() {
		tag.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO assignment_tags (id, assignment_id, student_id, period, kind, created_at)
        VALUES (:id, :assignment_id, :student_id, :period, :kind, :created_at)
        ON CONFLICT (assignment_id, student_id, period, kind) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, tag); err != nil {
		return fmt.Errorf("add tag: %w", err)
	}
	return nil
}

// Remove deletes a tag if present.
func (r *TagRepository) Remove(ctx context.Context, key models.GradeKey, kind models.TagKind) error {
	const query = `DELETE FROM assignment_tags WHERE assignment_id = $1 AND student_id = $2 AND period = $3 AND kind = $4`
	if _, err := r.db.ExecContext(ctx, query, key.AssignmentID, key.StudentID, key.Period, kind); err != nil {
		return fmt.Errorf("remove tag: %w", err)
	}
	return nil
}
