package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/gradebook-sync-api/internal/models"
	appErrors "github.com/noah-isme/gradebook-sync-api/pkg/errors"
)

// StudentRepository reads the local roster.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository creates a new student repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// ListByPeriod returns the students of a class period sorted by name.
func (r *StudentRepository) ListByPeriod(ctx context.Context, period string, activeOnly bool) ([]models.Student, error) {
	query := `SELECT id, name, period, active, created_at, updated_at FROM students WHERE period = $1`
	if activeOnly {
		query += ` AND active = TRUE`
	}
	query += ` ORDER BY name, id`
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, period); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return students, nil
}

// Get returns one student.
func (r *StudentRepository) Get(ctx context.Context, id int64) (*models.Student, error) {
	var s models.Student
	err := r.db.GetContext(ctx, &s, `SELECT id, name, period, active, created_at, updated_at FROM students WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get student: %w", err)
	}
	return &s, nil
}

// Deactivate marks a student inactive. Rows are never removed so grade history stays intact.
func (r *StudentRepository) Deactivate(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE students SET active = FALSE, updated_at = $2 WHERE id = $1`, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("deactivate student: %w", err)
	}
	return expectAffected(res, "student not found")
}
