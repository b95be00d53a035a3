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

const upsertStudentMapping = `INSERT INTO student_mappings (student_id, period, external_id, external_email, manually_matched, updated_at)
        VALUES (:student_id, :period, :external_id, :external_email, :manually_matched, :updated_at)
        ON CONFLICT (student_id, period)
        DO UPDATE SET external_id = EXCLUDED.external_id, external_email = EXCLUDED.external_email,
        manually_matched = EXCLUDED.manually_matched, updated_at = EXCLUDED.updated_at`

// MappingRepository persists student and course mappings.
type MappingRepository struct {
	db *sqlx.DB
}

// NewMappingRepository creates a new mapping repository.
func NewMappingRepository(db *sqlx.DB) *MappingRepository {
	return &MappingRepository{db: db}
}

// ListByPeriod returns the student mappings of a class period.
func (r *MappingRepository) ListByPeriod(ctx context.Context, period string) ([]models.StudentMapping, error) {
	const query = `SELECT student_id, period, external_id, external_email, manually_matched, updated_at
        FROM student_mappings
        WHERE period = $1
        ORDER BY student_id`
	var out []models.StudentMapping
	if err := r.db.SelectContext(ctx, &out, query, period); err != nil {
		return nil, fmt.Errorf("list student mappings: %w", err)
	}
	return out, nil
}

// ReplaceForPeriod deletes every mapping of the period and inserts the given set in one transaction.
func (r *MappingRepository) ReplaceForPeriod(ctx context.Context, period string, mappings []models.StudentMapping) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace mappings: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM student_mappings WHERE period = $1`, period); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("clear student mappings: %w", err)
	}
	now := time.Now().UTC()
	for i := range mappings {
		m := mappings[i]
		m.Period = period
		m.UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, upsertStudentMapping, m); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("insert student mapping: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit student mappings: %w", err)
	}
	return nil
}

// Upsert stores one student mapping.
func (r *MappingRepository) Upsert(ctx context.Context, m *models.StudentMapping) error {
	m.UpdatedAt = time.Now().UTC()
	if _, err := r.db.NamedExecContext(ctx, upsertStudentMapping, m); err != nil {
		return fmt.Errorf("upsert student mapping: %w", err)
	}
	return nil
}

// UpsertCourse stores the platform course of a period and subject.
func (r *MappingRepository) UpsertCourse(ctx context.Context, cm *models.CourseMapping) error {
	cm.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO course_mappings (external_course_id, period, subject, completed, updated_at)
        VALUES (:external_course_id, :period, :subject, :completed, :updated_at)
        ON CONFLICT (period, subject)
        DO UPDATE SET external_course_id = EXCLUDED.external_course_id, completed = EXCLUDED.completed, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, cm); err != nil {
		return fmt.Errorf("upsert course mapping: %w", err)
	}
	return nil
}

// GetCourse returns the course mapping of a period and subject.
func (r *MappingRepository) GetCourse(ctx context.Context, period, subject string) (*models.CourseMapping, error) {
	var cm models.CourseMapping
	err := r.db.GetContext(ctx, &cm, `SELECT external_course_id, period, subject, completed, updated_at
        FROM course_mappings WHERE period = $1 AND subject = $2`, period, subject)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course mapping not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get course mapping: %w", err)
	}
	return &cm, nil
}
