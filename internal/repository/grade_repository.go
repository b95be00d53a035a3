package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/gradebook-sync-api/internal/models"
)

// GradeRepository persists gradebook cells.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository creates a new grade repository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

// ListByAssignment returns every persisted cell of an assignment across its periods.
func (r *GradeRepository) ListByAssignment(ctx context.Context, assignmentID string) ([]models.Grade, error) {
	const query = `SELECT assignment_id, student_id, period, grade, extra_points, updated_at
        FROM grades
        WHERE assignment_id = $1
        ORDER BY period, student_id`
	var grades []models.Grade
	if err := r.db.SelectContext(ctx, &grades, query, assignmentID); err != nil {
		return nil, fmt.Errorf("list grades: %w", err)
	}
	return grades, nil
}

// ListForStudent returns a student's grades joined with the assignment attributes averages need.
func (r *GradeRepository) ListForStudent(ctx context.Context, studentID int64, period string) ([]models.StudentGrade, error) {
	const query = `SELECT g.assignment_id, a.name AS assignment_name, a.kind, a.grading_period, g.period, g.grade, g.extra_points
        FROM grades g
        JOIN assignments a ON a.id = g.assignment_id
        WHERE g.student_id = $1 AND g.period = $2
        ORDER BY a.date, a.name`
	var rows []models.StudentGrade
	if err := r.db.SelectContext(ctx, &rows, query, studentID, period); err != nil {
		return nil, fmt.Errorf("list student grades: %w", err)
	}
	return rows, nil
}

// ApplyChanges writes the reconciled upserts and deletes of one assignment in a single transaction.
func (r *GradeRepository) ApplyChanges(ctx context.Context, assignmentID string, changes models.GradeChanges) error {
	if changes.Empty() {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin grade flush: %w", err)
	}

	now := time.Now().UTC()
	const upsert = `INSERT INTO grades (assignment_id, student_id, period, grade, extra_points, updated_at)
        VALUES (:assignment_id, :student_id, :period, :grade, :extra_points, :updated_at)
        ON CONFLICT (assignment_id, student_id, period)
        DO UPDATE SET grade = EXCLUDED.grade, extra_points = EXCLUDED.extra_points, updated_at = EXCLUDED.updated_at`
	for i := range changes.Upserts {
		g := changes.Upserts[i]
		if g.AssignmentID != assignmentID {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("upsert grade: row belongs to assignment %s, not %s", g.AssignmentID, assignmentID)
		}
		g.UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, upsert, g); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("upsert grade: %w", err)
		}
	}

	const remove = `DELETE FROM grades WHERE assignment_id = $1 AND student_id = $2 AND period = $3`
	for _, k := range changes.Deletes {
		if _, err := tx.ExecContext(ctx, remove, assignmentID, k.StudentID, k.Period); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("delete grade: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit grades: %w", err)
	}
	return nil
}
