package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/gradebook-sync-api/internal/models"
	appErrors "github.com/noah-isme/gradebook-sync-api/pkg/errors"
)

const assignmentColumns = `id, name, date, kind, subject, periods, grading_period, max_points, status,
        external_course_id, external_course_work_id, created_at, updated_at`

// AssignmentRepository persists assignments.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository creates a new assignment repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// Create inserts an assignment, generating its id.
func (r *AssignmentRepository) Create(ctx context.Context, a *models.Assignment) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	const query = `INSERT INTO assignments (id, name, date, kind, subject, periods, grading_period, max_points, status,
        external_course_id, external_course_work_id, created_at, updated_at)
        VALUES (:id, :name, :date, :kind, :subject, :periods, :grading_period, :max_points, :status,
        :external_course_id, :external_course_work_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, a); err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

// Get returns one assignment.
func (r *AssignmentRepository) Get(ctx context.Context, id string) (*models.Assignment, error) {
	var a models.Assignment
	err := r.db.GetContext(ctx, &a, `SELECT `+assignmentColumns+` FROM assignments WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get assignment: %w", err)
	}
	return &a, nil
}

// List returns assignments matching the filter ordered by date.
func (r *AssignmentRepository) List(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments WHERE 1=1`
	var args []interface{}
	if filter.Period != "" {
		args = append(args, filter.Period)
		query += fmt.Sprintf(" AND $%d = ANY(periods)", len(args))
	}
	if filter.GradingPeriod != "" {
		args = append(args, filter.GradingPeriod)
		query += fmt.Sprintf(" AND grading_period = $%d", len(args))
	}
	if filter.Subject != "" {
		args = append(args, filter.Subject)
		query += fmt.Sprintf(" AND subject = $%d", len(args))
	}
	query += " ORDER BY date, name"
	var out []models.Assignment
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return out, nil
}

// UpdateStatus changes the lifecycle status.
func (r *AssignmentRepository) UpdateStatus(ctx context.Context, id string, status models.AssignmentStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE assignments SET status = $2, updated_at = $3 WHERE id = $1`, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update assignment status: %w", err)
	}
	return expectAffected(res, "assignment not found")
}

// SetExternalLink stores or clears (nil link) the platform link.
func (r *AssignmentRepository) SetExternalLink(ctx context.Context, id string, link *models.ExternalLink) error {
	var courseID, workID *string
	if link != nil {
		courseID, workID = &link.CourseID, &link.CourseWorkID
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE assignments SET external_course_id = $2, external_course_work_id = $3, updated_at = $4 WHERE id = $1`,
		id, courseID, workID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set assignment link: %w", err)
	}
	return expectAffected(res, "assignment not found")
}

// Delete removes an assignment together with its grades and tags.
func (r *AssignmentRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete assignment: %w", err)
	}
	for _, stmt := range []string{
		`DELETE FROM grades WHERE assignment_id = $1`,
		`DELETE FROM assignment_tags WHERE assignment_id = $1`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("delete assignment children: %w", err)
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM assignments WHERE id = $1`, id)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("delete assignment: %w", err)
	}
	if err := expectAffected(res, "assignment not found"); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete assignment: %w", err)
	}
	return nil
}

func expectAffected(res sql.Result, notFound string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	return nil
}
