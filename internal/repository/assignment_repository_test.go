package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gradebook-sync-api/internal/models"
	appErrors "github.com/noah-isme/gradebook-sync-api/pkg/errors"
)

var assignmentCols = []string{"id", "name", "date", "kind", "subject", "periods", "grading_period", "max_points", "status",
	"external_course_id", "external_course_work_id", "created_at", "updated_at"}

func TestAssignmentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO assignments")).WillReturnResult(sqlmock.NewResult(0, 1))

	a := &models.Assignment{Name: "Quiz 1", Kind: models.AssignmentDaily, Periods: []string{"1", "2"}, Status: models.AssignmentNotStarted}
	require.NoError(t, repo.Create(context.Background(), a))
	assert.NotEmpty(t, a.ID)
	assert.False(t, a.CreatedAt.IsZero())
}

func TestAssignmentRepositoryGet(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(assignmentCols).
		AddRow("a-1", "Quiz 1", now, "Assessment", "Math", "{1,2}", "1SW", 100, "in_progress", "c-1", "w-1", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM assignments WHERE id = $1")).WithArgs("a-1").WillReturnRows(rows)

	a, err := repo.Get(context.Background(), "a-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, []string(a.Periods))
	require.NotNil(t, a.ExternalLink())
	assert.Equal(t, "w-1", a.ExternalLink().CourseWorkID)
}

func TestAssignmentRepositoryGetNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM assignments WHERE id = $1")).WithArgs("nope").WillReturnRows(sqlmock.NewRows(assignmentCols))

	_, err := repo.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestAssignmentRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("AND $1 = ANY(periods) AND grading_period = $2 ORDER BY date, name")).
		WithArgs("2", "1SW").
		WillReturnRows(sqlmock.NewRows(assignmentCols))

	out, err := repo.List(context.Background(), models.AssignmentFilter{Period: "2", GradingPeriod: "1SW"})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestAssignmentRepositoryDeleteCascades(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM grades WHERE assignment_id = $1")).WithArgs("a-1").WillReturnResult(sqlmock.NewResult(0, 12))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM assignment_tags WHERE assignment_id = $1")).WithArgs("a-1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM assignments WHERE id = $1")).WithArgs("a-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), "a-1"))
}

func TestAssignmentRepositoryDeleteMissingRollsBack(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM grades")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM assignment_tags")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM assignments")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), "a-404")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestAssignmentRepositorySetExternalLink(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE assignments SET external_course_id = $2")).
		WithArgs("a-1", "c-1", "w-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetExternalLink(context.Background(), "a-1", &models.ExternalLink{CourseID: "c-1", CourseWorkID: "w-1"}))
}
