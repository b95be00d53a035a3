package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gradebook-sync-api/internal/models"
	appErrors "github.com/noah-isme/gradebook-sync-api/pkg/errors"
)

func TestMappingRepositoryReplaceForPeriod(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewMappingRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM student_mappings WHERE period = $1")).WithArgs("3").WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO student_mappings")).
		WithArgs(int64(1), "3", "u-1", "jane@example.com", false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO student_mappings")).
		WithArgs(int64(2), "3", "u-2", "", true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.ReplaceForPeriod(context.Background(), "3", []models.StudentMapping{
		{StudentID: 1, ExternalID: "u-1", ExternalEmail: "jane@example.com"},
		{StudentID: 2, ExternalID: "u-2", ManuallyMatched: true},
	})
	require.NoError(t, err)
}

func TestMappingRepositoryReplaceRollsBackOnInsertFailure(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewMappingRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM student_mappings")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO student_mappings")).WillReturnError(errors.New("unique violation"))
	mock.ExpectRollback()

	err := repo.ReplaceForPeriod(context.Background(), "3", []models.StudentMapping{{StudentID: 1, ExternalID: "u-1"}})
	require.Error(t, err)
}

func TestMappingRepositoryGetCourseNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewMappingRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM course_mappings WHERE period = $1 AND subject = $2")).
		WithArgs("3", "Math").
		WillReturnRows(sqlmock.NewRows([]string{"external_course_id"}))

	_, err := repo.GetCourse(context.Background(), "3", "Math")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestMappingRepositoryUpsertCourse(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewMappingRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO course_mappings")).
		WithArgs("c-9", "3", "Math", true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpsertCourse(context.Background(), &models.CourseMapping{
		ExternalCourseID: "c-9", Period: "3", Subject: "Math", Completed: true,
	}))
}
