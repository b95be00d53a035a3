package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gradebook-sync-api/internal/dto"
	"github.com/noah-isme/gradebook-sync-api/internal/gradestate"
	"github.com/noah-isme/gradebook-sync-api/internal/models"
	"github.com/noah-isme/gradebook-sync-api/internal/scheduler"
	appErrors "github.com/noah-isme/gradebook-sync-api/pkg/errors"
)

type forgetterStub struct {
	forgotten []string
	onForget  func(assignmentID string)
}

func (f *forgetterStub) Forget(assignmentID string) {
	f.forgotten = append(f.forgotten, assignmentID)
	if f.onForget != nil {
		f.onForget(assignmentID)
	}
}

type gradeWriterStub struct {
	mu      sync.Mutex
	applied []models.GradeChanges
}

func (w *gradeWriterStub) ListByAssignment(ctx context.Context, assignmentID string) ([]models.Grade, error) {
	return nil, nil
}

func (w *gradeWriterStub) ApplyChanges(ctx context.Context, assignmentID string, changes models.GradeChanges) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.applied = append(w.applied, changes)
	return nil
}

func (w *gradeWriterStub) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.applied)
}

func TestAssignmentCreateBucketsIntoGradingPeriod(t *testing.T) {
	repo := newAssignmentRepoStub()
	svc := NewAssignmentService(repo, testCalendar(t), nil, nil)

	a, err := svc.Create(context.Background(), dto.CreateAssignmentRequest{
		Name:    " Unit Quiz ",
		Date:    time.Date(2024, 9, 23, 0, 0, 0, 0, time.UTC),
		Kind:    "Daily",
		Subject: "Math",
		Periods: []string{"2", " 3", "2"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Unit Quiz", a.Name)
	assert.Equal(t, "2SW", a.GradingPeriod)
	assert.Equal(t, []string{"2", "3"}, []string(a.Periods))
	assert.Equal(t, 100, a.MaxPoints)
	assert.Equal(t, models.AssignmentNotStarted, a.Status)
	require.Len(t, repo.created, 1)
}

func TestAssignmentCreateOutsideCalendar(t *testing.T) {
	svc := NewAssignmentService(newAssignmentRepoStub(), testCalendar(t), nil, nil)

	a, err := svc.Create(context.Background(), dto.CreateAssignmentRequest{
		Name:      "Break packet",
		Date:      time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC),
		Kind:      "Assessment",
		Subject:   "Math",
		Periods:   []string{"1"},
		MaxPoints: 50,
	})
	require.NoError(t, err)
	assert.Equal(t, "", a.GradingPeriod)
	assert.Equal(t, 50, a.MaxPoints)
}

func TestAssignmentCreateValidates(t *testing.T) {
	repo := newAssignmentRepoStub()
	svc := NewAssignmentService(repo, testCalendar(t), nil, nil)

	_, err := svc.Create(context.Background(), dto.CreateAssignmentRequest{
		Name: "Quiz", Date: time.Now(), Kind: "Homework", Subject: "Math", Periods: []string{"1"},
	})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Create(context.Background(), dto.CreateAssignmentRequest{
		Name: "Quiz", Date: time.Now(), Kind: "Daily", Subject: "Math",
	})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Empty(t, repo.created)
}

func TestAssignmentList(t *testing.T) {
	repo := newAssignmentRepoStub(
		&models.Assignment{ID: "a", GradingPeriod: "1SW"},
		&models.Assignment{ID: "b", GradingPeriod: "2SW"},
	)
	svc := NewAssignmentService(repo, testCalendar(t), nil, nil)
	ctx := context.Background()

	all, err := svc.List(ctx, dto.AssignmentQuery{GradingPeriod: "all"})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	one, err := svc.List(ctx, dto.AssignmentQuery{GradingPeriod: "2SW"})
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "b", one[0].ID)

	none, err := svc.List(ctx, dto.AssignmentQuery{GradingPeriod: "4SW"})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	_, err = svc.List(ctx, dto.AssignmentQuery{GradingPeriod: "9SW"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestAssignmentStatusAndLink(t *testing.T) {
	repo := newAssignmentRepoStub(&models.Assignment{ID: "a", Status: models.AssignmentNotStarted})
	svc := NewAssignmentService(repo, testCalendar(t), nil, nil)
	ctx := context.Background()

	a, err := svc.UpdateStatus(ctx, "a", dto.UpdateAssignmentStatusRequest{Status: "in_progress"})
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentInProgress, a.Status)

	_, err = svc.UpdateStatus(ctx, "a", dto.UpdateAssignmentStatusRequest{Status: "done"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	a, err = svc.Link(ctx, "a", dto.LinkAssignmentRequest{CourseID: "c-1", CourseWorkID: "w-1"})
	require.NoError(t, err)
	require.NotNil(t, a.ExternalLink())
	assert.Equal(t, "w-1", a.ExternalLink().CourseWorkID)

	_, err = svc.Link(ctx, "a", dto.LinkAssignmentRequest{CourseID: "c-1"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	a, err = svc.Link(ctx, "a", dto.LinkAssignmentRequest{})
	require.NoError(t, err)
	assert.Nil(t, a.ExternalLink())
	assert.Nil(t, repo.links["a"])

	_, err = svc.Link(ctx, "missing", dto.LinkAssignmentRequest{CourseID: "c", CourseWorkID: "w"})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestAssignmentDeleteForgetsState(t *testing.T) {
	repo := newAssignmentRepoStub(&models.Assignment{ID: "a"})
	store, timers := &forgetterStub{}, &forgetterStub{}
	svc := NewAssignmentService(repo, testCalendar(t), nil, nil, store, timers)

	require.NoError(t, svc.Delete(context.Background(), "a"))
	assert.Equal(t, []string{"a"}, store.forgotten)
	assert.Equal(t, []string{"a"}, timers.forgotten)

	err := svc.Delete(context.Background(), "a")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	assert.Len(t, store.forgotten, 1)
}

func TestAssignmentDeleteForgetsBeforeCascade(t *testing.T) {
	repo := newAssignmentRepoStub(&models.Assignment{ID: "a"})
	var existedAtForget bool
	timers := &forgetterStub{onForget: func(id string) {
		_, err := repo.Get(context.Background(), id)
		existedAtForget = err == nil
	}}
	svc := NewAssignmentService(repo, testCalendar(t), nil, nil, timers)

	require.NoError(t, svc.Delete(context.Background(), "a"))
	assert.True(t, existedAtForget)
	assert.Equal(t, []string{"a"}, repo.deleted)
}

func TestAssignmentDeleteStopsArmedFlush(t *testing.T) {
	repo := newAssignmentRepoStub(&models.Assignment{ID: "a"})
	store := gradestate.NewStore()
	writer := &gradeWriterStub{}
	flusher := scheduler.New(store, writer, scheduler.Config{Debounce: 20 * time.Millisecond})
	t.Cleanup(flusher.Close)
	svc := NewAssignmentService(repo, testCalendar(t), nil, nil, flusher, store)

	store.Edit(models.GradeKey{AssignmentID: "a", Period: "2", StudentID: 1}, "90")
	flusher.Touch("a")

	require.NoError(t, svc.Delete(context.Background(), "a"))
	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, writer.count())
	assert.Empty(t, store.PendingAssignments())
}
