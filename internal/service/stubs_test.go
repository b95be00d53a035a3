package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gradebook-sync-api/internal/gradecalc"
	"github.com/noah-isme/gradebook-sync-api/internal/models"
	"github.com/noah-isme/gradebook-sync-api/internal/scheduler"
	"github.com/noah-isme/gradebook-sync-api/pkg/config"
	appErrors "github.com/noah-isme/gradebook-sync-api/pkg/errors"
)

func strPtr(v string) *string { return &v }

func boolPtr(v bool) *bool { return &v }

func testCalendar(t *testing.T) *gradecalc.Calendar {
	t.Helper()
	periods, err := config.ParseGradingPeriods(config.DefaultGradingPeriods)
	require.NoError(t, err)
	return gradecalc.NewCalendar(periods)
}

type assignmentRepoStub struct {
	mu        sync.Mutex
	items     map[string]*models.Assignment
	created   []*models.Assignment
	links     map[string]*models.ExternalLink
	deleted   []string
	createErr error
}

func newAssignmentRepoStub(items ...*models.Assignment) *assignmentRepoStub {
	s := &assignmentRepoStub{items: map[string]*models.Assignment{}, links: map[string]*models.ExternalLink{}}
	for _, a := range items {
		s.items[a.ID] = a
	}
	return s
}

func (s *assignmentRepoStub) Create(ctx context.Context, a *models.Assignment) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = "generated-id"
	}
	s.items[a.ID] = a
	s.created = append(s.created, a)
	return nil
}

func (s *assignmentRepoStub) Get(ctx context.Context, id string) (*models.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.items[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
	}
	cp := *a
	return &cp, nil
}

func (s *assignmentRepoStub) List(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Assignment
	for _, a := range s.items {
		if filter.GradingPeriod != "" && a.GradingPeriod != filter.GradingPeriod {
			continue
		}
		out = append(out, *a)
	}
	return out, nil
}

func (s *assignmentRepoStub) UpdateStatus(ctx context.Context, id string, status models.AssignmentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.items[id]
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
	}
	a.Status = status
	return nil
}

func (s *assignmentRepoStub) SetExternalLink(ctx context.Context, id string, link *models.ExternalLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.items[id]
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
	}
	s.links[id] = link
	if link == nil {
		a.ExternalCourseID, a.ExternalCourseWorkID = nil, nil
		return nil
	}
	a.ExternalCourseID, a.ExternalCourseWorkID = strPtr(link.CourseID), strPtr(link.CourseWorkID)
	return nil
}

func (s *assignmentRepoStub) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
	}
	delete(s.items, id)
	s.deleted = append(s.deleted, id)
	return nil
}

type rosterStub struct {
	students    []models.Student
	deactivated []int64
	listErr     error
}

func (s *rosterStub) ListByPeriod(ctx context.Context, period string, activeOnly bool) ([]models.Student, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []models.Student
	for _, st := range s.students {
		if st.Period != period || (activeOnly && !st.Active) {
			continue
		}
		out = append(out, st)
	}
	return out, nil
}

func (s *rosterStub) Get(ctx context.Context, id int64) (*models.Student, error) {
	for _, st := range s.students {
		if st.ID == id {
			cp := st
			return &cp, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
}

func (s *rosterStub) Deactivate(ctx context.Context, id int64) error {
	for i := range s.students {
		if s.students[i].ID == id {
			s.students[i].Active = false
			s.deactivated = append(s.deactivated, id)
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrNotFound, "student not found")
}

type gradeReaderStub struct {
	grades     []models.Grade
	forStudent []models.StudentGrade
	listCalls  int
}

func (s *gradeReaderStub) ListByAssignment(ctx context.Context, assignmentID string) ([]models.Grade, error) {
	s.listCalls++
	var out []models.Grade
	for _, g := range s.grades {
		if g.AssignmentID == assignmentID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *gradeReaderStub) ListForStudent(ctx context.Context, studentID int64, period string) ([]models.StudentGrade, error) {
	return s.forStudent, nil
}

type tagStoreStub struct {
	tags    []models.Tag
	removed []models.TagKind
}

func (s *tagStoreStub) ListByAssignment(ctx context.Context, assignmentID, period string) ([]models.Tag, error) {
	var out []models.Tag
	for _, t := range s.tags {
		if t.AssignmentID == assignmentID && t.Period == period {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *tagStoreStub) Add(ctx context.Context, tag *models.Tag) error {
	s.tags = append(s.tags, *tag)
	return nil
}

func (s *tagStoreStub) Remove(ctx context.Context, key models.GradeKey, kind models.TagKind) error {
	s.removed = append(s.removed, kind)
	return nil
}

type mappingRepoStub struct {
	mu         sync.Mutex
	mappings   []models.StudentMapping
	courses    map[string]models.CourseMapping
	replaced   map[string][]models.StudentMapping
	upserts    []models.StudentMapping
	listCalls  int
	replaceErr error
}

func newMappingRepoStub(mappings ...models.StudentMapping) *mappingRepoStub {
	return &mappingRepoStub{
		mappings: mappings,
		courses:  map[string]models.CourseMapping{},
		replaced: map[string][]models.StudentMapping{},
	}
}

func (s *mappingRepoStub) ListByPeriod(ctx context.Context, period string) ([]models.StudentMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	var out []models.StudentMapping
	for _, m := range s.mappings {
		if m.Period == period {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *mappingRepoStub) ReplaceForPeriod(ctx context.Context, period string, mappings []models.StudentMapping) error {
	if s.replaceErr != nil {
		return s.replaceErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.mappings[:0]
	for _, m := range s.mappings {
		if m.Period != period {
			kept = append(kept, m)
		}
	}
	s.mappings = append(kept, mappings...)
	s.replaced[period] = mappings
	return nil
}

func (s *mappingRepoStub) Upsert(ctx context.Context, m *models.StudentMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts = append(s.upserts, *m)
	for i := range s.mappings {
		if s.mappings[i].StudentID == m.StudentID && s.mappings[i].Period == m.Period {
			s.mappings[i] = *m
			return nil
		}
	}
	s.mappings = append(s.mappings, *m)
	return nil
}

func (s *mappingRepoStub) UpsertCourse(ctx context.Context, cm *models.CourseMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.courses[cm.Period+"/"+cm.Subject] = *cm
	return nil
}

func (s *mappingRepoStub) GetCourse(ctx context.Context, period, subject string) (*models.CourseMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cm, ok := s.courses[period+"/"+subject]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course mapping not found")
	}
	return &cm, nil
}

type schedulerStub struct {
	mu       sync.Mutex
	touched  map[string]int
	flushed  []string
	flushErr error
}

func newSchedulerStub() *schedulerStub {
	return &schedulerStub{touched: map[string]int{}}
}

func (s *schedulerStub) Touch(assignmentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touched[assignmentID]++
}

func (s *schedulerStub) Pending(assignmentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touched[assignmentID] > 0
}

func (s *schedulerStub) FlushNow(ctx context.Context, assignmentID string) (scheduler.FlushResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushed = append(s.flushed, assignmentID)
	return scheduler.FlushResult{AssignmentID: assignmentID, Pending: 1, Upserted: 1, Duration: time.Millisecond, Err: s.flushErr}, s.flushErr
}

func (s *schedulerStub) FlushAll(ctx context.Context) ([]scheduler.FlushResult, error) {
	s.mu.Lock()
	ids := make([]string, 0, len(s.touched))
	for id := range s.touched {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	var out []scheduler.FlushResult
	for _, id := range ids {
		res, _ := s.FlushNow(ctx, id)
		out = append(out, res)
	}
	return out, s.flushErr
}
