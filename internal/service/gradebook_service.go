package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/gradebook-sync-api/internal/dto"
	"github.com/noah-isme/gradebook-sync-api/internal/gradecalc"
	"github.com/noah-isme/gradebook-sync-api/internal/gradestate"
	"github.com/noah-isme/gradebook-sync-api/internal/models"
	"github.com/noah-isme/gradebook-sync-api/internal/scheduler"
	appErrors "github.com/noah-isme/gradebook-sync-api/pkg/errors"
)

type assignmentReader interface {
	Get(ctx context.Context, id string) (*models.Assignment, error)
}

type rosterReader interface {
	ListByPeriod(ctx context.Context, period string, activeOnly bool) ([]models.Student, error)
	Get(ctx context.Context, id int64) (*models.Student, error)
}

type studentDeactivator interface {
	Deactivate(ctx context.Context, id int64) error
}

type gradeReader interface {
	ListByAssignment(ctx context.Context, assignmentID string) ([]models.Grade, error)
	ListForStudent(ctx context.Context, studentID int64, period string) ([]models.StudentGrade, error)
}

type tagStore interface {
	ListByAssignment(ctx context.Context, assignmentID, period string) ([]models.Tag, error)
	Add(ctx context.Context, tag *models.Tag) error
	Remove(ctx context.Context, key models.GradeKey, kind models.TagKind) error
}

type mappingLister interface {
	ListByPeriod(ctx context.Context, period string) ([]models.StudentMapping, error)
}

type flushScheduler interface {
	Touch(assignmentID string)
	Pending(assignmentID string) bool
	FlushNow(ctx context.Context, assignmentID string) (scheduler.FlushResult, error)
	FlushAll(ctx context.Context) ([]scheduler.FlushResult, error)
}

// GradebookService owns the interactive gradebook: edits, imports, saves, tags and averages.
type GradebookService struct {
	assignments assignmentReader
	students    rosterReader
	deactivator studentDeactivator
	grades      gradeReader
	tags        tagStore
	mappings    mappingLister
	store       *gradestate.Store
	scheduler   flushScheduler
	calendar    *gradecalc.Calendar
	validator   *validator.Validate
	logger      *zap.Logger

	loadMu sync.Mutex
}

// GradebookDeps groups the collaborators of GradebookService.
type GradebookDeps struct {
	Assignments assignmentReader
	Students    rosterReader
	Deactivator studentDeactivator
	Grades      gradeReader
	Tags        tagStore
	Mappings    mappingLister
	Store       *gradestate.Store
	Scheduler   flushScheduler
	Calendar    *gradecalc.Calendar
}

// NewGradebookService constructs a GradebookService.
func NewGradebookService(deps GradebookDeps, validate *validator.Validate, logger *zap.Logger) *GradebookService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Store == nil {
		deps.Store = gradestate.NewStore()
	}
	return &GradebookService{
		assignments: deps.Assignments,
		students:    deps.Students,
		deactivator: deps.Deactivator,
		grades:      deps.Grades,
		tags:        deps.Tags,
		mappings:    deps.Mappings,
		store:       deps.Store,
		scheduler:   deps.Scheduler,
		calendar:    deps.Calendar,
		validator:   validate,
		logger:      logger,
	}
}

// EnsureLoaded reads the persisted grades of an assignment into the store once.
func (s *GradebookService) EnsureLoaded(ctx context.Context, assignmentID string) error {
	if s.store.Loaded(assignmentID) {
		return nil
	}
	s.loadMu.Lock()
	defer s.loadMu.Unlock()
	if s.store.Loaded(assignmentID) {
		return nil
	}
	grades, err := s.grades.ListByAssignment(ctx, assignmentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grades")
	}
	s.store.LoadPersisted(assignmentID, grades)
	return nil
}

// ResolveValue returns the grade and extra points currently shown for a cell.
func (s *GradebookService) ResolveValue(key models.GradeKey) gradestate.Value {
	return s.store.ResolveValue(key)
}

// View returns the gradebook rows of one assignment and period.
func (s *GradebookService) View(ctx context.Context, assignmentID, period string) (*dto.GradebookView, error) {
	assignment, err := s.assignmentInPeriod(ctx, assignmentID, period)
	if err != nil {
		return nil, err
	}
	if err := s.EnsureLoaded(ctx, assignmentID); err != nil {
		return nil, err
	}

	students, err := s.students.ListByPeriod(ctx, period, true)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	tags, err := s.tags.ListByAssignment(ctx, assignmentID, period)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list tags")
	}
	mappings, err := s.mappings.ListByPeriod(ctx, period)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list mappings")
	}

	tagsByStudent := make(map[int64][]string)
	for _, t := range tags {
		tagsByStudent[t.StudentID] = append(tagsByStudent[t.StudentID], string(t.Kind))
	}
	mapped := make(map[int64]bool, len(mappings))
	for _, m := range mappings {
		mapped[m.StudentID] = true
	}

	view := &dto.GradebookView{
		AssignmentID:   assignment.ID,
		AssignmentName: assignment.Name,
		Kind:           string(assignment.Kind),
		Period:         period,
		Editing:        s.store.Editing(assignmentID, period),
		Rows:           make([]dto.GradebookRow, 0, len(students)),
	}
	if s.scheduler != nil {
		view.SavePending = s.scheduler.Pending(assignmentID)
	}
	for _, st := range students {
		v := s.store.ResolveValue(models.GradeKey{AssignmentID: assignmentID, Period: period, StudentID: st.ID})
		rowTags := tagsByStudent[st.ID]
		if rowTags == nil {
			rowTags = []string{}
		}
		view.Rows = append(view.Rows, dto.GradebookRow{
			StudentID:   st.ID,
			StudentName: st.Name,
			Grade:       v.Grade,
			ExtraPoints: v.Extra,
			Total:       gradecalc.Total(v.Grade, v.Extra),
			Tags:        rowTags,
			Mapped:      mapped[st.ID],
		})
	}
	return view, nil
}

// EditGrade writes a grade for one student. A committed edit is queued for saving;
// a draft only changes what the gradebook shows until the next save folds it in.
func (s *GradebookService) EditGrade(ctx context.Context, key models.GradeKey, req dto.EditGradeRequest) (*dto.GradebookRow, error) {
	return s.edit(ctx, key, req, false)
}

// EditExtraPoints is EditGrade for the extra points sub-field.
func (s *GradebookService) EditExtraPoints(ctx context.Context, key models.GradeKey, req dto.EditGradeRequest) (*dto.GradebookRow, error) {
	return s.edit(ctx, key, req, true)
}

func (s *GradebookService) edit(ctx context.Context, key models.GradeKey, req dto.EditGradeRequest, extra bool) (*dto.GradebookRow, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	if _, err := s.assignmentInPeriod(ctx, key.AssignmentID, key.Period); err != nil {
		return nil, err
	}
	student, err := s.studentInPeriod(ctx, key.StudentID, key.Period)
	if err != nil {
		return nil, err
	}
	if !student.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student is inactive")
	}
	if err := s.EnsureLoaded(ctx, key.AssignmentID); err != nil {
		return nil, err
	}

	commit := req.Commit == nil || *req.Commit
	switch {
	case commit && extra:
		if s.store.EditExtra(key, req.Value) {
			s.touch(key.AssignmentID)
		}
	case commit:
		if s.store.Edit(key, req.Value) {
			s.touch(key.AssignmentID)
		}
	case extra:
		s.store.SetLocalExtra(key, req.Value)
	default:
		s.store.SetLocal(key, req.Value)
	}

	v := s.store.ResolveValue(key)
	return &dto.GradebookRow{
		StudentID:   student.ID,
		StudentName: student.Name,
		Grade:       v.Grade,
		ExtraPoints: v.Extra,
		Total:       gradecalc.Total(v.Grade, v.Extra),
	}, nil
}

// DiscardDraft drops an uncommitted draft for one cell.
func (s *GradebookService) DiscardDraft(key models.GradeKey) {
	s.store.DiscardLocal(key)
}

// ImportGrades applies a batch of grades exactly like manual edits and
// returns how many cells changed. Every student must belong to the period.
func (s *GradebookService) ImportGrades(ctx context.Context, assignmentID, period string, req dto.ImportGradesRequest) (int, error) {
	if err := s.validator.Struct(req); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid import payload")
	}
	if _, err := s.assignmentInPeriod(ctx, assignmentID, period); err != nil {
		return 0, err
	}
	students, err := s.students.ListByPeriod(ctx, period, true)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	enrolled := make(map[int64]bool, len(students))
	for _, st := range students {
		enrolled[st.ID] = true
	}

	ids := make([]int64, 0, len(req.Grades))
	for id := range req.Grades {
		if !enrolled[id] {
			return 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("student %d is not enrolled in period %s", id, period))
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	if err := s.EnsureLoaded(ctx, assignmentID); err != nil {
		return 0, err
	}
	changed := 0
	for _, id := range ids {
		if s.store.Edit(models.GradeKey{AssignmentID: assignmentID, Period: period, StudentID: id}, req.Grades[id]) {
			changed++
		}
	}
	if changed > 0 {
		s.touch(assignmentID)
	}
	s.logger.Info("grades imported",
		zap.String("assignment_id", assignmentID),
		zap.String("period", period),
		zap.Int("rows", len(ids)),
		zap.Int("changed", changed))
	return changed, nil
}

// Save flushes one assignment immediately.
func (s *GradebookService) Save(ctx context.Context, assignmentID string) (*dto.SaveResult, error) {
	if _, err := s.assignments.Get(ctx, assignmentID); err != nil {
		return nil, err
	}
	res, err := s.scheduler.FlushNow(ctx, assignmentID)
	out := toSaveResult(res)
	return &out, err
}

// SaveAll flushes every assignment with pending edits.
func (s *GradebookService) SaveAll(ctx context.Context) ([]dto.SaveResult, error) {
	results, err := s.scheduler.FlushAll(ctx)
	out := make([]dto.SaveResult, 0, len(results))
	for _, r := range results {
		out = append(out, toSaveResult(r))
	}
	return out, err
}

func toSaveResult(r scheduler.FlushResult) dto.SaveResult {
	out := dto.SaveResult{
		AssignmentID: r.AssignmentID,
		Pending:      r.Pending,
		Upserted:     r.Upserted,
		Deleted:      r.Deleted,
		DurationMs:   r.Duration.Milliseconds(),
	}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return out
}

// SetTag annotates a student's assignment. Retest only applies to assessments.
func (s *GradebookService) SetTag(ctx context.Context, key models.GradeKey, kind models.TagKind) (*models.Tag, error) {
	if !kind.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown tag %q", kind))
	}
	assignment, err := s.assignmentInPeriod(ctx, key.AssignmentID, key.Period)
	if err != nil {
		return nil, err
	}
	if kind == models.TagRetest && assignment.Kind != models.AssignmentAssessment {
		return nil, appErrors.Clone(appErrors.ErrValidation, "retest can only be tagged on assessments")
	}
	if _, err := s.studentInPeriod(ctx, key.StudentID, key.Period); err != nil {
		return nil, err
	}
	tag := &models.Tag{AssignmentID: key.AssignmentID, StudentID: key.StudentID, Period: key.Period, Kind: kind}
	if err := s.tags.Add(ctx, tag); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to tag assignment")
	}
	return tag, nil
}

// RemoveTag removes an annotation; removing a missing tag is a no-op.
func (s *GradebookService) RemoveTag(ctx context.Context, key models.GradeKey, kind models.TagKind) error {
	if !kind.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown tag %q", kind))
	}
	if err := s.tags.Remove(ctx, key, kind); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove tag")
	}
	return nil
}

// StudentAverage computes the weighted average of a student's grades in a
// grading period. Unset grades are excluded; grades still waiting to be
// saved count with the value the gradebook shows.
func (s *GradebookService) StudentAverage(ctx context.Context, studentID int64, query dto.StudentAverageQuery) (*dto.StudentAverage, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid average query")
	}
	gradingPeriod := query.GradingPeriod
	if gradingPeriod == "" {
		gradingPeriod = gradecalc.AllPeriods
	}
	if s.calendar != nil && !s.calendar.Valid(gradingPeriod) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown grading period %q", gradingPeriod))
	}
	if _, err := s.studentInPeriod(ctx, studentID, query.Period); err != nil {
		return nil, err
	}

	rows, err := s.grades.ListForStudent(ctx, studentID, query.Period)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list student grades")
	}

	rows, err = s.withPendingRows(ctx, studentID, query.Period, rows)
	if err != nil {
		return nil, err
	}

	out := &dto.StudentAverage{StudentID: studentID, Period: query.Period, GradingPeriod: gradingPeriod}
	values := make([]float64, 0, len(rows))
	kinds := make([]models.AssignmentKind, 0, len(rows))
	for _, row := range rows {
		if !gradecalc.Includes(gradingPeriod, row.GradingPeriod) {
			continue
		}
		grade, extra := row.Grade, row.ExtraPoints
		if s.store.Loaded(row.AssignmentID) {
			v := s.store.ResolveValue(models.GradeKey{AssignmentID: row.AssignmentID, Period: row.Period, StudentID: studentID})
			grade, extra = v.Grade, v.Extra
		}
		if gradecalc.IsUnset(grade) {
			continue
		}
		values = append(values, float64(gradecalc.Total(grade, extra)))
		kinds = append(kinds, row.Kind)
		if row.Kind == models.AssignmentAssessment {
			out.AssessmentCount++
		} else {
			out.DailyCount++
		}
	}
	out.Average = gradecalc.WeightedAverage(values, kinds)
	return out, nil
}

// withPendingRows appends a row for every assignment the student has unsaved
// grades in but no persisted row yet. Values are filled in by the store overlay.
func (s *GradebookService) withPendingRows(ctx context.Context, studentID int64, period string, rows []models.StudentGrade) ([]models.StudentGrade, error) {
	known := make(map[string]bool, len(rows))
	for _, row := range rows {
		known[row.AssignmentID] = true
	}
	for _, key := range s.store.PendingKeys(studentID, period) {
		if known[key.AssignmentID] {
			continue
		}
		known[key.AssignmentID] = true
		assignment, err := s.assignments.Get(ctx, key.AssignmentID)
		if err != nil {
			if appErrors.HasCode(err, appErrors.ErrNotFound.Code) {
				continue
			}
			return nil, err
		}
		rows = append(rows, models.StudentGrade{
			AssignmentID:   assignment.ID,
			AssignmentName: assignment.Name,
			Kind:           assignment.Kind,
			GradingPeriod:  assignment.GradingPeriod,
			Period:         period,
		})
	}
	return rows, nil
}

// DeactivateStudent hides a student from rosters while keeping their grades.
func (s *GradebookService) DeactivateStudent(ctx context.Context, studentID int64) error {
	if err := s.deactivator.Deactivate(ctx, studentID); err != nil {
		return err
	}
	s.logger.Info("student deactivated", zap.Int64("student_id", studentID))
	return nil
}

func (s *GradebookService) touch(assignmentID string) {
	if s.scheduler != nil {
		s.scheduler.Touch(assignmentID)
	}
}

func (s *GradebookService) assignmentInPeriod(ctx context.Context, assignmentID, period string) (*models.Assignment, error) {
	assignment, err := s.assignments.Get(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if !assignment.HasPeriod(period) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("assignment is not given to period %s", period))
	}
	return assignment, nil
}

func (s *GradebookService) studentInPeriod(ctx context.Context, studentID int64, period string) (*models.Student, error) {
	student, err := s.students.Get(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if student.Period != period {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("student %d is not enrolled in period %s", studentID, period))
	}
	return student, nil
}
