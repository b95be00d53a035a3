package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/gradebook-sync-api/internal/dto"
	"github.com/noah-isme/gradebook-sync-api/internal/gradecalc"
	"github.com/noah-isme/gradebook-sync-api/internal/gradestate"
	"github.com/noah-isme/gradebook-sync-api/internal/models"
	"github.com/noah-isme/gradebook-sync-api/internal/platform"
	appErrors "github.com/noah-isme/gradebook-sync-api/pkg/errors"
	"github.com/noah-isme/gradebook-sync-api/pkg/jobs"
)

const (
	// SyncJobType identifies platform sync jobs on the queue.
	SyncJobType = "platform_sync"

	defaultSyncConcurrency = 8
	maxTrackedSyncJobs     = 256
)

var errQueueFull = appErrors.New("QUEUE_FULL", http.StatusServiceUnavailable, "sync queue is full, try again later")

type platformGrader interface {
	ListSubmissions(ctx context.Context, link models.ExternalLink, userID string) ([]platform.Submission, error)
	PatchGrade(ctx context.Context, link models.ExternalLink, submissionID string, grade float64) (*platform.Submission, error)
}

type gradeSource interface {
	EnsureLoaded(ctx context.Context, assignmentID string) error
	ResolveValue(key models.GradeKey) gradestate.Value
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) (string, error)
}

// SyncConfig tunes platform pushes.
type SyncConfig struct {
	Concurrency int
}

// SyncService pushes gradebook totals to the classroom platform.
type SyncService struct {
	assignments assignmentReader
	students    rosterReader
	mappings    mappingLister
	grades      gradeSource
	platform    platformGrader
	queue       jobEnqueuer
	metrics     *MetricsService
	cfg         SyncConfig
	validator   *validator.Validate
	logger      *zap.Logger

	jobsMu sync.Mutex
	jobs   map[string]*dto.SyncJob
	order  []string
}

// SyncDeps groups the collaborators of SyncService.
type SyncDeps struct {
	Assignments assignmentReader
	Students    rosterReader
	Mappings    mappingLister
	Grades      gradeSource
	Platform    platformGrader
	Metrics     *MetricsService
}

// NewSyncService constructs a SyncService.
func NewSyncService(deps SyncDeps, cfg SyncConfig, validate *validator.Validate, logger *zap.Logger) *SyncService {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultSyncConcurrency
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncService{
		assignments: deps.Assignments,
		students:    deps.Students,
		mappings:    deps.Mappings,
		grades:      deps.Grades,
		platform:    deps.Platform,
		metrics:     deps.Metrics,
		cfg:         cfg,
		validator:   validate,
		logger:      logger,
		jobs:        make(map[string]*dto.SyncJob),
	}
}

// UseQueue enables EnqueueSync. The queue's handler must be HandleSyncJob.
func (s *SyncService) UseQueue(queue jobEnqueuer) {
	s.queue = queue
}

type pushTask struct {
	student    models.Student
	externalID string
	total      int
}

// SyncAssignment pushes the resolved totals of one period to the platform.
// Students without a mapping are skipped; a failed push never aborts the others.
func (s *SyncService) SyncAssignment(ctx context.Context, req dto.SyncRequest) (*dto.SyncResult, error) {
	assignment, err := s.preconditions(ctx, req)
	if err != nil {
		return nil, err
	}
	link := *assignment.ExternalLink()

	if err := s.grades.EnsureLoaded(ctx, req.AssignmentID); err != nil {
		return nil, err
	}
	students, err := s.students.ListByPeriod(ctx, req.Period, true)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	mappings, err := s.mappings.ListByPeriod(ctx, req.Period)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list mappings")
	}
	externalIDs := make(map[int64]string, len(mappings))
	for _, m := range mappings {
		externalIDs[m.StudentID] = m.ExternalID
	}

	result := &dto.SyncResult{
		AssignmentID: req.AssignmentID,
		Period:       req.Period,
		Skipped:      []dto.SkippedStudent{},
		Failed:       []dto.FailedStudent{},
	}
	var tasks []pushTask
	for _, st := range students {
		v := s.grades.ResolveValue(models.GradeKey{AssignmentID: req.AssignmentID, Period: req.Period, StudentID: st.ID})
		if v.Grade == "" {
			continue
		}
		externalID, ok := externalIDs[st.ID]
		if !ok || externalID == "" {
			result.Skipped = append(result.Skipped, dto.SkippedStudent{
				StudentID:   st.ID,
				StudentName: st.Name,
				Code:        appErrors.ErrMappingMissing.Code,
			})
			continue
		}
		tasks = append(tasks, pushTask{student: st, externalID: externalID, total: gradecalc.Total(v.Grade, v.Extra)})
	}

	if len(tasks) == 0 && len(result.Skipped) == 0 {
		s.logger.Debug("nothing to sync", zap.String("assignment_id", req.AssignmentID), zap.String("period", req.Period))
		return result, nil
	}

	outcomes := make([]error, len(tasks))
	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for i := range tasks {
		i := i
		g.Go(func() error {
			outcomes[i] = s.push(ctx, link, tasks[i])
			return nil
		})
	}
	_ = g.Wait()

	for i, err := range outcomes {
		if err == nil {
			result.Successful++
			continue
		}
		t := tasks[i]
		if appErrors.HasCode(err, appErrors.ErrReauthRequired.Code) {
			result.ReauthRequired = true
		}
		result.Failed = append(result.Failed, dto.FailedStudent{
			StudentID:   t.student.ID,
			StudentName: t.student.Name,
			Code:        appErrors.FromError(err).Code,
			Message:     fmt.Sprintf("failed to sync grade for %s: %v", t.student.Name, err),
		})
	}

	s.metrics.ObserveSync(result.Successful, len(result.Skipped), len(result.Failed))
	s.logger.Info("assignment synced",
		zap.String("assignment_id", req.AssignmentID),
		zap.String("period", req.Period),
		zap.Int("successful", result.Successful),
		zap.Int("skipped", len(result.Skipped)),
		zap.Int("failed", len(result.Failed)),
		zap.Bool("reauth_required", result.ReauthRequired))
	return result, nil
}

// push updates the first submission of one student with their total.
func (s *SyncService) push(ctx context.Context, link models.ExternalLink, t pushTask) error {
	subs, err := s.platform.ListSubmissions(ctx, link, t.externalID)
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		return appErrors.Clone(appErrors.ErrExternalRequestFailure, "no submission found on the platform")
	}
	_, err = s.platform.PatchGrade(ctx, link, subs[0].ID, float64(t.total))
	return err
}

func (s *SyncService) preconditions(ctx context.Context, req dto.SyncRequest) (*models.Assignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid sync payload")
	}
	assignment, err := s.assignments.Get(ctx, req.AssignmentID)
	if err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "assignment does not exist")
		}
		return nil, err
	}
	if assignment.ExternalLink() == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "assignment is not linked to platform course work")
	}
	if !assignment.HasPeriod(req.Period) {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("assignment is not given to period %s", req.Period))
	}
	return assignment, nil
}

// EnqueueSync checks preconditions and queues the sync for background delivery.
func (s *SyncService) EnqueueSync(ctx context.Context, req dto.SyncRequest) (*dto.SyncJob, error) {
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "asynchronous sync is disabled")
	}
	if _, err := s.preconditions(ctx, req); err != nil {
		return nil, err
	}

	job := &dto.SyncJob{
		JobID:        uuid.NewString(),
		AssignmentID: req.AssignmentID,
		Period:       req.Period,
		Status:       dto.SyncJobQueued,
	}
	s.track(job)
	if _, err := s.queue.Enqueue(jobs.Job{ID: job.JobID, Type: SyncJobType, Payload: req}); err != nil {
		s.untrack(job.JobID)
		if errors.Is(err, jobs.ErrQueueFull) {
			return nil, appErrors.Clone(errQueueFull, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue sync")
	}
	return s.JobStatus(job.JobID)
}

// HandleSyncJob runs a queued sync. Runs with failed pushes return an error so
// the queue retries them; pushes are idempotent so successful students are
// simply written again.
func (s *SyncService) HandleSyncJob(ctx context.Context, job jobs.Job) error {
	req, ok := job.Payload.(dto.SyncRequest)
	if !ok {
		s.finish(job.ID, job.Attempt+1, dto.SyncJobFailed, nil, "unexpected job payload")
		return nil
	}

	res, err := s.SyncAssignment(ctx, req)
	switch {
	case err != nil && (appErrors.HasCode(err, appErrors.ErrPreconditionFailed.Code) || appErrors.HasCode(err, appErrors.ErrValidation.Code)):
		s.finish(job.ID, job.Attempt+1, dto.SyncJobFailed, nil, err.Error())
		return nil
	case err != nil:
		return err
	case res.ReauthRequired:
		s.finish(job.ID, job.Attempt+1, dto.SyncJobFailed, res, appErrors.ErrReauthRequired.Message)
		return nil
	case len(res.Failed) > 0:
		s.finish(job.ID, job.Attempt+1, dto.SyncJobRetrying, res, "")
		return fmt.Errorf("%d of %d students failed to sync", len(res.Failed), res.Successful+len(res.Failed))
	}
	s.finish(job.ID, job.Attempt+1, dto.SyncJobSucceeded, res, "")
	return nil
}

// OnJobResult records queue outcomes for failed attempts. It is the queue's ResultHook.
func (s *SyncService) OnJobResult(job jobs.Job, err error, final bool) {
	if err == nil {
		return
	}
	status := dto.SyncJobRetrying
	if final {
		status = dto.SyncJobFailed
	}
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	if tracked, ok := s.jobs[job.ID]; ok {
		tracked.Status = status
		tracked.Attempts = job.Attempt
		tracked.Error = err.Error()
	}
}

// JobStatus returns a copy of a tracked sync job.
func (s *SyncService) JobStatus(jobID string) (*dto.SyncJob, error) {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "sync job not found")
	}
	out := *job
	return &out, nil
}

func (s *SyncService) track(job *dto.SyncJob) {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	s.jobs[job.JobID] = job
	s.order = append(s.order, job.JobID)
	for len(s.order) > maxTrackedSyncJobs {
		delete(s.jobs, s.order[0])
		s.order = s.order[1:]
	}
}

func (s *SyncService) untrack(jobID string) {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	delete(s.jobs, jobID)
	for i, id := range s.order {
		if id == jobID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *SyncService) finish(jobID string, attempts int, status string, res *dto.SyncResult, msg string) {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return
	}
	job.Status = status
	job.Attempts = attempts
	job.Result = res
	job.Error = msg
}

// PullSubmission reads a student's grade back from the platform.
func (s *SyncService) PullSubmission(ctx context.Context, assignmentID, period string, studentID int64) (*dto.PulledSubmission, error) {
	assignment, err := s.preconditions(ctx, dto.SyncRequest{AssignmentID: assignmentID, Period: period})
	if err != nil {
		return nil, err
	}
	mappings, err := s.mappings.ListByPeriod(ctx, period)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list mappings")
	}
	var externalID string
	for _, m := range mappings {
		if m.StudentID == studentID {
			externalID = m.ExternalID
			break
		}
	}
	if externalID == "" {
		return nil, appErrors.Clone(appErrors.ErrMappingMissing, fmt.Sprintf("student %d has no platform mapping in period %s", studentID, period))
	}

	subs, err := s.platform.ListSubmissions(ctx, *assignment.ExternalLink(), externalID)
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no submission found on the platform")
	}
	sub := subs[0]
	return &dto.PulledSubmission{
		SubmissionID: sub.ID,
		State:        sub.State,
		StudentID:    studentID,
		Period:       period,
		Grade:        formatPoints(sub.AssignedGrade),
		DraftGrade:   formatPoints(sub.DraftGrade),
	}, nil
}

func formatPoints(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
