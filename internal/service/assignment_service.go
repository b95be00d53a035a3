package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/gradebook-sync-api/internal/dto"
	"github.com/noah-isme/gradebook-sync-api/internal/gradecalc"
	"github.com/noah-isme/gradebook-sync-api/internal/models"
	appErrors "github.com/noah-isme/gradebook-sync-api/pkg/errors"
)

const defaultMaxPoints = 100

type assignmentRepository interface {
	Create(ctx context.Context, a *models.Assignment) error
	Get(ctx context.Context, id string) (*models.Assignment, error)
	List(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, error)
	UpdateStatus(ctx context.Context, id string, status models.AssignmentStatus) error
	SetExternalLink(ctx context.Context, id string, link *models.ExternalLink) error
	Delete(ctx context.Context, id string) error
}

// assignmentForgetter drops in-memory state kept for an assignment.
type assignmentForgetter interface {
	Forget(assignmentID string)
}

// AssignmentService manages the assignment lifecycle.
type AssignmentService struct {
	repo      assignmentRepository
	calendar  *gradecalc.Calendar
	forget    []assignmentForgetter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAssignmentService constructs an AssignmentService. Forgetters are told
// about deleted assignments so timers and cached grades do not outlive them.
func NewAssignmentService(repo assignmentRepository, calendar *gradecalc.Calendar, validate *validator.Validate, logger *zap.Logger, forgetters ...assignmentForgetter) *AssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		repo:      repo,
		calendar:  calendar,
		forget:    forgetters,
		validator: validate,
		logger:    logger,
	}
}

// Create stores a new assignment, bucketing it into the grading period that contains its date.
func (s *AssignmentService) Create(ctx context.Context, req dto.CreateAssignmentRequest) (*models.Assignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}

	periods := make([]string, 0, len(req.Periods))
	seen := make(map[string]bool, len(req.Periods))
	for _, p := range req.Periods {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		periods = append(periods, p)
	}

	maxPoints := req.MaxPoints
	if maxPoints == 0 {
		maxPoints = defaultMaxPoints
	}

	a := &models.Assignment{
		Name:      strings.TrimSpace(req.Name),
		Date:      req.Date,
		Kind:      models.AssignmentKind(req.Kind),
		Subject:   strings.TrimSpace(req.Subject),
		Periods:   periods,
		MaxPoints: maxPoints,
		Status:    models.AssignmentNotStarted,
	}
	if s.calendar != nil {
		if label, ok := s.calendar.PeriodFor(req.Date); ok {
			a.GradingPeriod = label
		}
	}

	if err := s.repo.Create(ctx, a); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assignment")
	}
	s.logger.Info("assignment created",
		zap.String("assignment_id", a.ID),
		zap.String("grading_period", a.GradingPeriod),
		zap.Strings("periods", periods))
	return a, nil
}

// Get returns one assignment.
func (s *AssignmentService) Get(ctx context.Context, id string) (*models.Assignment, error) {
	return s.repo.Get(ctx, id)
}

// List returns assignments matching the query.
func (s *AssignmentService) List(ctx context.Context, query dto.AssignmentQuery) ([]models.Assignment, error) {
	filter := models.AssignmentFilter{Period: query.Period, GradingPeriod: query.GradingPeriod, Subject: query.Subject}
	if filter.GradingPeriod == gradecalc.AllPeriods {
		filter.GradingPeriod = ""
	}
	if filter.GradingPeriod != "" && s.calendar != nil && !s.calendar.Valid(filter.GradingPeriod) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown grading period")
	}
	items, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	if items == nil {
		items = []models.Assignment{}
	}
	return items, nil
}

// UpdateStatus changes the grading status of an assignment.
func (s *AssignmentService) UpdateStatus(ctx context.Context, id string, req dto.UpdateAssignmentStatusRequest) (*models.Assignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	if err := s.repo.UpdateStatus(ctx, id, models.AssignmentStatus(req.Status)); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// Link attaches the assignment to platform course work. Empty identifiers unlink it.
func (s *AssignmentService) Link(ctx context.Context, id string, req dto.LinkAssignmentRequest) (*models.Assignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid link payload")
	}
	var link *models.ExternalLink
	if req.CourseID != "" {
		link = &models.ExternalLink{CourseID: strings.TrimSpace(req.CourseID), CourseWorkID: strings.TrimSpace(req.CourseWorkID)}
	}
	if err := s.repo.SetExternalLink(ctx, id, link); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// Delete removes an assignment with its grades, tags and link. Timers and
// in-memory grades are dropped first so no flush can write rows back after
// the cascade.
func (s *AssignmentService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	for _, f := range s.forget {
		f.Forget(id)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("assignment deleted", zap.String("assignment_id", id))
	return nil
}
