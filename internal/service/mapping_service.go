package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/gradebook-sync-api/internal/dto"
	"github.com/noah-isme/gradebook-sync-api/internal/matching"
	"github.com/noah-isme/gradebook-sync-api/internal/models"
	"github.com/noah-isme/gradebook-sync-api/internal/platform"
	appErrors "github.com/noah-isme/gradebook-sync-api/pkg/errors"
)

const (
	mappingLockPrefix  = "gradebook:mapping-lock:"
	mappingCachePrefix = "gradebook:mappings:"
)

type rosterFetcher interface {
	FetchRoster(ctx context.Context, courseID string) ([]platform.Student, error)
}

type mappingRepository interface {
	ListByPeriod(ctx context.Context, period string) ([]models.StudentMapping, error)
	ReplaceForPeriod(ctx context.Context, period string, mappings []models.StudentMapping) error
	Upsert(ctx context.Context, m *models.StudentMapping) error
	UpsertCourse(ctx context.Context, cm *models.CourseMapping) error
	GetCourse(ctx context.Context, period, subject string) (*models.CourseMapping, error)
}

type lockManager interface {
	AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, token string) error
}

// MappingConfig tunes identity matching.
type MappingConfig struct {
	Threshold float64
	CacheTTL  time.Duration
	LockTTL   time.Duration
}

// MappingService links local students to platform users.
type MappingService struct {
	roster    rosterFetcher
	students  rosterReader
	repo      mappingRepository
	locks     lockManager
	cache     *CacheService
	cfg       MappingConfig
	validator *validator.Validate
	logger    *zap.Logger
}

// NewMappingService constructs a MappingService.
func NewMappingService(roster rosterFetcher, students rosterReader, repo mappingRepository, locks lockManager, cache *CacheService, cfg MappingConfig, validate *validator.Validate, logger *zap.Logger) *MappingService {
	if cfg.Threshold <= 0 {
		cfg.Threshold = matching.DefaultThreshold
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 2 * time.Minute
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MappingService{
		roster:    roster,
		students:  students,
		repo:      repo,
		locks:     locks,
		cache:     cache,
		cfg:       cfg,
		validator: validate,
		logger:    logger,
	}
}

// AutoMatch fetches the course roster, matches it against the period's active
// students and replaces the period's mappings with the result. Students left
// unmatched are reported for manual resolution.
func (s *MappingService) AutoMatch(ctx context.Context, req dto.AutoMatchRequest) (*dto.AutoMatchReport, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid matching payload")
	}

	lockKey := mappingLockPrefix + req.Period
	token := uuid.NewString()
	if s.locks != nil {
		ok, err := s.locks.AcquireLock(ctx, lockKey, token, s.cfg.LockTTL)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock mapping setup")
		}
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("mapping setup already in progress for period %s", req.Period))
		}
		defer func() {
			if err := s.locks.ReleaseLock(context.Background(), lockKey, token); err != nil {
				s.logger.Warn("release mapping lock failed", zap.String("period", req.Period), zap.Error(err))
			}
		}()
	}

	courseID := req.CourseID
	if courseID == "" {
		course, err := s.repo.GetCourse(ctx, req.Period, req.Subject)
		if err != nil {
			if errors.Is(err, appErrors.ErrNotFound) {
				return nil, appErrors.Clone(appErrors.ErrValidation, "courseId is required for a period without a mapped course")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course mapping")
		}
		courseID = course.ExternalCourseID
	}

	roster, err := s.roster.FetchRoster(ctx, courseID)
	if err != nil {
		return nil, err
	}
	students, err := s.students.ListByPeriod(ctx, req.Period, true)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}

	locals := make([]matching.LocalStudent, 0, len(students))
	for _, st := range students {
		locals = append(locals, matching.LocalStudent{ID: st.ID, Name: st.Name})
	}
	externals := make([]matching.ExternalStudent, 0, len(roster))
	for _, r := range roster {
		externals = append(externals, matching.ExternalStudent{
			ID:         r.UserID,
			GivenName:  r.GivenName,
			FamilyName: r.FamilyName,
			FullName:   r.FullName,
			Email:      r.Email,
		})
	}

	result := matching.MatchRoster(locals, externals, s.cfg.Threshold)

	mappings := make([]models.StudentMapping, 0, len(result.Matches))
	for _, m := range result.Matches {
		mappings = append(mappings, toStudentMapping(req.Period, m))
	}
	if err := s.repo.ReplaceForPeriod(ctx, req.Period, mappings); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store mappings")
	}

	completed := len(result.Unmatched) == 0
	if err := s.repo.UpsertCourse(ctx, &models.CourseMapping{
		ExternalCourseID: courseID,
		Period:           req.Period,
		Subject:          req.Subject,
		Completed:        completed,
	}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store course mapping")
	}
	s.invalidate(ctx, req.Period)

	report := &dto.AutoMatchReport{
		CourseID:          courseID,
		Period:            req.Period,
		Matched:           len(result.Matches),
		Completed:         completed,
		Issues:            make([]dto.MatchIssue, 0, len(result.Unmatched)),
		UnclaimedExternal: make([]string, 0, len(result.UnclaimedExternal)),
	}
	for _, u := range result.Unmatched {
		issue := dto.MatchIssue{
			Code:        appErrors.ErrMatchingAmbiguity.Code,
			StudentID:   u.Student.ID,
			StudentName: u.Student.Name,
		}
		for _, c := range u.Candidates {
			issue.Candidates = append(issue.Candidates, dto.MatchCandidate{
				ExternalID:   c.ExternalID,
				ExternalName: c.ExternalName,
				Score:        c.Score,
			})
		}
		report.Issues = append(report.Issues, issue)
	}
	for _, e := range result.UnclaimedExternal {
		report.UnclaimedExternal = append(report.UnclaimedExternal, e.ID)
	}

	s.logger.Info("student mappings replaced",
		zap.String("period", req.Period),
		zap.String("course_id", courseID),
		zap.Int("matched", report.Matched),
		zap.Int("unmatched", len(report.Issues)))
	return report, nil
}

// ManualMatch pairs one student with a platform user chosen by the teacher.
func (s *MappingService) ManualMatch(ctx context.Context, req dto.ManualMatchRequest) (*models.StudentMapping, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid manual match payload")
	}
	student, err := s.students.Get(ctx, req.StudentID)
	if err != nil {
		return nil, err
	}
	if student.Period != req.Period {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("student %d is not enrolled in period %s", req.StudentID, req.Period))
	}

	existing, err := s.repo.ListByPeriod(ctx, req.Period)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list mappings")
	}
	for _, m := range existing {
		if m.ExternalID == req.ExternalID && m.StudentID != req.StudentID {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("platform user %s is already mapped to student %d", req.ExternalID, m.StudentID))
		}
	}

	match := matching.Manual(
		matching.LocalStudent{ID: student.ID, Name: student.Name},
		matching.ExternalStudent{ID: req.ExternalID, FullName: req.ExternalName, Email: req.ExternalEmail},
	)
	mapping := toStudentMapping(req.Period, match)
	if err := s.repo.Upsert(ctx, &mapping); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store mapping")
	}
	s.invalidate(ctx, req.Period)
	s.logger.Info("student manually matched",
		zap.Int64("student_id", req.StudentID),
		zap.String("period", req.Period),
		zap.String("external_id", req.ExternalID),
		zap.Float64("name_score", match.Score))
	return &mapping, nil
}

func toStudentMapping(period string, m matching.Match) models.StudentMapping {
	return models.StudentMapping{
		StudentID:       m.StudentID,
		Period:          period,
		ExternalID:      m.ExternalID,
		ExternalEmail:   m.ExternalEmail,
		ManuallyMatched: m.Manual,
	}
}

// ListMappings returns the mappings of a period, served from cache when possible.
func (s *MappingService) ListMappings(ctx context.Context, period string) ([]models.StudentMapping, error) {
	key := mappingCachePrefix + period
	var cached []models.StudentMapping
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}

	mappings, err := s.repo.ListByPeriod(ctx, period)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list mappings")
	}
	if mappings == nil {
		mappings = []models.StudentMapping{}
	}
	_ = s.cache.Set(ctx, key, mappings, s.cfg.CacheTTL)
	return mappings, nil
}

func (s *MappingService) invalidate(ctx context.Context, period string) {
	_ = s.cache.Invalidate(ctx, mappingCachePrefix+period)
}
