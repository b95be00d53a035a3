// Package scheduler debounces gradebook edits per assignment and flushes them
// to the grade repository as a reconciled set of targeted writes.
package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/gradebook-sync-api/internal/gradestate"
	"github.com/noah-isme/gradebook-sync-api/internal/models"
	appErrors "github.com/noah-isme/gradebook-sync-api/pkg/errors"
)

// DefaultDebounce is the quiet period after the last edit before a flush.
const DefaultDebounce = 2500 * time.Millisecond

type gradeWriter interface {
	ListByAssignment(ctx context.Context, assignmentID string) ([]models.Grade, error)
	ApplyChanges(ctx context.Context, assignmentID string, changes models.GradeChanges) error
}

// FlushResult describes one completed flush attempt.
type FlushResult struct {
	AssignmentID string        `json:"assignment_id"`
	Pending      int           `json:"pending"`
	Upserted     int           `json:"upserted"`
	Deleted      int           `json:"deleted"`
	Duration     time.Duration `json:"duration"`
	Err          error         `json:"-"`
}

// Observer is notified after every flush, successful or not.
type Observer interface {
	ObserveFlush(result FlushResult)
}

// Config tunes the scheduler.
type Config struct {
	Debounce     time.Duration
	FlushTimeout time.Duration
	Logger       *zap.Logger
	Observer     Observer
}

type assignmentState struct {
	timer *time.Timer
	flush sync.Mutex
	// gone is set under flush once the assignment is forgotten.
	gone bool
}

// Scheduler owns one debounce timer per assignment.
type Scheduler struct {
	store   *gradestate.Store
	writer  gradeWriter
	cfg     Config
	logger  *zap.Logger
	baseCtx context.Context

	mu     sync.Mutex
	states map[string]*assignmentState
	closed bool
	wg     sync.WaitGroup
}

// New constructs a scheduler flushing store into writer.
func New(store *gradestate.Store, writer gradeWriter, cfg Config) *Scheduler {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Scheduler{
		store:   store,
		writer:  writer,
		cfg:     cfg,
		logger:  cfg.Logger,
		baseCtx: context.Background(),
		states:  make(map[string]*assignmentState),
	}
}

func (s *Scheduler) state(assignmentID string) *assignmentState {
	st, ok := s.states[assignmentID]
	if !ok {
		st = &assignmentState{}
		s.states[assignmentID] = st
	}
	return st
}

// Touch (re)starts the debounce timer of an assignment. Repeated calls within
// the window push the flush back; they never queue extra flushes.
func (s *Scheduler) Touch(assignmentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	st := s.state(assignmentID)
	if st.timer != nil {
		st.timer.Stop()
	}
	st.timer = time.AfterFunc(s.cfg.Debounce, func() { s.fire(assignmentID) })
}

// Pending reports whether a debounce timer is armed for the assignment.
func (s *Scheduler) Pending(assignmentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[assignmentID]
	return ok && st.timer != nil
}

func (s *Scheduler) fire(assignmentID string) {
	s.mu.Lock()
	st, ok := s.states[assignmentID]
	if s.closed || !ok {
		s.mu.Unlock()
		return
	}
	st.timer = nil
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	ctx, cancel := context.WithTimeout(s.baseCtx, s.cfg.FlushTimeout)
	defer cancel()
	// Failures are reported through the observer and logs; Unsaved stays queued.
	_, _ = s.flushState(ctx, assignmentID, st)
}

// FlushNow cancels any armed timer and flushes the assignment immediately.
func (s *Scheduler) FlushNow(ctx context.Context, assignmentID string) (FlushResult, error) {
	s.mu.Lock()
	if st, ok := s.states[assignmentID]; ok && st.timer != nil {
		st.timer.Stop()
		st.timer = nil
	}
	s.mu.Unlock()
	return s.flush(ctx, assignmentID)
}

// FlushAll flushes every assignment with pending edits. Assignments are
// flushed independently; the first error is returned after all were attempted.
func (s *Scheduler) FlushAll(ctx context.Context) ([]FlushResult, error) {
	ids := s.store.PendingAssignments()
	s.mu.Lock()
	for id, st := range s.states {
		if st.timer != nil {
			ids = append(ids, id)
		}
	}
	s.mu.Unlock()
	ids = dedupe(ids)

	results := make([]FlushResult, 0, len(ids))
	var firstErr error
	for _, id := range ids {
		res, err := s.FlushNow(ctx, id)
		results = append(results, res)
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return results, firstErr
}

// flush folds Local drafts, snapshots Unsaved, reconciles against the rows
// currently persisted and applies the difference. Flushes of one assignment
// never overlap; an edit landing mid-flush is picked up by the next cycle.
func (s *Scheduler) flush(ctx context.Context, assignmentID string) (FlushResult, error) {
	s.mu.Lock()
	st := s.state(assignmentID)
	s.mu.Unlock()
	return s.flushState(ctx, assignmentID, st)
}

func (s *Scheduler) flushState(ctx context.Context, assignmentID string, st *assignmentState) (FlushResult, error) {
	st.flush.Lock()
	defer st.flush.Unlock()
	if st.gone {
		return FlushResult{AssignmentID: assignmentID}, nil
	}

	start := time.Now()
	s.store.CommitAssignment(assignmentID)
	snap := s.store.Snapshot(assignmentID)
	result := FlushResult{AssignmentID: assignmentID, Pending: snap.Len()}
	if snap.Empty() {
		return result, nil
	}

	err := s.persist(ctx, snap, &result)
	result.Duration = time.Since(start)
	result.Err = err
	if s.cfg.Observer != nil {
		s.cfg.Observer.ObserveFlush(result)
	}
	if err != nil {
		s.logger.Error("grade flush failed",
			zap.String("assignment_id", assignmentID),
			zap.Int("pending", result.Pending),
			zap.Error(err))
		return result, err
	}

	s.store.ClearAfterFlush(snap)
	s.logger.Debug("grades flushed",
		zap.String("assignment_id", assignmentID),
		zap.Int("upserted", result.Upserted),
		zap.Int("deleted", result.Deleted),
		zap.Duration("duration", result.Duration))
	return result, nil
}

func (s *Scheduler) persist(ctx context.Context, snap gradestate.Snapshot, result *FlushResult) error {
	current, err := s.writer.ListByAssignment(ctx, snap.AssignmentID)
	if err != nil {
		return appErrors.WrapAs(appErrors.ErrPersistenceFailure, err, "failed to read grades before flush")
	}
	changes := gradestate.Reconcile(current, snap)
	result.Upserted, result.Deleted = len(changes.Upserts), len(changes.Deletes)
	if changes.Empty() {
		return nil
	}
	if err := s.writer.ApplyChanges(ctx, snap.AssignmentID, changes); err != nil {
		return appErrors.WrapAs(appErrors.ErrPersistenceFailure, err, "failed to persist grades")
	}
	return nil
}

// Forget stops the timer of a deleted assignment and waits for a flush in
// flight to finish. Timer flushes that already fired become no-ops.
func (s *Scheduler) Forget(assignmentID string) {
	s.mu.Lock()
	st, ok := s.states[assignmentID]
	if ok {
		if st.timer != nil {
			st.timer.Stop()
			st.timer = nil
		}
		delete(s.states, assignmentID)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	st.flush.Lock()
	st.gone = true
	st.flush.Unlock()
}

// Close stops all armed timers and waits for in-flight timer flushes.
// Pending edits are left in the store; call FlushAll first to persist them.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	for _, st := range s.states {
		if st.timer != nil {
			st.timer.Stop()
			st.timer = nil
		}
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func dedupe(ids []string) []string {
	sort.Strings(ids)
	out := ids[:0]
	for i, id := range ids {
		if i == 0 || id != ids[i-1] {
			out = append(out, id)
		}
	}
	return out
}
