// Package gradestate keeps the in-memory gradebook: per cell, a Local draft,
// an Unsaved value queued for persistence and the last Persisted value.
package gradestate

import (
	"sort"
	"sync"

	"github.com/noah-isme/gradebook-sync-api/internal/gradecalc"
	"github.com/noah-isme/gradebook-sync-api/internal/models"
)

// Value is the pair of independent sub-fields stored per cell.
type Value struct {
	Grade string `json:"grade"`
	Extra string `json:"extra_points"`
}

// entry holds the sub-fields present in one layer.
type entry struct {
	grade    string
	extra    string
	hasGrade bool
	hasExtra bool
}

func (e entry) empty() bool { return !e.hasGrade && !e.hasExtra }

type field int

const (
	fieldGrade field = iota
	fieldExtra
)

func (e entry) get(f field) (string, bool) {
	if f == fieldGrade {
		return e.grade, e.hasGrade
	}
	return e.extra, e.hasExtra
}

func (e *entry) set(f field, v string) {
	if f == fieldGrade {
		e.grade, e.hasGrade = v, true
		return
	}
	e.extra, e.hasExtra = v, true
}

func (e *entry) unset(f field) {
	if f == fieldGrade {
		e.grade, e.hasGrade = "", false
		return
	}
	e.extra, e.hasExtra = "", false
}

type pair struct {
	assignmentID string
	period       string
}

func pairOf(k models.GradeKey) pair { return pair{assignmentID: k.AssignmentID, period: k.Period} }

// Store owns the three grade layers. It is safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	local     map[models.GradeKey]entry
	unsaved   map[models.GradeKey]entry
	persisted map[models.GradeKey]Value
	editing   map[pair]bool
	loaded    map[string]bool
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		local:     make(map[models.GradeKey]entry),
		unsaved:   make(map[models.GradeKey]entry),
		persisted: make(map[models.GradeKey]Value),
		editing:   make(map[pair]bool),
		loaded:    make(map[string]bool),
	}
}

// Resolve returns the grade shown for key.
func (s *Store) Resolve(key models.GradeKey) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolve(key, fieldGrade)
}

// ResolveExtra returns the extra points shown for key.
func (s *Store) ResolveExtra(key models.GradeKey) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolve(key, fieldExtra)
}

// ResolveValue resolves both sub-fields under one lock.
func (s *Store) ResolveValue(key models.GradeKey) Value {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Value{Grade: s.resolve(key, fieldGrade), Extra: s.resolve(key, fieldExtra)}
}

// resolve applies the layer priority: a non-empty Local draft, then Unsaved
// while the pair is editing, then a Persisted value that is not the unset sentinel.
func (s *Store) resolve(key models.GradeKey, f field) string {
	if v, ok := s.local[key].get(f); ok && v != "" {
		return v
	}
	return s.resolveQueued(key, f)
}

// resolveQueued is resolve without the Local draft: the value a flush would
// leave persisted if nothing else changed.
func (s *Store) resolveQueued(key models.GradeKey, f field) string {
	if s.editing[pairOf(key)] {
		if v, ok := s.unsaved[key].get(f); ok {
			return v
		}
	}
	p, ok := s.persisted[key]
	if !ok {
		return ""
	}
	v := p.Grade
	if f == fieldExtra {
		v = p.Extra
	}
	if gradecalc.IsUnset(v) {
		return ""
	}
	return v
}

// SetLocal records an in-progress draft without queueing it for persistence.
func (s *Store) SetLocal(key models.GradeKey, grade string) {
	s.setLocal(key, fieldGrade, grade)
}

// SetLocalExtra is SetLocal for extra points.
func (s *Store) SetLocalExtra(key models.GradeKey, extra string) {
	s.setLocal(key, fieldExtra, extra)
}

func (s *Store) setLocal(key models.GradeKey, f field, v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.local[key]
	e.set(f, v)
	s.local[key] = e
}

// DiscardLocal drops the draft for key without folding it into Unsaved.
func (s *Store) DiscardLocal(key models.GradeKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.local, key)
}

// Edit writes a grade into Local and Unsaved and marks the pair as editing.
// It reports false when grade equals the value already queued or persisted;
// a Local draft for the sub-field is then dropped.
func (s *Store) Edit(key models.GradeKey, grade string) bool {
	return s.edit(key, fieldGrade, grade)
}

// EditExtra is Edit for extra points.
func (s *Store) EditExtra(key models.GradeKey, extra string) bool {
	return s.edit(key, fieldExtra, extra)
}

func (s *Store) edit(key models.GradeKey, f field, v string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resolveQueued(key, f) == v {
		s.dropLocal(key, f)
		return false
	}
	l := s.local[key]
	l.set(f, v)
	s.local[key] = l
	u := s.unsaved[key]
	u.set(f, v)
	s.unsaved[key] = u
	s.editing[pairOf(key)] = true
	return true
}

func (s *Store) dropLocal(key models.GradeKey, f field) {
	l, ok := s.local[key]
	if !ok {
		return
	}
	l.unset(f)
	if l.empty() {
		delete(s.local, key)
		return
	}
	s.local[key] = l
}

// CommitToUnsaved folds the Local draft for key into Unsaved and clears it.
func (s *Store) CommitToUnsaved(key models.GradeKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit(key)
}

// CommitAssignment folds every Local draft of an assignment and returns how many were folded.
func (s *Store) CommitAssignment(assignmentID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for key := range s.local {
		if key.AssignmentID == assignmentID && s.commit(key) {
			n++
		}
	}
	return n
}

func (s *Store) commit(key models.GradeKey) bool {
	l, ok := s.local[key]
	if !ok {
		return false
	}
	delete(s.local, key)
	if l.empty() {
		return false
	}
	u := s.unsaved[key]
	for _, f := range []field{fieldGrade, fieldExtra} {
		if v, has := l.get(f); has {
			u.set(f, v)
		}
	}
	s.unsaved[key] = u
	s.editing[pairOf(key)] = true
	return true
}

// Editing reports whether the pair has edits queued for persistence.
func (s *Store) Editing(assignmentID, period string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.editing[pair{assignmentID: assignmentID, period: period}]
}

// PendingAssignments lists assignments with Local or Unsaved entries, sorted.
func (s *Store) PendingAssignments() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	for key := range s.unsaved {
		seen[key.AssignmentID] = struct{}{}
	}
	for key := range s.local {
		seen[key.AssignmentID] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// PendingKeys lists the cells of one student in a period that hold Local or
// Unsaved values, sorted by assignment.
func (s *Store) PendingKeys(studentID int64, period string) []models.GradeKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[models.GradeKey]struct{})
	for _, layer := range []map[models.GradeKey]entry{s.local, s.unsaved} {
		for key := range layer {
			if key.StudentID == studentID && key.Period == period {
				seen[key] = struct{}{}
			}
		}
	}
	out := make([]models.GradeKey, 0, len(seen))
	for key := range seen {
		out = append(out, key)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssignmentID < out[j].AssignmentID })
	return out
}

// LoadPersisted replaces the Persisted layer of an assignment with rows read from the store.
func (s *Store) LoadPersisted(assignmentID string, grades []models.Grade) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.persisted {
		if key.AssignmentID == assignmentID {
			delete(s.persisted, key)
		}
	}
	for _, g := range grades {
		if g.AssignmentID != assignmentID {
			continue
		}
		s.persisted[g.Key()] = Value{Grade: g.Grade, Extra: g.ExtraPoints}
	}
	s.loaded[assignmentID] = true
}

// Loaded reports whether LoadPersisted ran for the assignment.
func (s *Store) Loaded(assignmentID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded[assignmentID]
}

// Forget drops every layer of an assignment.
func (s *Store) Forget(assignmentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.local {
		if key.AssignmentID == assignmentID {
			delete(s.local, key)
		}
	}
	for key := range s.unsaved {
		if key.AssignmentID == assignmentID {
			delete(s.unsaved, key)
		}
	}
	for key := range s.persisted {
		if key.AssignmentID == assignmentID {
			delete(s.persisted, key)
		}
	}
	for p := range s.editing {
		if p.assignmentID == assignmentID {
			delete(s.editing, p)
		}
	}
	delete(s.loaded, assignmentID)
}
