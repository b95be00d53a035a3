package gradestate

import (
	"sort"

	"github.com/noah-isme/gradebook-sync-api/internal/models"
)

// PendingEdit is one queued cell. A nil field was not edited.
type PendingEdit struct {
	StudentID int64
	Grade     *string
	Extra     *string
}

// Snapshot is an immutable copy of an assignment's Unsaved layer, grouped by period.
type Snapshot struct {
	AssignmentID string
	Periods      map[string][]PendingEdit
}

// Len returns the number of pending cells.
func (s Snapshot) Len() int {
	n := 0
	for _, edits := range s.Periods {
		n += len(edits)
	}
	return n
}

// Empty reports whether there is nothing to flush.
func (s Snapshot) Empty() bool { return s.Len() == 0 }

func (s Snapshot) each(fn func(models.GradeKey, PendingEdit)) {
	for period, edits := range s.Periods {
		for _, e := range edits {
			fn(models.GradeKey{AssignmentID: s.AssignmentID, Period: period, StudentID: e.StudentID}, e)
		}
	}
}

func strPtr(v string) *string { return &v }

// Snapshot copies the Unsaved entries of an assignment.
func (s *Store) Snapshot(assignmentID string) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{AssignmentID: assignmentID, Periods: make(map[string][]PendingEdit)}
	for key, u := range s.unsaved {
		if key.AssignmentID != assignmentID || u.empty() {
			continue
		}
		edit := PendingEdit{StudentID: key.StudentID}
		if u.hasGrade {
			edit.Grade = strPtr(u.grade)
		}
		if u.hasExtra {
			edit.Extra = strPtr(u.extra)
		}
		snap.Periods[key.Period] = append(snap.Periods[key.Period], edit)
	}
	for _, edits := range snap.Periods {
		sort.Slice(edits, func(i, j int) bool { return edits[i].StudentID < edits[j].StudentID })
	}
	return snap
}

// ClearAfterFlush records a successful flush: flushed values become Persisted,
// Unsaved entries still equal to the flushed value are dropped, and pairs with
// nothing left pending stop editing. Edits made after the snapshot survive.
func (s *Store) ClearAfterFlush(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap.each(func(key models.GradeKey, e PendingEdit) {
		p := s.persisted[key]
		u, queued := s.unsaved[key]
		if e.Grade != nil {
			p.Grade = *e.Grade
			if queued && u.hasGrade && u.grade == *e.Grade {
				u.unset(fieldGrade)
			}
		}
		if e.Extra != nil {
			p.Extra = *e.Extra
			if queued && u.hasExtra && u.extra == *e.Extra {
				u.unset(fieldExtra)
			}
		}
		if p.Grade == "" && p.Extra == "" {
			delete(s.persisted, key)
		} else {
			s.persisted[key] = p
		}
		if queued {
			if u.empty() {
				delete(s.unsaved, key)
			} else {
				s.unsaved[key] = u
			}
		}
	})

	for period := range snap.Periods {
		pr := pair{assignmentID: snap.AssignmentID, period: period}
		if !s.hasPending(pr) {
			delete(s.editing, pr)
		}
	}
}

func (s *Store) hasPending(p pair) bool {
	for key := range s.unsaved {
		if pairOf(key) == p {
			return true
		}
	}
	for key := range s.local {
		if pairOf(key) == p {
			return true
		}
	}
	return false
}

// Reconcile computes the targeted writes that turn the current persisted rows
// into the desired state: current rows overlaid with the snapshot. Rows the
// snapshot does not touch are never rewritten. A cell whose grade and extra
// points are both empty is deleted.
func Reconcile(current []models.Grade, snap Snapshot) models.GradeChanges {
	rows := make(map[models.GradeKey]models.Grade, len(current))
	for _, g := range current {
		if g.AssignmentID == snap.AssignmentID {
			rows[g.Key()] = g
		}
	}

	var changes models.GradeChanges
	snap.each(func(key models.GradeKey, e PendingEdit) {
		existing, exists := rows[key]
		desired := existing
		desired.AssignmentID, desired.Period, desired.StudentID = key.AssignmentID, key.Period, key.StudentID
		if e.Grade != nil {
			desired.Grade = *e.Grade
		}
		if e.Extra != nil {
			desired.ExtraPoints = *e.Extra
		}

		switch {
		case desired.Grade == "" && desired.ExtraPoints == "":
			if exists {
				changes.Deletes = append(changes.Deletes, key)
			}
		case !exists || existing.Grade != desired.Grade || existing.ExtraPoints != desired.ExtraPoints:
			changes.Upserts = append(changes.Upserts, desired)
		}
	})

	sort.Slice(changes.Upserts, func(i, j int) bool {
		return lessKey(changes.Upserts[i].Key(), changes.Upserts[j].Key())
	})
	sort.Slice(changes.Deletes, func(i, j int) bool { return lessKey(changes.Deletes[i], changes.Deletes[j]) })
	return changes
}

func lessKey(a, b models.GradeKey) bool {
	if a.Period != b.Period {
		return a.Period < b.Period
	}
	return a.StudentID < b.StudentID
}
