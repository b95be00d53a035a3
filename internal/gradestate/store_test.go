package gradestate

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gradebook-sync-api/internal/models"
)

func key(student int64) models.GradeKey {
	return models.GradeKey{AssignmentID: "a-1", Period: "2", StudentID: student}
}

func TestResolvePriority(t *testing.T) {
	s := NewStore()
	s.LoadPersisted("a-1", []models.Grade{{AssignmentID: "a-1", Period: "2", StudentID: 7, Grade: "85"}})
	require.Equal(t, "85", s.Resolve(key(7)))

	require.True(t, s.Edit(key(7), "90"))
	s.SetLocal(key(7), "92")
	assert.Equal(t, "92", s.Resolve(key(7)))

	s.DiscardLocal(key(7))
	assert.Equal(t, "90", s.Resolve(key(7)))

	s.ClearAfterFlush(s.Snapshot("a-1"))
	assert.Equal(t, "90", s.Resolve(key(7)))
	assert.False(t, s.Editing("a-1", "2"))
}

func TestResolveTreatsSentinelAsUnset(t *testing.T) {
	s := NewStore()
	s.LoadPersisted("a-1", []models.Grade{
		{AssignmentID: "a-1", Period: "2", StudentID: 1, Grade: "0", ExtraPoints: "0"},
		{AssignmentID: "a-1", Period: "2", StudentID: 2, Grade: "", ExtraPoints: "5"},
	})

	assert.Empty(t, s.Resolve(key(1)))
	assert.Empty(t, s.ResolveExtra(key(1)))
	assert.Empty(t, s.Resolve(key(2)))
	assert.Equal(t, Value{Extra: "5"}, s.ResolveValue(key(2)))
	assert.Empty(t, s.Resolve(key(3)))
}

func TestUnsavedOnlyCountsWhileEditing(t *testing.T) {
	s := NewStore()
	s.LoadPersisted("a-1", []models.Grade{{AssignmentID: "a-1", Period: "2", StudentID: 7, Grade: "85"}})

	s.Edit(key(7), "")
	s.CommitToUnsaved(key(7))
	assert.True(t, s.Editing("a-1", "2"))
	assert.Empty(t, s.Resolve(key(7)), "a cleared grade queued for persistence hides the persisted value")

	s.ClearAfterFlush(s.Snapshot("a-1"))
	assert.Empty(t, s.Resolve(key(7)))
	assert.False(t, s.Editing("a-1", "2"))
}

func TestEditIsNoopForUnchangedValue(t *testing.T) {
	s := NewStore()
	s.LoadPersisted("a-1", []models.Grade{{AssignmentID: "a-1", Period: "2", StudentID: 7, Grade: "85"}})

	assert.False(t, s.Edit(key(7), "85"))
	assert.False(t, s.Editing("a-1", "2"))
	assert.Empty(t, s.PendingAssignments())

	assert.True(t, s.Edit(key(7), "70"))
	assert.True(t, s.Edit(key(7), "85"), "reverting to the persisted value must be queued too")
	assert.Equal(t, "85", s.Resolve(key(7)))
}

func TestEditQueuesDraftCommittedWithSameValue(t *testing.T) {
	s := NewStore()
	s.LoadPersisted("a-1", []models.Grade{{AssignmentID: "a-1", Period: "2", StudentID: 7, Grade: "80"}})

	s.SetLocal(key(7), "92")
	require.True(t, s.Edit(key(7), "92"))
	assert.True(t, s.Editing("a-1", "2"))

	snap := s.Snapshot("a-1")
	require.Equal(t, 1, snap.Len())
	assert.Equal(t, []string{"a-1"}, s.PendingAssignments())
}

func TestEditBackToQueuedValueDropsDraft(t *testing.T) {
	s := NewStore()
	s.LoadPersisted("a-1", []models.Grade{{AssignmentID: "a-1", Period: "2", StudentID: 7, Grade: "80", ExtraPoints: "3"}})

	s.SetLocal(key(7), "95")
	s.SetLocalExtra(key(7), "4")
	assert.False(t, s.Edit(key(7), "80"))
	assert.Equal(t, "80", s.Resolve(key(7)))
	assert.Equal(t, "4", s.ResolveExtra(key(7)), "extra draft is untouched")
	assert.False(t, s.Editing("a-1", "2"))
}

func TestPendingKeysForStudent(t *testing.T) {
	s := NewStore()
	s.Edit(models.GradeKey{AssignmentID: "b", Period: "2", StudentID: 7}, "90")
	s.SetLocal(models.GradeKey{AssignmentID: "a", Period: "2", StudentID: 7}, "60")
	s.Edit(models.GradeKey{AssignmentID: "a", Period: "3", StudentID: 7}, "50")
	s.Edit(models.GradeKey{AssignmentID: "a", Period: "2", StudentID: 8}, "40")

	keys := s.PendingKeys(7, "2")
	require.Len(t, keys, 2)
	assert.Equal(t, "a", keys[0].AssignmentID)
	assert.Equal(t, "b", keys[1].AssignmentID)
}

func TestGradeAndExtraAreIndependent(t *testing.T) {
	s := NewStore()
	s.LoadPersisted("a-1", []models.Grade{{AssignmentID: "a-1", Period: "2", StudentID: 7, Grade: "85", ExtraPoints: "3"}})

	require.True(t, s.EditExtra(key(7), "10"))
	assert.Equal(t, "85", s.Resolve(key(7)))
	assert.Equal(t, "10", s.ResolveExtra(key(7)))

	snap := s.Snapshot("a-1")
	require.Equal(t, 1, snap.Len())
	edit := snap.Periods["2"][0]
	assert.Nil(t, edit.Grade)
	require.NotNil(t, edit.Extra)
	assert.Equal(t, "10", *edit.Extra)
}

func TestCommitAssignmentFoldsDrafts(t *testing.T) {
	s := NewStore()
	s.SetLocal(key(1), "77")
	s.SetLocalExtra(key(2), "4")
	s.SetLocal(models.GradeKey{AssignmentID: "a-2", Period: "2", StudentID: 1}, "60")

	assert.Equal(t, 2, s.CommitAssignment("a-1"))
	assert.True(t, s.Editing("a-1", "2"))
	assert.Equal(t, "77", s.Resolve(key(1)))
	assert.Equal(t, 2, s.Snapshot("a-1").Len())
	assert.Equal(t, 0, s.Snapshot("a-2").Len())
	assert.Equal(t, []string{"a-1", "a-2"}, s.PendingAssignments())
}

func TestClearAfterFlushKeepsLaterEdits(t *testing.T) {
	s := NewStore()
	s.Edit(key(1), "80")
	s.Edit(key(2), "70")
	snap := s.Snapshot("a-1")

	s.Edit(key(1), "95")

	s.ClearAfterFlush(snap)
	assert.True(t, s.Editing("a-1", "2"))
	assert.Equal(t, "95", s.Resolve(key(1)))
	assert.Equal(t, "70", s.Resolve(key(2)))

	next := s.Snapshot("a-1")
	require.Equal(t, 1, next.Len())
	assert.Equal(t, int64(1), next.Periods["2"][0].StudentID)
}

func TestForgetDropsAssignment(t *testing.T) {
	s := NewStore()
	s.LoadPersisted("a-1", []models.Grade{{AssignmentID: "a-1", Period: "2", StudentID: 1, Grade: "90"}})
	s.Edit(key(2), "50")

	s.Forget("a-1")

	assert.False(t, s.Loaded("a-1"))
	assert.Empty(t, s.Resolve(key(1)))
	assert.Empty(t, s.PendingAssignments())
}

func TestStoreConcurrentEdits(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := int64(0); i < 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			s.Edit(key(id), "88")
			_ = s.Snapshot("a-1")
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, s.Snapshot("a-1").Len())
}
