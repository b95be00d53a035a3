package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAndSplit(t *testing.T) {
	assert.Equal(t, "o connor maryann", Normalize("  O' Connor,   Mary-Ann "))

	first, last := SplitLocalName("Smith-Jones, Mary Ann")
	assert.Equal(t, "mary ann", first)
	assert.Equal(t, "smithjones", last)

	first, last = SplitLocalName("John Smith")
	assert.Equal(t, "john", first)
	assert.Equal(t, "smith", last)

	first, last = SplitLocalName("Cher")
	assert.Empty(t, first)
	assert.Equal(t, "cher", last)
}

func TestScore(t *testing.T) {
	local := LocalStudent{ID: 1, Name: "Smith, John"}

	assert.Equal(t, 1.0, Score(local, ExternalStudent{GivenName: "John", FamilyName: "Smith"}))
	assert.Equal(t, 0.0, Score(local, ExternalStudent{GivenName: "Jon", FamilyName: "Smyth"}))
	assert.Equal(t, 0.5, Score(local, ExternalStudent{GivenName: "Johnny", FamilyName: "Brown"}))
	assert.Equal(t, 1.0, Score(local, ExternalStudent{GivenName: "Johnathan", FamilyName: "Smithson"}))
	assert.Equal(t, 1.0, Score(local, ExternalStudent{FullName: "John Smith"}))
	assert.Equal(t, 0.0, Score(LocalStudent{Name: ","}, ExternalStudent{GivenName: "A", FamilyName: "B"}))
}

func TestMatchAutoMatchesAboveThreshold(t *testing.T) {
	locals := []LocalStudent{
		{ID: 2, Name: "Smith, John"},
		{ID: 1, Name: "Garcia, Ana"},
		{ID: 3, Name: "Lee, Kim"},
	}
	externals := []ExternalStudent{
		{ID: "u-9", GivenName: "John", FamilyName: "Smith", Email: "js@school.org"},
		{ID: "u-5", GivenName: "Ana", FamilyName: "Garcia", Email: "ag@school.org"},
		{ID: "u-7", GivenName: "Kimberly", FamilyName: "Park"},
	}

	res := MatchRoster(locals, externals, DefaultThreshold)

	require.Len(t, res.Matches, 2)
	assert.Equal(t, int64(1), res.Matches[0].StudentID)
	assert.Equal(t, "u-5", res.Matches[0].ExternalID)
	assert.Equal(t, "ag@school.org", res.Matches[0].ExternalEmail)
	assert.Equal(t, int64(2), res.Matches[1].StudentID)
	assert.False(t, res.Matches[1].Manual)

	require.Len(t, res.Unmatched, 1)
	assert.Equal(t, int64(3), res.Unmatched[0].Student.ID)
	require.Len(t, res.Unmatched[0].Candidates, 1)
	assert.Equal(t, "u-7", res.Unmatched[0].Candidates[0].ExternalID)
	assert.Equal(t, 0.5, res.Unmatched[0].Candidates[0].Score)

	require.Len(t, res.UnclaimedExternal, 1)
	assert.Equal(t, "u-7", res.UnclaimedExternal[0].ID)
}

func TestMatchTieBreakIsOrderIndependent(t *testing.T) {
	locals := []LocalStudent{{ID: 1, Name: "Smith, John"}}
	a := ExternalStudent{ID: "b-2", GivenName: "John", FamilyName: "Smith"}
	b := ExternalStudent{ID: "a-1", GivenName: "John", FamilyName: "Smith"}

	first := MatchRoster(locals, []ExternalStudent{a, b}, DefaultThreshold)
	second := MatchRoster(locals, []ExternalStudent{b, a}, DefaultThreshold)

	require.Len(t, first.Matches, 1)
	assert.Equal(t, "a-1", first.Matches[0].ExternalID)
	assert.Equal(t, first.Matches, second.Matches)
}

func TestMatchClaimsExternalOnce(t *testing.T) {
	locals := []LocalStudent{{ID: 1, Name: "Smith, John"}, {ID: 2, Name: "Smith, John"}}
	externals := []ExternalStudent{{ID: "u-1", GivenName: "John", FamilyName: "Smith"}}

	res := MatchRoster(locals, externals, DefaultThreshold)

	require.Len(t, res.Matches, 1)
	assert.Equal(t, int64(1), res.Matches[0].StudentID)
	require.Len(t, res.Unmatched, 1)
	assert.Equal(t, int64(2), res.Unmatched[0].Student.ID)
	assert.Empty(t, res.UnclaimedExternal)
}

func TestManualFlagsMatch(t *testing.T) {
	m := Manual(LocalStudent{ID: 4, Name: "Nguyen, Bao"}, ExternalStudent{ID: "u-4", FullName: "Bobby Nguyen", Email: "bn@school.org"})

	assert.True(t, m.Manual)
	assert.Equal(t, "u-4", m.ExternalID)
	assert.Equal(t, "Bobby Nguyen", m.ExternalName)
	assert.Equal(t, 0.5, m.Score)
}
