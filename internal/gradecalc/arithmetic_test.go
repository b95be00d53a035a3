package gradecalc

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/gradebook-sync-api/internal/models"
)

func TestTotal(t *testing.T) {
	cases := []struct {
		name  string
		grade string
		extra string
		want  int
	}{
		{"plain sum", "85", "10", 95},
		{"capped at 100", "95", "10", 100},
		{"negative clamps to zero", "-20", "5", 5},
		{"non numeric is zero", "abc", "7", 7},
		{"empty parts", "", "", 0},
		{"decimal truncates", "92.7", "", 92},
		{"oversized part clamps", "250", "0", 100},
		{"whitespace tolerated", " 80 ", "+5", 85},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Total(tc.grade, tc.extra))
		})
	}
}

func TestTotalIsSymmetricAndBounded(t *testing.T) {
	for g := -50; g <= 150; g += 7 {
		for e := -50; e <= 150; e += 11 {
			gs, es := strconv.Itoa(g), strconv.Itoa(e)
			got := Total(gs, es)
			assert.Equal(t, got, Total(es, gs))
			assert.GreaterOrEqual(t, got, 0)
			assert.LessOrEqual(t, got, 100)
		}
	}
}

func TestWeightedAverage(t *testing.T) {
	d, a := models.AssignmentDaily, models.AssignmentAssessment

	assert.Equal(t, 68, WeightedAverage([]float64{80, 90}, []models.AssignmentKind{d, d}))
	assert.Equal(t, 100, WeightedAverage([]float64{100, 100}, []models.AssignmentKind{d, a}))
	assert.Equal(t, 18, WeightedAverage([]float64{90}, []models.AssignmentKind{a}))
	assert.Equal(t, 82, WeightedAverage([]float64{90, 80, 70}, []models.AssignmentKind{d, d, a}))
	assert.Equal(t, 0, WeightedAverage(nil, nil))
	assert.Equal(t, 0, WeightedAverage([]float64{90}, nil))
}

func TestIsUnset(t *testing.T) {
	assert.True(t, IsUnset(""))
	assert.True(t, IsUnset("0"))
	assert.True(t, IsUnset(" 0 "))
	assert.False(t, IsUnset("00"))
	assert.False(t, IsUnset("75"))
}
