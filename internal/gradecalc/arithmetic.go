// Package gradecalc holds the pure grade arithmetic shared by the gradebook:
// totals with extra points, weighted course averages and grading-period
// bucketing.
package gradecalc

import (
	"math"
	"strings"

	"github.com/noah-isme/gradebook-sync-api/internal/models"
)

const (
	maxScore         = 100
	dailyWeight      = 0.8
	assessmentWeight = 0.2
)

// IsUnset reports whether a stored grade value means "no grade entered".
// Both the empty string and "0" are treated as unset.
func IsUnset(value string) bool {
	v := strings.TrimSpace(value)
	return v == "" || v == "0"
}

// Total combines a grade with extra points. Each part is read as an integer,
// clamped to [0,100], and the sum is capped at 100. Unparseable input counts as 0.
func Total(grade, extra string) int {
	sum := clamp(parseLeadingInt(grade)) + clamp(parseLeadingInt(extra))
	if sum > maxScore {
		return maxScore
	}
	return sum
}

// WeightedAverage blends per-kind means as 80% Daily and 20% Assessment.
// A kind without entries contributes a mean of 0. Mismatched inputs yield 0.
func WeightedAverage(values []float64, kinds []models.AssignmentKind) int {
	if len(values) != len(kinds) {
		return 0
	}

	var dailySum, assessmentSum float64
	var dailyCount, assessmentCount int
	for i, kind := range kinds {
		switch kind {
		case models.AssignmentDaily:
			dailySum += values[i]
			dailyCount++
		case models.AssignmentAssessment:
			assessmentSum += values[i]
			assessmentCount++
		}
	}
	if dailyCount == 0 && assessmentCount == 0 {
		return 0
	}

	return int(math.Round(mean(dailySum, dailyCount)*dailyWeight + mean(assessmentSum, assessmentCount)*assessmentWeight))
}

func mean(sum float64, count int) float64 {
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

func clamp(v int) int {
	switch {
	case v < 0:
		return 0
	case v > maxScore:
		return maxScore
	default:
		return v
	}
}

// parseLeadingInt reads an optional sign and the leading run of digits,
// ignoring anything after it ("92.5" is 92, "abc" is 0).
func parseLeadingInt(raw string) int {
	s := strings.TrimSpace(raw)
	negative := false
	if s != "" && (s[0] == '-' || s[0] == '+') {
		negative = s[0] == '-'
		s = s[1:]
	}

	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int(c-'0')
		if n > 10*maxScore {
			n = 10 * maxScore
		}
	}
	if negative {
		return -n
	}
	return n
}
