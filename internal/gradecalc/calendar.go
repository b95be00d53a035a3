package gradecalc

import (
	"time"

	"github.com/noah-isme/gradebook-sync-api/pkg/config"
)

// AllPeriods is the pseudo-window that disables grading-period filtering.
const AllPeriods = "all"

// Window is one grading period. End is exclusive.
type Window struct {
	Label string    `json:"label"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Calendar maps dates onto the six-weeks windows of a school year.
type Calendar struct {
	windows []Window
}

// NewCalendar builds a calendar from configured windows.
func NewCalendar(periods []config.GradingPeriodConfig) *Calendar {
	windows := make([]Window, 0, len(periods))
	for _, p := range periods {
		windows = append(windows, Window{Label: p.Label, Start: day(p.Start), End: day(p.End)})
	}
	return &Calendar{windows: windows}
}

// Windows returns a copy of the configured windows.
func (c *Calendar) Windows() []Window {
	out := make([]Window, len(c.windows))
	copy(out, c.windows)
	return out
}

// PeriodFor returns the label of the window containing date, compared on
// calendar day. ok is false when the date falls outside every window.
func (c *Calendar) PeriodFor(date time.Time) (label string, ok bool) {
	d := day(date)
	for _, w := range c.windows {
		if !d.Before(w.Start) && d.Before(w.End) {
			return w.Label, true
		}
	}
	return "", false
}

// Valid reports whether label names a configured window or AllPeriods.
func (c *Calendar) Valid(label string) bool {
	if label == AllPeriods {
		return true
	}
	for _, w := range c.windows {
		if w.Label == label {
			return true
		}
	}
	return false
}

// Includes reports whether an assignment bucketed into assignmentPeriod
// passes a filter on label.
func Includes(label, assignmentPeriod string) bool {
	return label == "" || label == AllPeriods || label == assignmentPeriod
}

// day strips time of day, keeping the calendar date as seen in t's own location.
func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
