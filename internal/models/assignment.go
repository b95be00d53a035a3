package models

import (
	"time"

	"github.com/lib/pq"
)

// AssignmentKind classifies an assignment for weighted averaging.
type AssignmentKind string

const (
	// AssignmentDaily counts toward the 80% daily component.
	AssignmentDaily AssignmentKind = "Daily"
	// AssignmentAssessment counts toward the 20% assessment component.
	AssignmentAssessment AssignmentKind = "Assessment"
)

// Valid reports whether k is a known kind.
func (k AssignmentKind) Valid() bool {
	switch k {
	case AssignmentDaily, AssignmentAssessment:
		return true
	}
	return false
}

// AssignmentStatus tracks grading progress.
type AssignmentStatus string

const (
	AssignmentNotStarted AssignmentStatus = "not_started"
	AssignmentInProgress AssignmentStatus = "in_progress"
	AssignmentNotGraded  AssignmentStatus = "not_graded"
	AssignmentCompleted  AssignmentStatus = "completed"
)

// Valid reports whether s is a known status.
func (s AssignmentStatus) Valid() bool {
	switch s {
	case AssignmentNotStarted, AssignmentInProgress, AssignmentNotGraded, AssignmentCompleted:
		return true
	}
	return false
}

// ExternalLink identifies the course work an assignment mirrors on the platform.
type ExternalLink struct {
	CourseID     string `json:"course_id"`
	CourseWorkID string `json:"course_work_id"`
}

// Assignment is a gradable item given to one or more class periods.
type Assignment struct {
	ID                   string           `db:"id" json:"id"`
	Name                 string           `db:"name" json:"name"`
	Date                 time.Time        `db:"date" json:"date"`
	Kind                 AssignmentKind   `db:"kind" json:"kind"`
	Subject              string           `db:"subject" json:"subject"`
	Periods              pq.StringArray   `db:"periods" json:"periods"`
	GradingPeriod        string           `db:"grading_period" json:"grading_period"`
	MaxPoints            int              `db:"max_points" json:"max_points"`
	Status               AssignmentStatus `db:"status" json:"status"`
	ExternalCourseID     *string          `db:"external_course_id" json:"-"`
	ExternalCourseWorkID *string          `db:"external_course_work_id" json:"-"`
	CreatedAt            time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time        `db:"updated_at" json:"updated_at"`
}

// ExternalLink returns the platform link, or nil when the assignment is not linked.
func (a *Assignment) ExternalLink() *ExternalLink {
	if a.ExternalCourseID == nil || a.ExternalCourseWorkID == nil ||
		*a.ExternalCourseID == "" || *a.ExternalCourseWorkID == "" {
		return nil
	}
	return &ExternalLink{CourseID: *a.ExternalCourseID, CourseWorkID: *a.ExternalCourseWorkID}
}

// HasPeriod reports whether the assignment was given to period.
func (a *Assignment) HasPeriod(period string) bool {
	for _, p := range a.Periods {
		if p == period {
			return true
		}
	}
	return false
}

// AssignmentFilter scopes assignment listings.
type AssignmentFilter struct {
	Period        string
	GradingPeriod string
	Subject       string
}
