package models

import "time"

// GradeKey addresses one cell of the gradebook.
type GradeKey struct {
	AssignmentID string
	Period       string
	StudentID    int64
}

// Grade is the persisted row for one student on one assignment in one period.
// Grade and ExtraPoints are raw text; "" and "0" both mean unset.
type Grade struct {
	AssignmentID string    `db:"assignment_id" json:"assignment_id"`
	StudentID    int64     `db:"student_id" json:"student_id"`
	Period       string    `db:"period" json:"period"`
	Grade        string    `db:"grade" json:"grade"`
	ExtraPoints  string    `db:"extra_points" json:"extra_points"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Key returns the gradebook cell the row belongs to.
func (g Grade) Key() GradeKey {
	return GradeKey{AssignmentID: g.AssignmentID, Period: g.Period, StudentID: g.StudentID}
}

// TagKind is a status annotation on a student's assignment.
type TagKind string

const (
	TagAbsent     TagKind = "absent"
	TagLate       TagKind = "late"
	TagIncomplete TagKind = "incomplete"
	TagRetest     TagKind = "retest"
)

// Valid reports whether k is a known tag.
func (k TagKind) Valid() bool {
	switch k {
	case TagAbsent, TagLate, TagIncomplete, TagRetest:
		return true
	}
	return false
}

// Tag annotates a gradebook cell.
type Tag struct {
	ID           string    `db:"id" json:"id"`
	AssignmentID string    `db:"assignment_id" json:"assignment_id"`
	StudentID    int64     `db:"student_id" json:"student_id"`
	Period       string    `db:"period" json:"period"`
	Kind         TagKind   `db:"kind" json:"kind"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// GradeChanges is the set of targeted writes produced by reconciling an assignment.
type GradeChanges struct {
	Upserts []Grade
	Deletes []GradeKey
}

// Empty reports whether there is nothing to write.
func (c GradeChanges) Empty() bool {
	return len(c.Upserts) == 0 && len(c.Deletes) == 0
}

// StudentGrade is one of a student's grades with the assignment attributes used for averaging.
type StudentGrade struct {
	AssignmentID   string         `db:"assignment_id" json:"assignment_id"`
	AssignmentName string         `db:"assignment_name" json:"assignment_name"`
	Kind           AssignmentKind `db:"kind" json:"kind"`
	GradingPeriod  string         `db:"grading_period" json:"grading_period"`
	Period         string         `db:"period" json:"period"`
	Grade          string         `db:"grade" json:"grade"`
	ExtraPoints    string         `db:"extra_points" json:"extra_points"`
}
