package dto

import "time"

// CreateAssignmentRequest defines payload for creating an assignment.
type CreateAssignmentRequest struct {
	Name      string    `json:"name" validate:"required,max=200"`
	Date      time.Time `json:"date" validate:"required"`
	Kind      string    `json:"kind" validate:"required,oneof=Daily Assessment"`
	Subject   string    `json:"subject" validate:"required"`
	Periods   []string  `json:"periods" validate:"required,min=1,dive,required"`
	MaxPoints int       `json:"maxPoints" validate:"omitempty,min=0"`
}

// UpdateAssignmentStatusRequest changes an assignment's grading status.
type UpdateAssignmentStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=not_started in_progress not_graded completed"`
}

// LinkAssignmentRequest links an assignment to platform course work.
// Empty identifiers clear the link.
type LinkAssignmentRequest struct {
	CourseID     string `json:"courseId" validate:"required_with=CourseWorkID"`
	CourseWorkID string `json:"courseWorkId" validate:"required_with=CourseID"`
}

// AssignmentQuery filters assignment listings.
type AssignmentQuery struct {
	Period        string `form:"period"`
	GradingPeriod string `form:"gradingPeriod"`
	Subject       string `form:"subject"`
}
