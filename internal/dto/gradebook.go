package dto

// EditGradeRequest sets a grade or extra points value for one cell.
// Commit folds the value straight into the save queue; otherwise it stays a draft.
type EditGradeRequest struct {
	Value  string `json:"value" validate:"max=16"`
	Commit *bool  `json:"commit"`
}

// ImportGradesRequest applies a batch of grades keyed by student id.
type ImportGradesRequest struct {
	Grades map[int64]string `json:"grades" validate:"required,min=1"`
}

// GradebookRow is one student's line in the gradebook view.
type GradebookRow struct {
	StudentID   int64    `json:"studentId"`
	StudentName string   `json:"studentName"`
	Grade       string   `json:"grade"`
	ExtraPoints string   `json:"extraPoints"`
	Total       int      `json:"total"`
	Tags        []string `json:"tags"`
	Mapped      bool     `json:"mapped"`
}

// GradebookView is the gradebook of one assignment in one period.
type GradebookView struct {
	AssignmentID   string         `json:"assignmentId"`
	AssignmentName string         `json:"assignmentName"`
	Kind           string         `json:"kind"`
	Period         string         `json:"period"`
	Editing        bool           `json:"editing"`
	SavePending    bool           `json:"savePending"`
	Rows           []GradebookRow `json:"rows"`
}

// StudentAverageQuery scopes a weighted average.
type StudentAverageQuery struct {
	Period        string `form:"period" validate:"required"`
	GradingPeriod string `form:"gradingPeriod"`
}

// StudentAverage is a student's weighted average in a grading period.
type StudentAverage struct {
	StudentID       int64  `json:"studentId"`
	Period          string `json:"period"`
	GradingPeriod   string `json:"gradingPeriod"`
	Average         int    `json:"average"`
	DailyCount      int    `json:"dailyCount"`
	AssessmentCount int    `json:"assessmentCount"`
}

// SaveResult reports one flushed assignment.
type SaveResult struct {
	AssignmentID string `json:"assignmentId"`
	Pending      int    `json:"pending"`
	Upserted     int    `json:"upserted"`
	Deleted      int    `json:"deleted"`
	DurationMs   int64  `json:"durationMs"`
	Error        string `json:"error,omitempty"`
}
