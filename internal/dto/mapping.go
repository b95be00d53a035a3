package dto

// AutoMatchRequest starts an identity matching run for one period.
// An empty CourseID reuses the course last mapped to the period and subject.
type AutoMatchRequest struct {
	CourseID string `json:"courseId"`
	Period   string `json:"period" validate:"required"`
	Subject  string `json:"subject" validate:"required"`
}

// ManualMatchRequest pairs one student with a platform user by hand.
type ManualMatchRequest struct {
	StudentID     int64  `json:"studentId" validate:"required,gt=0"`
	Period        string `json:"period" validate:"required"`
	ExternalID    string `json:"externalId" validate:"required"`
	ExternalEmail string `json:"externalEmail" validate:"omitempty,email"`
	ExternalName  string `json:"externalName"`
}

// MatchIssue is a student the matcher could not pair automatically.
type MatchIssue struct {
	Code        string          `json:"code"`
	StudentID   int64           `json:"studentId"`
	StudentName string          `json:"studentName"`
	Candidates  []MatchCandidate `json:"candidates,omitempty"`
}

// MatchCandidate is a partial-credit suggestion for a MatchIssue.
type MatchCandidate struct {
	ExternalID   string  `json:"externalId"`
	ExternalName string  `json:"externalName"`
	Score        float64 `json:"score"`
}

// AutoMatchReport summarises an identity matching run.
type AutoMatchReport struct {
	CourseID          string       `json:"courseId"`
	Period            string       `json:"period"`
	Matched           int          `json:"matched"`
	Completed         bool         `json:"completed"`
	Issues            []MatchIssue `json:"issues"`
	UnclaimedExternal []string     `json:"unclaimedExternal"`
}
