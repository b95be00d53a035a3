package dto

// SyncRequest pushes one period of an assignment to the platform.
type SyncRequest struct {
	AssignmentID string `json:"assignmentId" validate:"required"`
	Period       string `json:"period" validate:"required"`
}

// SkippedStudent had a grade but no platform mapping.
type SkippedStudent struct {
	StudentID   int64  `json:"studentId"`
	StudentName string `json:"studentName"`
	Code        string `json:"code"`
}

// FailedStudent is a push the platform rejected.
type FailedStudent struct {
	StudentID   int64  `json:"studentId"`
	StudentName string `json:"studentName"`
	Code        string `json:"code"`
	Message     string `json:"message"`
}

// SyncResult aggregates one sync run. It is never partially failed as a whole;
// each student lands in exactly one bucket.
type SyncResult struct {
	AssignmentID   string           `json:"assignmentId"`
	Period         string           `json:"period"`
	Successful     int              `json:"successful"`
	Skipped        []SkippedStudent `json:"skipped"`
	Failed         []FailedStudent  `json:"failed"`
	ReauthRequired bool             `json:"reauthRequired"`
}

// Empty reports whether the run had nothing to push.
func (r SyncResult) Empty() bool {
	return r.Successful == 0 && len(r.Skipped) == 0 && len(r.Failed) == 0
}

// SyncJob tracks a queued sync.
type SyncJob struct {
	JobID        string      `json:"jobId"`
	AssignmentID string      `json:"assignmentId"`
	Period       string      `json:"period"`
	Status       string      `json:"status"`
	Attempts     int         `json:"attempts"`
	Result       *SyncResult `json:"result,omitempty"`
	Error        string      `json:"error,omitempty"`
}

// Sync job states.
const (
	SyncJobQueued    = "queued"
	SyncJobRetrying  = "retrying"
	SyncJobSucceeded = "succeeded"
	SyncJobFailed    = "failed"
)

// PulledSubmission is the platform's view of one student's grade.
type PulledSubmission struct {
	SubmissionID string `json:"submissionId"`
	State        string `json:"state,omitempty"`
	StudentID    int64  `json:"studentId"`
	Period       string `json:"period"`
	Grade        string `json:"grade"`
	DraftGrade   string `json:"draftGrade,omitempty"`
}
