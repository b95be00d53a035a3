package platform

import (
	"errors"
	"fmt"
	"net/http"
)

// Submission is a student's hand-in for one course work item.
type Submission struct {
	ID            string   `json:"id"`
	UserID        string   `json:"userId"`
	CourseID      string   `json:"courseId,omitempty"`
	CourseWorkID  string   `json:"courseWorkId,omitempty"`
	State         string   `json:"state,omitempty"`
	AssignedGrade *float64 `json:"assignedGrade,omitempty"`
	DraftGrade    *float64 `json:"draftGrade,omitempty"`
}

// Student is one entry of a course roster.
type Student struct {
	UserID     string
	GivenName  string
	FamilyName string
	FullName   string
	Email      string
}

type submissionList struct {
	StudentSubmissions []Submission `json:"studentSubmissions"`
	NextPageToken      string       `json:"nextPageToken"`
}

type gradePatch struct {
	AssignedGrade float64 `json:"assignedGrade"`
	DraftGrade    float64 `json:"draftGrade"`
}

type rosterPage struct {
	Students []struct {
		UserID  string `json:"userId"`
		Profile struct {
			Name struct {
				GivenName  string `json:"givenName"`
				FamilyName string `json:"familyName"`
				FullName   string `json:"fullName"`
			} `json:"name"`
			EmailAddress string `json:"emailAddress"`
		} `json:"profile"`
	} `json:"students"`
	NextPageToken string `json:"nextPageToken"`
}

type errorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// StatusError is a non-2xx response from the platform.
type StatusError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: platform returned %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: platform returned %d: %s", e.Op, e.StatusCode, e.Message)
}

// IsUnauthorized reports whether err carries a 401 from the platform.
func IsUnauthorized(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusUnauthorized
}

// clientError reports 4xx responses other than 429; they say nothing about platform health.
func clientError(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.StatusCode >= 400 && se.StatusCode < 500 && se.StatusCode != http.StatusTooManyRequests
}
