package models

import "time"

// Student is a learner enrolled in one class period. Name is stored as "Last, First".
type Student struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Period    string    `db:"period" json:"period"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// StudentMapping links a local student to a platform user for one period.
type StudentMapping struct {
	StudentID       int64     `db:"student_id" json:"student_id"`
	Period          string    `db:"period" json:"period"`
	ExternalID      string    `db:"external_id" json:"external_id"`
	ExternalEmail   string    `db:"external_email" json:"external_email"`
	ManuallyMatched bool      `db:"manually_matched" json:"manually_matched"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// CourseMapping links a class period to a platform course.
type CourseMapping struct {
	ExternalCourseID string    `db:"external_course_id" json:"external_course_id"`
	Period           string    `db:"period" json:"period"`
	Subject          string    `db:"subject" json:"subject"`
	Completed        bool      `db:"completed" json:"completed"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}
