package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

const (
	EnrollmentStatusActive  EnrollmentStatus = "active"
	EnrollmentStatusDropped EnrollmentStatus = "dropped"
)

// Enrollment is a student's seat in a course offering. At most one row per
// (student, offering) is active at a time; dropping marks the row dropped and
// a later re-enrollment reactivates it instead of inserting a duplicate.
type Enrollment struct {
	ID         string           `db:"id" json:"id"`
	StudentID  string           `db:"student_id" json:"student_id"`
	OfferingID string           `db:"offering_id" json:"offering_id"`
	Semester   string           `db:"semester" json:"semester"`
	Status     EnrollmentStatus `db:"status" json:"status"`
	EnrolledAt time.Time        `db:"enrolled_at" json:"enrolled_at"`
}

// EnrollmentDetail enriches Enrollment with offering and catalog info.
type EnrollmentDetail struct {
	Enrollment
	CourseID    string  `db:"course_id" json:"course_id"`
	CourseName  string  `db:"course_name" json:"course_name"`
	Credits     float64 `db:"credits" json:"credits"`
	TeacherName string  `db:"teacher_name" json:"teacher_name"`
	ClassTime   string  `db:"class_time" json:"class_time"`
	Classroom   string  `db:"classroom" json:"classroom"`
}

// OfferingStudent is one row of an offering's roster.
type OfferingStudent struct {
	EnrollmentID string           `db:"enrollment_id" json:"enrollment_id"`
	StudentID    string           `db:"student_id" json:"student_id"`
	StudentName  string           `db:"student_name" json:"student_name"`
	Major        string           `db:"major" json:"major"`
	ClassName    string           `db:"class_name" json:"class_name"`
	EnrolledAt   time.Time        `db:"enrolled_at" json:"enrolled_at"`
	Status       EnrollmentStatus `db:"status" json:"status"`
}

// ScheduleConflict names the enrollment a candidate time clashes with.
type ScheduleConflict struct {
	CourseName  string `json:"course_name"`
	TeacherName string `json:"teacher_name"`
	ClassTime   string `json:"class_time"`
}
