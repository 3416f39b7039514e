package models

import "time"

// BiddingState tells whether an offering still accepts bids.
type BiddingState string

const (
	BiddingOpen   BiddingState = "open"
	BiddingClosed BiddingState = "closed"
)

// OfferingStatus is the enrollment-side status of an offering.
type OfferingStatus string

const (
	OfferingOpen   OfferingStatus = "open"
	OfferingFull   OfferingStatus = "full"
	OfferingClosed OfferingStatus = "closed"
)

// Course is the catalog entry an offering is a section of. Students may hold
// at most one active enrollment across all sections of the same course.
type Course struct {
	ID      string  `db:"id" json:"id"`
	Name    string  `db:"name" json:"name"`
	Credits float64 `db:"credits" json:"credits"`
	Type    string  `db:"type" json:"type"`
}

// CourseOffering is one scheduled section of a course in a semester.
type CourseOffering struct {
	ID              string         `db:"id" json:"id"`
	CourseID        string         `db:"course_id" json:"course_id"`
	TeacherID       string         `db:"teacher_id" json:"teacher_id"`
	Semester        string         `db:"semester" json:"semester"`
	ClassTime       string         `db:"class_time" json:"class_time"`
	Classroom       string         `db:"classroom" json:"classroom"`
	Capacity        int            `db:"capacity" json:"capacity"`
	SeatsFilled     int            `db:"seats_filled" json:"seats_filled"`
	BiddingDeadline *time.Time     `db:"bidding_deadline" json:"bidding_deadline,omitempty"`
	BiddingStatus   BiddingState   `db:"bidding_status" json:"bidding_status"`
	Status          OfferingStatus `db:"status" json:"status"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// OfferingDetail enriches CourseOffering with catalog and teacher info.
type OfferingDetail struct {
	CourseOffering
	CourseName  string `db:"course_name" json:"course_name"`
	TeacherName string `db:"teacher_name" json:"teacher_name"`
}
