package models

import "time"

// StudentStatus represents the lifecycle of a student record.
type StudentStatus string

const (
	StudentStatusActive    StudentStatus = "active"
	StudentStatusSuspended StudentStatus = "suspended"
	StudentStatusGraduated StudentStatus = "graduated"
)

// Student models a student with a bidding points balance. The balance is
// written only through the points ledger.
type Student struct {
	ID            string        `db:"id" json:"id"`
	Name          string        `db:"name" json:"name"`
	Major         string        `db:"major" json:"major"`
	ClassName     string        `db:"class_name" json:"class_name"`
	Status        StudentStatus `db:"status" json:"status"`
	PointsBalance int           `db:"points_balance" json:"points_balance"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// Pagination captures standard list metadata.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
