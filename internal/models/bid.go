package models

import "time"

// BidStatus is the lifecycle state of a bid. Pending bids move to accepted,
// rejected or cancelled at clearing; a cancelled bid may be superseded by a
// fresh placement, and a rejected one may still be cancelled by the student.
type BidStatus string

const (
	BidStatusPending   BidStatus = "pending"
	BidStatusAccepted  BidStatus = "accepted"
	BidStatusRejected  BidStatus = "rejected"
	BidStatusCancelled BidStatus = "cancelled"
)

// Bid is a student's committed point offer for a seat in an offering.
// At most one non-cancelled bid exists per (student, offering).
type Bid struct {
	ID          string    `db:"id" json:"id"`
	StudentID   string    `db:"student_id" json:"student_id"`
	OfferingID  string    `db:"offering_id" json:"offering_id"`
	Points      int       `db:"points" json:"points"`
	Status      BidStatus `db:"status" json:"status"`
	SubmittedAt time.Time `db:"submitted_at" json:"submitted_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// RankedBid is a bid with its position in the clearing order
// (points descending, earlier submission breaking ties).
type RankedBid struct {
	StudentID   string    `db:"student_id" json:"student_id"`
	StudentName string    `db:"student_name" json:"student_name"`
	Points      int       `db:"points" json:"points"`
	SubmittedAt time.Time `db:"submitted_at" json:"submitted_at"`
	Status      BidStatus `db:"status" json:"status"`
	Rank        int       `json:"rank"`
}

// BiddingSnapshot summarizes the live auction state of one offering.
type BiddingSnapshot struct {
	Exists      bool         `json:"exists"`
	Capacity    int          `json:"capacity"`
	SeatsFilled int          `json:"seats_filled"`
	PendingBids int          `json:"pending_bids"`
	MaxPoints   *int         `json:"max_points,omitempty"`
	MinPoints   *int         `json:"min_points,omitempty"`
	AvgPoints   *float64     `json:"avg_points,omitempty"`
	Deadline    *time.Time   `json:"deadline,omitempty"`
	Status      BiddingState `json:"status"`
}

// ClearResult reports the outcome of clearing one offering.
type ClearResult struct {
	OfferingID  string `json:"offering_id"`
	Accepted    int    `json:"accepted"`
	Rejected    int    `json:"rejected"`
	SeatsFilled int    `json:"seats_filled"`
	Capacity    int    `json:"capacity"`
	Message     string `json:"message"`
}

// SweepEntry is the per-offering outcome of a deadline sweep.
type SweepEntry struct {
	OfferingID string     `json:"offering_id"`
	Deadline   *time.Time `json:"deadline,omitempty"`
	Success    bool       `json:"success"`
	Message    string     `json:"message"`
}

// SweepReport aggregates one pass over expired offerings.
type SweepReport struct {
	Total      int          `json:"total"`
	Successful int          `json:"successful"`
	Failed     int          `json:"failed"`
	Entries    []SweepEntry `json:"entries"`
}
