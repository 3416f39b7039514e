package models

import "time"

// TransactionKind classifies a points ledger entry.
type TransactionKind string

const (
	TransactionInit        TransactionKind = "init"
	TransactionDebit       TransactionKind = "debit"
	TransactionCredit      TransactionKind = "credit"
	TransactionAdminAdjust TransactionKind = "admin_adjust"
)

// PointsTransaction is an immutable, append-only ledger record. BalanceAfter
// always equals the previous BalanceAfter plus Delta for the same student.
type PointsTransaction struct {
	ID           string          `db:"id" json:"id"`
	StudentID    string          `db:"student_id" json:"student_id"`
	Delta        int             `db:"delta" json:"delta"`
	BalanceAfter int             `db:"balance_after" json:"balance_after"`
	Kind         TransactionKind `db:"kind" json:"kind"`
	Reason       string          `db:"reason" json:"reason"`
	OperatorID   *string         `db:"operator_id" json:"operator_id,omitempty"`
	OfferingID   *string         `db:"offering_id" json:"offering_id,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}
