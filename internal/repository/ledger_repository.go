package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-bid-api/internal/models"
)

// LedgerChange describes one balance mutation to apply atomically.
type LedgerChange struct {
	StudentID  string
	Delta      int
	Kind       models.TransactionKind
	Reason     string
	OperatorID *string
	OfferingID *string
}

// LedgerRepository owns student balances and the append-only transaction log.
// Every mutation runs in a single database transaction: the balance row is
// locked, updated, and the ledger entry appended before commit, so
// balance_after can never drift from the running balance.
type LedgerRepository struct {
	db *sqlx.DB
}

// NewLedgerRepository constructs the repository.
func NewLedgerRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Balance returns the student's current balance. sql.ErrNoRows is returned
// for unknown students; the soft-read policy lives in the service layer.
func (r *LedgerRepository) Balance(ctx context.Context, studentID string) (int, error) {
	const query = `SELECT points_balance FROM students WHERE id = $1`
	var balance int
	if err := r.db.GetContext(ctx, &balance, query, studentID); err != nil {
		return 0, err
	}
	return balance, nil
}

// Apply atomically shifts the student's balance by change.Delta and appends
// the matching transaction record. ErrInsufficientBalance is returned when the
// result would be negative; no rows are written in that case.
func (r *LedgerRepository) Apply(ctx context.Context, change LedgerChange) (*models.PointsTransaction, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin ledger tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var balance int
	if err := tx.GetContext(ctx, &balance, `SELECT points_balance FROM students WHERE id = $1 FOR UPDATE`, change.StudentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("lock student balance: %w", err)
	}

	newBalance := balance + change.Delta
	if newBalance < 0 {
		return nil, ErrInsufficientBalance
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE students SET points_balance = $2, updated_at = $3 WHERE id = $1`,
		change.StudentID, newBalance, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("update balance: %w", err)
	}

	record := &models.PointsTransaction{
		ID:           uuid.NewString(),
		StudentID:    change.StudentID,
		Delta:        change.Delta,
		BalanceAfter: newBalance,
		Kind:         change.Kind,
		Reason:       change.Reason,
		OperatorID:   change.OperatorID,
		OfferingID:   change.OfferingID,
		CreatedAt:    time.Now().UTC(),
	}
	const insert = `INSERT INTO points_transactions (id, student_id, delta, balance_after, kind, reason, operator_id, offering_id, created_at)
        VALUES (:id, :student_id, :delta, :balance_after, :kind, :reason, :operator_id, :offering_id, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insert, record); err != nil {
		return nil, fmt.Errorf("append transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit ledger tx: %w", err)
	}
	return record, nil
}

// HasInit reports whether the student already has an init transaction.
func (r *LedgerRepository) HasInit(ctx context.Context, studentID string) (bool, error) {
	const query = `SELECT 1 FROM points_transactions WHERE student_id = $1 AND kind = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, models.TransactionInit); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check init transaction: %w", err)
	}
	return true, nil
}

// History returns the student's transactions, most recent first.
func (r *LedgerRepository) History(ctx context.Context, studentID string) ([]models.PointsTransaction, error) {
	const query = `SELECT id, student_id, delta, balance_after, kind, reason, operator_id, offering_id, created_at
        FROM points_transactions WHERE student_id = $1 ORDER BY created_at DESC`
	var history []models.PointsTransaction
	if err := r.db.SelectContext(ctx, &history, query, studentID); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return history, nil
}
