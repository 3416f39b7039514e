package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-bid-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	return sqlxDB, mock, func() {
		sqlxDB.Close()
		db.Close()
	}
}

func TestLedgerApplyDebit(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT points_balance FROM students").
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"points_balance"}).AddRow(100))
	mock.ExpectExec("UPDATE students SET points_balance").
		WithArgs("s1", 40, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO points_transactions").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	offeringID := "off-1"
	record, err := repo.Apply(context.Background(), LedgerChange{
		StudentID:  "s1",
		Delta:      -60,
		Kind:       models.TransactionDebit,
		Reason:     "seat award",
		OfferingID: &offeringID,
	})
	require.NoError(t, err)
	assert.Equal(t, 40, record.BalanceAfter)
	assert.Equal(t, -60, record.Delta)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerApplyRefusesNegativeBalance(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT points_balance FROM students").
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"points_balance"}).AddRow(30))
	mock.ExpectRollback()

	_, err := repo.Apply(context.Background(), LedgerChange{
		StudentID: "s1",
		Delta:     -50,
		Kind:      models.TransactionDebit,
		Reason:    "seat award",
	})
	require.ErrorIs(t, err, ErrInsufficientBalance)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerHasInit(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db)

	mock.ExpectQuery("SELECT 1 FROM points_transactions").
		WithArgs("s1", string(models.TransactionInit)).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	initialized, err := repo.HasInit(context.Background(), "s1")
	require.NoError(t, err)
	assert.True(t, initialized)
}

func TestLedgerHistoryOrder(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "student_id", "delta", "balance_after", "kind", "reason", "operator_id", "offering_id", "created_at"}).
		AddRow("tx-2", "s1", -60, 140, "debit", "seat award", nil, "off-1", now).
		AddRow("tx-1", "s1", 200, 200, "init", "initial allocation of bidding points", nil, nil, now.Add(-time.Minute))
	mock.ExpectQuery("SELECT id, student_id, delta, balance_after").
		WithArgs("s1").
		WillReturnRows(rows)

	history, err := repo.History(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "tx-2", history[0].ID)
	assert.Equal(t, models.TransactionInit, history[1].Kind)
}
