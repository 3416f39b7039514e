package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/course-bid-api/internal/models"
	"github.com/noah-isme/course-bid-api/internal/repository"
	appErrors "github.com/noah-isme/course-bid-api/pkg/errors"
	"github.com/noah-isme/course-bid-api/pkg/lock"
)

type ledgerRepository interface {
	Balance(ctx context.Context, studentID string) (int, error)
	Apply(ctx context.Context, change repository.LedgerChange) (*models.PointsTransaction, error)
	HasInit(ctx context.Context, studentID string) (bool, error)
	History(ctx context.Context, studentID string) ([]models.PointsTransaction, error)
}

type studentDirectory interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ListActiveIDs(ctx context.Context) ([]string, error)
}

// LedgerService owns student point balances. All writers to a balance go
// through here; each mutation holds the student's critical section so
// concurrent changes for the same student cannot interleave, while different
// students proceed in parallel.
type LedgerService struct {
	repo     ledgerRepository
	students studentDirectory
	locks    *lock.KeyedMutex
	logger   *zap.Logger
}

// NewLedgerService constructs LedgerService.
func NewLedgerService(repo ledgerRepository, students studentDirectory, locks *lock.KeyedMutex, logger *zap.Logger) *LedgerService {
	if locks == nil {
		locks = lock.NewKeyedMutex()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerService{repo: repo, students: students, locks: locks, logger: logger}
}

func studentKey(id string) string { return "student:" + id }

// Initialize grants a student their starting balance. It fails if the student
// already has an init transaction or a non-zero balance; re-running it is the
// caller's mistake, not an idempotent operation.
func (s *LedgerService) Initialize(ctx context.Context, studentID string, amount int) (*models.PointsTransaction, error) {
	if amount <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "initial amount must be positive")
	}

	s.locks.Lock(studentKey(studentID))
	defer s.locks.Unlock(studentKey(studentID))

	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	initialized, err := s.repo.HasInit(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check ledger state")
	}
	balance, err := s.repo.Balance(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read balance")
	}
	if initialized || balance != 0 {
		return nil, appErrors.Clone(appErrors.ErrConflict, "points already initialized")
	}

	record, err := s.repo.Apply(ctx, repository.LedgerChange{
		StudentID: studentID,
		Delta:     amount,
		Kind:      models.TransactionInit,
		Reason:    "initial allocation of bidding points",
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to initialize points")
	}

	s.logger.Info("points initialized", zap.String("student_id", studentID), zap.Int("amount", amount))
	return record, nil
}

// GetBalance is a soft read: unknown students read as zero instead of
// erroring, since the value is advisory for display. Write paths re-read
// under the student's critical section and fail loudly.
func (s *LedgerService) GetBalance(ctx context.Context, studentID string) (int, error) {
	balance, err := s.repo.Balance(ctx, studentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read balance")
	}
	return balance, nil
}

// Debit removes points from a student's balance.
func (s *LedgerService) Debit(ctx context.Context, studentID string, amount int, reason string, offeringID *string) (*models.PointsTransaction, error) {
	if amount <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "debit amount must be positive")
	}

	s.locks.Lock(studentKey(studentID))
	defer s.locks.Unlock(studentKey(studentID))

	record, err := s.repo.Apply(ctx, repository.LedgerChange{
		StudentID:  studentID,
		Delta:      -amount,
		Kind:       models.TransactionDebit,
		Reason:     reason,
		OfferingID: offeringID,
	})
	if err != nil {
		return nil, s.mapApplyError(err, "debit")
	}

	s.logger.Info("points debited",
		zap.String("student_id", studentID), zap.Int("amount", amount), zap.Int("balance", record.BalanceAfter))
	return record, nil
}

// Credit returns points to a student's balance. There is no upper bound:
// operator adjustments may push a refund past the original debit.
func (s *LedgerService) Credit(ctx context.Context, studentID string, amount int, reason string, offeringID *string) (*models.PointsTransaction, error) {
	if amount <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "credit amount must be positive")
	}

	s.locks.Lock(studentKey(studentID))
	defer s.locks.Unlock(studentKey(studentID))

	record, err := s.repo.Apply(ctx, repository.LedgerChange{
		StudentID:  studentID,
		Delta:      amount,
		Kind:       models.TransactionCredit,
		Reason:     reason,
		OfferingID: offeringID,
	})
	if err != nil {
		return nil, s.mapApplyError(err, "credit")
	}

	s.logger.Info("points credited",
		zap.String("student_id", studentID), zap.Int("amount", amount), zap.Int("balance", record.BalanceAfter))
	return record, nil
}

// Adjust is the administrative path: a signed delta with a mandatory reason
// and the operator recorded on the transaction.
func (s *LedgerService) Adjust(ctx context.Context, operatorID, studentID string, delta int, reason string) (*models.PointsTransaction, error) {
	if reason == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "an adjustment reason is required")
	}

	s.locks.Lock(studentKey(studentID))
	defer s.locks.Unlock(studentKey(studentID))

	record, err := s.repo.Apply(ctx, repository.LedgerChange{
		StudentID:  studentID,
		Delta:      delta,
		Kind:       models.TransactionAdminAdjust,
		Reason:     reason,
		OperatorID: &operatorID,
	})
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientBalance) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "adjustment would make the balance negative")
		}
		return nil, s.mapApplyError(err, "adjust")
	}

	s.logger.Info("points adjusted",
		zap.String("operator_id", operatorID), zap.String("student_id", studentID),
		zap.Int("delta", delta), zap.Int("balance", record.BalanceAfter))
	return record, nil
}

// BatchReset sets every active student's balance to the given value,
// recording one admin adjustment each. Failures on individual students are
// logged and skipped; the count of students reset is returned.
func (s *LedgerService) BatchReset(ctx context.Context, operatorID string, points int) (int, error) {
	if points < 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "reset balance cannot be negative")
	}

	ids, err := s.students.ListActiveIDs(ctx)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}

	reset := 0
	reason := fmt.Sprintf("batch reset of bidding points to %d", points)
	for _, studentID := range ids {
		s.locks.Lock(studentKey(studentID))
		balance, err := s.repo.Balance(ctx, studentID)
		if err == nil {
			_, err = s.repo.Apply(ctx, repository.LedgerChange{
				StudentID:  studentID,
				Delta:      points - balance,
				Kind:       models.TransactionAdminAdjust,
				Reason:     reason,
				OperatorID: &operatorID,
			})
		}
		s.locks.Unlock(studentKey(studentID))

		if err != nil {
			s.logger.Warn("batch reset skipped student", zap.String("student_id", studentID), zap.Error(err))
			continue
		}
		reset++
	}

	s.logger.Info("batch reset completed",
		zap.String("operator_id", operatorID), zap.Int("points", points), zap.Int("students", reset))
	return reset, nil
}

// History returns the student's ledger, most recent first.
func (s *LedgerService) History(ctx context.Context, studentID string) ([]models.PointsTransaction, error) {
	history, err := s.repo.History(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list transactions")
	}
	return history, nil
}

func (s *LedgerService) mapApplyError(err error, op string) error {
	switch {
	case errors.Is(err, repository.ErrInsufficientBalance):
		return appErrors.Clone(appErrors.ErrInsufficientPoints, "insufficient points")
	case err == sql.ErrNoRows:
		return appErrors.Clone(appErrors.ErrNotFound, "student not found")
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to "+op+" points")
	}
}
