package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/course-bid-api/internal/models"
	appErrors "github.com/noah-isme/course-bid-api/pkg/errors"
)

type expiredOfferingLister interface {
	ListExpired(ctx context.Context, now time.Time) ([]models.CourseOffering, error)
}

type offeringClearer interface {
	Clear(ctx context.Context, offeringID string) (*models.ClearResult, error)
}

// SweeperService settles offerings whose bidding deadline has passed. One
// offering failing does not stop the pass; its error is recorded and the
// sweep continues. Offerings that closed during a previous pass no longer
// match the expiry query, so repeated sweeps converge to a no-op.
type SweeperService struct {
	offerings expiredOfferingLister
	bidding   offeringClearer
	logger    *zap.Logger
	metrics   *MetricsService
	now       func() time.Time
}

// NewSweeperService constructs SweeperService.
func NewSweeperService(offerings expiredOfferingLister, bidding offeringClearer, metrics *MetricsService, logger *zap.Logger) *SweeperService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SweeperService{offerings: offerings, bidding: bidding, logger: logger, metrics: metrics, now: time.Now}
}

// SweepExpired runs one settlement pass over all expired offerings.
func (s *SweeperService) SweepExpired(ctx context.Context) (*models.SweepReport, error) {
	expired, err := s.offerings.ListExpired(ctx, s.now())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list expired offerings")
	}

	report := &models.SweepReport{Entries: make([]models.SweepEntry, 0, len(expired))}
	for _, offering := range expired {
		entry := models.SweepEntry{OfferingID: offering.ID, Deadline: offering.BiddingDeadline}

		result, err := s.bidding.Clear(ctx, offering.ID)
		if err != nil {
			entry.Message = appErrors.FromError(err).Message
			report.Failed++
			s.logger.Warn("sweep failed for offering", zap.String("offering_id", offering.ID), zap.Error(err))
		} else {
			entry.Success = true
			entry.Message = result.Message
			report.Successful++
		}

		report.Entries = append(report.Entries, entry)
		report.Total++
	}

	if s.metrics != nil {
		s.metrics.SweepCompleted(report.Successful, report.Failed)
	}
	s.logger.Info("deadline sweep completed",
		zap.Int("total", report.Total), zap.Int("successful", report.Successful), zap.Int("failed", report.Failed))
	return report, nil
}
