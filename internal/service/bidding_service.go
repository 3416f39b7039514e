package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/course-bid-api/internal/models"
	appErrors "github.com/noah-isme/course-bid-api/pkg/errors"
	"github.com/noah-isme/course-bid-api/pkg/lock"
)

type bidRepository interface {
	Find(ctx context.Context, studentID, offeringID string) (*models.Bid, error)
	FindActive(ctx context.Context, studentID, offeringID string) (*models.Bid, error)
	SumPending(ctx context.Context, studentID, excludeOfferingID string) (int, error)
	DeleteCancelled(ctx context.Context, studentID, offeringID string) error
	Create(ctx context.Context, bid *models.Bid) error
	UpdatePoints(ctx context.Context, id string, points int) error
	UpdateStatus(ctx context.Context, id string, status models.BidStatus) error
	ListPendingRanked(ctx context.Context, offeringID string) ([]models.Bid, error)
	Ranking(ctx context.Context, offeringID string) ([]models.RankedBid, error)
	PendingStats(ctx context.Context, offeringID string) (count int, max, min *int, avg *float64, err error)
}

type biddingOfferingRepository interface {
	FindByID(ctx context.Context, id string) (*models.CourseOffering, error)
	SetClearingOutcome(ctx context.Context, id string, seatsFilled int, bidding models.BiddingState, status models.OfferingStatus) error
}

type pointsLedger interface {
	GetBalance(ctx context.Context, studentID string) (int, error)
	Debit(ctx context.Context, studentID string, amount int, reason string, offeringID *string) (*models.PointsTransaction, error)
	Credit(ctx context.Context, studentID string, amount int, reason string, offeringID *string) (*models.PointsTransaction, error)
}

type seatMaterializer interface {
	MaterializeFromBid(ctx context.Context, studentID string, offering *models.CourseOffering) (*models.Enrollment, error)
	ReleaseMaterialized(ctx context.Context, enrollmentID string) error
}

type courseEnrollmentChecker interface {
	ExistsActiveForCourse(ctx context.Context, studentID, courseID string) (bool, error)
}

type snapshotCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string)
}

// PlaceBidRequest commits points toward a seat in an offering.
type PlaceBidRequest struct {
	StudentID  string `json:"student_id" validate:"required"`
	OfferingID string `json:"offering_id" validate:"required"`
	Points     int    `json:"points" validate:"required"`
}

// ModifyBidRequest changes the points of an existing pending bid.
type ModifyBidRequest struct {
	StudentID  string `json:"student_id" validate:"required"`
	OfferingID string `json:"offering_id" validate:"required"`
	Points     int    `json:"points" validate:"required"`
}

// CancelBidRequest withdraws a bid before clearing.
type CancelBidRequest struct {
	StudentID  string `json:"student_id" validate:"required"`
	OfferingID string `json:"offering_id" validate:"required"`
}

// BiddingService runs the sealed-bid auction. Pending bids are reservations:
// no points move until clearing debits the winners. Availability for a new or
// modified bid is balance minus the sum of the student's other pending bids.
//
// Mutations lock the offering first and then the student, in that order
// everywhere, so placement and clearing on the same offering serialize and
// two placements by one student cannot both pass the availability check.
type BiddingService struct {
	bids        bidRepository
	offerings   biddingOfferingRepository
	ledger      pointsLedger
	seats       seatMaterializer
	enrollments courseEnrollmentChecker
	cache       snapshotCache
	locks       *lock.KeyedMutex
	validator   *validator.Validate
	logger      *zap.Logger
	metrics     *MetricsService

	maxBidPoints int
	statusTTL    time.Duration
	now          func() time.Time
}

// NewBiddingService constructs BiddingService.
func NewBiddingService(
	bids bidRepository,
	offerings biddingOfferingRepository,
	ledger pointsLedger,
	seats seatMaterializer,
	enrollments courseEnrollmentChecker,
	cache snapshotCache,
	locks *lock.KeyedMutex,
	maxBidPoints int,
	statusTTL time.Duration,
	metrics *MetricsService,
	logger *zap.Logger,
) *BiddingService {
	if locks == nil {
		locks = lock.NewKeyedMutex()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxBidPoints <= 0 {
		maxBidPoints = 100
	}
	return &BiddingService{
		bids:         bids,
		offerings:    offerings,
		ledger:       ledger,
		seats:        seats,
		enrollments:  enrollments,
		cache:        cache,
		locks:        locks,
		validator:    validator.New(),
		logger:       logger,
		metrics:      metrics,
		maxBidPoints: maxBidPoints,
		statusTTL:    statusTTL,
		now:          time.Now,
	}
}

func snapshotKey(offeringID string) string { return "bidding:status:" + offeringID }

// Place records a new pending bid. A cancelled bid on the same offering is
// superseded; any other existing bid blocks placement.
func (s *BiddingService) Place(ctx context.Context, req PlaceBidRequest) (*models.Bid, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student_id, offering_id and points are required")
	}
	if err := s.checkRange(req.Points); err != nil {
		return nil, err
	}

	s.locks.Lock(offeringKey(req.OfferingID))
	defer s.locks.Unlock(offeringKey(req.OfferingID))
	s.locks.Lock(studentKey(req.StudentID))
	defer s.locks.Unlock(studentKey(req.StudentID))

	offering, err := s.loadOffering(ctx, req.OfferingID)
	if err != nil {
		return nil, err
	}
	if err := s.checkWindow(offering); err != nil {
		return nil, err
	}

	existing, err := s.bids.Find(ctx, req.StudentID, req.OfferingID)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bid")
	case existing.Status == models.BidStatusCancelled:
		if err := s.bids.DeleteCancelled(ctx, req.StudentID, req.OfferingID); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to supersede cancelled bid")
		}
	default:
		return nil, appErrors.ErrDuplicateBid
	}

	if err := s.checkAvailability(ctx, req.StudentID, req.Points, ""); err != nil {
		return nil, err
	}

	bid := &models.Bid{StudentID: req.StudentID, OfferingID: req.OfferingID, Points: req.Points}
	if err := s.bids.Create(ctx, bid); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create bid")
	}

	s.cache.Delete(ctx, snapshotKey(req.OfferingID))
	if s.metrics != nil {
		s.metrics.BidPlaced()
	}
	s.logger.Info("bid placed",
		zap.String("student_id", req.StudentID), zap.String("offering_id", req.OfferingID), zap.Int("points", req.Points))
	return bid, nil
}

// Modify changes the points of the student's pending bid on an offering.
func (s *BiddingService) Modify(ctx context.Context, req ModifyBidRequest) (*models.Bid, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student_id, offering_id and points are required")
	}
	if err := s.checkRange(req.Points); err != nil {
		return nil, err
	}

	s.locks.Lock(offeringKey(req.OfferingID))
	defer s.locks.Unlock(offeringKey(req.OfferingID))
	s.locks.Lock(studentKey(req.StudentID))
	defer s.locks.Unlock(studentKey(req.StudentID))

	offering, err := s.loadOffering(ctx, req.OfferingID)
	if err != nil {
		return nil, err
	}
	if err := s.checkWindow(offering); err != nil {
		return nil, err
	}

	bid, err := s.bids.Find(ctx, req.StudentID, req.OfferingID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no bid placed for this offering")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bid")
	}
	switch bid.Status {
	case models.BidStatusPending:
	case models.BidStatusCancelled:
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no bid placed for this offering")
	default:
		return nil, appErrors.ErrBidProcessed
	}

	if err := s.checkAvailability(ctx, req.StudentID, req.Points, req.OfferingID); err != nil {
		return nil, err
	}

	if err := s.bids.UpdatePoints(ctx, bid.ID, req.Points); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update bid")
	}
	bid.Points = req.Points

	s.cache.Delete(ctx, snapshotKey(req.OfferingID))
	s.logger.Info("bid modified",
		zap.String("student_id", req.StudentID), zap.String("offering_id", req.OfferingID), zap.Int("points", req.Points))
	return bid, nil
}

// Cancel withdraws a pending or rejected bid. Pending bids never held funds,
// so cancellation moves no points.
func (s *BiddingService) Cancel(ctx context.Context, req CancelBidRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "student_id and offering_id are required")
	}

	s.locks.Lock(offeringKey(req.OfferingID))
	defer s.locks.Unlock(offeringKey(req.OfferingID))

	offering, err := s.loadOffering(ctx, req.OfferingID)
	if err != nil {
		return err
	}
	if err := s.checkWindow(offering); err != nil {
		return err
	}

	bid, err := s.bids.Find(ctx, req.StudentID, req.OfferingID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "no bid placed for this offering")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bid")
	}
	switch bid.Status {
	case models.BidStatusPending, models.BidStatusRejected:
	case models.BidStatusCancelled:
		return appErrors.Clone(appErrors.ErrNotFound, "no bid placed for this offering")
	default:
		return appErrors.ErrBidProcessed
	}

	if err := s.bids.UpdateStatus(ctx, bid.ID, models.BidStatusCancelled); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel bid")
	}

	s.cache.Delete(ctx, snapshotKey(req.OfferingID))
	if s.metrics != nil {
		s.metrics.BidCancelled()
	}
	s.logger.Info("bid cancelled",
		zap.String("student_id", req.StudentID), zap.String("offering_id", req.OfferingID))
	return nil
}

// GetBid returns the student's non-cancelled bid on an offering.
func (s *BiddingService) GetBid(ctx context.Context, studentID, offeringID string) (*models.Bid, error) {
	bid, err := s.bids.FindActive(ctx, studentID, offeringID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no bid placed for this offering")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bid")
	}
	return bid, nil
}

// Ranking returns all bids on an offering in clearing order.
func (s *BiddingService) Ranking(ctx context.Context, offeringID string) ([]models.RankedBid, error) {
	if _, err := s.loadOffering(ctx, offeringID); err != nil {
		return nil, err
	}
	ranking, err := s.bids.Ranking(ctx, offeringID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list ranking")
	}
	return ranking, nil
}

// Status returns the live auction snapshot of an offering, served from cache
// when fresh. An unknown offering reports Exists false rather than erroring.
func (s *BiddingService) Status(ctx context.Context, offeringID string) (*models.BiddingSnapshot, error) {
	var snapshot models.BiddingSnapshot
	if err := s.cache.Get(ctx, snapshotKey(offeringID), &snapshot); err == nil {
		return &snapshot, nil
	}

	offering, err := s.offerings.FindByID(ctx, offeringID)
	if err != nil {
		if err == sql.ErrNoRows {
			return &models.BiddingSnapshot{Exists: false}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load offering")
	}

	count, max, min, avg, err := s.bids.PendingStats(ctx, offeringID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate bids")
	}

	snapshot = models.BiddingSnapshot{
		Exists:      true,
		Capacity:    offering.Capacity,
		SeatsFilled: offering.SeatsFilled,
		PendingBids: count,
		MaxPoints:   max,
		MinPoints:   min,
		AvgPoints:   avg,
		Deadline:    offering.BiddingDeadline,
		Status:      offering.BiddingStatus,
	}
	if err := s.cache.Set(ctx, snapshotKey(offeringID), &snapshot, s.statusTTL); err != nil {
		s.logger.Warn("failed to cache bidding status", zap.String("offering_id", offeringID), zap.Error(err))
	}
	return &snapshot, nil
}

// Clear settles the auction for one offering. Pending bids are walked in rank
// order; winners are debited and seated, students already holding a section
// of the course are rejected, and a candidate whose debit, seat, or accept
// write fails stays pending with any debit credited back and the seat
// released, so the slot passes to the next in rank and no candidate is ever
// left half-accepted. The offering closes for bidding only when every seat is
// filled.
func (s *BiddingService) Clear(ctx context.Context, offeringID string) (*models.ClearResult, error) {
	s.locks.Lock(offeringKey(offeringID))
	defer s.locks.Unlock(offeringKey(offeringID))

	offering, err := s.loadOffering(ctx, offeringID)
	if err != nil {
		return nil, err
	}

	availableSlots := offering.Capacity - offering.SeatsFilled
	if availableSlots <= 0 {
		return nil, appErrors.ErrNoSeats
	}

	pending, err := s.bids.ListPendingRanked(ctx, offeringID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending bids")
	}
	if len(pending) == 0 {
		return nil, appErrors.Clone(appErrors.ErrConflict, "no pending bids to process")
	}

	accepted, rejected := 0, 0
	slots := availableSlots

	// abort records seats already granted in this pass before bailing out, so
	// a retry sees an up-to-date counter instead of reissuing those seats.
	abort := func(err error) (*models.ClearResult, error) {
		if accepted > 0 {
			if werr := s.offerings.SetClearingOutcome(ctx, offeringID,
				offering.SeatsFilled+accepted, offering.BiddingStatus, offering.Status); werr != nil {
				s.logger.Error("failed to record partial clearing progress",
					zap.String("offering_id", offeringID), zap.Error(werr))
			}
			s.cache.Delete(ctx, snapshotKey(offeringID))
		}
		return nil, err
	}

	for _, bid := range pending {
		if slots == 0 {
			if err := s.reject(ctx, bid); err != nil {
				return abort(err)
			}
			rejected++
			continue
		}

		enrolled, err := s.enrollments.ExistsActiveForCourse(ctx, bid.StudentID, offering.CourseID)
		if err != nil {
			return abort(appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check course enrollment"))
		}
		if enrolled {
			if err := s.reject(ctx, bid); err != nil {
				return abort(err)
			}
			rejected++
			continue
		}

		reason := fmt.Sprintf("elective seat awarded for offering %s", offeringID)
		if _, err := s.ledger.Debit(ctx, bid.StudentID, bid.Points, reason, &bid.OfferingID); err != nil {
			s.logger.Warn("clearing debit failed, bid stays pending",
				zap.String("bid_id", bid.ID), zap.String("student_id", bid.StudentID), zap.Error(err))
			continue
		}

		enrollment, err := s.seats.MaterializeFromBid(ctx, bid.StudentID, offering)
		if err != nil {
			s.refund(ctx, bid, "seat could not be assigned, points returned")
			s.logger.Warn("seat assignment failed, bid stays pending",
				zap.String("bid_id", bid.ID), zap.String("student_id", bid.StudentID), zap.Error(err))
			continue
		}

		if err := s.bids.UpdateStatus(ctx, bid.ID, models.BidStatusAccepted); err != nil {
			if relErr := s.seats.ReleaseMaterialized(ctx, enrollment.ID); relErr != nil {
				s.logger.Error("failed to release seat after accept write failure",
					zap.String("bid_id", bid.ID), zap.String("enrollment_id", enrollment.ID), zap.Error(relErr))
			}
			s.refund(ctx, bid, "bid could not be settled, points returned")
			s.logger.Warn("accept write failed, bid stays pending",
				zap.String("bid_id", bid.ID), zap.String("student_id", bid.StudentID), zap.Error(err))
			continue
		}
		accepted++
		slots--
	}

	seatsFilled := offering.SeatsFilled + accepted
	bidding, status := models.BiddingOpen, offering.Status
	if seatsFilled >= offering.Capacity {
		bidding, status = models.BiddingClosed, models.OfferingFull
	}
	if err := s.offerings.SetClearingOutcome(ctx, offeringID, seatsFilled, bidding, status); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record clearing outcome")
	}

	s.cache.Delete(ctx, snapshotKey(offeringID))
	if s.metrics != nil {
		s.metrics.ClearingCompleted(accepted, rejected)
	}
	s.logger.Info("offering cleared",
		zap.String("offering_id", offeringID), zap.Int("accepted", accepted), zap.Int("rejected", rejected),
		zap.Int("seats_filled", seatsFilled), zap.Int("capacity", offering.Capacity))

	return &models.ClearResult{
		OfferingID:  offeringID,
		Accepted:    accepted,
		Rejected:    rejected,
		SeatsFilled: seatsFilled,
		Capacity:    offering.Capacity,
		Message:     fmt.Sprintf("accepted %d bids, rejected %d, seats %d/%d", accepted, rejected, seatsFilled, offering.Capacity),
	}, nil
}

// refund returns a clearing debit after a failed seat or status write.
func (s *BiddingService) refund(ctx context.Context, bid models.Bid, reason string) {
	if _, err := s.ledger.Credit(ctx, bid.StudentID, bid.Points, reason, &bid.OfferingID); err != nil {
		s.logger.Error("compensating credit failed",
			zap.String("bid_id", bid.ID), zap.String("student_id", bid.StudentID), zap.Error(err))
	}
}

func (s *BiddingService) reject(ctx context.Context, bid models.Bid) error {
	if err := s.bids.UpdateStatus(ctx, bid.ID, models.BidStatusRejected); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject bid")
	}
	return nil
}

func (s *BiddingService) loadOffering(ctx context.Context, offeringID string) (*models.CourseOffering, error) {
	offering, err := s.offerings.FindByID(ctx, offeringID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "offering not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load offering")
	}
	return offering, nil
}

func (s *BiddingService) checkRange(points int) error {
	if points < 1 || points > s.maxBidPoints {
		return appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("points must be between 1 and %d", s.maxBidPoints))
	}
	return nil
}

func (s *BiddingService) checkWindow(offering *models.CourseOffering) error {
	if offering.BiddingStatus != models.BiddingOpen {
		return appErrors.ErrBiddingClosed
	}
	if offering.BiddingDeadline != nil && s.now().After(*offering.BiddingDeadline) {
		return appErrors.Clone(appErrors.ErrBiddingClosed, "the bidding deadline has passed")
	}
	return nil
}

// checkAvailability compares requested points against the balance minus the
// student's other pending bids.
func (s *BiddingService) checkAvailability(ctx context.Context, studentID string, points int, excludeOfferingID string) error {
	balance, err := s.ledger.GetBalance(ctx, studentID)
	if err != nil {
		return err
	}
	reserved, err := s.bids.SumPending(ctx, studentID, excludeOfferingID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sum pending bids")
	}
	if available := balance - reserved; points > available {
		return appErrors.Clone(appErrors.ErrInsufficientPoints,
			fmt.Sprintf("insufficient points, %d available", available))
	}
	return nil
}
