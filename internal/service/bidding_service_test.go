package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/course-bid-api/internal/models"
	appErrors "github.com/noah-isme/course-bid-api/pkg/errors"
	"github.com/noah-isme/course-bid-api/pkg/lock"
)

type mockBidStore struct {
	bids       []*models.Bid
	deleted    int
	failStatus map[string]bool
}

func (m *mockBidStore) find(studentID, offeringID string) *models.Bid {
	for _, bid := range m.bids {
		if bid.StudentID == studentID && bid.OfferingID == offeringID {
			return bid
		}
	}
	return nil
}

func (m *mockBidStore) byID(id string) *models.Bid {
	for _, bid := range m.bids {
		if bid.ID == id {
			return bid
		}
	}
	return nil
}

func (m *mockBidStore) Find(_ context.Context, studentID, offeringID string) (*models.Bid, error) {
	if bid := m.find(studentID, offeringID); bid != nil {
		copied := *bid
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockBidStore) FindActive(_ context.Context, studentID, offeringID string) (*models.Bid, error) {
	if bid := m.find(studentID, offeringID); bid != nil && bid.Status != models.BidStatusCancelled {
		copied := *bid
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockBidStore) SumPending(_ context.Context, studentID, excludeOfferingID string) (int, error) {
	total := 0
	for _, bid := range m.bids {
		if bid.StudentID == studentID && bid.Status == models.BidStatusPending && bid.OfferingID != excludeOfferingID {
			total += bid.Points
		}
	}
	return total, nil
}

func (m *mockBidStore) DeleteCancelled(_ context.Context, studentID, offeringID string) error {
	for i, bid := range m.bids {
		if bid.StudentID == studentID && bid.OfferingID == offeringID && bid.Status == models.BidStatusCancelled {
			m.bids = append(m.bids[:i], m.bids[i+1:]...)
			m.deleted++
			return nil
		}
	}
	return nil
}

func (m *mockBidStore) Create(_ context.Context, bid *models.Bid) error {
	if bid.ID == "" {
		bid.ID = fmt.Sprintf("bid-%d", len(m.bids)+1)
	}
	if bid.Status == "" {
		bid.Status = models.BidStatusPending
	}
	if bid.SubmittedAt.IsZero() {
		bid.SubmittedAt = time.Now()
	}
	copied := *bid
	m.bids = append(m.bids, &copied)
	return nil
}

func (m *mockBidStore) UpdatePoints(_ context.Context, id string, points int) error {
	if bid := m.byID(id); bid != nil {
		bid.Points = points
	}
	return nil
}

func (m *mockBidStore) UpdateStatus(_ context.Context, id string, status models.BidStatus) error {
	if m.failStatus[id] {
		return errors.New("status write failed")
	}
	if bid := m.byID(id); bid != nil {
		bid.Status = status
	}
	return nil
}

func (m *mockBidStore) ListPendingRanked(_ context.Context, offeringID string) ([]models.Bid, error) {
	var pending []models.Bid
	for _, bid := range m.bids {
		if bid.OfferingID == offeringID && bid.Status == models.BidStatusPending {
			pending = append(pending, *bid)
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		if pending[i].Points != pending[j].Points {
			return pending[i].Points > pending[j].Points
		}
		return pending[i].SubmittedAt.Before(pending[j].SubmittedAt)
	})
	return pending, nil
}

func (m *mockBidStore) Ranking(_ context.Context, offeringID string) ([]models.RankedBid, error) {
	pending, _ := m.ListPendingRanked(context.Background(), offeringID)
	ranking := make([]models.RankedBid, 0, len(pending))
	for i, bid := range pending {
		ranking = append(ranking, models.RankedBid{
			StudentID: bid.StudentID, Points: bid.Points, SubmittedAt: bid.SubmittedAt,
			Status: bid.Status, Rank: i + 1,
		})
	}
	return ranking, nil
}

func (m *mockBidStore) PendingStats(_ context.Context, offeringID string) (int, *int, *int, *float64, error) {
	count := 0
	var max, min int
	sum := 0
	for _, bid := range m.bids {
		if bid.OfferingID != offeringID || bid.Status != models.BidStatusPending {
			continue
		}
		if count == 0 || bid.Points > max {
			max = bid.Points
		}
		if count == 0 || bid.Points < min {
			min = bid.Points
		}
		sum += bid.Points
		count++
	}
	if count == 0 {
		return 0, nil, nil, nil, nil
	}
	avg := float64(sum) / float64(count)
	return count, &max, &min, &avg, nil
}

type mockOfferingStore struct {
	offering *models.CourseOffering
	others   map[string]*models.CourseOffering

	outcomeSeats   int
	outcomeBidding models.BiddingState
	outcomeStatus  models.OfferingStatus
	outcomeCalls   int
}

func (m *mockOfferingStore) FindByID(_ context.Context, id string) (*models.CourseOffering, error) {
	if m.offering != nil && m.offering.ID == id {
		copied := *m.offering
		return &copied, nil
	}
	if other, ok := m.others[id]; ok {
		copied := *other
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockOfferingStore) SetClearingOutcome(_ context.Context, id string, seatsFilled int, bidding models.BiddingState, status models.OfferingStatus) error {
	m.outcomeSeats = seatsFilled
	m.outcomeBidding = bidding
	m.outcomeStatus = status
	m.outcomeCalls++
	m.offering.SeatsFilled = seatsFilled
	m.offering.BiddingStatus = bidding
	m.offering.Status = status
	return nil
}

type mockLedger struct {
	balances  map[string]int
	failDebit map[string]bool
	debits    []string
	credits   []string
}

func (m *mockLedger) GetBalance(_ context.Context, studentID string) (int, error) {
	return m.balances[studentID], nil
}

func (m *mockLedger) Debit(_ context.Context, studentID string, amount int, _ string, _ *string) (*models.PointsTransaction, error) {
	if m.failDebit[studentID] {
		return nil, errors.New("ledger unavailable")
	}
	if m.balances[studentID] < amount {
		return nil, appErrors.ErrInsufficientPoints
	}
	m.balances[studentID] -= amount
	m.debits = append(m.debits, studentID)
	return &models.PointsTransaction{StudentID: studentID, Delta: -amount, BalanceAfter: m.balances[studentID]}, nil
}

func (m *mockLedger) Credit(_ context.Context, studentID string, amount int, _ string, _ *string) (*models.PointsTransaction, error) {
	m.balances[studentID] += amount
	m.credits = append(m.credits, studentID)
	return &models.PointsTransaction{StudentID: studentID, Delta: amount, BalanceAfter: m.balances[studentID]}, nil
}

type mockSeats struct {
	seated   []string
	released []string
	failFor  map[string]bool
}

func (m *mockSeats) MaterializeFromBid(_ context.Context, studentID string, _ *models.CourseOffering) (*models.Enrollment, error) {
	if m.failFor[studentID] {
		return nil, errors.New("enrollment write failed")
	}
	m.seated = append(m.seated, studentID)
	return &models.Enrollment{ID: "enr-" + studentID, StudentID: studentID, Status: models.EnrollmentStatusActive}, nil
}

func (m *mockSeats) ReleaseMaterialized(_ context.Context, enrollmentID string) error {
	m.released = append(m.released, enrollmentID)
	return nil
}

type mockCourseCheck struct {
	enrolled map[string]bool
}

func (m *mockCourseCheck) ExistsActiveForCourse(_ context.Context, studentID, _ string) (bool, error) {
	return m.enrolled[studentID], nil
}

type memoryCache struct {
	store   map[string][]byte
	deleted []string
}

func (m *memoryCache) Get(_ context.Context, key string, dest interface{}) error {
	payload, ok := m.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (m *memoryCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	if m.store == nil {
		m.store = make(map[string][]byte)
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.store[key] = payload
	return nil
}

func (m *memoryCache) Delete(_ context.Context, keys ...string) {
	m.deleted = append(m.deleted, keys...)
	for _, key := range keys {
		delete(m.store, key)
	}
}

type biddingFixture struct {
	bids      *mockBidStore
	offerings *mockOfferingStore
	ledger    *mockLedger
	seats     *mockSeats
	enrolled  *mockCourseCheck
	cache     *memoryCache
	svc       *BiddingService
}

func newBiddingFixture(offering *models.CourseOffering) *biddingFixture {
	f := &biddingFixture{
		bids:      &mockBidStore{},
		offerings: &mockOfferingStore{offering: offering},
		ledger:    &mockLedger{balances: map[string]int{}, failDebit: map[string]bool{}},
		seats:     &mockSeats{failFor: map[string]bool{}},
		enrolled:  &mockCourseCheck{enrolled: map[string]bool{}},
		cache:     &memoryCache{},
	}
	f.svc = NewBiddingService(
		f.bids, f.offerings, f.ledger, f.seats, f.enrolled, f.cache,
		lock.NewKeyedMutex(), 100, 30*time.Second, nil, zap.NewNop())
	return f
}

func openOffering(capacity, seatsFilled int) *models.CourseOffering {
	deadline := time.Now().Add(time.Hour)
	return &models.CourseOffering{
		ID:              "off-1",
		CourseID:        "course-1",
		Semester:        "2025-FALL",
		Capacity:        capacity,
		SeatsFilled:     seatsFilled,
		BiddingDeadline: &deadline,
		BiddingStatus:   models.BiddingOpen,
		Status:          models.OfferingOpen,
	}
}

func TestPlaceBidSucceeds(t *testing.T) {
	f := newBiddingFixture(openOffering(2, 0))
	f.ledger.balances["s1"] = 100

	bid, err := f.svc.Place(context.Background(), PlaceBidRequest{StudentID: "s1", OfferingID: "off-1", Points: 60})
	require.NoError(t, err)
	assert.Equal(t, models.BidStatusPending, bid.Status)
	assert.Equal(t, 60, bid.Points)
	assert.Contains(t, f.cache.deleted, "bidding:status:off-1")
	// no points move at placement
	assert.Equal(t, 100, f.ledger.balances["s1"])
}

func TestPlaceBidRejectsDuplicate(t *testing.T) {
	f := newBiddingFixture(openOffering(2, 0))
	f.ledger.balances["s1"] = 100
	_, err := f.svc.Place(context.Background(), PlaceBidRequest{StudentID: "s1", OfferingID: "off-1", Points: 30})
	require.NoError(t, err)

	_, err = f.svc.Place(context.Background(), PlaceBidRequest{StudentID: "s1", OfferingID: "off-1", Points: 40})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicateBid.Code, appErrors.FromError(err).Code)
}

func TestPlaceBidSupersedesCancelled(t *testing.T) {
	f := newBiddingFixture(openOffering(2, 0))
	f.ledger.balances["s1"] = 100
	f.bids.bids = append(f.bids.bids, &models.Bid{
		ID: "bid-old", StudentID: "s1", OfferingID: "off-1", Points: 20,
		Status: models.BidStatusCancelled, SubmittedAt: time.Now(),
	})

	bid, err := f.svc.Place(context.Background(), PlaceBidRequest{StudentID: "s1", OfferingID: "off-1", Points: 50})
	require.NoError(t, err)
	assert.Equal(t, 1, f.bids.deleted)
	assert.Equal(t, 50, bid.Points)
}

func TestPlaceBidCountsOtherPendingBids(t *testing.T) {
	f := newBiddingFixture(openOffering(2, 0))
	f.ledger.balances["s1"] = 100
	f.bids.bids = append(f.bids.bids, &models.Bid{
		ID: "bid-other", StudentID: "s1", OfferingID: "off-2", Points: 60,
		Status: models.BidStatusPending, SubmittedAt: time.Now(),
	})

	_, err := f.svc.Place(context.Background(), PlaceBidRequest{StudentID: "s1", OfferingID: "off-1", Points: 50})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInsufficientPoints.Code, appErrors.FromError(err).Code)

	_, err = f.svc.Place(context.Background(), PlaceBidRequest{StudentID: "s1", OfferingID: "off-1", Points: 40})
	require.NoError(t, err)
}

func TestPendingSumNeverExceedsBalanceAcrossRandomSequences(t *testing.T) {
	f := newBiddingFixture(openOffering(5, 0))
	offeringIDs := []string{"off-1", "off-2", "off-3", "off-4"}
	f.offerings.others = map[string]*models.CourseOffering{}
	for _, id := range offeringIDs[1:] {
		other := openOffering(5, 0)
		other.ID = id
		f.offerings.others[id] = other
	}

	const balance = 120
	f.ledger.balances["s1"] = balance

	// fixed seed keeps the sequence reproducible
	rng := rand.New(rand.NewSource(7))
	ctx := context.Background()
	for step := 0; step < 200; step++ {
		offeringID := offeringIDs[rng.Intn(len(offeringIDs))]
		points := rng.Intn(100) + 1
		switch rng.Intn(3) {
		case 0:
			f.svc.Place(ctx, PlaceBidRequest{StudentID: "s1", OfferingID: offeringID, Points: points})
		case 1:
			f.svc.Modify(ctx, ModifyBidRequest{StudentID: "s1", OfferingID: offeringID, Points: points})
		default:
			f.svc.Cancel(ctx, CancelBidRequest{StudentID: "s1", OfferingID: offeringID})
		}

		reserved, err := f.bids.SumPending(ctx, "s1", "")
		require.NoError(t, err)
		require.LessOrEqual(t, reserved, balance, "step %d: pending bids outgrew the balance", step)
	}
}

func TestPlaceBidRangeAndDeadline(t *testing.T) {
	f := newBiddingFixture(openOffering(2, 0))
	f.ledger.balances["s1"] = 500

	_, err := f.svc.Place(context.Background(), PlaceBidRequest{StudentID: "s1", OfferingID: "off-1", Points: 101})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	f.svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = f.svc.Place(context.Background(), PlaceBidRequest{StudentID: "s1", OfferingID: "off-1", Points: 50})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrBiddingClosed.Code, appErrors.FromError(err).Code)
}

func TestModifyBidReRanksAvailability(t *testing.T) {
	f := newBiddingFixture(openOffering(2, 0))
	f.ledger.balances["s1"] = 100
	_, err := f.svc.Place(context.Background(), PlaceBidRequest{StudentID: "s1", OfferingID: "off-1", Points: 60})
	require.NoError(t, err)

	// raising within balance is fine because the old bid is excluded
	bid, err := f.svc.Modify(context.Background(), ModifyBidRequest{StudentID: "s1", OfferingID: "off-1", Points: 90})
	require.NoError(t, err)
	assert.Equal(t, 90, bid.Points)

	_, err = f.svc.Modify(context.Background(), ModifyBidRequest{StudentID: "s2", OfferingID: "off-1", Points: 10})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestCancelProcessedBidFails(t *testing.T) {
	f := newBiddingFixture(openOffering(2, 0))
	f.bids.bids = append(f.bids.bids, &models.Bid{
		ID: "bid-1", StudentID: "s1", OfferingID: "off-1", Points: 40,
		Status: models.BidStatusAccepted, SubmittedAt: time.Now(),
	})

	err := f.svc.Cancel(context.Background(), CancelBidRequest{StudentID: "s1", OfferingID: "off-1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrBidProcessed.Code, appErrors.FromError(err).Code)
}

func TestCancelPendingBidMovesNoPoints(t *testing.T) {
	f := newBiddingFixture(openOffering(2, 0))
	f.ledger.balances["s1"] = 100
	_, err := f.svc.Place(context.Background(), PlaceBidRequest{StudentID: "s1", OfferingID: "off-1", Points: 60})
	require.NoError(t, err)

	require.NoError(t, f.svc.Cancel(context.Background(), CancelBidRequest{StudentID: "s1", OfferingID: "off-1"}))
	assert.Equal(t, 100, f.ledger.balances["s1"])
	assert.Empty(t, f.ledger.credits)
}

func TestClearRanksByPointsThenSubmissionTime(t *testing.T) {
	f := newBiddingFixture(openOffering(2, 0))
	f.ledger.balances = map[string]int{"s1": 200, "s2": 200, "s3": 200}
	base := time.Now()
	f.bids.bids = []*models.Bid{
		{ID: "b3", StudentID: "s3", OfferingID: "off-1", Points: 40, Status: models.BidStatusPending, SubmittedAt: base},
		{ID: "b2", StudentID: "s2", OfferingID: "off-1", Points: 60, Status: models.BidStatusPending, SubmittedAt: base.Add(time.Minute)},
		{ID: "b1", StudentID: "s1", OfferingID: "off-1", Points: 60, Status: models.BidStatusPending, SubmittedAt: base.Add(time.Second)},
	}

	result, err := f.svc.Clear(context.Background(), "off-1")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Accepted)
	assert.Equal(t, 1, result.Rejected)
	assert.Equal(t, 2, result.SeatsFilled)

	// equal points resolved by earlier submission
	assert.Equal(t, []string{"s1", "s2"}, f.ledger.debits)
	assert.Equal(t, models.BidStatusAccepted, f.bids.byID("b1").Status)
	assert.Equal(t, models.BidStatusAccepted, f.bids.byID("b2").Status)
	assert.Equal(t, models.BidStatusRejected, f.bids.byID("b3").Status)

	assert.Equal(t, 140, f.ledger.balances["s1"])
	assert.Equal(t, 140, f.ledger.balances["s2"])
	assert.Equal(t, 200, f.ledger.balances["s3"])

	assert.Equal(t, models.BiddingClosed, f.offerings.outcomeBidding)
	assert.Equal(t, models.OfferingFull, f.offerings.outcomeStatus)
}

func TestClearPassesSlotToNextOnDebitFailure(t *testing.T) {
	f := newBiddingFixture(openOffering(1, 0))
	f.ledger.balances = map[string]int{"s1": 200, "s2": 200}
	f.ledger.failDebit["s1"] = true
	base := time.Now()
	f.bids.bids = []*models.Bid{
		{ID: "b1", StudentID: "s1", OfferingID: "off-1", Points: 80, Status: models.BidStatusPending, SubmittedAt: base},
		{ID: "b2", StudentID: "s2", OfferingID: "off-1", Points: 50, Status: models.BidStatusPending, SubmittedAt: base.Add(time.Second)},
	}

	result, err := f.svc.Clear(context.Background(), "off-1")
	require.NoError(t, err)

	// the failed candidate keeps its reservation and the seat moves down the ranking
	assert.Equal(t, models.BidStatusPending, f.bids.byID("b1").Status)
	assert.Equal(t, models.BidStatusAccepted, f.bids.byID("b2").Status)
	assert.Equal(t, 1, result.Accepted)
	assert.Equal(t, 1, result.SeatsFilled)
	assert.Equal(t, []string{"s2"}, f.seats.seated)
	assert.Equal(t, 200, f.ledger.balances["s1"])
}

func TestClearCompensatesSeatWriteFailure(t *testing.T) {
	f := newBiddingFixture(openOffering(1, 0))
	f.ledger.balances = map[string]int{"s1": 200}
	f.seats.failFor["s1"] = true
	f.bids.bids = []*models.Bid{
		{ID: "b1", StudentID: "s1", OfferingID: "off-1", Points: 80, Status: models.BidStatusPending, SubmittedAt: time.Now()},
	}

	result, err := f.svc.Clear(context.Background(), "off-1")
	require.NoError(t, err)
	assert.Equal(t, 0, result.Accepted)
	assert.Equal(t, models.BidStatusPending, f.bids.byID("b1").Status)
	assert.Equal(t, []string{"s1"}, f.ledger.credits)
	assert.Equal(t, 200, f.ledger.balances["s1"])
	assert.Equal(t, models.BiddingOpen, f.offerings.outcomeBidding)
}

func TestClearKeepsBidPendingWhenAcceptWriteFails(t *testing.T) {
	f := newBiddingFixture(openOffering(1, 0))
	f.ledger.balances = map[string]int{"s1": 200, "s2": 200}
	f.bids.failStatus = map[string]bool{"b1": true}
	base := time.Now()
	f.bids.bids = []*models.Bid{
		{ID: "b1", StudentID: "s1", OfferingID: "off-1", Points: 60, Status: models.BidStatusPending, SubmittedAt: base},
		{ID: "b2", StudentID: "s2", OfferingID: "off-1", Points: 50, Status: models.BidStatusPending, SubmittedAt: base.Add(time.Second)},
	}

	result, err := f.svc.Clear(context.Background(), "off-1")
	require.NoError(t, err)

	// the failed candidate is fully unwound and the seat moves down the ranking
	assert.Equal(t, models.BidStatusPending, f.bids.byID("b1").Status)
	assert.Equal(t, 200, f.ledger.balances["s1"])
	assert.Equal(t, []string{"s1"}, f.ledger.credits)
	assert.Equal(t, []string{"enr-s1"}, f.seats.released)

	assert.Equal(t, models.BidStatusAccepted, f.bids.byID("b2").Status)
	assert.Equal(t, 1, result.Accepted)
	assert.Equal(t, 1, result.SeatsFilled)
	assert.Equal(t, 1, f.offerings.outcomeCalls)
}

func TestClearRecordsProgressWhenAbortingMidPass(t *testing.T) {
	f := newBiddingFixture(openOffering(1, 0))
	f.ledger.balances = map[string]int{"s1": 200, "s2": 200}
	f.bids.failStatus = map[string]bool{"b2": true}
	base := time.Now()
	f.bids.bids = []*models.Bid{
		{ID: "b1", StudentID: "s1", OfferingID: "off-1", Points: 90, Status: models.BidStatusPending, SubmittedAt: base},
		{ID: "b2", StudentID: "s2", OfferingID: "off-1", Points: 40, Status: models.BidStatusPending, SubmittedAt: base.Add(time.Second)},
	}

	_, err := f.svc.Clear(context.Background(), "off-1")
	require.Error(t, err)

	// the seat granted before the abort is persisted, so a retry cannot
	// hand it out again
	assert.Equal(t, models.BidStatusAccepted, f.bids.byID("b1").Status)
	assert.Equal(t, 1, f.offerings.outcomeCalls)
	assert.Equal(t, 1, f.offerings.outcomeSeats)
	assert.Equal(t, 1, f.offerings.offering.SeatsFilled)
}

func TestClearRejectsCrossSectionCandidates(t *testing.T) {
	f := newBiddingFixture(openOffering(1, 0))
	f.ledger.balances = map[string]int{"s1": 200, "s2": 200}
	f.enrolled.enrolled["s1"] = true
	base := time.Now()
	f.bids.bids = []*models.Bid{
		{ID: "b1", StudentID: "s1", OfferingID: "off-1", Points: 90, Status: models.BidStatusPending, SubmittedAt: base},
		{ID: "b2", StudentID: "s2", OfferingID: "off-1", Points: 40, Status: models.BidStatusPending, SubmittedAt: base.Add(time.Second)},
	}

	result, err := f.svc.Clear(context.Background(), "off-1")
	require.NoError(t, err)
	assert.Equal(t, models.BidStatusRejected, f.bids.byID("b1").Status)
	assert.Equal(t, models.BidStatusAccepted, f.bids.byID("b2").Status)
	assert.Equal(t, 1, result.Accepted)
	assert.Equal(t, 1, result.Rejected)
	assert.Empty(t, f.ledger.credits)
	assert.Equal(t, 200, f.ledger.balances["s1"])
}

func TestClearWithNoFreeSeats(t *testing.T) {
	f := newBiddingFixture(openOffering(2, 2))
	_, err := f.svc.Clear(context.Background(), "off-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNoSeats.Code, appErrors.FromError(err).Code)
	assert.Zero(t, f.offerings.outcomeCalls)
}

func TestClearLeavesBiddingOpenWhenUnfilled(t *testing.T) {
	f := newBiddingFixture(openOffering(3, 0))
	f.ledger.balances = map[string]int{"s1": 200}
	f.bids.bids = []*models.Bid{
		{ID: "b1", StudentID: "s1", OfferingID: "off-1", Points: 30, Status: models.BidStatusPending, SubmittedAt: time.Now()},
	}

	result, err := f.svc.Clear(context.Background(), "off-1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.SeatsFilled)
	assert.Equal(t, models.BiddingOpen, f.offerings.outcomeBidding)
	assert.Equal(t, models.OfferingOpen, f.offerings.outcomeStatus)
}

func TestStatusReportsMissingOffering(t *testing.T) {
	f := newBiddingFixture(openOffering(2, 0))
	snapshot, err := f.svc.Status(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, snapshot.Exists)
}

func TestStatusServedFromCache(t *testing.T) {
	f := newBiddingFixture(openOffering(5, 1))
	f.bids.bids = []*models.Bid{
		{ID: "b1", StudentID: "s1", OfferingID: "off-1", Points: 30, Status: models.BidStatusPending, SubmittedAt: time.Now()},
	}

	first, err := f.svc.Status(context.Background(), "off-1")
	require.NoError(t, err)
	require.True(t, first.Exists)
	require.NotNil(t, first.MaxPoints)
	assert.Equal(t, 30, *first.MaxPoints)

	// a direct store change is invisible until the cache entry is invalidated
	f.offerings.offering.SeatsFilled = 4
	cached, err := f.svc.Status(context.Background(), "off-1")
	require.NoError(t, err)
	assert.Equal(t, 1, cached.SeatsFilled)
}
