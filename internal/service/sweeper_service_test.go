package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/course-bid-api/internal/models"
	appErrors "github.com/noah-isme/course-bid-api/pkg/errors"
)

type mockExpiredLister struct {
	expired []models.CourseOffering
}

func (m *mockExpiredLister) ListExpired(_ context.Context, _ time.Time) ([]models.CourseOffering, error) {
	return m.expired, nil
}

type mockClearer struct {
	failFor map[string]error
	cleared []string
}

func (m *mockClearer) Clear(_ context.Context, offeringID string) (*models.ClearResult, error) {
	if err := m.failFor[offeringID]; err != nil {
		return nil, err
	}
	m.cleared = append(m.cleared, offeringID)
	return &models.ClearResult{OfferingID: offeringID, Accepted: 1, Message: "accepted 1 bids, rejected 0, seats 1/1"}, nil
}

func TestSweepContinuesPastFailures(t *testing.T) {
	deadline := time.Now().Add(-time.Hour)
	lister := &mockExpiredLister{expired: []models.CourseOffering{
		{ID: "off-1", BiddingDeadline: &deadline},
		{ID: "off-2", BiddingDeadline: &deadline},
		{ID: "off-3", BiddingDeadline: &deadline},
	}}
	clearer := &mockClearer{failFor: map[string]error{
		"off-2": appErrors.Clone(appErrors.ErrConflict, "no pending bids to process"),
	}}
	svc := NewSweeperService(lister, clearer, nil, zap.NewNop())

	report, err := svc.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 2, report.Successful)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, []string{"off-1", "off-3"}, clearer.cleared)

	require.Len(t, report.Entries, 3)
	assert.True(t, report.Entries[0].Success)
	assert.False(t, report.Entries[1].Success)
	assert.Equal(t, "no pending bids to process", report.Entries[1].Message)
}

func TestSweepWithNothingExpired(t *testing.T) {
	svc := NewSweeperService(&mockExpiredLister{}, &mockClearer{}, nil, zap.NewNop())
	report, err := svc.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Total)
	assert.Empty(t, report.Entries)
}

func TestSweepSecondPassIsNoOp(t *testing.T) {
	deadline := time.Now().Add(-time.Minute)
	lister := &mockExpiredLister{expired: []models.CourseOffering{{ID: "off-1", BiddingDeadline: &deadline}}}
	clearer := &mockClearer{}
	svc := NewSweeperService(lister, clearer, nil, zap.NewNop())

	first, err := svc.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Successful)

	// a settled offering no longer matches the expiry query
	lister.expired = nil
	second, err := svc.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Zero(t, second.Total)
	assert.Len(t, clearer.cleared, 1)
}
