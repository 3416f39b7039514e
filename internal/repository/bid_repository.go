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

// BidRepository handles persistence of bids.
type BidRepository struct {
	db *sqlx.DB
}

// NewBidRepository constructs the repository.
func NewBidRepository(db *sqlx.DB) *BidRepository {
	return &BidRepository{db: db}
}

// Find returns the bid for (student, offering) regardless of status.
func (r *BidRepository) Find(ctx context.Context, studentID, offeringID string) (*models.Bid, error) {
	const query = `SELECT id, student_id, offering_id, points, status, submitted_at, updated_at
        FROM bids WHERE student_id = $1 AND offering_id = $2`
	var bid models.Bid
	if err := r.db.GetContext(ctx, &bid, query, studentID, offeringID); err != nil {
		return nil, err
	}
	return &bid, nil
}

// FindActive returns the non-cancelled bid for (student, offering).
func (r *BidRepository) FindActive(ctx context.Context, studentID, offeringID string) (*models.Bid, error) {
	const query = `SELECT id, student_id, offering_id, points, status, submitted_at, updated_at
        FROM bids WHERE student_id = $1 AND offering_id = $2 AND status <> $3`
	var bid models.Bid
	if err := r.db.GetContext(ctx, &bid, query, studentID, offeringID, models.BidStatusCancelled); err != nil {
		return nil, err
	}
	return &bid, nil
}

// SumPending totals the student's pending bid points, optionally excluding one
// offering (used when modifying that offering's bid).
func (r *BidRepository) SumPending(ctx context.Context, studentID, excludeOfferingID string) (int, error) {
	query := `SELECT COALESCE(SUM(points), 0) FROM bids WHERE student_id = $1 AND status = $2`
	args := []interface{}{studentID, models.BidStatusPending}
	if excludeOfferingID != "" {
		query += ` AND offering_id <> $3`
		args = append(args, excludeOfferingID)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		return 0, fmt.Errorf("sum pending bids: %w", err)
	}
	return total, nil
}

// DeleteCancelled removes a cancelled bid row so a fresh placement can
// supersede it.
func (r *BidRepository) DeleteCancelled(ctx context.Context, studentID, offeringID string) error {
	const query = `DELETE FROM bids WHERE student_id = $1 AND offering_id = $2 AND status = $3`
	if _, err := r.db.ExecContext(ctx, query, studentID, offeringID, models.BidStatusCancelled); err != nil {
		return fmt.Errorf("delete cancelled bid: %w", err)
	}
	return nil
}

// Create persists a new bid.
func (r *BidRepository) Create(ctx context.Context, bid *models.Bid) error {
	if bid.ID == "" {
		bid.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if bid.SubmittedAt.IsZero() {
		bid.SubmittedAt = now
	}
	bid.UpdatedAt = now
	if bid.Status == "" {
		bid.Status = models.BidStatusPending
	}
	const query = `INSERT INTO bids (id, student_id, offering_id, points, status, submitted_at, updated_at)
        VALUES (:id, :student_id, :offering_id, :points, :status, :submitted_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, bid); err != nil {
		return fmt.Errorf("create bid: %w", err)
	}
	return nil
}

// UpdatePoints changes a bid's committed points in place.
func (r *BidRepository) UpdatePoints(ctx context.Context, id string, points int) error {
	const query = `UPDATE bids SET points = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, points, time.Now().UTC()); err != nil {
		return fmt.Errorf("update bid points: %w", err)
	}
	return nil
}

// UpdateStatus transitions a bid's lifecycle state.
func (r *BidRepository) UpdateStatus(ctx context.Context, id string, status models.BidStatus) error {
	const query = `UPDATE bids SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update bid status: %w", err)
	}
	return nil
}

// ListPendingRanked returns all pending bids for an offering in clearing
// order: points descending, earlier submission first on ties.
func (r *BidRepository) ListPendingRanked(ctx context.Context, offeringID string) ([]models.Bid, error) {
	const query = `SELECT id, student_id, offering_id, points, status, submitted_at, updated_at
        FROM bids WHERE offering_id = $1 AND status = $2
        ORDER BY points DESC, submitted_at ASC`
	var bids []models.Bid
	if err := r.db.SelectContext(ctx, &bids, query, offeringID, models.BidStatusPending); err != nil {
		return nil, fmt.Errorf("list pending bids: %w", err)
	}
	return bids, nil
}

// Ranking returns every bid on the offering with student names, ordered the
// same way clearing orders them. Rank numbers are assigned by the caller's
// position in the slice.
func (r *BidRepository) Ranking(ctx context.Context, offeringID string) ([]models.RankedBid, error) {
	const query = `SELECT b.student_id, s.name AS student_name, b.points, b.submitted_at, b.status
        FROM bids b
        JOIN students s ON s.id = b.student_id
        WHERE b.offering_id = $1
        ORDER BY b.points DESC, b.submitted_at ASC`
	var ranking []models.RankedBid
	if err := r.db.SelectContext(ctx, &ranking, query, offeringID); err != nil {
		return nil, fmt.Errorf("list bid ranking: %w", err)
	}
	for i := range ranking {
		ranking[i].Rank = i + 1
	}
	return ranking, nil
}

type pendingStats struct {
	Count int      `db:"count"`
	Max   *int     `db:"max_points"`
	Min   *int     `db:"min_points"`
	Avg   *float64 `db:"avg_points"`
}

// PendingStats aggregates the pending bids of one offering.
func (r *BidRepository) PendingStats(ctx context.Context, offeringID string) (count int, max, min *int, avg *float64, err error) {
	const query = `SELECT COUNT(*) AS count, MAX(points) AS max_points, MIN(points) AS min_points, AVG(points) AS avg_points
        FROM bids WHERE offering_id = $1 AND status = $2`
	var stats pendingStats
	if err := r.db.GetContext(ctx, &stats, query, offeringID, models.BidStatusPending); err != nil && err != sql.ErrNoRows {
		return 0, nil, nil, nil, fmt.Errorf("aggregate pending bids: %w", err)
	}
	return stats.Count, stats.Max, stats.Min, stats.Avg, nil
}
