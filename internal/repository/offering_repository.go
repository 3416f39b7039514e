package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-bid-api/internal/models"
)

// OfferingRepository handles persistence of course offerings.
type OfferingRepository struct {
	db *sqlx.DB
}

// NewOfferingRepository constructs the repository.
func NewOfferingRepository(db *sqlx.DB) *OfferingRepository {
	return &OfferingRepository{db: db}
}

const offeringColumns = `id, course_id, teacher_id, semester, class_time, classroom, capacity, seats_filled,
        bidding_deadline, bidding_status, status, created_at, updated_at`

// FindByID returns an offering by its ID.
func (r *OfferingRepository) FindByID(ctx context.Context, id string) (*models.CourseOffering, error) {
	query := fmt.Sprintf(`SELECT %s FROM course_offerings WHERE id = $1`, offeringColumns)
	var offering models.CourseOffering
	if err := r.db.GetContext(ctx, &offering, query, id); err != nil {
		return nil, err
	}
	return &offering, nil
}

// FindDetailByID returns an offering joined with catalog and teacher names.
func (r *OfferingRepository) FindDetailByID(ctx context.Context, id string) (*models.OfferingDetail, error) {
	const query = `SELECT o.id, o.course_id, o.teacher_id, o.semester, o.class_time, o.classroom, o.capacity,
        o.seats_filled, o.bidding_deadline, o.bidding_status, o.status, o.created_at, o.updated_at,
        c.name AS course_name, t.name AS teacher_name
        FROM course_offerings o
        JOIN courses c ON c.id = o.course_id
        JOIN teachers t ON t.id = o.teacher_id
        WHERE o.id = $1`
	var detail models.OfferingDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ListExpired returns offerings still open for bidding whose deadline has
// passed. Cleared offerings are excluded by the status predicate, which makes
// repeated sweeps no-ops.
func (r *OfferingRepository) ListExpired(ctx context.Context, now time.Time) ([]models.CourseOffering, error) {
	query := fmt.Sprintf(`SELECT %s FROM course_offerings
        WHERE bidding_status = $1 AND bidding_deadline IS NOT NULL AND bidding_deadline <= $2
        ORDER BY bidding_deadline ASC`, offeringColumns)
	var offerings []models.CourseOffering
	if err := r.db.SelectContext(ctx, &offerings, query, models.BiddingOpen, now); err != nil {
		return nil, fmt.Errorf("list expired offerings: %w", err)
	}
	return offerings, nil
}

// ListByClassroom returns offerings sharing a classroom in a semester,
// excluding one offering ID when provided.
func (r *OfferingRepository) ListByClassroom(ctx context.Context, classroom, semester, excludeID string) ([]models.OfferingDetail, error) {
	query := `SELECT o.id, o.course_id, o.teacher_id, o.semester, o.class_time, o.classroom, o.capacity,
        o.seats_filled, o.bidding_deadline, o.bidding_status, o.status, o.created_at, o.updated_at,
        c.name AS course_name, t.name AS teacher_name
        FROM course_offerings o
        JOIN courses c ON c.id = o.course_id
        JOIN teachers t ON t.id = o.teacher_id
        WHERE o.classroom = $1 AND o.semester = $2`
	args := []interface{}{classroom, semester}
	if excludeID != "" {
		query += ` AND o.id <> $3`
		args = append(args, excludeID)
	}
	var offerings []models.OfferingDetail
	if err := r.db.SelectContext(ctx, &offerings, query, args...); err != nil {
		return nil, fmt.Errorf("list classroom offerings: %w", err)
	}
	return offerings, nil
}

// Create persists a new offering.
func (r *OfferingRepository) Create(ctx context.Context, offering *models.CourseOffering) error {
	if offering.ID == "" {
		offering.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	offering.CreatedAt = now
	offering.UpdatedAt = now
	if offering.BiddingStatus == "" {
		offering.BiddingStatus = models.BiddingOpen
	}
	if offering.Status == "" {
		offering.Status = models.OfferingOpen
	}
	const query = `INSERT INTO course_offerings (id, course_id, teacher_id, semester, class_time, classroom,
        capacity, seats_filled, bidding_deadline, bidding_status, status, created_at, updated_at)
        VALUES (:id, :course_id, :teacher_id, :semester, :class_time, :classroom,
        :capacity, :seats_filled, :bidding_deadline, :bidding_status, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, offering); err != nil {
		return fmt.Errorf("create offering: %w", err)
	}
	return nil
}

// IncrementSeats bumps the seat counter after a successful enrollment.
func (r *OfferingRepository) IncrementSeats(ctx context.Context, id string) error {
	const query = `UPDATE course_offerings SET seats_filled = seats_filled + 1, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("increment seats: %w", err)
	}
	return nil
}

// ReleaseSeat decrements the seat counter and reopens a full offering in one
// statement, so a drop cannot release the row yet leak the seat.
func (r *OfferingRepository) ReleaseSeat(ctx context.Context, id string) error {
	const query = `UPDATE course_offerings
        SET seats_filled = seats_filled - 1,
            status = CASE WHEN status = $2 THEN $3 ELSE status END,
            updated_at = $4
        WHERE id = $1 AND seats_filled > 0`
	if _, err := r.db.ExecContext(ctx, query, id, models.OfferingFull, models.OfferingOpen, time.Now().UTC()); err != nil {
		return fmt.Errorf("release seat: %w", err)
	}
	return nil
}

// MarkFull flips the offering to full.
func (r *OfferingRepository) MarkFull(ctx context.Context, id string) error {
	const query = `UPDATE course_offerings SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.OfferingFull, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark offering full: %w", err)
	}
	return nil
}

// SetClearingOutcome writes the post-clearing seat count and statuses in one
// statement.
func (r *OfferingRepository) SetClearingOutcome(ctx context.Context, id string, seatsFilled int, bidding models.BiddingState, status models.OfferingStatus) error {
	const query = `UPDATE course_offerings SET seats_filled = $2, bidding_status = $3, status = $4, updated_at = $5 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, seatsFilled, bidding, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("set clearing outcome: %w", err)
	}
	return nil
}
