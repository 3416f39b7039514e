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

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// Find returns the enrollment row for (student, offering) regardless of
// status. A dropped row is reused on re-enrollment rather than duplicated.
func (r *EnrollmentRepository) Find(ctx context.Context, studentID, offeringID string) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, offering_id, semester, status, enrolled_at
        FROM enrollments WHERE student_id = $1 AND offering_id = $2`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, studentID, offeringID); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// ExistsActiveForCourse reports whether the student holds an active
// enrollment in any section of the given course.
func (r *EnrollmentRepository) ExistsActiveForCourse(ctx context.Context, studentID, courseID string) (bool, error) {
	const query = `SELECT 1 FROM enrollments e
        JOIN course_offerings o ON o.id = e.offering_id
        WHERE e.student_id = $1 AND o.course_id = $2 AND e.status = $3
        LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, courseID, models.EnrollmentStatusActive); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check course enrollment: %w", err)
	}
	return true, nil
}

// ListActiveDetailsByStudent returns the student's active enrollments with
// offering context, optionally restricted to one semester.
func (r *EnrollmentRepository) ListActiveDetailsByStudent(ctx context.Context, studentID, semester string) ([]models.EnrollmentDetail, error) {
	query := `SELECT e.id, e.student_id, e.offering_id, e.semester, e.status, e.enrolled_at,
        o.course_id, c.name AS course_name, c.credits, t.name AS teacher_name, o.class_time, o.classroom
        FROM enrollments e
        JOIN course_offerings o ON o.id = e.offering_id
        JOIN courses c ON c.id = o.course_id
        JOIN teachers t ON t.id = o.teacher_id
        WHERE e.student_id = $1 AND e.status = $2`
	args := []interface{}{studentID, models.EnrollmentStatusActive}
	if semester != "" {
		query += ` AND e.semester = $3`
		args = append(args, semester)
	}
	query += ` ORDER BY e.enrolled_at DESC`

	var details []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &details, query, args...); err != nil {
		return nil, fmt.Errorf("list student enrollments: %w", err)
	}
	return details, nil
}

// ListByOffering returns the roster of an offering, active seats first.
func (r *EnrollmentRepository) ListByOffering(ctx context.Context, offeringID string) ([]models.OfferingStudent, error) {
	const query = `SELECT e.id AS enrollment_id, e.student_id, s.name AS student_name, s.major, s.class_name,
        e.enrolled_at, e.status
        FROM enrollments e
        JOIN students s ON s.id = e.student_id
        WHERE e.offering_id = $1 AND e.status = $2
        ORDER BY e.student_id`
	var roster []models.OfferingStudent
	if err := r.db.SelectContext(ctx, &roster, query, offeringID, models.EnrollmentStatusActive); err != nil {
		return nil, fmt.Errorf("list offering roster: %w", err)
	}
	return roster, nil
}

// Create persists a new active enrollment.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusActive
	}
	const query = `INSERT INTO enrollments (id, student_id, offering_id, semester, status, enrolled_at)
        VALUES (:id, :student_id, :offering_id, :semester, :status, :enrolled_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// Reactivate flips a dropped enrollment back to active for a new semester.
func (r *EnrollmentRepository) Reactivate(ctx context.Context, id, semester string) error {
	const query = `UPDATE enrollments SET status = $2, semester = $3, enrolled_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.EnrollmentStatusActive, semester, time.Now().UTC()); err != nil {
		return fmt.Errorf("reactivate enrollment: %w", err)
	}
	return nil
}

// MarkDropped transitions an enrollment to dropped.
func (r *EnrollmentRepository) MarkDropped(ctx context.Context, id string) error {
	const query = `UPDATE enrollments SET status = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.EnrollmentStatusDropped); err != nil {
		return fmt.Errorf("drop enrollment: %w", err)
	}
	return nil
}

// HasFinalGrade reports whether a finalized grade exists for the enrollment.
// A recorded grade freezes the seat.
func (r *EnrollmentRepository) HasFinalGrade(ctx context.Context, enrollmentID string) (bool, error) {
	const query = `SELECT 1 FROM grades WHERE enrollment_id = $1 AND score IS NOT NULL LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, enrollmentID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check final grade: %w", err)
	}
	return true, nil
}
