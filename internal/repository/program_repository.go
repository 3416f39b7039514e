package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-bid-api/internal/models"
)

// ProgramRepository reads the program/course linkage used by the cross-major
// quota. A course with no program rows is a general course and carries no
// quota.
type ProgramRepository struct {
	db *sqlx.DB
}

// NewProgramRepository constructs the repository.
func NewProgramRepository(db *sqlx.DB) *ProgramRepository {
	return &ProgramRepository{db: db}
}

// CrossMajorQuota returns the tightest cross-major quota among the programs
// that list the course as required or elective. ok is false when no program
// lists the course at all.
func (r *ProgramRepository) CrossMajorQuota(ctx context.Context, courseID string) (quota int, ok bool, err error) {
	const query = `SELECT MIN(cross_major_quota) FROM program_courses
        WHERE course_id = $1 AND category IN ($2, $3)`
	var value sql.NullInt64
	if err := r.db.GetContext(ctx, &value, query, courseID, models.CategoryRequired, models.CategoryElective); err != nil {
		return 0, false, fmt.Errorf("load cross-major quota: %w", err)
	}
	if !value.Valid {
		return 0, false, nil
	}
	return int(value.Int64), true, nil
}

// MajorIncludesCourse reports whether the major's own program lists the
// course, in which case the student is not a cross-major enrollee.
func (r *ProgramRepository) MajorIncludesCourse(ctx context.Context, courseID, major string) (bool, error) {
	const query = `SELECT 1 FROM program_courses
        WHERE course_id = $1 AND major = $2 AND category IN ($3, $4) LIMIT 1`
	var one []int
	if err := r.db.SelectContext(ctx, &one, query, courseID, major, models.CategoryRequired, models.CategoryElective); err != nil {
		return false, fmt.Errorf("check program course: %w", err)
	}
	return len(one) > 0, nil
}

// CountCrossMajorActive counts the offering's active enrollees whose major's
// program does not list the offering's course. Students without a recorded
// major are not counted.
func (r *ProgramRepository) CountCrossMajorActive(ctx context.Context, offeringID string) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments e
        JOIN students s ON s.id = e.student_id
        JOIN course_offerings o ON o.id = e.offering_id
        WHERE e.offering_id = $1 AND e.status = $2 AND s.major <> ''
          AND NOT EXISTS (
              SELECT 1 FROM program_courses pc
              WHERE pc.course_id = o.course_id AND pc.major = s.major
                AND pc.category IN ($3, $4))`
	var count int
	if err := r.db.GetContext(ctx, &count, query, offeringID, models.EnrollmentStatusActive,
		models.CategoryRequired, models.CategoryElective); err != nil {
		return 0, fmt.Errorf("count cross-major enrollees: %w", err)
	}
	return count, nil
}
