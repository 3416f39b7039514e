package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-bid-api/internal/models"
)

func TestEnrollmentExistsActiveForCourse(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery("JOIN course_offerings").
		WithArgs("s1", "course-1", string(models.EnrollmentStatusActive)).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.ExistsActiveForCourse(context.Background(), "s1", "course-1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestEnrollmentExistsActiveForCourseNone(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery("JOIN course_offerings").
		WithArgs("s1", "course-1", string(models.EnrollmentStatusActive)).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	exists, err := repo.ExistsActiveForCourse(context.Background(), "s1", "course-1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestEnrollmentListActiveDetailsBySemester(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "student_id", "offering_id", "semester", "status", "enrolled_at",
		"course_id", "course_name", "credits", "teacher_name", "class_time", "classroom"}).
		AddRow("enr-1", "s1", "off-1", "2025-FALL", "active", now,
			"course-1", "Linear Algebra", 3.0, "Prof. Chen", "周三 5-6节", "A-101")
	mock.ExpectQuery("AND e.semester").
		WithArgs("s1", string(models.EnrollmentStatusActive), "2025-FALL").
		WillReturnRows(rows)

	details, err := repo.ListActiveDetailsByStudent(context.Background(), "s1", "2025-FALL")
	require.NoError(t, err)
	require.Len(t, details, 1)
	assert.Equal(t, "Linear Algebra", details[0].CourseName)
	assert.Equal(t, "周三 5-6节", details[0].ClassTime)
}

func TestEnrollmentCreateAssignsDefaults(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec("INSERT INTO enrollments").
		WillReturnResult(sqlmock.NewResult(1, 1))

	enrollment := &models.Enrollment{StudentID: "s1", OfferingID: "off-1", Semester: "2025-FALL"}
	require.NoError(t, repo.Create(context.Background(), enrollment))
	assert.NotEmpty(t, enrollment.ID)
	assert.Equal(t, models.EnrollmentStatusActive, enrollment.Status)
}

func TestEnrollmentHasFinalGrade(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery("SELECT 1 FROM grades").
		WithArgs("enr-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	graded, err := repo.HasFinalGrade(context.Background(), "enr-1")
	require.NoError(t, err)
	assert.True(t, graded)
}
