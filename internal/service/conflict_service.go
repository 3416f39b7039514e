package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/course-bid-api/internal/models"
	"github.com/noah-isme/course-bid-api/internal/timeslot"
	appErrors "github.com/noah-isme/course-bid-api/pkg/errors"
)

type conflictEnrollmentReader interface {
	ListActiveDetailsByStudent(ctx context.Context, studentID, semester string) ([]models.EnrollmentDetail, error)
}

type classroomOfferingReader interface {
	ListByClassroom(ctx context.Context, classroom, semester, excludeID string) ([]models.OfferingDetail, error)
}

// ConflictService detects timetable overlaps. It compares the parsed slot sets
// of schedule strings; an unparseable or empty schedule never conflicts with
// anything, so bad catalog data cannot block enrollment.
type ConflictService struct {
	enrollments conflictEnrollmentReader
	offerings   classroomOfferingReader
	logger      *zap.Logger
}

// NewConflictService constructs ConflictService.
func NewConflictService(enrollments conflictEnrollmentReader, offerings classroomOfferingReader, logger *zap.Logger) *ConflictService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConflictService{enrollments: enrollments, offerings: offerings, logger: logger}
}

// FirstStudentConflict returns the first active enrollment of the student in
// the given semester whose meeting times overlap the candidate schedule, or
// nil when the schedule is clear.
func (s *ConflictService) FirstStudentConflict(ctx context.Context, studentID, semester string, candidate timeslot.Set) (*models.ScheduleConflict, error) {
	if candidate.Empty() {
		return nil, nil
	}

	enrollments, err := s.enrollments.ListActiveDetailsByStudent(ctx, studentID, semester)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
	}

	for _, enrollment := range enrollments {
		if candidate.Overlaps(timeslot.Parse(enrollment.ClassTime)) {
			return &models.ScheduleConflict{
				CourseName:  enrollment.CourseName,
				TeacherName: enrollment.TeacherName,
				ClassTime:   enrollment.ClassTime,
			}, nil
		}
	}
	return nil, nil
}

// FirstClassroomConflict returns the first other offering in the semester
// that occupies the same classroom at an overlapping time, or nil. It guards
// offering creation against double-booking a room.
func (s *ConflictService) FirstClassroomConflict(ctx context.Context, classroom, semester string, candidate timeslot.Set, excludeOfferingID string) (*models.ScheduleConflict, error) {
	if classroom == "" || candidate.Empty() {
		return nil, nil
	}

	others, err := s.offerings.ListByClassroom(ctx, classroom, semester, excludeOfferingID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classroom offerings")
	}

	for _, other := range others {
		if candidate.Overlaps(timeslot.Parse(other.ClassTime)) {
			return &models.ScheduleConflict{
				CourseName:  other.CourseName,
				TeacherName: other.TeacherName,
				ClassTime:   other.ClassTime,
			}, nil
		}
	}
	return nil, nil
}
