package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/course-bid-api/internal/models"
	"github.com/noah-isme/course-bid-api/internal/timeslot"
	appErrors "github.com/noah-isme/course-bid-api/pkg/errors"
	"github.com/noah-isme/course-bid-api/pkg/lock"
)

type enrollmentRepository interface {
	Find(ctx context.Context, studentID, offeringID string) (*models.Enrollment, error)
	ExistsActiveForCourse(ctx context.Context, studentID, courseID string) (bool, error)
	ListActiveDetailsByStudent(ctx context.Context, studentID, semester string) ([]models.EnrollmentDetail, error)
	ListByOffering(ctx context.Context, offeringID string) ([]models.OfferingStudent, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	Reactivate(ctx context.Context, id, semester string) error
	MarkDropped(ctx context.Context, id string) error
	HasFinalGrade(ctx context.Context, enrollmentID string) (bool, error)
}

type enrollmentOfferingRepository interface {
	FindByID(ctx context.Context, id string) (*models.CourseOffering, error)
	IncrementSeats(ctx context.Context, id string) error
	ReleaseSeat(ctx context.Context, id string) error
	MarkFull(ctx context.Context, id string) error
}

type studentConflictDetector interface {
	FirstStudentConflict(ctx context.Context, studentID, semester string, candidate timeslot.Set) (*models.ScheduleConflict, error)
}

type enrolledStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type programQuotaReader interface {
	CrossMajorQuota(ctx context.Context, courseID string) (quota int, ok bool, err error)
	MajorIncludesCourse(ctx context.Context, courseID, major string) (bool, error)
	CountCrossMajorActive(ctx context.Context, offeringID string) (int, error)
}

// EnrollRequest asks for a seat in an offering.
type EnrollRequest struct {
	StudentID  string `json:"student_id" validate:"required"`
	OfferingID string `json:"offering_id" validate:"required"`
}

// DropRequest gives up a seat in an offering.
type DropRequest struct {
	StudentID  string `json:"student_id" validate:"required"`
	OfferingID string `json:"offering_id" validate:"required"`
}

// EnrollmentService manages seats. Direct enrollment is the administrative
// path with full capacity and status checks; seats awarded by clearing go
// through MaterializeFromBid, where the clearing loop owns capacity.
type EnrollmentService struct {
	enrollments     enrollmentRepository
	offerings       enrollmentOfferingRepository
	students        enrolledStudentReader
	programs        programQuotaReader
	conflicts       studentConflictDetector
	locks           *lock.KeyedMutex
	validator       *validator.Validate
	logger          *zap.Logger
	defaultSemester string
}

// NewEnrollmentService constructs EnrollmentService. defaultSemester is used
// when an offering carries no semester of its own.
func NewEnrollmentService(
	enrollments enrollmentRepository,
	offerings enrollmentOfferingRepository,
	students enrolledStudentReader,
	programs programQuotaReader,
	conflicts studentConflictDetector,
	locks *lock.KeyedMutex,
	defaultSemester string,
	logger *zap.Logger,
) *EnrollmentService {
	if locks == nil {
		locks = lock.NewKeyedMutex()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		enrollments:     enrollments,
		offerings:       offerings,
		students:        students,
		programs:        programs,
		conflicts:       conflicts,
		locks:           locks,
		validator:       validator.New(),
		logger:          logger,
		defaultSemester: defaultSemester,
	}
}

func offeringKey(id string) string { return "offering:" + id }

// EnrollDirect seats a student in an offering outside the auction.
func (s *EnrollmentService) EnrollDirect(ctx context.Context, req EnrollRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student_id and offering_id are required")
	}

	s.locks.Lock(offeringKey(req.OfferingID))
	defer s.locks.Unlock(offeringKey(req.OfferingID))

	offering, err := s.offerings.FindByID(ctx, req.OfferingID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "offering not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load offering")
	}

	switch offering.Status {
	case models.OfferingOpen:
	case models.OfferingFull:
		return nil, appErrors.ErrOfferingFull
	default:
		return nil, appErrors.ErrOfferingClosed
	}
	if offering.SeatsFilled >= offering.Capacity {
		return nil, appErrors.ErrOfferingFull
	}

	semester, err := s.resolveSemester(offering)
	if err != nil {
		return nil, err
	}

	enrollment, err := s.seat(ctx, req.StudentID, offering, semester)
	if err != nil {
		return nil, err
	}

	if err := s.offerings.IncrementSeats(ctx, offering.ID); err != nil {
		if undoErr := s.enrollments.MarkDropped(ctx, enrollment.ID); undoErr != nil {
			s.logger.Error("failed to undo enrollment after seat count failure",
				zap.String("enrollment_id", enrollment.ID), zap.Error(undoErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update seat count")
	}
	if offering.SeatsFilled+1 >= offering.Capacity {
		if err := s.offerings.MarkFull(ctx, offering.ID); err != nil {
			s.logger.Warn("failed to mark offering full", zap.String("offering_id", offering.ID), zap.Error(err))
		}
	}

	s.logger.Info("student enrolled",
		zap.String("student_id", req.StudentID), zap.String("offering_id", offering.ID))
	return enrollment, nil
}

// MaterializeFromBid turns an accepted bid into a seat. The caller holds the
// offering's critical section and owns the seat counter, so no capacity or
// status checks happen here; the eligibility checks (one section per course,
// no timetable clash, cross-major quota) still apply.
func (s *EnrollmentService) MaterializeFromBid(ctx context.Context, studentID string, offering *models.CourseOffering) (*models.Enrollment, error) {
	semester, err := s.resolveSemester(offering)
	if err != nil {
		return nil, err
	}
	return s.seat(ctx, studentID, offering, semester)
}

// ReleaseMaterialized drops an enrollment created by MaterializeFromBid. The
// caller holds the offering's critical section and owns the seat counter.
func (s *EnrollmentService) ReleaseMaterialized(ctx context.Context, enrollmentID string) error {
	if err := s.enrollments.MarkDropped(ctx, enrollmentID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to release enrollment")
	}
	return nil
}

// seat runs the shared eligibility checks and writes the enrollment row.
func (s *EnrollmentService) seat(ctx context.Context, studentID string, offering *models.CourseOffering, semester string) (*models.Enrollment, error) {
	enrolled, err := s.enrollments.ExistsActiveForCourse(ctx, studentID, offering.CourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check course enrollment")
	}
	if enrolled {
		return nil, appErrors.Clone(appErrors.ErrAlreadyEnrolled, "already enrolled in a section of this course")
	}

	conflict, err := s.conflicts.FirstStudentConflict(ctx, studentID, semester, timeslot.Parse(offering.ClassTime))
	if err != nil {
		return nil, err
	}
	if conflict != nil {
		return nil, appErrors.Clone(appErrors.ErrScheduleConflict,
			fmt.Sprintf("schedule conflict with %s (%s)", conflict.CourseName, conflict.ClassTime))
	}

	if err := s.checkCrossMajorQuota(ctx, studentID, offering); err != nil {
		return nil, err
	}

	existing, err := s.enrollments.Find(ctx, studentID, offering.ID)
	switch {
	case err == sql.ErrNoRows:
		enrollment := &models.Enrollment{StudentID: studentID, OfferingID: offering.ID, Semester: semester}
		if err := s.enrollments.Create(ctx, enrollment); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
		}
		return enrollment, nil
	case err != nil:
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	case existing.Status == models.EnrollmentStatusActive:
		return nil, appErrors.ErrAlreadyEnrolled
	default:
		if err := s.enrollments.Reactivate(ctx, existing.ID, semester); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reactivate enrollment")
		}
		existing.Status = models.EnrollmentStatusActive
		existing.Semester = semester
		return existing, nil
	}
}

// Drop gives the seat back. Enrollments with a finalized grade are frozen.
// Points committed through bidding are not returned here; refunds are a
// separate administrative action.
func (s *EnrollmentService) Drop(ctx context.Context, req DropRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "student_id and offering_id are required")
	}

	s.locks.Lock(offeringKey(req.OfferingID))
	defer s.locks.Unlock(offeringKey(req.OfferingID))

	enrollment, err := s.enrollments.Find(ctx, req.StudentID, req.OfferingID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.ErrNotEnrolled
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.Status != models.EnrollmentStatusActive {
		return appErrors.ErrNotEnrolled
	}

	graded, err := s.enrollments.HasFinalGrade(ctx, enrollment.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check grades")
	}
	if graded {
		return appErrors.ErrGradeFinalized
	}

	if err := s.enrollments.MarkDropped(ctx, enrollment.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to drop enrollment")
	}
	if err := s.offerings.ReleaseSeat(ctx, req.OfferingID); err != nil {
		if undoErr := s.enrollments.Reactivate(ctx, enrollment.ID, enrollment.Semester); undoErr != nil {
			s.logger.Error("failed to restore enrollment after seat release failure",
				zap.String("enrollment_id", enrollment.ID), zap.Error(undoErr))
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to release seat")
	}

	s.logger.Info("student dropped",
		zap.String("student_id", req.StudentID), zap.String("offering_id", req.OfferingID))
	return nil
}

// ListStudentEnrollments returns the student's active enrollments, optionally
// restricted to one semester.
func (s *EnrollmentService) ListStudentEnrollments(ctx context.Context, studentID, semester string) ([]models.EnrollmentDetail, error) {
	details, err := s.enrollments.ListActiveDetailsByStudent(ctx, studentID, semester)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return details, nil
}

// ListOfferingStudents returns an offering's roster.
func (s *EnrollmentService) ListOfferingStudents(ctx context.Context, offeringID string) ([]models.OfferingStudent, error) {
	if _, err := s.offerings.FindByID(ctx, offeringID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "offering not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load offering")
	}
	roster, err := s.enrollments.ListByOffering(ctx, offeringID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list roster")
	}
	return roster, nil
}

// checkCrossMajorQuota limits how many students from other majors an offering
// may seat. Courses listed by no program carry no quota, and a student whose
// own major lists the course is never counted against it.
func (s *EnrollmentService) checkCrossMajorQuota(ctx context.Context, studentID string, offering *models.CourseOffering) error {
	quota, programBound, err := s.programs.CrossMajorQuota(ctx, offering.CourseID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load program quota")
	}
	if !programBound {
		return nil
	}

	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.Major == "" {
		return nil
	}

	own, err := s.programs.MajorIncludesCourse(ctx, offering.CourseID, student.Major)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check program membership")
	}
	if own {
		return nil
	}

	used, err := s.programs.CountCrossMajorActive(ctx, offering.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count cross-major enrollees")
	}
	if used >= quota {
		return appErrors.ErrCrossMajorQuota
	}
	return nil
}

func (s *EnrollmentService) resolveSemester(offering *models.CourseOffering) (string, error) {
	if offering.Semester != "" {
		return offering.Semester, nil
	}
	if s.defaultSemester != "" {
		return s.defaultSemester, nil
	}
	return "", appErrors.Clone(appErrors.ErrValidation, "semester could not be determined for this offering")
}
