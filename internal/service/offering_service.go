package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/course-bid-api/internal/models"
	"github.com/noah-isme/course-bid-api/internal/timeslot"
	appErrors "github.com/noah-isme/course-bid-api/pkg/errors"
)

type offeringAdminRepository interface {
	Create(ctx context.Context, offering *models.CourseOffering) error
	FindDetailByID(ctx context.Context, id string) (*models.OfferingDetail, error)
}

type classroomConflictDetector interface {
	FirstClassroomConflict(ctx context.Context, classroom, semester string, candidate timeslot.Set, excludeOfferingID string) (*models.ScheduleConflict, error)
}

// CreateOfferingRequest opens a new section for bidding.
type CreateOfferingRequest struct {
	CourseID        string     `json:"course_id" validate:"required"`
	TeacherID       string     `json:"teacher_id" validate:"required"`
	Semester        string     `json:"semester" validate:"required"`
	ClassTime       string     `json:"class_time" validate:"required"`
	Classroom       string     `json:"classroom"`
	Capacity        int        `json:"capacity" validate:"required,min=1"`
	BiddingDeadline *time.Time `json:"bidding_deadline"`
}

// OfferingService handles the administrative side of offerings.
type OfferingService struct {
	offerings offeringAdminRepository
	conflicts classroomConflictDetector
	validator *validator.Validate
	logger    *zap.Logger
}

// NewOfferingService constructs OfferingService.
func NewOfferingService(offerings offeringAdminRepository, conflicts classroomConflictDetector, logger *zap.Logger) *OfferingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OfferingService{offerings: offerings, conflicts: conflicts, validator: validator.New(), logger: logger}
}

// Create opens a new offering after checking the classroom is free at the
// requested times.
func (s *OfferingService) Create(ctx context.Context, req CreateOfferingRequest) (*models.CourseOffering, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "course_id, teacher_id, semester, class_time and a positive capacity are required")
	}

	conflict, err := s.conflicts.FirstClassroomConflict(ctx, req.Classroom, req.Semester, timeslot.Parse(req.ClassTime), "")
	if err != nil {
		return nil, err
	}
	if conflict != nil {
		return nil, appErrors.Clone(appErrors.ErrScheduleConflict,
			fmt.Sprintf("classroom %s is occupied by %s (%s)", req.Classroom, conflict.CourseName, conflict.ClassTime))
	}

	offering := &models.CourseOffering{
		CourseID:        req.CourseID,
		TeacherID:       req.TeacherID,
		Semester:        req.Semester,
		ClassTime:       req.ClassTime,
		Classroom:       req.Classroom,
		Capacity:        req.Capacity,
		BiddingDeadline: req.BiddingDeadline,
	}
	if err := s.offerings.Create(ctx, offering); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create offering")
	}

	s.logger.Info("offering created",
		zap.String("offering_id", offering.ID), zap.String("course_id", req.CourseID), zap.Int("capacity", req.Capacity))
	return offering, nil
}

// Get returns an offering with catalog and teacher context.
func (s *OfferingService) Get(ctx context.Context, id string) (*models.OfferingDetail, error) {
	detail, err := s.offerings.FindDetailByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "offering not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load offering")
	}
	return detail, nil
}
