package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-bid-api/internal/models"
	"github.com/noah-isme/course-bid-api/internal/service"
	appErrors "github.com/noah-isme/course-bid-api/pkg/errors"
	"github.com/noah-isme/course-bid-api/pkg/response"
)

// EnrollmentHandler exposes enrollment endpoints.
type EnrollmentHandler struct {
	enrollments *service.EnrollmentService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments *service.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

type enrollmentPayload struct {
	StudentID  string `json:"student_id"`
	OfferingID string `json:"offering_id"`
}

// resolveStudent lets staff act on behalf of a student while students may
// only act for themselves.
func resolveStudent(c *gin.Context, requested string) string {
	if requested != "" && roleFromContext(c) != models.RoleStudent {
		return requested
	}
	return userIDFromContext(c)
}

// Create godoc
// @Summary Enroll in an offering directly
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body enrollmentPayload true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /enrollments [post]
func (h *EnrollmentHandler) Create(c *gin.Context) {
	var payload enrollmentPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	enrollment, err := h.enrollments.EnrollDirect(c.Request.Context(), service.EnrollRequest{
		StudentID:  resolveStudent(c, payload.StudentID),
		OfferingID: payload.OfferingID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// Drop godoc
// @Summary Drop an enrollment
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body enrollmentPayload true "Drop payload"
// @Success 204
// @Security BearerAuth
// @Router /enrollments [delete]
func (h *EnrollmentHandler) Drop(c *gin.Context) {
	var payload enrollmentPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	err := h.enrollments.Drop(c.Request.Context(), service.DropRequest{
		StudentID:  resolveStudent(c, payload.StudentID),
		OfferingID: payload.OfferingID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListByStudent godoc
// @Summary List a student's active enrollments
// @Tags Enrollments
// @Produce json
// @Param id path string true "Student ID"
// @Param semester query string false "Filter by semester"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /students/{id}/enrollments [get]
func (h *EnrollmentHandler) ListByStudent(c *gin.Context) {
	details, err := h.enrollments.ListStudentEnrollments(c.Request.Context(), c.Param("id"), c.Query("semester"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, details, nil)
}

// Roster godoc
// @Summary List the students enrolled in an offering
// @Tags Enrollments
// @Produce json
// @Param id path string true "Offering ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /offerings/{id}/students [get]
func (h *EnrollmentHandler) Roster(c *gin.Context) {
	roster, err := h.enrollments.ListOfferingStudents(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, roster, nil)
}
