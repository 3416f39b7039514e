package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-bid-api/internal/service"
	appErrors "github.com/noah-isme/course-bid-api/pkg/errors"
	"github.com/noah-isme/course-bid-api/pkg/response"
)

// PointsHandler exposes the points ledger endpoints.
type PointsHandler struct {
	ledger *service.LedgerService
}

// NewPointsHandler constructs PointsHandler.
func NewPointsHandler(ledger *service.LedgerService) *PointsHandler {
	return &PointsHandler{ledger: ledger}
}

type initPointsPayload struct {
	Amount int `json:"amount"`
}

type adjustPointsPayload struct {
	Delta  int    `json:"delta"`
	Reason string `json:"reason"`
}

type refundPointsPayload struct {
	Amount     int     `json:"amount"`
	Reason     string  `json:"reason"`
	OfferingID *string `json:"offering_id"`
}

type resetPointsPayload struct {
	Points int `json:"points"`
}

// Initialize godoc
// @Summary Grant a student their starting points
// @Tags Points
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body initPointsPayload true "Initial amount"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /students/{id}/points/init [post]
func (h *PointsHandler) Initialize(c *gin.Context) {
	var payload initPointsPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	record, err := h.ledger.Initialize(c.Request.Context(), c.Param("id"), payload.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// Adjust godoc
// @Summary Apply a signed administrative adjustment
// @Tags Points
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body adjustPointsPayload true "Adjustment payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /students/{id}/points/adjust [post]
func (h *PointsHandler) Adjust(c *gin.Context) {
	var payload adjustPointsPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	record, err := h.ledger.Adjust(c.Request.Context(), userIDFromContext(c), c.Param("id"), payload.Delta, payload.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Refund godoc
// @Summary Return points to a student
// @Tags Points
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body refundPointsPayload true "Refund payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /students/{id}/points/refund [post]
func (h *PointsHandler) Refund(c *gin.Context) {
	var payload refundPointsPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	reason := payload.Reason
	if reason == "" {
		reason = "points returned by administrator"
	}
	record, err := h.ledger.Credit(c.Request.Context(), c.Param("id"), payload.Amount, reason, payload.OfferingID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Reset godoc
// @Summary Reset every active student's balance
// @Tags Points
// @Accept json
// @Produce json
// @Param payload body resetPointsPayload true "Reset payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /points/reset [post]
func (h *PointsHandler) Reset(c *gin.Context) {
	var payload resetPointsPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	count, err := h.ledger.BatchReset(c.Request.Context(), userIDFromContext(c), payload.Points)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"students_reset": count}, nil)
}

// Balance godoc
// @Summary Current points balance of a student
// @Tags Points
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /students/{id}/points [get]
func (h *PointsHandler) Balance(c *gin.Context) {
	balance, err := h.ledger.GetBalance(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"student_id": c.Param("id"), "balance": balance}, nil)
}

// History godoc
// @Summary Points transaction history of a student
// @Tags Points
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /students/{id}/points/history [get]
func (h *PointsHandler) History(c *gin.Context) {
	history, err := h.ledger.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, history, nil)
}
