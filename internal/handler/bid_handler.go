package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-bid-api/internal/service"
	appErrors "github.com/noah-isme/course-bid-api/pkg/errors"
	"github.com/noah-isme/course-bid-api/pkg/response"
)

// BidHandler exposes the auction endpoints.
type BidHandler struct {
	bidding *service.BiddingService
	sweeper *service.SweeperService
}

// NewBidHandler constructs BidHandler.
func NewBidHandler(bidding *service.BiddingService, sweeper *service.SweeperService) *BidHandler {
	return &BidHandler{bidding: bidding, sweeper: sweeper}
}

type bidPayload struct {
	Points int `json:"points"`
}

// Place godoc
// @Summary Place a bid on an offering
// @Tags Bidding
// @Accept json
// @Produce json
// @Param id path string true "Offering ID"
// @Param payload body bidPayload true "Bid payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /offerings/{id}/bids [post]
func (h *BidHandler) Place(c *gin.Context) {
	var payload bidPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	bid, err := h.bidding.Place(c.Request.Context(), service.PlaceBidRequest{
		StudentID:  userIDFromContext(c),
		OfferingID: c.Param("id"),
		Points:     payload.Points,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, bid)
}

// Modify godoc
// @Summary Change the points of a pending bid
// @Tags Bidding
// @Accept json
// @Produce json
// @Param id path string true "Offering ID"
// @Param payload body bidPayload true "Bid payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /offerings/{id}/bids [put]
func (h *BidHandler) Modify(c *gin.Context) {
	var payload bidPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	bid, err := h.bidding.Modify(c.Request.Context(), service.ModifyBidRequest{
		StudentID:  userIDFromContext(c),
		OfferingID: c.Param("id"),
		Points:     payload.Points,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bid, nil)
}

// Cancel godoc
// @Summary Withdraw a bid before clearing
// @Tags Bidding
// @Produce json
// @Param id path string true "Offering ID"
// @Success 204
// @Security BearerAuth
// @Router /offerings/{id}/bids [delete]
func (h *BidHandler) Cancel(c *gin.Context) {
	err := h.bidding.Cancel(c.Request.Context(), service.CancelBidRequest{
		StudentID:  userIDFromContext(c),
		OfferingID: c.Param("id"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Mine godoc
// @Summary Get the caller's bid on an offering
// @Tags Bidding
// @Produce json
// @Param id path string true "Offering ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /offerings/{id}/bids/me [get]
func (h *BidHandler) Mine(c *gin.Context) {
	bid, err := h.bidding.GetBid(c.Request.Context(), userIDFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bid, nil)
}

// Status godoc
// @Summary Live auction snapshot of an offering
// @Tags Bidding
// @Produce json
// @Param id path string true "Offering ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /offerings/{id}/bidding [get]
func (h *BidHandler) Status(c *gin.Context) {
	snapshot, err := h.bidding.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snapshot, nil)
}

// Ranking godoc
// @Summary Bid ranking for an offering
// @Tags Bidding
// @Produce json
// @Param id path string true "Offering ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /offerings/{id}/ranking [get]
func (h *BidHandler) Ranking(c *gin.Context) {
	ranking, err := h.bidding.Ranking(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ranking, nil)
}

// Clear godoc
// @Summary Settle the auction for an offering
// @Tags Bidding
// @Produce json
// @Param id path string true "Offering ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /offerings/{id}/clear [post]
func (h *BidHandler) Clear(c *gin.Context) {
	result, err := h.bidding.Clear(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Sweep godoc
// @Summary Settle all offerings past their bidding deadline
// @Tags Bidding
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /bidding/sweep [post]
func (h *BidHandler) Sweep(c *gin.Context) {
	report, err := h.sweeper.SweepExpired(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}
