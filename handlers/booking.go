package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"voltswap/apperr"
	"voltswap/services"
)

type BookingHandler struct {
	Svc *services.BookingService
}

func (h *BookingHandler) Create(c *gin.Context) {
	var req services.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Invalid("invalid_body", err.Error()))
		return
	}

	booking, err := h.Svc.CreateBooking(c.Request.Context(), currentCaller(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, booking, "booking created")
}

func (h *BookingHandler) Confirm(c *gin.Context) {
	id, err := bookingID(c)
	if err != nil {
		respondError(c, err)
		return
	}

	booking, err := h.Svc.ConfirmSwap(c.Request.Context(), currentCaller(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, booking, "booking confirmed")
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *BookingHandler) Reject(c *gin.Context) {
	id, err := bookingID(c)
	if err != nil {
		respondError(c, err)
		return
	}

	var req rejectRequest
	_ = c.ShouldBindJSON(&req)

	booking, err := h.Svc.RejectSwap(c.Request.Context(), currentCaller(c), id, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, booking, "booking rejected")
}

func bookingID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return 0, apperr.Invalid("invalid_booking_id", "booking id must be numeric")
	}
	return uint(id), nil
}
