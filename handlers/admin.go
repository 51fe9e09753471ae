package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"voltswap/apperr"
	"voltswap/models"
	"voltswap/services"
)

// AdminHandler groups the operator surface: rebalancing, sweeps and
// explicit inventory transitions.
type AdminHandler struct {
	Booking       *services.BookingService
	Subscriptions *services.SubscriptionService
	Rebalance     *services.RebalanceService
	Staff         *services.StaffService
}

func (h *AdminHandler) PlanRebalance(c *gin.Context) {
	var req services.PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Invalid("invalid_body", err.Error()))
		return
	}

	plan, err := h.Rebalance.PlanRebalance(c.Request.Context(), currentCaller(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, plan, "rebalance planned")
}

func (h *AdminHandler) ExecuteRebalance(c *gin.Context) {
	var req services.ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Invalid("invalid_body", err.Error()))
		return
	}

	result, err := h.Rebalance.ExecuteMoves(c.Request.Context(), currentCaller(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, result, "rebalance executed")
}

// ReclaimSlots runs the booking expiry sweep; an external scheduler hits
// this endpoint, there is no in-process timer.
func (h *AdminHandler) ReclaimSlots(c *gin.Context) {
	count, err := h.Booking.ReclaimExpiredSlots(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"reclaimed": count}, "expired bookings reclaimed")
}

// ResetSubscriptions expires subscriptions past their end date.
func (h *AdminHandler) ResetSubscriptions(c *gin.Context) {
	count, err := h.Subscriptions.ResetSubscriptionQuotas(c.Request.Context(), currentCaller(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"expired": count}, "subscription quotas reset")
}

type batteryStatusRequest struct {
	Status models.BatteryStatus `json:"status" binding:"required"`
}

func (h *AdminHandler) UpdateBatteryStatus(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		respondError(c, apperr.Invalid("invalid_battery_id", "battery id must be numeric"))
		return
	}

	var req batteryStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Invalid("invalid_body", err.Error()))
		return
	}

	battery, err := h.Staff.UpdateBatteryStatus(c.Request.Context(), currentCaller(c), uint(id), req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, battery, "battery status updated")
}

func (h *AdminHandler) MarkSlotReady(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		respondError(c, apperr.Invalid("invalid_slot_id", "slot id must be numeric"))
		return
	}

	slot, err := h.Staff.MarkSlotReady(c.Request.Context(), currentCaller(c), uint(id))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, slot, "slot marked ready")
}

type absenceRequest struct {
	StaffID   uint      `json:"staff_id" binding:"required"`
	StartDate time.Time `json:"start_date" binding:"required"`
	EndDate   time.Time `json:"end_date" binding:"required"`
	Reason    string    `json:"reason"`
}

func (h *AdminHandler) RecordAbsence(c *gin.Context) {
	var req absenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Invalid("invalid_body", err.Error()))
		return
	}

	absence, err := h.Staff.RecordAbsence(c.Request.Context(), currentCaller(c),
		req.StaffID, req.StartDate, req.EndDate, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, absence, "absence recorded")
}

type overrideRequest struct {
	StationID uint      `json:"station_id" binding:"required"`
	StaffID   uint      `json:"staff_id" binding:"required"`
	Date      time.Time `json:"date" binding:"required"`
}

func (h *AdminHandler) AssignOverride(c *gin.Context) {
	var req overrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Invalid("invalid_body", err.Error()))
		return
	}

	override, err := h.Staff.AssignOverride(c.Request.Context(), currentCaller(c),
		req.StationID, req.StaffID, req.Date)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, override, "override assigned")
}

// AvailableStaff answers who can cover a station on a given date.
func (h *AdminHandler) AvailableStaff(c *gin.Context) {
	stationID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		respondError(c, apperr.Invalid("invalid_station_id", "station id must be numeric"))
		return
	}

	date := time.Now()
	if q := c.Query("date"); q != "" {
		parsed, err := time.Parse("2006-01-02", q)
		if err != nil {
			respondError(c, apperr.Invalid("invalid_date", "date must be YYYY-MM-DD"))
			return
		}
		date = parsed
	}

	staff, err := h.Staff.AvailableStaff(c.Request.Context(), uint(stationID), date)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, staff, "")
}
