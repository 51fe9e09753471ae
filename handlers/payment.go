package handlers

import (
	"github.com/gin-gonic/gin"

	"voltswap/apperr"
	"voltswap/models"
	"voltswap/services"
)

type PaymentHandler struct {
	Svc *services.PaymentService
}

type createPaymentRequest struct {
	BookingID uint                 `json:"booking_id" binding:"required"`
	Method    models.PaymentMethod `json:"method" binding:"required"`
}

func (h *PaymentHandler) Create(c *gin.Context) {
	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Invalid("invalid_body", err.Error()))
		return
	}

	payment, err := h.Svc.CreatePayment(c.Request.Context(), currentCaller(c), req.BookingID, req.Method)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, payment, "payment created")
}

// Webhook handles the gateway notification. The payload only names the
// order; the settlement engine re-verifies the state with the provider
// before touching anything, so a forged body cannot move money or metal.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	var payload map[string]interface{}
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondError(c, apperr.Invalid("invalid_body", "malformed notification payload"))
		return
	}

	orderCode, _ := payload["order_id"].(string)
	if orderCode == "" {
		respondError(c, apperr.Invalid("missing_order_id", "notification carries no order id"))
		return
	}

	if err := h.Svc.ProcessGatewayWebhook(c.Request.Context(), orderCode); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, nil, "notification processed")
}

type purchaseSubscriptionRequest struct {
	PlanID uint `json:"plan_id" binding:"required"`
}

func (h *PaymentHandler) PurchaseSubscription(c *gin.Context) {
	var req purchaseSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Invalid("invalid_body", err.Error()))
		return
	}

	payment, err := h.Svc.PurchaseSubscription(c.Request.Context(), currentCaller(c), req.PlanID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, payment, "subscription purchase created")
}
