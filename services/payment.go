package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"voltswap/apperr"
	"voltswap/config"
	"voltswap/gateway"
	"voltswap/inventory"
	"voltswap/models"
	"voltswap/pricing"
	"voltswap/stationlock"
)

// Payment descriptions double as the webhook dispatch key: the gateway
// echoes them back and the handler routes on the prefix.
const (
	descSwapPrefix         = "Battery swap booking"
	descSubscriptionPrefix = "Subscription plan purchase"
)

// PaymentService settles swaps: direct online payments through the
// gateway, or subscription credits consumed synchronously.
type PaymentService struct {
	DB      *gorm.DB
	Log     *zap.Logger
	Cfg     *config.Config
	Gateway gateway.PaymentGateway
}

func (s *PaymentService) pricingSettings() pricing.Settings {
	return pricing.Settings{
		MinPercentage: s.Cfg.BatteryPercentageMin,
		Surcharge:     s.Cfg.Surcharge,
	}
}

// CreatePayment opens (or idempotently returns) the payment for a booking.
// Cash is rejected outright. Subscription settles synchronously in one
// transaction; online payments persist Pending with a checkout URL and
// defer the swap to the gateway webhook.
func (s *PaymentService) CreatePayment(ctx context.Context, caller Caller, bookingID uint, method models.PaymentMethod) (*models.Payment, error) {
	if caller.UserID == 0 {
		return nil, apperr.Unauthorized("not_authenticated", "login required")
	}
	if method == models.MethodCash {
		return nil, apperr.Invalid("cash_not_accepted", "cash payments are not accepted")
	}
	if method != models.MethodOnline && method != models.MethodSubscription {
		return nil, apperr.Invalid("unknown_method", fmt.Sprintf("unknown payment method %q", method))
	}

	db := s.DB.WithContext(ctx)

	var booking models.Booking
	if err := db.Preload("Slots").Preload("Vehicle").Preload("Station").First(&booking, bookingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("booking_not_found", "booking not found")
		}
		return nil, apperr.Internal("failed to load booking", err)
	}
	if booking.UserID != caller.UserID {
		return nil, apperr.Forbidden("booking_not_owned", "booking does not belong to the caller")
	}

	// Idempotent replay: a completed payment for this booking and method
	// is returned unchanged, no new swap rows.
	var existing models.Payment
	err := db.Where("booking_id = ? AND method = ? AND status = ?",
		bookingID, method, models.PaymentCompleted).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Internal("failed to check existing payment", err)
	}

	if booking.Status != models.BookingPending && booking.Status != models.BookingConfirmed {
		return nil, apperr.Invalid("booking_not_payable",
			fmt.Sprintf("booking is %s and cannot be paid", booking.Status))
	}
	if len(booking.Slots) == 0 {
		return nil, apperr.Invalid("empty_booking", "booking reserves no slots")
	}

	if method == models.MethodSubscription {
		return s.settleWithSubscription(ctx, caller, &booking)
	}
	return s.createOnlinePayment(ctx, caller, &booking)
}

// settleWithSubscription consumes plan credits and performs the full swap
// transition in one transaction. Subscription swaps are not priced; the
// payment row carries a nominal 1-unit amount.
func (s *PaymentService) settleWithSubscription(ctx context.Context, caller Caller, booking *models.Booking) (*models.Payment, error) {
	db := s.DB.WithContext(ctx)
	now := time.Now()

	var sub models.Subscription
	err := db.Preload("Plan").
		Where("user_id = ? AND status = ? AND end_date > ?", caller.UserID, models.SubscriptionActive, now).
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Invalid("no_active_subscription", "caller has no active subscription")
		}
		return nil, apperr.Internal("failed to load subscription", err)
	}

	needed := len(booking.Slots)
	remaining := sub.Plan.SwapAmount - sub.SwapsUsed
	if remaining < needed {
		return nil, apperr.Invalid("quota_exceeded",
			fmt.Sprintf("plan has %d swaps left, booking needs %d", remaining, needed))
	}

	var payment models.Payment
	err = db.Transaction(func(tx *gorm.DB) error {
		// The recheck and the consume are one guarded statement: a rival
		// settlement that spent the last credit after the read above makes
		// this match zero rows instead of overrunning the quota.
		res := tx.Model(&models.Subscription{}).
			Where("id = ? AND status = ? AND swaps_used + ? <= ?",
				sub.ID, models.SubscriptionActive, needed, sub.Plan.SwapAmount).
			Update("swaps_used", gorm.Expr("swaps_used + ?", needed))
		if res.Error != nil {
			return apperr.Internal("failed to consume subscription quota", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.Invalid("quota_exceeded",
				fmt.Sprintf("plan cannot cover %d more swaps", needed))
		}
		if err := tx.First(&sub, sub.ID).Error; err != nil {
			return apperr.Internal("failed to reload subscription", err)
		}

		payment = models.Payment{
			UserID:      caller.UserID,
			BookingID:   &booking.ID,
			OrderCode:   uuid.NewString(),
			Amount:      1, // nominal: subscription swaps draw on quota, not price
			Currency:    s.Cfg.Currency,
			Method:      models.MethodSubscription,
			Status:      models.PaymentCompleted,
			Description: fmt.Sprintf("%s #%d", descSwapPrefix, booking.ID),
		}
		if err := tx.Create(&payment).Error; err != nil {
			return apperr.Internal("failed to create payment", err)
		}

		return settleBookingTx(tx, booking, payment.ID)
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info("subscription swap settled",
		zap.Uint("booking_id", booking.ID),
		zap.Uint("payment_id", payment.ID),
		zap.Int("swaps_used", sub.SwapsUsed))

	go stationlock.TriggerOpen(booking.Station.ControllerAddr, s.Log)
	return &payment, nil
}

// createOnlinePayment prices each reserved battery, requests a gateway
// checkout link and persists the Pending payment. The swap itself waits
// for the webhook.
func (s *PaymentService) createOnlinePayment(ctx context.Context, caller Caller, booking *models.Booking) (*models.Payment, error) {
	db := s.DB.WithContext(ctx)

	var user models.User
	if err := db.First(&user, caller.UserID).Error; err != nil {
		return nil, apperr.Internal("failed to load user", err)
	}

	var quote pricing.Quote
	items := make([]gateway.Item, 0, len(booking.Slots))
	for i := range booking.Slots {
		var battery models.Battery
		if err := db.First(&battery, booking.Slots[i].BatteryID).Error; err != nil {
			return nil, apperr.Internal("failed to load booked battery", err)
		}
		amount := pricing.Estimate(battery.CapacityWh, battery.CurrentChargeWh,
			booking.Station.ElectricityRate, s.pricingSettings())
		quote.Add(battery.SerialNumber, amount)
		items = append(items, gateway.Item{
			ID:     fmt.Sprintf("battery-%d", battery.ID),
			Name:   fmt.Sprintf("Battery swap %s", battery.SerialNumber),
			Amount: amount,
			Qty:    1,
		})
	}

	orderCode := uuid.NewString()
	checkoutURL, err := s.Gateway.CreatePaymentLink(gateway.LinkRequest{
		OrderCode: orderCode,
		Amount:    quote.Total,
		Customer:  user.Username,
		Email:     user.Email,
		Items:     items,
	})
	if err != nil {
		return nil, apperr.Internal("failed to create payment link", err)
	}

	payment := models.Payment{
		UserID:      caller.UserID,
		BookingID:   &booking.ID,
		OrderCode:   orderCode,
		Amount:      quote.Total,
		Currency:    s.Cfg.Currency,
		Method:      models.MethodOnline,
		Status:      models.PaymentPending,
		CheckoutURL: checkoutURL,
		Description: fmt.Sprintf("%s #%d: %s", descSwapPrefix, booking.ID, quote.Describe()),
	}
	if err := db.Create(&payment).Error; err != nil {
		return nil, apperr.Internal("failed to save payment", err)
	}

	s.Log.Info("online payment created",
		zap.Uint("booking_id", booking.ID),
		zap.String("order_code", orderCode),
		zap.Int64("amount", quote.Total))
	return &payment, nil
}

// ProcessGatewayWebhook completes an asynchronous settlement. The payload
// is untrusted: nothing mutates until the gateway confirms the order's
// final state. Replays are no-ops thanks to the status compare-and-swap.
func (s *PaymentService) ProcessGatewayWebhook(ctx context.Context, orderCode string) error {
	success, settled, err := s.Gateway.VerifyTransaction(orderCode)
	if err != nil {
		return apperr.Internal("gateway verification failed", err)
	}
	if !settled {
		// Still in flight at the provider; the next notification decides.
		return nil
	}

	db := s.DB.WithContext(ctx)

	var payment models.Payment
	if err := db.Where("order_code = ?", orderCode).First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("payment_not_found", "no payment for order code")
		}
		return apperr.Internal("failed to load payment", err)
	}

	if strings.HasPrefix(payment.Description, descSubscriptionPrefix) {
		return s.settleSubscriptionPurchase(ctx, &payment, success)
	}
	return s.settleOnlineSwap(ctx, &payment, success)
}

// settleOnlineSwap applies the atomic battery/slot/swap transition once.
// The WHERE status='Pending' guard is the replay barrier: a second
// delivery, even one racing the first, updates zero rows and stops here.
func (s *PaymentService) settleOnlineSwap(ctx context.Context, payment *models.Payment, success bool) error {
	target := models.PaymentCompleted
	if !success {
		target = models.PaymentCancelled
	}

	var station models.Station
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Payment{}).
			Where("id = ? AND status = ?", payment.ID, models.PaymentPending).
			Update("status", target)
		if res.Error != nil {
			return apperr.Internal("failed to update payment status", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil // already processed
		}
		if !success {
			return nil
		}
		if payment.BookingID == nil {
			return apperr.Internal("swap payment without booking", nil)
		}

		var booking models.Booking
		if err := tx.Preload("Slots").Preload("Station").First(&booking, *payment.BookingID).Error; err != nil {
			return apperr.Internal("failed to load booking", err)
		}
		station = booking.Station
		return settleBookingTx(tx, &booking, payment.ID)
	})
	if err != nil {
		return err
	}

	s.Log.Info("gateway webhook settled",
		zap.String("order_code", payment.OrderCode),
		zap.Bool("success", success))

	if success && station.ID != 0 {
		go stationlock.TriggerOpen(station.ControllerAddr, s.Log)
	}
	return nil
}

// settleSubscriptionPurchase activates or cancels the plan the payment was for.
func (s *PaymentService) settleSubscriptionPurchase(ctx context.Context, payment *models.Payment, success bool) error {
	target := models.PaymentCompleted
	if !success {
		target = models.PaymentCancelled
	}

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Payment{}).
			Where("id = ? AND status = ?", payment.ID, models.PaymentPending).
			Update("status", target)
		if res.Error != nil {
			return apperr.Internal("failed to update payment status", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		if payment.SubscriptionID == nil {
			return apperr.Internal("subscription payment without subscription", nil)
		}

		var sub models.Subscription
		if err := tx.Preload("Plan").First(&sub, *payment.SubscriptionID).Error; err != nil {
			return apperr.Internal("failed to load subscription", err)
		}

		if success {
			// Re-checked here because the purchase-time guard cannot see a
			// rival purchase that settles between the two webhooks. The
			// later arrival is cancelled rather than stacked.
			var otherActive int64
			if err := tx.Model(&models.Subscription{}).
				Where("user_id = ? AND status = ? AND id <> ?",
					sub.UserID, models.SubscriptionActive, sub.ID).
				Count(&otherActive).Error; err != nil {
				return apperr.Internal("failed to check active subscriptions", err)
			}
			if otherActive > 0 {
				sub.Status = models.SubscriptionCancelled
				if err := tx.Save(&sub).Error; err != nil {
					return apperr.Internal("failed to update subscription", err)
				}
				s.Log.Warn("subscription settled while another plan is active, cancelling",
					zap.Uint("subscription_id", sub.ID),
					zap.Uint("user_id", sub.UserID))
				return nil
			}

			now := time.Now()
			end := now.AddDate(0, sub.Plan.DurationMonths, 0)
			sub.Status = models.SubscriptionActive
			sub.StartDate = &now
			sub.EndDate = &end
			sub.SwapsUsed = 0
		} else {
			sub.Status = models.SubscriptionCancelled
		}
		if err := tx.Save(&sub).Error; err != nil {
			return apperr.Internal("failed to update subscription", err)
		}

		s.Log.Info("subscription purchase settled",
			zap.Uint("subscription_id", sub.ID),
			zap.Bool("success", success))
		return nil
	})
}

// PurchaseSubscription creates an Inactive subscription and the Pending
// gateway payment that will activate it on webhook success.
func (s *PaymentService) PurchaseSubscription(ctx context.Context, caller Caller, planID uint) (*models.Payment, error) {
	if caller.UserID == 0 {
		return nil, apperr.Unauthorized("not_authenticated", "login required")
	}

	db := s.DB.WithContext(ctx)

	var plan models.SubscriptionPlan
	if err := db.First(&plan, planID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("plan_not_found", "subscription plan not found")
		}
		return nil, apperr.Internal("failed to load plan", err)
	}

	var activeCount int64
	if err := db.Model(&models.Subscription{}).
		Where("user_id = ? AND status = ?", caller.UserID, models.SubscriptionActive).
		Count(&activeCount).Error; err != nil {
		return nil, apperr.Internal("failed to check subscriptions", err)
	}
	if activeCount > 0 {
		return nil, apperr.Conflict("active_subscription_exists", "user already has an active subscription")
	}

	// An Inactive subscription whose payment is still Pending is a purchase
	// in flight; letting a second one through would yield two Active plans
	// once both webhooks land.
	var pendingPurchases int64
	if err := db.Model(&models.Payment{}).
		Joins("JOIN subscriptions ON subscriptions.id = payments.subscription_id").
		Where("subscriptions.user_id = ? AND subscriptions.status = ? AND payments.status = ?",
			caller.UserID, models.SubscriptionInactive, models.PaymentPending).
		Count(&pendingPurchases).Error; err != nil {
		return nil, apperr.Internal("failed to check pending purchases", err)
	}
	if pendingPurchases > 0 {
		return nil, apperr.Conflict("subscription_purchase_pending",
			"a subscription purchase is already awaiting payment")
	}

	var user models.User
	if err := db.First(&user, caller.UserID).Error; err != nil {
		return nil, apperr.Internal("failed to load user", err)
	}

	sub := models.Subscription{
		UserID: caller.UserID,
		PlanID: plan.ID,
		Status: models.SubscriptionInactive,
	}
	if err := db.Create(&sub).Error; err != nil {
		return nil, apperr.Internal("failed to create subscription", err)
	}

	orderCode := uuid.NewString()
	checkoutURL, err := s.Gateway.CreatePaymentLink(gateway.LinkRequest{
		OrderCode: orderCode,
		Amount:    plan.Price,
		Customer:  user.Username,
		Email:     user.Email,
		Items: []gateway.Item{{
			ID:     fmt.Sprintf("plan-%d", plan.ID),
			Name:   plan.Name,
			Amount: plan.Price,
			Qty:    1,
		}},
	})
	if err != nil {
		return nil, apperr.Internal("failed to create payment link", err)
	}

	payment := models.Payment{
		UserID:         caller.UserID,
		SubscriptionID: &sub.ID,
		OrderCode:      orderCode,
		Amount:         plan.Price,
		Currency:       s.Cfg.Currency,
		Method:         models.MethodOnline,
		Status:         models.PaymentPending,
		CheckoutURL:    checkoutURL,
		Description:    fmt.Sprintf("%s #%d", descSubscriptionPrefix, sub.ID),
	}
	if err := db.Create(&payment).Error; err != nil {
		return nil, apperr.Internal("failed to save payment", err)
	}

	s.Log.Info("subscription purchase created",
		zap.Uint("subscription_id", sub.ID),
		zap.String("order_code", orderCode))
	return &payment, nil
}

// settleBookingTx performs the swap transition inside the caller's
// transaction: old batteries off the vehicle into QualityCheck at the
// station, booked batteries onto the vehicle, one BatterySwap row per bay,
// booking Completed. Any failure rolls the whole settlement back.
func settleBookingTx(tx *gorm.DB, booking *models.Booking, paymentID uint) error {
	if booking.Status != models.BookingPending && booking.Status != models.BookingConfirmed {
		return apperr.Invalid("booking_not_settleable",
			fmt.Sprintf("booking is %s and cannot be settled", booking.Status))
	}

	var oldBatteries []models.Battery
	if err := tx.Where("vehicle_id = ? AND status = ?", booking.VehicleID, models.BatteryInUse).
		Order("updated_at asc").
		Find(&oldBatteries).Error; err != nil {
		return apperr.Internal("failed to load vehicle batteries", err)
	}
	if len(oldBatteries) < len(booking.Slots) {
		return apperr.Invalid("no_vehicle_battery",
			fmt.Sprintf("vehicle carries %d swappable batteries, booking needs %d",
				len(oldBatteries), len(booking.Slots)))
	}

	now := time.Now()
	for i := range booking.Slots {
		bslot := &booking.Slots[i]

		var newBattery models.Battery
		if err := tx.First(&newBattery, bslot.BatteryID).Error; err != nil {
			return apperr.Internal("failed to load booked battery", err)
		}
		old := &oldBatteries[i]

		if err := inventory.MoveBattery(tx, old, models.BatteryQualityCheck, &booking.StationID, nil); err != nil {
			return err
		}
		if err := inventory.MoveBattery(tx, &newBattery, models.BatteryInUse, nil, &booking.VehicleID); err != nil {
			return err
		}

		// The bay stays occupied: it now holds the returned unit until
		// staff cycle it through charging.
		var slot models.StationBatterySlot
		if err := tx.First(&slot, bslot.SlotID).Error; err != nil {
			return apperr.Internal("failed to load slot", err)
		}
		if err := inventory.OccupySlot(tx, &slot, old.ID); err != nil {
			return err
		}

		swap := models.BatterySwap{
			VehicleID:   booking.VehicleID,
			StationID:   booking.StationID,
			UserID:      booking.UserID,
			BatteryID:   old.ID,
			ToBatteryID: newBattery.ID,
			PaymentID:   paymentID,
			Status:      models.SwapCompleted,
			SwappedAt:   &now,
		}
		if err := tx.Create(&swap).Error; err != nil {
			return apperr.Internal("failed to create swap record", err)
		}

		bslot.Status = models.BookingCompleted
		if err := tx.Save(bslot).Error; err != nil {
			return apperr.Internal("failed to update booking slot", err)
		}
	}

	booking.Status = models.BookingCompleted
	booking.CompletedAt = &now
	if err := tx.Save(booking).Error; err != nil {
		return apperr.Internal("failed to complete booking", err)
	}
	return nil
}
