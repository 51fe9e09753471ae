package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"voltswap/apperr"
	"voltswap/config"
	"voltswap/inventory"
	"voltswap/models"
)

// BookingService reserves charging bays and manages the booking lifecycle.
type BookingService struct {
	DB  *gorm.DB
	Log *zap.Logger
	Cfg *config.Config
}

// CreateBookingRequest is the reservation input.
type CreateBookingRequest struct {
	VehicleID   uint       `json:"vehicle_id" binding:"required"`
	StationID   uint       `json:"station_id" binding:"required"`
	SlotIDs     []uint     `json:"slot_ids" binding:"required"`
	BookingTime *time.Time `json:"booking_time"`
}

// CreateBooking reserves the requested bays for the caller's vehicle. The
// whole reservation commits or rolls back as one transaction: the slot
// availability recheck inside it is what keeps two concurrent bookings
// from claiming the same bay.
func (s *BookingService) CreateBooking(ctx context.Context, caller Caller, req CreateBookingRequest) (*models.Booking, error) {
	if caller.UserID == 0 {
		return nil, apperr.Unauthorized("not_authenticated", "login required")
	}
	if len(req.SlotIDs) == 0 {
		return nil, apperr.Invalid("no_slots", "at least one slot is required")
	}

	db := s.DB.WithContext(ctx)

	var pendingCount int64
	if err := db.Model(&models.Booking{}).
		Where("user_id = ? AND status = ?", caller.UserID, models.BookingPending).
		Count(&pendingCount).Error; err != nil {
		return nil, apperr.Internal("failed to check pending bookings", err)
	}
	if pendingCount > 0 {
		return nil, apperr.Conflict("pending_booking_exists", "user already has a pending booking")
	}

	bookingTime := time.Now().Add(s.Cfg.DefaultBookingHold)
	if req.BookingTime != nil {
		if req.BookingTime.Before(time.Now()) {
			return nil, apperr.Invalid("booking_time_past", "booking time must be in the future")
		}
		bookingTime = *req.BookingTime
	}

	var vehicle models.Vehicle
	if err := db.First(&vehicle, req.VehicleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("vehicle_not_found", "vehicle not found")
		}
		return nil, apperr.Internal("failed to load vehicle", err)
	}
	if vehicle.UserID != caller.UserID {
		return nil, apperr.Forbidden("vehicle_not_owned", "vehicle does not belong to the caller")
	}
	if vehicle.BatteryCount < len(req.SlotIDs) {
		return nil, apperr.Invalid("too_many_slots",
			fmt.Sprintf("vehicle holds %d batteries, %d slots requested", vehicle.BatteryCount, len(req.SlotIDs)))
	}

	var station models.Station
	if err := db.First(&station, req.StationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("station_not_found", "station not found")
		}
		return nil, apperr.Internal("failed to load station", err)
	}
	if !station.Active {
		return nil, apperr.Invalid("station_inactive", "station is not active")
	}

	var booking models.Booking
	err := db.Transaction(func(tx *gorm.DB) error {
		// Re-read candidate slots inside the transaction: only Available
		// bays holding a ready battery of the vehicle's type count.
		var slots []models.StationBatterySlot
		if err := tx.
			Joins("JOIN batteries ON batteries.id = station_battery_slots.battery_id").
			Where("station_battery_slots.station_id = ?", req.StationID).
			Where("station_battery_slots.status = ?", models.SlotAvailable).
			Where("station_battery_slots.id IN ?", req.SlotIDs).
			Where("batteries.status = ?", models.BatteryAvailable).
			Where("batteries.battery_type_id = ?", vehicle.BatteryTypeID).
			Find(&slots).Error; err != nil {
			return apperr.Internal("failed to query slots", err)
		}
		if len(slots) < len(req.SlotIDs) {
			return apperr.Invalid("insufficient_batteries",
				fmt.Sprintf("only %d of %d requested slots hold an available battery of the vehicle's type",
					len(slots), len(req.SlotIDs)))
		}

		booking = models.Booking{
			UserID:      caller.UserID,
			StationID:   req.StationID,
			VehicleID:   req.VehicleID,
			BookingTime: bookingTime,
			Status:      models.BookingPending,
		}
		if err := tx.Create(&booking).Error; err != nil {
			return apperr.Internal("failed to create booking", err)
		}

		for i := range slots {
			if err := inventory.ReserveSlot(tx, &slots[i]); err != nil {
				return err
			}
			join := models.BatteryBookingSlot{
				BookingID: booking.ID,
				BatteryID: *slots[i].BatteryID,
				SlotID:    slots[i].ID,
				Status:    models.BookingPending,
			}
			if err := tx.Create(&join).Error; err != nil {
				return apperr.Internal("failed to create booking slot", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info("booking created",
		zap.Uint("booking_id", booking.ID),
		zap.Uint("user_id", caller.UserID),
		zap.Uint("station_id", req.StationID),
		zap.Int("slots", len(req.SlotIDs)))

	if err := db.Preload("Slots").First(&booking, booking.ID).Error; err != nil {
		return nil, apperr.Internal("failed to reload booking", err)
	}
	return &booking, nil
}

// ConfirmSwap moves a Pending booking to Confirmed. Staff only.
func (s *BookingService) ConfirmSwap(ctx context.Context, caller Caller, bookingID uint) (*models.Booking, error) {
	if err := caller.requireRole(models.RoleStaff, models.RoleAdmin); err != nil {
		return nil, err
	}

	var booking models.Booking
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&booking, bookingID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("booking_not_found", "booking not found")
			}
			return apperr.Internal("failed to load booking", err)
		}
		if booking.Status != models.BookingPending {
			return apperr.Invalid("not_pending",
				fmt.Sprintf("booking is %s, only Pending bookings can be confirmed", booking.Status))
		}
		booking.Status = models.BookingConfirmed
		if err := tx.Save(&booking).Error; err != nil {
			return apperr.Internal("failed to confirm booking", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info("booking confirmed", zap.Uint("booking_id", bookingID), zap.Uint("staff_id", caller.UserID))
	return &booking, nil
}

// RejectSwap cancels a Pending booking and releases its bays.
func (s *BookingService) RejectSwap(ctx context.Context, caller Caller, bookingID uint, reason string) (*models.Booking, error) {
	if err := caller.requireRole(models.RoleStaff, models.RoleAdmin); err != nil {
		return nil, err
	}

	var booking models.Booking
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Slots").First(&booking, bookingID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("booking_not_found", "booking not found")
			}
			return apperr.Internal("failed to load booking", err)
		}
		if booking.Status != models.BookingPending {
			return apperr.Invalid("not_pending",
				fmt.Sprintf("booking is %s, only Pending bookings can be rejected", booking.Status))
		}
		return cancelBookingTx(tx, &booking)
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info("booking rejected",
		zap.Uint("booking_id", bookingID),
		zap.Uint("staff_id", caller.UserID),
		zap.String("reason", reason))
	return &booking, nil
}

// ReclaimExpiredSlots is the expiry sweep: Pending bookings whose time is
// further in the past than the configured window are cancelled and their
// bays returned to Available. Invoked by an external trigger, one
// transaction per booking so a bad row does not wedge the whole sweep.
func (s *BookingService) ReclaimExpiredSlots(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.Cfg.ReclaimAfter)

	var expired []models.Booking
	if err := s.DB.WithContext(ctx).Preload("Slots").
		Where("status = ? AND booking_time < ?", models.BookingPending, cutoff).
		Find(&expired).Error; err != nil {
		return 0, apperr.Internal("failed to query expired bookings", err)
	}

	reclaimed := 0
	for i := range expired {
		b := &expired[i]
		err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			// Recheck under the transaction; a payment may have completed it.
			var fresh models.Booking
			if err := tx.Preload("Slots").First(&fresh, b.ID).Error; err != nil {
				return err
			}
			if fresh.Status != models.BookingPending {
				return nil
			}
			return cancelBookingTx(tx, &fresh)
		})
		if err != nil {
			s.Log.Warn("failed to reclaim booking", zap.Uint("booking_id", b.ID), zap.Error(err))
			continue
		}
		reclaimed++
	}

	if reclaimed > 0 {
		s.Log.Info("expired bookings reclaimed", zap.Int("count", reclaimed))
	}
	return reclaimed, nil
}

// cancelBookingTx flips the booking and its join rows to Cancelled and
// releases every reserved bay, all inside the caller's transaction.
func cancelBookingTx(tx *gorm.DB, booking *models.Booking) error {
	booking.Status = models.BookingCancelled
	if err := tx.Save(booking).Error; err != nil {
		return apperr.Internal("failed to cancel booking", err)
	}

	for i := range booking.Slots {
		var slot models.StationBatterySlot
		if err := tx.First(&slot, booking.Slots[i].SlotID).Error; err != nil {
			return apperr.Internal("failed to load slot", err)
		}
		if err := inventory.ReleaseSlot(tx, &slot); err != nil {
			return err
		}
		booking.Slots[i].Status = models.BookingCancelled
		if err := tx.Save(&booking.Slots[i]).Error; err != nil {
			return apperr.Internal("failed to cancel booking slot", err)
		}
	}
	return nil
}
