package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"voltswap/apperr"
	"voltswap/inventory"
	"voltswap/models"
)

// StaffService handles absence/override bookkeeping, staff availability
// and explicit battery status transitions.
type StaffService struct {
	DB  *gorm.DB
	Log *zap.Logger
}

// RecordAbsence marks a staff member unavailable for a date range. Staff
// record their own absences; admins can record anyone's.
func (s *StaffService) RecordAbsence(ctx context.Context, caller Caller, staffID uint, start, end time.Time, reason string) (*models.StaffAbsence, error) {
	if err := caller.requireRole(models.RoleStaff, models.RoleAdmin); err != nil {
		return nil, err
	}
	if caller.Role == models.RoleStaff && caller.UserID != staffID {
		return nil, apperr.Forbidden("not_own_absence", "staff can only record their own absences")
	}
	if end.Before(start) {
		return nil, apperr.Invalid("invalid_range", "end date before start date")
	}

	absence := models.StaffAbsence{
		StaffID:   staffID,
		StartDate: start,
		EndDate:   end,
		Reason:    reason,
	}
	if err := s.DB.WithContext(ctx).Create(&absence).Error; err != nil {
		return nil, apperr.Internal("failed to record absence", err)
	}

	s.Log.Info("staff absence recorded", zap.Uint("staff_id", staffID))
	return &absence, nil
}

// AssignOverride places a replacement staff member at a station for one
// date, typically covering an absence. Admin only.
func (s *StaffService) AssignOverride(ctx context.Context, caller Caller, stationID, staffID uint, date time.Time) (*models.StationStaffOverride, error) {
	if err := caller.requireRole(models.RoleAdmin); err != nil {
		return nil, err
	}

	var staff models.User
	if err := s.DB.WithContext(ctx).First(&staff, staffID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("staff_not_found", "staff member not found")
		}
		return nil, apperr.Internal("failed to load staff", err)
	}
	if staff.Role != models.RoleStaff {
		return nil, apperr.Invalid("not_staff", "override target is not a staff member")
	}

	override := models.StationStaffOverride{
		StationID: stationID,
		StaffID:   staffID,
		Date:      date.Truncate(24 * time.Hour),
	}
	if err := s.DB.WithContext(ctx).Create(&override).Error; err != nil {
		return nil, apperr.Internal("failed to assign override", err)
	}

	s.Log.Info("staff override assigned",
		zap.Uint("station_id", stationID), zap.Uint("staff_id", staffID))
	return &override, nil
}

// AvailableStaff lists who can work a station on a date: assigned staff
// minus absentees, plus any overrides for that day.
func (s *StaffService) AvailableStaff(ctx context.Context, stationID uint, date time.Time) ([]models.User, error) {
	db := s.DB.WithContext(ctx)
	day := date.Truncate(24 * time.Hour)

	var assignments []models.StationStaff
	if err := db.Preload("Staff").Where("station_id = ?", stationID).Find(&assignments).Error; err != nil {
		return nil, apperr.Internal("failed to load station staff", err)
	}

	var absences []models.StaffAbsence
	if err := db.Where("start_date <= ? AND end_date >= ?", day, day).Find(&absences).Error; err != nil {
		return nil, apperr.Internal("failed to load absences", err)
	}
	absent := make(map[uint]bool, len(absences))
	for _, a := range absences {
		absent[a.StaffID] = true
	}

	var staff []models.User
	seen := make(map[uint]bool)
	for _, a := range assignments {
		if !absent[a.StaffID] && !seen[a.StaffID] {
			staff = append(staff, a.Staff)
			seen[a.StaffID] = true
		}
	}

	var overrides []models.StationStaffOverride
	if err := db.Preload("Staff").Where("station_id = ? AND date = ?", stationID, day).Find(&overrides).Error; err != nil {
		return nil, apperr.Internal("failed to load overrides", err)
	}
	for _, o := range overrides {
		if !absent[o.StaffID] && !seen[o.StaffID] {
			staff = append(staff, o.Staff)
			seen[o.StaffID] = true
		}
	}

	return staff, nil
}

// UpdateBatteryStatus applies an explicit staff transition, e.g. pulling a
// unit into Maintenance or moving a checked unit onto the charger. The
// ledger's state machine decides what is legal.
func (s *StaffService) UpdateBatteryStatus(ctx context.Context, caller Caller, batteryID uint, to models.BatteryStatus) (*models.Battery, error) {
	if err := caller.requireRole(models.RoleStaff, models.RoleAdmin); err != nil {
		return nil, err
	}

	var battery models.Battery
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&battery, batteryID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("battery_not_found", "battery not found")
			}
			return apperr.Internal("failed to load battery", err)
		}
		return inventory.MoveBattery(tx, &battery, to, battery.StationID, battery.VehicleID)
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info("battery status updated",
		zap.Uint("battery_id", batteryID),
		zap.String("status", string(to)),
		zap.Uint("staff_id", caller.UserID))
	return &battery, nil
}

// MarkSlotReady finishes a bay's charge cycle so it is bookable again.
func (s *StaffService) MarkSlotReady(ctx context.Context, caller Caller, slotID uint) (*models.StationBatterySlot, error) {
	if err := caller.requireRole(models.RoleStaff, models.RoleAdmin); err != nil {
		return nil, err
	}

	var slot models.StationBatterySlot
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&slot, slotID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("slot_not_found", "slot not found")
			}
			return apperr.Internal("failed to load slot", err)
		}
		return inventory.MarkSlotReady(tx, &slot)
	})
	if err != nil {
		return nil, err
	}
	return &slot, nil
}
