// Package inventory applies battery and slot status transitions. It owns
// the state machines but never a transaction: every mutation here runs
// inside a transaction opened by the booking or payment service.
package inventory

import (
	"fmt"

	"github.com/looplab/fsm"
	"gorm.io/gorm"

	"voltswap/apperr"
	"voltswap/models"
)

// Battery lifecycle. Event names double as the destination status so a
// transition check is just Can(string(target)).
var batteryEvents = fsm.Events{
	{Name: string(models.BatteryInUse), Src: []string{string(models.BatteryAvailable)}, Dst: string(models.BatteryInUse)},
	{Name: string(models.BatteryQualityCheck), Src: []string{string(models.BatteryInUse)}, Dst: string(models.BatteryQualityCheck)},
	{Name: string(models.BatteryCharging), Src: []string{string(models.BatteryQualityCheck)}, Dst: string(models.BatteryCharging)},
	{Name: string(models.BatteryAvailable), Src: []string{
		string(models.BatteryCharging),
		string(models.BatteryInUse),
		string(models.BatteryMaintenance),
	}, Dst: string(models.BatteryAvailable)},
	// Maintenance is reachable from anywhere by explicit staff action.
	{Name: string(models.BatteryMaintenance), Src: []string{
		string(models.BatteryAvailable),
		string(models.BatteryCharging),
		string(models.BatteryInUse),
		string(models.BatteryQualityCheck),
	}, Dst: string(models.BatteryMaintenance)},
}

// CanMove reports whether a battery may go from one status to another.
func CanMove(from, to models.BatteryStatus) bool {
	if from == to {
		return false
	}
	m := fsm.NewFSM(string(from), batteryEvents, nil)
	return m.Can(string(to))
}

// MoveBattery transitions a battery and fixes the ownership fields so the
// invariant holds: InUse means on a vehicle and off any station, every
// other status means parked at a station.
func MoveBattery(tx *gorm.DB, b *models.Battery, to models.BatteryStatus, stationID, vehicleID *uint) error {
	if !CanMove(b.Status, to) {
		return apperr.Invalid("invalid_battery_transition",
			fmt.Sprintf("battery %s cannot go from %s to %s", b.SerialNumber, b.Status, to))
	}

	b.Status = to
	if to == models.BatteryInUse {
		b.Owner = models.OwnerDriver
		b.VehicleID = vehicleID
		b.StationID = nil
	} else {
		b.Owner = models.OwnerStation
		b.StationID = stationID
		b.VehicleID = nil
	}

	if err := tx.Save(b).Error; err != nil {
		return apperr.Internal("failed to update battery", err)
	}
	return nil
}

// ReserveSlot flips an Available bay to Full_slot for a booking. The caller
// must have re-read the slot inside the surrounding transaction; a bay that
// is no longer Available means another booking won the race.
func ReserveSlot(tx *gorm.DB, slot *models.StationBatterySlot) error {
	if slot.Status != models.SlotAvailable {
		return apperr.Conflict("slot_taken",
			fmt.Sprintf("slot %d is already reserved", slot.SlotNumber))
	}
	slot.Status = models.SlotFull
	if err := tx.Save(slot).Error; err != nil {
		return apperr.Internal("failed to reserve slot", err)
	}
	return nil
}

// ReleaseSlot returns a bay to Available, e.g. when a booking is rejected
// or reclaimed. The battery binding stays: the charged unit is still in the bay.
func ReleaseSlot(tx *gorm.DB, slot *models.StationBatterySlot) error {
	slot.Status = models.SlotAvailable
	if err := tx.Save(slot).Error; err != nil {
		return apperr.Internal("failed to release slot", err)
	}
	return nil
}

// OccupySlot points a bay at a (returned) battery and keeps it Full_slot
// until staff cycle the unit back to ready.
func OccupySlot(tx *gorm.DB, slot *models.StationBatterySlot, batteryID uint) error {
	slot.BatteryID = &batteryID
	slot.Status = models.SlotFull
	if err := tx.Save(slot).Error; err != nil {
		return apperr.Internal("failed to occupy slot", err)
	}
	return nil
}

// MarkSlotReady finishes the charge cycle: the bay's battery goes
// Charging -> Available and the bay becomes bookable again.
func MarkSlotReady(tx *gorm.DB, slot *models.StationBatterySlot) error {
	if slot.BatteryID == nil {
		return apperr.Invalid("empty_slot", "slot holds no battery")
	}

	var b models.Battery
	if err := tx.First(&b, *slot.BatteryID).Error; err != nil {
		return apperr.NotFound("battery_not_found", "battery in slot not found")
	}
	if err := MoveBattery(tx, &b, models.BatteryAvailable, &slot.StationID, nil); err != nil {
		return err
	}

	slot.Status = models.SlotAvailable
	if err := tx.Save(slot).Error; err != nil {
		return apperr.Internal("failed to update slot", err)
	}
	return nil
}

// DetachSlotBinding clears any bay still pointing at the battery, used when
// a rebalance move pulls the unit out of its source station.
func DetachSlotBinding(tx *gorm.DB, batteryID uint) error {
	err := tx.Model(&models.StationBatterySlot{}).
		Where("battery_id = ?", batteryID).
		Updates(map[string]interface{}{"battery_id": nil, "status": models.SlotAvailable}).Error
	if err != nil {
		return apperr.Internal("failed to detach slot binding", err)
	}
	return nil
}
