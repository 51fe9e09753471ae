package inventory

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"voltswap/apperr"
	"voltswap/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func TestCanMove(t *testing.T) {
	tests := []struct {
		from, to models.BatteryStatus
		ok       bool
	}{
		{models.BatteryAvailable, models.BatteryInUse, true},
		{models.BatteryInUse, models.BatteryQualityCheck, true},
		{models.BatteryQualityCheck, models.BatteryCharging, true},
		{models.BatteryCharging, models.BatteryAvailable, true},
		{models.BatteryInUse, models.BatteryAvailable, true},
		{models.BatteryAvailable, models.BatteryMaintenance, true},
		{models.BatteryQualityCheck, models.BatteryMaintenance, true},
		{models.BatteryMaintenance, models.BatteryAvailable, true},
		{models.BatteryAvailable, models.BatteryQualityCheck, false},
		{models.BatteryAvailable, models.BatteryCharging, false},
		{models.BatteryCharging, models.BatteryInUse, false},
		{models.BatteryQualityCheck, models.BatteryInUse, false},
		{models.BatteryAvailable, models.BatteryAvailable, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.ok, CanMove(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestMoveBatteryFixesOwnership(t *testing.T) {
	db := newTestDB(t)

	stationID := uint(7)
	battery := models.Battery{
		SerialNumber: "BT-100", Status: models.BatteryAvailable,
		Owner: models.OwnerStation, StationID: &stationID,
	}
	require.NoError(t, db.Create(&battery).Error)

	vehicleID := uint(3)
	require.NoError(t, MoveBattery(db, &battery, models.BatteryInUse, nil, &vehicleID))

	var got models.Battery
	require.NoError(t, db.First(&got, battery.ID).Error)
	assert.Equal(t, models.BatteryInUse, got.Status)
	assert.Equal(t, models.OwnerDriver, got.Owner)
	require.NotNil(t, got.VehicleID)
	assert.Equal(t, vehicleID, *got.VehicleID)
	assert.Nil(t, got.StationID)

	// Back to the station for quality check.
	require.NoError(t, MoveBattery(db, &got, models.BatteryQualityCheck, &stationID, nil))
	require.NoError(t, db.First(&got, battery.ID).Error)
	assert.Equal(t, models.OwnerStation, got.Owner)
	assert.Nil(t, got.VehicleID)
	require.NotNil(t, got.StationID)
	assert.Equal(t, stationID, *got.StationID)
}

func TestMoveBatteryRejectsIllegalTransition(t *testing.T) {
	db := newTestDB(t)

	battery := models.Battery{SerialNumber: "BT-101", Status: models.BatteryAvailable}
	require.NoError(t, db.Create(&battery).Error)

	err := MoveBattery(db, &battery, models.BatteryCharging, nil, nil)
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidRequest, apperr.From(err).Kind)

	var got models.Battery
	require.NoError(t, db.First(&got, battery.ID).Error)
	assert.Equal(t, models.BatteryAvailable, got.Status, "failed transition must not mutate")
}

func TestReserveSlotConflict(t *testing.T) {
	db := newTestDB(t)

	slot := models.StationBatterySlot{StationID: 1, SlotNumber: 1, Status: models.SlotAvailable}
	require.NoError(t, db.Create(&slot).Error)

	require.NoError(t, ReserveSlot(db, &slot))
	assert.Equal(t, models.SlotFull, slot.Status)

	err := ReserveSlot(db, &slot)
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.From(err).Kind)
}

func TestMarkSlotReady(t *testing.T) {
	db := newTestDB(t)

	stationID := uint(1)
	battery := models.Battery{
		SerialNumber: "BT-102", Status: models.BatteryCharging,
		Owner: models.OwnerStation, StationID: &stationID,
	}
	require.NoError(t, db.Create(&battery).Error)

	slot := models.StationBatterySlot{
		StationID: stationID, SlotNumber: 1,
		Status: models.SlotFull, BatteryID: &battery.ID,
	}
	require.NoError(t, db.Create(&slot).Error)

	require.NoError(t, MarkSlotReady(db, &slot))

	var gotSlot models.StationBatterySlot
	require.NoError(t, db.First(&gotSlot, slot.ID).Error)
	assert.Equal(t, models.SlotAvailable, gotSlot.Status)

	var gotBattery models.Battery
	require.NoError(t, db.First(&gotBattery, battery.ID).Error)
	assert.Equal(t, models.BatteryAvailable, gotBattery.Status)
}

func TestDetachSlotBinding(t *testing.T) {
	db := newTestDB(t)

	batteryID := uint(42)
	slot := models.StationBatterySlot{
		StationID: 1, SlotNumber: 1,
		Status: models.SlotFull, BatteryID: &batteryID,
	}
	require.NoError(t, db.Create(&slot).Error)

	require.NoError(t, DetachSlotBinding(db, batteryID))

	var got models.StationBatterySlot
	require.NoError(t, db.First(&got, slot.ID).Error)
	assert.Nil(t, got.BatteryID)
	assert.Equal(t, models.SlotAvailable, got.Status)
}
