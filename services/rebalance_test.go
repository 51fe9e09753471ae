package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"voltswap/apperr"
	"voltswap/models"
)

func (f *fixture) rebalanceService() *RebalanceService {
	return &RebalanceService{DB: f.db, Log: zap.NewNop()}
}

// addStation creates an empty admin-owned station with n ready batteries.
func (f *fixture) addStation(t *testing.T, name string, batteries int) *models.Station {
	t.Helper()
	st := models.Station{Name: name, Active: true, AdminID: &f.admin.ID, ElectricityRate: 2000}
	require.NoError(t, f.db.Create(&st).Error)
	for i := 0; i < batteries; i++ {
		b := models.Battery{
			SerialNumber: fmt.Sprintf("%s-%03d", name, i),
			Owner:        models.OwnerStation, Status: models.BatteryAvailable,
			CapacityWh: 1000, CurrentChargeWh: 1000,
			BatteryTypeID: f.batteryType.ID, StationID: &st.ID,
		}
		require.NoError(t, f.db.Create(&b).Error)
	}
	return &st
}

func TestPlanRebalanceRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	svc := f.rebalanceService()

	_, err := svc.PlanRebalance(context.Background(), f.driverCaller(), PlanRequest{
		BatteryTypeID: f.batteryType.ID,
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.From(err).Kind)
}

func TestPlanRebalanceCountsPerStation(t *testing.T) {
	f := newFixture(t)
	svc := f.rebalanceService()

	rich := f.addStation(t, "RICH", 6)
	poor := f.addStation(t, "POOR", 0)

	plan, err := svc.PlanRebalance(context.Background(), f.adminCaller(), PlanRequest{
		BatteryTypeID: f.batteryType.ID,
		StationIDs:    []uint{rich.ID, poor.ID},
	})
	require.NoError(t, err)

	require.Len(t, plan.Moves, 1)
	assert.Equal(t, int(rich.ID), plan.Moves[0].FromStationID)
	assert.Equal(t, int(poor.ID), plan.Moves[0].ToStationID)
	assert.Equal(t, 3, plan.Moves[0].Quantity)
	assert.Equal(t, 3, plan.Predicted[int(poor.ID)])
}

func TestExecuteMovesReassignsBatteries(t *testing.T) {
	f := newFixture(t)
	svc := f.rebalanceService()
	ctx := context.Background()

	rich := f.addStation(t, "RICH", 4)
	poor := f.addStation(t, "POOR", 0)

	result, err := svc.ExecuteMoves(ctx, f.adminCaller(), ExecuteRequest{
		BatteryTypeID: f.batteryType.ID,
		Moves: []MoveRequest{
			{FromStationID: rich.ID, ToStationID: poor.ID, Quantity: 2},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Moved)
	assert.Empty(t, result.Warnings)

	var count int64
	require.NoError(t, f.db.Model(&models.Battery{}).
		Where("station_id = ? AND status = ?", poor.ID, models.BatteryAvailable).
		Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestExecuteMovesWarnsInsteadOfFailing(t *testing.T) {
	f := newFixture(t)
	svc := f.rebalanceService()
	ctx := context.Background()

	rich := f.addStation(t, "RICH", 1)
	poor := f.addStation(t, "POOR", 0)

	// A station the caller does not manage.
	foreign := models.Station{Name: "FOREIGN", Active: true}
	require.NoError(t, f.db.Create(&foreign).Error)

	result, err := svc.ExecuteMoves(ctx, f.adminCaller(), ExecuteRequest{
		BatteryTypeID: f.batteryType.ID,
		Moves: []MoveRequest{
			{FromStationID: foreign.ID, ToStationID: poor.ID, Quantity: 1},
			{FromStationID: rich.ID, ToStationID: poor.ID, Quantity: 5},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Moved, "only the satisfiable part moves")
	assert.Len(t, result.Warnings, 2, "ownership and shortage both warn")
}

func TestExecuteMovesDetachesSlotBindings(t *testing.T) {
	f := newFixture(t)
	svc := f.rebalanceService()
	ctx := context.Background()

	poor := f.addStation(t, "POOR", 0)

	// Move one of the fixture station's slotted batteries away.
	result, err := svc.ExecuteMoves(ctx, f.adminCaller(), ExecuteRequest{
		BatteryTypeID: f.batteryType.ID,
		Moves: []MoveRequest{
			{FromStationID: f.station.ID, ToStationID: poor.ID, Quantity: 1,
				BatteryIDs: []uint{f.slotBatteries[0].ID}},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.Moved)

	var slot models.StationBatterySlot
	require.NoError(t, f.db.First(&slot, f.slots[0].ID).Error)
	assert.Nil(t, slot.BatteryID, "bay no longer points at the shipped battery")

	var battery models.Battery
	require.NoError(t, f.db.First(&battery, f.slotBatteries[0].ID).Error)
	require.NotNil(t, battery.StationID)
	assert.Equal(t, poor.ID, *battery.StationID)
}
