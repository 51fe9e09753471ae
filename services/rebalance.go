package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"voltswap/apperr"
	"voltswap/inventory"
	"voltswap/models"
	"voltswap/rebalance"
)

// RebalanceService snapshots station inventory for the planner and
// executes the resulting moves.
type RebalanceService struct {
	DB  *gorm.DB
	Log *zap.Logger
}

// PlanRequest selects which stations to balance and how.
type PlanRequest struct {
	BatteryTypeID    uint   `json:"battery_type_id" binding:"required"`
	TargetPerStation *int   `json:"target_per_station"`
	MaxPerPair       int    `json:"max_per_pair"`
	PreferNearest    bool   `json:"prefer_nearest"`
	RestrictToAdmin  bool   `json:"restrict_to_admin"`
	StationIDs       []uint `json:"station_ids"`
}

// MoveRequest executes one planned move. BatteryIDs pins specific units;
// empty means the oldest-updated Available batteries at the source.
type MoveRequest struct {
	FromStationID uint   `json:"from_station_id" binding:"required"`
	ToStationID   uint   `json:"to_station_id" binding:"required"`
	Quantity      int    `json:"quantity" binding:"required"`
	BatteryIDs    []uint `json:"battery_ids"`
}

// ExecuteRequest is a batch of moves for one battery type.
type ExecuteRequest struct {
	BatteryTypeID uint          `json:"battery_type_id" binding:"required"`
	Moves         []MoveRequest `json:"moves" binding:"required"`
}

// ExecuteResult reports what happened per batch; unsatisfiable moves
// become warnings, not failures.
type ExecuteResult struct {
	Moved    int      `json:"moved"`
	Warnings []string `json:"warnings"`
}

// PlanRebalance counts ready batteries of the type per eligible station
// and hands the snapshot to the pure planner. Admin only.
func (s *RebalanceService) PlanRebalance(ctx context.Context, caller Caller, req PlanRequest) (*rebalance.Plan, error) {
	if err := caller.requireRole(models.RoleAdmin); err != nil {
		return nil, err
	}

	db := s.DB.WithContext(ctx)

	q := db.Model(&models.Station{}).Where("active = ?", true)
	if req.RestrictToAdmin {
		q = q.Where("admin_id = ?", caller.UserID)
	}
	if len(req.StationIDs) > 0 {
		q = q.Where("id IN ?", req.StationIDs)
	}

	var stations []models.Station
	if err := q.Find(&stations).Error; err != nil {
		return nil, apperr.Internal("failed to load stations", err)
	}
	if len(stations) == 0 {
		return nil, apperr.NotFound("no_stations", "no eligible stations to balance")
	}

	snapshot := make([]rebalance.StationCount, 0, len(stations))
	for _, st := range stations {
		var count int64
		if err := db.Model(&models.Battery{}).
			Where("station_id = ? AND battery_type_id = ? AND status = ?",
				st.ID, req.BatteryTypeID, models.BatteryAvailable).
			Count(&count).Error; err != nil {
			return nil, apperr.Internal("failed to count batteries", err)
		}
		snapshot = append(snapshot, rebalance.StationCount{
			StationID: int(st.ID),
			Available: int(count),
			Latitude:  st.Latitude,
			Longitude: st.Longitude,
		})
	}

	plan := rebalance.BuildPlan(snapshot, rebalance.Options{
		TargetPerStation: req.TargetPerStation,
		MaxPerPair:       req.MaxPerPair,
		PreferNearest:    req.PreferNearest,
	})

	s.Log.Info("rebalance planned",
		zap.Uint("battery_type_id", req.BatteryTypeID),
		zap.Int("stations", len(snapshot)),
		zap.Int("moves", len(plan.Moves)))
	return &plan, nil
}

// ExecuteMoves dispatches each move in its own transaction. Ownership and
// shortage problems are collected as warnings so one bad move does not
// abort the batch.
func (s *RebalanceService) ExecuteMoves(ctx context.Context, caller Caller, req ExecuteRequest) (*ExecuteResult, error) {
	if err := caller.requireRole(models.RoleAdmin); err != nil {
		return nil, err
	}

	db := s.DB.WithContext(ctx)
	result := &ExecuteResult{}

	for _, move := range req.Moves {
		if move.Quantity <= 0 {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("move %d->%d: non-positive quantity", move.FromStationID, move.ToStationID))
			continue
		}

		owned, err := s.stationsOwnedBy(ctx, caller.UserID, move.FromStationID, move.ToStationID)
		if err != nil {
			return nil, err
		}
		if !owned {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("move %d->%d: station not managed by caller", move.FromStationID, move.ToStationID))
			continue
		}

		moved, err := s.executeOneMove(ctx, db, move, req.BatteryTypeID)
		if err != nil {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("move %d->%d: %v", move.FromStationID, move.ToStationID, apperr.From(err).Message))
			continue
		}
		if moved < move.Quantity {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("move %d->%d: only %d of %d batteries available",
					move.FromStationID, move.ToStationID, moved, move.Quantity))
		}
		result.Moved += moved
	}

	s.Log.Info("rebalance executed",
		zap.Int("moved", result.Moved),
		zap.Int("warnings", len(result.Warnings)))
	return result, nil
}

func (s *RebalanceService) stationsOwnedBy(ctx context.Context, adminID uint, stationIDs ...uint) (bool, error) {
	var count int64
	err := s.DB.WithContext(ctx).Model(&models.Station{}).
		Where("id IN ? AND admin_id = ?", stationIDs, adminID).
		Count(&count).Error
	if err != nil {
		return false, apperr.Internal("failed to verify station ownership", err)
	}
	return count == int64(len(stationIDs)), nil
}

// executeOneMove reassigns up to move.Quantity ready batteries from the
// source station to the destination in one transaction, detaching any bay
// still pointing at them.
func (s *RebalanceService) executeOneMove(ctx context.Context, db *gorm.DB, move MoveRequest, batteryTypeID uint) (int, error) {
	moved := 0
	err := db.Transaction(func(tx *gorm.DB) error {
		q := tx.Where("station_id = ? AND battery_type_id = ? AND status = ?",
			move.FromStationID, batteryTypeID, models.BatteryAvailable)
		if len(move.BatteryIDs) > 0 {
			q = q.Where("id IN ?", move.BatteryIDs)
		}

		var batteries []models.Battery
		if err := q.Order("updated_at asc").Limit(move.Quantity).Find(&batteries).Error; err != nil {
			return apperr.Internal("failed to select batteries", err)
		}

		for i := range batteries {
			if err := inventory.DetachSlotBinding(tx, batteries[i].ID); err != nil {
				return err
			}
			dest := move.ToStationID
			batteries[i].StationID = &dest
			if err := tx.Save(&batteries[i]).Error; err != nil {
				return apperr.Internal("failed to reassign battery", err)
			}
		}
		moved = len(batteries)
		return nil
	})
	return moved, err
}
