package services

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"voltswap/apperr"
	"voltswap/models"
)

// SubscriptionService runs the externally triggered plan maintenance.
type SubscriptionService struct {
	DB  *gorm.DB
	Log *zap.Logger
}

// ResetSubscriptionQuotas is the quota reset sweep: Active subscriptions
// past their end date go Inactive so their quota can no longer be drawn.
// Invoked by an external scheduler through the admin endpoint.
func (s *SubscriptionService) ResetSubscriptionQuotas(ctx context.Context, caller Caller) (int, error) {
	if err := caller.requireRole(models.RoleAdmin); err != nil {
		return 0, err
	}

	now := time.Now()
	res := s.DB.WithContext(ctx).Model(&models.Subscription{}).
		Where("status = ? AND end_date <= ?", models.SubscriptionActive, now).
		Update("status", models.SubscriptionInactive)
	if res.Error != nil {
		return 0, apperr.Internal("failed to expire subscriptions", res.Error)
	}

	if res.RowsAffected > 0 {
		s.Log.Info("subscriptions expired", zap.Int64("count", res.RowsAffected))
	}
	return int(res.RowsAffected), nil
}
