package datastore

import (
	"context"
	"time"

	"github.com/astropulse/astropulse/internal/models"
	"github.com/astropulse/astropulse/pkg/logger"
	"github.com/astropulse/astropulse/pkg/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EntitlementRepository manages per-user generation quotas.
type EntitlementRepository struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEntitlementRepository(db *gorm.DB, log *logger.Logger) *EntitlementRepository {
	return &EntitlementRepository{db: db, log: log}
}

func (r *EntitlementRepository) storageErr(ctx context.Context, err error, op string) error {
	r.log.Error(ctx).WithFields("error", err, "op", op).Logs("entitlement storage failed")
	return utils.NewError(utils.CodeInternal, "entitlement storage failed")
}

// GetOrCreate returns the user's entitlement, creating a default one
// on first use.
func (r *EntitlementRepository) GetOrCreate(ctx context.Context, userID uuid.UUID, plan models.Plan, limit int, resetAt time.Time) (*models.Entitlement, error) {
	var ent models.Entitlement
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&ent).Error
	if err == nil {
		return &ent, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, r.storageErr(ctx, err, "get_entitlement")
	}

	ent = models.Entitlement{
		UserID:        userID,
		Plan:          plan,
		RequestsLimit: limit,
		PeriodResetAt: resetAt,
	}
	if err := r.db.WithContext(ctx).Create(&ent).Error; err != nil {
		if isDuplicate(err) {
			// Lost a create race; the winner's row is authoritative.
			return r.GetOrCreate(ctx, userID, plan, limit, resetAt)
		}
		return nil, r.storageErr(ctx, err, "create_entitlement")
	}
	return &ent, nil
}

// Increment consumes one generation from the user's quota.
func (r *EntitlementRepository) Increment(ctx context.Context, userID uuid.UUID) error {
	err := r.db.WithContext(ctx).Model(&models.Entitlement{}).
		Where("user_id = ?", userID).
		UpdateColumn("requests_used", gorm.Expr("requests_used + 1")).Error
	if err != nil {
		return r.storageErr(ctx, err, "increment_entitlement")
	}
	return nil
}

// SetPlan switches the user's tier and limit.
func (r *EntitlementRepository) SetPlan(ctx context.Context, userID uuid.UUID, plan models.Plan, limit int) error {
	err := r.db.WithContext(ctx).Model(&models.Entitlement{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{"plan": plan, "requests_limit": limit}).Error
	if err != nil {
		return r.storageErr(ctx, err, "set_plan")
	}
	return nil
}

// Reset zeroes one user's usage and sets the next reset time. Used by
// the lazy reset path when the batch job has not run yet.
func (r *EntitlementRepository) Reset(ctx context.Context, userID uuid.UUID, resetAt time.Time) error {
	err := r.db.WithContext(ctx).Model(&models.Entitlement{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"requests_used":   0,
			"period_reset_at": resetAt,
		}).Error
	if err != nil {
		return r.storageErr(ctx, err, "reset_entitlement")
	}
	return nil
}

// ResetDue zeroes usage and advances the reset time for every
// entitlement whose period has lapsed. Returns the number reset.
func (r *EntitlementRepository) ResetDue(ctx context.Context, now time.Time, period time.Duration) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Entitlement{}).
		Where("period_reset_at <= ?", now).
		Updates(map[string]interface{}{
			"requests_used":   0,
			"period_reset_at": now.Add(period),
		})
	if res.Error != nil {
		return 0, r.storageErr(ctx, res.Error, "reset_entitlements")
	}
	return res.RowsAffected, nil
}
