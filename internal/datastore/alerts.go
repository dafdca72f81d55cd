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

// AlertRepository manages transit alerts.
type AlertRepository struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAlertRepository(db *gorm.DB, log *logger.Logger) *AlertRepository {
	return &AlertRepository{db: db, log: log}
}

func (r *AlertRepository) storageErr(ctx context.Context, err error, op string) error {
	r.log.Error(ctx).WithFields("error", err, "op", op).Logs("alert storage failed")
	return utils.NewError(utils.CodeInternal, "alert storage failed")
}

// InsertBatch stores the alerts the transit job produced.
func (r *AlertRepository) InsertBatch(ctx context.Context, alerts []models.TransitAlert) error {
	if len(alerts) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).CreateInBatches(alerts, 100).Error; err != nil {
		return r.storageErr(ctx, err, "insert_alerts")
	}
	return nil
}

// ListByUser returns the user's alerts, newest first. With activeOnly
// set, only alerts whose window includes now are returned.
func (r *AlertRepository) ListByUser(ctx context.Context, userID uuid.UUID, activeOnly bool, now time.Time) ([]models.TransitAlert, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if activeOnly {
		q = q.Where("starts_at <= ? AND ends_at >= ?", now, now)
	}
	alerts := []models.TransitAlert{}
	if err := q.Order("starts_at DESC").Find(&alerts).Error; err != nil {
		return nil, r.storageErr(ctx, err, "list_alerts")
	}
	return alerts, nil
}

// MarkRead flags the alert read. Not-owned reads as missing.
func (r *AlertRepository) MarkRead(ctx context.Context, id, userID uuid.UUID) (*models.TransitAlert, error) {
	var alert models.TransitAlert
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&alert).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, r.storageErr(ctx, err, "get_alert")
	}
	if !alert.IsRead {
		alert.IsRead = true
		if err := r.db.WithContext(ctx).Save(&alert).Error; err != nil {
			return nil, r.storageErr(ctx, err, "mark_alert_read")
		}
	}
	return &alert, nil
}

// Delete removes the user's alert. Returns false when no owned row matched.
func (r *AlertRepository) Delete(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.TransitAlert{})
	if res.Error != nil {
		return false, r.storageErr(ctx, res.Error, "delete_alert")
	}
	return res.RowsAffected > 0, nil
}

// DeleteExpired prunes alerts whose window closed before the cutoff.
func (r *AlertRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("ends_at < ?", before).Delete(&models.TransitAlert{})
	if res.Error != nil {
		return 0, r.storageErr(ctx, res.Error, "delete_expired_alerts")
	}
	return res.RowsAffected, nil
}
