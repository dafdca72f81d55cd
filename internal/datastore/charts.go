package datastore

import (
	"context"

	"github.com/astropulse/astropulse/internal/models"
	"github.com/astropulse/astropulse/pkg/logger"
	"github.com/astropulse/astropulse/pkg/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChartRepository manages stored charts.
type ChartRepository struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChartRepository(db *gorm.DB, log *logger.Logger) *ChartRepository {
	return &ChartRepository{db: db, log: log}
}

func (r *ChartRepository) storageErr(ctx context.Context, err error, op string) error {
	r.log.Error(ctx).WithFields("error", err, "op", op).Logs("chart storage failed")
	return utils.NewError(utils.CodeInternal, "chart storage failed")
}

// Create inserts a chart. A user cannot hold two charts with the same name.
func (r *ChartRepository) Create(ctx context.Context, chart *models.Chart) error {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Chart{}).
		Where("user_id = ? AND name = ?", chart.UserID, chart.Name).
		Count(&n).Error
	if err != nil {
		return r.storageErr(ctx, err, "chart_name_check")
	}
	if n > 0 {
		return utils.NewError(utils.CodeConflict, "A chart with that name already exists")
	}
	if err := r.db.WithContext(ctx).Create(chart).Error; err != nil {
		return r.storageErr(ctx, err, "create_chart")
	}
	return nil
}

// List returns the user's charts, newest first.
func (r *ChartRepository) List(ctx context.Context, userID uuid.UUID) ([]models.Chart, error) {
	charts := []models.Chart{}
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&charts).Error
	if err != nil {
		return nil, r.storageErr(ctx, err, "list_charts")
	}
	return charts, nil
}

// GetByID fetches one chart with an ownership check; not-owned reads as missing.
func (r *ChartRepository) GetByID(ctx context.Context, id, userID uuid.UUID) (*models.Chart, error) {
	var chart models.Chart
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&chart).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, r.storageErr(ctx, err, "get_chart")
	}
	return &chart, nil
}

// GetNatal returns the user's own natal chart, or nil when none is
// stored. Natal charts calculated for other people never match.
func (r *ChartRepository) GetNatal(ctx context.Context, userID uuid.UUID) (*models.Chart, error) {
	var chart models.Chart
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND chart_type = ? AND is_own = ?", userID, models.ChartNatal, true).
		Order("created_at DESC").
		First(&chart).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, r.storageErr(ctx, err, "get_natal_chart")
	}
	return &chart, nil
}

// Delete removes the user's chart. Returns false when no owned row matched.
func (r *ChartRepository) Delete(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.Chart{})
	if res.Error != nil {
		return false, r.storageErr(ctx, res.Error, "delete_chart")
	}
	return res.RowsAffected > 0, nil
}
