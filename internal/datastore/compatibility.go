package datastore

import (
	"context"

	"github.com/astropulse/astropulse/internal/models"
	"github.com/astropulse/astropulse/pkg/logger"
	"github.com/astropulse/astropulse/pkg/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CompatibilityRepository manages stored match reports.
type CompatibilityRepository struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCompatibilityRepository(db *gorm.DB, log *logger.Logger) *CompatibilityRepository {
	return &CompatibilityRepository{db: db, log: log}
}

func (r *CompatibilityRepository) storageErr(ctx context.Context, err error, op string) error {
	r.log.Error(ctx).WithFields("error", err, "op", op).Logs("compatibility storage failed")
	return utils.NewError(utils.CodeInternal, "compatibility storage failed")
}

// Create stores a match report.
func (r *CompatibilityRepository) Create(ctx context.Context, report *models.CompatibilityReport) error {
	if err := r.db.WithContext(ctx).Create(report).Error; err != nil {
		return r.storageErr(ctx, err, "create_report")
	}
	return nil
}

// List returns the user's reports, newest first.
func (r *CompatibilityRepository) List(ctx context.Context, userID uuid.UUID) ([]models.CompatibilityReport, error) {
	reports := []models.CompatibilityReport{}
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&reports).Error
	if err != nil {
		return nil, r.storageErr(ctx, err, "list_reports")
	}
	return reports, nil
}

// GetByID fetches one report with an ownership check; not-owned reads as missing.
func (r *CompatibilityRepository) GetByID(ctx context.Context, id, userID uuid.UUID) (*models.CompatibilityReport, error) {
	var report models.CompatibilityReport
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&report).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, r.storageErr(ctx, err, "get_report")
	}
	return &report, nil
}

// Delete removes the user's report. Returns false when no owned row matched.
func (r *CompatibilityRepository) Delete(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.CompatibilityReport{})
	if res.Error != nil {
		return false, r.storageErr(ctx, res.Error, "delete_report")
	}
	return res.RowsAffected > 0, nil
}
