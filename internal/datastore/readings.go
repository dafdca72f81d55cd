// Package datastore holds the gorm-backed repositories. Storage
// errors are logged with full detail here and re-thrown generic, so
// no driver detail ever reaches a client.
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

const (
	// DefaultListLimit applies when the caller sends no limit.
	DefaultListLimit = 20
	// MaxListLimit caps page size regardless of what the caller asks for.
	MaxListLimit = 50
)

// ReadingRepository is the authoritative store for readings.
type ReadingRepository struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReadingRepository(db *gorm.DB, log *logger.Logger) *ReadingRepository {
	return &ReadingRepository{db: db, log: log}
}

func (r *ReadingRepository) storageErr(ctx context.Context, err error, op string) error {
	r.log.Error(ctx).WithFields("error", err, "op", op).Logs("reading storage failed")
	return utils.NewError(utils.CodeInternal, "reading storage failed")
}

// GetReading returns the reading for (user, date, type), or nil when
// none exists. With duplicate rows the newest by created_at wins.
func (r *ReadingRepository) GetReading(ctx context.Context, userID uuid.UUID, date string, rtype models.ReadingType) (*models.Reading, error) {
	var reading models.Reading
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND reading_date = ? AND reading_type = ?", userID, date, rtype).
		Order("created_at DESC").
		First(&reading).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, r.storageErr(ctx, err, "get_reading")
	}
	return &reading, nil
}

// GetReadings returns one filtered page plus the unfiltered-by-page total.
func (r *ReadingRepository) GetReadings(ctx context.Context, userID uuid.UUID, f models.ReadingFilters) (*models.ReadingPage, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	q := r.db.WithContext(ctx).Model(&models.Reading{}).Where("user_id = ?", userID)
	if f.Type != "" {
		q = q.Where("reading_type = ?", f.Type)
	}
	if f.SavedOnly {
		q = q.Where("is_saved = ?", true)
	}
	if f.IsRead != nil {
		q = q.Where("is_read = ?", *f.IsRead)
	}
	if f.From != "" {
		q = q.Where("reading_date >= ?", f.From)
	}
	if f.To != "" {
		q = q.Where("reading_date <= ?", f.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, r.storageErr(ctx, err, "count_readings")
	}

	readings := []models.Reading{}
	err := q.Order("reading_date DESC, created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&readings).Error
	if err != nil {
		return nil, r.storageErr(ctx, err, "list_readings")
	}

	return &models.ReadingPage{
		Readings: readings,
		Total:    total,
		HasMore:  int64(offset+len(readings)) < total,
	}, nil
}

// SaveReading persists a new reading.
func (r *ReadingRepository) SaveReading(ctx context.Context, reading *models.Reading) error {
	if err := r.db.WithContext(ctx).Create(reading).Error; err != nil {
		return r.storageErr(ctx, err, "save_reading")
	}
	return nil
}

// UpdateReading persists changes to an existing reading.
func (r *ReadingRepository) UpdateReading(ctx context.Context, reading *models.Reading) error {
	if err := r.db.WithContext(ctx).Save(reading).Error; err != nil {
		return r.storageErr(ctx, err, "update_reading")
	}
	return nil
}

// DeleteReading removes the user's reading. Returns false when no
// owned row matched.
func (r *ReadingRepository) DeleteReading(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.Reading{})
	if res.Error != nil {
		return false, r.storageErr(ctx, res.Error, "delete_reading")
	}
	return res.RowsAffected > 0, nil
}

// MarkAsRead flags the reading read and timestamps it. Already-read
// readings pass through unchanged.
func (r *ReadingRepository) MarkAsRead(ctx context.Context, id, userID uuid.UUID) (*models.Reading, error) {
	reading, err := r.GetReadingByID(ctx, id, userID)
	if err != nil || reading == nil {
		return reading, err
	}
	if reading.IsRead {
		return reading, nil
	}
	now := time.Now().UTC()
	reading.IsRead = true
	reading.ReadAt = &now
	if err := r.UpdateReading(ctx, reading); err != nil {
		return nil, err
	}
	return reading, nil
}

// ToggleSaved flips the saved flag, stamping saved_at on save and
// clearing it on unsave.
func (r *ReadingRepository) ToggleSaved(ctx context.Context, id, userID uuid.UUID) (*models.Reading, error) {
	reading, err := r.GetReadingByID(ctx, id, userID)
	if err != nil || reading == nil {
		return reading, err
	}
	if reading.IsSaved {
		reading.IsSaved = false
		reading.SavedAt = nil
	} else {
		now := time.Now().UTC()
		reading.IsSaved = true
		reading.SavedAt = &now
	}
	if err := r.UpdateReading(ctx, reading); err != nil {
		return nil, err
	}
	return reading, nil
}

// AddFeedback records the user's verdict on a reading.
func (r *ReadingRepository) AddFeedback(ctx context.Context, id, userID uuid.UUID, feedback models.Feedback) (*models.Reading, error) {
	if !feedback.Valid() {
		return nil, utils.NewError(utils.CodeValidation, "Feedback must be helpful or not_helpful")
	}
	reading, err := r.GetReadingByID(ctx, id, userID)
	if err != nil || reading == nil {
		return reading, err
	}
	now := time.Now().UTC()
	reading.UserFeedback = &feedback
	reading.FeedbackAt = &now
	if err := r.UpdateReading(ctx, reading); err != nil {
		return nil, err
	}
	return reading, nil
}

// Exists reports whether any reading exists for (user, date, type).
func (r *ReadingRepository) Exists(ctx context.Context, userID uuid.UUID, date string, rtype models.ReadingType) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Reading{}).
		Where("user_id = ? AND reading_date = ? AND reading_type = ?", userID, date, rtype).
		Count(&n).Error
	if err != nil {
		return false, r.storageErr(ctx, err, "reading_exists")
	}
	return n > 0, nil
}

// Stats aggregates the user's reading history.
func (r *ReadingRepository) Stats(ctx context.Context, userID uuid.UUID) (*models.ReadingStats, error) {
	stats := &models.ReadingStats{ByType: map[string]int64{}}

	base := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&models.Reading{}).Where("user_id = ?", userID)
	}

	if err := base().Count(&stats.Total).Error; err != nil {
		return nil, r.storageErr(ctx, err, "stats_total")
	}
	if err := base().Where("is_saved = ?", true).Count(&stats.Saved).Error; err != nil {
		return nil, r.storageErr(ctx, err, "stats_saved")
	}
	if err := base().Where("is_read = ?", true).Count(&stats.Read).Error; err != nil {
		return nil, r.storageErr(ctx, err, "stats_read")
	}
	if err := base().Where("user_feedback = ?", models.FeedbackHelpful).Count(&stats.Helpful).Error; err != nil {
		return nil, r.storageErr(ctx, err, "stats_helpful")
	}
	if err := base().Where("user_feedback = ?", models.FeedbackNotHelpful).Count(&stats.NotHelpful).Error; err != nil {
		return nil, r.storageErr(ctx, err, "stats_not_helpful")
	}

	var byType []struct {
		ReadingType string
		N           int64
	}
	if err := base().Select("reading_type, count(*) as n").Group("reading_type").Scan(&byType).Error; err != nil {
		return nil, r.storageErr(ctx, err, "stats_by_type")
	}
	for _, row := range byType {
		stats.ByType[row.ReadingType] = row.N
	}
	return stats, nil
}

// DeleteAllForUser removes every reading the user owns and returns the count.
func (r *ReadingRepository) DeleteAllForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Reading{})
	if res.Error != nil {
		return 0, r.storageErr(ctx, res.Error, "delete_all_readings")
	}
	return res.RowsAffected, nil
}

// GetReadingsInRange returns all readings dated within [from, to],
// across users. Used by the admin analytics surface.
func (r *ReadingRepository) GetReadingsInRange(ctx context.Context, from, to string) ([]models.Reading, error) {
	readings := []models.Reading{}
	err := r.db.WithContext(ctx).
		Where("reading_date >= ? AND reading_date <= ?", from, to).
		Order("reading_date ASC, created_at ASC").
		Find(&readings).Error
	if err != nil {
		return nil, r.storageErr(ctx, err, "readings_in_range")
	}
	return readings, nil
}

// DeleteBefore removes readings older than the cutoff date across all
// users. Used by the admin cleanup surface.
func (r *ReadingRepository) DeleteBefore(ctx context.Context, before string) (int64, error) {
	res := r.db.WithContext(ctx).Where("reading_date < ?", before).Delete(&models.Reading{})
	if res.Error != nil {
		return 0, r.storageErr(ctx, res.Error, "delete_readings_before")
	}
	return res.RowsAffected, nil
}

// GetReadingByID fetches one reading with an ownership check. A row
// owned by someone else looks exactly like a missing row.
func (r *ReadingRepository) GetReadingByID(ctx context.Context, id, userID uuid.UUID) (*models.Reading, error) {
	var reading models.Reading
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&reading).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, r.storageErr(ctx, err, "get_reading_by_id")
	}
	return &reading, nil
}
