package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/astropulse/astropulse/internal/models"
	"github.com/astropulse/astropulse/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDailyGeneratesWhenMissing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.readings.GetDaily(ctx, h.user.ID, testToday, false)
	require.NoError(t, err)
	assert.Equal(t, SourceGenerated, res.Source)
	assert.Equal(t, "Mercury favors careful contracts.", res.Reading.Sections.Work)
	assert.Equal(t, 1, h.llm.calls())

	// Persisted and cached.
	stored, err := h.store.GetReading(ctx, h.user.ID, testToday, models.ReadingDaily)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, h.kv.has(fmt.Sprintf("reading:%s:%s", h.user.ID, testToday)))

	// Quota consumed exactly once.
	assert.Equal(t, 1, h.entitlement(t).RequestsUsed)

	// Transit summary flowed into the prompt request.
	assert.Equal(t, "Saturn trine natal sun", h.llm.last().Transits)
}

func TestGetDailyDefaultsToToday(t *testing.T) {
	h := newHarness(t)

	res, err := h.readings.GetDaily(context.Background(), h.user.ID, "", false)
	require.NoError(t, err)
	assert.Equal(t, testToday, res.Reading.ReadingDate)
}

func TestGetDailyRejectsBadDate(t *testing.T) {
	h := newHarness(t)

	_, err := h.readings.GetDaily(context.Background(), h.user.ID, "08/26/2026", false)
	require.Error(t, err)
	var appErr *utils.CustomError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, utils.CodeValidation, appErr.Code)
}

func TestGetDailyServesFromCacheSecondTime(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.readings.GetDaily(ctx, h.user.ID, testToday, false)
	require.NoError(t, err)
	require.Equal(t, SourceGenerated, first.Source)

	second, err := h.readings.GetDaily(ctx, h.user.ID, testToday, false)
	require.NoError(t, err)
	assert.Equal(t, SourceCache, second.Source)
	assert.Equal(t, first.Reading.ID, second.Reading.ID)
	assert.Equal(t, 1, h.llm.calls(), "cache hit must not re-generate")
	assert.Equal(t, 1, h.entitlement(t).RequestsUsed, "cache hit must not consume quota")
}

func TestGetDailyServesFromDatabaseAndRepopulatesCache(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	seeded := models.NewReading(h.user.ID, testToday, models.ReadingDaily,
		models.WithSections(models.ReadingSections{Work: "from the db"}))
	require.NoError(t, h.store.SaveReading(ctx, seeded))

	res, err := h.readings.GetDaily(ctx, h.user.ID, testToday, false)
	require.NoError(t, err)
	assert.Equal(t, SourceDatabase, res.Source)
	assert.Equal(t, seeded.ID, res.Reading.ID)
	assert.Zero(t, h.llm.calls())

	// The db hit warmed the cache.
	again, err := h.readings.GetDaily(ctx, h.user.ID, testToday, false)
	require.NoError(t, err)
	assert.Equal(t, SourceCache, again.Source)
}

func TestGetDailyPastMissingIsNotFound(t *testing.T) {
	h := newHarness(t)

	_, err := h.readings.GetDaily(context.Background(), h.user.ID, testYesterday, false)
	require.Error(t, err)
	var appErr *utils.CustomError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, utils.CodeNotFound, appErr.Code)
	assert.Zero(t, h.llm.calls(), "past dates are never backfilled")
}

func TestGetDailyPastStoredIsServed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	seeded := models.NewReading(h.user.ID, testYesterday, models.ReadingDaily,
		models.WithSections(models.ReadingSections{Work: "yesterday's"}))
	require.NoError(t, h.store.SaveReading(ctx, seeded))

	res, err := h.readings.GetDaily(ctx, h.user.ID, testYesterday, false)
	require.NoError(t, err)
	assert.Equal(t, SourceDatabase, res.Source)
}

func TestForceRegenerates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.readings.GetDaily(ctx, h.user.ID, testToday, false)
	require.NoError(t, err)

	forced, err := h.readings.GetDaily(ctx, h.user.ID, testToday, true)
	require.NoError(t, err)
	assert.Equal(t, SourceGenerated, forced.Source)
	assert.NotEqual(t, first.Reading.ID, forced.Reading.ID)
	assert.Equal(t, 2, h.llm.calls())

	// Duplicates are tolerated; the newest row wins subsequent reads.
	var n int64
	require.NoError(t, h.db.Model(&models.Reading{}).Where("user_id = ?", h.user.ID).Count(&n).Error)
	assert.Equal(t, int64(2), n)

	next, err := h.readings.GetDaily(ctx, h.user.ID, testToday, false)
	require.NoError(t, err)
	assert.Equal(t, forced.Reading.ID, next.Reading.ID)
}

func TestForcePastIsRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	seeded := models.NewReading(h.user.ID, testYesterday, models.ReadingDaily)
	require.NoError(t, h.store.SaveReading(ctx, seeded))

	_, err := h.readings.GetDaily(ctx, h.user.ID, testYesterday, true)
	require.Error(t, err)
	var appErr *utils.CustomError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, utils.CodeValidation, appErr.Code)
	assert.Zero(t, h.llm.calls())
}

func TestQuotaExceededBlocksGeneration(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	ent := &models.Entitlement{
		UserID:        h.user.ID,
		Plan:          models.PlanFree,
		RequestsUsed:  testFreeLimit,
		RequestsLimit: testFreeLimit,
		PeriodResetAt: time.Now().UTC().Add(time.Hour),
	}
	require.NoError(t, h.db.Create(ent).Error)

	_, err := h.readings.GetDaily(ctx, h.user.ID, testToday, false)
	require.Error(t, err)
	var appErr *utils.CustomError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, utils.CodeQuotaExceeded, appErr.Code)

	details, ok := appErr.Details.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, testFreeLimit, details["used"])
	assert.Equal(t, testFreeLimit, details["limit"])
	assert.Contains(t, details, "resets_at")
	assert.Zero(t, h.llm.calls())
}

func TestLapsedPeriodResetsLazily(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	ent := &models.Entitlement{
		UserID:        h.user.ID,
		Plan:          models.PlanFree,
		RequestsUsed:  testFreeLimit,
		RequestsLimit: testFreeLimit,
		PeriodResetAt: time.Now().UTC().Add(-time.Minute),
	}
	require.NoError(t, h.db.Create(ent).Error)

	res, err := h.readings.GetDaily(ctx, h.user.ID, testToday, false)
	require.NoError(t, err)
	assert.Equal(t, SourceGenerated, res.Source)
	assert.Equal(t, 1, h.entitlement(t).RequestsUsed)
}

func TestIncompleteBirthDetailsBlockGeneration(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	bare := &models.User{Email: "bare@example.com", Password: "x", Name: "No Birth"}
	require.NoError(t, h.db.Create(bare).Error)

	_, err := h.readings.GetDaily(ctx, bare.ID, testToday, false)
	require.Error(t, err)
	var appErr *utils.CustomError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, utils.CodeValidation, appErr.Code)
}

func TestTransitFailureDoesNotBlockGeneration(t *testing.T) {
	h := newHarness(t)
	h.transits.err = errBackendDown

	res, err := h.readings.GetDaily(context.Background(), h.user.ID, testToday, false)
	require.NoError(t, err)
	assert.Equal(t, SourceGenerated, res.Source)
	assert.Empty(t, h.llm.last().Transits)
}

func TestCacheOutageDegradesToDatabase(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.kv.failing = true

	res, err := h.readings.GetDaily(ctx, h.user.ID, testToday, false)
	require.NoError(t, err)
	assert.Equal(t, SourceGenerated, res.Source)

	// With redis still down, the stored row serves reads.
	again, err := h.readings.GetDaily(ctx, h.user.ID, testToday, false)
	require.NoError(t, err)
	assert.Equal(t, SourceDatabase, again.Source)
}

func TestContestedLockStillGenerates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// Another request holds the generation lock but has not persisted
	// yet. Generation proceeds anyway; duplicate rows are tolerated.
	_, err := h.kv.SetIfAbsent(ctx, fmt.Sprintf("lock:gen:%s:%s", h.user.ID, testToday), "1", time.Minute)
	require.NoError(t, err)

	res, err := h.readings.GetDaily(ctx, h.user.ID, testToday, false)
	require.NoError(t, err)
	assert.Equal(t, SourceGenerated, res.Source)
	assert.Equal(t, 1, h.llm.calls())
}

func TestGetPeriodicWeekly(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.readings.GetPeriodic(ctx, h.user.ID, models.ReadingWeekly, false)
	require.NoError(t, err)
	assert.Equal(t, SourceGenerated, res.Source)
	assert.Equal(t, testWeekStart, res.Reading.ReadingDate)
	assert.Equal(t, models.ReadingWeekly, h.llm.last().Type)

	// Weekly readings bypass the entry cache.
	assert.False(t, h.kv.has(fmt.Sprintf("reading:%s:%s", h.user.ID, testWeekStart)))

	again, err := h.readings.GetPeriodic(ctx, h.user.ID, models.ReadingWeekly, false)
	require.NoError(t, err)
	assert.Equal(t, SourceDatabase, again.Source)
	assert.Equal(t, 1, h.llm.calls())
}

func TestGetPeriodicMonthly(t *testing.T) {
	h := newHarness(t)

	res, err := h.readings.GetPeriodic(context.Background(), h.user.ID, models.ReadingMonthly, false)
	require.NoError(t, err)
	assert.Equal(t, "2026-08-01", res.Reading.ReadingDate)
	assert.Equal(t, models.ReadingMonthly, res.Reading.ReadingType)
}

func TestGetPeriodicRejectsDaily(t *testing.T) {
	h := newHarness(t)

	_, err := h.readings.GetPeriodic(context.Background(), h.user.ID, models.ReadingDaily, false)
	require.Error(t, err)
	var appErr *utils.CustomError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, utils.CodeValidation, appErr.Code)
}

func TestEnsureDaily(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	generated, err := h.readings.EnsureDaily(ctx, h.user.ID)
	require.NoError(t, err)
	assert.True(t, generated)

	// Job generations never touch user quota.
	var n int64
	require.NoError(t, h.db.Model(&models.Entitlement{}).Count(&n).Error)
	assert.Zero(t, n)

	again, err := h.readings.EnsureDaily(ctx, h.user.ID)
	require.NoError(t, err)
	assert.False(t, again, "existing reading is left alone")
	assert.Equal(t, 1, h.llm.calls())
}

func TestLatestPrefersCachePointer(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.readings.GetDaily(ctx, h.user.ID, testToday, false)
	require.NoError(t, err)

	latest, err := h.readings.Latest(ctx, h.user.ID)
	require.NoError(t, err)
	assert.Equal(t, testToday, latest.ReadingDate)
}

func TestLatestFallsBackToStore(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	seeded := models.NewReading(h.user.ID, testYesterday, models.ReadingDaily)
	require.NoError(t, h.store.SaveReading(ctx, seeded))

	latest, err := h.readings.Latest(ctx, h.user.ID)
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, latest.ID)
}

func TestLatestEmptyHistory(t *testing.T) {
	h := newHarness(t)

	_, err := h.readings.Latest(context.Background(), h.user.ID)
	require.Error(t, err)
	var appErr *utils.CustomError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, utils.CodeNotFound, appErr.Code)
}

func TestListCachesOnlyPlainFirstPage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.readings.GetDaily(ctx, h.user.ID, testToday, false)
	require.NoError(t, err)

	page, err := h.readings.List(ctx, h.user.ID, models.ReadingFilters{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)

	// A row written behind the cache's back is invisible until the
	// page expires or a mutation invalidates it.
	sneaky := models.NewReading(h.user.ID, testYesterday, models.ReadingDaily)
	require.NoError(t, h.store.SaveReading(ctx, sneaky))

	cached, err := h.readings.List(ctx, h.user.ID, models.ReadingFilters{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), cached.Total)

	// Filtered listings bypass the cache.
	filtered, err := h.readings.List(ctx, h.user.ID, models.ReadingFilters{Type: models.ReadingDaily})
	require.NoError(t, err)
	assert.Equal(t, int64(2), filtered.Total)
}

func TestMutationsInvalidateCache(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.readings.GetDaily(ctx, h.user.ID, testToday, false)
	require.NoError(t, err)
	entryKey := fmt.Sprintf("reading:%s:%s", h.user.ID, testToday)
	require.True(t, h.kv.has(entryKey))

	_, err = h.readings.MarkRead(ctx, h.user.ID, res.Reading.ID)
	require.NoError(t, err)
	assert.False(t, h.kv.has(entryKey))
	assert.False(t, h.kv.has(fmt.Sprintf("readings:list:%s", h.user.ID)))
	assert.False(t, h.kv.has(fmt.Sprintf("reading:latest:%s", h.user.ID)))
}

func TestDeleteRemovesRowAndCache(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.readings.GetDaily(ctx, h.user.ID, testToday, false)
	require.NoError(t, err)

	require.NoError(t, h.readings.Delete(ctx, h.user.ID, res.Reading.ID))
	assert.False(t, h.kv.has(fmt.Sprintf("reading:%s:%s", h.user.ID, testToday)))

	err = h.readings.Delete(ctx, h.user.ID, res.Reading.ID)
	require.Error(t, err)
	var appErr *utils.CustomError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, utils.CodeNotFound, appErr.Code)
}

func TestDeleteAll(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.readings.GetDaily(ctx, h.user.ID, testToday, false)
	require.NoError(t, err)
	seeded := models.NewReading(h.user.ID, testYesterday, models.ReadingDaily)
	require.NoError(t, h.store.SaveReading(ctx, seeded))

	n, err := h.readings.DeleteAll(ctx, h.user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.False(t, h.kv.has(fmt.Sprintf("reading:%s:%s", h.user.ID, testToday)))
}

func TestGenerationFailurePropagates(t *testing.T) {
	h := newHarness(t)
	h.llm.generateErr = utils.NewError(utils.CodeUnavailable, "Reading generation is temporarily unavailable")

	_, err := h.readings.GetDaily(context.Background(), h.user.ID, testToday, false)
	require.Error(t, err)
	var appErr *utils.CustomError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, utils.CodeUnavailable, appErr.Code)

	// Nothing persisted, nothing consumed.
	var n int64
	require.NoError(t, h.db.Model(&models.Reading{}).Count(&n).Error)
	assert.Zero(t, n)
	assert.Zero(t, h.entitlement(t).RequestsUsed)
}
