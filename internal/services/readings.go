package services

import (
	"context"
	"time"

	"github.com/astropulse/astropulse/internal/cache"
	"github.com/astropulse/astropulse/internal/datastore"
	"github.com/astropulse/astropulse/internal/llm"
	"github.com/astropulse/astropulse/internal/models"
	"github.com/astropulse/astropulse/pkg/logger"
	"github.com/astropulse/astropulse/pkg/metrics"
	"github.com/astropulse/astropulse/pkg/utils"
	"github.com/google/uuid"
)

// Source tells the client which tier served a reading.
type Source string

const (
	SourceCache     Source = "cache"
	SourceDatabase  Source = "database"
	SourceGenerated Source = "generated"
)

// Result pairs a reading with where it came from.
type Result struct {
	Reading *models.Reading
	Source  Source
}

// ReadingService orchestrates reading retrieval: cache first, then the
// database, then generation. Only daily readings pass through the
// entry cache; weekly and monthly share the database and generation
// path, keyed by their period start date.
type ReadingService struct {
	store *datastore.ReadingRepository
	users *datastore.UserRepository
	cache *cache.ReadingCache
	quota *QuotaService
	llm   llm.Client
	astro TransitSource
	log   *logger.Logger
	now   func() time.Time
}

// ReadingServiceOption configures a ReadingService.
type ReadingServiceOption func(*ReadingService)

// WithReadingClock overrides the clock, used to pin "today" in tests.
func WithReadingClock(now func() time.Time) ReadingServiceOption {
	return func(s *ReadingService) { s.now = now }
}

func NewReadingService(
	store *datastore.ReadingRepository,
	users *datastore.UserRepository,
	rc *cache.ReadingCache,
	quota *QuotaService,
	llmClient llm.Client,
	transits TransitSource,
	log *logger.Logger,
	opts ...ReadingServiceOption,
) *ReadingService {
	s := &ReadingService{
		store: store,
		users: users,
		cache: rc,
		quota: quota,
		llm:   llmClient,
		astro: transits,
		log:   log,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ReadingService) today() string {
	return s.now().UTC().Format(time.DateOnly)
}

// weekStart returns the Monday of the week containing t.
func weekStart(t time.Time) string {
	t = t.UTC()
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset).Format(time.DateOnly)
}

// monthStart returns the first day of the month containing t.
func monthStart(t time.Time) string {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).Format(time.DateOnly)
}

// GetDaily serves the daily reading for a date, defaulting to today.
// With force set, cached and stored copies are bypassed and a fresh
// reading is generated, which only today and future dates allow.
func (s *ReadingService) GetDaily(ctx context.Context, userID uuid.UUID, date string, force bool) (*Result, error) {
	if date == "" {
		date = s.today()
	}
	if _, err := utils.ParseDate(date); err != nil {
		return nil, utils.NewError(utils.CodeValidation, "Invalid date, expected YYYY-MM-DD")
	}
	return s.getForDate(ctx, userID, date, models.ReadingDaily, force)
}

// GetPeriodic serves the weekly or monthly reading for the current
// period.
func (s *ReadingService) GetPeriodic(ctx context.Context, userID uuid.UUID, rtype models.ReadingType, force bool) (*Result, error) {
	var date string
	switch rtype {
	case models.ReadingWeekly:
		date = weekStart(s.now())
	case models.ReadingMonthly:
		date = monthStart(s.now())
	default:
		return nil, utils.NewError(utils.CodeValidation, "Reading type must be weekly or monthly")
	}
	return s.getForDate(ctx, userID, date, rtype, force)
}

// periodFloor is the earliest date string still inside the current
// period for a cadence. Anything before it reads as past.
func (s *ReadingService) periodFloor(rtype models.ReadingType) string {
	switch rtype {
	case models.ReadingWeekly:
		return weekStart(s.now())
	case models.ReadingMonthly:
		return monthStart(s.now())
	default:
		return s.today()
	}
}

func (s *ReadingService) getForDate(ctx context.Context, userID uuid.UUID, date string, rtype models.ReadingType, force bool) (*Result, error) {
	// Dates are YYYY-MM-DD strings, so lexicographic order is date order.
	isPast := date < s.periodFloor(rtype)
	if force && isPast {
		return nil, utils.NewError(utils.CodeValidation, "Past readings cannot be regenerated")
	}

	cacheable := rtype == models.ReadingDaily

	if !force {
		if cacheable {
			if r := s.cache.Get(ctx, userID, date); r != nil {
				return &Result{Reading: r, Source: SourceCache}, nil
			}
		}
		r, err := s.store.GetReading(ctx, userID, date, rtype)
		if err != nil {
			return nil, err
		}
		if r != nil {
			if cacheable {
				s.cache.Set(ctx, r)
			}
			return &Result{Reading: r, Source: SourceDatabase}, nil
		}
	}

	// Past readings are never backfilled.
	if isPast {
		return nil, utils.NewError(utils.CodeNotFound, "No reading exists for that date")
	}

	if _, err := s.quota.Check(ctx, userID); err != nil {
		return nil, err
	}

	if s.cache.AcquireGenerationLock(ctx, userID, date) {
		defer s.cache.ReleaseGenerationLock(ctx, userID, date)
	} else if !force {
		// Another request holds the lock. Serve its row if it already
		// landed; otherwise generate anyway, since duplicate rows are
		// tolerated and reads take the newest.
		if r, err := s.store.GetReading(ctx, userID, date, rtype); err == nil && r != nil {
			if cacheable {
				s.cache.Set(ctx, r)
			}
			return &Result{Reading: r, Source: SourceDatabase}, nil
		}
	}

	reading, err := s.generate(ctx, userID, date, rtype, true)
	if err != nil {
		return nil, err
	}
	return &Result{Reading: reading, Source: SourceGenerated}, nil
}

// generate runs the full generation path: birth details, transits,
// model call, persist, cache. consumeQuota is off for the batch job,
// whose readings are a product feature rather than user requests.
func (s *ReadingService) generate(ctx context.Context, userID uuid.UUID, date string, rtype models.ReadingType, consumeQuota bool) (*models.Reading, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, utils.NewError(utils.CodeNotFound, "User not found")
	}
	if !user.Birth.Complete() {
		return nil, utils.NewError(utils.CodeValidation, "Complete your birth details before requesting readings")
	}

	transits := ""
	if s.astro != nil {
		td, err := s.astro.CurrentTransits(ctx, birthInput(user.Birth), date)
		if err != nil {
			s.log.Warn(ctx).WithFields("error", err, "user_id", userID).Logs("transit lookup failed, generating without transits")
		} else {
			transits = td.Summary
		}
	}

	gen, err := s.llm.GenerateReading(ctx, llm.ReadingRequest{
		UserName:   user.Name,
		BirthDate:  user.Birth.BirthDate,
		BirthTime:  user.Birth.BirthTime,
		BirthPlace: user.Birth.BirthPlace,
		Timezone:   user.Birth.Timezone,
		Date:       date,
		Type:       rtype,
		Transits:   transits,
	})
	if err != nil {
		metrics.GenerationsTotal.WithLabelValues(string(rtype), "error").Inc()
		return nil, err
	}

	reading := models.NewReading(userID, date, rtype,
		models.WithSections(gen.Sections),
		models.WithHighlights(gen.Highlights),
		models.WithWindows(gen.Windows),
	)
	if err := s.store.SaveReading(ctx, reading); err != nil {
		metrics.GenerationsTotal.WithLabelValues(string(rtype), "error").Inc()
		return nil, err
	}

	if rtype == models.ReadingDaily {
		// The cached list page is stale the moment the new row lands.
		s.cache.InvalidateLists(ctx, userID)
		s.cache.Set(ctx, reading)
	}

	if consumeQuota {
		if err := s.quota.Consume(ctx, userID); err != nil {
			s.log.Warn(ctx).WithFields("error", err, "user_id", userID).Logs("quota consume failed after generation")
		}
	}

	metrics.GenerationsTotal.WithLabelValues(string(rtype), "ok").Inc()
	s.log.Info(ctx).WithFields("user_id", userID, "date", date, "type", string(rtype)).Logs("reading generated")
	return reading, nil
}

// EnsureDaily generates today's reading for a user if it is missing.
// Used by the pre-generation job; never consumes user quota. Returns
// whether a reading was generated.
func (s *ReadingService) EnsureDaily(ctx context.Context, userID uuid.UUID) (bool, error) {
	date := s.today()
	exists, err := s.store.Exists(ctx, userID, date, models.ReadingDaily)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if !s.cache.AcquireGenerationLock(ctx, userID, date) {
		// An interactive request is generating it right now.
		return false, nil
	}
	defer s.cache.ReleaseGenerationLock(ctx, userID, date)

	if _, err := s.generate(ctx, userID, date, models.ReadingDaily, false); err != nil {
		return false, err
	}
	return true, nil
}

// Latest returns the user's most recent reading, favoring the cached
// pointer.
func (s *ReadingService) Latest(ctx context.Context, userID uuid.UUID) (*models.Reading, error) {
	if r := s.cache.GetLatest(ctx, userID); r != nil {
		return r, nil
	}
	page, err := s.store.GetReadings(ctx, userID, models.ReadingFilters{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(page.Readings) == 0 {
		return nil, utils.NewError(utils.CodeNotFound, "No readings yet")
	}
	r := &page.Readings[0]
	if r.ReadingType == models.ReadingDaily {
		s.cache.Set(ctx, r)
	}
	return r, nil
}

// List returns a page of the user's readings. The unfiltered first
// page at the default size is served through the list cache.
func (s *ReadingService) List(ctx context.Context, userID uuid.UUID, f models.ReadingFilters) (*models.ReadingPage, error) {
	plain := f.IsPlain() && (f.Limit == 0 || f.Limit == datastore.DefaultListLimit)
	if plain {
		if page := s.cache.GetList(ctx, userID); page != nil {
			return page, nil
		}
	}
	page, err := s.store.GetReadings(ctx, userID, f)
	if err != nil {
		return nil, err
	}
	if plain {
		s.cache.SetList(ctx, userID, page)
	}
	return page, nil
}

// GetByID returns one owned reading.
func (s *ReadingService) GetByID(ctx context.Context, userID, id uuid.UUID) (*models.Reading, error) {
	r, err := s.store.GetReadingByID(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, utils.NewError(utils.CodeNotFound, "Reading not found")
	}
	return r, nil
}

// MarkRead flags a reading as read.
func (s *ReadingService) MarkRead(ctx context.Context, userID, id uuid.UUID) (*models.Reading, error) {
	r, err := s.store.MarkAsRead(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, utils.NewError(utils.CodeNotFound, "Reading not found")
	}
	s.cache.Delete(ctx, userID, r.ReadingDate)
	return r, nil
}

// ToggleSaved flips a reading's saved flag.
func (s *ReadingService) ToggleSaved(ctx context.Context, userID, id uuid.UUID) (*models.Reading, error) {
	r, err := s.store.ToggleSaved(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, utils.NewError(utils.CodeNotFound, "Reading not found")
	}
	s.cache.Delete(ctx, userID, r.ReadingDate)
	return r, nil
}

// AddFeedback records the user's verdict on a reading.
func (s *ReadingService) AddFeedback(ctx context.Context, userID, id uuid.UUID, feedback models.Feedback) (*models.Reading, error) {
	r, err := s.store.AddFeedback(ctx, id, userID, feedback)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, utils.NewError(utils.CodeNotFound, "Reading not found")
	}
	s.cache.Delete(ctx, userID, r.ReadingDate)
	return r, nil
}

// Delete removes a reading and every cache key that may embed it.
func (s *ReadingService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	r, err := s.store.GetReadingByID(ctx, id, userID)
	if err != nil {
		return err
	}
	if r == nil {
		return utils.NewError(utils.CodeNotFound, "Reading not found")
	}
	if _, err := s.store.DeleteReading(ctx, id, userID); err != nil {
		return err
	}
	s.cache.Delete(ctx, userID, r.ReadingDate)
	return nil
}

// DeleteAll removes every reading and cached entry for the user.
// Returns how many stored rows were deleted.
func (s *ReadingService) DeleteAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	n, err := s.store.DeleteAllForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.cache.DeleteAllForUser(ctx, userID)
	return n, nil
}

// Stats aggregates the user's reading history.
func (s *ReadingService) Stats(ctx context.Context, userID uuid.UUID) (*models.ReadingStats, error) {
	return s.store.Stats(ctx, userID)
}

// CacheStats reports cache hit/miss counters for the admin surface.
func (s *ReadingService) CacheStats(ctx context.Context) cache.Stats {
	return s.cache.Stats(ctx)
}

// CreateDirect stores a hand-written reading for a user, bypassing
// generation and quota. Admin surface only.
func (s *ReadingService) CreateDirect(ctx context.Context, userID uuid.UUID, date string, rtype models.ReadingType, sections models.ReadingSections, highlights []string) (*models.Reading, error) {
	if _, err := utils.ParseDate(date); err != nil {
		return nil, utils.NewError(utils.CodeValidation, "Invalid date, expected YYYY-MM-DD")
	}
	if !rtype.Valid() {
		return nil, utils.NewError(utils.CodeValidation, "Unknown reading type")
	}
	if user, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	} else if user == nil {
		return nil, utils.NewError(utils.CodeNotFound, "User not found")
	}

	reading := models.NewReading(userID, date, rtype,
		models.WithSections(sections),
		models.WithHighlights(highlights),
	)
	if err := s.store.SaveReading(ctx, reading); err != nil {
		return nil, err
	}
	// The stored row replaces whatever the cache held for that date.
	s.cache.Delete(ctx, userID, date)
	return reading, nil
}

// Range returns all readings dated within [from, to] across users, for
// the admin analytics surface.
func (s *ReadingService) Range(ctx context.Context, from, to string) ([]models.Reading, error) {
	if _, err := utils.ParseDate(from); err != nil {
		return nil, utils.NewError(utils.CodeValidation, "Invalid from date, expected YYYY-MM-DD")
	}
	if _, err := utils.ParseDate(to); err != nil {
		return nil, utils.NewError(utils.CodeValidation, "Invalid to date, expected YYYY-MM-DD")
	}
	return s.store.GetReadingsInRange(ctx, from, to)
}

// CleanupBefore removes readings older than the cutoff across users.
func (s *ReadingService) CleanupBefore(ctx context.Context, before string) (int64, error) {
	if _, err := utils.ParseDate(before); err != nil {
		return 0, utils.NewError(utils.CodeValidation, "Invalid cutoff date, expected YYYY-MM-DD")
	}
	return s.store.DeleteBefore(ctx, before)
}
