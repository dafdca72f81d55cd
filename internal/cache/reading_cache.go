// Package cache implements the cache-aside layer for readings. The
// cache is an optimization only: every failure here is swallowed and
// logged, never surfaced to callers.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/astropulse/astropulse/internal/models"
	"github.com/astropulse/astropulse/pkg/logger"
	"github.com/astropulse/astropulse/pkg/metrics"
	"github.com/google/uuid"
)

const (
	// DefaultTTL bounds how stale a cached reading may get.
	DefaultTTL = 24 * time.Hour
	// LatestTTL is the shorter bound for the "latest reading" pointer.
	LatestTTL = time.Hour
	// ListTTL is the bound for the cached first page of the listing.
	ListTTL = 5 * time.Minute
	// lockTTL caps how long a generation lock can linger.
	lockTTL = 30 * time.Second

	hitsKey   = "stats:reading_cache:hits"
	missesKey = "stats:reading_cache:misses"
)

// KV is the key-value capability the cache needs from its backing store.
type KV interface {
	Fetch(ctx context.Context, key string) (string, bool, error)
	Store(ctx context.Context, key, value string, ttl time.Duration) error
	Remove(ctx context.Context, keys ...string) error
	ScanKeys(ctx context.Context, pattern string) ([]string, error)
	Increment(ctx context.Context, key string) (int64, error)
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
}

// ReadingCache fronts the reading store with TTL-bounded entries.
type ReadingCache struct {
	kv  KV
	log *logger.Logger
	now func() time.Time
}

// Option configures a ReadingCache.
type Option func(*ReadingCache)

// WithNow overrides the clock, used to pin "today" in tests.
func WithNow(now func() time.Time) Option {
	return func(c *ReadingCache) { c.now = now }
}

func NewReadingCache(kv KV, log *logger.Logger, opts ...Option) *ReadingCache {
	c := &ReadingCache{
		kv:  kv,
		log: log,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func readingKey(userID uuid.UUID, date string) string {
	return fmt.Sprintf("reading:%s:%s", userID, date)
}

func listKey(userID uuid.UUID) string {
	return fmt.Sprintf("readings:list:%s", userID)
}

func latestKey(userID uuid.UUID) string {
	return fmt.Sprintf("reading:latest:%s", userID)
}

func lockKey(userID uuid.UUID, date string) string {
	return fmt.Sprintf("lock:gen:%s:%s", userID, date)
}

// GetOption tweaks a single lookup.
type GetOption func(*getConfig)

type getConfig struct {
	skipStats bool
}

// SkipStats leaves the hit/miss counters alone, for internal lookups
// that should not skew the reported hit rate.
func SkipStats() GetOption {
	return func(g *getConfig) { g.skipStats = true }
}

// Get returns the cached reading for (user, date), or nil on a miss.
func (c *ReadingCache) Get(ctx context.Context, userID uuid.UUID, date string, opts ...GetOption) *models.Reading {
	var cfg getConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	raw, found, err := c.kv.Fetch(ctx, readingKey(userID, date))
	if err != nil {
		c.log.Warn(ctx).WithFields("error", err, "user_id", userID).Logs("reading cache fetch failed")
		return nil
	}
	if !found {
		c.count(ctx, cfg, missesKey, "miss")
		return nil
	}

	var r models.Reading
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		c.log.Warn(ctx).WithFields("error", err, "user_id", userID).Logs("reading cache entry corrupt, dropping")
		c.kv.Remove(ctx, readingKey(userID, date))
		c.count(ctx, cfg, missesKey, "miss")
		return nil
	}

	c.count(ctx, cfg, hitsKey, "hit")
	return &r
}

// Set stores a reading under its (user, date) key. When the reading is
// for today it also refreshes the latest pointer with a shorter TTL.
func (c *ReadingCache) Set(ctx context.Context, r *models.Reading, ttl ...time.Duration) {
	if r == nil {
		return
	}
	expiry := DefaultTTL
	if len(ttl) > 0 && ttl[0] > 0 {
		expiry = ttl[0]
	}

	raw, err := json.Marshal(r)
	if err != nil {
		c.log.Warn(ctx).WithFields("error", err, "user_id", r.UserID).Logs("reading cache marshal failed")
		return
	}
	if err := c.kv.Store(ctx, readingKey(r.UserID, r.ReadingDate), string(raw), expiry); err != nil {
		c.log.Warn(ctx).WithFields("error", err, "user_id", r.UserID).Logs("reading cache store failed")
		return
	}

	if r.ReadingDate == c.now().UTC().Format(time.DateOnly) {
		if err := c.kv.Store(ctx, latestKey(r.UserID), string(raw), LatestTTL); err != nil {
			c.log.Warn(ctx).WithFields("error", err, "user_id", r.UserID).Logs("latest pointer store failed")
		}
	}
}

// GetLatest returns the cached most-recent reading for the user, or nil.
func (c *ReadingCache) GetLatest(ctx context.Context, userID uuid.UUID) *models.Reading {
	raw, found, err := c.kv.Fetch(ctx, latestKey(userID))
	if err != nil {
		c.log.Warn(ctx).WithFields("error", err, "user_id", userID).Logs("latest pointer fetch failed")
		return nil
	}
	if !found {
		return nil
	}
	var r models.Reading
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		c.log.Warn(ctx).WithFields("error", err, "user_id", userID).Logs("latest pointer corrupt, dropping")
		c.kv.Remove(ctx, latestKey(userID))
		return nil
	}
	return &r
}

// Delete removes the entry for (user, date) and over-invalidates the
// list and latest keys, since either may embed the deleted reading.
func (c *ReadingCache) Delete(ctx context.Context, userID uuid.UUID, date string) {
	if err := c.kv.Remove(ctx, readingKey(userID, date)); err != nil {
		c.log.Warn(ctx).WithFields("error", err, "user_id", userID).Logs("reading cache delete failed")
	}
	c.InvalidateLists(ctx, userID)
}

// InvalidateLists drops the list page and latest pointer for the user.
func (c *ReadingCache) InvalidateLists(ctx context.Context, userID uuid.UUID) {
	if err := c.kv.Remove(ctx, listKey(userID), latestKey(userID)); err != nil {
		c.log.Warn(ctx).WithFields("error", err, "user_id", userID).Logs("list invalidation failed")
	}
}

// DeleteAllForUser drops every cached reading for the user and returns
// how many entry keys were removed.
func (c *ReadingCache) DeleteAllForUser(ctx context.Context, userID uuid.UUID) int {
	keys, err := c.kv.ScanKeys(ctx, fmt.Sprintf("reading:%s:*", userID))
	if err != nil {
		c.log.Warn(ctx).WithFields("error", err, "user_id", userID).Logs("reading cache scan failed")
		keys = nil
	}
	if len(keys) > 0 {
		if err := c.kv.Remove(ctx, keys...); err != nil {
			c.log.Warn(ctx).WithFields("error", err, "user_id", userID).Logs("reading cache bulk delete failed")
		}
	}
	c.InvalidateLists(ctx, userID)
	return len(keys)
}

// PurgeAll drops every reading entry, list page and latest pointer
// across all users. Stats counters survive. Admin cleanup uses it after
// bulk row deletion so no cache key outlives its row.
func (c *ReadingCache) PurgeAll(ctx context.Context) int {
	removed := 0
	for _, pattern := range []string{"reading:*", "readings:list:*"} {
		keys, err := c.kv.ScanKeys(ctx, pattern)
		if err != nil {
			c.log.Warn(ctx).WithFields("error", err, "pattern", pattern).Logs("cache purge scan failed")
			continue
		}
		if len(keys) == 0 {
			continue
		}
		if err := c.kv.Remove(ctx, keys...); err != nil {
			c.log.Warn(ctx).WithFields("error", err, "pattern", pattern).Logs("cache purge delete failed")
			continue
		}
		removed += len(keys)
	}
	return removed
}

// GetList returns the cached unfiltered first page for the user, or nil.
func (c *ReadingCache) GetList(ctx context.Context, userID uuid.UUID) *models.ReadingPage {
	raw, found, err := c.kv.Fetch(ctx, listKey(userID))
	if err != nil {
		c.log.Warn(ctx).WithFields("error", err, "user_id", userID).Logs("list cache fetch failed")
		return nil
	}
	if !found {
		return nil
	}
	var page models.ReadingPage
	if err := json.Unmarshal([]byte(raw), &page); err != nil {
		c.log.Warn(ctx).WithFields("error", err, "user_id", userID).Logs("list cache entry corrupt, dropping")
		c.kv.Remove(ctx, listKey(userID))
		return nil
	}
	return &page
}

// SetList caches the unfiltered first page for the user.
func (c *ReadingCache) SetList(ctx context.Context, userID uuid.UUID, page *models.ReadingPage) {
	if page == nil {
		return
	}
	raw, err := json.Marshal(page)
	if err != nil {
		c.log.Warn(ctx).WithFields("error", err, "user_id", userID).Logs("list cache marshal failed")
		return
	}
	if err := c.kv.Store(ctx, listKey(userID), string(raw), ListTTL); err != nil {
		c.log.Warn(ctx).WithFields("error", err, "user_id", userID).Logs("list cache store failed")
	}
}

// AcquireGenerationLock tries to claim the short-lived generation lock
// for (user, date). Lock failures degrade to unguarded generation, so
// errors report the lock as held by us.
func (c *ReadingCache) AcquireGenerationLock(ctx context.Context, userID uuid.UUID, date string) bool {
	ok, err := c.kv.SetIfAbsent(ctx, lockKey(userID, date), "1", lockTTL)
	if err != nil {
		c.log.Warn(ctx).WithFields("error", err, "user_id", userID).Logs("generation lock unavailable, proceeding")
		return true
	}
	return ok
}

// ReleaseGenerationLock frees the generation lock early.
func (c *ReadingCache) ReleaseGenerationLock(ctx context.Context, userID uuid.UUID, date string) {
	if err := c.kv.Remove(ctx, lockKey(userID, date)); err != nil {
		c.log.Warn(ctx).WithFields("error", err, "user_id", userID).Logs("generation lock release failed")
	}
}

// Stats reports the lifetime hit/miss counters.
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// Stats reads the hit/miss counters. Failures produce zero stats.
func (c *ReadingCache) Stats(ctx context.Context) Stats {
	var s Stats
	s.Hits = c.counter(ctx, hitsKey)
	s.Misses = c.counter(ctx, missesKey)
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

func (c *ReadingCache) counter(ctx context.Context, key string) int64 {
	raw, found, err := c.kv.Fetch(ctx, key)
	if err != nil {
		c.log.Warn(ctx).WithFields("error", err, "key", key).Logs("cache counter fetch failed")
		return 0
	}
	if !found {
		return 0
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func (c *ReadingCache) count(ctx context.Context, cfg getConfig, key, outcome string) {
	if cfg.skipStats {
		return
	}
	metrics.CacheLookups.WithLabelValues(outcome).Inc()
	if _, err := c.kv.Increment(ctx, key); err != nil {
		c.log.Warn(ctx).WithFields("error", err, "key", key).Logs("cache counter increment failed")
	}
}
