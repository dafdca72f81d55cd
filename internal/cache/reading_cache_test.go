package cache

import (
	"context"
	"errors"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/astropulse/astropulse/internal/models"
	"github.com/astropulse/astropulse/pkg/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeKV is an in-memory KV with a controllable clock and failure switch.
type fakeKV struct {
	mu      sync.Mutex
	data    map[string]fakeEntry
	clock   func() time.Time
	failing bool
}

type fakeEntry struct {
	value     string
	expiresAt time.Time
}

func newFakeKV() *fakeKV {
	now := time.Now()
	return &fakeKV{
		data:  map[string]fakeEntry{},
		clock: func() time.Time { return now },
	}
}

var errKVDown = errors.New("kv down")

func (f *fakeKV) Fetch(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return "", false, errKVDown
	}
	e, ok := f.data[key]
	if !ok || (!e.expiresAt.IsZero() && f.clock().After(e.expiresAt)) {
		delete(f.data, key)
		return "", false, nil
	}
	return e.value, true, nil
}

func (f *fakeKV) Store(ctx context.Context, key, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errKVDown
	}
	var exp time.Time
	if ttl > 0 {
		exp = f.clock().Add(ttl)
	}
	f.data[key] = fakeEntry{value: value, expiresAt: exp}
	return nil
}

func (f *fakeKV) Remove(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errKVDown
	}
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func (f *fakeKV) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return nil, errKVDown
	}
	var keys []string
	for k := range f.data {
		if ok, _ := path.Match(pattern, k); ok {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (f *fakeKV) Increment(ctx context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return 0, errKVDown
	}
	n := int64(0)
	if e, ok := f.data[key]; ok {
		for _, c := range e.value {
			n = n*10 + int64(c-'0')
		}
	}
	n++
	f.data[key] = fakeEntry{value: itoa(n)}
	return n, nil
}

func (f *fakeKV) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return false, errKVDown
	}
	if e, ok := f.data[key]; ok && (e.expiresAt.IsZero() || f.clock().Before(e.expiresAt)) {
		return false, nil
	}
	var exp time.Time
	if ttl > 0 {
		exp = f.clock().Add(ttl)
	}
	f.data[key] = fakeEntry{value: value, expiresAt: exp}
	return true, nil
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

func testLogger() *logger.Logger {
	return logger.NewLogger(logger.WithLevel("error"))
}

func sampleReading(userID uuid.UUID, date string) *models.Reading {
	return &models.Reading{
		ID:          uuid.New(),
		UserID:      userID,
		ReadingDate: date,
		ReadingType: models.ReadingDaily,
		Sections: models.ReadingSections{
			Work:    "Focus pays off today.",
			Love:    "Venus favors honesty.",
			Health:  "Rest before midnight.",
			Finance: "Hold off on big purchases.",
		},
		Highlights: []string{"Mercury goes direct"},
	}
}

func TestReadingCacheGetAfterSet(t *testing.T) {
	kv := newFakeKV()
	c := NewReadingCache(kv, testLogger())
	userID := uuid.New()
	r := sampleReading(userID, "2026-08-26")

	c.Set(context.Background(), r)

	got := c.Get(context.Background(), userID, "2026-08-26")
	require.NotNil(t, got)
	assert.Equal(t, r.ID, got.ID)
	assert.Equal(t, r.Sections, got.Sections)
	assert.Equal(t, []string{"Mercury goes direct"}, []string(got.Highlights))

	stats := c.Stats(context.Background())
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(0), stats.Misses)
}

func TestReadingCacheMissCountsAndStats(t *testing.T) {
	kv := newFakeKV()
	c := NewReadingCache(kv, testLogger())
	userID := uuid.New()

	assert.Nil(t, c.Get(context.Background(), userID, "2026-08-26"))
	assert.Nil(t, c.Get(context.Background(), userID, "2026-08-27"))

	c.Set(context.Background(), sampleReading(userID, "2026-08-26"))
	require.NotNil(t, c.Get(context.Background(), userID, "2026-08-26"))

	stats := c.Stats(context.Background())
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(2), stats.Misses)
	assert.InDelta(t, 1.0/3.0, stats.HitRate, 1e-9)
}

func TestReadingCacheSkipStats(t *testing.T) {
	kv := newFakeKV()
	c := NewReadingCache(kv, testLogger())
	userID := uuid.New()

	assert.Nil(t, c.Get(context.Background(), userID, "2026-08-26", SkipStats()))

	stats := c.Stats(context.Background())
	assert.Zero(t, stats.Hits)
	assert.Zero(t, stats.Misses)
}

func TestReadingCacheEntryExpires(t *testing.T) {
	kv := newFakeKV()
	base := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)
	kv.clock = func() time.Time { return base }
	c := NewReadingCache(kv, testLogger(), WithNow(func() time.Time { return base }))
	userID := uuid.New()

	c.Set(context.Background(), sampleReading(userID, "2026-08-26"), time.Minute)
	require.NotNil(t, c.Get(context.Background(), userID, "2026-08-26"))

	kv.clock = func() time.Time { return base.Add(2 * time.Minute) }
	assert.Nil(t, c.Get(context.Background(), userID, "2026-08-26"))
}

func TestReadingCacheLatestPointer(t *testing.T) {
	kv := newFakeKV()
	today := time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC)
	c := NewReadingCache(kv, testLogger(), WithNow(func() time.Time { return today }))
	userID := uuid.New()

	// Yesterday's reading must not become "latest".
	c.Set(context.Background(), sampleReading(userID, "2026-08-25"))
	assert.Nil(t, c.GetLatest(context.Background(), userID))

	todays := sampleReading(userID, "2026-08-26")
	c.Set(context.Background(), todays)
	got := c.GetLatest(context.Background(), userID)
	require.NotNil(t, got)
	assert.Equal(t, todays.ID, got.ID)
}

func TestReadingCacheDeleteOverInvalidates(t *testing.T) {
	kv := newFakeKV()
	today := time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC)
	c := NewReadingCache(kv, testLogger(), WithNow(func() time.Time { return today }))
	userID := uuid.New()

	r := sampleReading(userID, "2026-08-26")
	c.Set(context.Background(), r)
	c.SetList(context.Background(), userID, &models.ReadingPage{Readings: []models.Reading{*r}, Total: 1})

	require.NotNil(t, c.Get(context.Background(), userID, "2026-08-26"))
	require.NotNil(t, c.GetList(context.Background(), userID))
	require.NotNil(t, c.GetLatest(context.Background(), userID))

	c.Delete(context.Background(), userID, "2026-08-26")

	assert.Nil(t, c.Get(context.Background(), userID, "2026-08-26", SkipStats()))
	assert.Nil(t, c.GetList(context.Background(), userID))
	assert.Nil(t, c.GetLatest(context.Background(), userID))
}

func TestReadingCacheDeleteAllForUser(t *testing.T) {
	kv := newFakeKV()
	c := NewReadingCache(kv, testLogger())
	alice, bob := uuid.New(), uuid.New()

	c.Set(context.Background(), sampleReading(alice, "2026-08-24"))
	c.Set(context.Background(), sampleReading(alice, "2026-08-25"))
	c.Set(context.Background(), sampleReading(alice, "2026-08-26"))
	c.Set(context.Background(), sampleReading(bob, "2026-08-26"))

	removed := c.DeleteAllForUser(context.Background(), alice)
	assert.Equal(t, 3, removed)

	assert.Nil(t, c.Get(context.Background(), alice, "2026-08-25", SkipStats()))
	assert.NotNil(t, c.Get(context.Background(), bob, "2026-08-26", SkipStats()))
}

func TestReadingCachePurgeAll(t *testing.T) {
	kv := newFakeKV()
	c := NewReadingCache(kv, testLogger())
	alice, bob := uuid.New(), uuid.New()

	c.Set(context.Background(), sampleReading(alice, "2026-08-25"))
	c.Set(context.Background(), sampleReading(bob, "2026-08-26"))
	c.SetList(context.Background(), alice, &models.ReadingPage{Total: 1})

	// Prime the counters; the purge must leave them alone.
	require.NotNil(t, c.Get(context.Background(), alice, "2026-08-25"))

	removed := c.PurgeAll(context.Background())
	assert.GreaterOrEqual(t, removed, 3)

	assert.Nil(t, c.Get(context.Background(), alice, "2026-08-25", SkipStats()))
	assert.Nil(t, c.Get(context.Background(), bob, "2026-08-26", SkipStats()))
	assert.Nil(t, c.GetList(context.Background(), alice))
	assert.Equal(t, int64(1), c.Stats(context.Background()).Hits)
}

func TestReadingCacheListRoundtrip(t *testing.T) {
	kv := newFakeKV()
	c := NewReadingCache(kv, testLogger())
	userID := uuid.New()

	page := &models.ReadingPage{
		Readings: []models.Reading{*sampleReading(userID, "2026-08-26")},
		Total:    12,
		HasMore:  true,
	}
	c.SetList(context.Background(), userID, page)

	got := c.GetList(context.Background(), userID)
	require.NotNil(t, got)
	assert.Equal(t, int64(12), got.Total)
	assert.True(t, got.HasMore)
	assert.Len(t, got.Readings, 1)
}

func TestReadingCacheCorruptEntryDropped(t *testing.T) {
	kv := newFakeKV()
	c := NewReadingCache(kv, testLogger())
	userID := uuid.New()

	key := "reading:" + userID.String() + ":2026-08-26"
	require.NoError(t, kv.Store(context.Background(), key, "{not json", 0))

	assert.Nil(t, c.Get(context.Background(), userID, "2026-08-26"))
	_, found, err := kv.Fetch(context.Background(), key)
	require.NoError(t, err)
	assert.False(t, found, "corrupt entry should have been removed")
}

func TestReadingCacheSwallowsBackendErrors(t *testing.T) {
	kv := newFakeKV()
	kv.failing = true
	c := NewReadingCache(kv, testLogger())
	userID := uuid.New()

	assert.NotPanics(t, func() {
		c.Set(context.Background(), sampleReading(userID, "2026-08-26"))
		assert.Nil(t, c.Get(context.Background(), userID, "2026-08-26"))
		assert.Nil(t, c.GetLatest(context.Background(), userID))
		c.Delete(context.Background(), userID, "2026-08-26")
		assert.Equal(t, 0, c.DeleteAllForUser(context.Background(), userID))
		stats := c.Stats(context.Background())
		assert.Zero(t, stats.Hits)
	})

	// A broken lock backend must not block generation.
	assert.True(t, c.AcquireGenerationLock(context.Background(), userID, "2026-08-26"))
}

func TestGenerationLock(t *testing.T) {
	kv := newFakeKV()
	c := NewReadingCache(kv, testLogger())
	userID := uuid.New()

	assert.True(t, c.AcquireGenerationLock(context.Background(), userID, "2026-08-26"))
	assert.False(t, c.AcquireGenerationLock(context.Background(), userID, "2026-08-26"))

	c.ReleaseGenerationLock(context.Background(), userID, "2026-08-26")
	assert.True(t, c.AcquireGenerationLock(context.Background(), userID, "2026-08-26"))
}
