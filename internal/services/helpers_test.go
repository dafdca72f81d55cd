package services

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/astropulse/astropulse/internal/astro"
	"github.com/astropulse/astropulse/internal/cache"
	"github.com/astropulse/astropulse/internal/datastore"
	"github.com/astropulse/astropulse/internal/llm"
	"github.com/astropulse/astropulse/internal/models"
	"github.com/astropulse/astropulse/pkg/logger"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var errBackendDown = errors.New("backend down")

// fakeKV is an in-memory KV for the reading cache. Expiry is ignored;
// these tests exercise orchestration, not TTL handling.
type fakeKV struct {
	mu      sync.Mutex
	data    map[string]string
	failing bool
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: map[string]string{}}
}

func (f *fakeKV) Fetch(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return "", false, errBackendDown
	}
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *fakeKV) Store(ctx context.Context, key, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errBackendDown
	}
	f.data[key] = value
	return nil
}

func (f *fakeKV) Remove(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errBackendDown
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
		return nil, errBackendDown
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
		return 0, errBackendDown
	}
	n, _ := strconv.ParseInt(f.data[key], 10, 64)
	n++
	f.data[key] = strconv.FormatInt(n, 10)
	return n, nil
}

func (f *fakeKV) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return false, errBackendDown
	}
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key] = value
	return true, nil
}

func (f *fakeKV) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.data[key]
	return ok
}

// fakeLLM is a canned model.
type fakeLLM struct {
	mu            sync.Mutex
	generateCalls int
	lastRequest   llm.ReadingRequest
	reading       *llm.GeneratedReading
	generateErr   error

	completeReply string
	completeErr   error

	streamChunks []string
	streamErr    error
}

func sampleGenerated() *llm.GeneratedReading {
	return &llm.GeneratedReading{
		Sections: models.ReadingSections{
			Work:    "Mercury favors careful contracts.",
			Love:    "Venus asks for patience.",
			Health:  "Guard your evenings.",
			Finance: "Hold off on big purchases.",
		},
		Highlights: []string{"Sign nothing before noon"},
		Windows:    []models.AuspiciousWindow{{Start: "10:00", End: "12:00", Label: "negotiations"}},
	}
}

func (f *fakeLLM) GenerateReading(ctx context.Context, req llm.ReadingRequest) (*llm.GeneratedReading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generateCalls++
	f.lastRequest = req
	if f.generateErr != nil {
		return nil, f.generateErr
	}
	return f.reading, nil
}

func (f *fakeLLM) Complete(ctx context.Context, system, prompt string) (string, error) {
	return f.completeReply, f.completeErr
}

func (f *fakeLLM) StreamChat(ctx context.Context, system string, history []llm.ChatMessage, onDelta func(string) error) (string, error) {
	var full strings.Builder
	for _, chunk := range f.streamChunks {
		full.WriteString(chunk)
		if onDelta != nil {
			if err := onDelta(chunk); err != nil {
				return full.String(), err
			}
		}
	}
	return full.String(), f.streamErr
}

func (f *fakeLLM) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.generateCalls
}

func (f *fakeLLM) last() llm.ReadingRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastRequest
}

// fakeTransits is a canned transit source.
type fakeTransits struct {
	mu      sync.Mutex
	summary string
	err     error
	calls   int
}

func (f *fakeTransits) CurrentTransits(ctx context.Context, birth astro.BirthInput, date string) (*astro.TransitData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &astro.TransitData{Summary: f.summary}, nil
}

// fakeChartSource returns canned chart data.
type fakeChartSource struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeChartSource) CalculateChart(ctx context.Context, birth astro.BirthInput) (*astro.ChartData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &astro.ChartData{
		Planets: []byte(`{"sun":"leo"}`),
		Houses:  []byte(`[1,2,3]`),
		Dashas:  []byte(`{"maha":"venus"}`),
	}, nil
}

// fakeKutaSource returns a canned match.
type fakeKutaSource struct {
	err error
}

func (f *fakeKutaSource) MatchKuta(ctx context.Context, a, b astro.BirthInput) (*astro.KutaResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &astro.KutaResult{
		Kutas:      []byte(`{"varna":1}`),
		TotalScore: 24,
		MaxScore:   36,
		Summary:    "a steady match",
	}, nil
}

const (
	testToday     = "2026-08-26"
	testYesterday = "2026-08-25"
	testWeekStart = "2026-08-24"
)

func fixedNow() time.Time {
	return time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC)
}

func testLogger() *logger.Logger {
	return logger.NewLogger(logger.WithLevel("error"))
}

// harness wires real repositories over sqlite with fakes at the redis,
// LLM, and astro boundaries.
type harness struct {
	db       *gorm.DB
	kv       *fakeKV
	cache    *cache.ReadingCache
	store    *datastore.ReadingRepository
	users    *datastore.UserRepository
	ents     *datastore.EntitlementRepository
	quota    *QuotaService
	llm      *fakeLLM
	transits *fakeTransits
	readings *ReadingService
	user     *models.User
}

const testFreeLimit = 3

func newHarness(t *testing.T) *harness {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.RegisterModels()...))

	log := testLogger()
	kv := newFakeKV()
	rc := cache.NewReadingCache(kv, log, cache.WithNow(fixedNow))
	store := datastore.NewReadingRepository(db, log)
	users := datastore.NewUserRepository(db, log)
	ents := datastore.NewEntitlementRepository(db, log)
	quota := NewQuotaService(ents, testFreeLimit, 100, 720*time.Hour, log)
	fllm := &fakeLLM{reading: sampleGenerated(), completeReply: "a glowing match", streamChunks: []string{"The stars ", "say yes."}}
	ftr := &fakeTransits{summary: "Saturn trine natal sun"}

	user := &models.User{
		Email:    "asha@example.com",
		Password: "x",
		Name:     "Asha",
		Birth: models.BirthDetails{
			BirthDate:  "1990-04-12",
			BirthTime:  "06:45",
			BirthPlace: "Chennai, IN",
			Latitude:   13.0827,
			Longitude:  80.2707,
			Timezone:   "Asia/Kolkata",
		},
	}
	require.NoError(t, db.Create(user).Error)

	return &harness{
		db:       db,
		kv:       kv,
		cache:    rc,
		store:    store,
		users:    users,
		ents:     ents,
		quota:    quota,
		llm:      fllm,
		transits: ftr,
		readings: NewReadingService(store, users, rc, quota, fllm, ftr, log, WithReadingClock(fixedNow)),
		user:     user,
	}
}

func (h *harness) entitlement(t *testing.T) *models.Entitlement {
	t.Helper()
	var ent models.Entitlement
	require.NoError(t, h.db.First(&ent, "user_id = ?", h.user.ID).Error)
	return &ent
}
