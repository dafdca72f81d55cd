// Package jobs holds the batch work behind the cron endpoints: nightly
// quota resets, pre-generated daily readings and transit alerts. Jobs
// are batch-and-delay with no resume state; a crash loses the rest of
// the batch and the next run picks up whatever is still missing.
package jobs

import (
	"time"

	"github.com/astropulse/astropulse/internal/datastore"
	"github.com/astropulse/astropulse/internal/services"
	"github.com/astropulse/astropulse/pkg/logger"
	"golang.org/x/time/rate"
)

const defaultBatchSize = 50

// Result summarizes one job run for the cron caller.
type Result struct {
	Processed  int   `json:"processed"`
	Failed     int   `json:"failed"`
	DurationMs int64 `json:"durationMs"`
}

// Runner wires the repositories and services the jobs drive. One Runner
// serves both the cron endpoints and the in-process scheduler.
type Runner struct {
	users    *datastore.UserRepository
	ents     *datastore.EntitlementRepository
	alerts   *datastore.AlertRepository
	charts   *datastore.ChartRepository
	readings *services.ReadingService
	transits services.TransitSource
	log      *logger.Logger

	batchSize   int
	limiter     *rate.Limiter
	quotaPeriod time.Duration
	now         func() time.Time
}

// RunnerOption customizes a Runner.
type RunnerOption func(*Runner)

// WithBatchSize sets how many users each page of a batch job loads.
func WithBatchSize(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithRate paces per-user work at n operations per second.
func WithRate(n float64) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.limiter = rate.NewLimiter(rate.Limit(n), 1)
		}
	}
}

// WithQuotaPeriod sets how far the quota reset job advances period_reset_at.
func WithQuotaPeriod(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.quotaPeriod = d
		}
	}
}

// WithClock pins the runner's clock. Tests use it.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.now = now }
}

func NewRunner(
	users *datastore.UserRepository,
	ents *datastore.EntitlementRepository,
	alerts *datastore.AlertRepository,
	charts *datastore.ChartRepository,
	readings *services.ReadingService,
	transits services.TransitSource,
	log *logger.Logger,
	opts ...RunnerOption,
) *Runner {
	r := &Runner{
		users:       users,
		ents:        ents,
		alerts:      alerts,
		charts:      charts,
		readings:    readings,
		transits:    transits,
		log:         log,
		batchSize:   defaultBatchSize,
		limiter:     rate.NewLimiter(rate.Limit(2), 1),
		quotaPeriod: 30 * 24 * time.Hour,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner) result(start time.Time, processed, failed int) Result {
	return Result{
		Processed:  processed,
		Failed:     failed,
		DurationMs: time.Since(start).Milliseconds(),
	}
}
