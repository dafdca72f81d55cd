package jobs

import (
	"context"
	"time"

	"github.com/astropulse/astropulse/pkg/metrics"
)

// QuotaReset zeroes request counters for every entitlement whose period
// has lapsed and advances its reset time. A single UPDATE; the lazy
// per-user reset in the quota service covers users this run misses.
func (r *Runner) QuotaReset(ctx context.Context) (Result, error) {
	start := time.Now()

	n, err := r.ents.ResetDue(ctx, r.now(), r.quotaPeriod)
	if err != nil {
		metrics.JobRuns.WithLabelValues("quota_reset", "error").Inc()
		return r.result(start, 0, 1), err
	}

	metrics.JobRuns.WithLabelValues("quota_reset", "ok").Inc()
	r.log.Info(ctx).WithFields("reset", n).Logs("quota reset job finished")
	return r.result(start, int(n), 0), nil
}
