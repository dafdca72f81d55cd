package jobs

import (
	"context"
	"time"

	"github.com/astropulse/astropulse/pkg/metrics"
)

// DailyReadings walks every user with birth details and generates
// today's reading for those missing one, paced by the runner's rate
// limiter. Per-user failures are logged and counted; the batch never
// aborts. Job-generated readings do not consume user quota.
func (r *Runner) DailyReadings(ctx context.Context) (Result, error) {
	start := time.Now()
	processed, failed := 0, 0

	for offset := 0; ; offset += r.batchSize {
		users, err := r.users.ListWithBirthData(ctx, offset, r.batchSize)
		if err != nil {
			metrics.JobRuns.WithLabelValues("daily_readings", "error").Inc()
			return r.result(start, processed, failed+1), err
		}
		if len(users) == 0 {
			break
		}

		for i := range users {
			if err := r.limiter.Wait(ctx); err != nil {
				metrics.JobRuns.WithLabelValues("daily_readings", "error").Inc()
				return r.result(start, processed, failed), err
			}
			generated, err := r.readings.EnsureDaily(ctx, users[i].ID)
			if err != nil {
				failed++
				r.log.Warn(ctx).WithFields("error", err, "user_id", users[i].ID).Logs("daily reading generation failed")
				continue
			}
			if generated {
				processed++
			}
		}

		if len(users) < r.batchSize {
			break
		}
	}

	metrics.JobRuns.WithLabelValues("daily_readings", "ok").Inc()
	r.log.Info(ctx).WithFields("generated", processed, "failed", failed).Logs("daily readings job finished")
	return r.result(start, processed, failed), nil
}
