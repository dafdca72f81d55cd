package jobs

import (
	"context"

	"github.com/astropulse/astropulse/internal/config"
	"github.com/astropulse/astropulse/pkg/logger"
	"github.com/robfig/cron/v3"
)

// Scheduler runs the jobs in-process on cron schedules. Deployments
// with an external scheduler hit the cron endpoints instead and never
// start one of these.
type Scheduler struct {
	cron   *cron.Cron
	runner *Runner
	log    *logger.Logger
}

// NewScheduler registers the three jobs on their configured schedules.
func NewScheduler(runner *Runner, specs config.CronSpecs, log *logger.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:   cron.New(),
		runner: runner,
		log:    log,
	}

	jobs := []struct {
		name string
		spec string
		run  func(context.Context) (Result, error)
	}{
		{"quota_reset", specs.QuotaReset, runner.QuotaReset},
		{"daily_readings", specs.DailyReadings, runner.DailyReadings},
		{"transit_alerts", specs.TransitAlerts, runner.TransitAlerts},
	}
	for _, job := range jobs {
		job := job
		_, err := s.cron.AddFunc(job.spec, func() {
			ctx := context.Background()
			res, err := job.run(ctx)
			if err != nil {
				s.log.Error(ctx).WithFields("job", job.name, "error", err).Logs("scheduled job failed")
				return
			}
			s.log.Info(ctx).
				WithFields("job", job.name, "processed", res.Processed, "failed", res.Failed, "duration_ms", res.DurationMs).
				Logs("scheduled job finished")
		})
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Start begins firing jobs on schedule.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
