package v1

import (
	"context"

	"github.com/astropulse/astropulse/internal/jobs"
	"github.com/astropulse/astropulse/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

// runJob executes one batch job for the external scheduler and renders
// its counters. Job failures come back as the plain error envelope.
func (h *Handlers) runJob(c *fiber.Ctx, name string, run func(context.Context) (jobs.Result, error)) error {
	res, err := run(c.Context())
	if err != nil {
		h.log.Error(c.Context()).WithFields("job", name, "error", err).Logs("cron job failed")
		return err
	}
	h.log.Info(c.Context()).
		WithFields("job", name, "processed", res.Processed, "failed", res.Failed, "duration_ms", res.DurationMs).
		Logs("cron job finished")
	return utils.SendSuccess(c, res)
}

func (h *Handlers) CronQuotaReset(c *fiber.Ctx) error {
	return h.runJob(c, "quota_reset", h.jobs.QuotaReset)
}

func (h *Handlers) CronDailyReadings(c *fiber.Ctx) error {
	return h.runJob(c, "daily_readings", h.jobs.DailyReadings)
}

func (h *Handlers) CronTransitAlerts(c *fiber.Ctx) error {
	return h.runJob(c, "transit_alerts", h.jobs.TransitAlerts)
}
