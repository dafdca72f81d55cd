package jobs

import (
	"context"
	"time"

	"github.com/astropulse/astropulse/internal/astro"
	"github.com/astropulse/astropulse/internal/models"
	"github.com/astropulse/astropulse/pkg/metrics"
	"github.com/google/uuid"
)

// TransitAlerts fetches current transits for every user holding a natal
// chart and stores one alert per significant event. Expired alerts are
// pruned first so the table stays bounded.
func (r *Runner) TransitAlerts(ctx context.Context) (Result, error) {
	start := time.Now()
	now := r.now()
	processed, failed := 0, 0

	if pruned, err := r.alerts.DeleteExpired(ctx, now); err != nil {
		r.log.Warn(ctx).WithFields("error", err).Logs("expired alert prune failed")
	} else if pruned > 0 {
		r.log.Info(ctx).WithFields("pruned", pruned).Logs("expired alerts pruned")
	}

	date := now.Format("2006-01-02")
	for offset := 0; ; offset += r.batchSize {
		users, err := r.users.ListWithBirthData(ctx, offset, r.batchSize)
		if err != nil {
			metrics.JobRuns.WithLabelValues("transit_alerts", "error").Inc()
			return r.result(start, processed, failed+1), err
		}
		if len(users) == 0 {
			break
		}

		for i := range users {
			user := &users[i]
			chart, err := r.charts.GetNatal(ctx, user.ID)
			if err != nil {
				failed++
				continue
			}
			if chart == nil {
				// Alerts are only produced for users who asked for a chart.
				continue
			}

			if err := r.limiter.Wait(ctx); err != nil {
				metrics.JobRuns.WithLabelValues("transit_alerts", "error").Inc()
				return r.result(start, processed, failed), err
			}
			birth := astro.BirthInput{
				Date:      chart.Birth.BirthDate,
				Time:      chart.Birth.BirthTime,
				Latitude:  chart.Birth.Latitude,
				Longitude: chart.Birth.Longitude,
				Timezone:  chart.Birth.Timezone,
			}
			data, err := r.transits.CurrentTransits(ctx, birth, date)
			if err != nil {
				failed++
				r.log.Warn(ctx).WithFields("error", err, "user_id", user.ID).Logs("transit fetch failed")
				continue
			}

			alerts := alertsFromEvents(user.ID, data, now)
			if len(alerts) == 0 {
				continue
			}
			if err := r.alerts.InsertBatch(ctx, alerts); err != nil {
				failed++
				continue
			}
			processed += len(alerts)
		}

		if len(users) < r.batchSize {
			break
		}
	}

	metrics.JobRuns.WithLabelValues("transit_alerts", "ok").Inc()
	r.log.Info(ctx).WithFields("alerts", processed, "failed", failed).Logs("transit alerts job finished")
	return r.result(start, processed, failed), nil
}

// alertsFromEvents keeps the events still in effect and shapes them for
// storage. Events that already ended are noise.
func alertsFromEvents(userID uuid.UUID, data *astro.TransitData, now time.Time) []models.TransitAlert {
	alerts := make([]models.TransitAlert, 0, len(data.Events))
	for _, ev := range data.Events {
		if !ev.EndsAt.IsZero() && ev.EndsAt.Before(now) {
			continue
		}
		alerts = append(alerts, models.TransitAlert{
			UserID:      userID,
			Planet:      ev.Planet,
			TransitType: ev.TransitType,
			Description: ev.Description,
			Severity:    ev.Severity,
			StartsAt:    ev.StartsAt,
			EndsAt:      ev.EndsAt,
		})
	}
	return alerts
}
