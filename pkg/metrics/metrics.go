// Package metrics exposes Prometheus collectors for the API.
package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/astropulse/astropulse/pkg/utils"
)

var (
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "astropulse",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "astropulse",
		Name:      "reading_cache_lookups_total",
		Help:      "Reading cache lookups by outcome.",
	}, []string{"outcome"})

	GenerationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "astropulse",
		Name:      "reading_generations_total",
		Help:      "Reading generations by type and result.",
	}, []string{"type", "result"})

	JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "astropulse",
		Name:      "job_runs_total",
		Help:      "Batch job runs by job and result.",
	}, []string{"job", "result"})
)

// Handler serves the /metrics endpoint.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}

// Middleware records request durations per route.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		route := c.Route().Path
		// The app error handler has not rendered handler errors yet;
		// map them to their eventual status instead of the current 200.
		status := utils.StatusOf(err, c.Response().StatusCode())
		RequestDuration.WithLabelValues(c.Method(), route, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
		return err
	}
}
