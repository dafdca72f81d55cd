package v1

import (
	"context"

	"github.com/astropulse/astropulse/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// HealthChecker probes the service's dependencies. The database is
// load-bearing; the cache is an optimization, so a dead cache only
// degrades the report.
type HealthChecker struct {
	db      *gorm.DB
	pingKV  func(context.Context) error
	version string
}

func NewHealthChecker(db *gorm.DB, pingKV func(context.Context) error, version string) *HealthChecker {
	return &HealthChecker{db: db, pingKV: pingKV, version: version}
}

func (hc *HealthChecker) checkDB(ctx context.Context) error {
	sqlDB, err := hc.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Health reports dependency status: 503 when the database is down,
// 200 with status=degraded when only the cache is.
func (h *Handlers) Health(c *fiber.Ctx) error {
	ctx := c.Context()
	status := "ok"
	checks := fiber.Map{"database": "ok", "cache": "ok"}
	code := fiber.StatusOK

	if err := h.health.checkDB(ctx); err != nil {
		h.log.Error(ctx).WithFields("error", err).Logs("health: database unreachable")
		checks["database"] = "down"
		status = "down"
		code = fiber.StatusServiceUnavailable
	}
	if err := h.health.pingKV(ctx); err != nil {
		h.log.Warn(ctx).WithFields("error", err).Logs("health: cache unreachable")
		checks["cache"] = "down"
		if status == "ok" {
			status = "degraded"
		}
	}

	return utils.Success(c).
		WithStatus(code).
		WithData(fiber.Map{"status": status, "checks": checks}).
		WithMeta("version", h.health.version).
		Send()
}
