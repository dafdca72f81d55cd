// Package routes assembles the fiber app: middleware chain, health and
// metrics endpoints, and the versioned API group.
package routes

import (
	"time"

	v1 "github.com/astropulse/astropulse/internal/api/v1"
	"github.com/astropulse/astropulse/internal/config"
	"github.com/astropulse/astropulse/pkg/logger"
	"github.com/astropulse/astropulse/pkg/metrics"
	"github.com/astropulse/astropulse/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// New builds the HTTP app. Every handler error funnels through the
// envelope renderer, so handlers just return taxonomy errors.
func New(cfg *config.Config, log *logger.Logger, h *v1.Handlers) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "astropulse",
		ErrorHandler: utils.HandleError,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second, // SSE chat streams need headroom
	})

	app.Use(
		recover.New(),
		cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,
			AllowCredentials: true,
			AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		}),
		compress.New(compress.Config{
			Level: compress.LevelBestSpeed,
		}),
		limiter.New(limiter.Config{
			Expiration: 1 * time.Minute,
			Max:        120,
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP()
			},
			Next: func(c *fiber.Ctx) bool {
				return c.Path() == "/healthz" || c.Path() == "/metrics"
			},
		}),
	)
	app.Use(log.Middleware())
	app.Use(metrics.Middleware())

	app.Get("/healthz", h.Health)
	app.Get("/metrics", metrics.Handler())

	h.Register(app.Group("/api/v1"))

	return app
}
