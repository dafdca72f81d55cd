// Package v1 holds the versioned HTTP handlers. Handlers parse and
// validate input, call one service, and render the JSON envelope;
// anything smarter lives below them.
package v1

import (
	"github.com/astropulse/astropulse/internal/auth"
	"github.com/astropulse/astropulse/internal/cache"
	"github.com/astropulse/astropulse/internal/config"
	"github.com/astropulse/astropulse/internal/datastore"
	"github.com/astropulse/astropulse/internal/jobs"
	"github.com/astropulse/astropulse/internal/services"
	"github.com/astropulse/astropulse/pkg/logger"
	"github.com/astropulse/astropulse/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Handlers carries every dependency the route handlers need.
type Handlers struct {
	cfg      *config.Config
	log      *logger.Logger
	validate *utils.Validator

	auth   *auth.Auth
	users  *datastore.UserRepository
	alerts *datastore.AlertRepository
	cache  *cache.ReadingCache

	readings *services.ReadingService
	quota    *services.QuotaService
	charts   *services.ChartService
	chat     *services.ChatService
	compat   *services.CompatibilityService

	jobs   *jobs.Runner
	health *HealthChecker
}

func NewHandlers(
	cfg *config.Config,
	log *logger.Logger,
	a *auth.Auth,
	users *datastore.UserRepository,
	alerts *datastore.AlertRepository,
	readingCache *cache.ReadingCache,
	readings *services.ReadingService,
	quota *services.QuotaService,
	charts *services.ChartService,
	chat *services.ChatService,
	compat *services.CompatibilityService,
	runner *jobs.Runner,
	health *HealthChecker,
) *Handlers {
	return &Handlers{
		cfg:      cfg,
		log:      log,
		validate: utils.NewValidator(),
		auth:     a,
		users:    users,
		alerts:   alerts,
		cache:    readingCache,
		readings: readings,
		quota:    quota,
		charts:   charts,
		chat:     chat,
		compat:   compat,
		jobs:     runner,
		health:   health,
	}
}

// Register mounts every v1 route. Fixed segments are registered before
// parameterized siblings so /readings/daily never matches :id.
func (h *Handlers) Register(r fiber.Router) {
	authGrp := r.Group("/auth")
	authGrp.Post("/register", h.RegisterUser)
	authGrp.Post("/login", h.Login)
	authGrp.Post("/refresh", h.RefreshSession)
	authGrp.Post("/logout", h.Logout)

	profile := r.Group("/profile", h.auth.Protected())
	profile.Get("/", h.GetProfile)
	profile.Put("/", h.UpdateProfile)
	profile.Delete("/", h.DeleteAccount)

	readings := r.Group("/readings", h.auth.Protected())
	readings.Get("/daily", h.DailyReading)
	readings.Get("/weekly", h.WeeklyReading)
	readings.Get("/monthly", h.MonthlyReading)
	readings.Get("/latest", h.LatestReading)
	readings.Get("/stats", h.ReadingStats)
	readings.Get("/", h.ListReadings)
	readings.Get("/:id", h.GetReading)
	readings.Put("/:id", h.UpdateReading)
	readings.Delete("/:id", h.DeleteReading)

	charts := r.Group("/charts", h.auth.Protected())
	charts.Post("/", h.CreateChart)
	charts.Get("/natal", h.NatalChart)
	charts.Get("/", h.ListCharts)
	charts.Get("/:id", h.GetChart)
	charts.Delete("/:id", h.DeleteChart)

	convs := r.Group("/conversations", h.auth.Protected())
	convs.Post("/", h.StartConversation)
	convs.Get("/", h.ListConversations)
	convs.Get("/:id", h.GetConversation)
	convs.Delete("/:id", h.DeleteConversation)
	convs.Post("/:id/messages", h.SendMessage)

	alerts := r.Group("/alerts", h.auth.Protected())
	alerts.Get("/", h.ListAlerts)
	alerts.Put("/:id/read", h.MarkAlertRead)
	alerts.Delete("/:id", h.DeleteAlert)

	compat := r.Group("/compatibility", h.auth.Protected())
	compat.Post("/", h.MatchCompatibility)
	compat.Get("/", h.ListCompatibility)
	compat.Get("/:id", h.GetCompatibility)
	compat.Delete("/:id", h.DeleteCompatibility)

	r.Get("/quota", h.auth.Protected(), h.QuotaStatus)

	admin := r.Group("/admin", h.auth.Protected(), h.auth.AdminOnly())
	admin.Post("/readings", h.AdminCreateReading)
	admin.Get("/readings", h.AdminReadingRange)
	admin.Delete("/readings/cleanup", h.AdminCleanupReadings)
	admin.Get("/cache/stats", h.AdminCacheStats)
	admin.Put("/users/:id/plan", h.AdminSetPlan)

	cron := r.Group("/cron", h.auth.CronOnly())
	cron.Post("/quota-reset", h.CronQuotaReset)
	cron.Post("/daily-readings", h.CronDailyReadings)
	cron.Post("/transit-alerts", h.CronTransitAlerts)
}

// parseID reads a UUID path parameter.
func parseID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, utils.NewError(utils.CodeValidation, "Invalid id")
	}
	return id, nil
}
