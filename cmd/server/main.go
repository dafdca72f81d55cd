package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	routes "github.com/astropulse/astropulse/internal/api"
	v1 "github.com/astropulse/astropulse/internal/api/v1"
	"github.com/astropulse/astropulse/internal/astro"
	"github.com/astropulse/astropulse/internal/auth"
	"github.com/astropulse/astropulse/internal/cache"
	"github.com/astropulse/astropulse/internal/config"
	"github.com/astropulse/astropulse/internal/datastore"
	"github.com/astropulse/astropulse/internal/db"
	"github.com/astropulse/astropulse/internal/jobs"
	"github.com/astropulse/astropulse/internal/llm"
	"github.com/astropulse/astropulse/internal/models"
	"github.com/astropulse/astropulse/internal/services"
	"github.com/astropulse/astropulse/pkg/logger"
)

const version = "1.0.0"

func main() {
	cfg := config.LoadConfig()

	logOpts := []logger.LoggerOption{logger.WithService("astropulse")}
	if cfg.Env == "development" {
		logOpts = append(logOpts, logger.WithLevel("debug"), logger.WithPretty())
	}
	log := logger.NewLogger(logOpts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gdb, err := db.NewDB(ctx, cfg.DSN(), models.RegisterModels(),
		db.WithLogger(log),
		db.WithConnPool(10, 50, time.Hour),
	)
	if err != nil {
		log.Error(ctx).WithFields("error", err).Logs("database init failed")
		os.Exit(1)
	}

	rdb, err := db.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		log.Error(ctx).WithFields("error", err).Logs("redis init failed")
		os.Exit(1)
	}

	users := datastore.NewUserRepository(gdb, log)
	readingStore := datastore.NewReadingRepository(gdb, log)
	chartStore := datastore.NewChartRepository(gdb, log)
	convStore := datastore.NewConversationRepository(gdb, log)
	alertStore := datastore.NewAlertRepository(gdb, log)
	entStore := datastore.NewEntitlementRepository(gdb, log)
	compatStore := datastore.NewCompatibilityRepository(gdb, log)

	readingCache := cache.NewReadingCache(rdb, log)
	authSvc := auth.New(cfg, rdb, users, log)

	llmClient := llm.NewOpenAIClient(cfg.OpenAIKey, cfg.OpenAIModel, log)
	astroClient := astro.NewClient(astro.Config{
		BaseURL: cfg.AstroAPIURL,
		APIKey:  cfg.AstroAPIKey,
		Timeout: cfg.AstroAPITimeout,
	}, log)

	quota := services.NewQuotaService(entStore, cfg.QuotaFreeLimit, cfg.QuotaPremiumLimit, cfg.QuotaPeriod, log)
	readings := services.NewReadingService(readingStore, users, readingCache, quota, llmClient, astroClient, log)
	charts := services.NewChartService(chartStore, users, astroClient, log)
	chat := services.NewChatService(convStore, users, llmClient, log)
	compat := services.NewCompatibilityService(compatStore, users, astroClient, llmClient, log)

	runner := jobs.NewRunner(users, entStore, alertStore, chartStore, readings, astroClient, log,
		jobs.WithBatchSize(cfg.JobBatchSize),
		jobs.WithRate(cfg.JobRatePerS),
		jobs.WithQuotaPeriod(cfg.QuotaPeriod),
	)

	health := v1.NewHealthChecker(gdb, func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}, version)

	handlers := v1.NewHandlers(cfg, log, authSvc, users, alertStore, readingCache,
		readings, quota, charts, chat, compat, runner, health)
	app := routes.New(cfg, log, handlers)

	var sched *jobs.Scheduler
	if cfg.CronMode == "internal" {
		sched, err = jobs.NewScheduler(runner, cfg.CronSpecs, log)
		if err != nil {
			log.Error(ctx).WithFields("error", err).Logs("scheduler init failed")
			os.Exit(1)
		}
		sched.Start()
		log.Info(ctx).Logs("in-process scheduler started")
	}

	go func() {
		log.Info(ctx).WithFields("addr", cfg.ServerAddr, "env", cfg.Env).Logs("server listening")
		if err := app.Listen(cfg.ServerAddr); err != nil {
			log.Error(ctx).WithFields("error", err).Logs("server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info(context.Background()).Logs("shutting down")

	if err := app.ShutdownWithTimeout(15 * time.Second); err != nil {
		log.Error(context.Background()).WithFields("error", err).Logs("server shutdown failed")
	}
	if sched != nil {
		sched.Stop()
	}
	rdb.Close(log)
	db.CloseDB(log)
}
