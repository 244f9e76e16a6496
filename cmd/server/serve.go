package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"github.com/iliyamo/table-reservations/internal/cache"
	"github.com/iliyamo/table-reservations/internal/config"
	"github.com/iliyamo/table-reservations/internal/database"
	"github.com/iliyamo/table-reservations/internal/handler"
	"github.com/iliyamo/table-reservations/internal/middleware"
	"github.com/iliyamo/table-reservations/internal/queue"
	"github.com/iliyamo/table-reservations/internal/repository"
	"github.com/iliyamo/table-reservations/internal/router"
	"github.com/iliyamo/table-reservations/internal/service"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var migrate bool
	c := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), migrate)
		},
	}
	c.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before serving (also MIGRATE_ON_START)")
	return c
}

func serve(ctx context.Context, migrate bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	if migrate || cfg.MigrateOnStart {
		if _, err := database.Migrate(ctx, db, log); err != nil {
			return err
		}
	}

	repo := repository.NewReservationRepo(db)
	evaluator, err := newEvaluator(cfg, repo)
	if err != nil {
		return err
	}

	rdb := config.NewRedisClient(ctx)
	if rdb == nil {
		log.Warn().Msg("redis unavailable; availability cache and rate limiting disabled")
	} else {
		defer rdb.Close()
	}
	reports := cache.NewAvailabilityCache(config.LoadCacheConfig(), rdb)
	var (
		reportCache service.ReportCache
		invalidator service.Invalidator
	)
	if reports.Enabled() {
		reportCache, invalidator = reports, reports
	}

	var publisher queue.Publisher = queue.NopPublisher{}
	if cfg.QueueEnabled {
		publisher = queue.NewAMQPPublisher(cfg.AMQPURL, cfg.QueueName, log)
		if cfg.AuditEnabled {
			consumer := queue.NewAuditConsumer(cfg.AMQPURL, cfg.QueueName, cfg.AuditLogPath, log)
			go func() { _ = consumer.Run(ctx) }()
		}
	}
	defer publisher.Close()

	reservations := service.NewReservationService(repo, evaluator, invalidator, publisher, log,
		service.WithCapacityGuard(cfg.EnforceCapacity),
		service.WithInvalidationRetry(reports.TTL(), 0))
	availabilitySvc := service.NewAvailabilityService(evaluator, reportCache, log)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAccept},
	}))
	e.Use(middleware.RequestLogger(log))

	router.RegisterRoutes(e, repo)
	router.RegisterAPI(e,
		handler.NewAvailabilityHandler(availabilitySvc, cfg.RequestTimeout, log),
		handler.NewReservationHandler(reservations, cfg.RequestTimeout, log),
		middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log),
	)

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Str("env", cfg.Env).
			Int("max_capacity", cfg.MaxCapacityPerSlot).Float64("threshold", cfg.CapacityThreshold).
			Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
