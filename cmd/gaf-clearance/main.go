package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpapi "github.com/i474232898/gaf-clearance/internal/api/http"
	"github.com/i474232898/gaf-clearance/internal/clearance"
	"github.com/i474232898/gaf-clearance/internal/config"
	"github.com/i474232898/gaf-clearance/internal/forecast"
	"github.com/i474232898/gaf-clearance/internal/gaf"
	"github.com/i474232898/gaf-clearance/internal/gaf/upstream"
	"github.com/i474232898/gaf-clearance/internal/lsalt"
	"github.com/i474232898/gaf-clearance/internal/observability"
	"github.com/i474232898/gaf-clearance/internal/scheduler"
	"github.com/i474232898/gaf-clearance/internal/store"
)

func main() {
	envErr := godotenv.Load()

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := observability.NewLogger(cfg)
	slog.SetDefault(log)
	if envErr != nil {
		log.Info("no .env file loaded", "error", envErr)
	}

	metrics := observability.NewMetrics()
	metrics.RegionsExcluded.Set(float64(len(cfg.ExcludedRegions)))

	// Shared HTTP client for outbound backend calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}
	backend := upstream.NewBackend(httpClient, cfg.BackendURL, cfg.UpstreamMaxRetries, log)

	// LSALT grids are loaded once; serving without them is unsafe.
	loadCtx, cancelLoad := context.WithTimeout(context.Background(), 2*cfg.HTTPTimeout)
	grids, err := lsalt.Load(loadCtx, backend, gaf.Regions, log)
	cancelLoad()
	if err != nil {
		log.Error("failed to load lsalt grids", "error", err)
		os.Exit(1)
	}

	clock := clockwork.NewRealClock()

	// In-memory store with configured retention.
	memStore := store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge, clock)

	service, err := forecast.NewService(forecast.Options{
		Source:            backend,
		Store:             memStore,
		Grids:             grids,
		Engine:            clearance.NewEngine(cfg.ExcludedRegions, log),
		Metrics:           metrics,
		Logger:            log,
		Clock:             clock,
		EnvelopeCacheSize: cfg.EnvelopeCacheSize,
	})
	if err != nil {
		log.Error("failed to create forecast service", "error", err)
		os.Exit(1)
	}

	// Scheduler that refreshes every period and region; the first cycle runs now.
	sched := scheduler.New(service, cfg.RefreshInterval, log)
	if err := sched.Start(); err != nil {
		log.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "gaf-clearance",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())
	app.Use(compress.New())

	httpapi.RegisterHealth(app, service)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// API routes.
	httpapi.RegisterRoutes(app, service)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error("fiber server stopped", "error", err)
		}
	}()
	log.Info("listening", "port", cfg.Port, "backend", cfg.BackendURL.String())

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error("error during shutdown", "error", err)
	}
}
