// Command api runs the groundwater analysis HTTP service.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"groundwatch/internal/api/handlers"
	"groundwatch/internal/cache"
	"groundwatch/internal/config"
	"groundwatch/internal/core"
	"groundwatch/internal/db"
	"groundwatch/internal/engine"
	"groundwatch/internal/geo"
	"groundwatch/internal/observability"
	"groundwatch/internal/types"
	"groundwatch/internal/upstream"

	"github.com/go-chi/chi/v5"
)

func main() {
	// All timestamps in the pipeline are UTC; enforce it process-wide to
	// prevent drift between cache keys and as-of handling.
	time.Local = time.UTC

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel, cfg.Service)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("service exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	metrics := observability.NewMetrics()
	clock := types.RealClock{}

	resultCache := cache.New(cache.TTLs{
		Computed: cfg.Cache.ComputedTTL,
		Upstream: cfg.Cache.UpstreamTTL,
		Static:   cfg.Cache.StaticTTL,
	}, clock, metrics)

	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if evicted := resultCache.Sweep(); evicted > 0 {
					logger.Debug("cache sweep", "evicted", evicted)
				}
			}
		}
	}()

	directory, closeDirectory, err := buildDirectory(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDirectory()

	fetcher := upstream.NewClient(
		&http.Client{Timeout: cfg.Upstream.FetchTimeout},
		cfg.Upstream.BaseURL,
		cfg.Upstream.FetchTimeout,
		upstream.RetryPolicy{
			MaxRetries: cfg.Upstream.MaxRetries,
			MinWait:    500 * time.Millisecond,
			MaxWait:    10 * time.Second,
		},
		upstream.WithRecorder(metrics),
	)

	eng, err := engine.New(
		directory,
		fetcher,
		geo.NewResolver(cfg.Geo.MaxStationDistanceKm),
		resultCache,
		logger,
		clock,
		metrics,
	)
	if err != nil {
		return err
	}

	server, err := core.NewServer(cfg, logger)
	if err != nil {
		return err
	}
	server.MetricsHandler = metrics.Handler()

	analysisHandler := handlers.NewAnalysisHandler(eng, server.Validator, logger, clock)
	healthHandler := handlers.NewHealthHandler(resultCache, fetcher, clock)
	server.V1RouteRegistrars = append(server.V1RouteRegistrars, analysisHandler.RegisterRoutes)
	server.RootRouteRegistrars = append(server.RootRouteRegistrars, func(r chi.Router) {
		healthHandler.RegisterRoutes(r)
	})
	server.MountRoutes()

	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "port", cfg.Server.Port, "env", cfg.Environment)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutdown initiated")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

// buildDirectory constructs the configured station directory implementation
// and a cleanup function.
func buildDirectory(ctx context.Context, cfg *config.Config) (engine.StationDirectory, func(), error) {
	if cfg.Directory.Source == "file" {
		return db.NewFileStationDirectory(cfg.Directory.FilePath), func() {}, nil
	}

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return db.NewStationRepository(pool), pool.Close, nil
}

func newLogger(level, service string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(h).With("service", service)
}
