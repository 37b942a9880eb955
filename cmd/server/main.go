// Package main is the entrypoint for the SoundWatch API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kiranshivaraju/soundwatch/internal/alert"
	"github.com/kiranshivaraju/soundwatch/internal/api"
	"github.com/kiranshivaraju/soundwatch/internal/api/handler"
	mw "github.com/kiranshivaraju/soundwatch/internal/api/middleware"
	"github.com/kiranshivaraju/soundwatch/internal/api/response"
	"github.com/kiranshivaraju/soundwatch/internal/audio"
	"github.com/kiranshivaraju/soundwatch/internal/cache"
	"github.com/kiranshivaraju/soundwatch/internal/config"
	"github.com/kiranshivaraju/soundwatch/internal/events"
	"github.com/kiranshivaraju/soundwatch/internal/metrics"
	"github.com/kiranshivaraju/soundwatch/internal/store"
)

const (
	shutdownTimeout = 30 * time.Second
	// memoryCacheSweep is how often the in-process cache drops expired entries.
	memoryCacheSweep = time.Minute
)

func main() {
	logLevel := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if err := run(logLevel); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(logLevel *slog.LevelVar) error {
	// 1. Load config, fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logLevel.Set(cfg.LogLevel)
	slog.Info("config loaded",
		"env", cfg.Server.Env,
		"postgres", cfg.UsesPostgres(),
		"redis", cfg.UsesRedis(),
		"analyzer", cfg.Analysis.Analyzer,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Open the alert store
	alertStore, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	// 3. Open the status/rate-limit cache
	statusCache, err := openCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer statusCache.Close()

	// 4. Metrics and analyzer
	m, err := metrics.New()
	if err != nil {
		return fmt.Errorf("create metrics: %w", err)
	}
	analyzer, err := audio.NewAnalyzer(cfg.Analysis)
	if err != nil {
		return fmt.Errorf("create analyzer: %w", err)
	}
	slog.Info("analyzer initialized", "analyzer", analyzer.Name())

	// 5. Live event hub, analysis worker and alert service
	hub := events.NewHub(cfg.Server.ClientURL)
	go hub.Run(ctx)

	worker := alert.NewWorker(alert.WorkerConfig{
		Workers:   cfg.Analysis.Workers,
		QueueSize: cfg.Analysis.QueueSize,
		Timeout:   cfg.Analysis.Timeout,
	}, analyzer, m)
	svc := alert.NewService(alertStore, worker, statusCache, hub, m)
	worker.Start(ctx)

	// 6. Build router with dependencies
	deps := api.Dependencies{
		ClientURL:       cfg.Server.ClientURL,
		UploadDir:       cfg.Upload.Dir,
		UploadRateLimit: mw.NewRateLimit(statusCache, "upload", cfg.Upload.RateLimitPerMin),

		HealthHandler:         healthHandler(alertStore, statusCache),
		ListAlertsHandler:     handler.NewListAlertsHandler(svc),
		GetAlertHandler:       handler.NewGetAlertHandler(svc),
		UpdateAlertHandler:    handler.NewUpdateAlertHandler(svc),
		AnalysisStatusHandler: handler.NewAnalysisStatusHandler(svc),
		UploadHandler: handler.NewUploadHandler(svc, handler.UploadOptions{
			Dir:      cfg.Upload.Dir,
			MaxBytes: cfg.Upload.MaxBytes,
			Metrics:  m,
		}),

		Metrics: m.Handler(),
		Events:  hub,
	}

	router := api.NewRouter(deps)

	// 7. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr, "upload_dir", cfg.Upload.Dir)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	var serveErr error
	select {
	case err := <-errCh:
		serveErr = fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil && serveErr == nil {
		serveErr = fmt.Errorf("server shutdown: %w", err)
	}

	// Drain the analysis queue before the store and cache close.
	worker.Stop()

	if serveErr != nil {
		return serveErr
	}
	slog.Info("server stopped gracefully")
	return nil
}

// openStore connects to Postgres when DATABASE_URL is set and falls back to
// the in-memory store otherwise.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	if !cfg.UsesPostgres() {
		slog.Warn("DATABASE_URL not set, alerts are kept in memory only")
		return store.NewMemoryStore(), func() {}, nil
	}

	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	slog.Info("database connected")

	if err := store.RunMigrations(cfg.Database); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	return store.NewPostgresStore(pool), pool.Close, nil
}

// openCache connects to Redis when REDIS_URL is set and falls back to an
// in-process cache otherwise.
func openCache(ctx context.Context, cfg *config.Config) (cache.Cache, error) {
	if !cfg.UsesRedis() {
		slog.Warn("REDIS_URL not set, using in-process cache")
		return cache.NewMemoryCache(memoryCacheSweep), nil
	}

	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("create redis cache: %w", err)
	}
	if err := redisCache.Ping(ctx); err != nil {
		redisCache.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")
	return redisCache, nil
}

type healthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			slog.Warn("health check: database", "error", err)
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			slog.Warn("health check: cache", "error", err)
			checks["cache"] = "degraded"
		}

		body := healthResponse{Status: "OK", Timestamp: time.Now().UTC(), Services: checks}
		if checks["database"] != "ok" || checks["cache"] != "ok" {
			body.Status = "DEGRADED"
			response.WriteJSON(w, http.StatusServiceUnavailable, body)
			return
		}
		response.WriteJSON(w, http.StatusOK, body)
	}
}
