// Package main seeds the alert store with sample recordings and alerts.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/kiranshivaraju/soundwatch/internal/alert"
	"github.com/kiranshivaraju/soundwatch/internal/audio"
	"github.com/kiranshivaraju/soundwatch/internal/cache"
	"github.com/kiranshivaraju/soundwatch/internal/config"
	"github.com/kiranshivaraju/soundwatch/internal/metrics"
	"github.com/kiranshivaraju/soundwatch/internal/store"
	"github.com/kiranshivaraju/soundwatch/pkg/models"
)

const (
	sampleRate    = 16000
	sampleSeconds = 2.0
)

// sample is one seeded alert plus the tone used to synthesize its recording.
type sample struct {
	file      string
	frequency float64
	amplitude float64
	params    alert.CreateParams
}

var samples = []sample{
	{"sample_mild_1.wav", 220, 0.2, alert.CreateParams{
		AlertType:       models.AlertTypeMild,
		SuspectedReason: "Minor vibration detected in bearing assembly",
		Action:          "Monitor for 24 hours",
		Comment:         "Low amplitude signals, likely normal wear",
	}},
	{"sample_moderate_1.wav", 440, 0.5, alert.CreateParams{
		AlertType:       models.AlertTypeModerate,
		SuspectedReason: "Unusual frequency patterns in motor",
		Action:          "Schedule maintenance within 48 hours",
		Comment:         "Medium amplitude signals, requires attention",
	}},
	{"sample_severe_1.wav", 1200, 0.9, alert.CreateParams{
		AlertType:       models.AlertTypeSevere,
		SuspectedReason: "Critical equipment malfunction detected",
		Action:          "Immediate shutdown and inspection required",
		Comment:         "High amplitude signals, potential safety risk",
	}},
	{"sample_mild_2.wav", 180, 0.15, alert.CreateParams{
		AlertType:       models.AlertTypeMild,
		SuspectedReason: "Slight increase in background noise",
		Action:          "Continue monitoring",
		Comment:         "Within acceptable parameters",
	}},
	{"sample_severe_2.wav", 3000, 0.95, alert.CreateParams{
		AlertType:       models.AlertTypeSevere,
		SuspectedReason: "Bearing failure imminent",
		Action:          "Emergency maintenance team dispatched",
		Comment:         "Critical frequency spikes detected",
	}},
}

// resetter is implemented by stores that can drop every alert.
type resetter interface {
	DeleteAll(ctx context.Context) (int64, error)
}

func main() {
	reset := flag.Bool("reset", false, "delete all existing alerts before seeding")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if err := run(*reset); err != nil {
		slog.Error("seeding failed", "error", err)
		os.Exit(1)
	}
}

func run(reset bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	alertStore, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	m, err := metrics.New()
	if err != nil {
		return fmt.Errorf("create metrics: %w", err)
	}
	analyzer, err := audio.NewAnalyzer(cfg.Analysis)
	if err != nil {
		return fmt.Errorf("create analyzer: %w", err)
	}

	statusCache := cache.NewMemoryCache(0)
	defer statusCache.Close()

	worker := alert.NewWorker(alert.WorkerConfig{
		Workers:   cfg.Analysis.Workers,
		QueueSize: len(samples),
		Timeout:   cfg.Analysis.Timeout,
	}, analyzer, m)
	svc := alert.NewService(alertStore, worker, statusCache, nil, m)
	worker.Start(ctx)

	created, err := seed(ctx, alertStore, svc, cfg.Upload.Dir, reset)
	// Wait for queued analyses even when seeding stopped part way.
	worker.Stop()
	if err != nil {
		return err
	}

	slog.Info("seeding complete", "alerts", created, "upload_dir", cfg.Upload.Dir)
	return nil
}

func seed(ctx context.Context, st store.Store, svc *alert.Service, dir string, reset bool) (int, error) {
	if reset {
		r, ok := st.(resetter)
		if !ok {
			return 0, fmt.Errorf("store %T does not support reset", st)
		}
		n, err := r.DeleteAll(ctx)
		if err != nil {
			return 0, fmt.Errorf("clear alerts: %w", err)
		}
		slog.Info("cleared existing alerts", "count", n)
	}

	created := 0
	for _, s := range samples {
		path := filepath.Join(dir, s.file)
		if err := audio.WriteWAV(path, audio.Tone(s.frequency, s.amplitude, sampleSeconds, sampleRate), sampleRate); err != nil {
			return created, fmt.Errorf("write %s: %w", s.file, err)
		}

		params := s.params
		params.AudioFilePath = path
		a, err := svc.CreateAlert(ctx, params)
		if err != nil {
			return created, fmt.Errorf("create alert for %s: %w", s.file, err)
		}
		created++
		slog.Info("created alert", "alert_id", a.ID, "alert_type", a.AlertType, "path", path)
	}
	return created, nil
}

// openStore connects to Postgres and applies migrations. Without DATABASE_URL
// the seeded alerts only live for the duration of the run.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	if !cfg.UsesPostgres() {
		slog.Warn("DATABASE_URL not set, seeding an in-memory store")
		return store.NewMemoryStore(), func() {}, nil
	}

	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	if err := store.RunMigrations(cfg.Database); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}
	return store.NewPostgresStore(pool), pool.Close, nil
}
