package alert

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/soundwatch/internal/metrics"
	"github.com/kiranshivaraju/soundwatch/pkg/models"
	"golang.org/x/sync/errgroup"
)

// writeTimeout bounds the store write that records a finished analysis.
const writeTimeout = 10 * time.Second

// Task is one queued analysis.
type Task struct {
	AlertID   uuid.UUID
	AudioPath string
}

// WorkerConfig sizes the analysis pool.
type WorkerConfig struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
}

// analysisSink receives finished analyses. *Service is the only implementation.
type analysisSink interface {
	AttachAnalysis(ctx context.Context, id uuid.UUID, waveform []float64, spectrogram [][]float64) error
	FailAnalysis(ctx context.Context, id uuid.UUID, reason string) error
}

// Worker runs analyses on a fixed pool of goroutines fed by a bounded queue.
// Tasks are attempted once; failures are recorded on the alert, not retried.
type Worker struct {
	analyzer models.AudioAnalyzer
	metrics  *metrics.Metrics
	sink     analysisSink
	cfg      WorkerConfig

	queue chan Task
	wg    sync.WaitGroup

	mu      sync.RWMutex
	stopped bool
}

// NewWorker creates a worker. It does nothing until Start is called.
func NewWorker(cfg WorkerConfig, analyzer models.AudioAnalyzer, m *metrics.Metrics) *Worker {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Worker{
		analyzer: analyzer,
		metrics:  m,
		cfg:      cfg,
		queue:    make(chan Task, cfg.QueueSize),
	}
}

// Start launches the pool. Cancelling ctx aborts in-flight analyses, which
// are then recorded as failed; call Stop to wait for the goroutines.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.Workers; i++ {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			for task := range w.queue {
				w.metrics.SetQueueDepth(len(w.queue))
				w.process(ctx, task)
			}
		}()
	}
	slog.Info("analysis worker started", "workers", w.cfg.Workers, "queue_size", w.cfg.QueueSize, "analyzer", w.analyzer.Name())
}

// Enqueue queues t without blocking. It returns false when the queue is full
// or the worker has been stopped.
func (w *Worker) Enqueue(t Task) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return false
	}
	select {
	case w.queue <- t:
		w.metrics.SetQueueDepth(len(w.queue))
		return true
	default:
		return false
	}
}

// Stop refuses new tasks, lets the pool drain the queue and waits for it.
func (w *Worker) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	close(w.queue)
	w.mu.Unlock()

	w.wg.Wait()
	slog.Info("analysis worker stopped")
}

// QueueDepth returns the number of tasks waiting for a worker.
func (w *Worker) QueueDepth() int { return len(w.queue) }

func (w *Worker) process(ctx context.Context, task Task) {
	start := time.Now()
	writeCtx, cancelWrite := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancelWrite()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in analysis", "error", r, "alert_id", task.AlertID)
			w.fail(writeCtx, task, fmt.Sprintf("panic: %v", r), start)
		}
	}()

	if w.sink == nil {
		slog.Error("analysis worker has no sink", "alert_id", task.AlertID)
		return
	}

	waveform, spectrogram, err := w.analyze(ctx, task.AudioPath)
	if err != nil {
		slog.Warn("analysis failed", "alert_id", task.AlertID, "error", err)
		w.fail(writeCtx, task, err.Error(), start)
		return
	}

	if err := w.sink.AttachAnalysis(writeCtx, task.AlertID, waveform, spectrogram); err != nil {
		// Logged by the sink. Usually the alert was deleted mid-analysis.
		w.metrics.AnalysisFinished(string(models.AnalysisFailed), time.Since(start).Seconds())
		return
	}
	w.metrics.AnalysisFinished(string(models.AnalysisComplete), time.Since(start).Seconds())
	slog.Info("analysis complete", "alert_id", task.AlertID, "duration", time.Since(start))
}

func (w *Worker) fail(ctx context.Context, task Task, reason string, start time.Time) {
	w.metrics.AnalysisFinished(string(models.AnalysisFailed), time.Since(start).Seconds())
	if w.sink == nil {
		return
	}
	_ = w.sink.FailAnalysis(ctx, task.AlertID, reason)
}

// analyze produces the waveform and spectrogram concurrently. Both must succeed.
func (w *Worker) analyze(ctx context.Context, path string) ([]float64, [][]float64, error) {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.Timeout)
	defer cancel()

	var (
		waveform    []float64
		spectrogram [][]float64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(recovered(func() (err error) {
		waveform, err = w.analyzer.Waveform(gctx, path)
		if err != nil {
			return fmt.Errorf("waveform: %w", err)
		}
		return nil
	}))
	g.Go(recovered(func() (err error) {
		spectrogram, err = w.analyzer.Spectrogram(gctx, path)
		if err != nil {
			return fmt.Errorf("spectrogram: %w", err)
		}
		return nil
	}))
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return waveform, spectrogram, nil
}

// recovered converts a panic in fn into an error.
func recovered(fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return fn()
	}
}
