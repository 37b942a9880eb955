// Package metrics exposes Prometheus collectors for alert intake and analysis.
package metrics

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "soundwatch"

// Metrics holds the service collectors on a dedicated registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	alertsCreated    *prometheus.CounterVec
	uploadsRejected  *prometheus.CounterVec
	analysisJobs     *prometheus.CounterVec
	analysisDuration prometheus.Histogram
	queueDepth       prometheus.Gauge
}

// New creates the collectors and registers them, plus Go and process
// collectors, on a fresh registry.
func New() (*Metrics, error) {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		alertsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_created_total",
			Help:      "Alerts created, by alert type.",
		}, []string{"alert_type"}),
		uploadsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_rejected_total",
			Help:      "Uploads rejected before an alert was created, by reason.",
		}, []string{"reason"}),
		analysisJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_jobs_total",
			Help:      "Finished analysis jobs, by final status.",
		}, []string{"status"}),
		analysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Wall time of one waveform plus spectrogram analysis.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "analysis_queue_depth",
			Help:      "Analysis tasks waiting for a worker.",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.alertsCreated,
		m.uploadsRejected,
		m.analysisJobs,
		m.analysisDuration,
		m.queueDepth,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}
	return m, nil
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      slog.NewLogLogger(slog.Default().Handler(), slog.LevelError),
		ErrorHandling: promhttp.ContinueOnError,
	})
}

// Registry returns the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) AlertCreated(alertType string) {
	if m == nil {
		return
	}
	m.alertsCreated.WithLabelValues(alertType).Inc()
}

func (m *Metrics) UploadRejected(reason string) {
	if m == nil {
		return
	}
	m.uploadsRejected.WithLabelValues(reason).Inc()
}

// AnalysisFinished records one job outcome and how long it ran.
func (m *Metrics) AnalysisFinished(status string, seconds float64) {
	if m == nil {
		return
	}
	m.analysisJobs.WithLabelValues(status).Inc()
	m.analysisDuration.Observe(seconds)
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}
