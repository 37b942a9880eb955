// Package alert owns the anomaly alert lifecycle: creation, listing, operator
// updates and the asynchronous waveform/spectrogram analysis.
package alert

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/soundwatch/internal/cache"
	"github.com/kiranshivaraju/soundwatch/internal/metrics"
	"github.com/kiranshivaraju/soundwatch/internal/store"
	"github.com/kiranshivaraju/soundwatch/pkg/models"
)

// Publisher receives alert lifecycle events. Publish must not block.
type Publisher interface {
	Publish(evt models.AlertEvent)
}

type nopPublisher struct{}

func (nopPublisher) Publish(models.AlertEvent) {}

// CreateParams holds the operator-supplied fields of a new alert.
type CreateParams struct {
	AlertType       models.AlertType
	AudioFilePath   string
	SuspectedReason string
	Action          string
	Comment         string
}

// ListParams holds the filter and page window for a listing.
type ListParams struct {
	StartDate *time.Time
	EndDate   *time.Time
	AlertType *models.AlertType
	Page      int
	Limit     int
}

// ListResult is one page of alerts plus the total number of matches.
type ListResult struct {
	Alerts []*models.AnomalyAlert `json:"alerts"`
	Total  int                    `json:"total"`
	Page   int                    `json:"page"`
	Limit  int                    `json:"limit"`
}

// Service orchestrates the alert store, the status cache and the analysis worker.
type Service struct {
	store   store.Store
	worker  *Worker
	cache   cache.Cache
	pub     Publisher
	metrics *metrics.Metrics
}

// NewService creates a Service and binds w to it so finished analyses are
// written back through the service. w may be nil, in which case alerts stay pending.
func NewService(st store.Store, w *Worker, ca cache.Cache, pub Publisher, m *metrics.Metrics) *Service {
	if pub == nil {
		pub = nopPublisher{}
	}
	s := &Service{store: st, worker: w, cache: ca, pub: pub, metrics: m}
	if w != nil {
		w.sink = s
	}
	return s
}

// CreateAlert validates and stores a new alert, then queues its analysis.
// The returned alert has empty analysis arrays; the analysis completes later.
func (s *Service) CreateAlert(ctx context.Context, p CreateParams) (*models.AnomalyAlert, error) {
	if !p.AlertType.Valid() {
		return nil, invalid(MsgInvalidAlertType)
	}
	if strings.TrimSpace(p.SuspectedReason) == "" {
		return nil, invalid(MsgReasonRequired)
	}
	if strings.TrimSpace(p.AudioFilePath) == "" {
		return nil, invalid(MsgAudioFileRequired)
	}

	created, err := s.store.InsertAlert(ctx, &models.AnomalyAlert{
		AlertType:       p.AlertType,
		AudioFilePath:   p.AudioFilePath,
		SuspectedReason: strings.TrimSpace(p.SuspectedReason),
		Action:          p.Action,
		Comment:         p.Comment,
		WaveformData:    []float64{},
		SpectrogramData: [][]float64{},
		AnalysisStatus:  models.AnalysisPending,
	})
	if err != nil {
		return nil, fmt.Errorf("creating alert: %w", err)
	}

	s.setStatus(ctx, created.ID, models.AnalysisPending)
	s.metrics.AlertCreated(string(created.AlertType))
	s.publish(models.EventAlertCreated, created)
	slog.Info("alert created", "alert_id", created.ID, "alert_type", created.AlertType)

	if s.worker == nil || !s.worker.Enqueue(Task{AlertID: created.ID, AudioPath: created.AudioFilePath}) {
		slog.Warn("analysis not queued", "alert_id", created.ID)
		// The alert is already stored; a failed status write must not orphan it.
		if err := s.FailAnalysis(ctx, created.ID, MsgAnalysisQueueFull); err != nil {
			slog.Error("alert left pending", "alert_id", created.ID, "error", err)
		}
		created.AnalysisStatus = models.AnalysisFailed
		created.AnalysisError = MsgAnalysisQueueFull
	}

	return created, nil
}

// ListAlerts returns one page of alerts matching p, newest first.
// Page and limit default to 1 and store.DefaultLimit; limit is capped at store.MaxLimit.
func (s *Service) ListAlerts(ctx context.Context, p ListParams) (*ListResult, error) {
	if p.AlertType != nil && !p.AlertType.Valid() {
		return nil, invalid(MsgInvalidAlertType)
	}

	page := p.Page
	if page < 1 {
		page = 1
	}
	limit := p.Limit
	if limit < 1 {
		limit = store.DefaultLimit
	}
	if limit > store.MaxLimit {
		limit = store.MaxLimit
	}

	alerts, total, err := s.store.ListAlerts(ctx, store.AlertFilter{
		StartDate: p.StartDate,
		EndDate:   p.EndDate,
		AlertType: p.AlertType,
		Page:      page,
		Limit:     limit,
	})
	if err != nil {
		return nil, fmt.Errorf("listing alerts: %w", err)
	}

	return &ListResult{Alerts: alerts, Total: total, Page: page, Limit: limit}, nil
}

func (s *Service) GetAlert(ctx context.Context, id uuid.UUID) (*models.AnomalyAlert, error) {
	a, err := s.store.GetAlert(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting alert %s: %w", id, err)
	}
	return a, nil
}

// UpdateAlert applies the non-nil fields of upd and returns the updated alert.
func (s *Service) UpdateAlert(ctx context.Context, id uuid.UUID, upd store.AlertUpdate) (*models.AnomalyAlert, error) {
	if upd.SuspectedReason != nil && strings.TrimSpace(*upd.SuspectedReason) == "" {
		return nil, invalid(MsgReasonRequired)
	}

	a, err := s.store.UpdateAlert(ctx, id, upd)
	if err != nil {
		return nil, fmt.Errorf("updating alert %s: %w", id, err)
	}
	if !upd.Empty() {
		s.publish(models.EventAlertUpdated, a)
	}
	return a, nil
}

// DeleteAlert removes the alert and reports whether it existed.
func (s *Service) DeleteAlert(ctx context.Context, id uuid.UUID) (bool, error) {
	existed, err := s.store.DeleteAlert(ctx, id)
	if err != nil {
		return false, fmt.Errorf("deleting alert %s: %w", id, err)
	}
	if err := s.cache.DeleteAnalysisStatus(ctx, id); err != nil {
		slog.Warn("clearing cached analysis status", "alert_id", id, "error", err)
	}
	if existed {
		slog.Info("alert deleted", "alert_id", id)
	}
	return existed, nil
}

// AttachAnalysis stores both analysis arrays and marks the alert complete in one write.
func (s *Service) AttachAnalysis(ctx context.Context, id uuid.UUID, waveform []float64, spectrogram [][]float64) error {
	err := s.store.AttachAnalysis(ctx, id, store.AnalysisResult{
		Status:      models.AnalysisComplete,
		Waveform:    waveform,
		Spectrogram: spectrogram,
		AnalyzedAt:  time.Now().UTC(),
	})
	if err != nil {
		slog.Error("attaching analysis", "op", "attach_analysis", "alert_id", id, "error", err)
		return fmt.Errorf("attaching analysis to %s: %w", id, err)
	}

	s.setStatus(ctx, id, models.AnalysisComplete)
	s.publishByID(ctx, models.EventAlertAnalyzed, id)
	return nil
}

// FailAnalysis records that analysis for the alert will not complete.
func (s *Service) FailAnalysis(ctx context.Context, id uuid.UUID, reason string) error {
	err := s.store.AttachAnalysis(ctx, id, store.AnalysisResult{
		Status:     models.AnalysisFailed,
		Error:      reason,
		AnalyzedAt: time.Now().UTC(),
	})
	if err != nil {
		slog.Error("recording analysis failure", "op", "fail_analysis", "alert_id", id, "error", err)
		return fmt.Errorf("recording analysis failure for %s: %w", id, err)
	}

	s.setStatus(ctx, id, models.AnalysisFailed)
	s.publishByID(ctx, models.EventAlertAnalysisFailed, id)
	return nil
}

// AnalysisStatus returns the alert's analysis status, preferring the cache.
func (s *Service) AnalysisStatus(ctx context.Context, id uuid.UUID) (models.AnalysisStatus, error) {
	if status, ok, err := s.cache.GetAnalysisStatus(ctx, id); err == nil && ok {
		return status, nil
	} else if err != nil {
		slog.Warn("reading cached analysis status", "alert_id", id, "error", err)
	}

	a, err := s.store.GetAlert(ctx, id)
	if err != nil {
		return "", fmt.Errorf("getting analysis status for %s: %w", id, err)
	}
	s.setStatus(ctx, id, a.AnalysisStatus)
	return a.AnalysisStatus, nil
}

// ParseAlertID parses a path or query alert id.
func ParseAlertID(raw string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, invalid(MsgAlertIDRequired)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, invalid(MsgInvalidAlertID)
	}
	return id, nil
}

func (s *Service) setStatus(ctx context.Context, id uuid.UUID, status models.AnalysisStatus) {
	if err := s.cache.SetAnalysisStatus(ctx, id, status, cache.AnalysisStatusTTL); err != nil {
		slog.Warn("caching analysis status", "alert_id", id, "status", status, "error", err)
	}
}

func (s *Service) publish(eventType string, a *models.AnomalyAlert) {
	s.pub.Publish(models.AlertEvent{
		Type:      eventType,
		Alert:     a,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Service) publishByID(ctx context.Context, eventType string, id uuid.UUID) {
	a, err := s.store.GetAlert(ctx, id)
	if err != nil {
		slog.Warn("loading alert for event", "alert_id", id, "event", eventType, "error", err)
		return
	}
	s.publish(eventType, a)
}
