package alert

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/soundwatch/internal/cache"
	"github.com/kiranshivaraju/soundwatch/internal/store"
	"github.com/kiranshivaraju/soundwatch/pkg/models"
)

// --- mocks ---

// faultyStore wraps a MemoryStore and injects errors per operation.
type faultyStore struct {
	*store.MemoryStore
	insertErr error
	listErr   error
	attachErr error
}

func newFaultyStore() *faultyStore {
	return &faultyStore{MemoryStore: store.NewMemoryStore()}
}

func (s *faultyStore) InsertAlert(ctx context.Context, a *models.AnomalyAlert) (*models.AnomalyAlert, error) {
	if s.insertErr != nil {
		return nil, s.insertErr
	}
	return s.MemoryStore.InsertAlert(ctx, a)
}

func (s *faultyStore) ListAlerts(ctx context.Context, f store.AlertFilter) ([]*models.AnomalyAlert, int, error) {
	if s.listErr != nil {
		return nil, 0, s.listErr
	}
	return s.MemoryStore.ListAlerts(ctx, f)
}

func (s *faultyStore) AttachAnalysis(ctx context.Context, id uuid.UUID, r store.AnalysisResult) error {
	if s.attachErr != nil {
		return s.attachErr
	}
	return s.MemoryStore.AttachAnalysis(ctx, id, r)
}

var _ store.Store = (*faultyStore)(nil)

// brokenCache fails every call, standing in for an unreachable Redis.
type brokenCache struct{}

var errCacheDown = errors.New("cache down")

func (brokenCache) Ping(context.Context) error { return errCacheDown }
func (brokenCache) SetAnalysisStatus(context.Context, uuid.UUID, models.AnalysisStatus, time.Duration) error {
	return errCacheDown
}
func (brokenCache) GetAnalysisStatus(context.Context, uuid.UUID) (models.AnalysisStatus, bool, error) {
	return "", false, errCacheDown
}
func (brokenCache) DeleteAnalysisStatus(context.Context, uuid.UUID) error { return errCacheDown }
func (brokenCache) IncrWithExpiry(context.Context, string, time.Duration) (int64, error) {
	return 0, errCacheDown
}
func (brokenCache) Close() error { return nil }

var _ cache.Cache = brokenCache{}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []models.AlertEvent
}

func (p *recordingPublisher) Publish(evt models.AlertEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}
