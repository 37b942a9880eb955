package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/soundwatch/pkg/models"
)

// MemoryStore implements the Store interface in process memory. It is the
// fallback when no database is configured and backs most unit tests.
type MemoryStore struct {
	mu     sync.RWMutex
	alerts map[uuid.UUID]*models.AnomalyAlert
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{alerts: make(map[uuid.UUID]*models.AnomalyAlert)}
}

func (s *MemoryStore) Ping(_ context.Context) error { return nil }

func (s *MemoryStore) InsertAlert(_ context.Context, alert *models.AnomalyAlert) (*models.AnomalyAlert, error) {
	a := prepareInsert(alert)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts[a.ID] = a
	return a.Clone(), nil
}

func (s *MemoryStore) GetAlert(_ context.Context, id uuid.UUID) (*models.AnomalyAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.alerts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return a.Clone(), nil
}

func (s *MemoryStore) ListAlerts(_ context.Context, filter AlertFilter) ([]*models.AnomalyAlert, int, error) {
	s.mu.RLock()
	matched := make([]*models.AnomalyAlert, 0, len(s.alerts))
	for _, a := range s.alerts {
		if filter.Matches(a) {
			matched = append(matched, a.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].DetectionTime.Equal(matched[j].DetectionTime) {
			return matched[i].ID.String() < matched[j].ID.String()
		}
		return matched[i].DetectionTime.After(matched[j].DetectionTime)
	})

	total := len(matched)
	limit, offset := filter.Window()
	if offset >= total {
		return []*models.AnomalyAlert{}, total, nil
	}
	end := min(offset+limit, total)

	return matched[offset:end], total, nil
}

func (s *MemoryStore) UpdateAlert(_ context.Context, id uuid.UUID, upd AlertUpdate) (*models.AnomalyAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.alerts[id]
	if !ok {
		return nil, ErrNotFound
	}
	if upd.Empty() {
		return a.Clone(), nil
	}
	if upd.Action != nil {
		a.Action = *upd.Action
	}
	if upd.Comment != nil {
		a.Comment = *upd.Comment
	}
	if upd.SuspectedReason != nil {
		a.SuspectedReason = *upd.SuspectedReason
	}
	a.UpdatedAt = time.Now().UTC()
	return a.Clone(), nil
}

func (s *MemoryStore) AttachAnalysis(_ context.Context, id uuid.UUID, result AnalysisResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.alerts[id]
	if !ok {
		return ErrNotFound
	}
	tmp := (&models.AnomalyAlert{WaveformData: result.Waveform, SpectrogramData: result.Spectrogram}).Clone()
	a.WaveformData = tmp.WaveformData
	a.SpectrogramData = tmp.SpectrogramData
	a.AnalysisStatus = result.Status
	a.AnalysisError = result.Error
	analyzedAt := result.AnalyzedAt
	a.AnalyzedAt = &analyzedAt
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) DeleteAlert(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.alerts[id]; !ok {
		return false, nil
	}
	delete(s.alerts, id)
	return true, nil
}

// DeleteAll removes every alert and reports how many were removed.
func (s *MemoryStore) DeleteAll(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.alerts))
	s.alerts = make(map[uuid.UUID]*models.AnomalyAlert)
	return n, nil
}

var _ Store = (*MemoryStore)(nil)
