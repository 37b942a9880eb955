package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/soundwatch/pkg/models"
)

var ErrNotFound = errors.New("resource not found")

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Store is the data access interface. All alert persistence goes through here.
type Store interface {
	Ping(ctx context.Context) error

	InsertAlert(ctx context.Context, alert *models.AnomalyAlert) (*models.AnomalyAlert, error)
	GetAlert(ctx context.Context, id uuid.UUID) (*models.AnomalyAlert, error)
	ListAlerts(ctx context.Context, filter AlertFilter) ([]*models.AnomalyAlert, int, error)
	UpdateAlert(ctx context.Context, id uuid.UUID, upd AlertUpdate) (*models.AnomalyAlert, error)
	AttachAnalysis(ctx context.Context, id uuid.UUID, result AnalysisResult) error
	DeleteAlert(ctx context.Context, id uuid.UUID) (bool, error)
}

// AlertFilter selects alerts for listing. A nil field means the clause is not applied.
type AlertFilter struct {
	StartDate *time.Time
	EndDate   *time.Time
	AlertType *models.AlertType
	Page      int
	Limit     int
}

// Window returns the normalized limit and offset for the filter's page.
func (f AlertFilter) Window() (limit, offset int) {
	limit = f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}
	return limit, (page - 1) * limit
}

// Matches reports whether a satisfies every set clause of the filter.
func (f AlertFilter) Matches(a *models.AnomalyAlert) bool {
	if f.StartDate != nil && a.DetectionTime.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && a.DetectionTime.After(*f.EndDate) {
		return false
	}
	if f.AlertType != nil && a.AlertType != *f.AlertType {
		return false
	}
	return true
}

// AlertUpdate is a partial update of the operator-editable fields. Nil fields are left untouched.
type AlertUpdate struct {
	Action          *string `json:"action,omitempty"`
	Comment         *string `json:"comment,omitempty"`
	SuspectedReason *string `json:"suspectedReason,omitempty"`
}

// Empty reports whether the update carries no fields.
func (u AlertUpdate) Empty() bool {
	return u.Action == nil && u.Comment == nil && u.SuspectedReason == nil
}

// AnalysisResult is written to an alert in a single update once background analysis ends.
type AnalysisResult struct {
	Status      models.AnalysisStatus
	Waveform    []float64
	Spectrogram [][]float64
	Error       string
	AnalyzedAt  time.Time
}

// prepareInsert fills store-generated fields on a copy of alert.
func prepareInsert(alert *models.AnomalyAlert) *models.AnomalyAlert {
	a := alert.Clone()
	now := time.Now().UTC()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.DetectionTime.IsZero() {
		a.DetectionTime = now
	}
	a.UpdatedAt = now
	if a.AnalysisStatus == "" {
		a.AnalysisStatus = models.AnalysisPending
	}
	return a
}
