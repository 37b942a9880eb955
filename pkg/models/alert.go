// Package models contains shared data models used across the SoundWatch codebase.
package models

import (
	"time"

	"github.com/google/uuid"
)

// AlertType is the severity class an operator assigns to an anomaly.
type AlertType string

const (
	AlertTypeMild     AlertType = "mild"
	AlertTypeModerate AlertType = "moderate"
	AlertTypeSevere   AlertType = "severe"
)

// Valid reports whether t is one of mild, moderate or severe.
func (t AlertType) Valid() bool {
	switch t {
	case AlertTypeMild, AlertTypeModerate, AlertTypeSevere:
		return true
	}
	return false
}

// AnalysisStatus tracks the background waveform/spectrogram job for an alert.
type AnalysisStatus string

const (
	AnalysisPending  AnalysisStatus = "pending"
	AnalysisComplete AnalysisStatus = "complete"
	AnalysisFailed   AnalysisStatus = "failed"
)

// AnomalyAlert is a single detected acoustic anomaly tied to an uploaded recording.
// WaveformData and SpectrogramData are empty until analysis completes and are
// always written together.
type AnomalyAlert struct {
	ID              uuid.UUID      `db:"id"               json:"_id"`
	DetectionTime   time.Time      `db:"detection_time"   json:"detectionTime"`
	AlertType       AlertType      `db:"alert_type"       json:"alertType"`
	AudioFilePath   string         `db:"audio_file_path"  json:"audioFilePath"`
	WaveformData    []float64      `db:"waveform_data"    json:"waveformData"`
	SpectrogramData [][]float64    `db:"spectrogram_data" json:"spectrogramData"`
	SuspectedReason string         `db:"suspected_reason" json:"suspectedReason"`
	Action          string         `db:"action"           json:"action"`
	Comment         string         `db:"comment"          json:"comment"`
	AnalysisStatus  AnalysisStatus `db:"analysis_status"  json:"analysisStatus"`
	AnalysisError   string         `db:"analysis_error"   json:"analysisError,omitempty"`
	AnalyzedAt      *time.Time     `db:"analyzed_at"      json:"analyzedAt,omitempty"`
	UpdatedAt       time.Time      `db:"updated_at"       json:"updatedAt"`
}

// Clone returns a deep copy so callers can't mutate shared sample slices.
func (a *AnomalyAlert) Clone() *AnomalyAlert {
	if a == nil {
		return nil
	}
	c := *a
	c.WaveformData = append(make([]float64, 0, len(a.WaveformData)), a.WaveformData...)
	c.SpectrogramData = make([][]float64, len(a.SpectrogramData))
	for i, row := range a.SpectrogramData {
		c.SpectrogramData[i] = append(make([]float64, 0, len(row)), row...)
	}
	if a.AnalyzedAt != nil {
		t := *a.AnalyzedAt
		c.AnalyzedAt = &t
	}
	return &c
}

// Analyzed reports whether both analysis arrays are populated.
func (a *AnomalyAlert) Analyzed() bool {
	return len(a.WaveformData) > 0 && len(a.SpectrogramData) > 0
}
