package models

import "context"

// AudioAnalyzer turns a stored recording into waveform and spectrogram arrays.
// Never call a specific analyzer directly; always inject this interface.
type AudioAnalyzer interface {
	// Waveform returns time-domain amplitude samples for the recording.
	Waveform(ctx context.Context, path string) ([]float64, error)
	// Spectrogram returns a time-major grid of frequency intensities.
	Spectrogram(ctx context.Context, path string) ([][]float64, error)
	// Name returns the analyzer identifier (e.g., "synthetic").
	Name() string
}

// AlertEvent is broadcast to live dashboard subscribers on alert lifecycle changes.
type AlertEvent struct {
	Type      string        `json:"type"`
	Alert     *AnomalyAlert `json:"alert"`
	Timestamp string        `json:"timestamp"`
}

const (
	EventAlertCreated        = "alert.created"
	EventAlertUpdated        = "alert.updated"
	EventAlertAnalyzed       = "alert.analyzed"
	EventAlertAnalysisFailed = "alert.analysis_failed"
)
