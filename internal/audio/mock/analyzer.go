package mock

import (
	"context"

	"github.com/kiranshivaraju/soundwatch/internal/audio"
	"github.com/kiranshivaraju/soundwatch/pkg/models"
)

// MockAnalyzer satisfies models.AudioAnalyzer for testing.
type MockAnalyzer struct {
	Name_           string
	WaveformFunc    func(ctx context.Context, path string) ([]float64, error)
	SpectrogramFunc func(ctx context.Context, path string) ([][]float64, error)
}

func (m *MockAnalyzer) Name() string { return m.Name_ }

func (m *MockAnalyzer) Waveform(ctx context.Context, path string) ([]float64, error) {
	if m.WaveformFunc != nil {
		return m.WaveformFunc(ctx, path)
	}
	return []float64{}, nil
}

func (m *MockAnalyzer) Spectrogram(ctx context.Context, path string) ([][]float64, error) {
	if m.SpectrogramFunc != nil {
		return m.SpectrogramFunc(ctx, path)
	}
	return [][]float64{}, nil
}

// NewMockAnalyzer returns a MockAnalyzer with small fixed outputs.
func NewMockAnalyzer() *MockAnalyzer {
	return &MockAnalyzer{
		Name_: "mock",
		WaveformFunc: func(_ context.Context, _ string) ([]float64, error) {
			return []float64{0.1, 0.5, -0.3, 0.2}, nil
		},
		SpectrogramFunc: func(_ context.Context, _ string) ([][]float64, error) {
			return [][]float64{{0.1, 0.2}, {0.3, 0.4}}, nil
		},
	}
}

// NewFailingAnalyzer returns a MockAnalyzer whose spectrogram always fails with err.
// The waveform still succeeds, so callers must wait for both halves.
func NewFailingAnalyzer(err error) *MockAnalyzer {
	m := NewMockAnalyzer()
	m.Name_ = "mock-failing"
	m.SpectrogramFunc = func(_ context.Context, _ string) ([][]float64, error) {
		return nil, err
	}
	return m
}

// NewBlockingAnalyzer returns a MockAnalyzer that blocks until its context is cancelled.
func NewBlockingAnalyzer() *MockAnalyzer {
	return &MockAnalyzer{
		Name_: "mock-blocking",
		WaveformFunc: func(ctx context.Context, _ string) ([]float64, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
		SpectrogramFunc: func(ctx context.Context, _ string) ([][]float64, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
}

// NewPanickingAnalyzer returns a MockAnalyzer whose waveform panics.
func NewPanickingAnalyzer() *MockAnalyzer {
	m := NewMockAnalyzer()
	m.Name_ = "mock-panicking"
	m.WaveformFunc = func(_ context.Context, _ string) ([]float64, error) {
		panic("analyzer exploded")
	}
	return m
}

// Compile-time checks that both analyzers implement AudioAnalyzer.
var (
	_ models.AudioAnalyzer = (*MockAnalyzer)(nil)
	_ models.AudioAnalyzer = (*audio.Synthetic)(nil)
)
