package audio

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"sync"
	"time"
)

const (
	WaveformSamples  = 1000
	SpectrogramTimes = 50
	SpectrogramFreqs = 64

	// spectrogramMaxHz is the top of the synthetic frequency axis.
	spectrogramMaxHz = 8000.0
	noiseAmplitude   = 0.05
)

// Synthetic produces plausible-looking waveform and spectrogram data without
// decoding the recording. It only checks that the file exists.
type Synthetic struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSynthetic returns a Synthetic analyzer with a deterministic random source.
func NewSynthetic(seed int64) *Synthetic {
	return &Synthetic{rng: rand.New(rand.NewSource(seed))}
}

func (s *Synthetic) Name() string { return "synthetic" }

// Waveform returns WaveformSamples points of three superposed sines (10, 20
// and 30 Hz over a one-second axis) plus uniform noise in [-0.05, 0.05].
func (s *Synthetic) Waveform(ctx context.Context, path string) ([]float64, error) {
	if err := checkReadable(ctx, path); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]float64, WaveformSamples)
	for i := range out {
		t := float64(i) / WaveformSamples
		v := 0.5*math.Sin(2*math.Pi*10*t) +
			0.3*math.Sin(2*math.Pi*20*t) +
			0.2*math.Sin(2*math.Pi*30*t)
		out[i] = v + (s.rng.Float64()*2-1)*noiseAmplitude
	}
	return out, nil
}

// Spectrogram returns a SpectrogramTimes x SpectrogramFreqs grid in [0, 1].
// Two bands (1-3 kHz and 4-6 kHz) pulse over time and about 5% of cells spike.
func (s *Synthetic) Spectrogram(ctx context.Context, path string) ([][]float64, error) {
	if err := checkReadable(ctx, path); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([][]float64, SpectrogramTimes)
	for t := range out {
		row := make([]float64, SpectrogramFreqs)
		tm := float64(t) / SpectrogramTimes
		for f := range row {
			freq := float64(f) / SpectrogramFreqs * spectrogramMaxHz
			v := s.rng.Float64() * 0.1
			if freq > 1000 && freq < 3000 {
				v += 0.3 * math.Sin(2*math.Pi*2*tm)
			}
			if freq > 4000 && freq < 6000 {
				v += 0.4 * math.Sin(2*math.Pi*1.5*tm)
			}
			if s.rng.Float64() < 0.05 {
				v += s.rng.Float64() * 0.8
			}
			row[f] = clamp01(v)
		}
		out[t] = row
	}
	return out, nil
}

func checkReadable(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &FileError{Path: path, Kind: ErrFileNotFound}
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return &FileError{Path: path, Kind: ErrFileNotFound}
	}
	return nil
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// DefaultSeed seeds the production analyzer from the clock.
func DefaultSeed() int64 { return time.Now().UnixNano() }
