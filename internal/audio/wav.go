package audio

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	bitDepth    = 16
	numChannels = 1
	// pcmAudioFormat is the WAVE format tag for uncompressed PCM.
	pcmAudioFormat = 1
)

// WAVInfo is the header summary of a WAV file.
type WAVInfo struct {
	SampleRate  int
	NumChannels int
	BitDepth    int
	Duration    float64 // seconds
}

// WriteWAV writes samples in [-1, 1] as 16-bit mono PCM. Values outside the
// range are clipped. Parent directories are created as needed.
func WriteWAV(path string, samples []float64, sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("write wav: sample rate must be positive, got %d", sampleRate)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("write wav: create directories: %w", err)
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	defer out.Close()

	ints := make([]int, len(samples))
	for i, s := range samples {
		s = math.Max(-1, math.Min(1, s))
		ints[i] = int(math.Round(s * math.MaxInt16))
	}

	enc := wav.NewEncoder(out, sampleRate, bitDepth, numChannels, pcmAudioFormat)
	buf := &goaudio.IntBuffer{
		Data:           ints,
		Format:         &goaudio.Format{SampleRate: sampleRate, NumChannels: numChannels},
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("write wav: encode: %w", err)
	}
	// Close finalizes the RIFF header sizes.
	if err := enc.Close(); err != nil {
		return fmt.Errorf("write wav: finalize: %w", err)
	}
	return nil
}

// ReadWAVInfo decodes the header of the WAV file at path.
func ReadWAVInfo(path string) (WAVInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return WAVInfo{}, fmt.Errorf("read wav: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return WAVInfo{}, fmt.Errorf("read wav: %s: %w", filepath.Base(path), ErrUnsupportedFormat)
	}
	d, err := dec.Duration()
	if err != nil {
		return WAVInfo{}, fmt.Errorf("read wav: duration: %w", err)
	}
	return WAVInfo{
		SampleRate:  int(dec.SampleRate),
		NumChannels: int(dec.NumChans),
		BitDepth:    int(dec.BitDepth),
		Duration:    d.Seconds(),
	}, nil
}

// Tone returns seconds of a sine at freq Hz with the given peak amplitude.
func Tone(freq, amplitude, seconds float64, sampleRate int) []float64 {
	n := int(seconds * float64(sampleRate))
	out := make([]float64, n)
	for i := range out {
		out[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return out
}
