package audio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// MaxFileSize is the largest recording accepted for analysis.
const MaxFileSize int64 = 50 << 20

var (
	ErrFileNotFound      = errors.New("audio file not found")
	ErrFileTooLarge      = errors.New("audio file too large")
	ErrUnsupportedFormat = errors.New("unsupported audio format")
)

// FileError describes why a stored recording was rejected.
type FileError struct {
	Path  string
	Kind  error
	Size  int64
	Limit int64
}

func (e *FileError) Error() string {
	switch e.Kind {
	case ErrFileTooLarge:
		return fmt.Sprintf("%s: %s is %d bytes, limit is %d", e.Kind, filepath.Base(e.Path), e.Size, e.Limit)
	case ErrUnsupportedFormat:
		return fmt.Sprintf("%s: only .wav files are accepted, got %q", e.Kind, filepath.Ext(e.Path))
	default:
		return fmt.Sprintf("%s: %s", e.Kind, filepath.Base(e.Path))
	}
}

func (e *FileError) Unwrap() error { return e.Kind }

// Validate checks that path exists, is at most MaxFileSize bytes and carries a
// .wav extension. File content is not inspected.
func Validate(path string) error {
	return ValidateWithLimit(path, MaxFileSize)
}

// ValidateWithLimit is Validate with a caller-supplied size limit.
func ValidateWithLimit(path string, maxBytes int64) error {
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
	if info.Size() > maxBytes {
		return &FileError{Path: path, Kind: ErrFileTooLarge, Size: info.Size(), Limit: maxBytes}
	}
	if !HasWAVExtension(path) {
		return &FileError{Path: path, Kind: ErrUnsupportedFormat}
	}
	return nil
}

// HasWAVExtension reports whether name ends in .wav, ignoring case.
func HasWAVExtension(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".wav")
}
