package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/soundwatch/internal/alert"
	"github.com/kiranshivaraju/soundwatch/internal/api/response"
	"github.com/kiranshivaraju/soundwatch/internal/audio"
	"github.com/kiranshivaraju/soundwatch/internal/metrics"
	"github.com/kiranshivaraju/soundwatch/pkg/models"
)

const (
	uploadField = "audio"
	// formOverhead leaves room for the text fields and multipart framing.
	formOverhead = 1 << 20
	// memoryLimit is how much of the form ParseMultipartForm keeps in RAM.
	memoryLimit = 1 << 20
	// maxNameAttempts bounds the suffixes tried when a stored name is taken.
	maxNameAttempts = 100
)

var wavMIMETypes = map[string]bool{
	"audio/wav":   true,
	"audio/x-wav": true,
	"audio/wave":  true,
}

// UploadOptions configures where and how large uploads are stored.
type UploadOptions struct {
	Dir      string
	MaxBytes int64
	Metrics  *metrics.Metrics
	// Now is overridable for tests.
	Now func() time.Time
}

// NewUploadHandler returns an http.HandlerFunc for POST /api/alerts/upload.
// The recording is written to opts.Dir and validated before the alert is
// created; a rejected or failed upload leaves no file behind.
func NewUploadHandler(svc AlertService, opts UploadOptions) http.HandlerFunc {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = audio.MaxFileSize
	}

	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, opts.MaxBytes+formOverhead)
		if err := r.ParseMultipartForm(memoryLimit); err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				reject(w, opts.Metrics, "too_large", fmt.Sprintf("Audio file exceeds the %d MB limit", opts.MaxBytes>>20))
				return
			}
			reject(w, opts.Metrics, "bad_form", "Request must be multipart/form-data")
			return
		}
		defer func() {
			if r.MultipartForm != nil {
				_ = r.MultipartForm.RemoveAll()
			}
		}()

		file, header, err := r.FormFile(uploadField)
		if err != nil {
			reject(w, opts.Metrics, "missing_file", alert.MsgAudioFileRequired)
			return
		}
		defer file.Close()

		if !acceptedAudio(header) {
			reject(w, opts.Metrics, "unsupported_format", "Only .wav files are allowed")
			return
		}

		alertType := models.AlertType(r.FormValue("alertType"))
		if !alertType.Valid() {
			reject(w, opts.Metrics, "invalid_type", alert.MsgInvalidAlertType)
			return
		}
		reason := r.FormValue("suspectedReason")
		if strings.TrimSpace(reason) == "" {
			reject(w, opts.Metrics, "missing_reason", alert.MsgReasonRequired)
			return
		}

		path, err := saveUpload(opts.Dir, audio.StoredName(opts.Now(), header.Filename), file)
		if err != nil {
			slog.Error("storing upload", "op", "upload", "error", err)
			response.Error(w, http.StatusInternalServerError, "Failed to create alert")
			return
		}

		if err := audio.ValidateWithLimit(path, opts.MaxBytes); err != nil {
			removeUpload(path)
			var fe *audio.FileError
			if errors.As(err, &fe) {
				reject(w, opts.Metrics, rejectReason(fe.Kind), fe.Error())
				return
			}
			slog.Error("validating upload", "op", "upload", "path", path, "error", err)
			response.Error(w, http.StatusInternalServerError, "Failed to create alert")
			return
		}

		created, err := svc.CreateAlert(r.Context(), alert.CreateParams{
			AlertType:       alertType,
			AudioFilePath:   path,
			SuspectedReason: reason,
			Action:          r.FormValue("action"),
			Comment:         r.FormValue("comment"),
		})
		if err != nil {
			removeUpload(path)
			writeError(w, err, "upload", uuid.Nil, "Failed to create alert")
			return
		}

		slog.Info("upload stored", "alert_id", created.ID, "path", path, "bytes", header.Size)
		response.Created(w, "Alert created successfully", created)
	}
}

// acceptedAudio accepts a WAV content type or a .wav filename.
func acceptedAudio(h *multipart.FileHeader) bool {
	ct := strings.ToLower(strings.TrimSpace(strings.Split(h.Header.Get("Content-Type"), ";")[0]))
	return wavMIMETypes[ct] || audio.HasWAVExtension(h.Filename)
}

func saveUpload(dir, name string, src io.Reader) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	dst, path, err := createUnique(dir, name)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		removeUpload(path)
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := dst.Close(); err != nil {
		removeUpload(path)
		return "", fmt.Errorf("close %s: %w", name, err)
	}
	return path, nil
}

// createUnique opens dir/name for writing without replacing an existing file.
// On a collision it tries name-1.ext, name-2.ext and so on.
func createUnique(dir, name string) (*os.File, string, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	candidate := name
	for i := 1; i <= maxNameAttempts; i++ {
		path := filepath.Join(dir, candidate)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, path, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", fmt.Errorf("create %s: %w", candidate, err)
		}
		candidate = fmt.Sprintf("%s-%d%s", stem, i, ext)
	}
	return nil, "", fmt.Errorf("create %s: no free name after %d attempts", name, maxNameAttempts)
}

func removeUpload(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("removing rejected upload", "path", path, "error", err)
	}
}

func reject(w http.ResponseWriter, m *metrics.Metrics, reason, message string) {
	m.UploadRejected(reason)
	response.Error(w, http.StatusBadRequest, message)
}

func rejectReason(kind error) string {
	switch kind {
	case audio.ErrFileTooLarge:
		return "too_large"
	case audio.ErrUnsupportedFormat:
		return "unsupported_format"
	default:
		return "not_found"
	}
}
