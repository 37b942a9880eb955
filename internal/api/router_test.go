package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/soundwatch/internal/api"
	mw "github.com/kiranshivaraju/soundwatch/internal/api/middleware"
	"github.com/kiranshivaraju/soundwatch/internal/cache"
	"github.com/kiranshivaraju/soundwatch/internal/metrics"
	"github.com/kiranshivaraju/soundwatch/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- stub cache that always allows ---

type stubCache struct{ hits int64 }

func (c *stubCache) Ping(_ context.Context) error { return nil }
func (c *stubCache) SetAnalysisStatus(_ context.Context, _ uuid.UUID, _ models.AnalysisStatus, _ time.Duration) error {
	return nil
}
func (c *stubCache) GetAnalysisStatus(_ context.Context, _ uuid.UUID) (models.AnalysisStatus, bool, error) {
	return "", false, nil
}
func (c *stubCache) DeleteAnalysisStatus(_ context.Context, _ uuid.UUID) error { return nil }
func (c *stubCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	c.hits++
	return c.hits, nil
}
func (c *stubCache) Close() error { return nil }

// --- router tests ---

func ok(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func newTestRouter(t *testing.T, deps api.Dependencies) http.Handler {
	t.Helper()
	if deps.UploadDir == "" {
		deps.UploadDir = t.TempDir()
	}
	return api.NewRouter(deps)
}

func TestRouter_HealthEndpoint(t *testing.T) {
	router := newTestRouter(t, api.Dependencies{HealthHandler: ok})

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_UnwiredEndpoints_NotImplemented(t *testing.T) {
	router := newTestRouter(t, api.Dependencies{})

	endpoints := []struct {
		method string
		path   string
	}{
		{"GET", "/health"},
		{"GET", "/api/alerts"},
		{"POST", "/api/alerts/upload"},
		{"GET", "/api/alerts/" + uuid.NewString()},
		{"PUT", "/api/alerts/" + uuid.NewString()},
		{"GET", "/api/alerts/" + uuid.NewString() + "/analysis"},
	}

	for _, ep := range endpoints {
		t.Run(ep.method+" "+ep.path, func(t *testing.T) {
			req := httptest.NewRequest(ep.method, ep.path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusNotImplemented, w.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, false, body["success"])
		})
	}
}

func TestRouter_NotFound(t *testing.T) {
	router := newTestRouter(t, api.Dependencies{})

	for _, path := range []string{"/api/v1/alerts", "/metrics", "/ws/alerts"} {
		req := httptest.NewRequest("GET", path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code, path)
		assert.JSONEq(t, `{"success":false,"message":"Route not found"}`, w.Body.String())
	}
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	router := newTestRouter(t, api.Dependencies{ListAlertsHandler: ok})

	req := httptest.NewRequest("DELETE", "/api/alerts/"+uuid.NewString(), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.JSONEq(t, `{"success":false,"message":"Method not allowed"}`, w.Body.String())
}

func TestRouter_UploadRateLimitOnlyOnUpload(t *testing.T) {
	c := &stubCache{}
	router := newTestRouter(t, api.Dependencies{
		UploadRateLimit:   mw.NewRateLimit(c, "upload", 1),
		UploadHandler:     ok,
		ListAlertsHandler: ok,
	})

	send := func(method, path string) int {
		req := httptest.NewRequest(method, path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send("POST", "/api/alerts/upload"))
	assert.Equal(t, http.StatusTooManyRequests, send("POST", "/api/alerts/upload"))
	assert.Equal(t, http.StatusOK, send("GET", "/api/alerts"))
	assert.Equal(t, int64(2), c.hits)
}

func TestRouter_ServesUploads(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "1700000000000_pump.wav"), []byte("RIFF"), 0o644))
	router := newTestRouter(t, api.Dependencies{UploadDir: dir})

	req := httptest.NewRequest("GET", "/uploads/1700000000000_pump.wav", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "RIFF", w.Body.String())

	for _, path := range []string{"/uploads/", "/uploads/missing.wav", "/uploads/../router.go"} {
		req := httptest.NewRequest("GET", path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	m, err := metrics.New()
	require.NoError(t, err)
	m.AlertCreated("severe")
	router := newTestRouter(t, api.Dependencies{Metrics: m.Handler()})

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `soundwatch_alerts_created_total{alert_type="severe"} 1`)
}

func TestRouter_CORSPreflight(t *testing.T) {
	router := newTestRouter(t, api.Dependencies{ClientURL: "http://localhost:3000", ListAlertsHandler: ok})

	req := httptest.NewRequest("OPTIONS", "/api/alerts", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "PUT")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}

var _ cache.Cache = (*stubCache)(nil)
