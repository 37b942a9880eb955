package middleware_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	mw "github.com/kiranshivaraju/soundwatch/internal/api/middleware"
	"github.com/kiranshivaraju/soundwatch/internal/cache"
	"github.com/kiranshivaraju/soundwatch/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mock Cache ---

type mockCache struct {
	counter int64
	keys    []string
	err     error
}

func (m *mockCache) Ping(_ context.Context) error { return nil }
func (m *mockCache) SetAnalysisStatus(_ context.Context, _ uuid.UUID, _ models.AnalysisStatus, _ time.Duration) error {
	return nil
}
func (m *mockCache) GetAnalysisStatus(_ context.Context, _ uuid.UUID) (models.AnalysisStatus, bool, error) {
	return "", false, nil
}
func (m *mockCache) DeleteAnalysisStatus(_ context.Context, _ uuid.UUID) error { return nil }
func (m *mockCache) IncrWithExpiry(_ context.Context, key string, _ time.Duration) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.keys = append(m.keys, key)
	m.counter++
	return m.counter, nil
}
func (m *mockCache) Close() error { return nil }

var _ cache.Cache = (*mockCache)(nil)

// --- helpers ---

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func body(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var b map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &b))
	return b
}

func withClient(r *http.Request, client string) *http.Request {
	return r.WithContext(mw.SetClientKey(r.Context(), client))
}

// ========================================
// Client Key Middleware Tests
// ========================================

func TestClientKey_FromRemoteAddr(t *testing.T) {
	var got string
	handler := mw.ClientKey(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got, _ = mw.GetClientKey(r)
	}))

	req := httptest.NewRequest("POST", "/api/alerts/upload", nil)
	req.RemoteAddr = "10.1.2.3:54321"
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "10.1.2.3", got)
}

func TestClientKey_BehindRealIP(t *testing.T) {
	var got string
	handler := middleware.RealIP(mw.ClientKey(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got, _ = mw.GetClientKey(r)
	})))

	req := httptest.NewRequest("POST", "/api/alerts/upload", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "203.0.113.9", got)
}

func TestGetClientKey_Missing(t *testing.T) {
	_, ok := mw.GetClientKey(httptest.NewRequest("GET", "/", nil))
	assert.False(t, ok)
}

// ========================================
// Rate Limit Middleware Tests
// ========================================

func TestRateLimit_AllowsUnderLimit(t *testing.T) {
	mc := &mockCache{counter: 0}
	rl := mw.NewRateLimit(mc, "upload", 30)

	req := withClient(httptest.NewRequest("POST", "/api/alerts/upload", nil), "10.0.0.7")
	w := httptest.NewRecorder()
	rl.Limit(okHandler()).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "30", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "29", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, []string{"ratelimit:upload:10.0.0.7"}, mc.keys)
}

func TestRateLimit_RejectsOverLimit(t *testing.T) {
	mc := &mockCache{counter: 30} // next IncrWithExpiry will return 31
	rl := mw.NewRateLimit(mc, "upload", 30)

	req := withClient(httptest.NewRequest("POST", "/api/alerts/upload", nil), "10.0.0.7")
	w := httptest.NewRecorder()
	rl.Limit(okHandler()).ServeHTTP(w, req)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	b := body(t, w)
	assert.Equal(t, false, b["success"])
	assert.NotEmpty(t, b["message"])
}

func TestRateLimit_DefaultLimit(t *testing.T) {
	mc := &mockCache{}
	rl := mw.NewRateLimit(mc, "upload", 0)

	w := httptest.NewRecorder()
	rl.Limit(okHandler()).ServeHTTP(w, withClient(httptest.NewRequest("POST", "/", nil), "a"))
	assert.Equal(t, "30", w.Header().Get("X-RateLimit-Limit"))
}

func TestRateLimit_NoClientKey_PassThrough(t *testing.T) {
	mc := &mockCache{}
	rl := mw.NewRateLimit(mc, "upload", 30)

	w := httptest.NewRecorder()
	rl.Limit(okHandler()).ServeHTTP(w, httptest.NewRequest("POST", "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, mc.keys)
}

func TestRateLimit_CacheError_FailsOpen(t *testing.T) {
	mc := &mockCache{err: errors.New("redis down")}
	rl := mw.NewRateLimit(mc, "upload", 1)

	w := httptest.NewRecorder()
	rl.Limit(okHandler()).ServeHTTP(w, withClient(httptest.NewRequest("POST", "/", nil), "a"))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimit_WithMemoryCache(t *testing.T) {
	rl := mw.NewRateLimit(cache.NewMemoryCache(0), "upload", 2)
	handler := rl.Limit(okHandler())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, withClient(httptest.NewRequest("POST", "/", nil), "10.9.9.9"))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)

	// Another client has its own window.
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, withClient(httptest.NewRequest("POST", "/", nil), "10.8.8.8"))
	assert.Equal(t, http.StatusOK, w.Code)
}

// ========================================
// Recovery Middleware Tests
// ========================================

func TestRecovery_CatchesPanic(t *testing.T) {
	panicking := http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		panic("something went wrong")
	})

	w := httptest.NewRecorder()
	mw.Recovery(panicking).ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, false, body(t, w)["success"])
}

func TestRecovery_NoPanic(t *testing.T) {
	w := httptest.NewRecorder()
	mw.Recovery(okHandler()).ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRecovery_RepanicsAbortHandler(t *testing.T) {
	aborting := http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		panic(http.ErrAbortHandler)
	})
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		mw.Recovery(aborting).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	})
}

// ========================================
// Logging Middleware Tests
// ========================================

func TestLogger_SetsStatus(t *testing.T) {
	w := httptest.NewRecorder()
	mw.Logger(okHandler()).ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLogger_PassesThroughErrorStatus(t *testing.T) {
	notFound := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	w := httptest.NewRecorder()
	mw.Logger(notFound).ServeHTTP(w, httptest.NewRequest("GET", "/missing", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLogger_HijackUnsupported(t *testing.T) {
	var err error
	handler := mw.Logger(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _, err = w.(http.Hijacker).Hijack()
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/ws/alerts", nil))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "hijacking")
}

// ========================================
// CORS Middleware Tests
// ========================================

func TestCORS_ConfiguredOrigin(t *testing.T) {
	handler := mw.CORS("http://dashboard.example")(okHandler())

	req := httptest.NewRequest("GET", "/api/alerts", nil)
	req.Header.Set("Origin", "http://dashboard.example")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, "http://dashboard.example", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest("GET", "/api/alerts", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_AnyOriginWhenUnset(t *testing.T) {
	handler := mw.CORS("")(okHandler())

	req := httptest.NewRequest("GET", "/api/alerts", nil)
	req.Header.Set("Origin", "http://anything.example")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_Preflight(t *testing.T) {
	handler := mw.CORS("http://dashboard.example")(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/api/alerts/abc", nil)
	req.Header.Set("Origin", "http://dashboard.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Contains(t, []int{http.StatusOK, http.StatusNoContent}, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPut)
}
