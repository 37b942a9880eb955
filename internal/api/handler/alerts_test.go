package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiranshivaraju/soundwatch/internal/alert"
	"github.com/kiranshivaraju/soundwatch/internal/api/handler"
	"github.com/kiranshivaraju/soundwatch/internal/store"
	"github.com/kiranshivaraju/soundwatch/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockService records the last list params and returns canned errors.
type mockService struct {
	err        error
	listParams alert.ListParams
	status     models.AnalysisStatus
}

func (m *mockService) CreateAlert(_ context.Context, _ alert.CreateParams) (*models.AnomalyAlert, error) {
	return nil, m.err
}

func (m *mockService) ListAlerts(_ context.Context, p alert.ListParams) (*alert.ListResult, error) {
	m.listParams = p
	if m.err != nil {
		return nil, m.err
	}
	return &alert.ListResult{Alerts: []*models.AnomalyAlert{}, Page: 1, Limit: 10}, nil
}

func (m *mockService) GetAlert(_ context.Context, id uuid.UUID) (*models.AnomalyAlert, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.AnomalyAlert{ID: id}, nil
}

func (m *mockService) UpdateAlert(_ context.Context, id uuid.UUID, _ store.AlertUpdate) (*models.AnomalyAlert, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.AnomalyAlert{ID: id}, nil
}

func (m *mockService) AnalysisStatus(_ context.Context, _ uuid.UUID) (models.AnalysisStatus, error) {
	return m.status, m.err
}

var _ handler.AlertService = (*mockService)(nil)

func newMockRouter(svc handler.AlertService) http.Handler {
	r := chi.NewRouter()
	r.Get("/api/alerts", handler.NewListAlertsHandler(svc))
	r.Get("/api/alerts/{id}", handler.NewGetAlertHandler(svc))
	r.Put("/api/alerts/{id}", handler.NewUpdateAlertHandler(svc))
	r.Get("/api/alerts/{id}/analysis", handler.NewAnalysisStatusHandler(svc))
	return r
}

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestListAlerts_ForwardsQuery(t *testing.T) {
	svc := &mockService{}
	rec := serve(newMockRouter(svc), http.MethodGet,
		"/api/alerts?startDate=2024-03-01&endDate=2024-03-02&alertType=moderate&page=3&limit=20", "")
	require.Equal(t, http.StatusOK, rec.Code)

	p := svc.listParams
	require.NotNil(t, p.StartDate)
	require.NotNil(t, p.EndDate)
	require.NotNil(t, p.AlertType)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), *p.StartDate)
	assert.Equal(t, time.Date(2024, 3, 2, 23, 59, 59, 999999999, time.UTC), *p.EndDate)
	assert.Equal(t, models.AlertTypeModerate, *p.AlertType)
	assert.Equal(t, 3, p.Page)
	assert.Equal(t, 20, p.Limit)
}

func TestListAlerts_RFC3339Bounds(t *testing.T) {
	svc := &mockService{}
	rec := serve(newMockRouter(svc), http.MethodGet,
		"/api/alerts?startDate=2024-03-01T10:00:00Z&endDate=2024-03-01T12:00:00Z", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), svc.listParams.EndDate.UTC())
}

func TestListAlerts_NonNumericPagingFallsBack(t *testing.T) {
	svc := &mockService{}
	rec := serve(newMockRouter(svc), http.MethodGet, "/api/alerts?page=abc&limit=", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, svc.listParams.Page)
	assert.Zero(t, svc.listParams.Limit)
	assert.Nil(t, svc.listParams.AlertType)
}

func TestHandlers_500_Fallbacks(t *testing.T) {
	svc := &mockService{err: errors.New("connection reset")}
	h := newMockRouter(svc)
	id := uuid.NewString()

	tests := []struct {
		method, target, body, message string
	}{
		{http.MethodGet, "/api/alerts", "", "Failed to retrieve alerts"},
		{http.MethodGet, "/api/alerts/" + id, "", "Failed to retrieve alert"},
		{http.MethodPut, "/api/alerts/" + id, `{"action":"inspect"}`, "Failed to update alert"},
		{http.MethodGet, "/api/alerts/" + id + "/analysis", "", "Failed to retrieve analysis status"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			rec := serve(h, tt.method, tt.target, tt.body)
			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.JSONEq(t, `{"success":false,"message":"`+tt.message+`"}`, rec.Body.String())
		})
	}
}

func TestHandlers_WrappedNotFound(t *testing.T) {
	svc := &mockService{err: errors.Join(errors.New("getting alert"), store.ErrNotFound)}
	rec := serve(newMockRouter(svc), http.MethodGet, "/api/alerts/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"Alert not found"}`, rec.Body.String())
}

func TestAnalysisStatus_200(t *testing.T) {
	svc := &mockService{status: models.AnalysisFailed}
	id := uuid.New()
	rec := serve(newMockRouter(svc), http.MethodGet, "/api/alerts/"+id.String()+"/analysis", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t,
		`{"success":true,"message":"Analysis status retrieved successfully","data":{"id":"`+id.String()+`","status":"failed"}}`,
		rec.Body.String())
}
