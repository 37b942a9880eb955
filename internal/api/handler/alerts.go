package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiranshivaraju/soundwatch/internal/alert"
	"github.com/kiranshivaraju/soundwatch/internal/api/response"
	"github.com/kiranshivaraju/soundwatch/internal/store"
	"github.com/kiranshivaraju/soundwatch/pkg/models"
)

const dateOnly = "2006-01-02"

// AlertService defines the alert operations the handlers depend on.
type AlertService interface {
	CreateAlert(ctx context.Context, p alert.CreateParams) (*models.AnomalyAlert, error)
	ListAlerts(ctx context.Context, p alert.ListParams) (*alert.ListResult, error)
	GetAlert(ctx context.Context, id uuid.UUID) (*models.AnomalyAlert, error)
	UpdateAlert(ctx context.Context, id uuid.UUID, upd store.AlertUpdate) (*models.AnomalyAlert, error)
	AnalysisStatus(ctx context.Context, id uuid.UUID) (models.AnalysisStatus, error)
}

// NewListAlertsHandler returns an http.HandlerFunc for GET /api/alerts.
func NewListAlertsHandler(svc AlertService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		start, err := parseDateParam(q.Get("startDate"), false)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "startDate must be an RFC3339 timestamp or YYYY-MM-DD date")
			return
		}
		end, err := parseDateParam(q.Get("endDate"), true)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "endDate must be an RFC3339 timestamp or YYYY-MM-DD date")
			return
		}

		params := alert.ListParams{
			StartDate: start,
			EndDate:   end,
			Page:      atoiOrZero(q.Get("page")),
			Limit:     atoiOrZero(q.Get("limit")),
		}
		if v := q.Get("alertType"); v != "" {
			t := models.AlertType(v)
			params.AlertType = &t
		}

		result, err := svc.ListAlerts(r.Context(), params)
		if err != nil {
			writeError(w, err, "list_alerts", uuid.Nil, "Failed to retrieve alerts")
			return
		}
		response.OK(w, "Alerts retrieved successfully", result)
	}
}

// NewGetAlertHandler returns an http.HandlerFunc for GET /api/alerts/{id}.
func NewGetAlertHandler(svc AlertService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := alert.ParseAlertID(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err, "get_alert", uuid.Nil, "")
			return
		}

		a, err := svc.GetAlert(r.Context(), id)
		if err != nil {
			writeError(w, err, "get_alert", id, "Failed to retrieve alert")
			return
		}
		response.OK(w, "Alert retrieved successfully", a)
	}
}

// NewUpdateAlertHandler returns an http.HandlerFunc for PUT /api/alerts/{id}.
// Only action, comment and suspectedReason are accepted; absent fields are left unchanged.
// An empty body is an empty update.
func NewUpdateAlertHandler(svc AlertService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := alert.ParseAlertID(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err, "update_alert", uuid.Nil, "")
			return
		}

		var upd store.AlertUpdate
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&upd); err != nil && !errors.Is(err, io.EOF) {
			response.Error(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}

		a, err := svc.UpdateAlert(r.Context(), id, upd)
		if err != nil {
			writeError(w, err, "update_alert", id, "Failed to update alert")
			return
		}
		response.OK(w, "Alert updated successfully", a)
	}
}

type analysisStatusResponse struct {
	ID     uuid.UUID             `json:"id"`
	Status models.AnalysisStatus `json:"status"`
}

// NewAnalysisStatusHandler returns an http.HandlerFunc for GET /api/alerts/{id}/analysis.
func NewAnalysisStatusHandler(svc AlertService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := alert.ParseAlertID(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err, "analysis_status", uuid.Nil, "")
			return
		}

		status, err := svc.AnalysisStatus(r.Context(), id)
		if err != nil {
			writeError(w, err, "analysis_status", id, "Failed to retrieve analysis status")
			return
		}
		response.OK(w, "Analysis status retrieved successfully", analysisStatusResponse{ID: id, Status: status})
	}
}

// writeError maps service errors to status codes. Unexpected errors are
// logged and reported with fallback.
func writeError(w http.ResponseWriter, err error, op string, id uuid.UUID, fallback string) {
	var ve *alert.ValidationError
	switch {
	case errors.As(err, &ve):
		response.Error(w, http.StatusBadRequest, ve.Msg)
	case errors.Is(err, store.ErrNotFound):
		response.Error(w, http.StatusNotFound, "Alert not found")
	default:
		slog.Error("request failed", "op", op, "alert_id", id, "error", err)
		response.Error(w, http.StatusInternalServerError, fallback)
	}
}

// parseDateParam accepts an RFC3339 timestamp or a YYYY-MM-DD date. A date-only
// end bound covers the whole day.
func parseDateParam(v string, endOfDay bool) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
	}
	t, err := time.Parse(dateOnly, v)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
