package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	mw "github.com/kiranshivaraju/soundwatch/internal/api/middleware"
	"github.com/kiranshivaraju/soundwatch/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	ClientURL       string
	UploadDir       string
	UploadRateLimit *mw.RateLimit

	HealthHandler         http.HandlerFunc
	ListAlertsHandler     http.HandlerFunc
	GetAlertHandler       http.HandlerFunc
	UpdateAlertHandler    http.HandlerFunc
	UploadHandler         http.HandlerFunc
	AnalysisStatusHandler http.HandlerFunc

	Metrics http.Handler
	Events  http.Handler
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)
	r.Use(mw.CORS(deps.ClientURL))
	r.Use(middleware.RealIP)
	r.Use(mw.ClientKey)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, http.StatusNotFound, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/health", orNotImplemented(deps.HealthHandler))
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}
	if deps.Events != nil {
		r.Method(http.MethodGet, "/ws/alerts", deps.Events)
	}
	if deps.UploadDir != "" {
		r.Method(http.MethodGet, "/uploads/*", http.StripPrefix("/uploads/", fileServer(deps.UploadDir)))
	}

	r.Route("/api/alerts", func(r chi.Router) {
		r.Get("/", orNotImplemented(deps.ListAlertsHandler))

		r.Group(func(r chi.Router) {
			if deps.UploadRateLimit != nil {
				r.Use(deps.UploadRateLimit.Limit)
			}
			r.Post("/upload", orNotImplemented(deps.UploadHandler))
		})

		r.Get("/{id}", orNotImplemented(deps.GetAlertHandler))
		r.Put("/{id}", orNotImplemented(deps.UpdateAlertHandler))
		r.Get("/{id}/analysis", orNotImplemented(deps.AnalysisStatusHandler))
	})

	return r
}

// fileServer serves stored recordings without directory listings.
func fileServer(dir string) http.Handler {
	fs := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			response.Error(w, http.StatusNotFound, "File not found")
			return
		}
		fs.ServeHTTP(w, r)
	})
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "Endpoint not yet implemented")
	}
}
