package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/kiranshivaraju/soundwatch/internal/api/response"
	"github.com/kiranshivaraju/soundwatch/internal/cache"
)

const (
	defaultRequestsPerMinute = 30
	window                   = 60 * time.Second
)

// RateLimit provides fixed-window per-client rate limiting through the cache.
type RateLimit struct {
	cache          cache.Cache
	scope          string
	requestsPerMin int
}

// NewRateLimit creates a limiter whose counters are namespaced by scope.
func NewRateLimit(c cache.Cache, scope string, requestsPerMin int) *RateLimit {
	if requestsPerMin <= 0 {
		requestsPerMin = defaultRequestsPerMinute
	}
	return &RateLimit{cache: c, scope: scope, requestsPerMin: requestsPerMin}
}

// Limit applies rate limiting based on the client key set by ClientKey.
func (rl *RateLimit) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client, ok := GetClientKey(r)
		if !ok {
			// ClientKey didn't run; pass through
			next.ServeHTTP(w, r)
			return
		}

		count, err := rl.cache.IncrWithExpiry(r.Context(), cache.RateLimitKey(rl.scope, client), window)
		if err != nil {
			// On cache error, allow the request (fail open)
			slog.Warn("rate limit check failed", "scope", rl.scope, "error", err)
			next.ServeHTTP(w, r)
			return
		}

		remaining := rl.requestsPerMin - int(count)
		if remaining < 0 {
			remaining = 0
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.requestsPerMin))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if count > int64(rl.requestsPerMin) {
			w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
			response.Error(w, http.StatusTooManyRequests, "Too many uploads, please try again later")
			return
		}

		next.ServeHTTP(w, r)
	})
}
