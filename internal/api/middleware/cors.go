package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORS allows browser calls from clientURL, or from any origin when it is empty.
func CORS(clientURL string) func(http.Handler) http.Handler {
	origins := []string{"*"}
	if clientURL != "" {
		origins = []string{clientURL}
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: clientURL != "",
		MaxAge:           600,
	}).Handler
}
