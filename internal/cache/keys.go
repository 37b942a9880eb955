package cache

import (
	"fmt"

	"github.com/google/uuid"
)

func AnalysisStatusKey(alertID uuid.UUID) string {
	return fmt.Sprintf("analysis:%s", alertID)
}

// RateLimitKey scopes a fixed-window counter to one route and one client.
func RateLimitKey(scope, client string) string {
	return fmt.Sprintf("ratelimit:%s:%s", scope, client)
}
