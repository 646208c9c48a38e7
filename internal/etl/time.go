package etl

import (
	"time"
)

// parseTweetTime parses the provider's created_at timestamp. The v2 API
// emits RFC 3339 with millisecond precision.
func parseTweetTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
