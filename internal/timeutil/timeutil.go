package timeutil

import (
	"strings"
	"time"
)

// Normalize reduces an ISO-8601 timestamp string to the canonical form
// used for comparisons across the store and weather boundaries:
// whole seconds, UTC, Z suffix. Sub-second precision is truncated, a
// +00:00 offset is rewritten to Z, anything else passes through.
func Normalize(ts string) string {
	if i := strings.IndexByte(ts, '.'); i >= 0 {
		return ts[:i] + "Z"
	}
	if strings.HasSuffix(ts, "+00:00") {
		return strings.TrimSuffix(ts, "+00:00") + "Z"
	}
	return ts
}

// FormatUTC renders an instant in the same canonical form Normalize
// produces, so in-memory times and store strings compare equal.
func FormatUTC(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}
