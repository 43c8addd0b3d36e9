package models

import (
	"time"

	"ambient-sync/internal/timeutil"
)

// WeatherSample is one hourly ambient-temperature estimate fetched from
// the forecast provider. Samples are produced fresh per transformer per
// run and never persisted directly; they only source updates.
type WeatherSample struct {
	Timestamp          time.Time `json:"timestamp"`
	AmbientTemperature float64   `json:"ambient_temperature"`
}

// CanonicalTimestamp returns the sample instant in the canonical string
// form used for set membership against store timestamps.
func (s WeatherSample) CanonicalTimestamp() string {
	return timeutil.FormatUTC(s.Timestamp)
}
