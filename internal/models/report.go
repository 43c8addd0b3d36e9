package models

import (
	"fmt"
	"time"
)

// TransformerSync captures the outcome of one transformer within a run:
// the sizes of the existing and missing-ambient sets, how many samples
// survived reconciliation, and how many writes landed.
type TransformerSync struct {
	RunID         string `json:"run_id"`
	TransformerID string `json:"transformer_id"`
	Existing      int    `json:"existing"`
	Missing       int    `json:"missing"`
	Planned       int    `json:"planned"`
	Updated       int    `json:"updated"`
	Failed        int    `json:"failed"`
}

func (t *TransformerSync) ToInfluxTags() map[string]string {
	return map[string]string{
		"transformer_id": t.TransformerID,
	}
}

func (t *TransformerSync) ToInfluxFields() map[string]interface{} {
	return map[string]interface{}{
		"existing": t.Existing,
		"missing":  t.Missing,
		"planned":  t.Planned,
		"updated":  t.Updated,
		"failed":   t.Failed,
	}
}

// SyncReport aggregates one full run of the sync job.
type SyncReport struct {
	RunID              string            `json:"run_id"`
	StartedAt          time.Time         `json:"started_at"`
	FinishedAt         time.Time         `json:"finished_at"`
	Transformers       int               `json:"transformers"`
	SkippedNoLocation  int               `json:"skipped_no_location"`
	SkippedNoWeather   int               `json:"skipped_no_weather"`
	FailedTransformers int               `json:"failed_transformers"`
	RowsPlanned        int               `json:"rows_planned"`
	RowsUpdated        int               `json:"rows_updated"`
	RowsFailed         int               `json:"rows_failed"`
	Outcomes           []TransformerSync `json:"outcomes,omitempty"`
}

func (r *SyncReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

func (r *SyncReport) ToInfluxTags() map[string]string {
	return map[string]string{
		"run_id": r.RunID,
	}
}

func (r *SyncReport) ToInfluxFields() map[string]interface{} {
	return map[string]interface{}{
		"transformers":        r.Transformers,
		"skipped_no_location": r.SkippedNoLocation,
		"skipped_no_weather":  r.SkippedNoWeather,
		"failed_transformers": r.FailedTransformers,
		"rows_planned":        r.RowsPlanned,
		"rows_updated":        r.RowsUpdated,
		"rows_failed":         r.RowsFailed,
		"duration_ms":         r.Duration().Milliseconds(),
	}
}

func (r *SyncReport) Validate() error {
	if r.RunID == "" {
		return fmt.Errorf("run_id is required")
	}
	if r.StartedAt.IsZero() {
		return fmt.Errorf("started_at is required")
	}
	return nil
}
