package influx

import (
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/rs/zerolog"

	"ambient-sync/internal/models"
)

// ReportWriter pushes sync run metrics into InfluxDB. Writes go through
// the non-blocking write API, so a slow or absent sink never stalls a run.
type ReportWriter struct {
	writeAPI api.WriteAPI
	logger   zerolog.Logger
}

func NewReportWriter(writeAPI api.WriteAPI, logger zerolog.Logger) *ReportWriter {
	return &ReportWriter{
		writeAPI: writeAPI,
		logger:   logger,
	}
}

// WriteTransformerSync records the per-transformer outcome of one run.
func (w *ReportWriter) WriteTransformerSync(outcome *models.TransformerSync) error {
	point := influxdb2.NewPoint(
		"transformer_sync",
		outcome.ToInfluxTags(),
		outcome.ToInfluxFields(),
		time.Now(),
	)

	w.writeAPI.WritePoint(point)

	w.logger.Debug().
		Str("transformer_id", outcome.TransformerID).
		Int("updated", outcome.Updated).
		Int("failed", outcome.Failed).
		Msg("Added transformer sync outcome to influxDB")

	return nil
}

// WriteSyncReport records the run level summary.
func (w *ReportWriter) WriteSyncReport(report *models.SyncReport) error {
	point := influxdb2.NewPoint(
		"sync_run",
		report.ToInfluxTags(),
		report.ToInfluxFields(),
		report.FinishedAt,
	)

	w.writeAPI.WritePoint(point)

	w.logger.Debug().
		Str("run_id", report.RunID).
		Int("rows_updated", report.RowsUpdated).
		Msg("Added sync run summary to influxDB")

	return nil
}

// Flush blocks until buffered points are on the wire.
func (w *ReportWriter) Flush() {
	w.writeAPI.Flush()
}
