package interfaces

import (
	"context"

	"ambient-sync/internal/models"
	"ambient-sync/internal/reconcile"
)

// ITransformerRepository lists the transformer fleet.
type ITransformerRepository interface {
	FindAll(ctx context.Context) ([]models.Transformer, error)
}

// IReadingRepository resolves and updates persisted temperature readings.
type IReadingRepository interface {
	FindExistingTimestamps(ctx context.Context, transformerID string, timestamps []string) (reconcile.Set, error)
	FindMissingAmbientTimestamps(ctx context.Context, transformerID string, timestamps []string) (reconcile.Set, error)
	UpdateAmbientTemperature(ctx context.Context, transformerID, timestamp string, value float64) (bool, error)
}

// IWeatherClient fetches hourly ambient temperatures for a coordinate.
type IWeatherClient interface {
	FetchHourly(ctx context.Context, latitude, longitude float64) ([]models.WeatherSample, error)
}

// IReportWriter persists run metrics to a time series sink.
type IReportWriter interface {
	WriteTransformerSync(outcome *models.TransformerSync) error
	WriteSyncReport(report *models.SyncReport) error
	Flush()
}

// IMqClient publishes messages to the broker.
type IMqClient interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context)
	PublishJson(topic string, data interface{}) error
	IsConnected() bool
}
