package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ambient-sync/internal/models"
	"ambient-sync/internal/mq"
	"ambient-sync/internal/reconcile"
)

type fakeTransformerRepo struct {
	transformers []models.Transformer
	err          error
}

func (f *fakeTransformerRepo) FindAll(ctx context.Context) ([]models.Transformer, error) {
	return f.transformers, f.err
}

// fakeReadingRepo emulates the readings table as a nested map of
// transformer id to timestamp to nullable temperature.
type fakeReadingRepo struct {
	rows      map[string]map[string]*float64
	queryErr  error
	updateErr map[string]error
	vanished  map[string]bool
}

func newFakeReadingRepo() *fakeReadingRepo {
	return &fakeReadingRepo{
		rows:      make(map[string]map[string]*float64),
		updateErr: make(map[string]error),
		vanished:  make(map[string]bool),
	}
}

func rowKey(transformerID, timestamp string) string {
	return transformerID + "|" + timestamp
}

func (f *fakeReadingRepo) seed(transformerID, timestamp string, temperature *float64) {
	if f.rows[transformerID] == nil {
		f.rows[transformerID] = make(map[string]*float64)
	}
	f.rows[transformerID][timestamp] = temperature
}

func (f *fakeReadingRepo) FindExistingTimestamps(ctx context.Context, transformerID string, timestamps []string) (reconcile.Set, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	found := reconcile.NewSet()
	for _, ts := range timestamps {
		if _, ok := f.rows[transformerID][ts]; ok {
			found.Add(ts)
		}
	}
	return found, nil
}

func (f *fakeReadingRepo) FindMissingAmbientTimestamps(ctx context.Context, transformerID string, timestamps []string) (reconcile.Set, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	found := reconcile.NewSet()
	for _, ts := range timestamps {
		if temperature, ok := f.rows[transformerID][ts]; ok && temperature == nil {
			found.Add(ts)
		}
	}
	return found, nil
}

func (f *fakeReadingRepo) UpdateAmbientTemperature(ctx context.Context, transformerID, timestamp string, value float64) (bool, error) {
	if err := f.updateErr[rowKey(transformerID, timestamp)]; err != nil {
		return false, err
	}
	if f.vanished[rowKey(transformerID, timestamp)] {
		return false, nil
	}
	if _, ok := f.rows[transformerID][timestamp]; !ok {
		return false, nil
	}
	f.rows[transformerID][timestamp] = &value
	return true, nil
}

type weatherResponse struct {
	samples []models.WeatherSample
	err     error
}

type fakeWeatherClient struct {
	script   []weatherResponse
	fallback weatherResponse
	calls    int
}

func (f *fakeWeatherClient) FetchHourly(ctx context.Context, latitude, longitude float64) ([]models.WeatherSample, error) {
	f.calls++
	if len(f.script) > 0 {
		response := f.script[0]
		f.script = f.script[1:]
		return response.samples, response.err
	}
	return f.fallback.samples, f.fallback.err
}

type fakeReportWriter struct {
	outcomes []models.TransformerSync
	reports  []models.SyncReport
	flushed  int
}

func (f *fakeReportWriter) WriteTransformerSync(outcome *models.TransformerSync) error {
	f.outcomes = append(f.outcomes, *outcome)
	return nil
}

func (f *fakeReportWriter) WriteSyncReport(report *models.SyncReport) error {
	f.reports = append(f.reports, *report)
	return nil
}

func (f *fakeReportWriter) Flush() {
	f.flushed++
}

type fakeMqClient struct {
	published map[string]interface{}
}

func newFakeMqClient() *fakeMqClient {
	return &fakeMqClient{published: make(map[string]interface{})}
}

func (f *fakeMqClient) Connect(ctx context.Context) error { return nil }

func (f *fakeMqClient) Disconnect(ctx context.Context) {}

func (f *fakeMqClient) IsConnected() bool { return true }

func (f *fakeMqClient) PublishJson(topic string, data interface{}) error {
	f.published[topic] = data
	return nil
}

func f64(v float64) *float64 {
	return &v
}

func placedTransformer(id string, latitude, longitude float64) models.Transformer {
	return models.Transformer{
		ID:       id,
		Location: &models.Location{Lat: &latitude, Lng: &longitude},
	}
}

func sampleAt(t *testing.T, timestamp string, temperature float64) models.WeatherSample {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, timestamp)
	require.NoError(t, err)
	return models.WeatherSample{Timestamp: ts, AmbientTemperature: temperature}
}

func newSyncService(transformers *fakeTransformerRepo, readings *fakeReadingRepo, weather *fakeWeatherClient) *SyncService {
	return NewSyncService(transformers, readings, weather, nil, nil, nil, zerolog.Nop())
}

func findOutcome(t *testing.T, report *models.SyncReport, transformerID string) models.TransformerSync {
	t.Helper()
	for _, outcome := range report.Outcomes {
		if outcome.TransformerID == transformerID {
			return outcome
		}
	}
	t.Fatalf("no outcome recorded for %s", transformerID)
	return models.TransformerSync{}
}

func TestRunFillsOnlyExistingRowsMissingTemperature(t *testing.T) {
	transformers := &fakeTransformerRepo{transformers: []models.Transformer{
		placedTransformer("tr-magdeburg-01", 52.13, 11.62),
	}}

	readings := newFakeReadingRepo()
	readings.seed("tr-magdeburg-01", "2025-07-01T00:00:00Z", f64(21.0))
	readings.seed("tr-magdeburg-01", "2025-07-01T01:00:00Z", nil)
	readings.seed("tr-magdeburg-01", "2025-07-01T02:00:00Z", nil)
	readings.seed("tr-magdeburg-01", "2025-07-01T03:00:00Z", f64(19.5))

	weather := &fakeWeatherClient{fallback: weatherResponse{samples: []models.WeatherSample{
		sampleAt(t, "2025-07-01T00:00:00Z", 18.0),
		sampleAt(t, "2025-07-01T01:00:00Z", 17.5),
		sampleAt(t, "2025-07-01T02:00:00Z", 17.1),
		sampleAt(t, "2025-07-01T03:00:00Z", 16.8),
		sampleAt(t, "2025-07-01T04:00:00Z", 16.4),
	}}}

	report, err := newSyncService(transformers, readings, weather).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Transformers)
	assert.Equal(t, 2, report.RowsPlanned)
	assert.Equal(t, 2, report.RowsUpdated)
	assert.Equal(t, 0, report.RowsFailed)

	rows := readings.rows["tr-magdeburg-01"]
	assert.Equal(t, 21.0, *rows["2025-07-01T00:00:00Z"])
	assert.Equal(t, 17.5, *rows["2025-07-01T01:00:00Z"])
	assert.Equal(t, 17.1, *rows["2025-07-01T02:00:00Z"])
	assert.Equal(t, 19.5, *rows["2025-07-01T03:00:00Z"])

	_, created := rows["2025-07-01T04:00:00Z"]
	assert.False(t, created, "rows must never be created")

	outcome := findOutcome(t, report, "tr-magdeburg-01")
	assert.Equal(t, report.RunID, outcome.RunID)
	assert.Equal(t, 4, outcome.Existing)
	assert.Equal(t, 2, outcome.Missing)
	assert.Equal(t, 2, outcome.Planned)
	assert.Equal(t, 2, outcome.Updated)
	assert.Equal(t, 0, outcome.Failed)
}

func TestRunSkipsTransformersWithoutLocation(t *testing.T) {
	latitude := 52.13
	transformers := &fakeTransformerRepo{transformers: []models.Transformer{
		{ID: "tr-unplaced"},
		{ID: "tr-partial", Location: &models.Location{Lat: &latitude}},
		placedTransformer("tr-placed", 52.13, 11.62),
	}}

	readings := newFakeReadingRepo()
	weather := &fakeWeatherClient{fallback: weatherResponse{samples: []models.WeatherSample{
		sampleAt(t, "2025-07-01T00:00:00Z", 18.0),
	}}}

	report, err := newSyncService(transformers, readings, weather).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.SkippedNoLocation)
	assert.Equal(t, 1, weather.calls)
	assert.Equal(t, 0, report.RowsPlanned)
}

func TestRunSkipsTransformerWithoutWeatherData(t *testing.T) {
	transformers := &fakeTransformerRepo{transformers: []models.Transformer{
		placedTransformer("tr-placed", 52.13, 11.62),
	}}

	readings := newFakeReadingRepo()
	readings.seed("tr-placed", "2025-07-01T00:00:00Z", nil)
	weather := &fakeWeatherClient{}

	report, err := newSyncService(transformers, readings, weather).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.SkippedNoWeather)
	assert.Equal(t, 0, report.RowsPlanned)
	assert.Empty(t, report.Outcomes)
}

func TestRunContinuesAfterWeatherFailure(t *testing.T) {
	transformers := &fakeTransformerRepo{transformers: []models.Transformer{
		placedTransformer("tr-down", 48.21, 16.37),
		placedTransformer("tr-up", 52.13, 11.62),
	}}

	readings := newFakeReadingRepo()
	readings.seed("tr-up", "2025-07-01T01:00:00Z", nil)

	weather := &fakeWeatherClient{script: []weatherResponse{
		{err: errors.New("upstream down")},
		{samples: []models.WeatherSample{sampleAt(t, "2025-07-01T01:00:00Z", 17.5)}},
	}}

	report, err := newSyncService(transformers, readings, weather).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.FailedTransformers)
	assert.Equal(t, 1, report.RowsUpdated)
	assert.Equal(t, 17.5, *readings.rows["tr-up"]["2025-07-01T01:00:00Z"])

	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, "tr-up", report.Outcomes[0].TransformerID)
}

func TestRunCountsSetQueryFailure(t *testing.T) {
	transformers := &fakeTransformerRepo{transformers: []models.Transformer{
		placedTransformer("tr-placed", 52.13, 11.62),
	}}

	readings := newFakeReadingRepo()
	readings.queryErr = errors.New("connection reset")
	weather := &fakeWeatherClient{fallback: weatherResponse{samples: []models.WeatherSample{
		sampleAt(t, "2025-07-01T00:00:00Z", 18.0),
	}}}

	report, err := newSyncService(transformers, readings, weather).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.FailedTransformers)
	assert.Empty(t, report.Outcomes)
	assert.Equal(t, 0, report.RowsPlanned)
}

func TestRunContinuesAfterRowUpdateFailure(t *testing.T) {
	transformers := &fakeTransformerRepo{transformers: []models.Transformer{
		placedTransformer("tr-magdeburg-01", 52.13, 11.62),
	}}

	readings := newFakeReadingRepo()
	readings.seed("tr-magdeburg-01", "2025-07-01T00:00:00Z", nil)
	readings.seed("tr-magdeburg-01", "2025-07-01T01:00:00Z", nil)
	readings.seed("tr-magdeburg-01", "2025-07-01T02:00:00Z", nil)
	readings.updateErr[rowKey("tr-magdeburg-01", "2025-07-01T01:00:00Z")] = errors.New("deadlock detected")

	weather := &fakeWeatherClient{fallback: weatherResponse{samples: []models.WeatherSample{
		sampleAt(t, "2025-07-01T00:00:00Z", 18.0),
		sampleAt(t, "2025-07-01T01:00:00Z", 17.5),
		sampleAt(t, "2025-07-01T02:00:00Z", 17.1),
	}}}

	report, err := newSyncService(transformers, readings, weather).Run(context.Background())
	require.NoError(t, err, "row failures must not fail the run")

	assert.Equal(t, 3, report.RowsPlanned)
	assert.Equal(t, 2, report.RowsUpdated)
	assert.Equal(t, 1, report.RowsFailed)

	outcome := findOutcome(t, report, "tr-magdeburg-01")
	assert.Equal(t, 2, outcome.Updated)
	assert.Equal(t, 1, outcome.Failed)
}

func TestRunCountsVanishedRowAsFailed(t *testing.T) {
	transformers := &fakeTransformerRepo{transformers: []models.Transformer{
		placedTransformer("tr-magdeburg-01", 52.13, 11.62),
	}}

	readings := newFakeReadingRepo()
	readings.seed("tr-magdeburg-01", "2025-07-01T00:00:00Z", nil)
	readings.vanished[rowKey("tr-magdeburg-01", "2025-07-01T00:00:00Z")] = true

	weather := &fakeWeatherClient{fallback: weatherResponse{samples: []models.WeatherSample{
		sampleAt(t, "2025-07-01T00:00:00Z", 18.0),
	}}}

	report, err := newSyncService(transformers, readings, weather).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, report.RowsUpdated)
	assert.Equal(t, 1, report.RowsFailed)
}

func TestRunAbortsWhenFleetListingFails(t *testing.T) {
	transformers := &fakeTransformerRepo{err: errors.New("connection refused")}
	weather := &fakeWeatherClient{}

	report, err := newSyncService(transformers, newFakeReadingRepo(), weather).Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, report)
	assert.Equal(t, 0, weather.calls)
}

func TestRunEmptyFleetCompletes(t *testing.T) {
	transformers := &fakeTransformerRepo{}
	weather := &fakeWeatherClient{}

	report, err := newSyncService(transformers, newFakeReadingRepo(), weather).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, report.Transformers)
	assert.Equal(t, 0, weather.calls)
	assert.False(t, report.FinishedAt.IsZero())
}

func TestRunStopsOnCanceledContext(t *testing.T) {
	transformers := &fakeTransformerRepo{transformers: []models.Transformer{
		placedTransformer("tr-placed", 52.13, 11.62),
	}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newSyncService(transformers, newFakeReadingRepo(), &fakeWeatherClient{}).Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunEmitsReportToConfiguredSinks(t *testing.T) {
	transformers := &fakeTransformerRepo{transformers: []models.Transformer{
		placedTransformer("tr-magdeburg-01", 52.13, 11.62),
	}}

	readings := newFakeReadingRepo()
	readings.seed("tr-magdeburg-01", "2025-07-01T00:00:00Z", nil)

	weather := &fakeWeatherClient{fallback: weatherResponse{samples: []models.WeatherSample{
		sampleAt(t, "2025-07-01T00:00:00Z", 18.0),
	}}}

	writer := &fakeReportWriter{}
	mqClient := newFakeMqClient()
	topicManager := mq.NewTopicManager("grid/fleet", zerolog.Nop())

	service := NewSyncService(transformers, readings, weather, writer, mqClient, topicManager, zerolog.Nop())

	report, err := service.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, writer.reports, 1)
	assert.Equal(t, report.RunID, writer.reports[0].RunID)
	require.Len(t, writer.outcomes, 1)
	assert.Equal(t, 1, writer.flushed)

	_, ok := mqClient.published["grid/fleet/v1/transformers/tr-magdeburg-01/ambient"]
	assert.True(t, ok, "per transformer outcome should be published")

	_, ok = mqClient.published["grid/fleet/v1/sync-runs/"+report.RunID]
	assert.True(t, ok, "run summary should be published")
}
