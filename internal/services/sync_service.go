package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"ambient-sync/internal/interfaces"
	"ambient-sync/internal/models"
	"ambient-sync/internal/mq"
	"ambient-sync/internal/reconcile"
)

// SyncService runs one reconciliation pass over the transformer fleet:
// fetch the hourly ambient temperatures around each transformer, work
// out which persisted reading rows exist but still lack a temperature,
// and fill exactly those rows. Existing temperatures are never
// overwritten and no rows are ever created.
type SyncService struct {
	transformerRepository interfaces.ITransformerRepository
	readingRepository     interfaces.IReadingRepository
	weatherClient         interfaces.IWeatherClient
	reportWriter          interfaces.IReportWriter
	mqClient              interfaces.IMqClient
	topicManager          *mq.TopicManager
	logger                zerolog.Logger
}

func NewSyncService(
	transformerRepository interfaces.ITransformerRepository,
	readingRepository interfaces.IReadingRepository,
	weatherClient interfaces.IWeatherClient,
	reportWriter interfaces.IReportWriter,
	mqClient interfaces.IMqClient,
	topicManager *mq.TopicManager,
	logger zerolog.Logger,
) *SyncService {
	return &SyncService{
		transformerRepository: transformerRepository,
		readingRepository:     readingRepository,
		weatherClient:         weatherClient,
		reportWriter:          reportWriter,
		mqClient:              mqClient,
		topicManager:          topicManager,
		logger:                logger,
	}
}

// Run executes one full sync pass. A transformer that cannot be
// processed is logged and skipped; a reading row that cannot be updated
// is logged and counted. Only a failure to list the fleet, or a
// canceled context, aborts the run.
func (s *SyncService) Run(ctx context.Context) (*models.SyncReport, error) {
	report := &models.SyncReport{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}

	transformers, err := s.transformerRepository.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list transformers: %w", err)
	}

	report.Transformers = len(transformers)

	s.logger.Info().
		Str("run_id", report.RunID).
		Int("transformers", len(transformers)).
		Msg("Starting sync run")

	if len(transformers) == 0 {
		s.logger.Info().Str("run_id", report.RunID).Msg("No transformers found, nothing to do")
		report.FinishedAt = time.Now().UTC()
		s.emit(report)
		return report, nil
	}

	// Planning phase. All pending writes are collected first so a
	// transformer failing late cannot leave the ones before it half
	// written.
	var updates []models.ReadingUpdate
	var outcomeOrder []*models.TransformerSync
	outcomes := make(map[string]*models.TransformerSync, len(transformers))

	for _, transformer := range transformers {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}

		if !transformer.HasLocation() {
			report.SkippedNoLocation++
			s.logger.Warn().
				Str("transformer_id", transformer.ID).
				Msg("Transformer has no usable location, skipping")
			continue
		}

		samples, err := s.weatherClient.FetchHourly(ctx, *transformer.Location.Lat, *transformer.Location.Lng)
		if err != nil {
			report.FailedTransformers++
			s.logger.Error().Err(err).
				Str("transformer_id", transformer.ID).
				Msg("Failed to fetch weather data")
			continue
		}

		if len(samples) == 0 {
			report.SkippedNoWeather++
			s.logger.Warn().
				Str("transformer_id", transformer.ID).
				Msg("No weather data available, skipping")
			continue
		}

		outcome, planned, err := s.planTransformer(ctx, report.RunID, transformer.ID, samples)
		if err != nil {
			report.FailedTransformers++
			s.logger.Error().Err(err).
				Str("transformer_id", transformer.ID).
				Msg("Failed to resolve readings to update")
			continue
		}

		outcomes[transformer.ID] = outcome
		outcomeOrder = append(outcomeOrder, outcome)
		updates = append(updates, planned...)
		report.RowsPlanned += len(planned)

		s.logger.Debug().
			Str("transformer_id", transformer.ID).
			Int("existing", outcome.Existing).
			Int("missing", outcome.Missing).
			Int("planned", outcome.Planned).
			Msg("Planned reading updates")
	}

	// Write phase. Failures are per row; one broken row never stops
	// the rest of the batch.
	for _, update := range updates {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}

		outcome := outcomes[update.TransformerID]

		matched, err := s.readingRepository.UpdateAmbientTemperature(ctx, update.TransformerID, update.Timestamp, update.AmbientTemperature)
		if err != nil {
			report.RowsFailed++
			outcome.Failed++
			s.logger.Error().Err(err).
				Str("transformer_id", update.TransformerID).
				Str("timestamp", update.Timestamp).
				Msg("Failed to update reading")
			continue
		}

		if !matched {
			report.RowsFailed++
			outcome.Failed++
			s.logger.Warn().
				Str("transformer_id", update.TransformerID).
				Str("timestamp", update.Timestamp).
				Msg("Update matched no reading row")
			continue
		}

		report.RowsUpdated++
		outcome.Updated++
	}

	report.FinishedAt = time.Now().UTC()
	for _, outcome := range outcomeOrder {
		report.Outcomes = append(report.Outcomes, *outcome)
	}

	s.logger.Info().
		Str("run_id", report.RunID).
		Int("transformers", report.Transformers).
		Int("skipped_no_location", report.SkippedNoLocation).
		Int("skipped_no_weather", report.SkippedNoWeather).
		Int("failed_transformers", report.FailedTransformers).
		Int("rows_planned", report.RowsPlanned).
		Int("rows_updated", report.RowsUpdated).
		Int("rows_failed", report.RowsFailed).
		Dur("duration", report.Duration()).
		Msg("Sync run completed")

	s.emit(report)

	return report, nil
}

// planTransformer resolves which of the fetched samples belong to rows
// that exist and still lack a temperature. The two membership queries
// are independent and run concurrently.
func (s *SyncService) planTransformer(ctx context.Context, runID, transformerID string, samples []models.WeatherSample) (*models.TransformerSync, []models.ReadingUpdate, error) {
	timestamps := make([]string, 0, len(samples))
	for _, sample := range samples {
		timestamps = append(timestamps, sample.CanonicalTimestamp())
	}

	var existing, missing reconcile.Set

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		existing, err = s.readingRepository.FindExistingTimestamps(groupCtx, transformerID, timestamps)
		return err
	})
	group.Go(func() error {
		var err error
		missing, err = s.readingRepository.FindMissingAmbientTimestamps(groupCtx, transformerID, timestamps)
		return err
	})
	if err := group.Wait(); err != nil {
		return nil, nil, err
	}

	filtered := reconcile.Filter(samples, existing, missing)

	updates := make([]models.ReadingUpdate, 0, len(filtered))
	for _, sample := range filtered {
		updates = append(updates, models.ReadingUpdate{
			TransformerID:      transformerID,
			Timestamp:          sample.CanonicalTimestamp(),
			AmbientTemperature: sample.AmbientTemperature,
		})
	}

	outcome := &models.TransformerSync{
		RunID:         runID,
		TransformerID: transformerID,
		Existing:      len(existing),
		Missing:       len(missing),
		Planned:       len(updates),
	}

	return outcome, updates, nil
}

// emit forwards the finished report to whichever sinks are configured.
// Reporting is best effort; a dead sink never fails a completed run.
func (s *SyncService) emit(report *models.SyncReport) {
	if s.reportWriter != nil {
		for i := range report.Outcomes {
			if err := s.reportWriter.WriteTransformerSync(&report.Outcomes[i]); err != nil {
				s.logger.Error().Err(err).
					Str("transformer_id", report.Outcomes[i].TransformerID).
					Msg("Failed to write transformer outcome to InfluxDB")
			}
		}

		if err := s.reportWriter.WriteSyncReport(report); err != nil {
			s.logger.Error().Err(err).
				Str("run_id", report.RunID).
				Msg("Failed to write run summary to InfluxDB")
		}

		s.reportWriter.Flush()
	}

	if s.mqClient == nil || s.topicManager == nil {
		return
	}

	if err := report.Validate(); err != nil {
		s.logger.Error().Err(err).Msg("Refusing to publish invalid sync report")
		return
	}

	for i := range report.Outcomes {
		outcome := &report.Outcomes[i]
		topic := s.topicManager.GetTransformerTopic(outcome.TransformerID)
		if err := s.mqClient.PublishJson(topic, outcome); err != nil {
			s.logger.Error().Err(err).
				Str("topic", topic).
				Msg("Failed to publish transformer outcome")
		}
	}

	topic := s.topicManager.GetSyncRunTopic(report.RunID)
	if err := s.mqClient.PublishJson(topic, report); err != nil {
		s.logger.Error().Err(err).
			Str("topic", topic).
			Msg("Failed to publish sync run report")
	}
}
