package repositories

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"ambient-sync/internal/models"
	"ambient-sync/internal/reconcile"
	"ambient-sync/internal/timeutil"
)

// batchSize caps the number of timestamps per IN clause. A 31 day hourly
// window is ~750 values, well above what belongs in a single query.
const batchSize = 50

type ReadingRepository struct {
	db *gorm.DB
}

func NewReadingRepository(db *gorm.DB) *ReadingRepository {
	return &ReadingRepository{db: db}
}

// FindExistingTimestamps returns which of the given timestamps already have
// a reading row for the transformer. Values coming back from the store are
// normalized, so the result is comparable against canonical UTC timestamps
// regardless of how the store serializes its timestamp column.
func (r *ReadingRepository) FindExistingTimestamps(ctx context.Context, transformerID string, timestamps []string) (reconcile.Set, error) {
	found := reconcile.NewSet()

	for _, chunk := range chunkTimestamps(timestamps) {
		var rows []string
		err := r.db.WithContext(ctx).
			Model(&models.TemperatureReading{}).
			Where("transformer_id = ?", transformerID).
			Where("timestamp IN ?", chunk).
			Pluck("timestamp", &rows).Error
		if err != nil {
			return nil, fmt.Errorf("failed to fetch existing readings: %w", err)
		}

		for _, ts := range rows {
			found.Add(timeutil.Normalize(ts))
		}
	}

	return found, nil
}

// FindMissingAmbientTimestamps returns which of the given timestamps have a
// reading row whose ambient_temperature is still null.
func (r *ReadingRepository) FindMissingAmbientTimestamps(ctx context.Context, transformerID string, timestamps []string) (reconcile.Set, error) {
	found := reconcile.NewSet()

	for _, chunk := range chunkTimestamps(timestamps) {
		var rows []string
		err := r.db.WithContext(ctx).
			Model(&models.TemperatureReading{}).
			Where("transformer_id = ?", transformerID).
			Where("timestamp IN ?", chunk).
			Where("ambient_temperature IS NULL").
			Pluck("timestamp", &rows).Error
		if err != nil {
			return nil, fmt.Errorf("failed to fetch readings missing ambient temperature: %w", err)
		}

		for _, ts := range rows {
			found.Add(timeutil.Normalize(ts))
		}
	}

	return found, nil
}

// UpdateAmbientTemperature sets the ambient temperature on one reading row.
// It reports whether a row was matched; an update that matches nothing is
// not an error, the caller accounts for it.
func (r *ReadingRepository) UpdateAmbientTemperature(ctx context.Context, transformerID, timestamp string, value float64) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.TemperatureReading{}).
		Where("transformer_id = ?", transformerID).
		Where("timestamp = ?", timestamp).
		Update("ambient_temperature", value)
	if result.Error != nil {
		return false, fmt.Errorf("failed to update reading: %w", result.Error)
	}

	return result.RowsAffected > 0, nil
}

func chunkTimestamps(timestamps []string) [][]string {
	var chunks [][]string
	for start := 0; start < len(timestamps); start += batchSize {
		end := start + batchSize
		if end > len(timestamps) {
			end = len(timestamps)
		}
		chunks = append(chunks, timestamps[start:end])
	}
	return chunks
}
