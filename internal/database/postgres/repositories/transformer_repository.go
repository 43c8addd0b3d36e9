package repositories

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"ambient-sync/internal/models"
)

type TransformerRepository struct {
	db *gorm.DB
}

func NewTransformerRepository(db *gorm.DB) *TransformerRepository {
	return &TransformerRepository{db: db}
}

// FindAll returns the whole fleet, including transformers whose location
// is absent or incomplete. Callers decide what to do with those.
func (r *TransformerRepository) FindAll(ctx context.Context) ([]models.Transformer, error) {
	var transformers []models.Transformer
	err := r.db.WithContext(ctx).Order("id").Find(&transformers).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transformers: %w", err)
	}
	return transformers, nil
}
