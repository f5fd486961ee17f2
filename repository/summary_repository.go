package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"example.com/commerce/services/orders/models"
)

// SummaryRepository reads the denormalized order summaries. Writes go
// through the projection worker only.
type SummaryRepository interface {
	Get(ctx context.Context, orderID string) (*models.OrderSummary, error)
}

// GormSummaryRepository implements SummaryRepository using GORM
type GormSummaryRepository struct {
	db *gorm.DB
}

// NewGormSummaryRepository creates a new GORM summary repository
func NewGormSummaryRepository(db *gorm.DB) *GormSummaryRepository {
	return &GormSummaryRepository{db: db}
}

// Get returns the summary for an order id
func (r *GormSummaryRepository) Get(ctx context.Context, orderID string) (*models.OrderSummary, error) {
	var summary models.OrderSummary
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&summary).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load order summary: %w", err)
	}
	return &summary, nil
}
