package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"example.com/commerce/services/orders/models"
)

// OutboxRepository provides access to the durable outbox
type OutboxRepository interface {
	// FetchUnpublished returns a bounded batch of unpublished records in
	// creation order, which preserves per-aggregate event order.
	FetchUnpublished(ctx context.Context, limit int) ([]models.OutboxEvent, error)

	// MarkPublished marks a record as delivered to the bus
	MarkPublished(ctx context.Context, eventID string) error

	// RecordError stores the last publish error, leaving the record
	// unpublished for the next cycle.
	RecordError(ctx context.Context, eventID, message string) error

	// FetchPublished returns already-published records in a time window,
	// optionally filtered by aggregate id, for replay.
	FetchPublished(ctx context.Context, start, end time.Time, aggregateID string) ([]models.OutboxEvent, error)

	// CountStuck counts unpublished records created before the cutoff
	CountStuck(ctx context.Context, cutoff time.Time) (int64, error)
}

// GormOutboxRepository implements OutboxRepository using GORM
type GormOutboxRepository struct {
	db *gorm.DB
}

// NewGormOutboxRepository creates a new GORM outbox repository
func NewGormOutboxRepository(db *gorm.DB) *GormOutboxRepository {
	return &GormOutboxRepository{db: db}
}

// FetchUnpublished fetches the oldest unpublished records
func (r *GormOutboxRepository) FetchUnpublished(ctx context.Context, limit int) ([]models.OutboxEvent, error) {
	var events []models.OutboxEvent
	if err := r.db.WithContext(ctx).
		Where("published = ?", false).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch unpublished events: %w", err)
	}
	return events, nil
}

// MarkPublished marks a record as published
func (r *GormOutboxRepository) MarkPublished(ctx context.Context, eventID string) error {
	now := time.Now().UTC()
	if err := r.db.WithContext(ctx).
		Model(&models.OutboxEvent{}).
		Where("event_id = ?", eventID).
		Updates(map[string]interface{}{
			"published":    true,
			"published_at": &now,
			"error":        nil,
		}).Error; err != nil {
		return fmt.Errorf("failed to mark event as published: %w", err)
	}
	return nil
}

// RecordError stores the last publish error for a record
func (r *GormOutboxRepository) RecordError(ctx context.Context, eventID, message string) error {
	if err := r.db.WithContext(ctx).
		Model(&models.OutboxEvent{}).
		Where("event_id = ?", eventID).
		Update("error", &message).Error; err != nil {
		return fmt.Errorf("failed to record publish error: %w", err)
	}
	return nil
}

// FetchPublished fetches published records for replay
func (r *GormOutboxRepository) FetchPublished(ctx context.Context, start, end time.Time, aggregateID string) ([]models.OutboxEvent, error) {
	query := r.db.WithContext(ctx).
		Where("published = ? AND occurred_at >= ? AND occurred_at < ?", true, start, end)
	if aggregateID != "" {
		query = query.Where("aggregate_id = ?", aggregateID)
	}

	var events []models.OutboxEvent
	if err := query.Order("created_at ASC, id ASC").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch published events: %w", err)
	}
	return events, nil
}

// CountStuck counts records that should have been published by now
func (r *GormOutboxRepository) CountStuck(ctx context.Context, cutoff time.Time) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.OutboxEvent{}).
		Where("published = ? AND created_at < ?", false, cutoff).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count stuck events: %w", err)
	}
	return count, nil
}
