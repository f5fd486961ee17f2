package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"example.com/commerce/services/orders/domain"
	"example.com/commerce/services/orders/models"
)

// OrderRepository loads and saves order aggregates
type OrderRepository interface {
	// Load reconstructs an order from persisted state
	Load(ctx context.Context, id string) (*domain.Order, error)

	// Save persists the aggregate state and its pending events as outbox
	// records in one atomic transaction. It fails with ErrConcurrency when
	// the stored version no longer matches the version read at load time;
	// the caller must reload and reapply, there is no retry here.
	Save(ctx context.Context, order *domain.Order) error
}

// GormOrderRepository implements OrderRepository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GORM order repository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// Load loads an order by aggregate id
func (r *GormOrderRepository) Load(ctx context.Context, id string) (*domain.Order, error) {
	var row models.Order
	if err := r.db.WithContext(ctx).Where("order_id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}

	var items []domain.LineItem
	if err := json.Unmarshal(row.Items, &items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order items: %w", err)
	}

	return domain.RehydrateOrder(
		row.OrderID,
		row.CustomerID,
		row.ShippingAddress,
		domain.Status(row.Status),
		items,
		row.CreatedAt,
		row.Version,
	), nil
}

// Save persists the aggregate and drains its event buffer into the outbox
func (r *GormOrderRepository) Save(ctx context.Context, order *domain.Order) error {
	events := order.PendingEvents()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		items, err := json.Marshal(order.Items)
		if err != nil {
			return fmt.Errorf("failed to marshal order items: %w", err)
		}

		if order.BaseVersion() == 0 {
			row := models.Order{
				OrderID:         order.ID,
				CustomerID:      order.CustomerID,
				ShippingAddress: order.ShippingAddress,
				Status:          string(order.Status),
				Items:           items,
				Currency:        order.Currency(),
				TotalAmount:     order.Total().Amount,
				Version:         order.Version,
				CreatedAt:       order.CreatedAt,
				UpdatedAt:       time.Now().UTC(),
			}
			if err := tx.Create(&row).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return ErrDuplicateKey
				}
				return fmt.Errorf("failed to create order: %w", err)
			}
		} else {
			result := tx.Model(&models.Order{}).
				Where("order_id = ? AND version = ?", order.ID, order.BaseVersion()).
				Updates(map[string]interface{}{
					"status":       string(order.Status),
					"items":        items,
					"currency":     order.Currency(),
					"total_amount": order.Total().Amount,
					"version":      order.Version,
					"updated_at":   time.Now().UTC(),
				})
			if result.Error != nil {
				return fmt.Errorf("failed to update order: %w", result.Error)
			}
			if result.RowsAffected == 0 {
				return ErrConcurrency
			}
		}

		for _, event := range events {
			data, err := json.Marshal(event.Data)
			if err != nil {
				return fmt.Errorf("failed to marshal event data: %w", err)
			}

			outboxRow := models.OutboxEvent{
				EventID:       event.ID,
				AggregateID:   event.AggregateID,
				EventType:     event.Type,
				Data:          data,
				Version:       event.Version,
				SchemaVersion: event.SchemaVersion,
				OccurredAt:    event.OccurredAt,
				Published:     false,
			}
			if err := tx.Create(&outboxRow).Error; err != nil {
				return fmt.Errorf("failed to save outbox event: %w", err)
			}

			log.Info().
				Str("aggregateID", event.AggregateID).
				Str("eventType", event.Type).
				Int("version", event.Version).
				Msg("Event staged in outbox")
		}

		return nil
	})
	if err != nil {
		return err
	}

	order.ClearPending()
	return nil
}
