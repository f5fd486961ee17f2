package projections

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"example.com/commerce/services/orders/config"
	"example.com/commerce/services/orders/domain"
	"example.com/commerce/services/orders/messaging"
	"example.com/commerce/services/orders/models"
)

// OrderSummariesIndex is the Elasticsearch index for the read model
const OrderSummariesIndex = "order-summaries"

// SummaryCache invalidates cached read-model entries after a projection
type SummaryCache interface {
	Delete(ctx context.Context, key string) error
	SummaryKey(orderID string) string
}

// OrderSummaryProjector maintains the OrderSummary read model from the event
// stream. Applying an event is idempotent: a per-order version watermark
// skips replays inside the transaction, and an inbox ledger short-circuits
// duplicate deliveries before any work happens.
type OrderSummaryProjector struct {
	db            *gorm.DB
	elasticClient *elasticsearch.Client
	cache         SummaryCache
	cfg           config.ElasticConfig
}

// NewOrderSummaryProjector creates a new order summary projector
func NewOrderSummaryProjector(db *gorm.DB, elasticClient *elasticsearch.Client, cache SummaryCache, cfg config.ElasticConfig) *OrderSummaryProjector {
	return &OrderSummaryProjector{
		db:            db,
		elasticClient: elasticClient,
		cache:         cache,
		cfg:           cfg,
	}
}

// Project applies one event to the read model. The database write commits
// before the Elasticsearch index and cache invalidation, so a failure in the
// latter two leaves the SQL row current and the redelivery retries only the
// side effects: the watermark makes the repeated SQL apply a no-op, and the
// inbox entry is written last, once the side effects have succeeded.
func (p *OrderSummaryProjector) Project(ctx context.Context, env messaging.Envelope) error {
	seen, err := p.alreadyProcessed(ctx, env.EventID)
	if err != nil {
		return err
	}
	if seen {
		log.Debug().Str("event_id", env.EventID).Msg("Skipping already processed event")
		return nil
	}

	var summary models.OrderSummary
	changed := false

	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("order_id = ?", env.AggregateID).First(&summary).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to load order summary: %w", err)
		}

		changed, err = ApplyToSummary(&summary, env)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}

		if summary.ID == 0 {
			return tx.Create(&summary).Error
		}
		return tx.Save(&summary).Error
	})
	if err != nil {
		return fmt.Errorf("failed to project event %s: %w", env.EventID, err)
	}

	// The watermark only covers the SQL apply. A redelivered event that
	// already advanced it still owes the index and cache invalidation until
	// its inbox entry exists, so gate on the row, not on changed.
	if summary.ID != 0 {
		if err := p.indexSummary(ctx, summary); err != nil {
			return err
		}
		if p.cache != nil {
			if err := p.cache.Delete(ctx, p.cache.SummaryKey(env.AggregateID)); err != nil {
				log.Warn().Err(err).Str("order_id", env.AggregateID).Msg("Failed to invalidate cached summary")
			}
		}
	}

	return p.recordProcessed(ctx, env)
}

// ApplyToSummary mutates the summary with the effect of one event and
// reports whether anything changed. Events at or below the watermark and
// unrecognized event types are ignored without error so old duplicates and
// newer producers both pass through harmlessly.
func ApplyToSummary(summary *models.OrderSummary, env messaging.Envelope) (bool, error) {
	if env.Version <= summary.LastEventVersion {
		return false, nil
	}

	payload, err := domain.UnmarshalEventData(env.EventType, env.Payload)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownEventType) {
			log.Warn().Str("event_type", env.EventType).Str("event_id", env.EventID).Msg("Ignoring unrecognized event type")
			return false, nil
		}
		return false, err
	}

	switch data := payload.(type) {
	case domain.OrderCreatedEvent:
		summary.OrderID = data.OrderID
		summary.CustomerID = data.CustomerID
		summary.Status = string(domain.StatusDraft)
		summary.ItemCount = len(data.Items)
		summary.TotalAmount = data.Total.Amount
		summary.Currency = data.Total.Currency
		summary.CreatedAt = env.OccurredAt

	case domain.OrderItemAddedEvent:
		summary.ItemCount = data.ItemCount
		summary.TotalAmount = data.Total.Amount
		summary.Currency = data.Total.Currency

	case domain.OrderSubmittedEvent:
		occurredAt := env.OccurredAt
		summary.Status = string(domain.StatusSubmitted)
		summary.SubmittedAt = &occurredAt
		summary.ItemCount = len(data.Items)
		summary.TotalAmount = data.Total.Amount
		summary.Currency = data.Total.Currency

	case domain.OrderPaidEvent:
		occurredAt := env.OccurredAt
		summary.Status = string(domain.StatusPaid)
		summary.PaidAt = &occurredAt
		summary.PaymentRef = &data.PaymentRef

	case domain.OrderShippedEvent:
		occurredAt := env.OccurredAt
		summary.Status = string(domain.StatusShipped)
		summary.ShippedAt = &occurredAt
		summary.TrackingNumber = &data.TrackingNumber

	case domain.OrderCancelledEvent:
		occurredAt := env.OccurredAt
		summary.Status = string(domain.StatusCancelled)
		summary.CancelledAt = &occurredAt
		summary.CancelReason = &data.Reason

	default:
		return false, nil
	}

	summary.LastEventVersion = env.Version
	summary.UpdatedAt = env.OccurredAt
	return true, nil
}

// alreadyProcessed checks the inbox ledger for a prior delivery
func (p *OrderSummaryProjector) alreadyProcessed(ctx context.Context, eventID string) (bool, error) {
	var count int64
	err := p.db.WithContext(ctx).Model(&models.InboxEvent{}).
		Where("event_id = ?", eventID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check inbox: %w", err)
	}
	return count > 0, nil
}

// recordProcessed writes the inbox row. A duplicate key means a concurrent
// delivery won the race, which is fine.
func (p *OrderSummaryProjector) recordProcessed(ctx context.Context, env messaging.Envelope) error {
	row := models.InboxEvent{
		EventID:     env.EventID,
		AggregateID: env.AggregateID,
		ProcessedAt: env.OccurredAt,
	}
	err := p.db.WithContext(ctx).Create(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "duplicate") {
			return nil
		}
		return fmt.Errorf("failed to record processed event: %w", err)
	}
	return nil
}

// indexSummary upserts the summary document in Elasticsearch. Indexing by
// order id makes a replayed event overwrite the document with the same state.
func (p *OrderSummaryProjector) indexSummary(ctx context.Context, summary models.OrderSummary) error {
	if p.elasticClient == nil {
		return nil
	}

	doc, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal order summary: %w", err)
	}

	index := config.FormatIndex(p.cfg, OrderSummariesIndex)
	res, err := p.elasticClient.Index(
		index,
		bytes.NewReader(doc),
		p.elasticClient.Index.WithDocumentID(summary.OrderID),
		p.elasticClient.Index.WithRefresh("true"),
		p.elasticClient.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to index order summary in Elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("failed to index order summary in Elasticsearch: %s", res.String())
	}

	return nil
}
