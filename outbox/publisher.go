package outbox

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"example.com/commerce/services/orders/config"
	"example.com/commerce/services/orders/messaging"
	"example.com/commerce/services/orders/repository"
)

// Bus is the publish side of the message bus
type Bus interface {
	Publish(ctx context.Context, sessionID string, body []byte) error
}

// Publisher drains the outbox and delivers events to the bus with
// at-least-once semantics: a crash between send and mark-published causes a
// duplicate delivery, which consumers absorb through their idempotency
// ledger. Per-aggregate order is preserved by publishing a given aggregate's
// events in creation order and skipping the rest of an aggregate's batch
// after a failure.
type Publisher struct {
	repo      repository.OutboxRepository
	bus       Bus
	batchSize int
	interval  time.Duration
}

// NewPublisher creates a new outbox publisher
func NewPublisher(repo repository.OutboxRepository, bus Bus, cfg config.OutboxConfig) *Publisher {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	return &Publisher{
		repo:      repo,
		bus:       bus,
		batchSize: batchSize,
		interval:  interval,
	}
}

// Run publishes batches on a fixed interval until the context is cancelled.
// An in-flight record finishes before shutdown; the next start resumes from
// the unpublished watermark.
func (p *Publisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := p.PublishBatch(ctx); err != nil {
				log.Error().Err(err).Msg("Failed to publish outbox batch")
			}
		}
	}
}

// PublishBatch publishes one bounded batch of unpublished records and
// returns the number delivered.
func (p *Publisher) PublishBatch(ctx context.Context) (int, error) {
	events, err := p.repo.FetchUnpublished(ctx, p.batchSize)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	log.Debug().Msgf("Publishing %d outbox events", len(events))

	published := 0
	failed := make(map[string]bool)

	for _, event := range events {
		// A failed aggregate's later events wait for the next cycle so its
		// order is never violated; other aggregates keep going.
		if failed[event.AggregateID] {
			continue
		}

		body, err := messaging.NewEnvelope(event).Marshal()
		if err != nil {
			log.Error().Err(err).Str("event_id", event.EventID).Msg("Failed to encode outbox event")
			if recErr := p.repo.RecordError(ctx, event.EventID, err.Error()); recErr != nil {
				log.Error().Err(recErr).Str("event_id", event.EventID).Msg("Failed to record publish error")
			}
			failed[event.AggregateID] = true
			continue
		}

		err = messaging.RetryWithBackoff(ctx, func() error {
			return p.bus.Publish(ctx, event.AggregateID, body)
		}, 3)
		if err != nil {
			log.Error().Err(err).
				Str("event_id", event.EventID).
				Str("aggregate_id", event.AggregateID).
				Msg("Failed to publish event, leaving unpublished for retry")
			if recErr := p.repo.RecordError(ctx, event.EventID, err.Error()); recErr != nil {
				log.Error().Err(recErr).Str("event_id", event.EventID).Msg("Failed to record publish error")
			}
			failed[event.AggregateID] = true
			continue
		}

		if err := p.repo.MarkPublished(ctx, event.EventID); err != nil {
			// The event went out but the flag didn't stick; the next cycle
			// re-sends it and consumers dedupe.
			log.Warn().Err(err).Str("event_id", event.EventID).Msg("Failed to mark event as published")
			failed[event.AggregateID] = true
			continue
		}

		published++
	}

	if published > 0 {
		log.Info().Int("published", published).Int("batch", len(events)).Msg("Outbox batch published")
	}

	return published, nil
}

// ReportStuck logs a warning when unpublished records are older than the
// threshold, for the fallback monitoring job.
func (p *Publisher) ReportStuck(ctx context.Context, threshold time.Duration) {
	count, err := p.repo.CountStuck(ctx, time.Now().UTC().Add(-threshold))
	if err != nil {
		log.Error().Err(err).Msg("Failed to count stuck outbox events")
		return
	}
	if count > 0 {
		log.Warn().Int64("count", count).Dur("threshold", threshold).Msg("Outbox events stuck past threshold")
	}
}
