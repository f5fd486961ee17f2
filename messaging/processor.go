package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"example.com/commerce/services/orders/models"
)

// MessageProcessor handles messages received from the bus
type MessageProcessor interface {
	ProcessMessage(ctx context.Context, message *azservicebus.ReceivedMessage) error

	// DeadLetter parks a message that exhausted its delivery attempts
	DeadLetter(ctx context.Context, message *azservicebus.ReceivedMessage, cause error) error
}

// Projector applies a published event to the read models
type Projector interface {
	Project(ctx context.Context, env Envelope) error
}

// Processor decodes envelopes and dispatches them to the projector
type Processor struct {
	projector Projector
	db        *gorm.DB
}

// NewProcessor creates a new message processor
func NewProcessor(projector Projector, db *gorm.DB) *Processor {
	return &Processor{projector: projector, db: db}
}

// ProcessMessage decodes and projects a single bus message
func (p *Processor) ProcessMessage(ctx context.Context, message *azservicebus.ReceivedMessage) error {
	env, err := ParseEnvelope(message.Body)
	if err != nil {
		return err
	}

	log.Info().
		Str("eventID", env.EventID).
		Str("eventType", env.EventType).
		Str("aggregateID", env.AggregateID).
		Msg("Processing event")

	return p.projector.Project(ctx, env)
}

// DeadLetter stores the message for manual inspection and lets the session
// move on to unrelated events.
func (p *Processor) DeadLetter(ctx context.Context, message *azservicebus.ReceivedMessage, cause error) error {
	row := models.DeadLetterEvent{
		Data:      message.Body,
		Attempts:  int(message.DeliveryCount),
		LastError: cause.Error(),
		CreatedAt: time.Now().UTC(),
	}

	// Best-effort envelope decode so the row stays searchable even when the
	// body itself is the problem.
	var env Envelope
	if err := json.Unmarshal(message.Body, &env); err == nil {
		row.EventID = env.EventID
		row.AggregateID = env.AggregateID
		row.EventType = env.EventType
	}

	if err := p.db.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}

	log.Warn().
		Str("eventID", row.EventID).
		Str("aggregateID", row.AggregateID).
		Int("attempts", row.Attempts).
		Msg("Event moved to dead-letter table")

	return nil
}
