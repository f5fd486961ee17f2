package messaging

import (
	"encoding/json"
	"fmt"
	"time"

	"example.com/commerce/services/orders/models"
)

// Envelope is the event wire format. Consumers tolerate unknown additional
// fields and absent optional fields, so the schema can evolve in both
// directions without breaking peers.
type Envelope struct {
	EventID       string          `json:"eventId"`
	AggregateID   string          `json:"aggregateId"`
	EventType     string          `json:"eventType"`
	OccurredAt    time.Time       `json:"occurredAt"`
	Version       int             `json:"version"`
	SchemaVersion int             `json:"schemaVersion,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEnvelope wraps an outbox record for the bus
func NewEnvelope(event models.OutboxEvent) Envelope {
	return Envelope{
		EventID:       event.EventID,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		OccurredAt:    event.OccurredAt,
		Version:       event.Version,
		SchemaVersion: event.SchemaVersion,
		Payload:       json.RawMessage(event.Data),
	}
}

// Marshal serializes the envelope
func (e Envelope) Marshal() ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return body, nil
}

// ParseEnvelope decodes an envelope from a bus message body
func ParseEnvelope(body []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}
	if env.EventID == "" || env.AggregateID == "" || env.EventType == "" {
		return Envelope{}, fmt.Errorf("envelope is missing required fields")
	}
	return env, nil
}
