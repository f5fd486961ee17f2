package messaging

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/commerce/services/orders/models"
)

func TestNewEnvelopeCarriesOutboxFields(t *testing.T) {
	occurred := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	event := models.OutboxEvent{
		EventID:       "event-1",
		AggregateID:   "order-1",
		EventType:     "V1_ORDER_CREATED",
		Data:          []byte(`{"order_id":"order-1"}`),
		Version:       1,
		SchemaVersion: 1,
		OccurredAt:    occurred,
	}

	env := NewEnvelope(event)
	body, err := env.Marshal()
	require.NoError(t, err)

	parsed, err := ParseEnvelope(body)
	require.NoError(t, err)
	require.Equal(t, "event-1", parsed.EventID)
	require.Equal(t, "order-1", parsed.AggregateID)
	require.Equal(t, "V1_ORDER_CREATED", parsed.EventType)
	require.Equal(t, 1, parsed.Version)
	require.Equal(t, occurred, parsed.OccurredAt)
	require.JSONEq(t, `{"order_id":"order-1"}`, string(parsed.Payload))
}

func TestParseEnvelopeIgnoresUnknownFields(t *testing.T) {
	// A newer producer may add fields this consumer has never heard of
	body := []byte(`{
		"eventId": "event-1",
		"aggregateId": "order-1",
		"eventType": "V1_ORDER_CREATED",
		"occurredAt": "2026-03-14T09:26:53Z",
		"version": 1,
		"payload": {"order_id": "order-1", "gift_wrap": true},
		"traceId": "abc-123",
		"priority": "high"
	}`)

	env, err := ParseEnvelope(body)
	require.NoError(t, err)
	require.Equal(t, "event-1", env.EventID)
	require.Equal(t, "order-1", env.AggregateID)
}

func TestParseEnvelopeToleratesMissingOptionalFields(t *testing.T) {
	// An older producer omits schemaVersion
	body := []byte(`{
		"eventId": "event-1",
		"aggregateId": "order-1",
		"eventType": "V1_ORDER_CREATED",
		"occurredAt": "2026-03-14T09:26:53Z",
		"version": 1,
		"payload": {}
	}`)

	env, err := ParseEnvelope(body)
	require.NoError(t, err)
	require.Equal(t, 0, env.SchemaVersion)
}

func TestParseEnvelopeRejectsMissingRequiredFields(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{{{`},
		{"missing event id", `{"aggregateId":"order-1","eventType":"V1_ORDER_CREATED"}`},
		{"missing aggregate id", `{"eventId":"event-1","eventType":"V1_ORDER_CREATED"}`},
		{"missing event type", `{"eventId":"event-1","aggregateId":"order-1"}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseEnvelope([]byte(tc.body))
			require.Error(t, err)
		})
	}
}

func TestEnvelopeWireFieldNames(t *testing.T) {
	env := Envelope{
		EventID:     "event-1",
		AggregateID: "order-1",
		EventType:   "V1_ORDER_CREATED",
		OccurredAt:  time.Now().UTC(),
		Version:     1,
		Payload:     json.RawMessage(`{}`),
	}

	body, err := env.Marshal()
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &raw))
	for _, field := range []string{"eventId", "aggregateId", "eventType", "occurredAt", "version", "payload"} {
		require.Contains(t, raw, field)
	}
}
