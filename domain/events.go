package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// EventType constants
const (
	OrderCreated   = "V1_ORDER_CREATED"
	OrderItemAdded = "V1_ORDER_ITEM_ADDED"
	OrderSubmitted = "V1_ORDER_SUBMITTED"
	OrderPaid      = "V1_ORDER_PAID"
	OrderShipped   = "V1_ORDER_SHIPPED"
	OrderCancelled = "V1_ORDER_CANCELLED"
)

// Event represents a domain event. Events are immutable facts recorded once
// when the aggregate changes state and consumed any number of times.
type Event struct {
	ID            string      `json:"event_id"`
	AggregateID   string      `json:"aggregate_id"`
	Type          string      `json:"event_type"`
	Version       int         `json:"version"`
	OccurredAt    time.Time   `json:"occurred_at"`
	SchemaVersion int         `json:"schema_version"`
	Data          interface{} `json:"payload"`
}

// OrderCreatedEvent records a new order entering the Draft status
type OrderCreatedEvent struct {
	OrderID         string     `json:"order_id"`
	CustomerID      string     `json:"customer_id"`
	ShippingAddress string     `json:"shipping_address"`
	Items           []LineItem `json:"items"`
	Total           Money      `json:"total"`
}

// OrderItemAddedEvent records an item merged into a draft order. It carries
// the resulting item count and total so projections never recompute them.
type OrderItemAddedEvent struct {
	OrderID   string `json:"order_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice Money  `json:"unit_price"`
	ItemCount int    `json:"item_count"`
	Total     Money  `json:"total"`
}

// OrderSubmittedEvent records the submission with a snapshot of the items
type OrderSubmittedEvent struct {
	OrderID    string     `json:"order_id"`
	CustomerID string     `json:"customer_id"`
	Items      []LineItem `json:"items"`
	Total      Money      `json:"total"`
}

// OrderPaidEvent records a successful payment
type OrderPaidEvent struct {
	OrderID    string `json:"order_id"`
	PaymentRef string `json:"payment_ref"`
	Total      Money  `json:"total"`
}

// OrderShippedEvent records the shipment
type OrderShippedEvent struct {
	OrderID        string `json:"order_id"`
	TrackingNumber string `json:"tracking_number"`
}

// OrderCancelledEvent records the cancellation
type OrderCancelledEvent struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

// ErrUnknownEventType marks an event type this version does not know about.
// Consumers treat it as skippable so newer producers do not break them.
var ErrUnknownEventType = errors.New("unknown event type")

// UnmarshalEventData decodes a serialized event payload into its typed form.
// Unknown fields in the payload are ignored so consumers tolerate newer
// producers; unknown event types fail with ErrUnknownEventType.
func UnmarshalEventData(eventType string, data []byte) (interface{}, error) {
	switch eventType {
	case OrderCreated:
		var payload OrderCreatedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event data: %w", err)
		}
		return payload, nil

	case OrderItemAdded:
		var payload OrderItemAddedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event data: %w", err)
		}
		return payload, nil

	case OrderSubmitted:
		var payload OrderSubmittedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event data: %w", err)
		}
		return payload, nil

	case OrderPaid:
		var payload OrderPaidEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event data: %w", err)
		}
		return payload, nil

	case OrderShipped:
		var payload OrderShippedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event data: %w", err)
		}
		return payload, nil

	case OrderCancelled:
		var payload OrderCancelledEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event data: %w", err)
		}
		return payload, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEventType, eventType)
	}
}
