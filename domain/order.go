package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status represents the order lifecycle state
type Status string

const (
	StatusDraft     Status = "Draft"
	StatusSubmitted Status = "Submitted"
	StatusPaid      Status = "Paid"
	StatusShipped   Status = "Shipped"
	StatusCancelled Status = "Cancelled"
)

// LineItem is a value object owned by an Order. It has no identity of its
// own and is replaced wholesale on change, never mutated by external code.
type LineItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice Money  `json:"unit_price"`
}

// Order is the aggregate root for the order lifecycle. All state changes go
// through its methods, each successful transition records exactly one domain
// event into an in-memory buffer drained by the repository on save.
type Order struct {
	ID              string
	CustomerID      string
	ShippingAddress string
	Status          Status
	Items           []LineItem
	CreatedAt       time.Time
	Version         int

	baseVersion int
	pending     []Event
}

// NewOrder creates a new order in Draft status, validating all preconditions
func NewOrder(customerID, shippingAddress string, items []LineItem) (*Order, error) {
	if customerID == "" {
		return nil, newValidationError("customer id is required")
	}
	if len(items) == 0 {
		return nil, newValidationError("an order requires at least one line item")
	}
	if err := validateItems(items); err != nil {
		return nil, err
	}

	order := &Order{
		ID:              uuid.New().String(),
		CustomerID:      customerID,
		ShippingAddress: shippingAddress,
		Status:          StatusDraft,
		Items:           append([]LineItem(nil), items...),
		CreatedAt:       time.Now().UTC(),
	}

	if err := order.record(OrderCreatedEvent{
		OrderID:         order.ID,
		CustomerID:      customerID,
		ShippingAddress: shippingAddress,
		Items:           order.Items,
		Total:           order.Total(),
	}); err != nil {
		return nil, err
	}

	return order, nil
}

// RehydrateOrder reconstructs an order from persisted state. The version
// becomes the base for the optimistic concurrency check on the next save.
func RehydrateOrder(id, customerID, shippingAddress string, status Status, items []LineItem, createdAt time.Time, version int) *Order {
	return &Order{
		ID:              id,
		CustomerID:      customerID,
		ShippingAddress: shippingAddress,
		Status:          status,
		Items:           items,
		CreatedAt:       createdAt,
		Version:         version,
		baseVersion:     version,
	}
}

// AddItem merges quantity into an existing line for the same product rather
// than duplicating it. Items are mutable only while the order is a Draft.
func (o *Order) AddItem(productID string, quantity int, unitPrice Money) error {
	if o.Status != StatusDraft {
		return newTransitionError("change items of", o.Status)
	}
	if productID == "" {
		return newValidationError("product id is required")
	}
	if quantity <= 0 {
		return newValidationError("quantity must be positive, got %d", quantity)
	}
	if unitPrice.IsNegative() {
		return newValidationError("unit price cannot be negative")
	}
	if unitPrice.Currency != o.Currency() {
		return &Error{
			Code:    ErrCodeCurrencyMismatch,
			Message: fmt.Sprintf("order is priced in %s, got %s", o.Currency(), unitPrice.Currency),
		}
	}

	merged := false
	items := append([]LineItem(nil), o.Items...)
	for i, item := range items {
		if item.ProductID == productID {
			items[i] = LineItem{
				ProductID: productID,
				Quantity:  item.Quantity + quantity,
				UnitPrice: unitPrice,
			}
			merged = true
			break
		}
	}
	if !merged {
		items = append(items, LineItem{ProductID: productID, Quantity: quantity, UnitPrice: unitPrice})
	}
	o.Items = items

	return o.record(OrderItemAddedEvent{
		OrderID:   o.ID,
		ProductID: productID,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		ItemCount: len(o.Items),
		Total:     o.Total(),
	})
}

// Submit transitions a Draft order with at least one item to Submitted
func (o *Order) Submit() error {
	if o.Status != StatusDraft {
		return newTransitionError("submit", o.Status)
	}
	if len(o.Items) == 0 {
		return newValidationError("cannot submit an empty order")
	}

	o.Status = StatusSubmitted
	return o.record(OrderSubmittedEvent{
		OrderID:    o.ID,
		CustomerID: o.CustomerID,
		Items:      append([]LineItem(nil), o.Items...),
		Total:      o.Total(),
	})
}

// Pay transitions a Submitted order to Paid
func (o *Order) Pay(paymentRef string) error {
	if o.Status != StatusSubmitted {
		return newTransitionError("pay for", o.Status)
	}
	if paymentRef == "" {
		return newValidationError("payment reference is required")
	}

	o.Status = StatusPaid
	return o.record(OrderPaidEvent{OrderID: o.ID, PaymentRef: paymentRef, Total: o.Total()})
}

// Ship transitions a Paid order to Shipped, a terminal status
func (o *Order) Ship(trackingNumber string) error {
	if o.Status != StatusPaid {
		return newTransitionError("ship", o.Status)
	}
	if trackingNumber == "" {
		return newValidationError("tracking number is required")
	}

	o.Status = StatusShipped
	return o.record(OrderShippedEvent{OrderID: o.ID, TrackingNumber: trackingNumber})
}

// Cancel transitions a Draft, Submitted or Paid order to Cancelled
func (o *Order) Cancel(reason string) error {
	if o.Status == StatusShipped || o.Status == StatusCancelled {
		return newTransitionError("cancel", o.Status)
	}

	o.Status = StatusCancelled
	return o.record(OrderCancelledEvent{OrderID: o.ID, Reason: reason})
}

// Total derives the order total from its line items. The invariant that the
// total equals the sum of quantity times unit price holds by construction.
func (o *Order) Total() Money {
	total := Money{Currency: o.Currency()}
	for _, item := range o.Items {
		total.Amount += item.UnitPrice.Mul(item.Quantity).Amount
	}
	return total
}

// Currency returns the currency all line items are priced in
func (o *Order) Currency() string {
	if len(o.Items) == 0 {
		return ""
	}
	return o.Items[0].UnitPrice.Currency
}

// PendingEvents returns the events recorded since the last save
func (o *Order) PendingEvents() []Event {
	return o.pending
}

// ClearPending clears the event buffer after the repository persisted it
func (o *Order) ClearPending() {
	o.pending = nil
	o.baseVersion = o.Version
}

// BaseVersion is the version read at load time, used for the
// compare-and-swap on save. Zero means the order was never persisted.
func (o *Order) BaseVersion() int {
	return o.baseVersion
}

// record appends a domain event for a completed state change
func (o *Order) record(data interface{}) error {
	var eventType string
	switch data.(type) {
	case OrderCreatedEvent:
		eventType = OrderCreated
	case OrderItemAddedEvent:
		eventType = OrderItemAdded
	case OrderSubmittedEvent:
		eventType = OrderSubmitted
	case OrderPaidEvent:
		eventType = OrderPaid
	case OrderShippedEvent:
		eventType = OrderShipped
	case OrderCancelledEvent:
		eventType = OrderCancelled
	default:
		return fmt.Errorf("unknown event type: %T", data)
	}

	o.Version++
	o.pending = append(o.pending, Event{
		ID:            uuid.New().String(),
		AggregateID:   o.ID,
		Type:          eventType,
		Version:       o.Version,
		OccurredAt:    time.Now().UTC(),
		SchemaVersion: 1,
		Data:          data,
	})

	return nil
}

func validateItems(items []LineItem) error {
	currency := items[0].UnitPrice.Currency
	for _, item := range items {
		if item.ProductID == "" {
			return newValidationError("product id is required")
		}
		if item.Quantity <= 0 {
			return newValidationError("quantity must be positive, got %d", item.Quantity)
		}
		if item.UnitPrice.IsNegative() {
			return newValidationError("unit price cannot be negative")
		}
		if item.UnitPrice.Currency != currency {
			return &Error{
				Code:    ErrCodeCurrencyMismatch,
				Message: fmt.Sprintf("line items mix currencies %s and %s", currency, item.UnitPrice.Currency),
			}
		}
	}
	return nil
}
