package models

import (
	"time"

	"gorm.io/gorm"
)

// Order represents the current aggregate state in the database. The Version
// column is the optimistic concurrency counter compared on every update.
type Order struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	OrderID         string    `gorm:"uniqueIndex" json:"order_id"`
	CustomerID      string    `gorm:"index" json:"customer_id"`
	ShippingAddress string    `json:"shipping_address"`
	Status          string    `gorm:"index" json:"status"`
	Items           []byte    `json:"items"`
	Currency        string    `json:"currency"`
	TotalAmount     int64     `json:"total_amount"`
	Version         int       `json:"version"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// OutboxEvent wraps a domain event in the durable outbox. Rows are written
// in the same transaction as the aggregate and mutated only by the relay.
type OutboxEvent struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	EventID       string     `gorm:"uniqueIndex" json:"event_id"`
	AggregateID   string     `gorm:"index" json:"aggregate_id"`
	EventType     string     `json:"event_type"`
	Data          []byte     `json:"data"`
	Version       int        `json:"version"`
	SchemaVersion int        `json:"schema_version"`
	OccurredAt    time.Time  `json:"occurred_at"`
	Published     bool       `gorm:"index" json:"published"`
	PublishedAt   *time.Time `json:"published_at"`
	Error         *string    `json:"error"`
	CreatedAt     time.Time  `json:"created_at"`
}

// OrderSummary is the denormalized read model, owned exclusively by the
// projection worker and eventually consistent with the aggregate.
type OrderSummary struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	OrderID          string     `gorm:"uniqueIndex" json:"order_id"`
	CustomerID       string     `gorm:"index" json:"customer_id"`
	Status           string     `json:"status"`
	ItemCount        int        `json:"item_count"`
	TotalAmount      int64      `json:"total_amount"`
	Currency         string     `json:"currency"`
	PaymentRef       *string    `json:"payment_ref"`
	TrackingNumber   *string    `json:"tracking_number"`
	CancelReason     *string    `json:"cancel_reason"`
	SubmittedAt      *time.Time `json:"submitted_at"`
	PaidAt           *time.Time `json:"paid_at"`
	ShippedAt        *time.Time `json:"shipped_at"`
	CancelledAt      *time.Time `json:"cancelled_at"`
	LastEventVersion int        `json:"last_event_version"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// InboxEvent is the consumer-side ledger of applied event ids, used to skip
// duplicate deliveries.
type InboxEvent struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	EventID     string    `gorm:"uniqueIndex" json:"event_id"`
	AggregateID string    `gorm:"index" json:"aggregate_id"`
	ProcessedAt time.Time `json:"processed_at"`
}

// DeadLetterEvent parks events that exhausted their delivery attempts so
// they never block processing of unrelated aggregates.
type DeadLetterEvent struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	EventID     string    `gorm:"index" json:"event_id"`
	AggregateID string    `gorm:"index" json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Data        []byte    `json:"data"`
	Attempts    int       `json:"attempts"`
	LastError   string    `json:"last_error"`
	CreatedAt   time.Time `json:"created_at"`
}

// SetupModels runs the schema migrations
func SetupModels(db *gorm.DB) error {
	return db.AutoMigrate(
		&Order{},
		&OutboxEvent{},
		&OrderSummary{},
		&InboxEvent{},
		&DeadLetterEvent{},
	)
}
