package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func usd(amount int64) Money {
	return NewMoney(amount, "USD")
}

func draftOrder(t *testing.T) *Order {
	t.Helper()
	order, err := NewOrder("customer-1", "12 Main St", []LineItem{
		{ProductID: "widget", Quantity: 3, UnitPrice: usd(1000)},
		{ProductID: "gadget", Quantity: 1, UnitPrice: usd(500)},
	})
	require.NoError(t, err)
	return order
}

func TestNewOrderStartsAsDraft(t *testing.T) {
	order := draftOrder(t)

	require.Equal(t, StatusDraft, order.Status)
	require.NotEmpty(t, order.ID)
	require.Equal(t, 1, order.Version)
	require.Equal(t, 0, order.BaseVersion())

	events := order.PendingEvents()
	require.Len(t, events, 1)
	require.Equal(t, OrderCreated, events[0].Type)
	require.Equal(t, order.ID, events[0].AggregateID)
	require.Equal(t, 1, events[0].Version)
}

func TestNewOrderComputesTotalFromItems(t *testing.T) {
	order := draftOrder(t)

	// 3 x $10.00 + 1 x $5.00
	require.Equal(t, int64(3500), order.Total().Amount)
	require.Equal(t, "USD", order.Total().Currency)
}

func TestNewOrderValidation(t *testing.T) {
	tests := []struct {
		name       string
		customerID string
		items      []LineItem
		code       ErrorCode
	}{
		{
			name:       "missing customer",
			customerID: "",
			items:      []LineItem{{ProductID: "widget", Quantity: 1, UnitPrice: usd(100)}},
			code:       ErrCodeValidation,
		},
		{
			name:       "no items",
			customerID: "customer-1",
			items:      nil,
			code:       ErrCodeValidation,
		},
		{
			name:       "missing product id",
			customerID: "customer-1",
			items:      []LineItem{{ProductID: "", Quantity: 1, UnitPrice: usd(100)}},
			code:       ErrCodeValidation,
		},
		{
			name:       "zero quantity",
			customerID: "customer-1",
			items:      []LineItem{{ProductID: "widget", Quantity: 0, UnitPrice: usd(100)}},
			code:       ErrCodeValidation,
		},
		{
			name:       "negative price",
			customerID: "customer-1",
			items:      []LineItem{{ProductID: "widget", Quantity: 1, UnitPrice: usd(-100)}},
			code:       ErrCodeValidation,
		},
		{
			name:       "mixed currencies",
			customerID: "customer-1",
			items: []LineItem{
				{ProductID: "widget", Quantity: 1, UnitPrice: usd(100)},
				{ProductID: "gadget", Quantity: 1, UnitPrice: NewMoney(100, "EUR")},
			},
			code: ErrCodeCurrencyMismatch,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			order, err := NewOrder(tc.customerID, "12 Main St", tc.items)
			require.Nil(t, order)

			var derr *Error
			require.ErrorAs(t, err, &derr)
			require.Equal(t, tc.code, derr.Code)
		})
	}
}

func TestAddItemMergesQuantityForSameProduct(t *testing.T) {
	order := draftOrder(t)

	err := order.AddItem("widget", 2, usd(1000))
	require.NoError(t, err)

	require.Len(t, order.Items, 2)
	require.Equal(t, 5, order.Items[0].Quantity)
	require.Equal(t, int64(5500), order.Total().Amount)

	events := order.PendingEvents()
	require.Len(t, events, 2)
	require.Equal(t, OrderItemAdded, events[1].Type)

	data := events[1].Data.(OrderItemAddedEvent)
	require.Equal(t, 2, data.ItemCount)
	require.Equal(t, int64(5500), data.Total.Amount)
}

func TestAddItemRejectsCurrencyMismatch(t *testing.T) {
	order := draftOrder(t)

	err := order.AddItem("imported", 1, NewMoney(100, "EUR"))

	var derr *Error
	require.ErrorAs(t, err, &derr)
	require.Equal(t, ErrCodeCurrencyMismatch, derr.Code)
}

func TestAddItemOnlyAllowedInDraft(t *testing.T) {
	order := draftOrder(t)
	require.NoError(t, order.Submit())

	err := order.AddItem("widget", 1, usd(1000))

	var derr *Error
	require.ErrorAs(t, err, &derr)
	require.Equal(t, ErrCodeInvalidTransition, derr.Code)
}

func TestLifecycleHappyPath(t *testing.T) {
	order := draftOrder(t)

	require.NoError(t, order.Submit())
	require.Equal(t, StatusSubmitted, order.Status)

	require.NoError(t, order.Pay("pay-123"))
	require.Equal(t, StatusPaid, order.Status)

	require.NoError(t, order.Ship("track-456"))
	require.Equal(t, StatusShipped, order.Status)

	events := order.PendingEvents()
	require.Len(t, events, 4)
	require.Equal(t, OrderCreated, events[0].Type)
	require.Equal(t, OrderSubmitted, events[1].Type)
	require.Equal(t, OrderPaid, events[2].Type)
	require.Equal(t, OrderShipped, events[3].Type)

	// Versions are strictly increasing with no gaps
	for i, event := range events {
		require.Equal(t, i+1, event.Version)
	}
	require.Equal(t, 4, order.Version)
}

func TestInvalidTransitions(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(o *Order)
		act     func(o *Order) error
	}{
		{
			name:    "double submit",
			prepare: func(o *Order) { require.NoError(t, o.Submit()) },
			act:     func(o *Order) error { return o.Submit() },
		},
		{
			name:    "pay before submit",
			prepare: func(o *Order) {},
			act:     func(o *Order) error { return o.Pay("pay-123") },
		},
		{
			name:    "ship before pay",
			prepare: func(o *Order) { require.NoError(t, o.Submit()) },
			act:     func(o *Order) error { return o.Ship("track-456") },
		},
		{
			name: "ship twice",
			prepare: func(o *Order) {
				require.NoError(t, o.Submit())
				require.NoError(t, o.Pay("pay-123"))
				require.NoError(t, o.Ship("track-456"))
			},
			act: func(o *Order) error { return o.Ship("track-789") },
		},
		{
			name: "cancel after ship",
			prepare: func(o *Order) {
				require.NoError(t, o.Submit())
				require.NoError(t, o.Pay("pay-123"))
				require.NoError(t, o.Ship("track-456"))
			},
			act: func(o *Order) error { return o.Cancel("changed my mind") },
		},
		{
			name:    "ship after cancel",
			prepare: func(o *Order) { require.NoError(t, o.Cancel("changed my mind")) },
			act:     func(o *Order) error { return o.Ship("track-456") },
		},
		{
			name:    "cancel twice",
			prepare: func(o *Order) { require.NoError(t, o.Cancel("dupe")) },
			act:     func(o *Order) error { return o.Cancel("dupe again") },
		},
		{
			name:    "submit after cancel",
			prepare: func(o *Order) { require.NoError(t, o.Cancel("changed my mind")) },
			act:     func(o *Order) error { return o.Submit() },
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			order := draftOrder(t)
			tc.prepare(order)
			versionBefore := order.Version
			pendingBefore := len(order.PendingEvents())

			err := tc.act(order)

			var derr *Error
			require.ErrorAs(t, err, &derr)
			require.Equal(t, ErrCodeInvalidTransition, derr.Code)

			// A rejected command records nothing
			require.Equal(t, versionBefore, order.Version)
			require.Len(t, order.PendingEvents(), pendingBefore)
		})
	}
}

func TestCancelAllowedFromDraftSubmittedAndPaid(t *testing.T) {
	prepare := map[string]func(o *Order){
		"draft": func(o *Order) {},
		"submitted": func(o *Order) {
			require.NoError(t, o.Submit())
		},
		"paid": func(o *Order) {
			require.NoError(t, o.Submit())
			require.NoError(t, o.Pay("pay-123"))
		},
	}

	for name, fn := range prepare {
		t.Run(name, func(t *testing.T) {
			order := draftOrder(t)
			fn(order)

			require.NoError(t, order.Cancel("customer request"))
			require.Equal(t, StatusCancelled, order.Status)

			events := order.PendingEvents()
			last := events[len(events)-1]
			require.Equal(t, OrderCancelled, last.Type)
			require.Equal(t, "customer request", last.Data.(OrderCancelledEvent).Reason)
		})
	}
}

func TestSubmitRequiresItems(t *testing.T) {
	order := RehydrateOrder("order-1", "customer-1", "12 Main St", StatusDraft, nil, time.Now().UTC(), 1)

	err := order.Submit()

	var derr *Error
	require.ErrorAs(t, err, &derr)
	require.Equal(t, ErrCodeValidation, derr.Code)
}

func TestPayRequiresReference(t *testing.T) {
	order := draftOrder(t)
	require.NoError(t, order.Submit())

	err := order.Pay("")

	var derr *Error
	require.ErrorAs(t, err, &derr)
	require.Equal(t, ErrCodeValidation, derr.Code)
	require.Equal(t, StatusSubmitted, order.Status)
}

func TestClearPendingAdvancesBaseVersion(t *testing.T) {
	order := draftOrder(t)
	require.NoError(t, order.Submit())
	require.Equal(t, 0, order.BaseVersion())

	order.ClearPending()

	require.Empty(t, order.PendingEvents())
	require.Equal(t, 2, order.BaseVersion())
	require.Equal(t, order.Version, order.BaseVersion())
}

func TestRehydrateOrderKeepsVersionAsBase(t *testing.T) {
	items := []LineItem{{ProductID: "widget", Quantity: 2, UnitPrice: usd(1000)}}
	order := RehydrateOrder("order-1", "customer-1", "12 Main St", StatusSubmitted, items, time.Now().UTC(), 3)

	require.Equal(t, 3, order.Version)
	require.Equal(t, 3, order.BaseVersion())
	require.Empty(t, order.PendingEvents())

	require.NoError(t, order.Pay("pay-123"))
	require.Equal(t, 4, order.Version)
	require.Equal(t, 3, order.BaseVersion())
	require.Equal(t, 4, order.PendingEvents()[0].Version)
}
