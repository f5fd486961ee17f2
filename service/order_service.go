package service

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/commerce/services/orders/cache"
	"example.com/commerce/services/orders/domain"
	"example.com/commerce/services/orders/models"
	"example.com/commerce/services/orders/repository"
	"example.com/commerce/services/orders/tracing"
)

// OrderService implements the order command and query operations
type OrderService interface {
	CreateOrder(ctx context.Context, customerID, shippingAddress string, items []domain.LineItem) (*domain.Order, error)
	AddItem(ctx context.Context, orderID string, item domain.LineItem) (*domain.Order, error)
	SubmitOrder(ctx context.Context, orderID string) (*domain.Order, error)
	PayOrder(ctx context.Context, orderID, paymentRef string) (*domain.Order, error)
	ShipOrder(ctx context.Context, orderID, trackingNumber string) (*domain.Order, error)
	CancelOrder(ctx context.Context, orderID, reason string) (*domain.Order, error)
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
	GetOrderSummary(ctx context.Context, orderID string) (*models.OrderSummary, error)
}

type orderService struct {
	orders    repository.OrderRepository
	summaries repository.SummaryRepository
	cache     *cache.RedisCache
	tracer    tracing.Tracer
}

// NewOrderService creates a new order service
func NewOrderService(orders repository.OrderRepository, summaries repository.SummaryRepository, redisCache *cache.RedisCache, tracer tracing.Tracer) OrderService {
	if tracer == nil {
		tracer = tracing.Disabled()
	}
	return &orderService{
		orders:    orders,
		summaries: summaries,
		cache:     redisCache,
		tracer:    tracer,
	}
}

// CreateOrder validates the input through the aggregate constructor and
// persists the new order together with its creation event.
func (s *orderService) CreateOrder(ctx context.Context, customerID, shippingAddress string, items []domain.LineItem) (*domain.Order, error) {
	txn := s.tracer.StartTransaction("OrderService.CreateOrder")
	defer s.tracer.EndTransaction(txn)

	order, derr := domain.NewOrder(customerID, shippingAddress, items)
	if derr != nil {
		return nil, derr
	}

	if err := s.orders.Save(ctx, order); err != nil {
		s.tracer.RecordError(txn, err)
		return nil, errors.Wrap(err, "failed to save new order")
	}

	log.Info().
		Str("order_id", order.ID).
		Str("customer_id", customerID).
		Int("items", len(items)).
		Msg("Order created")

	return order, nil
}

// AddItem merges an item into a draft order
func (s *orderService) AddItem(ctx context.Context, orderID string, item domain.LineItem) (*domain.Order, error) {
	txn := s.tracer.StartTransaction("OrderService.AddItem")
	defer s.tracer.EndTransaction(txn)

	return s.mutate(ctx, orderID, func(order *domain.Order) error {
		return order.AddItem(item.ProductID, item.Quantity, item.UnitPrice)
	}, "Order item added")
}

// SubmitOrder moves a draft order to Submitted
func (s *orderService) SubmitOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	txn := s.tracer.StartTransaction("OrderService.SubmitOrder")
	defer s.tracer.EndTransaction(txn)

	return s.mutate(ctx, orderID, func(order *domain.Order) error {
		return order.Submit()
	}, "Order submitted")
}

// PayOrder records a payment against a submitted order
func (s *orderService) PayOrder(ctx context.Context, orderID, paymentRef string) (*domain.Order, error) {
	txn := s.tracer.StartTransaction("OrderService.PayOrder")
	defer s.tracer.EndTransaction(txn)

	return s.mutate(ctx, orderID, func(order *domain.Order) error {
		return order.Pay(paymentRef)
	}, "Order paid")
}

// ShipOrder moves a paid order to Shipped
func (s *orderService) ShipOrder(ctx context.Context, orderID, trackingNumber string) (*domain.Order, error) {
	txn := s.tracer.StartTransaction("OrderService.ShipOrder")
	defer s.tracer.EndTransaction(txn)

	return s.mutate(ctx, orderID, func(order *domain.Order) error {
		return order.Ship(trackingNumber)
	}, "Order shipped")
}

// CancelOrder cancels an order that has not shipped
func (s *orderService) CancelOrder(ctx context.Context, orderID, reason string) (*domain.Order, error) {
	txn := s.tracer.StartTransaction("OrderService.CancelOrder")
	defer s.tracer.EndTransaction(txn)

	return s.mutate(ctx, orderID, func(order *domain.Order) error {
		return order.Cancel(reason)
	}, "Order cancelled")
}

// GetOrder loads the current aggregate state
func (s *orderService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	txn := s.tracer.StartTransaction("OrderService.GetOrder")
	defer s.tracer.EndTransaction(txn)

	order, err := s.orders.Load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return order, nil
}

// GetOrderSummary reads the denormalized summary through the cache. A cache
// failure degrades to a database read, never to an error.
func (s *orderService) GetOrderSummary(ctx context.Context, orderID string) (*models.OrderSummary, error) {
	txn := s.tracer.StartTransaction("OrderService.GetOrderSummary")
	defer s.tracer.EndTransaction(txn)

	if s.cache != nil && s.cache.Enabled() {
		var cached models.OrderSummary
		err := s.cache.Get(ctx, s.cache.SummaryKey(orderID), &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Warn().Err(err).Str("order_id", orderID).Msg("Failed to read cached summary")
		}
	}

	summary, err := s.summaries.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && s.cache.Enabled() {
		if err := s.cache.Set(ctx, s.cache.SummaryKey(orderID), summary); err != nil {
			log.Warn().Err(err).Str("order_id", orderID).Msg("Failed to cache summary")
		}
	}

	return summary, nil
}

// mutate runs the load, apply, save cycle shared by all command handlers.
// Domain errors and repository sentinels pass through unwrapped so the API
// layer can map them to status codes.
func (s *orderService) mutate(ctx context.Context, orderID string, apply func(*domain.Order) error, logMsg string) (*domain.Order, error) {
	order, err := s.orders.Load(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if derr := apply(order); derr != nil {
		return nil, derr
	}

	if err := s.orders.Save(ctx, order); err != nil {
		return nil, err
	}

	log.Info().
		Str("order_id", order.ID).
		Str("status", string(order.Status)).
		Int("version", order.Version).
		Msg(logMsg)

	return order, nil
}
