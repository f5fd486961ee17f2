package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"example.com/commerce/services/orders/domain"
	"example.com/commerce/services/orders/models"
	"example.com/commerce/services/orders/repository"
)

// Mock repositories for testing
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) Load(ctx context.Context, id string) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderRepository) Save(ctx context.Context, order *domain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

type MockSummaryRepository struct {
	mock.Mock
}

func (m *MockSummaryRepository) Get(ctx context.Context, orderID string) (*models.OrderSummary, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OrderSummary), args.Error(1)
}

func testItems() []domain.LineItem {
	return []domain.LineItem{
		{ProductID: "widget", Quantity: 3, UnitPrice: domain.NewMoney(1000, "USD")},
	}
}

func submittedOrder() *domain.Order {
	return domain.RehydrateOrder("order-1", "customer-1", "12 Main St",
		domain.StatusSubmitted, testItems(), time.Now().UTC(), 2)
}

func TestCreateOrderSavesAggregate(t *testing.T) {
	orderRepo := new(MockOrderRepository)
	orderRepo.On("Save", mock.Anything, mock.AnythingOfType("*domain.Order")).Return(nil)

	svc := NewOrderService(orderRepo, nil, nil, nil)

	order, err := svc.CreateOrder(context.Background(), "customer-1", "12 Main St", testItems())
	require.NoError(t, err)
	require.NotNil(t, order)
	require.Equal(t, domain.StatusDraft, order.Status)
	require.Len(t, order.PendingEvents(), 1)

	orderRepo.AssertExpectations(t)
}

func TestCreateOrderRejectsInvalidInputWithoutSaving(t *testing.T) {
	orderRepo := new(MockOrderRepository)
	svc := NewOrderService(orderRepo, nil, nil, nil)

	_, err := svc.CreateOrder(context.Background(), "", "12 Main St", testItems())

	var derr *domain.Error
	require.ErrorAs(t, err, &derr)
	require.Equal(t, domain.ErrCodeValidation, derr.Code)
	orderRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestPayOrderHappyPath(t *testing.T) {
	orderRepo := new(MockOrderRepository)
	orderRepo.On("Load", mock.Anything, "order-1").Return(submittedOrder(), nil)
	orderRepo.On("Save", mock.Anything, mock.AnythingOfType("*domain.Order")).Return(nil)

	svc := NewOrderService(orderRepo, nil, nil, nil)

	order, err := svc.PayOrder(context.Background(), "order-1", "pay-123")
	require.NoError(t, err)
	require.Equal(t, domain.StatusPaid, order.Status)
	require.Len(t, order.PendingEvents(), 1)

	orderRepo.AssertExpectations(t)
}

func TestCommandFailsOnMissingOrder(t *testing.T) {
	orderRepo := new(MockOrderRepository)
	orderRepo.On("Load", mock.Anything, "order-1").Return(nil, repository.ErrNotFound)

	svc := NewOrderService(orderRepo, nil, nil, nil)

	_, err := svc.SubmitOrder(context.Background(), "order-1")
	require.ErrorIs(t, err, repository.ErrNotFound)
	orderRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestCommandPassesThroughDomainError(t *testing.T) {
	orderRepo := new(MockOrderRepository)
	// Submitting an already submitted order is a rule violation
	orderRepo.On("Load", mock.Anything, "order-1").Return(submittedOrder(), nil)

	svc := NewOrderService(orderRepo, nil, nil, nil)

	_, err := svc.SubmitOrder(context.Background(), "order-1")

	var derr *domain.Error
	require.ErrorAs(t, err, &derr)
	require.Equal(t, domain.ErrCodeInvalidTransition, derr.Code)
	orderRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestCommandPassesThroughConcurrencyConflict(t *testing.T) {
	orderRepo := new(MockOrderRepository)
	orderRepo.On("Load", mock.Anything, "order-1").Return(submittedOrder(), nil)
	orderRepo.On("Save", mock.Anything, mock.AnythingOfType("*domain.Order")).Return(repository.ErrConcurrency)

	svc := NewOrderService(orderRepo, nil, nil, nil)

	_, err := svc.PayOrder(context.Background(), "order-1", "pay-123")
	require.ErrorIs(t, err, repository.ErrConcurrency)
}

func TestCancelOrderRecordsReason(t *testing.T) {
	orderRepo := new(MockOrderRepository)
	orderRepo.On("Load", mock.Anything, "order-1").Return(submittedOrder(), nil)
	orderRepo.On("Save", mock.Anything, mock.AnythingOfType("*domain.Order")).Return(nil)

	svc := NewOrderService(orderRepo, nil, nil, nil)

	order, err := svc.CancelOrder(context.Background(), "order-1", "customer request")
	require.NoError(t, err)
	require.Equal(t, domain.StatusCancelled, order.Status)

	events := order.PendingEvents()
	require.Len(t, events, 1)
	require.Equal(t, "customer request", events[0].Data.(domain.OrderCancelledEvent).Reason)
}

func TestGetOrderSummaryReadsRepositoryWithoutCache(t *testing.T) {
	summaryRepo := new(MockSummaryRepository)
	summaryRepo.On("Get", mock.Anything, "order-1").Return(&models.OrderSummary{
		OrderID:     "order-1",
		Status:      string(domain.StatusPaid),
		TotalAmount: 3500,
	}, nil)

	svc := NewOrderService(nil, summaryRepo, nil, nil)

	summary, err := svc.GetOrderSummary(context.Background(), "order-1")
	require.NoError(t, err)
	require.Equal(t, "order-1", summary.OrderID)
	require.Equal(t, int64(3500), summary.TotalAmount)

	summaryRepo.AssertExpectations(t)
}

func TestGetOrderSummaryNotFound(t *testing.T) {
	summaryRepo := new(MockSummaryRepository)
	summaryRepo.On("Get", mock.Anything, "missing").Return(nil, repository.ErrNotFound)

	svc := NewOrderService(nil, summaryRepo, nil, nil)

	_, err := svc.GetOrderSummary(context.Background(), "missing")
	require.ErrorIs(t, err, repository.ErrNotFound)
}
