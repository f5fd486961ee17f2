package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"example.com/commerce/services/orders/domain"
	"example.com/commerce/services/orders/repository"
)

// MoneyRequest is an amount in minor units with its currency
type MoneyRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency" binding:"required,currency"`
}

// LineItemRequest is one order line in a command request
type LineItemRequest struct {
	ProductID string       `json:"product_id" binding:"required"`
	Quantity  int          `json:"quantity"`
	UnitPrice MoneyRequest `json:"unit_price" binding:"required"`
}

// CreateOrderRequest is the request to create an order
type CreateOrderRequest struct {
	CustomerID      string            `json:"customer_id" binding:"required"`
	ShippingAddress string            `json:"shipping_address" binding:"required"`
	Items           []LineItemRequest `json:"items" binding:"required,dive"`
}

// AddItemRequest is the request to add an item to a draft order
type AddItemRequest struct {
	ProductID string       `json:"product_id" binding:"required"`
	Quantity  int          `json:"quantity"`
	UnitPrice MoneyRequest `json:"unit_price" binding:"required"`
}

// PayOrderRequest is the request to record a payment
type PayOrderRequest struct {
	PaymentRef string `json:"payment_ref" binding:"required"`
}

// ShipOrderRequest is the request to ship a paid order
type ShipOrderRequest struct {
	TrackingNumber string `json:"tracking_number" binding:"required"`
}

// CancelOrderRequest is the request to cancel an order
type CancelOrderRequest struct {
	Reason string `json:"reason"`
}

// OrderResponse is the aggregate state returned by command endpoints
type OrderResponse struct {
	OrderID         string            `json:"order_id"`
	CustomerID      string            `json:"customer_id"`
	ShippingAddress string            `json:"shipping_address"`
	Status          string            `json:"status"`
	Items           []LineItemRequest `json:"items"`
	Total           MoneyRequest      `json:"total"`
	Version         int               `json:"version"`
	CreatedAt       time.Time         `json:"created_at"`
}

func toLineItems(items []LineItemRequest) []domain.LineItem {
	result := make([]domain.LineItem, 0, len(items))
	for _, item := range items {
		result = append(result, domain.LineItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: domain.Money{Amount: item.UnitPrice.Amount, Currency: item.UnitPrice.Currency},
		})
	}
	return result
}

func toOrderResponse(order *domain.Order) OrderResponse {
	items := make([]LineItemRequest, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, LineItemRequest{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: MoneyRequest{Amount: item.UnitPrice.Amount, Currency: item.UnitPrice.Currency},
		})
	}
	total := order.Total()

	return OrderResponse{
		OrderID:         order.ID,
		CustomerID:      order.CustomerID,
		ShippingAddress: order.ShippingAddress,
		Status:          string(order.Status),
		Items:           items,
		Total:           MoneyRequest{Amount: total.Amount, Currency: total.Currency},
		Version:         order.Version,
		CreatedAt:       order.CreatedAt,
	}
}

// createOrder handles POST /api/v1/orders
func (s *Server) createOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := s.orders.CreateOrder(c.Request.Context(), req.CustomerID, req.ShippingAddress, toLineItems(req.Items))
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toOrderResponse(order))
}

// getOrder handles GET /api/v1/orders/:id
func (s *Server) getOrder(c *gin.Context) {
	order, err := s.orders.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toOrderResponse(order))
}

// getOrderSummary handles GET /api/v1/orders/:id/summary
func (s *Server) getOrderSummary(c *gin.Context) {
	summary, err := s.orders.GetOrderSummary(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// addItem handles POST /api/v1/orders/:id/items
func (s *Server) addItem(c *gin.Context) {
	var req AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	item := domain.LineItem{
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		UnitPrice: domain.Money{Amount: req.UnitPrice.Amount, Currency: req.UnitPrice.Currency},
	}

	order, err := s.orders.AddItem(c.Request.Context(), c.Param("id"), item)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toOrderResponse(order))
}

// submitOrder handles POST /api/v1/orders/:id/submit
func (s *Server) submitOrder(c *gin.Context) {
	order, err := s.orders.SubmitOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toOrderResponse(order))
}

// payOrder handles POST /api/v1/orders/:id/pay
func (s *Server) payOrder(c *gin.Context) {
	var req PayOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := s.orders.PayOrder(c.Request.Context(), c.Param("id"), req.PaymentRef)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toOrderResponse(order))
}

// shipOrder handles POST /api/v1/orders/:id/ship
func (s *Server) shipOrder(c *gin.Context) {
	var req ShipOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := s.orders.ShipOrder(c.Request.Context(), c.Param("id"), req.TrackingNumber)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toOrderResponse(order))
}

// cancelOrder handles POST /api/v1/orders/:id/cancel
func (s *Server) cancelOrder(c *gin.Context) {
	var req CancelOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := s.orders.CancelOrder(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toOrderResponse(order))
}

// respondError maps domain and repository errors to HTTP status codes.
// Rule violations get 422, missing aggregates 404, write conflicts 409 and
// anything unexpected 500.
func (s *Server) respondError(c *gin.Context, err error) {
	var domainErr *domain.Error
	switch {
	case errors.As(err, &domainErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": domainErr.Message, "code": string(domainErr.Code)})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
	case errors.Is(err, repository.ErrConcurrency), errors.Is(err, repository.ErrDuplicateKey):
		c.JSON(http.StatusConflict, gin.H{"error": "order was modified concurrently, retry the request"})
	default:
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Unhandled API error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
