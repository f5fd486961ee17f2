package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"example.com/commerce/services/orders/config"
	"example.com/commerce/services/orders/service"
)

// Server is the HTTP server for the API
type Server struct {
	cfg        config.Config
	router     *gin.Engine
	httpServer *http.Server
	orders     service.OrderService
}

// NewServer creates a new API server
func NewServer(cfg config.Config, orders service.OrderService) *Server {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	server := &Server{
		cfg:    cfg,
		router: gin.New(),
		orders: orders,
	}

	if err := RegisterValidators(); err != nil {
		log.Error().Err(err).Msg("Failed to register custom validators")
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware adds middleware to the router
func (s *Server) setupMiddleware() {
	s.router.Use(RequestIDMiddleware())
	s.router.Use(CORSMiddleware())
	s.router.Use(gin.Recovery())
	s.router.Use(LoggingMiddleware())
}

// setupRoutes defines the API routes
func (s *Server) setupRoutes() {
	// Health check
	s.router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	v1 := s.router.Group("/api/v1")

	orderRoutes := v1.Group("/orders")
	{
		orderRoutes.POST("", s.createOrder)
		orderRoutes.GET("/:id", s.getOrder)
		orderRoutes.GET("/:id/summary", s.getOrderSummary)
		orderRoutes.POST("/:id/items", s.addItem)
		orderRoutes.POST("/:id/submit", s.submitOrder)
		orderRoutes.POST("/:id/pay", s.payOrder)
		orderRoutes.POST("/:id/ship", s.shipOrder)
		orderRoutes.POST("/:id/cancel", s.cancelOrder)
	}
}

// Handler exposes the router for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.cfg.ServerAddress,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ServerTimeout,
		WriteTimeout: s.cfg.ServerTimeout,
	}

	log.Info().Msgf("HTTP server starting on %s", s.cfg.ServerAddress)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
