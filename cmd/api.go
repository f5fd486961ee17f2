package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"example.com/commerce/services/orders/api"
	"example.com/commerce/services/orders/cache"
	"example.com/commerce/services/orders/config"
	"example.com/commerce/services/orders/repository"
	"example.com/commerce/services/orders/service"
	"example.com/commerce/services/orders/tracing"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long:  `Start the HTTP API server to handle order commands and summary queries`,
	RunE:  runAPI,
}

func init() {
	rootCmd.AddCommand(apiCmd)
}

func runAPI(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return err
	}

	if cfg.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	db, err := initDatabase(cfg)
	if err != nil {
		return err
	}

	redisCache, err := cache.NewRedisCache(cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis cache, continuing without caching")
	}

	tracer, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
	}

	orderRepo := repository.NewGormOrderRepository(db)
	summaryRepo := repository.NewGormSummaryRepository(db)
	orderService := service.NewOrderService(orderRepo, summaryRepo, redisCache, tracer)

	server := api.NewServer(cfg, orderService)

	go func() {
		if err := server.Start(); err != nil {
			log.Error().Err(err).Msg("Server error")
		}
	}()

	<-ctx.Done()

	if err := server.Shutdown(context.Background()); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	log.Info().Msg("Shutting down API server")
	return nil
}
