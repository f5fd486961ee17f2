package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"example.com/commerce/services/orders/cache"
	"example.com/commerce/services/orders/config"
	"example.com/commerce/services/orders/messaging"
	"example.com/commerce/services/orders/outbox"
	"example.com/commerce/services/orders/projections"
	"example.com/commerce/services/orders/repository"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the background worker",
	Long:  `Start the outbox relay and the projection consumers for Azure Service Bus`,
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
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

	g, ctx := errgroup.WithContext(ctx)

	db, err := initDatabase(cfg)
	if err != nil {
		return err
	}

	redisCache, err := cache.NewRedisCache(cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis cache, continuing without caching")
	}

	elasticClient, err := projections.NewElasticsearchClient(cfg.Elastic)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Elasticsearch client, continuing without search indexing")
	} else if err := projections.EnsureIndices(elasticClient, cfg.Elastic); err != nil {
		log.Warn().Err(err).Msg("Failed to ensure Elasticsearch indices")
	}

	azureClient, err := messaging.NewAzureClient(cfg.Azure)
	if err != nil {
		return err
	}

	outboxRepo := repository.NewGormOutboxRepository(db)
	publisher := outbox.NewPublisher(outboxRepo, azureClient, cfg.Outbox)

	projector := projections.NewOrderSummaryProjector(db, elasticClient, redisCache, cfg.Elastic)
	processor := messaging.NewProcessor(projector, db)

	// Outbox relay
	g.Go(func() error {
		log.Info().
			Int("batch_size", cfg.Outbox.BatchSize).
			Dur("interval", cfg.Outbox.Interval).
			Msg("Starting outbox relay")
		return publisher.Run(ctx)
	})

	// Projection consumers
	g.Go(func() error {
		log.Info().Str("queue", cfg.Azure.EventsQueueName).Msg("Starting Service Bus consumers")
		return azureClient.StartConsumers(ctx, processor)
	})

	// Stuck outbox monitoring as a fallback mechanism
	g.Go(func() error {
		scheduler, err := gocron.NewScheduler()
		if err != nil {
			return err
		}

		threshold := cfg.Outbox.StuckThreshold
		if threshold <= 0 {
			threshold = 5 * time.Minute
		}

		_, err = scheduler.NewJob(
			gocron.DurationJob(threshold),
			gocron.NewTask(func() {
				publisher.ReportStuck(ctx, threshold)
			}),
		)
		if err != nil {
			return err
		}

		scheduler.Start()

		<-ctx.Done()

		return scheduler.Shutdown()
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Worker error")
		return err
	}

	log.Info().Msg("Worker shutting down gracefully")
	return nil
}
