package cmd

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"example.com/commerce/services/orders/config"
	"example.com/commerce/services/orders/messaging"
	"example.com/commerce/services/orders/repository"
)

var (
	replayStart       string
	replayEnd         string
	replayAggregateID string
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Republish already published events to the message queue",
	Long: `Replay events from the outbox that were already published once, for
rebuilding read models. Consumers are idempotent, so replayed events that
were applied before are skipped.`,
	RunE: runReplay,
}

func init() {
	defaultStart := time.Now().Add(-24 * time.Hour).Format(time.DateTime)

	replayCmd.Flags().StringVarP(&replayStart, "start", "s", defaultStart, "start time (format: 2006-01-02 15:04:05)")
	replayCmd.Flags().StringVarP(&replayEnd, "end", "e", "", "end time, defaults to now (format: 2006-01-02 15:04:05)")
	replayCmd.Flags().StringVarP(&replayAggregateID, "aggregate-id", "a", "", "limit the replay to one order")

	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return err
	}

	start, err := time.Parse(time.DateTime, replayStart)
	if err != nil {
		return err
	}

	end := time.Now()
	if replayEnd != "" {
		end, err = time.Parse(time.DateTime, replayEnd)
		if err != nil {
			return err
		}
	}

	db, err := initDatabase(cfg)
	if err != nil {
		return err
	}

	azureClient, err := messaging.NewAzureClient(cfg.Azure)
	if err != nil {
		return err
	}

	outboxRepo := repository.NewGormOutboxRepository(db)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	events, err := outboxRepo.FetchPublished(ctx, start, end, replayAggregateID)
	if err != nil {
		return err
	}

	count := 0
	for _, event := range events {
		body, err := messaging.NewEnvelope(event).Marshal()
		if err != nil {
			log.Error().Err(err).Str("event_id", event.EventID).Msg("Failed to encode event, skipping")
			continue
		}

		if err := azureClient.Publish(ctx, event.AggregateID, body); err != nil {
			log.Error().Err(err).Str("event_id", event.EventID).Msg("Failed to republish event")
			return err
		}
		count++
	}

	log.Info().Int("count", count).Msg("Republished events")
	return nil
}
