package messaging

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/rs/zerolog/log"

	"example.com/commerce/services/orders/config"
)

// AzureClient wraps the Azure Service Bus client. Events are published with
// the aggregate id as the session id, which gives per-aggregate ordering on
// the bus; there is no cross-aggregate ordering guarantee.
type AzureClient struct {
	client        *azservicebus.Client
	queueName     string
	maxDeliveries int

	mu     sync.Mutex
	sender *azservicebus.Sender
}

// NewAzureClient creates a new Azure Service Bus client
func NewAzureClient(cfg config.AzureConfig) (*AzureClient, error) {
	client, err := azservicebus.NewClientFromConnectionString(cfg.QueueConnStr, nil)
	if err != nil {
		return nil, err
	}

	maxDeliveries := cfg.MaxDeliveryAttempts
	if maxDeliveries <= 0 {
		maxDeliveries = 5
	}

	return &AzureClient{
		client:        client,
		queueName:     cfg.EventsQueueName,
		maxDeliveries: maxDeliveries,
	}, nil
}

// Publish sends an envelope body to the events queue under a session id
func (a *AzureClient) Publish(ctx context.Context, sessionID string, body []byte) error {
	sender, err := a.getSender()
	if err != nil {
		return err
	}

	message := &azservicebus.Message{
		Body:      body,
		SessionID: &sessionID,
	}
	return sender.SendMessage(ctx, message, nil)
}

func (a *AzureClient) getSender() (*azservicebus.Sender, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.sender != nil {
		return a.sender, nil
	}

	sender, err := a.client.NewSender(a.queueName, nil)
	if err != nil {
		return nil, err
	}
	a.sender = sender
	return sender, nil
}

// StartConsumers accepts queue sessions and processes their messages until
// the context is cancelled. One goroutine per session keeps per-aggregate
// ordering while unrelated aggregates proceed in parallel.
func (a *AzureClient) StartConsumers(ctx context.Context, processor MessageProcessor) error {
	log.Info().Msgf("Starting consumers for queue %s", a.queueName)

	for {
		sessionReceiver, err := a.client.AcceptNextSessionForQueue(ctx, a.queueName, nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var sbErr *azservicebus.Error
			if errors.As(err, &sbErr) && sbErr.Code == azservicebus.CodeTimeout {
				log.Debug().Msg("No session available, waiting...")
				time.Sleep(2 * time.Second)
				continue
			}
			return err
		}

		log.Info().Msgf("Session '%s' received", sessionReceiver.SessionID())

		go a.handleSession(ctx, sessionReceiver, processor)
	}
}

func (a *AzureClient) handleSession(ctx context.Context, receiver *azservicebus.SessionReceiver, processor MessageProcessor) {
	defer func() {
		log.Info().Msgf("Closing session '%s'", receiver.SessionID())
		if err := receiver.Close(context.Background()); err != nil {
			log.Error().Err(err).Msgf("Error closing session '%s'", receiver.SessionID())
		}
	}()

	for {
		messages, err := receiver.ReceiveMessages(ctx, 10, nil)
		if err != nil {
			if ctx.Err() == nil {
				log.Error().Err(err).Msgf("Error receiving messages from session '%s'", receiver.SessionID())
			}
			return
		}

		if len(messages) == 0 {
			// No more messages in this session
			return
		}

		for _, message := range messages {
			if err := processor.ProcessMessage(ctx, message); err != nil {
				log.Error().Err(err).
					Str("messageID", message.MessageID).
					Uint32("deliveryCount", message.DeliveryCount).
					Msg("Error processing message")

				// Poison messages go to the dead-letter path instead of
				// blocking the session forever.
				if int(message.DeliveryCount) >= a.maxDeliveries {
					if dlErr := processor.DeadLetter(ctx, message, err); dlErr != nil {
						log.Error().Err(dlErr).Msgf("Failed to dead-letter message '%s'", message.MessageID)
						if abErr := receiver.AbandonMessage(ctx, message, nil); abErr != nil {
							log.Error().Err(abErr).Msgf("(AbandonMessage) err: %v", abErr)
						}
						continue
					}
					if cmErr := receiver.CompleteMessage(ctx, message, nil); cmErr != nil {
						log.Error().Err(cmErr).Msgf("(CompleteMessage) err: %v", cmErr)
					}
					continue
				}

				// Return the message to the queue for redelivery
				if abErr := receiver.AbandonMessage(ctx, message, nil); abErr != nil {
					log.Error().Err(abErr).Msgf("(AbandonMessage) err: %v", abErr)
				}
				continue
			}

			if err := receiver.CompleteMessage(ctx, message, nil); err != nil {
				log.Error().Err(err).Msgf("(CompleteMessage) err: %v", err)
			}
		}
	}
}

// IsTransientError checks if an error is a transient connection error
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}

	errMsg := err.Error()
	return strings.Contains(errMsg, "amqp: link detached") ||
		strings.Contains(errMsg, "awaiting send: context deadline exceeded") ||
		strings.Contains(errMsg, "connection reset")
}

// RetryWithBackoff retries an operation with exponential backoff, capped at
// 30 seconds per wait. Non-transient errors fail immediately.
func RetryWithBackoff(ctx context.Context, fn func() error, maxRetries int) error {
	var err error

	for retry := 0; retry < maxRetries; retry++ {
		err = fn()
		if err == nil {
			return nil
		}

		if !IsTransientError(err) {
			return err
		}

		backoff := time.Duration(1<<uint(retry)) * time.Second
		if backoff > 30*time.Second {
			backoff = 30 * time.Second
		}

		select {
		case <-time.After(backoff):
			continue
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return err
}
