// Package notification emails customers about their account and orders. It
// consumes the events the outbox publishes and never blocks the order path.
package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/jackc/pgx/v5/pgxpool"
	sharedDomain "github.com/sakashimaa/electro-shop/pkg/domain"
	"github.com/sakashimaa/electro-shop/pkg/kafka"
	"github.com/sakashimaa/electro-shop/pkg/mylogger"
	outboxUtils "github.com/sakashimaa/electro-shop/pkg/outbox/utils"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const consumerName = "notification"

var Topics = []string{
	sharedDomain.TopicOrderPlaced,
	sharedDomain.TopicOrderStatusChanged,
	sharedDomain.TopicUserRegistered,
}

// Deduplicator runs action once per (consumer, eventID).
type Deduplicator func(ctx context.Context, consumer string, eventID int64, action func(ctx context.Context) error) error

func PostgresDeduplicator(pool *pgxpool.Pool, logger *zap.Logger) Deduplicator {
	return func(ctx context.Context, consumer string, eventID int64, action func(ctx context.Context) error) error {
		return outboxUtils.ProcessWithDeduplication(ctx, pool, logger, consumer, eventID, action)
	}
}

type Service struct {
	sender Sender
	dedup  Deduplicator
	logger *zap.Logger
	tracer trace.Tracer
}

func NewService(sender Sender, dedup Deduplicator, logger *zap.Logger) *Service {
	return &Service{
		sender: sender,
		dedup:  dedup,
		logger: logger,
		tracer: otel.Tracer("notification/service"),
	}
}

// Start blocks consuming the storefront topics until ctx is cancelled.
func (s *Service) Start(ctx context.Context, brokers []string, groupID string) error {
	return kafka.NewConsumerGroup(brokers, groupID, Topics, s.HandleMessage, s.logger).Run(ctx)
}

type envelope struct {
	Event   string          `json:"event"`
	EventID int64           `json:"event_id"`
	Payload json.RawMessage `json:"payload"`
}

// HandleMessage dispatches one kafka message. Malformed messages are dropped.
func (s *Service) HandleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	ctx, span := s.tracer.Start(ctx, "NotificationService.HandleMessage")
	defer span.End()

	var env envelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		mylogger.Error(ctx, s.logger, "Error unmarshalling envelope", zap.String("topic", msg.Topic), zap.Error(err))
		return nil
	}

	span.SetAttributes(
		attribute.String("event", env.Event),
		attribute.Int64("event_id", env.EventID),
	)

	var (
		message Message
		err     error
	)

	switch env.Event {
	case sharedDomain.EventOrderPlaced:
		var e sharedDomain.OrderPlacedEvent
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			mylogger.Error(ctx, s.logger, "Error parsing OrderPlaced", zap.Error(err))
			return nil
		}
		message, err = orderPlacedMessage(e)
	case sharedDomain.EventOrderStatusChanged:
		var e sharedDomain.OrderStatusChangedEvent
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			mylogger.Error(ctx, s.logger, "Error parsing OrderStatusChanged", zap.Error(err))
			return nil
		}
		message, err = statusChangedMessage(e)
	case sharedDomain.EventUserRegistered:
		var e sharedDomain.UserRegisteredEvent
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			mylogger.Error(ctx, s.logger, "Error parsing UserRegistered", zap.Error(err))
			return nil
		}
		message, err = welcomeMessage(e)
	default:
		mylogger.Debug(ctx, s.logger, "Ignored event type", zap.String("event", env.Event))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to render %s email: %w", env.Event, err)
	}

	// the account was deleted before the event went out
	if message.To == "" {
		mylogger.Info(ctx, s.logger, "No recipient for event", zap.String("event", env.Event))
		return nil
	}

	return s.dedup(ctx, consumerName, env.EventID, func(ctx context.Context) error {
		return s.sender.Send(ctx, message)
	})
}
