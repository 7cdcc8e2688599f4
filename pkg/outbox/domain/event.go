package domain

import (
	"encoding/json"
	"fmt"
	"time"

	sharedDomain "github.com/sakashimaa/electro-shop/pkg/domain"
)

type OutboxEvent struct {
	Id            int64           `db:"id"`
	AggregateType string          `db:"aggregate_type"`
	AggregateID   string          `db:"aggregate_id"`
	EventType     string          `db:"event_type"`
	Payload       json.RawMessage `db:"payload"`
	Headers       json.RawMessage `db:"headers"`
	CreatedAt     time.Time       `db:"created_at"`
	PublishedAt   *time.Time      `db:"published_at"`
	Attempts      int64           `db:"attempts"`
	LastError     *string         `db:"last_error"`
	Topic         string          `db:"topic"`
}

// NewEvent wraps payload in the shared envelope and prepares it for the outbox table.
func NewEvent[T any](aggregateType string, aggregateID int64, eventType, topic string, payload T) (*OutboxEvent, error) {
	body, err := json.Marshal(sharedDomain.Envelope[T]{
		Event:   eventType,
		Payload: payload,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s envelope: %w", eventType, err)
	}

	return &OutboxEvent{
		AggregateType: aggregateType,
		AggregateID:   fmt.Sprintf("%d", aggregateID),
		EventType:     eventType,
		Payload:       body,
		Topic:         topic,
	}, nil
}
