// Package domain holds the event contracts shared by the outbox producers and the kafka consumers.
package domain

import "time"

const (
	TopicOrderPlaced        = "orders.placed"
	TopicOrderStatusChanged = "orders.status_changed"
	TopicUserRegistered     = "users.registered"
)

const (
	EventOrderPlaced        = "OrderPlaced"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventUserRegistered     = "UserRegistered"
)

// Envelope is the message shape on every topic. EventID is filled in by the outbox worker.
type Envelope[T any] struct {
	Event   string `json:"event"`
	EventID int64  `json:"event_id,omitempty"`
	Payload T      `json:"payload"`
}

type OrderPlacedItem struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int32  `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
}

type OrderPlacedEvent struct {
	OrderID      int64             `json:"order_id"`
	UserID       int64             `json:"user_id"`
	Email        string            `json:"email"`
	CustomerName string            `json:"customer_name"`
	Total        string            `json:"total"`
	Items        []OrderPlacedItem `json:"items"`
	PlacedAt     time.Time         `json:"placed_at"`
}

type OrderStatusChangedEvent struct {
	OrderID   int64     `json:"order_id"`
	UserID    int64     `json:"user_id"`
	Email     string    `json:"email"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	ActorID   int64     `json:"actor_id"`
	ChangedAt time.Time `json:"changed_at"`
}

type UserRegisteredEvent struct {
	UserID    int64  `json:"user_id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
}
