package domain

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

// transitions lists every allowed edge. Anything absent is rejected.
var transitions = map[OrderStatus][]OrderStatus{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered},
	StatusDelivered:  nil,
	StatusCancelled:  nil,
}

func ParseOrderStatus(s string) (OrderStatus, error) {
	status := OrderStatus(s)
	if _, ok := transitions[status]; !ok {
		return "", NewValidationError("status",
			"status must be one of [pending processing shipped delivered cancelled]")
	}
	return status, nil
}

func (s OrderStatus) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// TransitionTo reports whether moving to next changes anything.
// Staying in the same status is allowed and reports false.
func (s OrderStatus) TransitionTo(next OrderStatus) (bool, error) {
	if s == next {
		return false, nil
	}

	for _, allowed := range transitions[s] {
		if allowed == next {
			return true, nil
		}
	}

	return false, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, s, next)
}

type Order struct {
	ID              int64           `json:"id"`
	UserID          int64           `json:"userId"`
	CustomerName    string          `json:"customerName"`
	DeliveryAddress string          `json:"deliveryAddress"`
	ContactNumber   string          `json:"contactNumber"`
	Total           decimal.Decimal `json:"total"`
	Status          OrderStatus     `json:"status"`
	Items           []OrderItem     `json:"items"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

type OrderItem struct {
	ID                 int64           `json:"id"`
	OrderID            int64           `json:"orderId"`
	ProductID          int64           `json:"productId"`
	ProductName        string          `json:"productName"`
	Quantity           int32           `json:"quantity"`
	PriceAtTimeOfOrder decimal.Decimal `json:"priceAtTimeOfOrder"`
}

type OrderFilter struct {
	Status *OrderStatus
	Limit  int64
	Offset int64
}

type LineRequest struct {
	ProductID int64 `json:"productId" validate:"gt=0"`
	Quantity  int32 `json:"quantity" validate:"gte=1"`
}

type PlaceOrderRequest struct {
	Items           []LineRequest `json:"items" validate:"required,min=1,max=100,dive"`
	CustomerName    string        `json:"customerName" validate:"required,notblank,max=255"`
	DeliveryAddress string        `json:"deliveryAddress" validate:"required,notblank,max=1000"`
	ContactNumber   string        `json:"contactNumber" validate:"required,notblank,max=32"`
}

// MergeLines sums quantities of repeated products and orders the result by
// product id, which is also the order rows get locked in.
func MergeLines(lines []LineRequest) ([]LineRequest, error) {
	totals := make(map[int64]int64, len(lines))
	for _, l := range lines {
		totals[l.ProductID] += int64(l.Quantity)
	}

	merged := make([]LineRequest, 0, len(totals))
	for id, qty := range totals {
		if qty > math.MaxInt32 {
			return nil, NewValidationError("items", fmt.Sprintf("quantity for product %d is too large", id))
		}
		merged = append(merged, LineRequest{ProductID: id, Quantity: int32(qty)})
	}

	sort.Slice(merged, func(i, j int) bool { return merged[i].ProductID < merged[j].ProductID })
	return merged, nil
}
