package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sakashimaa/electro-shop/internal/authz"
	"github.com/sakashimaa/electro-shop/internal/domain"
	"github.com/sakashimaa/electro-shop/internal/metrics"
	"github.com/sakashimaa/electro-shop/internal/pricing"
	"github.com/sakashimaa/electro-shop/internal/repository"
	"github.com/sakashimaa/electro-shop/pkg/config"
	sharedDomain "github.com/sakashimaa/electro-shop/pkg/domain"
	"github.com/sakashimaa/electro-shop/pkg/mylogger"
	outboxDomain "github.com/sakashimaa/electro-shop/pkg/outbox/domain"
	"github.com/sakashimaa/electro-shop/pkg/outbox/worker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const orderAggregate = "Order"

type OrderService interface {
	PlaceOrder(ctx context.Context, userID int64, req *domain.PlaceOrderRequest) (*domain.Order, error)
	UpdateStatus(ctx context.Context, actor authz.Principal, orderID int64, next domain.OrderStatus) (*domain.Order, error)
	GetOrder(ctx context.Context, actor authz.Principal, orderID int64) (*domain.Order, error)
	ListMine(ctx context.Context, userID int64) ([]domain.Order, error)
	ListAll(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, int64, error)
}

type OrderDeps struct {
	Pool      *pgxpool.Pool
	Orders    repository.OrderRepository
	Inventory repository.InventoryRepository
	Users     repository.UserRepository
	Outbox    worker.OutboxRepository
	Activity  ActivityService
	Cache     ProductCache
	Metrics   *metrics.Metrics
	Validator *validator.Validate
	Logger    *zap.Logger
	Timeouts  config.Workflow
}

type orderService struct {
	pool      *pgxpool.Pool
	orders    repository.OrderRepository
	inventory repository.InventoryRepository
	users     repository.UserRepository
	outbox    worker.OutboxRepository
	activity  ActivityService
	cache     ProductCache
	metrics   *metrics.Metrics
	validator *validator.Validate
	logger    *zap.Logger
	timeouts  config.Workflow
	tracer    trace.Tracer
}

func NewOrderService(deps OrderDeps) OrderService {
	cache := deps.Cache
	if cache == nil {
		cache = NoopProductCache
	}

	return &orderService{
		pool:      deps.Pool,
		orders:    deps.Orders,
		inventory: deps.Inventory,
		users:     deps.Users,
		outbox:    deps.Outbox,
		activity:  deps.Activity,
		cache:     cache,
		metrics:   deps.Metrics,
		validator: deps.Validator,
		logger:    deps.Logger,
		timeouts:  deps.Timeouts,
		tracer:    otel.Tracer("service/order_service"),
	}
}

// PlaceOrder turns a cart into a pending order. Stock checks, pricing,
// decrements and the OrderPlaced event all happen in one transaction over
// rows locked in ascending product id order.
func (s *orderService) PlaceOrder(ctx context.Context, userID int64, req *domain.PlaceOrderRequest) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.PlaceOrder")
	defer span.End()

	span.SetAttributes(attribute.Int64("user_id", userID))
	started := time.Now()

	order, err := s.placeOrder(ctx, userID, req)
	if err != nil {
		err = repository.ClassifyTxError(err)
		span.RecordError(err)
		s.metrics.OrderFailed(failureReason(err), started)

		if errors.Is(err, domain.ErrPersistence) {
			mylogger.Error(ctx, s.logger, "Order placement failed", zap.Int64("user_id", userID), zap.Error(err))
			return nil, domain.ErrPersistence
		}

		mylogger.Info(ctx, s.logger, "Order rejected", zap.Int64("user_id", userID), zap.Error(err))
		return nil, err
	}

	s.metrics.OrderPlaced(started)

	ids := make([]int64, len(order.Items))
	for i, item := range order.Items {
		ids[i] = item.ProductID
	}
	s.cache.Invalidate(ctx, ids...)

	mylogger.Info(
		ctx,
		s.logger,
		"Order placed",
		zap.Int64("order_id", order.ID),
		zap.Int64("user_id", userID),
		zap.String("total", order.Total.StringFixed(pricing.Scale)),
	)

	return order, nil
}

func (s *orderService) placeOrder(ctx context.Context, userID int64, req *domain.PlaceOrderRequest) (*domain.Order, error) {
	lines, err := s.validateOrder(req)
	if err != nil {
		return nil, err
	}

	customer, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeouts.LockTimeout+s.timeouts.StatementTimeout)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(ctx, tx, s.logger)

	if err := s.setLocalTimeouts(ctx, tx); err != nil {
		return nil, err
	}

	ids := make([]int64, len(lines))
	for i, l := range lines {
		ids[i] = l.ProductID
	}

	snapshots, err := s.inventory.LockForUpdate(ctx, tx, ids)
	if err != nil {
		return nil, err
	}

	var missing []int64
	for _, id := range ids {
		if _, ok := snapshots[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, &domain.ProductNotFoundError{IDs: missing}
	}

	priced := make([]pricing.Line, len(lines))
	for i, l := range lines {
		snap := snapshots[l.ProductID]
		if l.Quantity > snap.Stock {
			return nil, &domain.InsufficientStockError{
				ProductID: l.ProductID,
				Requested: l.Quantity,
				Available: snap.Stock,
			}
		}
		priced[i] = pricing.Line{UnitPrice: snap.Price, Quantity: l.Quantity}
	}

	total := pricing.OrderTotal(priced)
	if err := pricing.CheckOrderTotal(total); err != nil {
		return nil, domain.NewValidationError("items", err.Error())
	}

	order := &domain.Order{
		UserID:          userID,
		CustomerName:    strings.TrimSpace(req.CustomerName),
		DeliveryAddress: strings.TrimSpace(req.DeliveryAddress),
		ContactNumber:   strings.TrimSpace(req.ContactNumber),
		Total:           total,
		Status:          domain.StatusPending,
	}

	if err := s.orders.InsertOrder(ctx, tx, order); err != nil {
		return nil, err
	}

	order.Items = make([]domain.OrderItem, 0, len(lines))
	for _, l := range lines {
		snap := snapshots[l.ProductID]
		item := domain.OrderItem{
			OrderID:            order.ID,
			ProductID:          l.ProductID,
			ProductName:        snap.Name,
			Quantity:           l.Quantity,
			PriceAtTimeOfOrder: snap.Price,
		}
		if err := s.orders.InsertLineItem(ctx, tx, &item); err != nil {
			return nil, err
		}
		order.Items = append(order.Items, item)
	}

	// guarded by the stock read under the row lock
	for _, l := range lines {
		if err := s.inventory.Reserve(ctx, tx, l.ProductID, l.Quantity, snapshots[l.ProductID].Stock); err != nil {
			return nil, err
		}
	}

	if err := s.saveOrderPlaced(ctx, tx, order, customer); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return order, nil
}

func (s *orderService) validateOrder(req *domain.PlaceOrderRequest) ([]domain.LineRequest, error) {
	if req == nil {
		return nil, domain.NewValidationError("request", "request body is required")
	}
	if err := validateStruct(s.validator, req); err != nil {
		return nil, err
	}
	return domain.MergeLines(req.Items)
}

// setLocalTimeouts bounds lock waits for this transaction only. SET does not
// take bind parameters, so the values are formatted as integer milliseconds.
func (s *orderService) setLocalTimeouts(ctx context.Context, tx pgx.Tx) error {
	stmts := []string{
		fmt.Sprintf("SET LOCAL lock_timeout = %d", s.timeouts.LockTimeout.Milliseconds()),
		fmt.Sprintf("SET LOCAL statement_timeout = %d", s.timeouts.StatementTimeout.Milliseconds()),
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to set transaction timeouts: %w", err)
		}
	}
	return nil
}

func (s *orderService) saveOrderPlaced(ctx context.Context, tx pgx.Tx, order *domain.Order, customer *domain.User) error {
	items := make([]sharedDomain.OrderPlacedItem, len(order.Items))
	for i, item := range order.Items {
		items[i] = sharedDomain.OrderPlacedItem{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.PriceAtTimeOfOrder.StringFixed(pricing.Scale),
		}
	}

	event, err := outboxDomain.NewEvent(orderAggregate, order.ID, sharedDomain.EventOrderPlaced, sharedDomain.TopicOrderPlaced,
		sharedDomain.OrderPlacedEvent{
			OrderID:      order.ID,
			UserID:       order.UserID,
			Email:        customer.Email,
			CustomerName: order.CustomerName,
			Total:        order.Total.StringFixed(pricing.Scale),
			Items:        items,
			PlacedAt:     order.CreatedAt,
		})
	if err != nil {
		return err
	}

	return s.outbox.SaveOutboxEvent(ctx, tx, event)
}

// UpdateStatus moves an order along the status graph. Moving to the current
// status is a no-op. Cancelling returns every line's quantity to stock.
func (s *orderService) UpdateStatus(ctx context.Context, actor authz.Principal, orderID int64, next domain.OrderStatus) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.UpdateStatus")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("order_id", orderID),
		attribute.String("to", string(next)),
	)

	if !actor.Can(authz.OrdersUpdateStatus) {
		return nil, domain.ErrForbidden
	}

	order, from, changed, err := s.updateStatus(ctx, actor, orderID, next)
	if err != nil {
		err = repository.ClassifyTxError(err)
		span.RecordError(err)

		if errors.Is(err, domain.ErrPersistence) {
			mylogger.Error(ctx, s.logger, "Failed to update order status", zap.Int64("order_id", orderID), zap.Error(err))
			return nil, domain.ErrPersistence
		}
		return nil, err
	}

	if !changed {
		return order, nil
	}

	s.metrics.StatusChanged(string(from), string(next))

	if next == domain.StatusCancelled {
		ids := make([]int64, 0, len(order.Items))
		for _, item := range order.Items {
			if item.ProductID != 0 {
				ids = append(ids, item.ProductID)
			}
		}
		s.cache.Invalidate(ctx, ids...)
	}

	s.activity.Record(ctx, actor.UserID, domain.ActionOrderStatusChanged, map[string]any{
		"orderId": orderID,
		"from":    from,
		"to":      next,
	})

	mylogger.Info(
		ctx,
		s.logger,
		"Order status changed",
		zap.Int64("order_id", orderID),
		zap.String("from", string(from)),
		zap.String("to", string(next)),
		zap.Int64("actor_id", actor.UserID),
	)

	return order, nil
}

func (s *orderService) updateStatus(
	ctx context.Context,
	actor authz.Principal,
	orderID int64,
	next domain.OrderStatus,
) (*domain.Order, domain.OrderStatus, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, "", false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(ctx, tx, s.logger)

	order, err := s.orders.GetForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, "", false, err
	}

	from := order.Status
	changed, err := from.TransitionTo(next)
	if err != nil || !changed {
		return order, from, false, err
	}

	if err := s.orders.SetOrderStatus(ctx, tx, orderID, from, next); err != nil {
		return nil, "", false, err
	}

	if next == domain.StatusCancelled {
		for _, item := range order.Items {
			// product was deleted after the order was placed
			if item.ProductID == 0 {
				continue
			}
			if err := s.inventory.Restock(ctx, tx, item.ProductID, item.Quantity); err != nil {
				return nil, "", false, err
			}
		}
	}

	now := time.Now().UTC()
	if err := s.saveStatusChanged(ctx, tx, order, from, next, actor.UserID, now); err != nil {
		return nil, "", false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, "", false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	order.Status = next
	order.UpdatedAt = now

	return order, from, true, nil
}

func (s *orderService) saveStatusChanged(
	ctx context.Context,
	tx pgx.Tx,
	order *domain.Order,
	from, to domain.OrderStatus,
	actorID int64,
	at time.Time,
) error {
	var email string
	if order.UserID != 0 {
		owner, err := s.users.GetByID(ctx, order.UserID)
		switch {
		case err == nil:
			email = owner.Email
		case !errors.Is(err, domain.ErrUserNotFound):
			return err
		}
	}

	event, err := outboxDomain.NewEvent(orderAggregate, order.ID, sharedDomain.EventOrderStatusChanged, sharedDomain.TopicOrderStatusChanged,
		sharedDomain.OrderStatusChangedEvent{
			OrderID:   order.ID,
			UserID:    order.UserID,
			Email:     email,
			From:      string(from),
			To:        string(to),
			ActorID:   actorID,
			ChangedAt: at,
		})
	if err != nil {
		return err
	}

	return s.outbox.SaveOutboxEvent(ctx, tx, event)
}

func (s *orderService) GetOrder(ctx context.Context, actor authz.Principal, orderID int64) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.GetOrder")
	defer span.End()

	span.SetAttributes(attribute.Int64("order_id", orderID))

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			span.RecordError(err)
			mylogger.Error(ctx, s.logger, "Failed to get order", zap.Int64("order_id", orderID), zap.Error(err))
		}
		return nil, err
	}

	if !actor.CanReadOrder(order.UserID) {
		return nil, domain.ErrForbidden
	}

	return order, nil
}

func (s *orderService) ListMine(ctx context.Context, userID int64) ([]domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.ListMine")
	defer span.End()

	orders, err := s.orders.ListOrdersForUser(ctx, userID)
	if err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, s.logger, "Failed to list user orders", zap.Int64("user_id", userID), zap.Error(err))
		return nil, err
	}

	return orders, nil
}

func (s *orderService) ListAll(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, int64, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.ListAll")
	defer span.End()

	orders, total, err := s.orders.ListAllOrders(ctx, filter)
	if err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, s.logger, "Failed to list orders", zap.Error(err))
		return nil, 0, err
	}

	return orders, total, nil
}

func failureReason(err error) string {
	var (
		vErr  *domain.ValidationError
		pnf   *domain.ProductNotFoundError
		stock *domain.InsufficientStockError
	)
	switch {
	case errors.As(err, &vErr):
		return metrics.ReasonValidation
	case errors.As(err, &pnf):
		return metrics.ReasonProductNotFound
	case errors.As(err, &stock):
		return metrics.ReasonInsufficientStock
	case errors.Is(err, domain.ErrStockConflict):
		return metrics.ReasonStockConflict
	case errors.Is(err, domain.ErrWorkflowTimeout):
		return metrics.ReasonTimeout
	default:
		return metrics.ReasonPersistence
	}
}
