package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sakashimaa/electro-shop/internal/domain"
	"github.com/sakashimaa/electro-shop/pkg/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type OrderRepository interface {
	InsertOrder(ctx context.Context, tx pgx.Tx, order *domain.Order) error
	InsertLineItem(ctx context.Context, tx pgx.Tx, item *domain.OrderItem) error
	GetByID(ctx context.Context, id int64) (*domain.Order, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*domain.Order, error)
	ListOrdersForUser(ctx context.Context, userID int64) ([]domain.Order, error)
	ListAllOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, int64, error)
	SetOrderStatus(ctx context.Context, tx pgx.Tx, id int64, from, to domain.OrderStatus) error
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type orderRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	tracer trace.Tracer
}

func NewOrderRepository(pool *pgxpool.Pool, logger *zap.Logger) OrderRepository {
	return &orderRepo{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("repository/order_repo"),
	}
}

const orderColumns = `id, COALESCE(user_id, 0), customer_name, delivery_address, contact_number,
	total, status, created_at, updated_at`

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	if err := row.Scan(
		&o.ID,
		&o.UserID,
		&o.CustomerName,
		&o.DeliveryAddress,
		&o.ContactNumber,
		&o.Total,
		&o.Status,
		&o.CreatedAt,
		&o.UpdatedAt,
	); err != nil {
		return nil, err
	}
	o.Items = []domain.OrderItem{}
	return &o, nil
}

func (r *orderRepo) InsertOrder(ctx context.Context, tx pgx.Tx, order *domain.Order) error {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.InsertOrder")
	defer span.End()

	span.SetAttributes(attribute.Int64("user_id", order.UserID))

	query := `
		INSERT INTO orders (user_id, customer_name, delivery_address, contact_number, total, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`

	if err := tx.QueryRow(
		ctx,
		query,
		order.UserID,
		order.CustomerName,
		order.DeliveryAddress,
		order.ContactNumber,
		order.Total,
		order.Status,
	).Scan(
		&order.ID,
		&order.CreatedAt,
		&order.UpdatedAt,
	); err != nil {
		span.RecordError(err)
		mylogger.Warn(ctx, r.logger, "Failed to insert order", zap.Error(err))

		return fmt.Errorf("failed to insert order: %w", err)
	}

	return nil
}

func (r *orderRepo) InsertLineItem(ctx context.Context, tx pgx.Tx, item *domain.OrderItem) error {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.InsertLineItem")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("order_id", item.OrderID),
		attribute.Int64("product_id", item.ProductID),
	)

	query := `
		INSERT INTO order_items (order_id, product_id, product_name, quantity, price_at_time_of_order)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	if err := tx.QueryRow(
		ctx,
		query,
		item.OrderID,
		item.ProductID,
		item.ProductName,
		item.Quantity,
		item.PriceAtTimeOfOrder,
	).Scan(&item.ID); err != nil {
		span.RecordError(err)
		mylogger.Warn(ctx, r.logger, "Failed to insert order item", zap.Error(err))

		return fmt.Errorf("failed to insert order item: %w", err)
	}

	return nil
}

func (r *orderRepo) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.GetByID")
	defer span.End()

	span.SetAttributes(attribute.Int64("order_id", id))

	return r.getOne(ctx, r.pool, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

// GetForUpdate locks the order row for the rest of tx.
func (r *orderRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.GetForUpdate")
	defer span.End()

	span.SetAttributes(attribute.Int64("order_id", id))

	return r.getOne(ctx, tx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
}

func (r *orderRepo) getOne(ctx context.Context, q querier, query string, id int64) (*domain.Order, error) {
	order, err := scanOrder(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, fmt.Errorf("error getting order: %w", err)
	}

	orders := []domain.Order{*order}
	if err := attachItems(ctx, q, orders); err != nil {
		return nil, err
	}

	return &orders[0], nil
}

func (r *orderRepo) ListOrdersForUser(ctx context.Context, userID int64) ([]domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.ListOrdersForUser")
	defer span.End()

	span.SetAttributes(attribute.Int64("user_id", userID))

	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id DESC`

	orders, err := r.list(ctx, query, userID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return orders, nil
}

func (r *orderRepo) ListAllOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, int64, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.ListAllOrders")
	defer span.End()

	where := ""
	var args []any
	if filter.Status != nil {
		args = append(args, *filter.Status)
		where = " WHERE status = $1"
	}

	query := fmt.Sprintf(`SELECT %s FROM orders%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		orderColumns, where, len(args)+1, len(args)+2)

	orders, err := r.list(ctx, query, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		span.RecordError(err)
		return nil, 0, err
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&total); err != nil {
		span.RecordError(err)
		return nil, 0, fmt.Errorf("error counting orders: %w", err)
	}

	return orders, total, nil
}

func (r *orderRepo) list(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		mylogger.Error(ctx, r.logger, "Failed to query orders", zap.Error(err))
		return nil, fmt.Errorf("error listing orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning order: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	rows.Close()

	if err := attachItems(ctx, r.pool, orders); err != nil {
		return nil, err
	}

	return orders, nil
}

// attachItems loads the line items of every order in one query.
func attachItems(ctx context.Context, q querier, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]int64, len(orders))
	index := make(map[int64]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
	}

	query := `
		SELECT id, order_id, COALESCE(product_id, 0), product_name, quantity, price_at_time_of_order
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, id
	`

	rows, err := q.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("error loading order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.ProductName,
			&item.Quantity,
			&item.PriceAtTimeOfOrder,
		); err != nil {
			return fmt.Errorf("error scanning order item: %w", err)
		}

		i := index[item.OrderID]
		orders[i].Items = append(orders[i].Items, item)
	}

	return rows.Err()
}

// SetOrderStatus moves id from -> to. It fails with ErrInvalidStatusTransition
// when the stored status is no longer from.
func (r *orderRepo) SetOrderStatus(ctx context.Context, tx pgx.Tx, id int64, from, to domain.OrderStatus) error {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.SetOrderStatus")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("order_id", id),
		attribute.String("from", string(from)),
		attribute.String("to", string(to)),
	)

	query := `
		UPDATE orders
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`

	commandTag, err := tx.Exec(ctx, query, to, id, from)
	if err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, r.logger, "Failed to update order status", zap.Int64("order_id", id), zap.Error(err))

		return fmt.Errorf("failed to update order: %w", err)
	}

	if commandTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: order %d is no longer %s", domain.ErrInvalidStatusTransition, id, from)
	}

	return nil
}
