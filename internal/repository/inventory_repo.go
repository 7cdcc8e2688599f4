package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/sakashimaa/electro-shop/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// InventoryRepository owns the stock column. Every method runs inside the
// caller's transaction so a reservation commits or rolls back with its order.
type InventoryRepository interface {
	LockForUpdate(ctx context.Context, tx pgx.Tx, ids []int64) (map[int64]domain.ProductSnapshot, error)
	Reserve(ctx context.Context, tx pgx.Tx, productID int64, quantity, expectedStock int32) error
	DecrementStockIfAtLeast(ctx context.Context, tx pgx.Tx, productID int64, quantity int32) error
	Restock(ctx context.Context, tx pgx.Tx, productID int64, quantity int32) error
}

type inventoryRepo struct {
	tracer trace.Tracer
}

func NewInventoryRepository() InventoryRepository {
	return &inventoryRepo{
		tracer: otel.Tracer("repository/inventory_repo"),
	}
}

// LockForUpdate takes row locks on ids in ascending order and returns the
// locked snapshots. Missing ids are simply absent from the result.
func (r *inventoryRepo) LockForUpdate(ctx context.Context, tx pgx.Tx, ids []int64) (map[int64]domain.ProductSnapshot, error) {
	ctx, span := r.tracer.Start(ctx, "InventoryRepository.LockForUpdate")
	defer span.End()

	span.SetAttributes(attribute.Int64Slice("product_ids", ids))

	query := `
		SELECT id, name, price, stock
		FROM products
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`

	rows, err := tx.Query(ctx, query, ids)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error locking products: %w", err)
	}
	defer rows.Close()

	snapshots := make(map[int64]domain.ProductSnapshot, len(ids))
	for rows.Next() {
		var s domain.ProductSnapshot
		if err := rows.Scan(&s.ID, &s.Name, &s.Price, &s.Stock); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("error scanning locked product: %w", err)
		}
		snapshots[s.ID] = s
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error locking products: %w", err)
	}

	return snapshots, nil
}

// Reserve decrements only if stock still equals expectedStock.
func (r *inventoryRepo) Reserve(ctx context.Context, tx pgx.Tx, productID int64, quantity, expectedStock int32) error {
	ctx, span := r.tracer.Start(ctx, "InventoryRepository.Reserve")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("product_id", productID),
		attribute.Int("quantity", int(quantity)),
		attribute.Int("expected_stock", int(expectedStock)),
	)

	query := `
		UPDATE products
		SET stock = stock - $2, updated_at = NOW()
		WHERE id = $1 AND stock = $3 AND stock >= $2
	`

	commandTag, err := tx.Exec(ctx, query, productID, quantity, expectedStock)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("error reserving stock for product %d: %w", productID, err)
	}

	if commandTag.RowsAffected() == 0 {
		return domain.ErrStockConflict
	}

	return nil
}

func (r *inventoryRepo) DecrementStockIfAtLeast(ctx context.Context, tx pgx.Tx, productID int64, quantity int32) error {
	ctx, span := r.tracer.Start(ctx, "InventoryRepository.DecrementStockIfAtLeast")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("product_id", productID),
		attribute.Int("quantity", int(quantity)),
	)

	query := `
		UPDATE products
		SET stock = stock - $2, updated_at = NOW()
		WHERE id = $1 AND stock >= $2
	`

	commandTag, err := tx.Exec(ctx, query, productID, quantity)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("error decreasing stock for product %d: %w", productID, err)
	}

	if commandTag.RowsAffected() == 0 {
		return domain.ErrStockConflict
	}

	return nil
}

// Restock returns stock to a product. A product deleted since the order was
// placed has nothing to return to and is skipped.
func (r *inventoryRepo) Restock(ctx context.Context, tx pgx.Tx, productID int64, quantity int32) error {
	ctx, span := r.tracer.Start(ctx, "InventoryRepository.Restock")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("product_id", productID),
		attribute.Int("quantity", int(quantity)),
	)

	query := `
		UPDATE products
		SET stock = stock + $2, updated_at = NOW()
		WHERE id = $1
	`

	if _, err := tx.Exec(ctx, query, productID, quantity); err != nil {
		span.RecordError(err)
		return fmt.Errorf("error restocking product %d: %w", productID, err)
	}

	return nil
}
