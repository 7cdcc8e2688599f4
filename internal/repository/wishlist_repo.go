package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sakashimaa/electro-shop/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type WishlistRepository interface {
	Add(ctx context.Context, userID, productID int64) error
	Remove(ctx context.Context, userID, productID int64) error
	List(ctx context.Context, userID int64) ([]domain.WishlistItem, error)
}

type wishlistRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	tracer trace.Tracer
}

func NewWishlistRepository(pool *pgxpool.Pool, logger *zap.Logger) WishlistRepository {
	return &wishlistRepo{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("repository/wishlist_repo"),
	}
}

// Add is idempotent.
func (r *wishlistRepo) Add(ctx context.Context, userID, productID int64) error {
	ctx, span := r.tracer.Start(ctx, "WishlistRepository.Add")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user_id", userID),
		attribute.Int64("product_id", productID),
	)

	query := `
		INSERT INTO wishlists (user_id, product_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, product_id) DO NOTHING
	`

	if _, err := r.pool.Exec(ctx, query, userID, productID); err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrProductNotFound
		}

		span.RecordError(err)
		return fmt.Errorf("error adding to wishlist: %w", err)
	}

	return nil
}

func (r *wishlistRepo) Remove(ctx context.Context, userID, productID int64) error {
	ctx, span := r.tracer.Start(ctx, "WishlistRepository.Remove")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user_id", userID),
		attribute.Int64("product_id", productID),
	)

	commandTag, err := r.pool.Exec(ctx, `DELETE FROM wishlists WHERE user_id = $1 AND product_id = $2`, userID, productID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("error removing from wishlist: %w", err)
	}

	if commandTag.RowsAffected() == 0 {
		return domain.ErrProductNotFound
	}

	return nil
}

func (r *wishlistRepo) List(ctx context.Context, userID int64) ([]domain.WishlistItem, error) {
	ctx, span := r.tracer.Start(ctx, "WishlistRepository.List")
	defer span.End()

	span.SetAttributes(attribute.Int64("user_id", userID))

	query := `
		SELECT p.id, p.name, p.description, p.price, p.stock, p.category, p.brand, p.image_url,
			p.average_rating, p.featured, p.created_at, p.updated_at, w.created_at
		FROM wishlists w
		JOIN products p ON p.id = w.product_id
		WHERE w.user_id = $1
		ORDER BY w.created_at DESC, p.id DESC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error listing wishlist: %w", err)
	}
	defer rows.Close()

	items := make([]domain.WishlistItem, 0)
	for rows.Next() {
		var (
			item domain.WishlistItem
			p    = &item.Product
		)
		if err := rows.Scan(
			&p.ID,
			&p.Name,
			&p.Description,
			&p.Price,
			&p.Stock,
			&p.Category,
			&p.Brand,
			&p.ImageURL,
			&p.AverageRating,
			&p.Featured,
			&p.CreatedAt,
			&p.UpdatedAt,
			&item.AddedAt,
		); err != nil {
			return nil, fmt.Errorf("error scanning wishlist item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return items, nil
}
