package repository

import (
	"context"
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

type ReviewRepository interface {
	Create(ctx context.Context, tx pgx.Tx, review *domain.Review) error
	RecomputeRating(ctx context.Context, tx pgx.Tx, productID int64) error
	ListByProduct(ctx context.Context, productID int64) ([]domain.Review, error)
}

type reviewRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	tracer trace.Tracer
}

func NewReviewRepository(pool *pgxpool.Pool, logger *zap.Logger) ReviewRepository {
	return &reviewRepo{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("repository/review_repo"),
	}
}

func (r *reviewRepo) Create(ctx context.Context, tx pgx.Tx, review *domain.Review) error {
	ctx, span := r.tracer.Start(ctx, "ReviewRepository.Create")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("product_id", review.ProductID),
		attribute.Int64("user_id", review.UserID),
	)

	query := `
		INSERT INTO reviews (product_id, user_id, rating, comment)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	if err := tx.QueryRow(
		ctx,
		query,
		review.ProductID,
		review.UserID,
		review.Rating,
		review.Comment,
	).Scan(&review.ID, &review.CreatedAt); err != nil {
		switch {
		case isUniqueViolation(err):
			return domain.ErrReviewExists
		case isForeignKeyViolation(err):
			return domain.ErrProductNotFound
		}

		span.RecordError(err)
		mylogger.Error(ctx, r.logger, "Failed to insert review", zap.Error(err))

		return fmt.Errorf("error creating review: %w", err)
	}

	return nil
}

// RecomputeRating refreshes products.average_rating from the reviews table.
func (r *reviewRepo) RecomputeRating(ctx context.Context, tx pgx.Tx, productID int64) error {
	ctx, span := r.tracer.Start(ctx, "ReviewRepository.RecomputeRating")
	defer span.End()

	span.SetAttributes(attribute.Int64("product_id", productID))

	query := `
		UPDATE products
		SET average_rating = COALESCE(
			(SELECT ROUND(AVG(rating)::numeric, 2) FROM reviews WHERE product_id = $1), 0
		), updated_at = NOW()
		WHERE id = $1
	`

	commandTag, err := tx.Exec(ctx, query, productID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("error recomputing rating: %w", err)
	}

	if commandTag.RowsAffected() == 0 {
		return domain.ErrProductNotFound
	}

	return nil
}

func (r *reviewRepo) ListByProduct(ctx context.Context, productID int64) ([]domain.Review, error) {
	ctx, span := r.tracer.Start(ctx, "ReviewRepository.ListByProduct")
	defer span.End()

	span.SetAttributes(attribute.Int64("product_id", productID))

	query := `
		SELECT rv.id, rv.product_id, rv.user_id,
			TRIM(u.first_name || ' ' || u.last_name), rv.rating, rv.comment, rv.created_at
		FROM reviews rv
		JOIN users u ON u.id = rv.user_id
		WHERE rv.product_id = $1
		ORDER BY rv.created_at DESC, rv.id DESC
	`

	rows, err := r.pool.Query(ctx, query, productID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error listing reviews: %w", err)
	}
	defer rows.Close()

	reviews := make([]domain.Review, 0)
	for rows.Next() {
		var rv domain.Review
		if err := rows.Scan(
			&rv.ID,
			&rv.ProductID,
			&rv.UserID,
			&rv.AuthorName,
			&rv.Rating,
			&rv.Comment,
			&rv.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("error scanning review: %w", err)
		}
		reviews = append(reviews, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return reviews, nil
}
