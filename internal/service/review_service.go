package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sakashimaa/electro-shop/internal/authz"
	"github.com/sakashimaa/electro-shop/internal/domain"
	"github.com/sakashimaa/electro-shop/internal/repository"
	"github.com/sakashimaa/electro-shop/pkg/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ReviewService interface {
	ListReviews(ctx context.Context, productID int64) ([]domain.Review, error)
	CreateReview(ctx context.Context, actor authz.Principal, productID int64, in *domain.CreateReviewInput) (*domain.Review, error)
}

type reviewService struct {
	pool      *pgxpool.Pool
	reviews   repository.ReviewRepository
	users     repository.UserRepository
	cache     ProductCache
	validator *validator.Validate
	logger    *zap.Logger
	tracer    trace.Tracer
}

func NewReviewService(
	pool *pgxpool.Pool,
	reviews repository.ReviewRepository,
	users repository.UserRepository,
	cache ProductCache,
	validator *validator.Validate,
	logger *zap.Logger,
) ReviewService {
	if cache == nil {
		cache = NoopProductCache
	}

	return &reviewService{
		pool:      pool,
		reviews:   reviews,
		users:     users,
		cache:     cache,
		validator: validator,
		logger:    logger,
		tracer:    otel.Tracer("service/review_service"),
	}
}

func (s *reviewService) ListReviews(ctx context.Context, productID int64) ([]domain.Review, error) {
	ctx, span := s.tracer.Start(ctx, "ReviewService.ListReviews")
	defer span.End()

	span.SetAttributes(attribute.Int64("product_id", productID))

	reviews, err := s.reviews.ListByProduct(ctx, productID)
	if err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, s.logger, "Failed to list reviews", zap.Int64("product_id", productID), zap.Error(err))
		return nil, err
	}

	return reviews, nil
}

// CreateReview stores the review and refreshes the product's average rating
// in the same transaction.
func (s *reviewService) CreateReview(
	ctx context.Context,
	actor authz.Principal,
	productID int64,
	in *domain.CreateReviewInput,
) (*domain.Review, error) {
	ctx, span := s.tracer.Start(ctx, "ReviewService.CreateReview")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("product_id", productID),
		attribute.Int64("user_id", actor.UserID),
	)

	if !actor.Can(authz.ReviewsWrite) {
		return nil, domain.ErrForbidden
	}
	if err := validateStruct(s.validator, in); err != nil {
		return nil, err
	}

	author, err := s.users.GetByID(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}

	review := &domain.Review{
		ProductID:  productID,
		UserID:     actor.UserID,
		AuthorName: strings.TrimSpace(author.FirstName + " " + author.LastName),
		Rating:     in.Rating,
		Comment:    strings.TrimSpace(in.Comment),
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(ctx, tx, s.logger)

	if err := s.reviews.Create(ctx, tx, review); err != nil {
		return nil, err
	}

	if err := s.reviews.RecomputeRating(ctx, tx, productID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.cache.Invalidate(ctx, productID)

	return review, nil
}
