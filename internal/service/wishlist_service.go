package service

import (
	"context"

	"github.com/sakashimaa/electro-shop/internal/domain"
	"github.com/sakashimaa/electro-shop/internal/repository"
	"github.com/sakashimaa/electro-shop/pkg/mylogger"
	"go.uber.org/zap"
)

type WishlistService interface {
	List(ctx context.Context, userID int64) ([]domain.WishlistItem, error)
	Add(ctx context.Context, userID, productID int64) error
	Remove(ctx context.Context, userID, productID int64) error
}

type wishlistService struct {
	repo   repository.WishlistRepository
	logger *zap.Logger
}

func NewWishlistService(repo repository.WishlistRepository, logger *zap.Logger) WishlistService {
	return &wishlistService{
		repo:   repo,
		logger: logger,
	}
}

func (s *wishlistService) List(ctx context.Context, userID int64) ([]domain.WishlistItem, error) {
	items, err := s.repo.List(ctx, userID)
	if err != nil {
		mylogger.Error(ctx, s.logger, "Failed to list wishlist", zap.Int64("user_id", userID), zap.Error(err))
		return nil, err
	}
	return items, nil
}

func (s *wishlistService) Add(ctx context.Context, userID, productID int64) error {
	return s.repo.Add(ctx, userID, productID)
}

func (s *wishlistService) Remove(ctx context.Context, userID, productID int64) error {
	return s.repo.Remove(ctx, userID, productID)
}
