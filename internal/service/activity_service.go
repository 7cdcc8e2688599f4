package service

import (
	"context"

	"github.com/sakashimaa/electro-shop/internal/domain"
	"github.com/sakashimaa/electro-shop/internal/repository"
	"github.com/sakashimaa/electro-shop/pkg/mylogger"
	"go.uber.org/zap"
)

const recentActivityLimit = 100

// ActivityService records admin actions. Recording never fails the caller.
type ActivityService interface {
	Record(ctx context.Context, actorID int64, action string, details map[string]any)
	Recent(ctx context.Context) ([]domain.ActivityEntry, error)
}

type activityService struct {
	repo   repository.ActivityRepository
	logger *zap.Logger
}

func NewActivityService(repo repository.ActivityRepository, logger *zap.Logger) ActivityService {
	return &activityService{
		repo:   repo,
		logger: logger,
	}
}

func (s *activityService) Record(ctx context.Context, actorID int64, action string, details map[string]any) {
	entry := &domain.ActivityEntry{
		ActorID: actorID,
		Action:  action,
		Details: details,
	}

	// the request may already be finished
	if err := s.repo.Record(context.WithoutCancel(ctx), entry); err != nil {
		mylogger.Warn(
			ctx,
			s.logger,
			"Admin activity was not recorded",
			zap.Int64("actor_id", actorID),
			zap.String("action", action),
			zap.Error(err),
		)
	}
}

func (s *activityService) Recent(ctx context.Context) ([]domain.ActivityEntry, error) {
	entries, err := s.repo.Recent(ctx, recentActivityLimit)
	if err != nil {
		mylogger.Error(ctx, s.logger, "Failed to list admin activity", zap.Error(err))
		return nil, err
	}
	return entries, nil
}
