package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sakashimaa/electro-shop/internal/domain"
	"github.com/sakashimaa/electro-shop/pkg/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ActivityRepository interface {
	Record(ctx context.Context, entry *domain.ActivityEntry) error
	Recent(ctx context.Context, limit int64) ([]domain.ActivityEntry, error)
}

type activityRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	tracer trace.Tracer
}

func NewActivityRepository(pool *pgxpool.Pool, logger *zap.Logger) ActivityRepository {
	return &activityRepo{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("repository/activity_repo"),
	}
}

func (r *activityRepo) Record(ctx context.Context, entry *domain.ActivityEntry) error {
	ctx, span := r.tracer.Start(ctx, "ActivityRepository.Record")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("actor_id", entry.ActorID),
		attribute.String("action", entry.Action),
	)

	details := entry.Details
	if details == nil {
		details = map[string]any{}
	}

	query := `
		INSERT INTO admin_activity_log (actor_id, action, details)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`

	if err := r.pool.QueryRow(ctx, query, entry.ActorID, entry.Action, details).
		Scan(&entry.ID, &entry.CreatedAt); err != nil {
		span.RecordError(err)
		mylogger.Error(
			ctx,
			r.logger,
			"Failed to record admin activity",
			zap.String("action", entry.Action),
			zap.Error(err),
		)

		return fmt.Errorf("error recording activity: %w", err)
	}

	return nil
}

func (r *activityRepo) Recent(ctx context.Context, limit int64) ([]domain.ActivityEntry, error) {
	ctx, span := r.tracer.Start(ctx, "ActivityRepository.Recent")
	defer span.End()

	query := `
		SELECT id, COALESCE(actor_id, 0), action, details, created_at
		FROM admin_activity_log
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error listing activity: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.ActivityEntry, 0)
	for rows.Next() {
		var e domain.ActivityEntry
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.Details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning activity: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return entries, nil
}
