package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/sakashimaa/electro-shop/internal/domain"
	"github.com/sakashimaa/electro-shop/pkg/mylogger"
	"github.com/sakashimaa/electro-shop/pkg/utils"
	"go.uber.org/zap"
)

// rollback is deferred right after Begin. It is a no-op once the tx committed.
func rollback(ctx context.Context, tx pgx.Tx, logger *zap.Logger) {
	cleanupCtx := context.WithoutCancel(ctx)

	if err := tx.Rollback(cleanupCtx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		mylogger.Warn(cleanupCtx, logger, "Error rolling back transaction", zap.Error(err))
	}
}

func validateStruct(v *validator.Validate, s any) error {
	if err := v.Struct(s); err != nil {
		return &domain.ValidationError{Fields: utils.FormatValidationError(err)}
	}
	return nil
}

// ProductCache drops cached product reads after a write touched them.
type ProductCache interface {
	Invalidate(ctx context.Context, ids ...int64)
}

type noopCache struct{}

func (noopCache) Invalidate(context.Context, ...int64) {}

// NoopProductCache is used when the catalog is served without Redis.
var NoopProductCache ProductCache = noopCache{}
