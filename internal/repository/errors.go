package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sakashimaa/electro-shop/internal/domain"
)

const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgCheckViolation       = "23514"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
	pgQueryCanceled        = "57014"
	pgNumericOverflow      = "22003"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return pgCode(err) == pgUniqueViolation
}

func isForeignKeyViolation(err error) bool {
	return pgCode(err) == pgForeignKeyViolation
}

// ClassifyTxError maps a raw storage error raised inside a stock-touching
// transaction to the domain taxonomy. Domain errors pass through unchanged.
func ClassifyTxError(err error) error {
	if err == nil {
		return nil
	}

	var (
		vErr  *domain.ValidationError
		pnf   *domain.ProductNotFoundError
		stock *domain.InsufficientStockError
	)
	switch {
	case errors.As(err, &vErr), errors.As(err, &pnf), errors.As(err, &stock),
		errors.Is(err, domain.ErrStockConflict),
		errors.Is(err, domain.ErrWorkflowTimeout),
		errors.Is(err, domain.ErrPersistence),
		errors.Is(err, domain.ErrInvalidStatusTransition),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrForbidden):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", domain.ErrWorkflowTimeout, err)
	}

	switch pgCode(err) {
	case pgLockNotAvailable, pgQueryCanceled:
		return fmt.Errorf("%w: %v", domain.ErrWorkflowTimeout, err)
	case pgSerializationFailure, pgDeadlockDetected, pgCheckViolation:
		return fmt.Errorf("%w: %v", domain.ErrStockConflict, err)
	case pgNumericOverflow:
		return domain.NewValidationError("items", "order amount is out of range")
	}

	return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
}
