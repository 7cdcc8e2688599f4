package middleware

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sakashimaa/electro-shop/internal/idempotency"
	"github.com/sakashimaa/electro-shop/internal/transport/http/response"
	"github.com/sakashimaa/electro-shop/pkg/mylogger"
	"go.uber.org/zap"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderReplayed       = "Idempotent-Replayed"
	maxKeyLength         = 255
)

type IdempotencyStore interface {
	Begin(ctx context.Context, userID int64, key, fingerprint string) (*idempotency.Claim, *idempotency.Record, error)
	Complete(ctx context.Context, c *idempotency.Claim, status int, body []byte) error
	Release(ctx context.Context, c *idempotency.Claim) error
}

// NewIdempotencyMiddleware replays the stored response for a repeated
// Idempotency-Key. Only successful responses are stored; a failed attempt
// frees the key for a retry. Reusing a key with another body is rejected
// with 422. It must run after the auth middleware.
func NewIdempotencyMiddleware(store IdempotencyStore, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.Get(HeaderIdempotencyKey)
		if key == "" {
			return c.Next()
		}
		if len(key) > maxKeyLength {
			return response.BadRequest(c, HeaderIdempotencyKey, "idempotency key is too long")
		}

		p, ok := PrincipalFrom(c)
		if !ok {
			return response.Error(c, fiber.StatusUnauthorized, response.CodeUnauthorized, "unauthorized", nil)
		}

		ctx := c.UserContext()

		claim, rec, err := store.Begin(ctx, p.UserID, key, idempotency.Fingerprint(c.Body()))
		switch {
		case errors.Is(err, idempotency.ErrKeyReused):
			return response.Error(c, fiber.StatusUnprocessableEntity, response.CodeKeyReused, err.Error(), nil)
		case errors.Is(err, idempotency.ErrInFlight):
			return response.Error(c, fiber.StatusConflict, response.CodeConflict, err.Error(), nil)
		case err != nil:
			// without redis the request runs unprotected rather than failing
			mylogger.Warn(ctx, logger, "Idempotency store unavailable", zap.Error(err))
			return c.Next()
		case rec != nil:
			c.Set(HeaderReplayed, "true")
			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			return c.Status(rec.Status).Send(rec.Body)
		}

		if err := c.Next(); err != nil {
			release(c, store, claim, logger)
			return err
		}

		status := c.Response().StatusCode()
		if status < 200 || status >= 300 {
			release(c, store, claim, logger)
			return nil
		}

		if err := store.Complete(context.WithoutCancel(ctx), claim, status, c.Response().Body()); err != nil {
			mylogger.Warn(ctx, logger, "Failed to store idempotent response", zap.Error(err))
		}
		return nil
	}
}

func release(c *fiber.Ctx, store IdempotencyStore, claim *idempotency.Claim, logger *zap.Logger) {
	ctx := c.UserContext()
	if err := store.Release(context.WithoutCancel(ctx), claim); err != nil {
		mylogger.Warn(ctx, logger, "Failed to release idempotency key", zap.Error(err))
	}
}
