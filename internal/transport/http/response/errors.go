// Package response writes the JSON error body every endpoint shares.
package response

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sakashimaa/electro-shop/internal/domain"
	"github.com/sakashimaa/electro-shop/pkg/mylogger"
	"go.uber.org/zap"
)

// Error codes in the "code" field.
const (
	CodeValidation        = "ValidationError"
	CodeProductNotFound   = "ProductNotFound"
	CodeInsufficientStock = "InsufficientStock"
	CodeStockConflict     = "StockConflict"
	CodeInvalidTransition = "InvalidStatusTransition"
	CodeWorkflowTimeout   = "WorkflowTimeout"
	CodeUnauthorized      = "Unauthorized"
	CodeForbidden         = "Forbidden"
	CodeNotFound          = "NotFound"
	CodeConflict          = "Conflict"
	CodeTooManyRequests   = "TooManyRequests"
	CodeKeyReused         = "IdempotencyKeyReused"
	CodePersistence       = "PersistenceFailure"
	CodeInternal          = "InternalError"
)

// RetryAfterSeconds is sent with WorkflowTimeout responses.
const RetryAfterSeconds = "1"

type ErrorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

func Error(c *fiber.Ctx, status int, code, msg string, details any) error {
	return c.Status(status).JSON(ErrorBody{Error: msg, Code: code, Details: details})
}

func BadRequest(c *fiber.Ctx, field, msg string) error {
	return Error(c, fiber.StatusBadRequest, CodeValidation, "validation failed",
		map[string]string{field: msg})
}

// WriteError maps a service error to its status code. Internal details of
// unexpected errors are logged and never sent to the client.
func WriteError(c *fiber.Ctx, logger *zap.Logger, err error) error {
	var (
		vErr  *domain.ValidationError
		pnf   *domain.ProductNotFoundError
		stock *domain.InsufficientStockError
	)

	switch {
	case errors.As(err, &vErr):
		return Error(c, fiber.StatusBadRequest, CodeValidation, "validation failed", vErr.Fields)
	case errors.As(err, &pnf):
		return Error(c, fiber.StatusBadRequest, CodeProductNotFound, pnf.Error(),
			fiber.Map{"productIds": pnf.IDs})
	case errors.As(err, &stock):
		return Error(c, fiber.StatusConflict, CodeInsufficientStock, stock.Error(), fiber.Map{
			"productId": stock.ProductID,
			"requested": stock.Requested,
			"available": stock.Available,
		})
	case errors.Is(err, domain.ErrStockConflict):
		return Error(c, fiber.StatusConflict, CodeStockConflict, domain.ErrStockConflict.Error(), nil)
	case errors.Is(err, domain.ErrInvalidStatusTransition):
		return Error(c, fiber.StatusConflict, CodeInvalidTransition, err.Error(), nil)
	case errors.Is(err, domain.ErrWorkflowTimeout):
		c.Set(fiber.HeaderRetryAfter, RetryAfterSeconds)
		return Error(c, fiber.StatusServiceUnavailable, CodeWorkflowTimeout, domain.ErrWorkflowTimeout.Error(), nil)
	case errors.Is(err, domain.ErrInvalidCredentials):
		return Error(c, fiber.StatusUnauthorized, CodeUnauthorized, domain.ErrInvalidCredentials.Error(), nil)
	case errors.Is(err, domain.ErrUnauthorized):
		return Error(c, fiber.StatusUnauthorized, CodeUnauthorized, domain.ErrUnauthorized.Error(), nil)
	case errors.Is(err, domain.ErrForbidden):
		return Error(c, fiber.StatusForbidden, CodeForbidden, err.Error(), nil)
	case errors.Is(err, domain.ErrNotFound):
		return Error(c, fiber.StatusNotFound, CodeNotFound, err.Error(), nil)
	case errors.Is(err, domain.ErrAlreadyExists):
		return Error(c, fiber.StatusConflict, CodeConflict, err.Error(), nil)
	case errors.Is(err, domain.ErrPersistence):
		mylogger.Error(c.UserContext(), logger, "Persistence failure", zap.String("path", c.Path()), zap.Error(err))
		return Error(c, fiber.StatusInternalServerError, CodePersistence, "could not save your request, please try again", nil)
	default:
		mylogger.Error(c.UserContext(), logger, "Unhandled error", zap.String("path", c.Path()), zap.Error(err))
		return Error(c, fiber.StatusInternalServerError, CodeInternal, "internal error", nil)
	}
}

// FiberErrorHandler renders errors fiber raises itself (unknown route, body
// too large) in the shared shape.
func FiberErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code := CodeInternal
			switch fe.Code {
			case fiber.StatusNotFound:
				code = CodeNotFound
			case fiber.StatusBadRequest, fiber.StatusRequestEntityTooLarge, fiber.StatusUnprocessableEntity:
				code = CodeValidation
			case fiber.StatusMethodNotAllowed:
				code = CodeNotFound
			}
			return Error(c, fe.Code, code, fe.Message, nil)
		}

		return WriteError(c, logger, err)
	}
}
