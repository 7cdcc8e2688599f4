// Package handler adapts the services to fiber routes.
package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sakashimaa/electro-shop/internal/authz"
	"github.com/sakashimaa/electro-shop/internal/transport/http/middleware"
	"github.com/sakashimaa/electro-shop/internal/transport/http/response"
	"github.com/sakashimaa/electro-shop/pkg/mylogger"
	"go.uber.org/zap"
)

// Page is the envelope of every paginated list.
type Page[T any] struct {
	Items  []T   `json:"items"`
	Total  int64 `json:"total"`
	Limit  int64 `json:"limit"`
	Offset int64 `json:"offset"`
}

// parseBody decodes the JSON body into dst, or returns ok=false after
// writing a 400.
func parseBody(c *fiber.Ctx, logger *zap.Logger, dst any) (bool, error) {
	if err := c.BodyParser(dst); err != nil {
		mylogger.Warn(
			c.UserContext(),
			logger,
			"body parsing failed",
			zap.String("path", c.Path()),
			zap.Error(err),
		)

		return false, response.Error(c, fiber.StatusBadRequest, response.CodeValidation, "Cannot parse JSON", nil)
	}
	return true, nil
}

// idParam returns the positive integer route param, or ok=false after
// writing a 400.
func idParam(c *fiber.Ctx, name string) (int64, bool, error) {
	id, err := c.ParamsInt(name)
	if err != nil || id <= 0 {
		return 0, false, response.BadRequest(c, name, "must be a positive integer")
	}
	return int64(id), true, nil
}

func principal(c *fiber.Ctx) (authz.Principal, bool, error) {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return authz.Principal{}, false,
			response.Error(c, fiber.StatusUnauthorized, response.CodeUnauthorized, "unauthorized", nil)
	}
	return p, true, nil
}

func pageQuery(c *fiber.Ctx) (int64, int64) {
	return int64(c.QueryInt("limit", 0)), int64(c.QueryInt("offset", 0))
}
