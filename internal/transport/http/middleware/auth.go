package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sakashimaa/electro-shop/internal/authz"
	"github.com/sakashimaa/electro-shop/internal/token"
	"github.com/sakashimaa/electro-shop/internal/transport/http/response"
)

const principalKey = "principal"

// NewAuthMiddleware verifies the bearer access token and stores the caller's
// id and role for Require and the handlers.
func NewAuthMiddleware(tokens *token.Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return response.Error(c, fiber.StatusUnauthorized, response.CodeUnauthorized, "missing authorization header", nil)
		}

		scheme, tokenString, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || tokenString == "" {
			return response.Error(c, fiber.StatusUnauthorized, response.CodeUnauthorized, "invalid authorization header format", nil)
		}

		claims, err := tokens.ParseAccess(strings.TrimSpace(tokenString))
		if err != nil {
			return response.Error(c, fiber.StatusUnauthorized, response.CodeUnauthorized, "invalid or expired token", nil)
		}

		c.Locals(principalKey, authz.Principal{UserID: claims.UserID, Role: claims.Role})
		return c.Next()
	}
}

// Require lets the request through only when the caller holds every cap.
func Require(caps ...authz.Capability) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, ok := PrincipalFrom(c)
		if !ok {
			return response.Error(c, fiber.StatusUnauthorized, response.CodeUnauthorized, "unauthorized", nil)
		}
		if !p.Can(caps...) {
			return response.Error(c, fiber.StatusForbidden, response.CodeForbidden, "you do not have permission to do this", nil)
		}
		return c.Next()
	}
}

func PrincipalFrom(c *fiber.Ctx) (authz.Principal, bool) {
	p, ok := c.Locals(principalKey).(authz.Principal)
	return p, ok && p.UserID != 0
}
