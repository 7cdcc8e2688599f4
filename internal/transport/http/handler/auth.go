package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sakashimaa/electro-shop/internal/domain"
	"github.com/sakashimaa/electro-shop/internal/service"
	"github.com/sakashimaa/electro-shop/internal/transport/http/response"
	"go.uber.org/zap"
)

type AuthHandler struct {
	svc    service.AuthService
	logger *zap.Logger
}

type refreshInput struct {
	RefreshToken string `json:"refreshToken"`
}

func NewAuthHandler(svc service.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		svc:    svc,
		logger: logger,
	}
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	req := new(domain.RegisterInput)
	if ok, err := parseBody(c, h.logger, req); !ok {
		return err
	}

	user, err := h.svc.Register(c.UserContext(), req)
	if err != nil {
		return response.WriteError(c, h.logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(user)
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	req := new(domain.LoginInput)
	if ok, err := parseBody(c, h.logger, req); !ok {
		return err
	}

	pair, err := h.svc.Login(c.UserContext(), req)
	if err != nil {
		return response.WriteError(c, h.logger, err)
	}

	return c.Status(fiber.StatusOK).JSON(pair)
}

func (h *AuthHandler) AdminLogin(c *fiber.Ctx) error {
	req := new(domain.AdminLoginInput)
	if ok, err := parseBody(c, h.logger, req); !ok {
		return err
	}

	pair, err := h.svc.AdminLogin(c.UserContext(), req)
	if err != nil {
		return response.WriteError(c, h.logger, err)
	}

	return c.Status(fiber.StatusOK).JSON(pair)
}

func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	req := new(refreshInput)
	if ok, err := parseBody(c, h.logger, req); !ok {
		return err
	}
	if req.RefreshToken == "" {
		return response.BadRequest(c, "refreshToken", "refresh token is required")
	}

	pair, err := h.svc.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return response.WriteError(c, h.logger, err)
	}

	return c.Status(fiber.StatusOK).JSON(pair)
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	req := new(refreshInput)
	if ok, err := parseBody(c, h.logger, req); !ok {
		return err
	}
	if req.RefreshToken == "" {
		return response.BadRequest(c, "refreshToken", "refresh token is required")
	}

	if err := h.svc.Logout(c.UserContext(), req.RefreshToken); err != nil {
		return response.WriteError(c, h.logger, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true})
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	p, ok, err := principal(c)
	if !ok {
		return err
	}

	user, err := h.svc.Me(c.UserContext(), p.UserID)
	if err != nil {
		return response.WriteError(c, h.logger, err)
	}

	return c.JSON(user)
}
