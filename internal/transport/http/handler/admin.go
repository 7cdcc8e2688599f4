package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sakashimaa/electro-shop/internal/domain"
	"github.com/sakashimaa/electro-shop/internal/service"
	"github.com/sakashimaa/electro-shop/internal/transport/http/response"
	"github.com/sakashimaa/electro-shop/pkg/mylogger"
	"go.uber.org/zap"
)

type AdminHandler struct {
	svc    service.AdminService
	logger *zap.Logger
}

type changeRoleInput struct {
	Role string `json:"role"`
}

func NewAdminHandler(svc service.AdminService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{svc: svc, logger: logger}
}

func (h *AdminHandler) CreateStandardAdmin(c *fiber.Ctx) error {
	actor, ok, err := principal(c)
	if !ok {
		return err
	}

	req := new(domain.CreateStandardAdminInput)
	if ok, err := parseBody(c, h.logger, req); !ok {
		return err
	}

	user, err := h.svc.CreateStandardAdmin(c.UserContext(), actor, req)
	if err != nil {
		return response.WriteError(c, h.logger, err)
	}

	mylogger.Info(
		c.UserContext(),
		h.logger,
		"standard admin created",
		zap.Int64("user_id", user.ID),
		zap.Int64("actor_id", actor.UserID),
	)

	return c.Status(fiber.StatusCreated).JSON(user)
}

func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	actor, ok, err := principal(c)
	if !ok {
		return err
	}

	limit, offset := service.ClampPage(pageQuery(c))
	users, total, err := h.svc.ListUsers(c.UserContext(), actor, limit, offset)
	if err != nil {
		return response.WriteError(c, h.logger, err)
	}

	return c.JSON(Page[domain.User]{Items: users, Total: total, Limit: limit, Offset: offset})
}

func (h *AdminHandler) DeleteUser(c *fiber.Ctx) error {
	actor, ok, err := principal(c)
	if !ok {
		return err
	}
	id, ok, err := idParam(c, "id")
	if !ok {
		return err
	}

	if err := h.svc.DeleteUser(c.UserContext(), actor, id); err != nil {
		return response.WriteError(c, h.logger, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *AdminHandler) ChangeRole(c *fiber.Ctx) error {
	actor, ok, err := principal(c)
	if !ok {
		return err
	}
	id, ok, err := idParam(c, "id")
	if !ok {
		return err
	}

	req := new(changeRoleInput)
	if ok, err := parseBody(c, h.logger, req); !ok {
		return err
	}

	if err := h.svc.ChangeRole(c.UserContext(), actor, id, domain.Role(req.Role)); err != nil {
		return response.WriteError(c, h.logger, err)
	}

	return c.JSON(fiber.Map{"id": id, "role": req.Role})
}

func (h *AdminHandler) Revenue(c *fiber.Ctx) error {
	actor, ok, err := principal(c)
	if !ok {
		return err
	}

	report, err := h.svc.Revenue(c.UserContext(), actor)
	if err != nil {
		return response.WriteError(c, h.logger, err)
	}

	return c.JSON(report)
}

func (h *AdminHandler) TopProducts(c *fiber.Ctx) error {
	actor, ok, err := principal(c)
	if !ok {
		return err
	}

	products, err := h.svc.TopProducts(c.UserContext(), actor)
	if err != nil {
		return response.WriteError(c, h.logger, err)
	}

	return c.JSON(products)
}

func (h *AdminHandler) Activity(c *fiber.Ctx) error {
	actor, ok, err := principal(c)
	if !ok {
		return err
	}

	entries, err := h.svc.Activity(c.UserContext(), actor)
	if err != nil {
		return response.WriteError(c, h.logger, err)
	}

	return c.JSON(entries)
}
