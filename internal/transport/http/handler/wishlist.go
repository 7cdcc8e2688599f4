package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sakashimaa/electro-shop/internal/service"
	"github.com/sakashimaa/electro-shop/internal/transport/http/response"
	"go.uber.org/zap"
)

type WishlistHandler struct {
	svc    service.WishlistService
	logger *zap.Logger
}

func NewWishlistHandler(svc service.WishlistService, logger *zap.Logger) *WishlistHandler {
	return &WishlistHandler{svc: svc, logger: logger}
}

func (h *WishlistHandler) List(c *fiber.Ctx) error {
	actor, ok, err := principal(c)
	if !ok {
		return err
	}

	items, err := h.svc.List(c.UserContext(), actor.UserID)
	if err != nil {
		return response.WriteError(c, h.logger, err)
	}

	return c.JSON(items)
}

func (h *WishlistHandler) Add(c *fiber.Ctx) error {
	actor, ok, err := principal(c)
	if !ok {
		return err
	}
	productID, ok, err := idParam(c, "productId")
	if !ok {
		return err
	}

	if err := h.svc.Add(c.UserContext(), actor.UserID, productID); err != nil {
		return response.WriteError(c, h.logger, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *WishlistHandler) Remove(c *fiber.Ctx) error {
	actor, ok, err := principal(c)
	if !ok {
		return err
	}
	productID, ok, err := idParam(c, "productId")
	if !ok {
		return err
	}

	if err := h.svc.Remove(c.UserContext(), actor.UserID, productID); err != nil {
		return response.WriteError(c, h.logger, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}
