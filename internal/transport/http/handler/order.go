package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sakashimaa/electro-shop/internal/domain"
	"github.com/sakashimaa/electro-shop/internal/service"
	"github.com/sakashimaa/electro-shop/internal/transport/http/response"
	"go.uber.org/zap"
)

type OrderHandler struct {
	svc    service.OrderService
	logger *zap.Logger
}

type updateStatusInput struct {
	Status string `json:"status"`
}

func NewOrderHandler(svc service.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		svc:    svc,
		logger: logger,
	}
}

func (h *OrderHandler) Create(c *fiber.Ctx) error {
	actor, ok, err := principal(c)
	if !ok {
		return err
	}

	req := new(domain.PlaceOrderRequest)
	if ok, err := parseBody(c, h.logger, req); !ok {
		return err
	}

	order, err := h.svc.PlaceOrder(c.UserContext(), actor.UserID, req)
	if err != nil {
		return response.WriteError(c, h.logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(order)
}

func (h *OrderHandler) ListMine(c *fiber.Ctx) error {
	actor, ok, err := principal(c)
	if !ok {
		return err
	}

	orders, err := h.svc.ListMine(c.UserContext(), actor.UserID)
	if err != nil {
		return response.WriteError(c, h.logger, err)
	}

	return c.JSON(orders)
}

func (h *OrderHandler) Get(c *fiber.Ctx) error {
	actor, ok, err := principal(c)
	if !ok {
		return err
	}
	id, ok, err := idParam(c, "id")
	if !ok {
		return err
	}

	order, err := h.svc.GetOrder(c.UserContext(), actor, id)
	if err != nil {
		return response.WriteError(c, h.logger, err)
	}

	return c.JSON(order)
}

func (h *OrderHandler) ListAll(c *fiber.Ctx) error {
	limit, offset := service.ClampPage(pageQuery(c))
	filter := domain.OrderFilter{Limit: limit, Offset: offset}

	if raw := c.Query("status"); raw != "" {
		status, err := domain.ParseOrderStatus(raw)
		if err != nil {
			return response.BadRequest(c, "status", err.Error())
		}
		filter.Status = &status
	}

	orders, total, err := h.svc.ListAll(c.UserContext(), filter)
	if err != nil {
		return response.WriteError(c, h.logger, err)
	}

	return c.JSON(Page[domain.Order]{Items: orders, Total: total, Limit: limit, Offset: offset})
}

func (h *OrderHandler) UpdateStatus(c *fiber.Ctx) error {
	actor, ok, err := principal(c)
	if !ok {
		return err
	}
	id, ok, err := idParam(c, "id")
	if !ok {
		return err
	}

	req := new(updateStatusInput)
	if ok, err := parseBody(c, h.logger, req); !ok {
		return err
	}

	next, err := domain.ParseOrderStatus(req.Status)
	if err != nil {
		return response.BadRequest(c, "status", err.Error())
	}

	order, err := h.svc.UpdateStatus(c.UserContext(), actor, id, next)
	if err != nil {
		return response.WriteError(c, h.logger, err)
	}

	return c.JSON(order)
}
