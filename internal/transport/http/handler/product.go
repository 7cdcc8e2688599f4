package handler

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sakashimaa/electro-shop/internal/domain"
	"github.com/sakashimaa/electro-shop/internal/service"
	"github.com/sakashimaa/electro-shop/internal/transport/http/response"
	"github.com/sakashimaa/electro-shop/pkg/mylogger"
	"go.uber.org/zap"
)

const defaultFeaturedLimit = 8

type ProductHandler struct {
	svc     service.ProductService
	reviews service.ReviewService
	logger  *zap.Logger
}

func NewProductHandler(svc service.ProductService, reviews service.ReviewService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		svc:     svc,
		reviews: reviews,
		logger:  logger,
	}
}

func (h *ProductHandler) List(c *fiber.Ctx) error {
	limit, offset := pageQuery(c)
	filter := domain.ProductFilter{
		Search:   c.Query("search"),
		Category: c.Query("category"),
		Sort:     domain.ProductSort(c.Query("sort")),
		Limit:    limit,
		Offset:   offset,
	}

	products, total, err := h.svc.List(c.UserContext(), filter)
	if err != nil {
		return response.WriteError(c, h.logger, err)
	}

	limit, offset = service.ClampPage(limit, offset)
	return c.JSON(Page[domain.Product]{Items: products, Total: total, Limit: limit, Offset: offset})
}

func (h *ProductHandler) Featured(c *fiber.Ctx) error {
	products, err := h.svc.Featured(c.UserContext(), int64(c.QueryInt("limit", defaultFeaturedLimit)))
	if err != nil {
		return response.WriteError(c, h.logger, err)
	}

	return c.JSON(products)
}

func (h *ProductHandler) FindByID(c *fiber.Ctx) error {
	id, ok, err := idParam(c, "id")
	if !ok {
		return err
	}

	product, err := h.svc.Get(c.UserContext(), id)
	if err != nil {
		return response.WriteError(c, h.logger, err)
	}

	return c.JSON(product)
}

func (h *ProductHandler) Create(c *fiber.Ctx) error {
	actor, ok, err := principal(c)
	if !ok {
		return err
	}

	req := new(domain.CreateProductInput)
	if ok, err := parseBody(c, h.logger, req); !ok {
		return err
	}

	product, err := h.svc.Create(c.UserContext(), actor, req)
	if err != nil {
		return response.WriteError(c, h.logger, err)
	}

	mylogger.Info(
		c.UserContext(),
		h.logger,
		"product created",
		zap.Int64("product_id", product.ID),
		zap.Int64("actor_id", actor.UserID),
	)

	return c.Status(fiber.StatusCreated).JSON(product)
}

func (h *ProductHandler) Update(c *fiber.Ctx) error {
	actor, ok, err := principal(c)
	if !ok {
		return err
	}
	id, ok, err := idParam(c, "id")
	if !ok {
		return err
	}

	req := new(domain.UpdateProductInput)
	if ok, err := parseBody(c, h.logger, req); !ok {
		return err
	}

	product, err := h.svc.Update(c.UserContext(), actor, id, req)
	if err != nil {
		return response.WriteError(c, h.logger, err)
	}

	return c.JSON(product)
}

func (h *ProductHandler) Delete(c *fiber.Ctx) error {
	actor, ok, err := principal(c)
	if !ok {
		return err
	}
	id, ok, err := idParam(c, "id")
	if !ok {
		return err
	}

	if err := h.svc.Delete(c.UserContext(), actor, id); err != nil {
		return response.WriteError(c, h.logger, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// Download sends the full catalog as a JSON attachment.
func (h *ProductHandler) Download(c *fiber.Ctx) error {
	actor, ok, err := principal(c)
	if !ok {
		return err
	}

	products, err := h.svc.Export(c.UserContext(), actor)
	if err != nil {
		return response.WriteError(c, h.logger, err)
	}

	filename := fmt.Sprintf("products-%s.json", time.Now().UTC().Format("20060102"))
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, filename))
	return c.JSON(products)
}

func (h *ProductHandler) ListReviews(c *fiber.Ctx) error {
	id, ok, err := idParam(c, "id")
	if !ok {
		return err
	}

	reviews, err := h.reviews.ListReviews(c.UserContext(), id)
	if err != nil {
		return response.WriteError(c, h.logger, err)
	}

	return c.JSON(reviews)
}

func (h *ProductHandler) CreateReview(c *fiber.Ctx) error {
	actor, ok, err := principal(c)
	if !ok {
		return err
	}
	id, ok, err := idParam(c, "id")
	if !ok {
		return err
	}

	req := new(domain.CreateReviewInput)
	if ok, err := parseBody(c, h.logger, req); !ok {
		return err
	}

	review, err := h.reviews.CreateReview(c.UserContext(), actor, id, req)
	if err != nil {
		return response.WriteError(c, h.logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(review)
}
