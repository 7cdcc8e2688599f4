package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sakashimaa/electro-shop/internal/authz"
	"github.com/sakashimaa/electro-shop/internal/domain"
	"github.com/sakashimaa/electro-shop/internal/pricing"
	"github.com/sakashimaa/electro-shop/internal/repository"
	"github.com/sakashimaa/electro-shop/pkg/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type ProductService interface {
	Get(ctx context.Context, id int64) (*domain.Product, error)
	List(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, int64, error)
	Featured(ctx context.Context, limit int64) ([]domain.Product, error)
	Create(ctx context.Context, actor authz.Principal, in *domain.CreateProductInput) (*domain.Product, error)
	Update(ctx context.Context, actor authz.Principal, id int64, in *domain.UpdateProductInput) (*domain.Product, error)
	Delete(ctx context.Context, actor authz.Principal, id int64) error
	Export(ctx context.Context, actor authz.Principal) ([]domain.Product, error)
}

type productService struct {
	repo      repository.ProductRepository
	activity  ActivityService
	validator *validator.Validate
	logger    *zap.Logger
	tracer    trace.Tracer
}

func NewProductService(
	repo repository.ProductRepository,
	activity ActivityService,
	validator *validator.Validate,
	logger *zap.Logger,
) ProductService {
	return &productService{
		repo:      repo,
		activity:  activity,
		validator: validator,
		logger:    logger,
		tracer:    otel.Tracer("service/product_service"),
	}
}

// ClampPage applies the default page size and the upper bound.
func ClampPage(limit, offset int64) (int64, int64) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (s *productService) Get(ctx context.Context, id int64) (*domain.Product, error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.Get")
	defer span.End()

	span.SetAttributes(attribute.Int64("product_id", id))

	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			span.RecordError(err)
			mylogger.Error(ctx, s.logger, "Failed to get product", zap.Int64("product_id", id), zap.Error(err))
		}
		return nil, err
	}

	return product, nil
}

func (s *productService) List(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, int64, error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.List")
	defer span.End()

	switch filter.Sort {
	case "":
		filter.Sort = domain.SortNewest
	case domain.SortNewest, domain.SortPriceAsc, domain.SortPriceDesc, domain.SortName, domain.SortRating:
	default:
		return nil, 0, domain.NewValidationError("sort", "sort must be one of [newest price_asc price_desc name rating]")
	}

	filter.Search = strings.TrimSpace(filter.Search)
	filter.Category = strings.TrimSpace(filter.Category)
	filter.Limit, filter.Offset = ClampPage(filter.Limit, filter.Offset)

	products, total, err := s.repo.List(ctx, filter)
	if err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, s.logger, "Failed to list products", zap.Error(err))
		return nil, 0, err
	}

	return products, total, nil
}

func (s *productService) Featured(ctx context.Context, limit int64) ([]domain.Product, error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.Featured")
	defer span.End()

	limit, _ = ClampPage(limit, 0)

	products, err := s.repo.Featured(ctx, limit)
	if err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, s.logger, "Failed to list featured products", zap.Error(err))
		return nil, err
	}

	return products, nil
}

func (s *productService) Create(ctx context.Context, actor authz.Principal, in *domain.CreateProductInput) (*domain.Product, error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.Create")
	defer span.End()

	if !actor.Can(authz.ProductsWrite) {
		return nil, domain.ErrForbidden
	}
	if err := validateStruct(s.validator, in); err != nil {
		return nil, err
	}
	if err := pricing.ValidatePrice(in.Price); err != nil {
		return nil, domain.NewValidationError("price", err.Error())
	}

	product := &domain.Product{
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Price:       in.Price,
		Stock:       in.Stock,
		Category:    strings.TrimSpace(in.Category),
		Brand:       strings.TrimSpace(in.Brand),
		ImageURL:    in.ImageURL,
		Featured:    in.Featured,
	}

	if err := s.repo.Create(ctx, product); err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.activity.Record(ctx, actor.UserID, domain.ActionProductCreated, map[string]any{
		"productId": product.ID,
		"name":      product.Name,
	})

	return product, nil
}

func (s *productService) Update(
	ctx context.Context,
	actor authz.Principal,
	id int64,
	in *domain.UpdateProductInput,
) (*domain.Product, error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.Update")
	defer span.End()

	span.SetAttributes(attribute.Int64("product_id", id))

	if !actor.Can(authz.ProductsWrite) {
		return nil, domain.ErrForbidden
	}
	if in.Empty() {
		return nil, domain.NewValidationError("request", "at least one field must be provided")
	}
	if err := validateStruct(s.validator, in); err != nil {
		return nil, err
	}
	if in.Price != nil {
		if err := pricing.ValidatePrice(*in.Price); err != nil {
			return nil, domain.NewValidationError("price", err.Error())
		}
	}

	product, err := s.repo.Update(ctx, id, in)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			span.RecordError(err)
		}
		return nil, err
	}

	s.activity.Record(ctx, actor.UserID, domain.ActionProductUpdated, map[string]any{
		"productId": id,
		"fields":    changedFields(in),
	})

	return product, nil
}

func changedFields(in *domain.UpdateProductInput) []string {
	var fields []string
	add := func(set bool, name string) {
		if set {
			fields = append(fields, name)
		}
	}

	add(in.Name != nil, "name")
	add(in.Description != nil, "description")
	add(in.Price != nil, "price")
	add(in.Stock != nil, "stock")
	add(in.Category != nil, "category")
	add(in.Brand != nil, "brand")
	add(in.ImageURL != nil, "imageUrl")
	add(in.Featured != nil, "featured")

	return fields
}

func (s *productService) Delete(ctx context.Context, actor authz.Principal, id int64) error {
	ctx, span := s.tracer.Start(ctx, "ProductService.Delete")
	defer span.End()

	span.SetAttributes(attribute.Int64("product_id", id))

	if !actor.Can(authz.ProductsWrite) {
		return domain.ErrForbidden
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.activity.Record(ctx, actor.UserID, domain.ActionProductDeleted, map[string]any{
		"productId": id,
	})

	return nil
}

func (s *productService) Export(ctx context.Context, actor authz.Principal) ([]domain.Product, error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.Export")
	defer span.End()

	if !actor.Can(authz.ReportsRead) {
		return nil, domain.ErrForbidden
	}

	products, err := s.repo.ExportAll(ctx)
	if err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, s.logger, "Failed to export products", zap.Error(err))
		return nil, err
	}

	s.activity.Record(ctx, actor.UserID, domain.ActionProductsExported, map[string]any{
		"count": len(products),
	})

	return products, nil
}
