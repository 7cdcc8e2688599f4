package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sakashimaa/electro-shop/internal/domain"
	"github.com/sakashimaa/electro-shop/pkg/utils"
	"go.uber.org/zap"
)

func productInput(name, price string) *domain.CreateProductInput {
	return &domain.CreateProductInput{
		Name:     name,
		Price:    dec(price),
		Stock:    10,
		Category: "phones",
		Brand:    "Acme",
	}
}

func (s *IntegrationTestSuite) TestProductCRUD() {
	admin := s.seedUser("admin@example.com", domain.RoleStandardAdmin)

	created, err := s.ProductService.Create(s.Ctx, admin, productInput("Pixel 9", "799.99"))
	s.Require().NoError(err)
	s.NotZero(created.ID)

	got, err := s.ProductService.Get(s.Ctx, created.ID)
	s.Require().NoError(err)
	s.Equal("Pixel 9", got.Name)

	name := "Pixel 9 Pro"
	updated, err := s.ProductService.Update(s.Ctx, admin, created.ID, &domain.UpdateProductInput{Name: &name})
	s.Require().NoError(err)
	s.Equal(name, updated.Name)
	s.True(dec("799.99").Equal(updated.Price))

	// the update dropped the cached copy
	got, err = s.ProductService.Get(s.Ctx, created.ID)
	s.Require().NoError(err)
	s.Equal(name, got.Name)

	s.Require().NoError(s.ProductService.Delete(s.Ctx, admin, created.ID))
	_, err = s.ProductService.Get(s.Ctx, created.ID)
	s.ErrorIs(err, domain.ErrProductNotFound)

	s.Equal(1, s.countActivity(domain.ActionProductCreated))
	s.Equal(1, s.countActivity(domain.ActionProductUpdated))
	s.Equal(1, s.countActivity(domain.ActionProductDeleted))
}

func (s *IntegrationTestSuite) TestProductCreate_Rejections() {
	admin := s.seedUser("admin@example.com", domain.RoleStandardAdmin)
	customer := s.seedUser("ada@example.com", domain.RoleCustomer)

	_, err := s.ProductService.Create(s.Ctx, customer, productInput("Pixel 9", "10.00"))
	s.ErrorIs(err, domain.ErrForbidden)

	var vErr *domain.ValidationError
	_, err = s.ProductService.Create(s.Ctx, admin, productInput("Pixel 9", "-1.00"))
	s.Require().ErrorAs(err, &vErr)
	s.Contains(vErr.Fields, "price")

	_, err = s.ProductService.Create(s.Ctx, admin, productInput("Pixel 9", "1.005"))
	s.ErrorAs(err, &vErr)

	_, err = s.ProductService.Update(s.Ctx, admin, 1, &domain.UpdateProductInput{})
	s.ErrorAs(err, &vErr)

	s.Equal(0, s.count("products"))
}

func (s *IntegrationTestSuite) TestProductGet_ServedFromCache() {
	productID := s.seedProduct("Pixel 9", "10.00", 5)

	_, err := s.ProductService.Get(s.Ctx, productID)
	s.Require().NoError(err)

	raw, err := s.Redis.Get(s.Ctx, productKey(productID)).Bytes()
	s.Require().NoError(err)

	var cached domain.Product
	s.Require().NoError(json.Unmarshal(raw, &cached))
	s.Equal("Pixel 9", cached.Name)

	// a direct write is invisible until the key is invalidated
	_, err = s.DbPool.Exec(s.Ctx, `UPDATE products SET name = 'Changed' WHERE id = $1`, productID)
	s.Require().NoError(err)

	got, err := s.ProductService.Get(s.Ctx, productID)
	s.Require().NoError(err)
	s.Equal("Pixel 9", got.Name)

	s.ProductService.Invalidate(s.Ctx, productID)

	got, err = s.ProductService.Get(s.Ctx, productID)
	s.Require().NoError(err)
	s.Equal("Changed", got.Name)
}

// invalidatingProducts simulates a stock change committing while a cache
// miss is still reading the database.
type invalidatingProducts struct {
	ProductService
	during func()
}

func (p *invalidatingProducts) Get(ctx context.Context, id int64) (*domain.Product, error) {
	product, err := p.ProductService.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	p.during()
	return product, nil
}

func (s *IntegrationTestSuite) TestProductGet_InvalidationDuringMissSkipsFill() {
	productID := s.seedProduct("Pixel 9", "10.00", 5)

	inner := &invalidatingProducts{ProductService: NewProductService(s.Products, nil, utils.NewValidator(), zap.NewNop())}
	cached := NewCachedProductService(inner, s.Redis, time.Minute, zap.NewNop())
	inner.during = func() {
		_, err := s.DbPool.Exec(s.Ctx, `UPDATE products SET stock = 2 WHERE id = $1`, productID)
		s.Require().NoError(err)
		cached.Invalidate(s.Ctx, productID)
	}

	got, err := cached.Get(s.Ctx, productID)
	s.Require().NoError(err)
	s.EqualValues(5, got.Stock)
	s.EqualValues(0, s.Redis.Exists(s.Ctx, productKey(productID)).Val())

	inner.during = func() {}
	got, err = cached.Get(s.Ctx, productID)
	s.Require().NoError(err)
	s.EqualValues(2, got.Stock)
	s.EqualValues(1, s.Redis.Exists(s.Ctx, productKey(productID)).Val())
}

func (s *IntegrationTestSuite) TestProductList() {
	s.seedProduct("Alpha phone", "30.00", 1)
	s.seedProduct("Beta phone", "10.00", 1)
	s.seedProduct("Gamma tablet", "20.00", 1)

	items, total, err := s.ProductService.List(s.Ctx, domain.ProductFilter{Search: "phone", Sort: domain.SortPriceAsc})
	s.Require().NoError(err)
	s.EqualValues(2, total)
	s.Require().Len(items, 2)
	s.Equal("Beta phone", items[0].Name)

	items, total, err = s.ProductService.List(s.Ctx, domain.ProductFilter{Sort: domain.SortName, Limit: 1, Offset: 1})
	s.Require().NoError(err)
	s.EqualValues(3, total)
	s.Require().Len(items, 1)
	s.Equal("Beta phone", items[0].Name)

	_, _, err = s.ProductService.List(s.Ctx, domain.ProductFilter{Sort: "cheapest"})
	var vErr *domain.ValidationError
	s.ErrorAs(err, &vErr)
}

func (s *IntegrationTestSuite) TestProductFeaturedAndExport() {
	mainAdmin := s.seedUser("root@example.com", domain.RoleMainAdmin)
	standard := s.seedUser("admin@example.com", domain.RoleStandardAdmin)

	featured := productInput("Pixel 9", "10.00")
	featured.Featured = true
	_, err := s.ProductService.Create(s.Ctx, mainAdmin, featured)
	s.Require().NoError(err)
	_, err = s.ProductService.Create(s.Ctx, mainAdmin, productInput("Cable", "1.00"))
	s.Require().NoError(err)

	items, err := s.ProductService.Featured(s.Ctx, 8)
	s.Require().NoError(err)
	s.Require().Len(items, 1)
	s.Equal("Pixel 9", items[0].Name)

	all, err := s.ProductService.Export(s.Ctx, mainAdmin)
	s.Require().NoError(err)
	s.Len(all, 2)
	s.Equal(1, s.countActivity(domain.ActionProductsExported))

	_, err = s.ProductService.Export(s.Ctx, standard)
	s.ErrorIs(err, domain.ErrForbidden)
}
