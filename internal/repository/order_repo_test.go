package repository

import (
	"github.com/jackc/pgx/v5"
	"github.com/sakashimaa/electro-shop/internal/domain"
	"github.com/shopspring/decimal"
)

func (s *RepositoryTestSuite) insertOrder(userID int64, productID int64) *domain.Order {
	order := &domain.Order{
		UserID:          userID,
		CustomerName:    "Ada Lovelace",
		DeliveryAddress: "1 Analytical Way",
		ContactNumber:   "+441234567",
		Total:           decimal.RequireFromString("20.00"),
		Status:          domain.StatusPending,
	}

	err := s.inTx(func(tx pgx.Tx) error {
		if err := s.orders.InsertOrder(s.Ctx, tx, order); err != nil {
			return err
		}
		return s.orders.InsertLineItem(s.Ctx, tx, &domain.OrderItem{
			OrderID:            order.ID,
			ProductID:          productID,
			ProductName:        "Pixel 9",
			Quantity:           2,
			PriceAtTimeOfOrder: decimal.RequireFromString("10.00"),
		})
	})
	s.Require().NoError(err)

	return order
}

func (s *RepositoryTestSuite) TestInsertAndGetOrder() {
	userID := s.seedUser("ada@example.com")
	productID := s.seedProduct(5)
	order := s.insertOrder(userID, productID)

	got, err := s.orders.GetByID(s.Ctx, order.ID)
	s.Require().NoError(err)
	s.Equal(userID, got.UserID)
	s.Equal(domain.StatusPending, got.Status)
	s.Equal("20.00", got.Total.StringFixed(2))
	s.Require().Len(got.Items, 1)
	s.Equal(productID, got.Items[0].ProductID)
	s.EqualValues(2, got.Items[0].Quantity)
}

func (s *RepositoryTestSuite) TestLineItemSurvivesProductDelete() {
	userID := s.seedUser("ada@example.com")
	productID := s.seedProduct(5)
	order := s.insertOrder(userID, productID)

	_, err := s.DbPool.Exec(s.Ctx, `DELETE FROM products WHERE id = $1`, productID)
	s.Require().NoError(err)

	got, err := s.orders.GetByID(s.Ctx, order.ID)
	s.Require().NoError(err)
	s.Require().Len(got.Items, 1)
	s.Zero(got.Items[0].ProductID)
	s.Equal("Pixel 9", got.Items[0].ProductName)
}

func (s *RepositoryTestSuite) TestSetOrderStatus_CompareAndSet() {
	userID := s.seedUser("ada@example.com")
	order := s.insertOrder(userID, s.seedProduct(5))

	err := s.inTx(func(tx pgx.Tx) error {
		return s.orders.SetOrderStatus(s.Ctx, tx, order.ID, domain.StatusPending, domain.StatusProcessing)
	})
	s.Require().NoError(err)

	// a second writer still expecting pending loses
	err = s.inTx(func(tx pgx.Tx) error {
		return s.orders.SetOrderStatus(s.Ctx, tx, order.ID, domain.StatusPending, domain.StatusCancelled)
	})
	s.ErrorIs(err, domain.ErrInvalidStatusTransition)

	got, err := s.orders.GetByID(s.Ctx, order.ID)
	s.Require().NoError(err)
	s.Equal(domain.StatusProcessing, got.Status)
}

func (s *RepositoryTestSuite) TestListAllOrders_Filter() {
	userID := s.seedUser("ada@example.com")
	productID := s.seedProduct(5)
	first := s.insertOrder(userID, productID)
	s.insertOrder(userID, productID)

	s.Require().NoError(s.inTx(func(tx pgx.Tx) error {
		return s.orders.SetOrderStatus(s.Ctx, tx, first.ID, domain.StatusPending, domain.StatusCancelled)
	}))

	status := domain.StatusCancelled
	orders, total, err := s.orders.ListAllOrders(s.Ctx, domain.OrderFilter{Status: &status, Limit: 10})
	s.Require().NoError(err)
	s.EqualValues(1, total)
	s.Require().Len(orders, 1)
	s.Equal(first.ID, orders[0].ID)

	orders, total, err = s.orders.ListAllOrders(s.Ctx, domain.OrderFilter{Limit: 1})
	s.Require().NoError(err)
	s.EqualValues(2, total)
	s.Len(orders, 1)

	mine, err := s.orders.ListOrdersForUser(s.Ctx, userID)
	s.Require().NoError(err)
	s.Len(mine, 2)
}
