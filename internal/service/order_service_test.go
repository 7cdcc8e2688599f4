package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sakashimaa/electro-shop/internal/domain"
	sharedDomain "github.com/sakashimaa/electro-shop/pkg/domain"
)

func (s *IntegrationTestSuite) TestPlaceOrder_Success() {
	customer := s.seedUser("ada@example.com", domain.RoleCustomer)
	productID := s.seedProduct("Pixel 9", "1000.00", 5)

	// warm the cache so the invalidation is observable
	_, err := s.ProductService.Get(s.Ctx, productID)
	s.Require().NoError(err)
	s.Require().EqualValues(1, s.Redis.Exists(s.Ctx, productKey(productID)).Val())

	order, err := s.place(customer.UserID, domain.LineRequest{ProductID: productID, Quantity: 3})
	s.Require().NoError(err)

	s.Equal(domain.StatusPending, order.Status)
	s.True(dec("3000.00").Equal(order.Total), "total was %s", order.Total)
	s.Require().Len(order.Items, 1)
	s.Equal("Pixel 9", order.Items[0].ProductName)
	s.True(dec("1000.00").Equal(order.Items[0].PriceAtTimeOfOrder))
	s.EqualValues(2, s.stockOf(productID))

	stored, err := s.Orders.GetByID(s.Ctx, order.ID)
	s.Require().NoError(err)
	s.True(order.Total.Equal(stored.Total))
	s.Equal(customer.UserID, stored.UserID)

	var payload []byte
	err = s.DbPool.QueryRow(s.Ctx, `
		SELECT payload FROM outbox WHERE event_type = $1 AND aggregate_id = $2
	`, sharedDomain.EventOrderPlaced, fmt.Sprint(order.ID)).Scan(&payload)
	s.Require().NoError(err)

	var env sharedDomain.Envelope[sharedDomain.OrderPlacedEvent]
	s.Require().NoError(json.Unmarshal(payload, &env))
	s.Equal(sharedDomain.EventOrderPlaced, env.Event)
	event := env.Payload
	s.Equal(order.ID, event.OrderID)
	s.Equal("ada@example.com", event.Email)
	s.Equal("3000.00", event.Total)

	s.EqualValues(0, s.Redis.Exists(s.Ctx, productKey(productID)).Val())
}

func (s *IntegrationTestSuite) TestPlaceOrder_TotalIsSumOfLines() {
	customer := s.seedUser("ada@example.com", domain.RoleCustomer)
	phone := s.seedProduct("Phone", "19.99", 10)
	cable := s.seedProduct("Cable", "0.10", 10)

	order, err := s.place(customer.UserID,
		domain.LineRequest{ProductID: phone, Quantity: 3},
		domain.LineRequest{ProductID: cable, Quantity: 3},
	)
	s.Require().NoError(err)

	s.Equal("60.27", order.Total.StringFixed(2))
	s.Len(order.Items, 2)
}

func (s *IntegrationTestSuite) TestPlaceOrder_MergesDuplicateLines() {
	customer := s.seedUser("ada@example.com", domain.RoleCustomer)
	productID := s.seedProduct("Pixel 9", "10.00", 5)

	order, err := s.place(customer.UserID,
		domain.LineRequest{ProductID: productID, Quantity: 2},
		domain.LineRequest{ProductID: productID, Quantity: 2},
	)
	s.Require().NoError(err)

	s.Require().Len(order.Items, 1)
	s.EqualValues(4, order.Items[0].Quantity)
	s.EqualValues(1, s.stockOf(productID))
}

func (s *IntegrationTestSuite) TestPlaceOrder_ConcurrentOrdersNeverOversell() {
	customer := s.seedUser("ada@example.com", domain.RoleCustomer)
	productID := s.seedProduct("Pixel 9", "1000.00", 5)

	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		errs  = make([]error, 2)
	)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = s.place(customer.UserID, domain.LineRequest{ProductID: productID, Quantity: 3})
		}(i)
	}
	close(start)
	wg.Wait()

	var succeeded int
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		var stock *domain.InsufficientStockError
		s.True(errors.As(err, &stock) || errors.Is(err, domain.ErrStockConflict), "unexpected error: %v", err)
	}

	s.Equal(1, succeeded)
	s.EqualValues(2, s.stockOf(productID))
	s.Equal(1, s.count("orders"))
}

func (s *IntegrationTestSuite) TestPlaceOrder_ManyConcurrentOrders() {
	customer := s.seedUser("ada@example.com", domain.RoleCustomer)
	productID := s.seedProduct("Pixel 9", "5.00", 7)

	const workers = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.place(customer.UserID, domain.LineRequest{ProductID: productID, Quantity: 2}); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	s.Equal(3, succeeded)
	s.EqualValues(1, s.stockOf(productID))
	s.Equal(3, s.count("orders"))
}

func (s *IntegrationTestSuite) TestPlaceOrder_UnknownProduct() {
	customer := s.seedUser("ada@example.com", domain.RoleCustomer)
	productID := s.seedProduct("Pixel 9", "1000.00", 5)

	_, err := s.place(customer.UserID,
		domain.LineRequest{ProductID: productID, Quantity: 1},
		domain.LineRequest{ProductID: 999999, Quantity: 1},
	)

	var pnf *domain.ProductNotFoundError
	s.Require().ErrorAs(err, &pnf)
	s.Equal([]int64{999999}, pnf.IDs)

	s.Equal(0, s.count("orders"))
	s.Equal(0, s.count("order_items"))
	s.Equal(0, s.count("outbox"))
	s.EqualValues(5, s.stockOf(productID))
}

func (s *IntegrationTestSuite) TestPlaceOrder_InsufficientStock() {
	customer := s.seedUser("ada@example.com", domain.RoleCustomer)
	productID := s.seedProduct("Pixel 9", "1000.00", 5)

	_, err := s.place(customer.UserID, domain.LineRequest{ProductID: productID, Quantity: 10})

	var stock *domain.InsufficientStockError
	s.Require().ErrorAs(err, &stock)
	s.Equal(productID, stock.ProductID)
	s.EqualValues(10, stock.Requested)
	s.EqualValues(5, stock.Available)

	s.Equal(0, s.count("orders"))
	s.Equal(0, s.count("order_items"))
	s.EqualValues(5, s.stockOf(productID))
}

func (s *IntegrationTestSuite) TestPlaceOrder_LargeTotalIsStored() {
	customer := s.seedUser("ada@example.com", domain.RoleCustomer)
	server := s.seedProduct("Server rack", "1000000.00", 100000)
	priciest := s.seedProduct("Mainframe", "99999999.99", math.MaxInt32)

	order, err := s.place(customer.UserID,
		domain.LineRequest{ProductID: server, Quantity: 100000},
		domain.LineRequest{ProductID: priciest, Quantity: math.MaxInt32},
	)
	s.Require().NoError(err)

	want := dec("1000000.00").Mul(dec("100000")).
		Add(dec("99999999.99").Mul(dec(fmt.Sprint(math.MaxInt32))))
	s.True(want.Equal(order.Total), "total was %s", order.Total)

	stored, err := s.Orders.GetByID(s.Ctx, order.ID)
	s.Require().NoError(err)
	s.True(want.Equal(stored.Total), "stored total was %s", stored.Total)
	s.EqualValues(0, s.stockOf(server))
	s.EqualValues(0, s.stockOf(priciest))
}

func (s *IntegrationTestSuite) TestPlaceOrder_OneShortLineRollsBackAll() {
	customer := s.seedUser("ada@example.com", domain.RoleCustomer)
	plenty := s.seedProduct("Phone", "10.00", 50)
	scarce := s.seedProduct("Tablet", "20.00", 1)

	_, err := s.place(customer.UserID,
		domain.LineRequest{ProductID: plenty, Quantity: 5},
		domain.LineRequest{ProductID: scarce, Quantity: 2},
	)

	var stock *domain.InsufficientStockError
	s.Require().ErrorAs(err, &stock)
	s.EqualValues(50, s.stockOf(plenty))
	s.EqualValues(1, s.stockOf(scarce))
	s.Equal(0, s.count("orders"))
}

func (s *IntegrationTestSuite) TestPlaceOrder_Validation() {
	customer := s.seedUser("ada@example.com", domain.RoleCustomer)
	productID := s.seedProduct("Pixel 9", "10.00", 5)

	cases := map[string]*domain.PlaceOrderRequest{
		"empty cart":    orderRequest(),
		"zero quantity": orderRequest(domain.LineRequest{ProductID: productID, Quantity: 0}),
		"blank name": func() *domain.PlaceOrderRequest {
			r := orderRequest(domain.LineRequest{ProductID: productID, Quantity: 1})
			r.CustomerName = "   "
			return r
		}(),
	}

	for name, req := range cases {
		_, err := s.OrderService.PlaceOrder(s.Ctx, customer.UserID, req)
		var vErr *domain.ValidationError
		s.ErrorAs(err, &vErr, name)
	}

	s.Equal(0, s.count("orders"))
	s.EqualValues(5, s.stockOf(productID))
}

func (s *IntegrationTestSuite) TestPlaceOrder_UnknownUser() {
	productID := s.seedProduct("Pixel 9", "10.00", 5)

	_, err := s.place(424242, domain.LineRequest{ProductID: productID, Quantity: 1})
	s.ErrorIs(err, domain.ErrUnauthorized)
}

func (s *IntegrationTestSuite) TestPlaceOrder_LockTimeout() {
	customer := s.seedUser("ada@example.com", domain.RoleCustomer)
	productID := s.seedProduct("Pixel 9", "10.00", 5)

	deps := s.orderDeps
	deps.Timeouts.LockTimeout = 200 * time.Millisecond
	deps.Timeouts.StatementTimeout = time.Second
	svc := NewOrderService(deps)

	holder, err := s.DbPool.Begin(s.Ctx)
	s.Require().NoError(err)
	defer func() { _ = holder.Rollback(context.Background()) }()

	_, err = holder.Exec(s.Ctx, `SELECT id FROM products WHERE id = $1 FOR UPDATE`, productID)
	s.Require().NoError(err)

	_, err = svc.PlaceOrder(s.Ctx, customer.UserID, orderRequest(domain.LineRequest{ProductID: productID, Quantity: 1}))
	s.ErrorIs(err, domain.ErrWorkflowTimeout)
	s.Equal(0, s.count("orders"))
}

func (s *IntegrationTestSuite) TestUpdateStatus_InvalidTransition() {
	customer := s.seedUser("ada@example.com", domain.RoleCustomer)
	admin := s.seedUser("admin@example.com", domain.RoleStandardAdmin)
	productID := s.seedProduct("Pixel 9", "10.00", 5)

	order, err := s.place(customer.UserID, domain.LineRequest{ProductID: productID, Quantity: 1})
	s.Require().NoError(err)

	for _, next := range []domain.OrderStatus{domain.StatusProcessing, domain.StatusShipped, domain.StatusDelivered} {
		_, err := s.OrderService.UpdateStatus(s.Ctx, admin, order.ID, next)
		s.Require().NoError(err)
	}

	_, err = s.OrderService.UpdateStatus(s.Ctx, admin, order.ID, domain.StatusProcessing)
	s.ErrorIs(err, domain.ErrInvalidStatusTransition)

	stored, err := s.Orders.GetByID(s.Ctx, order.ID)
	s.Require().NoError(err)
	s.Equal(domain.StatusDelivered, stored.Status)
	s.Equal(3, s.countActivity(domain.ActionOrderStatusChanged))
}

func (s *IntegrationTestSuite) TestUpdateStatus_SameStatusIsNoop() {
	customer := s.seedUser("ada@example.com", domain.RoleCustomer)
	admin := s.seedUser("admin@example.com", domain.RoleStandardAdmin)
	productID := s.seedProduct("Pixel 9", "10.00", 5)

	order, err := s.place(customer.UserID, domain.LineRequest{ProductID: productID, Quantity: 1})
	s.Require().NoError(err)

	got, err := s.OrderService.UpdateStatus(s.Ctx, admin, order.ID, domain.StatusPending)
	s.Require().NoError(err)
	s.Equal(domain.StatusPending, got.Status)
	s.Equal(0, s.countActivity(domain.ActionOrderStatusChanged))
}

func (s *IntegrationTestSuite) TestUpdateStatus_CancelRestocks() {
	customer := s.seedUser("ada@example.com", domain.RoleCustomer)
	admin := s.seedUser("admin@example.com", domain.RoleStandardAdmin)
	productID := s.seedProduct("Pixel 9", "10.00", 5)

	order, err := s.place(customer.UserID, domain.LineRequest{ProductID: productID, Quantity: 3})
	s.Require().NoError(err)
	s.EqualValues(2, s.stockOf(productID))

	got, err := s.OrderService.UpdateStatus(s.Ctx, admin, order.ID, domain.StatusCancelled)
	s.Require().NoError(err)
	s.Equal(domain.StatusCancelled, got.Status)
	s.EqualValues(5, s.stockOf(productID))

	var payload []byte
	err = s.DbPool.QueryRow(s.Ctx, `
		SELECT payload FROM outbox WHERE event_type = $1 AND aggregate_id = $2
	`, sharedDomain.EventOrderStatusChanged, fmt.Sprint(order.ID)).Scan(&payload)
	s.Require().NoError(err)

	var env sharedDomain.Envelope[sharedDomain.OrderStatusChangedEvent]
	s.Require().NoError(json.Unmarshal(payload, &env))
	event := env.Payload
	s.Equal("pending", event.From)
	s.Equal("cancelled", event.To)
	s.Equal(admin.UserID, event.ActorID)
	s.Equal("ada@example.com", event.Email)

	_, err = s.OrderService.UpdateStatus(s.Ctx, admin, order.ID, domain.StatusProcessing)
	s.ErrorIs(err, domain.ErrInvalidStatusTransition)
	s.EqualValues(5, s.stockOf(productID))
}

func (s *IntegrationTestSuite) TestUpdateStatus_CancelSkipsDeletedProducts() {
	customer := s.seedUser("ada@example.com", domain.RoleCustomer)
	admin := s.seedUser("admin@example.com", domain.RoleStandardAdmin)
	kept := s.seedProduct("Phone", "10.00", 5)
	gone := s.seedProduct("Tablet", "10.00", 5)

	order, err := s.place(customer.UserID,
		domain.LineRequest{ProductID: kept, Quantity: 1},
		domain.LineRequest{ProductID: gone, Quantity: 1},
	)
	s.Require().NoError(err)

	s.Require().NoError(s.Products.Delete(s.Ctx, gone))

	_, err = s.OrderService.UpdateStatus(s.Ctx, admin, order.ID, domain.StatusCancelled)
	s.Require().NoError(err)
	s.EqualValues(5, s.stockOf(kept))

	stored, err := s.Orders.GetByID(s.Ctx, order.ID)
	s.Require().NoError(err)
	s.Len(stored.Items, 2)
}

func (s *IntegrationTestSuite) TestUpdateStatus_CustomerForbidden() {
	customer := s.seedUser("ada@example.com", domain.RoleCustomer)
	productID := s.seedProduct("Pixel 9", "10.00", 5)

	order, err := s.place(customer.UserID, domain.LineRequest{ProductID: productID, Quantity: 1})
	s.Require().NoError(err)

	_, err = s.OrderService.UpdateStatus(s.Ctx, customer, order.ID, domain.StatusCancelled)
	s.ErrorIs(err, domain.ErrForbidden)
}

func (s *IntegrationTestSuite) TestUpdateStatus_UnknownOrder() {
	admin := s.seedUser("admin@example.com", domain.RoleStandardAdmin)

	_, err := s.OrderService.UpdateStatus(s.Ctx, admin, 999, domain.StatusProcessing)
	s.ErrorIs(err, domain.ErrOrderNotFound)
}

func (s *IntegrationTestSuite) TestGetOrder_Ownership() {
	owner := s.seedUser("ada@example.com", domain.RoleCustomer)
	other := s.seedUser("bob@example.com", domain.RoleCustomer)
	admin := s.seedUser("admin@example.com", domain.RoleStandardAdmin)
	productID := s.seedProduct("Pixel 9", "10.00", 5)

	order, err := s.place(owner.UserID, domain.LineRequest{ProductID: productID, Quantity: 1})
	s.Require().NoError(err)

	_, err = s.OrderService.GetOrder(s.Ctx, owner, order.ID)
	s.NoError(err)

	_, err = s.OrderService.GetOrder(s.Ctx, other, order.ID)
	s.ErrorIs(err, domain.ErrForbidden)

	got, err := s.OrderService.GetOrder(s.Ctx, admin, order.ID)
	s.Require().NoError(err)
	s.Len(got.Items, 1)
}

func (s *IntegrationTestSuite) TestListOrders() {
	ada := s.seedUser("ada@example.com", domain.RoleCustomer)
	bob := s.seedUser("bob@example.com", domain.RoleCustomer)
	admin := s.seedUser("admin@example.com", domain.RoleStandardAdmin)
	productID := s.seedProduct("Pixel 9", "10.00", 10)

	first, err := s.place(ada.UserID, domain.LineRequest{ProductID: productID, Quantity: 1})
	s.Require().NoError(err)
	_, err = s.place(ada.UserID, domain.LineRequest{ProductID: productID, Quantity: 1})
	s.Require().NoError(err)
	_, err = s.place(bob.UserID, domain.LineRequest{ProductID: productID, Quantity: 1})
	s.Require().NoError(err)

	mine, err := s.OrderService.ListMine(s.Ctx, ada.UserID)
	s.Require().NoError(err)
	s.Len(mine, 2)
	for _, o := range mine {
		s.Len(o.Items, 1)
	}

	_, err = s.OrderService.UpdateStatus(s.Ctx, admin, first.ID, domain.StatusProcessing)
	s.Require().NoError(err)

	all, total, err := s.OrderService.ListAll(s.Ctx, domain.OrderFilter{Limit: 10})
	s.Require().NoError(err)
	s.EqualValues(3, total)
	s.Len(all, 3)

	status := domain.StatusProcessing
	processing, total, err := s.OrderService.ListAll(s.Ctx, domain.OrderFilter{Status: &status, Limit: 10})
	s.Require().NoError(err)
	s.EqualValues(1, total)
	s.Require().Len(processing, 1)
	s.Equal(first.ID, processing[0].ID)
}
