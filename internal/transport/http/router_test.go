package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sakashimaa/electro-shop/internal/authz"
	"github.com/sakashimaa/electro-shop/internal/domain"
	"github.com/sakashimaa/electro-shop/internal/metrics"
	"github.com/sakashimaa/electro-shop/internal/token"
	"github.com/sakashimaa/electro-shop/internal/transport/http/handler"
	"github.com/sakashimaa/electro-shop/internal/transport/http/middleware"
	"github.com/sakashimaa/electro-shop/internal/transport/http/response"
	"github.com/sakashimaa/electro-shop/pkg/config"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeOrders struct {
	placeErr  error
	updateErr error
	lastReq   *domain.PlaceOrderRequest
	lastNext  domain.OrderStatus
}

func (f *fakeOrders) PlaceOrder(_ context.Context, userID int64, req *domain.PlaceOrderRequest) (*domain.Order, error) {
	f.lastReq = req
	if f.placeErr != nil {
		return nil, f.placeErr
	}
	return &domain.Order{ID: 1, UserID: userID, Total: decimal.RequireFromString("3000.00"), Status: domain.StatusPending}, nil
}

func (f *fakeOrders) UpdateStatus(_ context.Context, _ authz.Principal, orderID int64, next domain.OrderStatus) (*domain.Order, error) {
	f.lastNext = next
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return &domain.Order{ID: orderID, Status: next}, nil
}

func (f *fakeOrders) GetOrder(_ context.Context, actor authz.Principal, orderID int64) (*domain.Order, error) {
	if !actor.CanReadOrder(1) {
		return nil, domain.ErrForbidden
	}
	return &domain.Order{ID: orderID, UserID: 1}, nil
}

func (f *fakeOrders) ListMine(context.Context, int64) ([]domain.Order, error) {
	return []domain.Order{}, nil
}

func (f *fakeOrders) ListAll(context.Context, domain.OrderFilter) ([]domain.Order, int64, error) {
	return []domain.Order{}, 0, nil
}

type fakeProducts struct{}

func (fakeProducts) Get(_ context.Context, id int64) (*domain.Product, error) {
	if id != 1 {
		return nil, domain.ErrProductNotFound
	}
	return &domain.Product{ID: 1, Name: "Pixel 9"}, nil
}

func (fakeProducts) List(context.Context, domain.ProductFilter) ([]domain.Product, int64, error) {
	return []domain.Product{{ID: 1}}, 1, nil
}

func (fakeProducts) Featured(context.Context, int64) ([]domain.Product, error) {
	return nil, nil
}

func (fakeProducts) Create(_ context.Context, _ authz.Principal, in *domain.CreateProductInput) (*domain.Product, error) {
	return &domain.Product{ID: 2, Name: in.Name}, nil
}

func (fakeProducts) Update(context.Context, authz.Principal, int64, *domain.UpdateProductInput) (*domain.Product, error) {
	return &domain.Product{ID: 1}, nil
}

func (fakeProducts) Delete(context.Context, authz.Principal, int64) error {
	return nil
}

func (fakeProducts) Export(context.Context, authz.Principal) ([]domain.Product, error) {
	return []domain.Product{{ID: 1}}, nil
}

type testServer struct {
	app    *fiber.App
	tokens *token.Manager
	orders *fakeOrders
	logs   *observer.ObservedLogs
}

func newTestServer(t *testing.T, checks map[string]Pinger) *testServer {
	t.Helper()

	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)
	tokens, err := token.NewManager(config.JWT{
		AccessSecret:  "access",
		RefreshSecret: "refresh",
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
	})
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	metrics.New(reg)

	orders := &fakeOrders{}
	app := fiber.New(fiber.Config{ErrorHandler: response.FiberErrorHandler(logger)})
	RegisterRoutes(app, Router{
		Handlers: &Handlers{
			Auth:     handler.NewAuthHandler(nil, logger),
			Product:  handler.NewProductHandler(fakeProducts{}, nil, logger),
			Order:    handler.NewOrderHandler(orders, logger),
			Wishlist: handler.NewWishlistHandler(nil, logger),
			Admin:    handler.NewAdminHandler(nil, logger),
		},
		Auth:        middleware.NewAuthMiddleware(tokens),
		Idempotency: func(c *fiber.Ctx) error { return c.Next() },
		Gatherer:    reg,
		Checks:      checks,
	})

	return &testServer{app: app, tokens: tokens, orders: orders, logs: logs}
}

func (ts *testServer) do(t *testing.T, method, path string, role domain.Role, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if role != "" {
		pair, err := ts.tokens.Generate(1, role)
		require.NoError(t, err)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+pair.AccessToken)
	}

	resp, err := ts.app.Test(req)
	require.NoError(t, err)
	return resp
}

func decodeError(t *testing.T, resp *http.Response) response.ErrorBody {
	t.Helper()

	var body response.ErrorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

var cart = fiber.Map{
	"items":           []fiber.Map{{"productId": 1, "quantity": 3}},
	"customerName":    "Ada",
	"deliveryAddress": "1 Engine Way",
	"contactNumber":   "123",
}

func TestPlaceOrder_StatusCodes(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantErr  string
	}{
		{"created", nil, fiber.StatusCreated, ""},
		{"unknown product", &domain.ProductNotFoundError{IDs: []int64{99}}, fiber.StatusBadRequest, response.CodeProductNotFound},
		{"insufficient stock", &domain.InsufficientStockError{ProductID: 1, Requested: 10, Available: 5}, fiber.StatusConflict, response.CodeInsufficientStock},
		{"stock conflict", domain.ErrStockConflict, fiber.StatusConflict, response.CodeStockConflict},
		{"timeout", domain.ErrWorkflowTimeout, fiber.StatusServiceUnavailable, response.CodeWorkflowTimeout},
		{"persistence", domain.ErrPersistence, fiber.StatusInternalServerError, response.CodePersistence},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, nil)
			ts.orders.placeErr = tt.err

			resp := ts.do(t, fiber.MethodPost, "/api/orders", domain.RoleCustomer, cart)
			assert.Equal(t, tt.wantCode, resp.StatusCode)

			if tt.wantErr != "" {
				assert.Equal(t, tt.wantErr, decodeError(t, resp).Code)
			} else {
				require.NotNil(t, ts.orders.lastReq)
				assert.Equal(t, int32(3), ts.orders.lastReq.Items[0].Quantity)
			}
		})
	}
}

func TestPlaceOrder_SuccessIsLoggedByServiceOnly(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := ts.do(t, fiber.MethodPost, "/api/orders", domain.RoleCustomer, cart)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	assert.Zero(t, ts.logs.Len(), "unexpected transport logs: %v", ts.logs.All())
}

func TestPlaceOrder_RequiresAuthentication(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := ts.do(t, fiber.MethodPost, "/api/orders", "", cart)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestPlaceOrder_MalformedBody(t *testing.T) {
	ts := newTestServer(t, nil)
	pair, err := ts.tokens.Generate(1, domain.RoleCustomer)
	require.NoError(t, err)

	req := httptest.NewRequest(fiber.MethodPost, "/api/orders", strings.NewReader("{"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+pair.AccessToken)

	resp, err := ts.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestUpdateStatus(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := ts.do(t, fiber.MethodPatch, "/api/admin/orders/5/status", domain.RoleCustomer, fiber.Map{"status": "shipped"})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = ts.do(t, fiber.MethodPatch, "/api/admin/orders/5/status", domain.RoleStandardAdmin, fiber.Map{"status": "teleported"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = ts.do(t, fiber.MethodPatch, "/api/admin/orders/5/status", domain.RoleStandardAdmin, fiber.Map{"status": "shipped"})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, domain.StatusShipped, ts.orders.lastNext)

	ts.orders.updateErr = domain.ErrInvalidStatusTransition
	resp = ts.do(t, fiber.MethodPatch, "/api/admin/orders/5/status", domain.RoleStandardAdmin, fiber.Map{"status": "processing"})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Equal(t, response.CodeInvalidTransition, decodeError(t, resp).Code)
}

func TestRoutes_Capabilities(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		method string
		path   string
		role   domain.Role
		body   any
		want   int
	}{
		{fiber.MethodGet, "/api/products", "", nil, fiber.StatusOK},
		{fiber.MethodGet, "/api/products/1", "", nil, fiber.StatusOK},
		{fiber.MethodGet, "/api/products/2", "", nil, fiber.StatusNotFound},
		{fiber.MethodGet, "/api/products/abc", "", nil, fiber.StatusBadRequest},
		{fiber.MethodPost, "/api/products", domain.RoleCustomer, fiber.Map{"name": "x"}, fiber.StatusForbidden},
		{fiber.MethodPost, "/api/products", domain.RoleStandardAdmin, fiber.Map{"name": "x"}, fiber.StatusCreated},
		{fiber.MethodDelete, "/api/products/1", domain.RoleStandardAdmin, nil, fiber.StatusNoContent},
		{fiber.MethodGet, "/api/orders/1", domain.RoleCustomer, nil, fiber.StatusOK},
		{fiber.MethodGet, "/api/admin/orders", domain.RoleCustomer, nil, fiber.StatusForbidden},
		{fiber.MethodGet, "/api/admin/orders?status=bogus", domain.RoleStandardAdmin, nil, fiber.StatusBadRequest},
		{fiber.MethodGet, "/api/admin/orders?status=pending", domain.RoleStandardAdmin, nil, fiber.StatusOK},
		{fiber.MethodGet, "/api/admin/users", domain.RoleStandardAdmin, nil, fiber.StatusForbidden},
		{fiber.MethodPost, "/api/admin/standard-admins", domain.RoleStandardAdmin, fiber.Map{}, fiber.StatusForbidden},
		{fiber.MethodGet, "/api/admin/reports/revenue", domain.RoleStandardAdmin, nil, fiber.StatusForbidden},
		{fiber.MethodGet, "/api/admin/activity", domain.RoleStandardAdmin, nil, fiber.StatusForbidden},
		{fiber.MethodGet, "/api/wishlist", "", nil, fiber.StatusUnauthorized},
		{fiber.MethodGet, "/api/nowhere", "", nil, fiber.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			resp := ts.do(t, tt.method, tt.path, tt.role, tt.body)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestProductsDownload(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := ts.do(t, fiber.MethodGet, "/api/admin/reports/products/download", domain.RoleMainAdmin, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), "attachment; filename=\"products-")

	var products []domain.Product
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&products))
	assert.Len(t, products, 1)
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t, map[string]Pinger{
		"postgres": func(context.Context) error { return nil },
	})

	resp := ts.do(t, fiber.MethodGet, "/health", "", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = ts.do(t, fiber.MethodGet, "/metrics", "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "storefront_orders_placed_total")

	ts = newTestServer(t, map[string]Pinger{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})
	resp = ts.do(t, fiber.MethodGet, "/health", "", nil)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}
