package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sakashimaa/electro-shop/internal/authz"
	"github.com/sakashimaa/electro-shop/internal/transport/http/handler"
	"github.com/sakashimaa/electro-shop/internal/transport/http/middleware"
)

type Handlers struct {
	Auth     *handler.AuthHandler
	Product  *handler.ProductHandler
	Order    *handler.OrderHandler
	Wishlist *handler.WishlistHandler
	Admin    *handler.AdminHandler
}

// Pinger is a dependency /health checks.
type Pinger func(ctx context.Context) error

type Router struct {
	Handlers    *Handlers
	Auth        fiber.Handler
	Idempotency fiber.Handler
	Gatherer    prometheus.Gatherer
	Checks      map[string]Pinger
}

func RegisterRoutes(app *fiber.App, r Router) {
	app.Get("/health", health(r.Checks))
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(r.Gatherer, promhttp.HandlerOpts{})))

	h := r.Handlers
	requireAuth := r.Auth
	can := middleware.Require

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/register", h.Auth.Register)
	auth.Post("/login", h.Auth.Login)
	auth.Post("/admin/login", h.Auth.AdminLogin)
	auth.Post("/refresh", h.Auth.Refresh)
	auth.Post("/logout", h.Auth.Logout)
	auth.Get("/me", requireAuth, h.Auth.Me)

	product := api.Group("/products")
	product.Get("", h.Product.List)
	product.Get("/featured", h.Product.Featured)
	product.Get("/:id", h.Product.FindByID)
	product.Post("", requireAuth, can(authz.ProductsWrite), h.Product.Create)
	product.Patch("/:id", requireAuth, can(authz.ProductsWrite), h.Product.Update)
	product.Delete("/:id", requireAuth, can(authz.ProductsWrite), h.Product.Delete)
	product.Get("/:id/reviews", h.Product.ListReviews)
	product.Post("/:id/reviews", requireAuth, can(authz.ReviewsWrite), h.Product.CreateReview)

	order := api.Group("/orders", requireAuth)
	order.Post("", can(authz.OrdersPlace), r.Idempotency, h.Order.Create)
	order.Get("", can(authz.OrdersReadOwn), h.Order.ListMine)
	// ownership is checked by the service
	order.Get("/:id", h.Order.Get)

	wishlist := api.Group("/wishlist", requireAuth, can(authz.WishlistManage))
	wishlist.Get("", h.Wishlist.List)
	wishlist.Post("/:productId", h.Wishlist.Add)
	wishlist.Delete("/:productId", h.Wishlist.Remove)

	admin := api.Group("/admin", requireAuth)
	admin.Get("/orders", can(authz.OrdersReadAll), h.Order.ListAll)
	admin.Patch("/orders/:id/status", can(authz.OrdersUpdateStatus), h.Order.UpdateStatus)
	admin.Post("/standard-admins", can(authz.AdminsCreate), h.Admin.CreateStandardAdmin)
	admin.Get("/users", can(authz.UsersManage), h.Admin.ListUsers)
	admin.Delete("/users/:id", can(authz.UsersManage), h.Admin.DeleteUser)
	admin.Patch("/users/:id/role", can(authz.UsersManage), h.Admin.ChangeRole)
	admin.Get("/reports/revenue", can(authz.ReportsRead), h.Admin.Revenue)
	admin.Get("/reports/top-products", can(authz.ReportsRead), h.Admin.TopProducts)
	admin.Get("/reports/products/download", can(authz.ReportsRead), h.Product.Download)
	admin.Get("/activity", can(authz.ActivityRead), h.Admin.Activity)
}

func health(checks map[string]Pinger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		status := fiber.StatusOK
		result := make(fiber.Map, len(checks))
		for name, ping := range checks {
			if err := ping(ctx); err != nil {
				status = fiber.StatusServiceUnavailable
				result[name] = err.Error()
				continue
			}
			result[name] = "ok"
		}

		return c.Status(status).JSON(result)
	}
}
