package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sakashimaa/electro-shop/internal/idempotency"
	"github.com/sakashimaa/electro-shop/internal/metrics"
	"github.com/sakashimaa/electro-shop/internal/notification"
	"github.com/sakashimaa/electro-shop/internal/repository"
	"github.com/sakashimaa/electro-shop/internal/service"
	"github.com/sakashimaa/electro-shop/internal/token"
	transport "github.com/sakashimaa/electro-shop/internal/transport/http"
	"github.com/sakashimaa/electro-shop/internal/transport/http/handler"
	"github.com/sakashimaa/electro-shop/internal/transport/http/middleware"
	"github.com/sakashimaa/electro-shop/internal/transport/http/response"
	"github.com/sakashimaa/electro-shop/pkg/config"
	"github.com/sakashimaa/electro-shop/pkg/db"
	"github.com/sakashimaa/electro-shop/pkg/kafka"
	"github.com/sakashimaa/electro-shop/pkg/mylogger"
	outboxRepository "github.com/sakashimaa/electro-shop/pkg/outbox/repository"
	"github.com/sakashimaa/electro-shop/pkg/outbox/worker"
	"github.com/sakashimaa/electro-shop/pkg/utils"
	passwordValidator "github.com/sakashimaa/electro-shop/pkg/validator"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	googleGrpc "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	migrateOnly := flag.Bool("migrate", false, "apply migrations and exit")
	migrationsDir := flag.String("migrations", "./migrations", "migrations directory")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf(".env not found: %v\n", err)
	}

	cfg := config.MustLoad()

	if err := db.MigrateUp(cfg.Postgres.URL, *migrationsDir); err != nil {
		log.Fatalf("failed to apply migrations: %v", err)
	}
	if *migrateOnly {
		log.Println("Migrations applied")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := config.NewLogger(config.LoggerConfig{Level: cfg.LogLevel, Env: cfg.Env, Service: "storefront"})
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	tp, err := utils.InitTracer(ctx, "storefront", cfg.Tracing, cfg.Env)
	if err != nil {
		log.Fatalf("failed to init tracer: %v", err)
	}

	pool, err := db.NewPostgresDB(ctx, cfg.Postgres)
	if err != nil {
		log.Fatalf("failed to create pool: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	kafkaProducer, err := kafka.NewProducer(cfg.Kafka.Brokers, logger)
	if err != nil {
		log.Fatalf("error creating kafka producer: %v", err)
	}

	tokens, err := token.NewManager(cfg.JWT)
	if err != nil {
		log.Fatalf("failed to create token manager: %v", err)
	}

	reg := metrics.NewRegistry()
	appMetrics := metrics.New(reg)

	validate := utils.NewValidator()
	passwords := passwordValidator.NewValidator()

	userRepo := repository.NewUserRepository(pool, logger)
	productRepo := repository.NewProductRepository(pool, logger)
	orderRepo := repository.NewOrderRepository(pool, logger)
	reviewRepo := repository.NewReviewRepository(pool, logger)
	wishlistRepo := repository.NewWishlistRepository(pool, logger)
	activityRepo := repository.NewActivityRepository(pool, logger)
	reportRepo := repository.NewReportRepository(pool)
	outboxRepo := outboxRepository.NewOutboxRepository()

	activityService := service.NewActivityService(activityRepo, logger)
	productService := service.NewCachedProductService(
		service.NewProductService(productRepo, activityService, validate, logger),
		rdb,
		cfg.Cache.ProductTTL,
		logger,
	)
	authService := service.NewAuthService(pool, userRepo, outboxRepo, tokens, validate, passwords, logger)
	orderService := service.NewOrderService(service.OrderDeps{
		Pool:      pool,
		Orders:    orderRepo,
		Inventory: repository.NewInventoryRepository(),
		Users:     userRepo,
		Outbox:    outboxRepo,
		Activity:  activityService,
		Cache:     productService,
		Metrics:   appMetrics,
		Validator: validate,
		Logger:    logger,
		Timeouts:  cfg.Workflow,
	})
	reviewService := service.NewReviewService(pool, reviewRepo, userRepo, productService, validate, logger)
	wishlistService := service.NewWishlistService(wishlistRepo, logger)
	adminService := service.NewAdminService(pool, userRepo, reportRepo, activityService, validate, passwords, logger)

	if err := authService.SeedMainAdmin(ctx, cfg.Admin); err != nil {
		log.Fatalf("failed to seed main admin: %v", err)
	}

	outboxProcessor := worker.NewOutboxProcessor(
		pool,
		outboxRepo,
		kafkaProducer,
		logger,
		worker.WithBatchSize(cfg.Outbox.BatchSize),
		worker.WithInterval(cfg.Outbox.Interval),
	)
	go outboxProcessor.Start(ctx)

	notifications := notification.NewService(
		notification.NewSender(cfg.SMTP, logger),
		notification.PostgresDeduplicator(pool, logger),
		logger,
	)
	go func() {
		if err := notifications.Start(ctx, cfg.Kafka.Brokers, cfg.Kafka.GroupID); err != nil && !errors.Is(err, context.Canceled) {
			mylogger.Error(ctx, logger, "Notification consumer stopped", zap.Error(err))
		}
	}()

	grpc_prometheus.EnableHandlingTimeHistogram()
	reg.MustRegister(grpc_prometheus.DefaultServerMetrics)

	lis, err := net.Listen("tcp", cfg.GRPC.Port)
	if err != nil {
		log.Fatalf("error listening on tcp: %v", err)
	}

	s := googleGrpc.NewServer(
		googleGrpc.StatsHandler(otelgrpc.NewServerHandler()),
		googleGrpc.StreamInterceptor(grpc_prometheus.StreamServerInterceptor),
		googleGrpc.UnaryInterceptor(grpc_prometheus.UnaryServerInterceptor),
	)
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(s, healthServer)
	healthServer.SetServingStatus("storefront", healthpb.HealthCheckResponse_SERVING)
	grpc_prometheus.Register(s)

	go func() {
		log.Println("gRPC health server listening on " + cfg.GRPC.Port)
		if err := s.Serve(lis); err != nil {
			log.Printf("Error serving gRPC: %v", err)
		}
	}()

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		BodyLimit:             cfg.HTTP.BodyLimit,
		ReadTimeout:           cfg.HTTP.Timeout,
		WriteTimeout:          cfg.HTTP.Timeout,
		ErrorHandler:          response.FiberErrorHandler(logger),
	})

	app.Use(recover.New())
	app.Use(otelfiber.Middleware())
	app.Use(limiter.New(limiter.Config{
		Max:        cfg.Limiter.Max,
		Expiration: cfg.Limiter.Expiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/health" || c.Path() == "/metrics"
		},
		LimitReached: func(c *fiber.Ctx) error {
			return response.Error(c, fiber.StatusTooManyRequests, response.CodeTooManyRequests,
				"Too many requests. Try again later.", nil)
		},
	}))

	transport.RegisterRoutes(app, transport.Router{
		Handlers: &transport.Handlers{
			Auth:     handler.NewAuthHandler(authService, logger),
			Product:  handler.NewProductHandler(productService, reviewService, logger),
			Order:    handler.NewOrderHandler(orderService, logger),
			Wishlist: handler.NewWishlistHandler(wishlistService, logger),
			Admin:    handler.NewAdminHandler(adminService, logger),
		},
		Auth:        middleware.NewAuthMiddleware(tokens),
		Idempotency: middleware.NewIdempotencyMiddleware(idempotency.NewStore(rdb, cfg.Idempotency.TTL), logger),
		Gatherer:    reg,
		Checks: map[string]transport.Pinger{
			"postgres": pool.Ping,
			"redis": func(ctx context.Context) error {
				return rdb.Ping(ctx).Err()
			},
		},
	})

	go func() {
		log.Println("HTTP Server listening on port: " + cfg.HTTP.Port)
		if err := app.Listen(cfg.HTTP.Port); err != nil {
			log.Printf("Error listening on HTTP: %v", err)
		}
	}()

	mylogger.Info(ctx, logger, "Storefront started")

	<-ctx.Done()

	log.Println("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	healthServer.Shutdown()
	s.GracefulStop()
	log.Println("gRPC server stopped")

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error shutting down HTTP: %v\n", err)
	} else {
		log.Println("HTTP Server stopped")
	}

	if err := kafkaProducer.Close(); err != nil {
		log.Printf("Kafka close error: %v", err)
	}

	if err := rdb.Close(); err != nil {
		log.Printf("Redis close error: %v", err)
	}

	pool.Close()
	log.Println("Postgres pool closed")

	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error closing telemetry: %v\n", err)
	} else {
		log.Println("Telemetry closed")
	}
}
