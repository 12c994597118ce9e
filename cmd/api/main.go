package main

import (
	"context"
	"net/http"
	"os"

	"github.com/ivanberrios/storefront-backend/api/routes"
	"github.com/ivanberrios/storefront-backend/internal/capture"
	"github.com/ivanberrios/storefront-backend/internal/cart"
	"github.com/ivanberrios/storefront-backend/internal/checkout"
	"github.com/ivanberrios/storefront-backend/internal/inventory"
	"github.com/ivanberrios/storefront-backend/internal/notifications"
	"github.com/ivanberrios/storefront-backend/internal/orders"
	"github.com/ivanberrios/storefront-backend/internal/products"
	"github.com/ivanberrios/storefront-backend/internal/transitions"
	"github.com/ivanberrios/storefront-backend/pkg/config"
	"github.com/ivanberrios/storefront-backend/pkg/db"
	"github.com/ivanberrios/storefront-backend/pkg/logger"
	"github.com/ivanberrios/storefront-backend/pkg/metrics"
	"github.com/ivanberrios/storefront-backend/pkg/migrate"
	"github.com/ivanberrios/storefront-backend/pkg/outbox"
	"github.com/ivanberrios/storefront-backend/pkg/redis"
	"github.com/ivanberrios/storefront-backend/pkg/square"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	squareClient, err := square.NewClient(context.Background(), cfg.Square, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create square client", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	flowMetrics := metrics.NewOrderFlowMetrics(registry)

	orderRepo := orders.NewRepository(dbClient.DB())
	catalogRepo := products.NewRepository(dbClient.DB())
	cartRepo := cart.NewRepository(dbClient.DB())
	eventRepo := checkout.NewRepository(dbClient.DB())
	stockRepo := inventory.NewRepository(dbClient.DB())
	notificationRepo := notifications.NewRepository(dbClient.DB())

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	stockService, err := inventory.NewService(stockRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory service", err)
		os.Exit(1)
	}

	cartService, err := cart.NewService(cartRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		TransactionRunner: dbClient,
		CartRepo:          cartRepo,
		Carts:             cartService,
		OrderRepo:         orderRepo,
		Catalog:           catalogRepo,
		Stock:             stockService,
		Events:            eventRepo,
		Provider:          squareClient,
		Outbox:            outboxService,
		Config:            cfg.Checkout,
		Flow:              flowMetrics,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	webhookGuard, err := checkout.NewIdempotencyGuard(redisClient, cfg.Eventing.WebhookIdempotencyTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
		os.Exit(1)
	}

	captureService, err := capture.NewService(capture.ServiceParams{
		TransactionRunner: dbClient,
		OrderRepo:         orderRepo,
		Stock:             stockService,
		Provider:          squareClient,
		Outbox:            outboxService,
		Flow:              flowMetrics,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create capture service", err)
		os.Exit(1)
	}

	transitionService, err := transitions.NewService(transitions.ServiceParams{
		TransactionRunner: dbClient,
		OrderRepo:         orderRepo,
		Stock:             stockService,
		Provider:          squareClient,
		Outbox:            outboxService,
		Flow:              flowMetrics,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create transition service", err)
		os.Exit(1)
	}

	notificationService, err := notifications.NewService(notificationRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create notification service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:        cfg,
			Logger:        logg,
			Registry:      registry,
			DBPinger:      dbClient,
			RedisClient:   redisClient,
			Catalog:       catalogRepo,
			Cart:          cartService,
			Checkout:      checkoutService,
			WebhookGuard:  webhookGuard,
			Capture:       captureService,
			Transitions:   transitionService,
			Orders:        orderRepo,
			Notifications: notificationService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
