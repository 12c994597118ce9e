package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ivanberrios/storefront-backend/api/controllers"
	webhookcontrollers "github.com/ivanberrios/storefront-backend/api/controllers/webhooks"
	"github.com/ivanberrios/storefront-backend/api/middleware"
	"github.com/ivanberrios/storefront-backend/internal/capture"
	cartsvc "github.com/ivanberrios/storefront-backend/internal/cart"
	checkoutsvc "github.com/ivanberrios/storefront-backend/internal/checkout"
	"github.com/ivanberrios/storefront-backend/internal/notifications"
	"github.com/ivanberrios/storefront-backend/internal/orders"
	"github.com/ivanberrios/storefront-backend/internal/products"
	"github.com/ivanberrios/storefront-backend/internal/transitions"
	"github.com/ivanberrios/storefront-backend/pkg/config"
	"github.com/ivanberrios/storefront-backend/pkg/logger"
	"github.com/ivanberrios/storefront-backend/pkg/redis"
)

// Deps carries everything the HTTP surface needs. cmd/api builds one after
// bootstrapping the clients and services.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	Registry *prometheus.Registry

	DBPinger    controllers.DependencyPinger
	RedisClient *redis.Client

	Catalog       products.Repository
	Cart          cartsvc.Service
	Checkout      checkoutsvc.Service
	WebhookGuard  *checkoutsvc.IdempotencyGuard
	Capture       capture.Service
	Transitions   transitions.Service
	Orders        orders.Repository
	Notifications notifications.Service
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	checkoutPolicy := middleware.NewRateLimitPolicy(
		"checkout",
		cfg.RateLimit.CheckoutWindow,
		cfg.RateLimit.CheckoutIPLimit,
		cfg.RateLimit.CheckoutEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.DependencyPinger{
			"postgres": deps.DBPinger,
			"redis":    pingerOrNil(deps.RedisClient),
		}))
	})

	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/square", webhookcontrollers.SquareWebhook(deps.Checkout, cfg, deps.WebhookGuard, logg))
	})

	// Storefront surface: anonymous, session scoped by the X-Cart-Session header.
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ListProducts(deps.Catalog, logg))
			r.Get("/{productId}", controllers.GetProduct(deps.Catalog, logg))
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.GetCart(deps.Cart, logg))
			r.With(middleware.Idempotency(idemStore(deps.RedisClient), logg)).Put("/", controllers.SetCartItem(deps.Cart, logg))
		})

		r.With(
			middleware.RateLimit(checkoutPolicy, rateStore(deps.RedisClient), logg),
			middleware.Idempotency(idemStore(deps.RedisClient), logg),
		).Post("/checkout/session", controllers.CreateCheckoutSession(deps.Checkout, logg))
	})

	// Back office surface: staff bearer tokens only.
	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(idemStore(deps.RedisClient), logg))
		r.Get("/ping", controllers.AdminPing())

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.AdminListOrders(deps.Orders, logg))
			r.Get("/stats", controllers.AdminOrderStats(deps.Orders, logg))
			r.Get("/{orderId}", controllers.AdminGetOrder(deps.Orders, logg))
			r.Post("/{orderId}/capture", controllers.AdminCaptureOrder(deps.Capture, logg))
			r.Post("/{orderId}/cancel", controllers.AdminCancelOrder(deps.Transitions, logg))
			r.Post("/{orderId}/refund", controllers.AdminRefundOrder(deps.Transitions, logg))
			r.Patch("/{orderId}/status", controllers.AdminUpdateOrderStatus(deps.Transitions, logg))
			r.Post("/{orderId}/tracking", controllers.AdminAttachTracking(deps.Transitions, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(deps.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(deps.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(deps.Notifications, logg))
		})
	})

	return r
}

func pingerOrNil(client *redis.Client) controllers.DependencyPinger {
	if client == nil {
		return nil
	}
	return client
}

func idemStore(client *redis.Client) redis.IdempotencyStore {
	if client == nil {
		return nil
	}
	return client
}

func rateStore(client *redis.Client) middleware.RateLimiterStore {
	if client == nil {
		return nil
	}
	return client
}
