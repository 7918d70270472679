package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/brandkart/brandkart-backend/api/controllers"
	webhookcontrollers "github.com/brandkart/brandkart-backend/api/controllers/webhooks"
	"github.com/brandkart/brandkart-backend/api/middleware"
	ordersvc "github.com/brandkart/brandkart-backend/internal/orders"
	refundsvc "github.com/brandkart/brandkart-backend/internal/refunds"
	pkgauth "github.com/brandkart/brandkart-backend/pkg/auth"
	"github.com/brandkart/brandkart-backend/pkg/config"
	"github.com/brandkart/brandkart-backend/pkg/db"
	"github.com/brandkart/brandkart-backend/pkg/logger"
	"github.com/brandkart/brandkart-backend/pkg/metrics"
	"github.com/brandkart/brandkart-backend/pkg/redis"
)

// RouterParams carry everything the HTTP surface depends on.
type RouterParams struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          db.Pinger
	Redis       *redis.Client
	Orders      *ordersvc.Service
	Refunds     *refundsvc.Service
	Webhooks    webhookcontrollers.CashfreeWebhookService
	HTTPMetrics *metrics.HTTPMetrics
}

func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(params.HTTPMetrics),
	)

	// A typed nil *redis.Client must not reach the readiness probe as a
	// non-nil interface.
	var cache redis.Pinger
	var idemStore redis.IdempotencyStore
	if params.Redis != nil {
		cache = params.Redis
		idemStore = params.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, params.DB, cache, logg))
	})

	r.Handle("/metrics", promhttp.Handler())

	// Gateway callbacks authenticate with the webhook signature, not a JWT.
	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/cashfree", webhookcontrollers.CashfreeWebhook(params.Webhooks, cfg.Cashfree.WebhookSecret, logg))
	})

	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(idemStore, logg))
		r.Post("/", controllers.CreateOrder(params.Orders, logg))
		r.Get("/", controllers.ListOrders(params.Orders, logg))
		r.Get("/{orderId}", controllers.GetOrder(params.Orders, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(pkgauth.RoleAdmin, logg))
		r.Use(middleware.Idempotency(idemStore, logg))
		r.Post("/refunds", controllers.InitiateRefund(params.Refunds, logg))
		r.Get("/refunds/{orderId}/{refundId}", controllers.GetRefundStatus(params.Refunds, logg))
		r.Post("/orders/{orderId}/deliver", controllers.MarkOrderDelivered(params.Orders, logg))
	})

	return r
}
