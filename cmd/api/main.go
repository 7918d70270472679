package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/brandkart/brandkart-backend/api/routes"
	"github.com/brandkart/brandkart-backend/internal/catalog"
	"github.com/brandkart/brandkart-backend/internal/coupons"
	"github.com/brandkart/brandkart-backend/internal/inventory"
	"github.com/brandkart/brandkart-backend/internal/orders"
	"github.com/brandkart/brandkart-backend/internal/pricing"
	"github.com/brandkart/brandkart-backend/internal/refunds"
	cashfreewebhook "github.com/brandkart/brandkart-backend/internal/webhooks/cashfree"
	"github.com/brandkart/brandkart-backend/pkg/cashfree"
	"github.com/brandkart/brandkart-backend/pkg/config"
	"github.com/brandkart/brandkart-backend/pkg/db"
	"github.com/brandkart/brandkart-backend/pkg/logger"
	"github.com/brandkart/brandkart-backend/pkg/metrics"
	"github.com/brandkart/brandkart-backend/pkg/migrate"
	"github.com/brandkart/brandkart-backend/pkg/redis"
	"github.com/brandkart/brandkart-backend/pkg/shiprate"
)

const (
	webhookGuardTTL = 48 * time.Hour
	shutdownGrace   = 15 * time.Second
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

	dbClient, err := openDatabase(context.Background(), cfg, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, dbClient.DB(), logg); err != nil {
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

	gateway := cashfree.NewClient(cfg.Cashfree)
	rater := shiprate.NewClient(cfg.ShipRate, logg)

	inventorySvc, err := inventory.NewService(inventory.NewRepository(dbClient.DB()), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory service", err)
		os.Exit(1)
	}
	couponSvc, err := coupons.NewService(coupons.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create coupon service", err)
		os.Exit(1)
	}
	pricer, err := pricing.NewService(couponSvc, rater)
	if err != nil {
		logg.Error(context.Background(), "failed to create pricing service", err)
		os.Exit(1)
	}

	ordersRepo := orders.NewRepository(dbClient.DB())
	orderSvc, err := orders.NewService(orders.ServiceParams{
		DB:             dbClient,
		Repo:           ordersRepo,
		Catalog:        catalog.NewRepository(dbClient.DB()),
		Inventory:      inventorySvc,
		Pricer:         pricer,
		Coupons:        couponSvc,
		Gateway:        gateway,
		Logger:         logg,
		ReservationTTL: cfg.Reservation.TTL,
		WebhookURL:     cfg.Cashfree.NotifyURL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	refundSvc, err := refunds.NewService(refunds.ServiceParams{
		DB:      dbClient,
		Repo:    ordersRepo,
		Catalog: catalog.NewRepository(dbClient.DB()),
		Gateway: gateway,
		Logger:  logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create refund service", err)
		os.Exit(1)
	}

	webhookGuard, err := cashfreewebhook.NewIdempotencyGuard(redisClient, webhookGuardTTL, "cashfree")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
		os.Exit(1)
	}
	webhookSvc, err := cashfreewebhook.NewService(cashfreewebhook.ServiceParams{
		DB:     dbClient,
		Orders: orderSvc,
		Events: cashfreewebhook.NewEventRepository(dbClient.DB()),
		Guard:  webhookGuard,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	httpMetrics := metrics.NewHTTPMetrics(prometheus.DefaultRegisterer)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:      cfg,
			Logger:      logg,
			DB:          dbClient,
			Redis:       redisClient,
			Orders:      orderSvc,
			Refunds:     refundSvc,
			Webhooks:    webhookSvc,
			HTTPMetrics: httpMetrics,
		}),
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-shutdownCtx.Done():
		logg.Info(ctx, "shutdown signal received, draining requests")
		graceCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(graceCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
			os.Exit(1)
		}
	}

	logg.Info(ctx, "api server shut down")
}

// openDatabase picks the engine: postgres in every real deployment, sqlite
// when the local-dev feature flag asks for it.
func openDatabase(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*db.Client, error) {
	if cfg.FeatureFlags.UseSQLite {
		conn, err := gorm.Open(sqlite.Open("brandkart.db"), &gorm.Config{SkipDefaultTransaction: true})
		if err != nil {
			return nil, err
		}
		logg.Info(ctx, "using sqlite database")
		return db.NewWithConn(conn)
	}
	return db.New(ctx, cfg.DB, logg)
}
