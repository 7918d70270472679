package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/brandkart/brandkart-backend/internal/catalog"
	"github.com/brandkart/brandkart-backend/internal/coupons"
	"github.com/brandkart/brandkart-backend/internal/cron"
	"github.com/brandkart/brandkart-backend/internal/inventory"
	"github.com/brandkart/brandkart-backend/internal/orders"
	"github.com/brandkart/brandkart-backend/internal/pricing"
	"github.com/brandkart/brandkart-backend/pkg/cashfree"
	"github.com/brandkart/brandkart-backend/pkg/config"
	"github.com/brandkart/brandkart-backend/pkg/db"
	"github.com/brandkart/brandkart-backend/pkg/logger"
	"github.com/brandkart/brandkart-backend/pkg/metrics"
	"github.com/brandkart/brandkart-backend/pkg/migrate"
	"github.com/brandkart/brandkart-backend/pkg/redis"
	"github.com/brandkart/brandkart-backend/pkg/shiprate"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "sweeper"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "sweeper",
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
	pricer, err := pricing.NewService(couponSvc, shiprate.NewClient(cfg.ShipRate, logg))
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
		Gateway:        cashfree.NewClient(cfg.Cashfree),
		Logger:         logg,
		ReservationTTL: cfg.Reservation.TTL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	expiryJob, err := cron.NewReservationExpiryJob(cron.ReservationExpiryJobParams{
		Logger:    logg,
		DB:        dbClient,
		Orders:    ordersRepo,
		Lifecycle: orderSvc,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reservation expiry job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("sweeper"), cfg.Sweeper.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create sweeper lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(expiryJob),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Sweeper.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create sweeper service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env})
	logg.Info(ctx, "starting sweeper")

	go serveMetrics(ctx, cfg, logg)

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "sweeper stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "sweeper shutting down gracefully")
}

func serveMetrics(ctx context.Context, cfg *config.Config, logg *logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: ":" + cfg.App.Port, Handler: mux}
	go func() {
		<-ctx.Done()
		_ = server.Close()
	}()
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "metrics endpoint stopped", err)
	}
}

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
