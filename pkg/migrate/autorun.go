package migrate

import (
	"context"
	"fmt"

	"github.com/brandkart/brandkart-backend/pkg/config"
	"github.com/brandkart/brandkart-backend/pkg/db/models"
	"github.com/brandkart/brandkart-backend/pkg/logger"
	"gorm.io/gorm"
)

// MaybeRunDev applies schema auto-migration when the feature flag is set.
// Intended for local development and tests only; production schemas are
// managed out of band.
func MaybeRunDev(ctx context.Context, cfg *config.Config, gdb *gorm.DB, logg *logger.Logger) error {
	if !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	if cfg.App.IsProd() {
		return fmt.Errorf("auto-migrate is not allowed in %s", cfg.App.Env)
	}
	if logg != nil {
		logg.Warn(ctx, "running gorm auto-migration (dev only)")
	}
	return Run(gdb)
}

// Run migrates every model the platform persists.
func Run(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&models.Campaign{},
		&models.Product{},
		&models.ProductVariant{},
		&models.InventoryLocation{},
		&models.InventoryRecord{},
		&models.Coupon{},
		&models.CouponRedemption{},
		&models.Order{},
		&models.ShippingDetail{},
		&models.Transaction{},
		&models.WebhookEvent{},
	)
}
