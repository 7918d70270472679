package orders

import (
	"context"

	"github.com/brandkart/brandkart-backend/internal/inventory"
	"github.com/brandkart/brandkart-backend/internal/pricing"
	"github.com/brandkart/brandkart-backend/pkg/cashfree"
	"github.com/brandkart/brandkart-backend/pkg/types"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TxRunner executes work inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// InventoryLedger is the slice of the inventory service checkout depends on.
type InventoryLedger interface {
	PlanReservation(ctx context.Context, variantID uuid.UUID, qty int, preferPincode string) (*inventory.Plan, error)
	Reserve(ctx context.Context, tx *gorm.DB, recordID uuid.UUID, qty int) error
	Commit(ctx context.Context, tx *gorm.DB, recordID uuid.UUID, qty int) error
	Release(ctx context.Context, tx *gorm.DB, recordID uuid.UUID, qty int) error
}

// Pricer computes and cross-checks order totals.
type Pricer interface {
	Quote(ctx context.Context, input pricing.QuoteInput) (*pricing.Quote, error)
	CrossCheck(quote *pricing.Quote, client pricing.ClientTotals) error
}

// CouponLedger enforces redemption limits inside the checkout transaction
// and records consumed coupons when an order settles.
type CouponLedger interface {
	CheckLimitsInTx(ctx context.Context, tx *gorm.DB, couponID, buyerID uuid.UUID) error
	RecordRedemptionInTx(ctx context.Context, tx *gorm.DB, couponID, buyerID, orderID uuid.UUID) error
}

// Gateway creates hosted checkout sessions with the payment provider.
type Gateway interface {
	CreateSession(ctx context.Context, creds types.CampaignPaymentConfig, req cashfree.CreateSessionRequest) (*cashfree.Session, error)
}
