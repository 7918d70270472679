package orders

import (
	"github.com/brandkart/brandkart-backend/internal/pricing"
	"github.com/brandkart/brandkart-backend/pkg/db/models"
	"github.com/brandkart/brandkart-backend/pkg/types"
	"github.com/google/uuid"
)

// CreateOrderInput is the normalized checkout request after controller
// validation. ClientTotals are what the buyer saw on screen; when present the
// service cross-checks them against its own figures and rejects the order on
// any disagreement. A nil ClientTotals skips the cross-check — the server
// quote is authoritative either way.
type CreateOrderInput struct {
	BuyerID         uuid.UUID
	CampaignID      uuid.UUID
	ProductID       uuid.UUID
	VariantID       uuid.UUID
	Qty             int
	CouponCode      string
	ContactName     string
	ContactPhone    string
	ShippingAddress *types.ShippingAddress
	ClientTotals    *pricing.ClientTotals
}

// CreateOrderResult is returned to the controller after checkout.
type CreateOrderResult struct {
	Order            *models.Order
	RequiresPayment  bool
	PaymentSessionID string
	CheckoutURL      string
}

// PaymentRef identifies the gateway-side settlement applied to an order.
type PaymentRef struct {
	GatewayPaymentID string
	GatewayOrderID   string
}
