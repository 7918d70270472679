package pricing

import (
	"context"
	"fmt"

	"github.com/brandkart/brandkart-backend/internal/coupons"
	"github.com/brandkart/brandkart-backend/pkg/db/models"
	pkgerrors "github.com/brandkart/brandkart-backend/pkg/errors"
	"github.com/brandkart/brandkart-backend/pkg/shiprate"
	"github.com/brandkart/brandkart-backend/pkg/types"
	"github.com/google/uuid"
)

// toleranceCents is the rounding slack allowed when cross-checking the
// client's totals against the server-computed ones. Client UIs price in
// floating point; anything beyond a single cent is a real disagreement.
const toleranceCents = 1

// Quote is the server-computed price breakdown for an order.
type Quote struct {
	SubtotalCents int64
	ShippingCents int64
	DiscountCents int64
	TotalCents    int64
	CouponID      *uuid.UUID
	CouponCode    string
}

// QuoteInput carries everything needed to price one order. BuyerID feeds
// coupon eligibility, which counts the buyer's prior redemptions.
type QuoteInput struct {
	Variant       *models.ProductVariant
	Product       *models.Product
	BuyerID       uuid.UUID
	Qty           int
	CouponCode    string
	OriginPincode string
	ShippingAddr  *types.ShippingAddress
}

// ClientTotals are the figures the client claims it showed the buyer.
type ClientTotals struct {
	SubtotalCents int64
	ShippingCents int64
	DiscountCents int64
	TotalCents    int64
}

// Service prices orders. All lookups it performs are read-only network or DB
// calls, so quoting always happens before any database transaction opens.
type Service struct {
	validator coupons.Validator
	rater     shiprate.Rater
}

// NewService builds the pricing engine.
func NewService(validator coupons.Validator, rater shiprate.Rater) (*Service, error) {
	if validator == nil {
		return nil, fmt.Errorf("coupon validator required")
	}
	if rater == nil {
		return nil, fmt.Errorf("shipping rater required")
	}
	return &Service{validator: validator, rater: rater}, nil
}

// Quote computes the authoritative price breakdown. Shipping is only rated
// for physical products; digital goods always ship free.
func (s *Service) Quote(ctx context.Context, input QuoteInput) (*Quote, error) {
	if input.Variant == nil || input.Product == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant and product are required")
	}
	if input.Qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	quote := &Quote{
		SubtotalCents: input.Variant.PriceCents * int64(input.Qty),
	}

	if input.CouponCode != "" {
		discount, err := s.validator.Validate(ctx, coupons.ValidateInput{
			Code:          input.CouponCode,
			BuyerID:       input.BuyerID,
			ProductID:     input.Product.ID,
			Qty:           input.Qty,
			SubtotalCents: quote.SubtotalCents,
		})
		if err != nil {
			return nil, err
		}
		quote.DiscountCents = discount.DiscountCents
		quote.CouponID = &discount.CouponID
		quote.CouponCode = discount.Code
	}

	if input.Product.Kind.RequiresShipping() {
		if input.ShippingAddr == nil || !input.ShippingAddr.Complete() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "a complete shipping address is required for physical products")
		}
		weight := input.Product.WeightGrams * input.Qty
		rated, err := s.rater.Rate(ctx, input.OriginPincode, input.ShippingAddr.Pincode, weight)
		if err != nil {
			return nil, err
		}
		quote.ShippingCents = rated.FeeCents
	}

	quote.TotalCents = quote.SubtotalCents - quote.DiscountCents + quote.ShippingCents
	if quote.TotalCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "computed total is negative").
			WithDetails(map[string]any{
				"subtotal_cents": quote.SubtotalCents,
				"discount_cents": quote.DiscountCents,
				"shipping_cents": quote.ShippingCents,
			})
	}
	return quote, nil
}

// CrossCheck compares client-submitted totals with the server quote. Each
// figure must agree within toleranceCents; the first mismatch is reported
// with both values so the client can see exactly where it diverged.
func (s *Service) CrossCheck(quote *Quote, client ClientTotals) error {
	checks := []struct {
		field  string
		server int64
		client int64
	}{
		{"subtotal_cents", quote.SubtotalCents, client.SubtotalCents},
		{"shipping_cents", quote.ShippingCents, client.ShippingCents},
		{"discount_cents", quote.DiscountCents, client.DiscountCents},
		{"total_cents", quote.TotalCents, client.TotalCents},
	}
	for _, check := range checks {
		if diff := check.server - check.client; diff > toleranceCents || diff < -toleranceCents {
			return pkgerrors.New(pkgerrors.CodePriceMismatch, fmt.Sprintf("client %s does not match", check.field)).
				WithDetails(map[string]any{
					"field":  check.field,
					"client": check.client,
					"server": check.server,
				})
		}
	}
	return nil
}
