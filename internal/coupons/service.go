package coupons

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/brandkart/brandkart-backend/pkg/db"
	"github.com/brandkart/brandkart-backend/pkg/db/models"
	"github.com/brandkart/brandkart-backend/pkg/enums"
	pkgerrors "github.com/brandkart/brandkart-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const percentDivisor = 10_000

// Discount is the outcome of a successful coupon validation.
type Discount struct {
	CouponID      uuid.UUID
	Code          string
	DiscountCents int64
}

// ValidateInput carries the order context a coupon is checked against.
// Eligibility depends on the buyer as well as the product and quantity:
// per-buyer redemption limits are counted against BuyerID.
type ValidateInput struct {
	Code          string
	BuyerID       uuid.UUID
	ProductID     uuid.UUID
	Qty           int
	SubtotalCents int64
}

// Validator checks a coupon against an order and computes the discount.
type Validator interface {
	Validate(ctx context.Context, input ValidateInput) (*Discount, error)
}

// Service implements Validator against the coupons table.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService builds the coupon validator.
func NewService(repo Repository) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("coupon repository required")
	}
	return &Service{repo: repo, now: time.Now}, nil
}

// Validate resolves a coupon code and computes the discount it grants. Every
// rejection carries CodeValidation with a reason, so callers surface a 400
// naming the coupon problem rather than a generic failure.
func (s *Service) Validate(ctx context.Context, input ValidateInput) (*Discount, error) {
	code := strings.TrimSpace(input.Code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code is required")
	}
	if input.Qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if input.SubtotalCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subtotal must not be negative")
	}

	coupon, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("find coupon: %w", err)
	}
	if coupon == nil {
		return nil, rejection(code, "coupon not found")
	}
	if !coupon.Active {
		return nil, rejection(code, "coupon is inactive")
	}
	if coupon.ExpiresAt != nil && !coupon.ExpiresAt.After(s.now().UTC()) {
		return nil, rejection(code, "coupon has expired")
	}
	if input.Qty < coupon.MinQty {
		return nil, rejection(code, fmt.Sprintf("coupon requires a minimum quantity of %d", coupon.MinQty))
	}
	if coupon.ProductID != nil && *coupon.ProductID != input.ProductID {
		return nil, rejection(code, "coupon does not apply to this product")
	}
	if err := s.checkLimits(ctx, s.repo, coupon, input.BuyerID); err != nil {
		return nil, err
	}

	discount, err := computeDiscount(coupon, input.SubtotalCents)
	if err != nil {
		return nil, err
	}
	return &Discount{CouponID: coupon.ID, Code: coupon.Code, DiscountCents: discount}, nil
}

// CheckLimitsInTx re-counts a coupon's redemption limits against the
// caller's transaction. Validation already checked them, but that read
// happened before the checkout transaction opened; this one is the
// authoritative check.
func (s *Service) CheckLimitsInTx(ctx context.Context, tx *gorm.DB, couponID, buyerID uuid.UUID) error {
	repo := s.repo.WithTx(tx)
	coupon, err := repo.FindByID(ctx, couponID)
	if err != nil {
		return fmt.Errorf("find coupon: %w", err)
	}
	if coupon == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "coupon no longer exists")
	}
	return s.checkLimits(ctx, repo, coupon, buyerID)
}

// RecordRedemptionInTx appends the redemption row for a settled order. A
// second call for the same order is a no-op, so webhook replays never
// consume an extra use.
func (s *Service) RecordRedemptionInTx(ctx context.Context, tx *gorm.DB, couponID, buyerID, orderID uuid.UUID) error {
	repo := s.repo.WithTx(tx)
	existing, err := repo.FindRedemptionByOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("find redemption: %w", err)
	}
	if existing != nil {
		return nil
	}
	err = repo.CreateRedemption(ctx, &models.CouponRedemption{
		ID:       uuid.New(),
		CouponID: couponID,
		BuyerID:  buyerID,
		OrderID:  orderID,
	})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil
		}
		return fmt.Errorf("record redemption: %w", err)
	}
	return nil
}

func (s *Service) checkLimits(ctx context.Context, repo Repository, coupon *models.Coupon, buyerID uuid.UUID) error {
	if coupon.GlobalLimit > 0 {
		total, err := repo.CountRedemptions(ctx, coupon.ID)
		if err != nil {
			return fmt.Errorf("count redemptions: %w", err)
		}
		if total >= int64(coupon.GlobalLimit) {
			return rejection(coupon.Code, "coupon redemption limit reached")
		}
	}
	if coupon.PerBuyerLimit > 0 && buyerID != uuid.Nil {
		used, err := repo.CountRedemptionsForBuyer(ctx, coupon.ID, buyerID)
		if err != nil {
			return fmt.Errorf("count buyer redemptions: %w", err)
		}
		if used >= int64(coupon.PerBuyerLimit) {
			return rejection(coupon.Code, "coupon already used the maximum number of times")
		}
	}
	return nil
}

// computeDiscount caps every coupon at the order subtotal so a discount can
// never push the total negative.
func computeDiscount(coupon *models.Coupon, subtotalCents int64) (int64, error) {
	var discount int64
	switch coupon.Kind {
	case enums.CouponKindFlat:
		discount = coupon.FlatCents
	case enums.CouponKindPercent:
		discount = subtotalCents * int64(coupon.PercentBps) / percentDivisor
		if coupon.MaxDiscountCents > 0 && discount > coupon.MaxDiscountCents {
			discount = coupon.MaxDiscountCents
		}
	default:
		return 0, pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("unhandled coupon kind %q", coupon.Kind))
	}
	if discount < 0 {
		discount = 0
	}
	if discount > subtotalCents {
		discount = subtotalCents
	}
	return discount, nil
}

func rejection(code, reason string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, reason).
		WithDetails(map[string]any{"coupon_code": code, "reason": reason})
}
