package coupons

import (
	"context"
	"testing"
	"time"

	"github.com/brandkart/brandkart-backend/pkg/db/models"
	"github.com/brandkart/brandkart-backend/pkg/enums"
	pkgerrors "github.com/brandkart/brandkart-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:coupons_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Coupon{}, &models.CouponRedemption{}))
	return db
}

func newTestService(t *testing.T, db *gorm.DB) *Service {
	t.Helper()
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)
	return svc
}

func seedCoupon(t *testing.T, db *gorm.DB, coupon models.Coupon) models.Coupon {
	t.Helper()
	if coupon.ID == uuid.Nil {
		coupon.ID = uuid.New()
	}
	require.NoError(t, db.Create(&coupon).Error)
	return coupon
}

func TestValidateFlatCoupon(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	coupon := seedCoupon(t, db, models.Coupon{
		Code:      "WELCOME100",
		Kind:      enums.CouponKindFlat,
		FlatCents: 10000,
		MinQty:    1,
		Active:    true,
	})

	discount, err := svc.Validate(context.Background(), ValidateInput{
		Code:          "welcome100",
		ProductID:     uuid.New(),
		Qty:           1,
		SubtotalCents: 159900,
	})
	require.NoError(t, err)
	assert.Equal(t, coupon.ID, discount.CouponID)
	assert.Equal(t, int64(10000), discount.DiscountCents)
}

func TestValidatePercentCouponHonorsCap(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	seedCoupon(t, db, models.Coupon{
		Code:             "SAVE10",
		Kind:             enums.CouponKindPercent,
		PercentBps:       1000,
		MaxDiscountCents: 5000,
		MinQty:           1,
		Active:           true,
	})

	discount, err := svc.Validate(context.Background(), ValidateInput{
		Code:          "SAVE10",
		ProductID:     uuid.New(),
		Qty:           2,
		SubtotalCents: 200000,
	})
	require.NoError(t, err)
	// 10% of 2000.00 is 200.00, capped at 50.00.
	assert.Equal(t, int64(5000), discount.DiscountCents)
}

func TestValidateFlatCouponNeverExceedsSubtotal(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	seedCoupon(t, db, models.Coupon{
		Code:      "BIGFLAT",
		Kind:      enums.CouponKindFlat,
		FlatCents: 500000,
		MinQty:    1,
		Active:    true,
	})

	discount, err := svc.Validate(context.Background(), ValidateInput{
		Code:          "BIGFLAT",
		ProductID:     uuid.New(),
		Qty:           1,
		SubtotalCents: 4999,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4999), discount.DiscountCents)
}

func TestValidateRejections(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	boundProduct := uuid.New()
	expired := time.Now().Add(-time.Hour)
	seedCoupon(t, db, models.Coupon{Code: "INACTIVE", Kind: enums.CouponKindFlat, FlatCents: 100, MinQty: 1, Active: false})
	seedCoupon(t, db, models.Coupon{Code: "EXPIRED", Kind: enums.CouponKindFlat, FlatCents: 100, MinQty: 1, Active: true, ExpiresAt: &expired})
	seedCoupon(t, db, models.Coupon{Code: "BULK5", Kind: enums.CouponKindFlat, FlatCents: 100, MinQty: 5, Active: true})
	seedCoupon(t, db, models.Coupon{Code: "BOUND", Kind: enums.CouponKindFlat, FlatCents: 100, MinQty: 1, Active: true, ProductID: &boundProduct})

	cases := []struct {
		name  string
		input ValidateInput
	}{
		{"unknown code", ValidateInput{Code: "NOPE", ProductID: uuid.New(), Qty: 1, SubtotalCents: 1000}},
		{"inactive", ValidateInput{Code: "INACTIVE", ProductID: uuid.New(), Qty: 1, SubtotalCents: 1000}},
		{"expired", ValidateInput{Code: "EXPIRED", ProductID: uuid.New(), Qty: 1, SubtotalCents: 1000}},
		{"below min qty", ValidateInput{Code: "BULK5", ProductID: uuid.New(), Qty: 2, SubtotalCents: 1000}},
		{"wrong product", ValidateInput{Code: "BOUND", ProductID: uuid.New(), Qty: 1, SubtotalCents: 1000}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Validate(context.Background(), tc.input)
			assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "expected validation error, got %v", err)
		})
	}
}

func seedRedemption(t *testing.T, db *gorm.DB, couponID, buyerID uuid.UUID) {
	t.Helper()
	require.NoError(t, db.Create(&models.CouponRedemption{
		ID:       uuid.New(),
		CouponID: couponID,
		BuyerID:  buyerID,
		OrderID:  uuid.New(),
	}).Error)
}

func TestValidateEnforcesGlobalLimit(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	coupon := seedCoupon(t, db, models.Coupon{
		Code: "FIRST2", Kind: enums.CouponKindFlat, FlatCents: 500,
		MinQty: 1, Active: true, GlobalLimit: 2,
	})
	seedRedemption(t, db, coupon.ID, uuid.New())
	seedRedemption(t, db, coupon.ID, uuid.New())

	_, err := svc.Validate(context.Background(), ValidateInput{
		Code: "FIRST2", BuyerID: uuid.New(), ProductID: uuid.New(), Qty: 1, SubtotalCents: 1000,
	})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "expected validation error, got %v", err)
}

func TestValidateEnforcesPerBuyerLimit(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	buyer := uuid.New()
	coupon := seedCoupon(t, db, models.Coupon{
		Code: "ONCE", Kind: enums.CouponKindFlat, FlatCents: 500,
		MinQty: 1, Active: true, PerBuyerLimit: 1,
	})
	seedRedemption(t, db, coupon.ID, buyer)

	_, err := svc.Validate(context.Background(), ValidateInput{
		Code: "ONCE", BuyerID: buyer, ProductID: uuid.New(), Qty: 1, SubtotalCents: 1000,
	})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "expected validation error, got %v", err)

	// A different buyer still gets the coupon.
	discount, err := svc.Validate(context.Background(), ValidateInput{
		Code: "ONCE", BuyerID: uuid.New(), ProductID: uuid.New(), Qty: 1, SubtotalCents: 1000,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(500), discount.DiscountCents)
}

func TestRecordRedemptionIsIdempotentPerOrder(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	coupon := seedCoupon(t, db, models.Coupon{
		Code: "REPLAY", Kind: enums.CouponKindFlat, FlatCents: 500, MinQty: 1, Active: true,
	})
	buyer := uuid.New()
	order := uuid.New()
	ctx := context.Background()

	require.NoError(t, svc.RecordRedemptionInTx(ctx, db, coupon.ID, buyer, order))
	require.NoError(t, svc.RecordRedemptionInTx(ctx, db, coupon.ID, buyer, order))

	var count int64
	require.NoError(t, db.Model(&models.CouponRedemption{}).Where("order_id = ?", order).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCheckLimitsInTxCountsCommittedRedemptions(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	coupon := seedCoupon(t, db, models.Coupon{
		Code: "LASTONE", Kind: enums.CouponKindFlat, FlatCents: 500,
		MinQty: 1, Active: true, GlobalLimit: 1,
	})
	ctx := context.Background()

	require.NoError(t, svc.CheckLimitsInTx(ctx, db, coupon.ID, uuid.New()))

	seedRedemption(t, db, coupon.ID, uuid.New())
	err := svc.CheckLimitsInTx(ctx, db, coupon.ID, uuid.New())
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "expected validation error, got %v", err)
}
