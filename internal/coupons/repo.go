package coupons

import (
	"context"
	"errors"
	"strings"

	"github.com/brandkart/brandkart-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository exposes coupon lookups and the redemption ledger. Codes are
// matched case-insensitively.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByCode(ctx context.Context, code string) (*models.Coupon, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error)
	CountRedemptions(ctx context.Context, couponID uuid.UUID) (int64, error)
	CountRedemptionsForBuyer(ctx context.Context, couponID, buyerID uuid.UUID) (int64, error)
	FindRedemptionByOrder(ctx context.Context, orderID uuid.UUID) (*models.CouponRedemption, error)
	CreateRedemption(ctx context.Context, redemption *models.CouponRedemption) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a coupon repository backed by the provided DB handle.
func NewRepository(db *gorm.DB) Repository {
	if db == nil {
		return nil
	}
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := r.db.WithContext(ctx).
		Where("LOWER(code) = ?", strings.ToLower(strings.TrimSpace(code))).
		First(&coupon).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &coupon, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	var coupon models.Coupon
	err := r.db.WithContext(ctx).First(&coupon, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &coupon, nil
}

func (r *repository) CountRedemptions(ctx context.Context, couponID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CouponRedemption{}).
		Where("coupon_id = ?", couponID).
		Count(&count).Error
	return count, err
}

func (r *repository) CountRedemptionsForBuyer(ctx context.Context, couponID, buyerID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CouponRedemption{}).
		Where("coupon_id = ? AND buyer_id = ?", couponID, buyerID).
		Count(&count).Error
	return count, err
}

func (r *repository) FindRedemptionByOrder(ctx context.Context, orderID uuid.UUID) (*models.CouponRedemption, error) {
	var redemption models.CouponRedemption
	err := r.db.WithContext(ctx).First(&redemption, "order_id = ?", orderID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &redemption, nil
}

func (r *repository) CreateRedemption(ctx context.Context, redemption *models.CouponRedemption) error {
	return r.db.WithContext(ctx).Create(redemption).Error
}
