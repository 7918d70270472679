package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/brandkart/brandkart-backend/pkg/enums"
)

// Coupon is the discount definition the coupon validator prices against.
type Coupon struct {
	ID               uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code             string           `gorm:"column:code;not null;uniqueIndex"`
	Kind             enums.CouponKind `gorm:"column:kind;type:text;not null"`
	FlatCents        int64            `gorm:"column:flat_cents;not null;default:0"`
	PercentBps       int              `gorm:"column:percent_bps;not null;default:0"`
	MaxDiscountCents int64            `gorm:"column:max_discount_cents;not null;default:0"`
	MinQty           int              `gorm:"column:min_qty;not null;default:1"`
	ProductID        *uuid.UUID       `gorm:"column:product_id;type:uuid"`
	Active           bool             `gorm:"column:active;not null;default:true"`
	ExpiresAt        *time.Time       `gorm:"column:expires_at"`
	PerBuyerLimit    int              `gorm:"column:per_buyer_limit;not null;default:0"`
	GlobalLimit      int              `gorm:"column:global_limit;not null;default:0"`
	CreatedAt        time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// CouponRedemption records one consumed use of a coupon. Rows are written
// when the order settles, so limits count completed purchases only. The
// unique order index makes settle replays idempotent.
type CouponRedemption struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CouponID  uuid.UUID `gorm:"column:coupon_id;type:uuid;not null;index"`
	BuyerID   uuid.UUID `gorm:"column:buyer_id;type:uuid;not null;index:idx_coupon_redemptions_buyer"`
	OrderID   uuid.UUID `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
