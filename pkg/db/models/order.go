package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/brandkart/brandkart-backend/pkg/enums"
	"github.com/brandkart/brandkart-backend/pkg/types"
)

// Order is a single checkout attempt. Rows are never deleted; failed and
// delivered orders stay for the audit trail. All status changes flow through
// the order lifecycle service and the webhook reconciler.
type Order struct {
	ID                uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BuyerID           uuid.UUID              `gorm:"column:buyer_id;type:uuid;not null;index"`
	CampaignID        uuid.UUID              `gorm:"column:campaign_id;type:uuid;not null;index"`
	ProductID         uuid.UUID              `gorm:"column:product_id;type:uuid;not null"`
	VariantID         uuid.UUID              `gorm:"column:variant_id;type:uuid;not null"`
	Qty               int                    `gorm:"column:qty;not null"`
	SubtotalCents     int64                  `gorm:"column:subtotal_cents;not null"`
	ShippingCents     int64                  `gorm:"column:shipping_cents;not null;default:0"`
	DiscountCents     int64                  `gorm:"column:discount_cents;not null;default:0"`
	TotalCents        int64                  `gorm:"column:total_cents;not null"`
	Status            enums.OrderStatus      `gorm:"column:status;type:text;not null;default:'pending'"`
	RefundStatus      enums.RefundStatus     `gorm:"column:refund_status;type:text;not null;default:'none'"`
	PaymentMethod     enums.PaymentMethod    `gorm:"column:payment_method;type:text;not null;default:'cashfree'"`
	CouponID          *uuid.UUID             `gorm:"column:coupon_id;type:uuid"`
	InventoryRecordID *uuid.UUID             `gorm:"column:inventory_record_id;type:uuid"`
	LocationID        *uuid.UUID             `gorm:"column:location_id;type:uuid"`
	ReservationExpiry *time.Time             `gorm:"column:reservation_expiry"`
	FailureReason     *string                `gorm:"column:failure_reason"`
	PaymentDetails    *types.PaymentMetadata `gorm:"column:payment_details;type:jsonb;serializer:json"`
	ShippingDetail    *ShippingDetail        `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Transactions      []Transaction          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

// ShippingDetail is the destination snapshot for a physical order. Created in
// the same transaction as its order and immutable afterwards.
type ShippingDetail struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	Name      string    `gorm:"column:name;not null"`
	Address   string    `gorm:"column:address;not null"`
	City      string    `gorm:"column:city;not null"`
	Pincode   string    `gorm:"column:pincode;not null"`
	Country   string    `gorm:"column:country;not null"`
	Phone     string    `gorm:"column:phone;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
