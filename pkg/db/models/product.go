package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/brandkart/brandkart-backend/pkg/enums"
)

// Product is a purchasable item within a campaign.
type Product struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CampaignID  uuid.UUID         `gorm:"column:campaign_id;type:uuid;not null;index"`
	Title       string            `gorm:"column:title;not null"`
	Kind        enums.ProductKind `gorm:"column:kind;type:text;not null;default:'physical'"`
	WeightGrams int               `gorm:"column:weight_grams;not null;default:0"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// ProductVariant is the purchasable configuration inventory is tracked against.
type ProductVariant struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID  uuid.UUID `gorm:"column:product_id;type:uuid;not null;index"`
	Title      string    `gorm:"column:title;not null"`
	PriceCents int64     `gorm:"column:price_cents;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
