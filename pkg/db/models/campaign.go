package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/brandkart/brandkart-backend/pkg/enums"
	"github.com/brandkart/brandkart-backend/pkg/types"
)

// Campaign is the brand campaign an order is placed against. The checkout
// engine only reads campaigns; campaign CRUD lives elsewhere.
type Campaign struct {
	ID            uuid.UUID                    `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name          string                       `gorm:"column:name;not null"`
	Status        enums.CampaignStatus         `gorm:"column:status;type:text;not null;default:'active'"`
	PaymentConfig *types.CampaignPaymentConfig `gorm:"column:payment_config;type:jsonb;serializer:json"`
	CreatedAt     time.Time                    `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time                    `gorm:"column:updated_at;autoUpdateTime"`
}
