package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/brandkart/brandkart-backend/pkg/enums"
	"github.com/brandkart/brandkart-backend/pkg/types"
)

// Transaction is the append-only settlement ledger for an order. Charges carry
// a positive amount, refunds a negative one. Rows are never rewritten after
// creation except for the status fields mirrored from gateway polling.
type Transaction struct {
	ID               uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID          uuid.UUID               `gorm:"column:order_id;type:uuid;not null;index"`
	Type             enums.TransactionType   `gorm:"column:type;type:text;not null"`
	Status           enums.TransactionStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	AmountCents      int64                   `gorm:"column:amount_cents;not null"`
	GatewayPaymentID *string                 `gorm:"column:gateway_payment_id"`
	GatewayRefundID  *string                 `gorm:"column:gateway_refund_id"`
	Note             *string                 `gorm:"column:note"`
	PaymentDetails   *types.PaymentMetadata  `gorm:"column:payment_details;type:jsonb;serializer:json"`
	CreatedAt        time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
