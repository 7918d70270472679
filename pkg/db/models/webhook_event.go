package models

import (
	"time"

	"github.com/google/uuid"
)

// WebhookEvent is the durable dedupe record for gateway events. The redis
// guard is the fast path; this row is what makes replay-safety survive a
// cache flush.
type WebhookEvent struct {
	EventID     string     `gorm:"column:event_id;primaryKey"`
	EventType   string     `gorm:"column:event_type;not null;index"`
	OrderID     *uuid.UUID `gorm:"column:order_id;type:uuid;index"`
	ProcessedAt time.Time  `gorm:"column:processed_at;not null"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
}
