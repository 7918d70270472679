package cashfreewebhook

import (
	"context"

	"github.com/brandkart/brandkart-backend/pkg/db/models"
	"gorm.io/gorm"
)

// EventRepository persists the processed-event records used for durable dedupe.
type EventRepository interface {
	WithTx(tx *gorm.DB) EventRepository
	Exists(ctx context.Context, eventID string) (bool, error)
	Create(ctx context.Context, event *models.WebhookEvent) error
}

type eventRepository struct {
	db *gorm.DB
}

// NewEventRepository builds a webhook event repository.
func NewEventRepository(db *gorm.DB) EventRepository {
	if db == nil {
		return nil
	}
	return &eventRepository{db: db}
}

func (r *eventRepository) WithTx(tx *gorm.DB) EventRepository {
	if tx == nil {
		return r
	}
	return &eventRepository{db: tx}
}

func (r *eventRepository) Exists(ctx context.Context, eventID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.WebhookEvent{}).
		Where("event_id = ?", eventID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *eventRepository) Create(ctx context.Context, event *models.WebhookEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}
