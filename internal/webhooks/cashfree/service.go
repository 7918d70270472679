package cashfreewebhook

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/brandkart/brandkart-backend/internal/orders"
	"github.com/brandkart/brandkart-backend/pkg/db/models"
	"github.com/brandkart/brandkart-backend/pkg/enums"
	pkgerrors "github.com/brandkart/brandkart-backend/pkg/errors"
	"github.com/brandkart/brandkart-backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// orderLifecycle is the slice of the order service the reconciler drives.
type orderLifecycle interface {
	SettleInTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, ref orders.PaymentRef) error
	FailInTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, reason string) error
}

// ServiceParams configure the webhook reconciler.
type ServiceParams struct {
	DB     orders.TxRunner
	Orders orderLifecycle
	Events EventRepository
	Guard  *IdempotencyGuard
	Logger *logger.Logger
}

// Service reconciles gateway settlement events into order state. Every event
// is processed in its own transaction together with its durable dedupe row,
// so a crash mid-event leaves either both effects or neither.
type Service struct {
	db     orders.TxRunner
	orders orderLifecycle
	events EventRepository
	guard  *IdempotencyGuard
	logg   *logger.Logger
	now    func() time.Time
}

// NewService builds the webhook reconciler.
func NewService(params ServiceParams) (*Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order lifecycle required")
	}
	if params.Events == nil {
		return nil, fmt.Errorf("event repository required")
	}
	if params.Guard == nil {
		return nil, fmt.Errorf("idempotency guard required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{
		db:     params.DB,
		orders: params.Orders,
		events: params.Events,
		guard:  params.Guard,
		logg:   params.Logger,
		now:    time.Now,
	}, nil
}

// Process applies one verified gateway event. Unknown event types are logged
// and acknowledged; duplicates are acknowledged without side effects.
func (s *Service) Process(ctx context.Context, event Event) error {
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"event_id":   event.EventID,
		"event_type": event.Type.String(),
	})

	if !event.Type.IsKnown() {
		s.logg.Warn(logCtx, "ignoring unknown webhook event type")
		return nil
	}
	if strings.TrimSpace(event.EventID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "webhook event id is required")
	}

	orderID, err := uuid.Parse(event.Data.Order.OrderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "webhook order id is not a valid order reference")
	}

	seen, err := s.guard.CheckAndMark(ctx, event.EventID)
	if err != nil {
		// Redis trouble must not drop settlements; fall through to the
		// durable dedupe row.
		s.logg.Error(logCtx, "webhook idempotency guard unavailable", err)
	} else if seen {
		s.logg.Info(logCtx, "duplicate webhook event skipped")
		return nil
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events := s.events.WithTx(tx)
		processed, err := events.Exists(ctx, event.EventID)
		if err != nil {
			return fmt.Errorf("check processed events: %w", err)
		}
		if processed {
			return nil
		}

		if err := s.apply(ctx, tx, orderID, event); err != nil {
			return err
		}

		return events.Create(ctx, &models.WebhookEvent{
			EventID:     event.EventID,
			EventType:   event.Type.String(),
			OrderID:     &orderID,
			ProcessedAt: s.now().UTC(),
		})
	})
	if err != nil {
		// Let the gateway redeliver: forget the redis mark so the retry is
		// not short-circuited.
		if relErr := s.guard.Release(ctx, event.EventID); relErr != nil {
			s.logg.Error(logCtx, "failed to release webhook idempotency mark", relErr)
		}
		return err
	}

	s.logg.Info(logCtx, "webhook event reconciled")
	return nil
}

func (s *Service) apply(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, event Event) error {
	switch event.Type {
	case enums.WebhookEventOrderPaid:
		return s.orders.SettleInTx(ctx, tx, orderID, orders.PaymentRef{
			GatewayPaymentID: event.Data.Payment.GatewayPaymentID,
			GatewayOrderID:   event.Data.Order.GatewayOrderID,
		})
	case enums.WebhookEventPaymentFailed, enums.WebhookEventUserDropped:
		reason := event.Data.Payment.Message
		if reason == "" {
			reason = "payment " + strings.ToLower(event.Type.String())
		}
		return s.orders.FailInTx(ctx, tx, orderID, reason)
	default:
		return nil
	}
}
