package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/brandkart/brandkart-backend/internal/orders"
	"github.com/brandkart/brandkart-backend/pkg/enums"
	"github.com/brandkart/brandkart-backend/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

const expiredReservationReason = "reservation expired"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type orderFailer interface {
	FailInTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, reason string) error
}

// ReservationExpiryJobParams configure the expired reservation sweeper job.
type ReservationExpiryJobParams struct {
	Logger    *logger.Logger
	DB        txRunner
	Orders    orders.Repository
	Lifecycle orderFailer
}

// NewReservationExpiryJob builds the job that fails pending orders whose
// reservation window lapsed and returns their held stock.
func NewReservationExpiryJob(params ReservationExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if params.Lifecycle == nil {
		return nil, fmt.Errorf("order lifecycle required")
	}
	return &reservationExpiryJob{
		logg:      params.Logger,
		db:        params.DB,
		orders:    params.Orders,
		lifecycle: params.Lifecycle,
		now:       time.Now,
	}, nil
}

type reservationExpiryJob struct {
	logg      *logger.Logger
	db        txRunner
	orders    orders.Repository
	lifecycle orderFailer
	now       func() time.Time
}

func (j *reservationExpiryJob) Name() string { return "reservation-expiry" }

// Run fails each expired pending order in its own transaction, so one bad
// row does not block the rest of the sweep.
func (j *reservationExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC()
	expired, err := j.orders.FindPendingExpiredBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("query expired reservations: %w", err)
	}

	var errs []error
	failed := 0
	for _, order := range expired {
		expiredNow, err := j.expireOrder(ctx, order.ID, cutoff)
		if err != nil {
			errs = append(errs, fmt.Errorf("expire order %s: %w", order.ID, err))
			continue
		}
		if expiredNow {
			failed++
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": len(expired),
		"expired":    failed,
	})
	j.logg.Info(logCtx, "reservation expiry sweep complete")
	return multierr.Combine(errs...)
}

// expireOrder re-reads the order under the transaction: a settlement webhook
// landing between the sweep query and this point must win, so anything no
// longer pending-and-expired is skipped.
func (j *reservationExpiryJob) expireOrder(ctx context.Context, orderID uuid.UUID, cutoff time.Time) (bool, error) {
	expiredNow := false
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		current, err := j.orders.WithTx(tx).FindOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if current.Status != enums.OrderStatusPending {
			return nil
		}
		if current.ReservationExpiry == nil || current.ReservationExpiry.After(cutoff) {
			return nil
		}
		if err := j.lifecycle.FailInTx(ctx, tx, orderID, expiredReservationReason); err != nil {
			return err
		}
		expiredNow = true
		return nil
	})
	return expiredNow, err
}
