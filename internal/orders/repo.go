package orders

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/brandkart/brandkart-backend/pkg/db/models"
	"github.com/brandkart/brandkart-backend/pkg/enums"
	pkgerrors "github.com/brandkart/brandkart-backend/pkg/errors"
	"github.com/brandkart/brandkart-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists orders, shipping details and the transaction ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateOrder(ctx context.Context, order *models.Order) error
	CreateShippingDetail(ctx context.Context, detail *models.ShippingDetail) error
	CreateTransaction(ctx context.Context, txn *models.Transaction) error

	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindOrderForBuyer(ctx context.Context, orderID, buyerID uuid.UUID) (*models.Order, error)
	ListOrdersForBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params) ([]models.Order, string, error)
	FindPendingExpiredBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error)

	UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error

	FindSuccessfulCharge(ctx context.Context, orderID uuid.UUID) (*models.Transaction, error)
	FindTransactionByRefundID(ctx context.Context, orderID uuid.UUID, refundID string) (*models.Transaction, error)
	SumRefunds(ctx context.Context, orderID uuid.UUID) (int64, error)
	UpdateTransaction(ctx context.Context, txnID uuid.UUID, updates map[string]any) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an order repository backed by the provided DB handle.
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

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) CreateShippingDetail(ctx context.Context, detail *models.ShippingDetail) error {
	return r.db.WithContext(ctx).Create(detail).Error
}

func (r *repository) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("ShippingDetail").
		Preload("Transactions").
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindOrderForBuyer(ctx context.Context, orderID, buyerID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("ShippingDetail").
		Preload("Transactions").
		Where("id = ? AND buyer_id = ?", orderID, buyerID).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListOrdersForBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params) ([]models.Order, string, error) {
	limit := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).
		Where("buyer_id = ?", buyerID).
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit))

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	if cursor != nil {
		query = query.Where(
			"created_at < ? OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var orders []models.Order
	if err := query.Find(&orders).Error; err != nil {
		return nil, "", err
	}

	next := ""
	if len(orders) > limit {
		orders = orders[:limit]
		last := orders[limit-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return orders, next, nil
}

func (r *repository) FindPendingExpiredBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND reservation_expiry IS NOT NULL AND reservation_expiry < ?", enums.OrderStatusPending, cutoff).
		Order("reservation_expiry ASC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(updates).Error
}

func (r *repository) FindSuccessfulCharge(ctx context.Context, orderID uuid.UUID) (*models.Transaction, error) {
	var txn models.Transaction
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND type = ? AND status = ?", orderID, enums.TransactionTypeCharge, enums.TransactionStatusSuccess).
		Order("created_at ASC").
		First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}

func (r *repository) FindTransactionByRefundID(ctx context.Context, orderID uuid.UUID, refundID string) (*models.Transaction, error) {
	var txn models.Transaction
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND gateway_refund_id = ?", orderID, refundID).
		First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}

// SumRefunds returns the absolute refunded total across pending and
// succeeded refunds. Pending refunds count against the refundable balance so
// parallel requests cannot overshoot it. Refund rows store negative amounts,
// so the sum is negated before returning.
func (r *repository) SumRefunds(ctx context.Context, orderID uuid.UUID) (int64, error) {
	var total sql.NullInt64
	err := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Select("SUM(amount_cents)").
		Where("order_id = ? AND type = ? AND status IN ?", orderID, enums.TransactionTypeRefund,
			[]enums.TransactionStatus{enums.TransactionStatusPending, enums.TransactionStatusSuccess}).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	if !total.Valid {
		return 0, nil
	}
	return -total.Int64, nil
}

func (r *repository) UpdateTransaction(ctx context.Context, txnID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ?", txnID).
		Updates(updates).Error
}
