package inventory

import (
	"context"

	"github.com/brandkart/brandkart-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository owns every mutation of inventory_records. All three mutations
// are guarded conditional updates: the WHERE clause re-checks the invariant
// the caller planned against, and a zero-row result means another writer got
// there first.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListForVariant(ctx context.Context, variantID uuid.UUID) ([]models.InventoryRecord, error)
	Reserve(ctx context.Context, recordID uuid.UUID, qty int) (bool, error)
	Commit(ctx context.Context, recordID uuid.UUID, qty int) (bool, error)
	Release(ctx context.Context, recordID uuid.UUID, qty int) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an inventory repository backed by the provided DB handle.
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

func (r *repository) ListForVariant(ctx context.Context, variantID uuid.UUID) ([]models.InventoryRecord, error) {
	var records []models.InventoryRecord
	err := r.db.WithContext(ctx).
		Preload("Location").
		Where("variant_id = ?", variantID).
		Order("created_at ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Reserve bumps reserved_qty only while enough free stock remains.
func (r *repository) Reserve(ctx context.Context, recordID uuid.UUID, qty int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.InventoryRecord{}).
		Where("id = ? AND quantity - reserved_qty >= ?", recordID, qty).
		UpdateColumn("reserved_qty", gorm.Expr("reserved_qty + ?", qty))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Commit converts a reservation into a sale, decrementing both counters.
func (r *repository) Commit(ctx context.Context, recordID uuid.UUID, qty int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.InventoryRecord{}).
		Where("id = ? AND reserved_qty >= ? AND quantity >= ?", recordID, qty, qty).
		UpdateColumns(map[string]any{
			"quantity":     gorm.Expr("quantity - ?", qty),
			"reserved_qty": gorm.Expr("reserved_qty - ?", qty),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Release returns a reservation to free stock without touching quantity.
func (r *repository) Release(ctx context.Context, recordID uuid.UUID, qty int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.InventoryRecord{}).
		Where("id = ? AND reserved_qty >= ?", recordID, qty).
		UpdateColumn("reserved_qty", gorm.Expr("reserved_qty - ?", qty))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
