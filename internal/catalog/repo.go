package catalog

import (
	"context"
	"errors"

	"github.com/brandkart/brandkart-backend/pkg/db/models"
	pkgerrors "github.com/brandkart/brandkart-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository exposes read access to campaigns, products and variants. The
// checkout engine never writes catalog rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindCampaign(ctx context.Context, campaignID uuid.UUID) (*models.Campaign, error)
	FindProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error)
	FindVariant(ctx context.Context, variantID uuid.UUID) (*models.ProductVariant, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a catalog repository backed by the provided DB handle.
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

func (r *repository) FindCampaign(ctx context.Context, campaignID uuid.UUID) (*models.Campaign, error) {
	var campaign models.Campaign
	err := r.db.WithContext(ctx).
		Where("id = ?", campaignID).
		First(&campaign).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "campaign not found")
		}
		return nil, err
	}
	return &campaign, nil
}

func (r *repository) FindProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Where("id = ?", productID).
		First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, err
	}
	return &product, nil
}

func (r *repository) FindVariant(ctx context.Context, variantID uuid.UUID) (*models.ProductVariant, error) {
	var variant models.ProductVariant
	err := r.db.WithContext(ctx).
		Where("id = ?", variantID).
		First(&variant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product variant not found")
		}
		return nil, err
	}
	return &variant, nil
}
