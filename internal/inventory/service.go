package inventory

import (
	"context"
	"fmt"
	"strings"

	"github.com/brandkart/brandkart-backend/pkg/db/models"
	pkgerrors "github.com/brandkart/brandkart-backend/pkg/errors"
	"github.com/brandkart/brandkart-backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Plan is a reservation decision made outside any transaction. It names the
// single record that will fulfill the order; the guarded update re-validates
// the availability when the reservation is actually taken.
type Plan struct {
	RecordID   uuid.UUID
	LocationID uuid.UUID
	Pincode    string
}

// Service is the inventory ledger. Reads happen lock-free; mutations go
// through guarded conditional updates inside the caller's transaction.
type Service struct {
	repo Repository
	logg *logger.Logger
}

// NewService builds the inventory ledger service.
func NewService(repo Repository, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{repo: repo, logg: logg}, nil
}

// PlanReservation picks the single location that will fulfill qty units of a
// variant. Split fulfillment across locations is not supported: an order
// ships from exactly one warehouse.
//
// Preference order: a location whose pincode matches preferPincode, then the
// oldest eligible record. Aggregate availability is checked first so the
// caller can distinguish "sold out" from "stock exists but is fragmented".
func (s *Service) PlanReservation(ctx context.Context, variantID uuid.UUID, qty int, preferPincode string) (*Plan, error) {
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	records, err := s.repo.ListForVariant(ctx, variantID)
	if err != nil {
		return nil, fmt.Errorf("list inventory for variant: %w", err)
	}

	available := 0
	for _, record := range records {
		available += record.Quantity - record.ReservedQty
	}
	if available < qty {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock for variant").
			WithDetails(map[string]any{"requested": qty, "available": available})
	}

	prefer := strings.TrimSpace(preferPincode)
	var fallback *models.InventoryRecord
	for i := range records {
		record := &records[i]
		if record.Quantity-record.ReservedQty < qty {
			continue
		}
		if prefer != "" && record.Location != nil && record.Location.Pincode == prefer {
			return planFromRecord(record), nil
		}
		if fallback == nil {
			fallback = record
		}
	}
	if fallback == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNoEligibleLocation, "no single location can fulfill the requested quantity").
			WithDetails(map[string]any{"requested": qty, "available": available})
	}
	return planFromRecord(fallback), nil
}

func planFromRecord(record *models.InventoryRecord) *Plan {
	plan := &Plan{RecordID: record.ID, LocationID: record.LocationID}
	if record.Location != nil {
		plan.Pincode = record.Location.Pincode
	}
	return plan
}

// Reserve takes the planned reservation inside tx. A zero-row guarded update
// means a concurrent order consumed the stock between planning and now.
func (s *Service) Reserve(ctx context.Context, tx *gorm.DB, recordID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	ok, err := s.repo.WithTx(tx).Reserve(ctx, recordID, qty)
	if err != nil {
		return fmt.Errorf("reserve inventory: %w", err)
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeConcurrentModification, "stock changed while reserving").
			WithDetails(map[string]any{"record_id": recordID, "requested": qty})
	}
	return nil
}

// Commit converts a held reservation into a sale.
func (s *Service) Commit(ctx context.Context, tx *gorm.DB, recordID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	ok, err := s.repo.WithTx(tx).Commit(ctx, recordID, qty)
	if err != nil {
		return fmt.Errorf("commit inventory: %w", err)
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "no matching reservation to commit").
			WithDetails(map[string]any{"record_id": recordID, "requested": qty})
	}
	return nil
}

// Release returns a held reservation to free stock.
func (s *Service) Release(ctx context.Context, tx *gorm.DB, recordID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	ok, err := s.repo.WithTx(tx).Release(ctx, recordID, qty)
	if err != nil {
		return fmt.Errorf("release inventory: %w", err)
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "no matching reservation to release").
			WithDetails(map[string]any{"record_id": recordID, "requested": qty})
	}
	return nil
}
