package models

import (
	"time"

	"github.com/google/uuid"
)

// InventoryLocation is a warehouse stock can be reserved from.
type InventoryLocation struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	Pincode   string    `gorm:"column:pincode;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// InventoryRecord tracks on-hand and reserved counts per (variant, location).
// Invariant: 0 <= reserved_qty <= quantity. Only the inventory ledger mutates
// these rows, always through guarded conditional updates.
type InventoryRecord struct {
	ID          uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	VariantID   uuid.UUID          `gorm:"column:variant_id;type:uuid;not null;uniqueIndex:idx_inventory_variant_location"`
	LocationID  uuid.UUID          `gorm:"column:location_id;type:uuid;not null;uniqueIndex:idx_inventory_variant_location"`
	Quantity    int                `gorm:"column:quantity;not null;default:0"`
	ReservedQty int                `gorm:"column:reserved_qty;not null;default:0"`
	Location    *InventoryLocation `gorm:"foreignKey:LocationID"`
	CreatedAt   time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
