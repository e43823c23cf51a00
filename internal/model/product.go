package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product groups sellable variants. Catalog CRUD is handled by a separate
// admin surface; this backend only reads products when invoicing.
type Product struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Code        string    `gorm:"uniqueIndex;not null"`
	Name        string    `gorm:"not null"`
	Description *string   `gorm:"type:text"`
	Category    string
	Brand       *string
	Active      bool `gorm:"not null;default:true"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Variants []ProductVariant `gorm:"foreignKey:ProductID"`
}

// ProductVariant is one stock-keeping unit (size/color combination).
// Stock is never negative; every change goes through the inventory ledger,
// which pairs the update with a StockMovement row.
type ProductVariant struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ProductID uuid.UUID `gorm:"type:uuid;index;not null"`
	Size      string    `gorm:"not null"`
	Color     string    `gorm:"not null"`
	SKU       string    `gorm:"uniqueIndex;not null;column:sku"`
	Stock     int       `gorm:"not null;default:0"`
	Price     decimal.Decimal `gorm:"type:decimal(12,2);not null"`

	Product *Product `gorm:"foreignKey:ProductID"`
}

// Stock movement directions.
const (
	MovementIn  = "in"
	MovementOut = "out"
)

// StockMovement records one stock change on a variant, append-only.
// Quantity is always positive; Direction carries the sign.
type StockMovement struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	VariantID   uuid.UUID `gorm:"type:uuid;not null;index"`
	Direction   string    `gorm:"type:varchar(3);not null"`
	Quantity    int       `gorm:"not null"`
	StockBefore int       `gorm:"not null"`
	StockAfter  int       `gorm:"not null"`
	Description string
	// DocumentRef links the movement to the fiscal document that caused it
	DocumentRef *string
	CreatedAt   time.Time

	Variant *ProductVariant `gorm:"foreignKey:VariantID"`
}
