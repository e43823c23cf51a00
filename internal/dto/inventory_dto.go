package dto

import (
	"github.com/shopspring/decimal"
)

// AdjustStockRequest moves stock in or out of a variant. Quantity is signed:
// positive receives stock, negative consumes it.
type AdjustStockRequest struct {
	Quantity    int     `json:"quantity" validate:"required,ne=0"`
	Description string  `json:"description" validate:"required,max=200"`
	DocumentRef *string `json:"document_ref" validate:"omitempty,max=60"`
}

type VariantResponse struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"product_id"`
	SKU         string          `json:"sku"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
}

type MovementResponse struct {
	ID          string  `json:"id"`
	VariantID   string  `json:"variant_id"`
	Direction   string  `json:"direction"`
	Quantity    int     `json:"quantity"`
	StockBefore int     `json:"stock_before"`
	StockAfter  int     `json:"stock_after"`
	Description string  `json:"description"`
	DocumentRef *string `json:"document_ref,omitempty"`
	CreatedAt   string  `json:"created_at"`
}
