package repository

import (
	"context"

	"facturador/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// VariantRepository is the data access contract for SKUs and their stock
// movement journal.
type VariantRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.ProductVariant, error)
	FindBySKU(ctx context.Context, sku string) (*model.ProductVariant, error)

	// AdjustStockTx applies `stock = stock + delta` guarded by a
	// `stock + delta >= 0` precondition. Returns the number of rows updated:
	// 0 means the precondition failed (insufficient stock at commit time).
	AdjustStockTx(tx *gorm.DB, id uuid.UUID, delta int) (int64, error)
	// StockTx re-reads the stock level inside the transaction.
	StockTx(tx *gorm.DB, id uuid.UUID) (int, error)
	CreateMovementTx(tx *gorm.DB, m *model.StockMovement) error

	ListMovements(ctx context.Context, variantID uuid.UUID, limit int) ([]model.StockMovement, error)

	// DB exposes the underlying *gorm.DB so services can open transactions.
	DB() *gorm.DB
}

type variantRepo struct{ db *gorm.DB }

func NewVariantRepository(db *gorm.DB) VariantRepository { return &variantRepo{db: db} }

func (r *variantRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.ProductVariant, error) {
	var v model.ProductVariant
	err := r.db.WithContext(ctx).Preload("Product").First(&v, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *variantRepo) FindBySKU(ctx context.Context, sku string) (*model.ProductVariant, error) {
	var v model.ProductVariant
	err := r.db.WithContext(ctx).Preload("Product").Where("sku = ?", sku).First(&v).Error
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *variantRepo) AdjustStockTx(tx *gorm.DB, id uuid.UUID, delta int) (int64, error) {
	res := tx.Model(&model.ProductVariant{}).
		Where("id = ? AND stock + ? >= 0", id, delta).
		Update("stock", gorm.Expr("stock + ?", delta))
	return res.RowsAffected, res.Error
}

func (r *variantRepo) StockTx(tx *gorm.DB, id uuid.UUID) (int, error) {
	var stock int
	err := tx.Model(&model.ProductVariant{}).Where("id = ?", id).
		Pluck("stock", &stock).Error
	return stock, err
}

func (r *variantRepo) CreateMovementTx(tx *gorm.DB, m *model.StockMovement) error {
	return tx.Create(m).Error
}

func (r *variantRepo) ListMovements(ctx context.Context, variantID uuid.UUID, limit int) ([]model.StockMovement, error) {
	if limit <= 0 {
		limit = 100
	}
	var movements []model.StockMovement
	err := r.db.WithContext(ctx).
		Where("variant_id = ?", variantID).
		Order("created_at DESC").
		Limit(limit).
		Find(&movements).Error
	return movements, err
}

func (r *variantRepo) DB() *gorm.DB { return r.db }
