package service

import (
	"context"
	"errors"
	"fmt"

	"facturador/internal/apperrors"
	"facturador/internal/dto"
	"facturador/internal/model"
	"facturador/internal/repository"
	"facturador/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Line is one (variant, quantity) pair of an issuance request, used by the
// availability check and the stock deduction path.
type Line struct {
	VariantID uuid.UUID
	Quantity  int
}

// InventoryService is the stock ledger: every change to a variant's stock
// goes through AdjustTx, which pairs the conditional update with one
// StockMovement row so replaying movements reproduces the current count.
type InventoryService interface {
	// CheckAvailability validates each line's variant exists with enough
	// stock. Pure read, no mutation; run before anything is persisted so
	// failures are cheap.
	CheckAvailability(ctx context.Context, lines []Line) error

	// AdjustTx applies a signed stock delta inside the caller's transaction.
	// Negative deducts, positive restores. Fails with InsufficientStock when
	// the delta would drive stock below zero; in that case nothing is written.
	AdjustTx(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, delta int, description string, documentRef *string) (*model.StockMovement, error)

	// Adjust is the standalone operator-facing adjustment: runs AdjustTx in
	// its own transaction and emits the stock-changed notification.
	Adjust(ctx context.Context, variantID uuid.UUID, req dto.AdjustStockRequest) (*dto.MovementResponse, error)

	// NotifyStockChanged enqueues a {sku, new_quantity} notification for the
	// downstream catalog mirrors. Best effort: enqueue failures are logged
	// and swallowed, never propagated to the calling workflow.
	NotifyStockChanged(ctx context.Context, variantID uuid.UUID)

	ListMovements(ctx context.Context, variantID uuid.UUID, limit int) ([]dto.MovementResponse, error)
	GetVariant(ctx context.Context, id uuid.UUID) (*dto.VariantResponse, error)
	GetVariantBySKU(ctx context.Context, sku string) (*dto.VariantResponse, error)
}

type inventoryService struct {
	repo       repository.VariantRepository
	dispatcher *worker.Dispatcher
}

func NewInventoryService(repo repository.VariantRepository, dispatcher *worker.Dispatcher) InventoryService {
	return &inventoryService{repo: repo, dispatcher: dispatcher}
}

func (s *inventoryService) CheckAvailability(ctx context.Context, lines []Line) error {
	for _, line := range lines {
		v, err := s.repo.FindByID(ctx, line.VariantID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.SkuNotFound(line.VariantID.String())
			}
			return err
		}
		if v.Stock < line.Quantity {
			return apperrors.InsufficientStock(v.SKU, v.Stock, line.Quantity)
		}
	}
	return nil
}

func (s *inventoryService) AdjustTx(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, delta int, description string, documentRef *string) (*model.StockMovement, error) {
	if delta == 0 {
		return nil, apperrors.Validationf("stock delta must be non-zero")
	}

	v, err := s.repo.FindByID(ctx, variantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.SkuNotFound(variantID.String())
		}
		return nil, err
	}

	// Conditional update: the WHERE clause re-checks the precondition at
	// write time, so two concurrent deductions on the same variant cannot
	// both pass a stale read. Zero rows affected means the precondition
	// failed under the current stock.
	affected, err := s.repo.AdjustStockTx(tx, variantID, delta)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, apperrors.InsufficientStock(v.SKU, v.Stock, -delta)
	}

	after, err := s.repo.StockTx(tx, variantID)
	if err != nil {
		return nil, err
	}

	direction := model.MovementIn
	quantity := delta
	if delta < 0 {
		direction = model.MovementOut
		quantity = -delta
	}
	mov := &model.StockMovement{
		VariantID:   variantID,
		Direction:   direction,
		Quantity:    quantity,
		StockBefore: after - delta,
		StockAfter:  after,
		Description: description,
		DocumentRef: documentRef,
	}
	if err := s.repo.CreateMovementTx(tx, mov); err != nil {
		return nil, err
	}
	return mov, nil
}

func (s *inventoryService) Adjust(ctx context.Context, variantID uuid.UUID, req dto.AdjustStockRequest) (*dto.MovementResponse, error) {
	var mov *model.StockMovement
	err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		var txErr error
		mov, txErr = s.AdjustTx(ctx, tx, variantID, req.Quantity, req.Description, req.DocumentRef)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	s.NotifyStockChanged(ctx, variantID)
	return movementToResponse(mov), nil
}

func (s *inventoryService) NotifyStockChanged(ctx context.Context, variantID uuid.UUID) {
	if s.dispatcher == nil {
		return
	}
	v, err := s.repo.FindByID(ctx, variantID)
	if err != nil {
		log.Warn().Err(err).Str("variant_id", variantID.String()).Msg("stock notification skipped: variant lookup failed")
		return
	}
	payload := worker.StockSyncPayload{SKU: v.SKU, NewQuantity: v.Stock}
	if err := s.dispatcher.EnqueueStockSync(ctx, payload); err != nil {
		log.Warn().Err(err).Str("sku", v.SKU).Msg("failed to enqueue stock notification")
	}
}

func (s *inventoryService) ListMovements(ctx context.Context, variantID uuid.UUID, limit int) ([]dto.MovementResponse, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}
	movs, err := s.repo.ListMovements(ctx, variantID, limit)
	if err != nil {
		return nil, err
	}
	resp := make([]dto.MovementResponse, 0, len(movs))
	for i := range movs {
		resp = append(resp, *movementToResponse(&movs[i]))
	}
	return resp, nil
}

func (s *inventoryService) GetVariant(ctx context.Context, id uuid.UUID) (*dto.VariantResponse, error) {
	v, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: variant %s", apperrors.ErrNotFound, id)
		}
		return nil, err
	}
	return variantToResponse(v), nil
}

func (s *inventoryService) GetVariantBySKU(ctx context.Context, sku string) (*dto.VariantResponse, error) {
	v, err := s.repo.FindBySKU(ctx, sku)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.SkuNotFound(sku)
		}
		return nil, err
	}
	return variantToResponse(v), nil
}

func variantToResponse(v *model.ProductVariant) *dto.VariantResponse {
	desc := fmt.Sprintf("%s / %s", v.Size, v.Color)
	if v.Product != nil {
		desc = fmt.Sprintf("%s %s %s", v.Product.Name, v.Size, v.Color)
	}
	return &dto.VariantResponse{
		ID:          v.ID.String(),
		ProductID:   v.ProductID.String(),
		SKU:         v.SKU,
		Description: desc,
		Price:       v.Price,
		Stock:       v.Stock,
	}
}

func movementToResponse(m *model.StockMovement) *dto.MovementResponse {
	return &dto.MovementResponse{
		ID:          m.ID.String(),
		VariantID:   m.VariantID.String(),
		Direction:   m.Direction,
		Quantity:    m.Quantity,
		StockBefore: m.StockBefore,
		StockAfter:  m.StockAfter,
		Description: m.Description,
		DocumentRef: m.DocumentRef,
		CreatedAt:   m.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}
