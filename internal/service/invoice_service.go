package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"facturador/internal/apperrors"
	"facturador/internal/dto"
	"facturador/internal/infra"
	"facturador/internal/model"
	"facturador/internal/repository"
	"facturador/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Post-authorization side effect step tags, recorded in event metadata so the
// repair path knows exactly what is still outstanding.
const (
	stepStockDeduction = "stock_deduction"
	stepAccountDebit   = "account_debit"
)

// InvoiceService drives the invoice lifecycle end to end: validate, total,
// persist pending, authorize against the fiscal authority, commit stock and
// ledger side effects, finalize. It is the only component that calls the
// fiscal client, the allocator and the two ledgers; they never call back.
type InvoiceService interface {
	Issue(ctx context.Context, userID uuid.UUID, req dto.CreateInvoiceRequest) (*dto.InvoiceResponse, error)
	Void(ctx context.Context, userID, id uuid.UUID, reason string) (*dto.InvoiceResponse, error)
	// Repair re-attempts the post-authorization side effects recorded as
	// outstanding by a partial_commit_inconsistency event.
	Repair(ctx context.Context, userID, id uuid.UUID) (*dto.RepairResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*dto.InvoiceResponse, error)
	List(ctx context.Context, filter dto.InvoiceFilter) (*dto.InvoiceListResponse, error)
	LastVoucher(ctx context.Context, pointOfSale int, voucherType string) (*dto.LastVoucherResponse, error)
}

type invoiceService struct {
	repo        repository.InvoiceRepository
	accountRepo repository.AccountRepository
	accounts    AccountService
	inventory   InventoryService
	fiscal      FiscalClient
	allocator   VoucherAllocator
	dispatcher  *worker.Dispatcher
	taxRate     decimal.Decimal // percentage, e.g. 21
	now         func() time.Time
}

func NewInvoiceService(
	repo repository.InvoiceRepository,
	accountRepo repository.AccountRepository,
	accounts AccountService,
	inventory InventoryService,
	fiscal FiscalClient,
	allocator VoucherAllocator,
	dispatcher *worker.Dispatcher,
	taxRatePct float64,
) InvoiceService {
	return &invoiceService{
		repo:        repo,
		accountRepo: accountRepo,
		accounts:    accounts,
		inventory:   inventory,
		fiscal:      fiscal,
		allocator:   allocator,
		dispatcher:  dispatcher,
		taxRate:     decimal.NewFromFloat(taxRatePct),
		now:         time.Now,
	}
}

// runTx executes fn inside a GORM transaction when db is available,
// or calls fn(nil) directly when db is nil (unit test mode).
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fn(nil)
	}
	return db.WithContext(ctx).Transaction(fn)
}

// Fiscal document type codes for buyer identification.
var buyerDocTypeCodes = map[string]int{
	"CUIT": 80,
	"CUIL": 86,
	"DNI":  96,
}

func buyerDocTypeCode(docType string) int {
	if code, ok := buyerDocTypeCodes[docType]; ok {
		return code
	}
	return 99 // final consumer
}

type resolvedLine struct {
	variantID   uuid.UUID
	sku         string
	description string
	quantity    int
	unitPrice   decimal.Decimal
	subtotal    decimal.Decimal
	tax         decimal.Decimal
	total       decimal.Decimal
}

// ── Issue ─────────────────────────────────────────────────────────────────────
// Sequence:
//  1. validate shape and buyer, fail before any mutation
//  2. availability check for every line, read-only
//  3. totals per line and aggregate, round-half-up to the minor unit
//  4. persist pending invoice + created event
//  5. allocate next voucher number and request authorization; on failure the
//     invoice goes to error and nothing else happens
//  6. only after authorization: deduct stock and debit the buyer's account.
//     An authorized document cannot be un-authorized, so a failure here is
//     recorded as an inconsistency on a completed invoice, not rolled back.

func (s *invoiceService) Issue(ctx context.Context, userID uuid.UUID, req dto.CreateInvoiceRequest) (*dto.InvoiceResponse, error) {
	voucherTypeCode, ok := infra.VoucherTypeCode(req.VoucherType)
	if !ok {
		return nil, apperrors.Validationf("unknown voucher type %q", req.VoucherType)
	}
	if req.PointOfSale < 1 || req.PointOfSale > 9998 {
		return nil, apperrors.Validationf("point of sale %d out of range", req.PointOfSale)
	}
	if len(req.Items) == 0 {
		return nil, apperrors.Validationf("invoice needs at least one line")
	}

	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		return nil, apperrors.Validationf("invalid account_id: %v", err)
	}
	account, err := s.accountRepo.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: account %s", apperrors.ErrNotFound, accountID)
		}
		return nil, err
	}
	if account.Status != model.AccountStatusActive {
		return nil, apperrors.Validationf("account %s is %s", account.ID, account.Status)
	}

	// Resolve lines and totals. Unit prices come from the catalog; each line
	// is rounded to two decimals before aggregation so that the sum of line
	// totals equals the invoice totals exactly.
	lines := make([]Line, 0, len(req.Items))
	resolved := make([]resolvedLine, 0, len(req.Items))
	subtotal := decimal.Zero
	tax := decimal.Zero
	total := decimal.Zero
	ratio := s.taxRate.Div(decimal.NewFromInt(100))

	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, apperrors.Validationf("line quantity must be positive")
		}
		vid, err := uuid.Parse(item.VariantID)
		if err != nil {
			return nil, apperrors.Validationf("invalid variant_id: %v", err)
		}
		v, err := s.inventory.GetVariant(ctx, vid)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil, apperrors.SkuNotFound(item.VariantID)
			}
			return nil, err
		}
		lineSubtotal := v.Price.Mul(decimal.NewFromInt(int64(item.Quantity))).Round(2)
		lineTax := lineSubtotal.Mul(ratio).Round(2)
		lineTotal := lineSubtotal.Add(lineTax)

		subtotal = subtotal.Add(lineSubtotal)
		tax = tax.Add(lineTax)
		total = total.Add(lineTotal)

		lines = append(lines, Line{VariantID: vid, Quantity: item.Quantity})
		resolved = append(resolved, resolvedLine{
			variantID:   vid,
			sku:         v.SKU,
			description: v.Description,
			quantity:    item.Quantity,
			unitPrice:   v.Price,
			subtotal:    lineSubtotal,
			tax:         lineTax,
			total:       lineTotal,
		})
	}

	// Availability check before anything is written: a missing SKU or a
	// short stock fails the request with zero cleanup needed.
	if err := s.inventory.CheckAvailability(ctx, lines); err != nil {
		return nil, err
	}

	// Best-effort credit preflight. The authoritative check runs under the
	// row lock in step 6, but catching an obvious overrun here avoids
	// burning a voucher number on a request that cannot settle.
	if account.CurrentBalance.Add(total).GreaterThan(account.CreditLimit) {
		return nil, apperrors.CreditLimitExceeded(account.ID)
	}

	// Persist the pending invoice with the buyer snapshot.
	inv := model.Invoice{
		VoucherType:    req.VoucherType,
		PointOfSale:    req.PointOfSale,
		AccountID:      account.ID,
		BuyerName:      account.Name,
		BuyerDocType:   account.DocumentType,
		BuyerDocNumber: account.DocumentNumber,
		BuyerAddress:   account.Address,
		Subtotal:       subtotal,
		Tax:            tax,
		Total:          total,
		Status:         model.InvoiceStatusPending,
	}
	for _, r := range resolved {
		inv.Items = append(inv.Items, model.InvoiceItem{
			VariantID:   r.variantID,
			Description: r.description,
			Quantity:    r.quantity,
			UnitPrice:   r.unitPrice,
			Subtotal:    r.subtotal,
			Tax:         r.tax,
			Total:       r.total,
		})
	}
	inv.Events = append(inv.Events, model.InvoiceEvent{
		Type:        model.EventCreated,
		Description: fmt.Sprintf("invoice created by %s", userID),
	})

	if err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		return s.repo.Create(ctx, tx, &inv)
	}); err != nil {
		return nil, err
	}

	// Authority interaction. The allocator re-derives the next number from
	// the authority on every issuance; the number actually persisted is the
	// one the authority echoes back.
	result, err := s.authorize(ctx, &inv, voucherTypeCode)
	if err != nil {
		s.markError(ctx, inv.ID, err)
		return nil, &apperrors.IssuanceFailed{InvoiceID: inv.ID, Err: err}
	}

	if err := s.repo.SetAuthorization(ctx, inv.ID, result.VoucherNumber, result.CAE, result.CAEExpiresAt); err != nil {
		// The authority already granted the CAE; losing it here would burn
		// the voucher number with no trace. Record the grant on the event
		// trail so the operator can recover it, then fail the workflow.
		cause := fmt.Errorf("authorization granted (CAE %s, voucher %d) but could not be persisted: %w",
			result.CAE, result.VoucherNumber, err)
		s.appendEvent(ctx, inv.ID, model.EventAuthorizationReceived,
			fmt.Sprintf("CAE %s, voucher %d (recovered from authority response)", result.CAE, result.VoucherNumber),
			result.Raw)
		s.markError(ctx, inv.ID, cause)
		return nil, &apperrors.IssuanceFailed{InvoiceID: inv.ID, Err: cause}
	}
	s.appendEvent(ctx, inv.ID, model.EventAuthorizationReceived,
		fmt.Sprintf("CAE %s, voucher %d", result.CAE, result.VoucherNumber), result.Raw)

	voucherRef := fmt.Sprintf("%s-%04d-%08d", inv.VoucherType, inv.PointOfSale, result.VoucherNumber)

	// Side effects. These run after authorization because the authority call
	// is the expensive non-idempotent step; stock and ledger writes are
	// local. A failure here leaves a completed invoice with an
	// inconsistency event for the operator repair path.
	sideErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		for _, r := range resolved {
			ref := voucherRef
			if _, err := s.inventory.AdjustTx(ctx, tx, r.variantID, -r.quantity,
				fmt.Sprintf("Invoice %s", voucherRef), &ref); err != nil {
				return err
			}
		}
		invoiceID := inv.ID
		_, err := s.accounts.PostTx(ctx, tx, Posting{
			AccountID:   account.ID,
			Direction:   model.DirectionDebit,
			Amount:      total,
			Description: fmt.Sprintf("Invoice %s", voucherRef),
			InvoiceID:   &invoiceID,
			CreatedBy:   userID,
		})
		return err
	})
	if sideErr != nil {
		log.Error().Err(sideErr).Str("invoice_id", inv.ID.String()).
			Msg("post-authorization side effects failed; invoice flagged for repair")
		s.flagInconsistency(ctx, inv.ID, []string{stepStockDeduction, stepAccountDebit}, sideErr)
	} else {
		for _, r := range resolved {
			s.inventory.NotifyStockChanged(ctx, r.variantID)
		}
	}

	s.dispatchPDF(ctx, inv.ID, account, req.SendEmail)
	return s.Get(ctx, inv.ID)
}

// authorize allocates the next voucher number and submits the request.
func (s *invoiceService) authorize(ctx context.Context, inv *model.Invoice, voucherTypeCode int) (*infra.AuthorizationResult, error) {
	number, err := s.allocator.NextNumber(ctx, inv.PointOfSale, voucherTypeCode)
	if err != nil {
		return nil, err
	}
	return s.fiscal.RequestAuthorization(ctx, infra.AuthorizationRequest{
		PointOfSale:     inv.PointOfSale,
		VoucherTypeCode: voucherTypeCode,
		BuyerDocType:    buyerDocTypeCode(inv.BuyerDocType),
		BuyerDocNumber:  inv.BuyerDocNumber,
		VoucherNumber:   number,
		Date:            s.now(),
		Net:             inv.Subtotal,
		Tax:             inv.Tax,
		Total:           inv.Total,
	})
}

// ── Void ──────────────────────────────────────────────────────────────────────
// A completed invoice is reversed with a credit note carrying the same
// amounts. The authority call comes first: if it fails the invoice stays
// completed and nothing moved. Only with the credit note in hand do the
// ledger reversal, stock restoration and status change run, atomically.

func (s *invoiceService) Void(ctx context.Context, userID, id uuid.UUID, reason string) (*dto.InvoiceResponse, error) {
	inv, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: invoice %s", apperrors.ErrNotFound, id)
		}
		return nil, err
	}
	if inv.Status != model.InvoiceStatusCompleted {
		return nil, fmt.Errorf("%w: invoice is %s, only completed invoices can be voided",
			apperrors.ErrInvalidState, inv.Status)
	}

	voucherTypeCode, _ := infra.VoucherTypeCode(inv.VoucherType)
	creditTypeCode, ok := infra.CreditNoteTypeCode(inv.VoucherType)
	if !ok {
		return nil, apperrors.Validationf("no credit note type for voucher type %q", inv.VoucherType)
	}

	number, err := s.allocator.NextNumber(ctx, inv.PointOfSale, creditTypeCode)
	if err != nil {
		return nil, err
	}
	result, err := s.fiscal.RequestAuthorization(ctx, infra.AuthorizationRequest{
		PointOfSale:     inv.PointOfSale,
		VoucherTypeCode: creditTypeCode,
		BuyerDocType:    buyerDocTypeCode(inv.BuyerDocType),
		BuyerDocNumber:  inv.BuyerDocNumber,
		VoucherNumber:   number,
		Date:            s.now(),
		Net:             inv.Subtotal,
		Tax:             inv.Tax,
		Total:           inv.Total,
		Related: []infra.RelatedVoucher{{
			TypeCode:    voucherTypeCode,
			PointOfSale: inv.PointOfSale,
			Number:      *inv.VoucherNumber,
		}},
	})
	if err != nil {
		return nil, err
	}

	creditRef := fmt.Sprintf("NC-%s-%04d-%08d", inv.VoucherType, inv.PointOfSale, result.VoucherNumber)
	meta, _ := json.Marshal(map[string]any{
		"reason":             reason,
		"credit_note_cae":    result.CAE,
		"credit_note_number": result.VoucherNumber,
		"authority_response": json.RawMessage(result.Raw),
	})

	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		if err := s.repo.AppendEventTx(tx, &model.InvoiceEvent{
			InvoiceID:   inv.ID,
			Type:        model.EventVoided,
			Description: fmt.Sprintf("voided with credit note %s: %s", creditRef, reason),
			Metadata:    meta,
		}); err != nil {
			return err
		}

		invoiceID := inv.ID
		if _, err := s.accounts.PostTx(ctx, tx, Posting{
			AccountID:   inv.AccountID,
			Direction:   model.DirectionCredit,
			Amount:      inv.Total,
			Description: fmt.Sprintf("Credit note %s", creditRef),
			InvoiceID:   &invoiceID,
			CreatedBy:   userID,
		}); err != nil {
			return err
		}

		for _, item := range inv.Items {
			ref := creditRef
			if _, err := s.inventory.AdjustTx(ctx, tx, item.VariantID, item.Quantity,
				fmt.Sprintf("Credit note %s", creditRef), &ref); err != nil {
				return err
			}
		}

		return s.repo.SetStatusTx(tx, inv.ID, model.InvoiceStatusVoided)
	})
	if txErr != nil {
		return nil, txErr
	}

	for _, item := range inv.Items {
		s.inventory.NotifyStockChanged(ctx, item.VariantID)
	}
	return s.Get(ctx, id)
}

// ── Repair ────────────────────────────────────────────────────────────────────

type inconsistencyMeta struct {
	Pending []string `json:"pending"`
	Reason  string   `json:"reason"`
}

type repairedMeta struct {
	Repaired []string `json:"repaired"`
}

func (s *invoiceService) Repair(ctx context.Context, userID, id uuid.UUID) (*dto.RepairResponse, error) {
	inv, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: invoice %s", apperrors.ErrNotFound, id)
		}
		return nil, err
	}
	if inv.Status != model.InvoiceStatusCompleted {
		return nil, fmt.Errorf("%w: only completed invoices can be repaired", apperrors.ErrInvalidState)
	}

	pending := pendingSteps(inv.Events)
	if len(pending) == 0 {
		return &dto.RepairResponse{InvoiceID: id.String(), Repaired: []string{}, Pending: []string{}}, nil
	}

	voucherRef := fmt.Sprintf("%s-%04d-%08d", inv.VoucherType, inv.PointOfSale, derefInt64(inv.VoucherNumber))

	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		for _, step := range pending {
			switch step {
			case stepStockDeduction:
				for _, item := range inv.Items {
					ref := voucherRef
					if _, err := s.inventory.AdjustTx(ctx, tx, item.VariantID, -item.Quantity,
						fmt.Sprintf("Invoice %s (repair)", voucherRef), &ref); err != nil {
						return err
					}
				}
			case stepAccountDebit:
				invoiceID := inv.ID
				if _, err := s.accounts.PostTx(ctx, tx, Posting{
					AccountID:   inv.AccountID,
					Direction:   model.DirectionDebit,
					Amount:      inv.Total,
					Description: fmt.Sprintf("Invoice %s (repair)", voucherRef),
					InvoiceID:   &invoiceID,
					CreatedBy:   userID,
				}); err != nil {
					return err
				}
			default:
				return apperrors.Validationf("unknown pending step %q", step)
			}
		}
		meta, _ := json.Marshal(repairedMeta{Repaired: pending})
		return s.repo.AppendEventTx(tx, &model.InvoiceEvent{
			InvoiceID:   inv.ID,
			Type:        model.EventRepaired,
			Description: fmt.Sprintf("repaired by %s", userID),
			Metadata:    meta,
		})
	})
	if txErr != nil {
		return nil, txErr
	}

	for _, item := range inv.Items {
		s.inventory.NotifyStockChanged(ctx, item.VariantID)
	}
	return &dto.RepairResponse{InvoiceID: id.String(), Repaired: pending, Pending: []string{}}, nil
}

// pendingSteps folds the event sequence into the set of side effect steps
// still outstanding: inconsistency events add steps, repaired events remove
// them. Events arrive in creation order.
func pendingSteps(events []model.InvoiceEvent) []string {
	set := map[string]bool{}
	for _, ev := range events {
		switch ev.Type {
		case model.EventPartialCommitInconsistency:
			var meta inconsistencyMeta
			if err := json.Unmarshal(ev.Metadata, &meta); err == nil {
				for _, step := range meta.Pending {
					set[step] = true
				}
			}
		case model.EventRepaired:
			var meta repairedMeta
			if err := json.Unmarshal(ev.Metadata, &meta); err == nil {
				for _, step := range meta.Repaired {
					delete(set, step)
				}
			}
		}
	}
	// Stable order: stock first, then the ledger debit.
	var out []string
	for _, step := range []string{stepStockDeduction, stepAccountDebit} {
		if set[step] {
			out = append(out, step)
		}
	}
	return out
}

// ── Reads ─────────────────────────────────────────────────────────────────────

func (s *invoiceService) Get(ctx context.Context, id uuid.UUID) (*dto.InvoiceResponse, error) {
	inv, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: invoice %s", apperrors.ErrNotFound, id)
		}
		return nil, err
	}
	return invoiceToResponse(inv), nil
}

func (s *invoiceService) List(ctx context.Context, filter dto.InvoiceFilter) (*dto.InvoiceListResponse, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 || filter.Limit > 200 {
		filter.Limit = 50
	}
	invoices, totalCount, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	items := make([]dto.InvoiceResponse, 0, len(invoices))
	for i := range invoices {
		items = append(items, *invoiceToResponse(&invoices[i]))
	}
	return &dto.InvoiceListResponse{
		Data:  items,
		Total: totalCount,
		Page:  filter.Page,
		Limit: filter.Limit,
	}, nil
}

func (s *invoiceService) LastVoucher(ctx context.Context, pointOfSale int, voucherType string) (*dto.LastVoucherResponse, error) {
	code, ok := infra.VoucherTypeCode(voucherType)
	if !ok {
		return nil, apperrors.Validationf("unknown voucher type %q", voucherType)
	}
	last, err := s.fiscal.LastVoucherNumber(ctx, pointOfSale, code)
	if err != nil {
		return nil, err
	}
	return &dto.LastVoucherResponse{
		PointOfSale: pointOfSale,
		VoucherType: voucherType,
		LastNumber:  last,
	}, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func (s *invoiceService) markError(ctx context.Context, id uuid.UUID, cause error) {
	if err := s.repo.SetError(ctx, id, cause.Error()); err != nil {
		log.Error().Err(err).Str("invoice_id", id.String()).Msg("failed to record invoice error state")
	}
	s.appendEvent(ctx, id, model.EventError, cause.Error(), nil)
}

func (s *invoiceService) flagInconsistency(ctx context.Context, id uuid.UUID, pending []string, cause error) {
	meta, _ := json.Marshal(inconsistencyMeta{Pending: pending, Reason: cause.Error()})
	s.appendEvent(ctx, id, model.EventPartialCommitInconsistency,
		"post-authorization side effects incomplete", meta)
}

func (s *invoiceService) appendEvent(ctx context.Context, id uuid.UUID, evType, description string, metadata json.RawMessage) {
	ev := &model.InvoiceEvent{
		InvoiceID:   id,
		Type:        evType,
		Description: description,
		Metadata:    metadata,
	}
	if err := s.repo.AppendEvent(ctx, ev); err != nil {
		log.Error().Err(err).Str("invoice_id", id.String()).Str("event", evType).
			Msg("failed to append invoice event")
	}
}

func (s *invoiceService) dispatchPDF(ctx context.Context, id uuid.UUID, account *model.Account, sendEmail bool) {
	if s.dispatcher == nil {
		return
	}
	payload := worker.InvoicePDFPayload{InvoiceID: id.String()}
	if sendEmail && account.Email != nil && *account.Email != "" {
		payload.EmailTo = *account.Email
	}
	if err := s.dispatcher.EnqueueInvoicePDF(ctx, payload); err != nil {
		log.Warn().Err(err).Str("invoice_id", id.String()).Msg("failed to enqueue PDF job")
	}
}

func derefInt64(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}

func invoiceToResponse(inv *model.Invoice) *dto.InvoiceResponse {
	items := make([]dto.InvoiceItemResponse, 0, len(inv.Items))
	for _, item := range inv.Items {
		items = append(items, dto.InvoiceItemResponse{
			VariantID:   item.VariantID.String(),
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Subtotal:    item.Subtotal,
			Tax:         item.Tax,
			Total:       item.Total,
		})
	}
	events := make([]dto.InvoiceEventResponse, 0, len(inv.Events))
	for _, ev := range inv.Events {
		var meta any
		if len(ev.Metadata) > 0 {
			_ = json.Unmarshal(ev.Metadata, &meta)
		}
		events = append(events, dto.InvoiceEventResponse{
			Type:        ev.Type,
			Description: ev.Description,
			Metadata:    meta,
			CreatedAt:   ev.CreatedAt.Format("2006-01-02T15:04:05Z"),
		})
	}

	resp := &dto.InvoiceResponse{
		ID:             inv.ID.String(),
		VoucherType:    inv.VoucherType,
		PointOfSale:    inv.PointOfSale,
		VoucherNumber:  inv.VoucherNumber,
		AccountID:      inv.AccountID.String(),
		BuyerName:      inv.BuyerName,
		BuyerDocType:   inv.BuyerDocType,
		BuyerDocNumber: inv.BuyerDocNumber,
		Subtotal:       inv.Subtotal,
		Tax:            inv.Tax,
		Total:          inv.Total,
		Status:         inv.Status,
		ErrorMessage:   inv.ErrorMessage,
		Items:          items,
		Events:         events,
		CreatedAt:      inv.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
	resp.CAE = inv.CAE
	if inv.CAEExpiresAt != nil {
		exp := inv.CAEExpiresAt.Format("2006-01-02")
		resp.CAEExpiresAt = &exp
	}
	if inv.PDFPath != nil {
		url := fmt.Sprintf("/v1/invoices/%s/pdf", inv.ID)
		resp.PDFUrl = &url
	}
	return resp
}
