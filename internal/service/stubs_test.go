package service

import (
	"context"
	"sync"
	"time"

	"facturador/internal/dto"
	"facturador/internal/infra"
	"facturador/internal/model"
	"facturador/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ── Stubs ─────────────────────────────────────────────────────────────────────
// In-memory repository implementations. Tx parameters are ignored: services
// run their transaction closures with a nil *gorm.DB in unit test mode. All
// stubs lock around their maps so concurrency tests can drive them from
// multiple goroutines.

type stubInvoiceRepo struct {
	mu       sync.Mutex
	invoices map[uuid.UUID]*model.Invoice
	// failSetAuthorization, when set, fails the authorization persistence
	// step after the authority has already granted a CAE.
	failSetAuthorization error
}

func newStubInvoiceRepo() *stubInvoiceRepo {
	return &stubInvoiceRepo{invoices: make(map[uuid.UUID]*model.Invoice)}
}

func (r *stubInvoiceRepo) Create(_ context.Context, _ *gorm.DB, inv *model.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	inv.CreatedAt = time.Now()
	for i := range inv.Items {
		inv.Items[i].InvoiceID = inv.ID
	}
	for i := range inv.Events {
		inv.Events[i].InvoiceID = inv.ID
	}
	r.invoices[inv.ID] = inv
	return nil
}

func (r *stubInvoiceRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	snapshot := *inv
	return &snapshot, nil
}

func (r *stubInvoiceRepo) List(_ context.Context, filter dto.InvoiceFilter) ([]model.Invoice, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Invoice
	for _, inv := range r.invoices {
		if filter.Status != "" && inv.Status != filter.Status {
			continue
		}
		out = append(out, *inv)
	}
	return out, int64(len(out)), nil
}

func (r *stubInvoiceRepo) SetAuthorization(_ context.Context, id uuid.UUID, voucherNumber int64, cae string, caeExpiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failSetAuthorization != nil {
		return r.failSetAuthorization
	}
	inv, ok := r.invoices[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	inv.VoucherNumber = &voucherNumber
	inv.CAE = &cae
	inv.CAEExpiresAt = &caeExpiresAt
	inv.Status = model.InvoiceStatusCompleted
	return nil
}

func (r *stubInvoiceRepo) SetError(_ context.Context, id uuid.UUID, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	inv.Status = model.InvoiceStatusError
	inv.ErrorMessage = &message
	return nil
}

func (r *stubInvoiceRepo) SetStatus(_ context.Context, id uuid.UUID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	inv.Status = status
	return nil
}

func (r *stubInvoiceRepo) SetStatusTx(_ *gorm.DB, id uuid.UUID, status string) error {
	return r.SetStatus(context.Background(), id, status)
}

func (r *stubInvoiceRepo) SetPDFPath(_ context.Context, id uuid.UUID, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	inv.PDFPath = &path
	return nil
}

func (r *stubInvoiceRepo) AppendEvent(_ context.Context, ev *model.InvoiceEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[ev.InvoiceID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	ev.CreatedAt = time.Now()
	inv.Events = append(inv.Events, *ev)
	return nil
}

func (r *stubInvoiceRepo) AppendEventTx(_ *gorm.DB, ev *model.InvoiceEvent) error {
	return r.AppendEvent(context.Background(), ev)
}

func (r *stubInvoiceRepo) DB() *gorm.DB { return nil }

var _ repository.InvoiceRepository = (*stubInvoiceRepo)(nil)

type stubAccountRepo struct {
	mu           sync.Mutex
	accounts     map[uuid.UUID]*model.Account
	transactions []model.AccountTransaction
	// forUpdateBalance, when set, overrides the balance seen under the row
	// lock to simulate a concurrent writer between preflight and posting.
	forUpdateBalance *decimal.Decimal
}

func newStubAccountRepo() *stubAccountRepo {
	return &stubAccountRepo{accounts: make(map[uuid.UUID]*model.Account)}
}

func (r *stubAccountRepo) add(a *model.Account) *model.Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	r.accounts[a.ID] = a
	return a
}

func (r *stubAccountRepo) Create(_ context.Context, a *model.Account) error {
	r.add(a)
	return nil
}

func (r *stubAccountRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	snapshot := *a
	return &snapshot, nil
}

func (r *stubAccountRepo) FindByIDForUpdate(_ *gorm.DB, id uuid.UUID) (*model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	locked := *a
	if r.forUpdateBalance != nil {
		locked.CurrentBalance = *r.forUpdateBalance
	}
	return &locked, nil
}

func (r *stubAccountRepo) FindByDocument(_ context.Context, docType, docNumber string) (*model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.DocumentType == docType && a.DocumentNumber == docNumber {
			return a, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubAccountRepo) List(_ context.Context, status string) ([]model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Account
	for _, a := range r.accounts {
		if status != "" && a.Status != status {
			continue
		}
		out = append(out, *a)
	}
	return out, nil
}

func (r *stubAccountRepo) Update(_ context.Context, a *model.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[a.ID] = a
	return nil
}

func (r *stubAccountRepo) CreateTransactionTx(_ *gorm.DB, t *model.AccountTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	r.transactions = append(r.transactions, *t)
	return nil
}

func (r *stubAccountRepo) UpdateBalanceTx(_ *gorm.DB, id uuid.UUID, balance decimal.Decimal, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	a.CurrentBalance = balance
	a.LastTransactionAt = &at
	return nil
}

func (r *stubAccountRepo) ListTransactions(_ context.Context, accountID uuid.UUID, from, to *time.Time) ([]model.AccountTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.AccountTransaction
	for _, t := range r.transactions {
		if t.AccountID != accountID {
			continue
		}
		if from != nil && t.CreatedAt.Before(*from) {
			continue
		}
		if to != nil && t.CreatedAt.After(*to) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *stubAccountRepo) DB() *gorm.DB { return nil }

var _ repository.AccountRepository = (*stubAccountRepo)(nil)

type stubVariantRepo struct {
	mu        sync.Mutex
	variants  map[uuid.UUID]*model.ProductVariant
	movements []model.StockMovement
	// failAdjust makes every AdjustStockTx return an error, simulating a
	// write failure inside the side-effect transaction.
	failAdjust error
}

func newStubVariantRepo() *stubVariantRepo {
	return &stubVariantRepo{variants: make(map[uuid.UUID]*model.ProductVariant)}
}

func (r *stubVariantRepo) add(v *model.ProductVariant) *model.ProductVariant {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	r.variants[v.ID] = v
	return v
}

func (r *stubVariantRepo) FindByID(_ context.Context, id uuid.UUID) (*model.ProductVariant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.variants[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	snapshot := *v
	return &snapshot, nil
}

func (r *stubVariantRepo) FindBySKU(_ context.Context, sku string) (*model.ProductVariant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.variants {
		if v.SKU == sku {
			snapshot := *v
			return &snapshot, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubVariantRepo) AdjustStockTx(_ *gorm.DB, id uuid.UUID, delta int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAdjust != nil {
		return 0, r.failAdjust
	}
	v, ok := r.variants[id]
	if !ok {
		return 0, nil
	}
	if v.Stock+delta < 0 {
		return 0, nil
	}
	v.Stock += delta
	return 1, nil
}

func (r *stubVariantRepo) StockTx(_ *gorm.DB, id uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.variants[id]
	if !ok {
		return 0, gorm.ErrRecordNotFound
	}
	return v.Stock, nil
}

func (r *stubVariantRepo) CreateMovementTx(_ *gorm.DB, m *model.StockMovement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.CreatedAt = time.Now()
	r.movements = append(r.movements, *m)
	return nil
}

func (r *stubVariantRepo) ListMovements(_ context.Context, variantID uuid.UUID, limit int) ([]model.StockMovement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.StockMovement
	for _, m := range r.movements {
		if m.VariantID == variantID {
			out = append(out, m)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *stubVariantRepo) DB() *gorm.DB { return nil }

var _ repository.VariantRepository = (*stubVariantRepo)(nil)

// stubFiscalClient scripts the authority's behavior per test.
type stubFiscalClient struct {
	lastNumber int64
	lastErr    error
	authErr    error
	// echoNumber, when non-zero, is returned instead of the requested
	// number, mimicking the authority as the final arbiter of numbering.
	echoNumber int64
	cae        string
	caeExpiry  time.Time
	requests   []infra.AuthorizationRequest
}

func (f *stubFiscalClient) LastVoucherNumber(_ context.Context, _, _ int) (int64, error) {
	if f.lastErr != nil {
		return 0, f.lastErr
	}
	return f.lastNumber, nil
}

func (f *stubFiscalClient) RequestAuthorization(_ context.Context, ar infra.AuthorizationRequest) (*infra.AuthorizationResult, error) {
	f.requests = append(f.requests, ar)
	if f.authErr != nil {
		return nil, f.authErr
	}
	number := ar.VoucherNumber
	if f.echoNumber != 0 {
		number = f.echoNumber
	}
	cae := f.cae
	if cae == "" {
		cae = "71234567890123"
	}
	expiry := f.caeExpiry
	if expiry.IsZero() {
		expiry = time.Now().AddDate(0, 0, 10)
	}
	return &infra.AuthorizationResult{
		CAE:           cae,
		CAEExpiresAt:  expiry,
		VoucherNumber: number,
		Raw:           []byte(`{"Resultado":"A"}`),
	}, nil
}

var _ FiscalClient = (*stubFiscalClient)(nil)
