package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"facturador/internal/apperrors"
	"facturador/internal/dto"
	"facturador/internal/infra"
	"facturador/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type invoiceFixture struct {
	svc      InvoiceService
	invoices *stubInvoiceRepo
	accounts *stubAccountRepo
	variants *stubVariantRepo
	fiscal   *stubFiscalClient

	account *model.Account
	variant *model.ProductVariant
	userID  uuid.UUID
}

func newInvoiceFixture(t *testing.T) *invoiceFixture {
	t.Helper()

	invoices := newStubInvoiceRepo()
	accounts := newStubAccountRepo()
	variants := newStubVariantRepo()
	fiscal := &stubFiscalClient{lastNumber: 41}

	account := accounts.add(&model.Account{
		Name:           "Comercial Sur SA",
		DocumentType:   "CUIT",
		DocumentNumber: "30712345675",
		Kind:           model.AccountKindCustomer,
		CreditLimit:    decimal.NewFromInt(50000),
		CurrentBalance: decimal.Zero,
		Status:         model.AccountStatusActive,
	})
	variant := variants.add(&model.ProductVariant{
		ProductID: uuid.New(),
		Size:      "M",
		Color:     "negro",
		SKU:       "REM-M-NEG",
		Stock:     10,
		Price:     decimal.RequireFromString("5000.00"),
	})

	svc := NewInvoiceService(
		invoices,
		accounts,
		NewAccountService(accounts),
		NewInventoryService(variants, nil),
		fiscal,
		NewVoucherAllocator(fiscal),
		nil,
		21,
	)

	return &invoiceFixture{
		svc:      svc,
		invoices: invoices,
		accounts: accounts,
		variants: variants,
		fiscal:   fiscal,
		account:  account,
		variant:  variant,
		userID:   uuid.New(),
	}
}

func (f *invoiceFixture) issueRequest(quantity int) dto.CreateInvoiceRequest {
	return dto.CreateInvoiceRequest{
		AccountID:   f.account.ID.String(),
		VoucherType: model.VoucherTypeB,
		PointOfSale: 1,
		Items: []dto.InvoiceLineRequest{
			{VariantID: f.variant.ID.String(), Quantity: quantity},
		},
	}
}

func eventTypes(inv *model.Invoice) []string {
	types := make([]string, 0, len(inv.Events))
	for _, ev := range inv.Events {
		types = append(types, ev.Type)
	}
	return types
}

func TestIssueCompletesInvoice(t *testing.T) {
	f := newInvoiceFixture(t)

	resp, err := f.svc.Issue(context.Background(), f.userID, f.issueRequest(3))
	require.NoError(t, err)

	assert.Equal(t, model.InvoiceStatusCompleted, resp.Status)
	require.NotNil(t, resp.VoucherNumber)
	assert.Equal(t, int64(42), *resp.VoucherNumber)
	require.NotNil(t, resp.CAE)
	assert.NotEmpty(t, *resp.CAE)

	assert.True(t, resp.Subtotal.Equal(decimal.RequireFromString("15000.00")), "subtotal %s", resp.Subtotal)
	assert.True(t, resp.Tax.Equal(decimal.RequireFromString("3150.00")), "tax %s", resp.Tax)
	assert.True(t, resp.Total.Equal(decimal.RequireFromString("18150.00")), "total %s", resp.Total)

	id := uuid.MustParse(resp.ID)
	inv := f.invoices.invoices[id]
	require.NotNil(t, inv)
	assert.Equal(t, []string{model.EventCreated, model.EventAuthorizationReceived}, eventTypes(inv))
	assert.Equal(t, f.account.Name, inv.BuyerName)
	assert.Equal(t, "CUIT", inv.BuyerDocType)

	// Stock moved out and the movement references the voucher.
	assert.Equal(t, 7, f.variant.Stock)
	require.Len(t, f.variants.movements, 1)
	mov := f.variants.movements[0]
	assert.Equal(t, model.MovementOut, mov.Direction)
	assert.Equal(t, 3, mov.Quantity)
	assert.Equal(t, 10, mov.StockBefore)
	assert.Equal(t, 7, mov.StockAfter)
	require.NotNil(t, mov.DocumentRef)
	assert.Equal(t, "B-0001-00000042", *mov.DocumentRef)

	// Buyer debited for the invoice total.
	require.Len(t, f.accounts.transactions, 1)
	tx := f.accounts.transactions[0]
	assert.Equal(t, model.DirectionDebit, tx.Direction)
	assert.True(t, tx.Amount.Equal(decimal.RequireFromString("18150.00")))
	assert.True(t, tx.BalanceAfter.Equal(decimal.RequireFromString("18150.00")))
	require.NotNil(t, tx.InvoiceID)
	assert.Equal(t, id, *tx.InvoiceID)
	assert.True(t, f.account.CurrentBalance.Equal(decimal.RequireFromString("18150.00")))

	// Authority saw the allocated number and the buyer's document code.
	require.Len(t, f.fiscal.requests, 1)
	ar := f.fiscal.requests[0]
	assert.Equal(t, int64(42), ar.VoucherNumber)
	assert.Equal(t, 6, ar.VoucherTypeCode)
	assert.Equal(t, 80, ar.BuyerDocType)
	assert.True(t, ar.Total.Equal(resp.Total))
}

func TestIssueRoundsLineTaxHalfUp(t *testing.T) {
	f := newInvoiceFixture(t)
	f.variant.Price = decimal.RequireFromString("12.50")

	resp, err := f.svc.Issue(context.Background(), f.userID, f.issueRequest(1))
	require.NoError(t, err)

	// 12.50 * 21% = 2.625, which rounds up to 2.63.
	assert.True(t, resp.Tax.Equal(decimal.RequireFromString("2.63")), "tax %s", resp.Tax)
	assert.True(t, resp.Total.Equal(decimal.RequireFromString("15.13")), "total %s", resp.Total)
}

func TestIssueUsesAuthorityEchoedNumber(t *testing.T) {
	f := newInvoiceFixture(t)
	f.fiscal.echoNumber = 50

	resp, err := f.svc.Issue(context.Background(), f.userID, f.issueRequest(1))
	require.NoError(t, err)

	require.NotNil(t, resp.VoucherNumber)
	assert.Equal(t, int64(50), *resp.VoucherNumber)
}

func TestIssueRejectsInsufficientStock(t *testing.T) {
	f := newInvoiceFixture(t)

	_, err := f.svc.Issue(context.Background(), f.userID, f.issueRequest(11))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInsufficientStock)

	// Nothing persisted: the availability check runs before any write.
	assert.Empty(t, f.invoices.invoices)
	assert.Empty(t, f.variants.movements)
	assert.Empty(t, f.accounts.transactions)
	assert.Empty(t, f.fiscal.requests)
}

func TestIssueRejectsUnknownVariant(t *testing.T) {
	f := newInvoiceFixture(t)
	req := f.issueRequest(1)
	req.Items[0].VariantID = uuid.NewString()

	_, err := f.svc.Issue(context.Background(), f.userID, req)
	assert.ErrorIs(t, err, apperrors.ErrSkuNotFound)
	assert.Empty(t, f.invoices.invoices)
}

func TestIssueRejectsInactiveAccount(t *testing.T) {
	f := newInvoiceFixture(t)
	f.account.Status = model.AccountStatusSuspended

	_, err := f.svc.Issue(context.Background(), f.userID, f.issueRequest(1))
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Empty(t, f.invoices.invoices)
}

func TestIssueCreditPreflightAvoidsVoucherBurn(t *testing.T) {
	f := newInvoiceFixture(t)
	f.account.CurrentBalance = decimal.NewFromInt(48000)

	// 48000 + 18150 > 50000: rejected before the invoice exists and before
	// any authority call, so no voucher number is consumed.
	_, err := f.svc.Issue(context.Background(), f.userID, f.issueRequest(3))
	assert.ErrorIs(t, err, apperrors.ErrCreditLimitExceeded)
	assert.Empty(t, f.invoices.invoices)
	assert.Empty(t, f.fiscal.requests)
}

func TestIssueAuthorityFailureMarksError(t *testing.T) {
	f := newInvoiceFixture(t)
	f.fiscal.authErr = apperrors.AuthorityUnreachable(errors.New("connection timed out"))

	_, err := f.svc.Issue(context.Background(), f.userID, f.issueRequest(3))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrAuthorityUnreachable)

	// The error carries the invoice ID so the caller can surface it.
	var failed *apperrors.IssuanceFailed
	require.ErrorAs(t, err, &failed)
	inv := f.invoices.invoices[failed.InvoiceID]
	require.NotNil(t, inv)

	assert.Equal(t, model.InvoiceStatusError, inv.Status)
	require.NotNil(t, inv.ErrorMessage)
	assert.Contains(t, *inv.ErrorMessage, "unreachable")
	assert.Equal(t, []string{model.EventCreated, model.EventError}, eventTypes(inv))
	assert.Nil(t, inv.VoucherNumber)

	// No side effects on a failed authorization.
	assert.Equal(t, 10, f.variant.Stock)
	assert.Empty(t, f.variants.movements)
	assert.Empty(t, f.accounts.transactions)
}

func TestIssueAuthorityRejectionMarksError(t *testing.T) {
	f := newInvoiceFixture(t)
	f.fiscal.authErr = apperrors.AuthorityRejected("10016: invalid voucher number")

	_, err := f.svc.Issue(context.Background(), f.userID, f.issueRequest(1))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrAuthorityRejected)

	var failed *apperrors.IssuanceFailed
	require.ErrorAs(t, err, &failed)
	inv := f.invoices.invoices[failed.InvoiceID]
	require.NotNil(t, inv)
	assert.Equal(t, model.InvoiceStatusError, inv.Status)
	require.NotNil(t, inv.ErrorMessage)
	assert.Contains(t, *inv.ErrorMessage, "10016")
}

func TestIssueSideEffectFailureFlagsInconsistency(t *testing.T) {
	f := newInvoiceFixture(t)
	f.variants.failAdjust = errors.New("deadlock detected")

	resp, err := f.svc.Issue(context.Background(), f.userID, f.issueRequest(3))
	require.NoError(t, err)

	// The authority approved, so the invoice stays completed; the failed
	// local writes are recorded for the operator repair path.
	assert.Equal(t, model.InvoiceStatusCompleted, resp.Status)
	id := uuid.MustParse(resp.ID)
	inv := f.invoices.invoices[id]
	require.NotNil(t, inv)
	assert.Equal(t,
		[]string{model.EventCreated, model.EventAuthorizationReceived, model.EventPartialCommitInconsistency},
		eventTypes(inv))
	assert.Equal(t, []string{stepStockDeduction, stepAccountDebit}, pendingSteps(inv.Events))

	assert.Equal(t, 10, f.variant.Stock)
	assert.Empty(t, f.accounts.transactions)

	// Repair completes the outstanding steps once the fault clears.
	f.variants.failAdjust = nil
	rep, err := f.svc.Repair(context.Background(), f.userID, id)
	require.NoError(t, err)
	assert.Equal(t, []string{stepStockDeduction, stepAccountDebit}, rep.Repaired)
	assert.Empty(t, rep.Pending)

	assert.Equal(t, 7, f.variant.Stock)
	require.Len(t, f.accounts.transactions, 1)
	assert.True(t, f.accounts.transactions[0].Amount.Equal(resp.Total))
	assert.Equal(t, model.EventRepaired, inv.Events[len(inv.Events)-1].Type)
	assert.Empty(t, pendingSteps(inv.Events))

	// A second repair is a no-op.
	rep, err = f.svc.Repair(context.Background(), f.userID, id)
	require.NoError(t, err)
	assert.Empty(t, rep.Repaired)
	assert.Equal(t, 7, f.variant.Stock)
	assert.Len(t, f.accounts.transactions, 1)
}

func TestRepairRequiresCompletedInvoice(t *testing.T) {
	f := newInvoiceFixture(t)
	f.fiscal.authErr = apperrors.AuthorityUnreachable(errors.New("down"))

	_, err := f.svc.Issue(context.Background(), f.userID, f.issueRequest(1))
	var failed *apperrors.IssuanceFailed
	require.ErrorAs(t, err, &failed)

	_, err = f.svc.Repair(context.Background(), f.userID, failed.InvoiceID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
}

func TestVoidRestoresStockAndBalance(t *testing.T) {
	f := newInvoiceFixture(t)

	resp, err := f.svc.Issue(context.Background(), f.userID, f.issueRequest(3))
	require.NoError(t, err)
	id := uuid.MustParse(resp.ID)

	voided, err := f.svc.Void(context.Background(), f.userID, id, "customer returned the goods")
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceStatusVoided, voided.Status)

	// Stock restored, ledger back to zero through a compensating credit.
	assert.Equal(t, 10, f.variant.Stock)
	assert.True(t, f.account.CurrentBalance.IsZero(), "balance %s", f.account.CurrentBalance)
	require.Len(t, f.accounts.transactions, 2)
	credit := f.accounts.transactions[1]
	assert.Equal(t, model.DirectionCredit, credit.Direction)
	assert.True(t, credit.Amount.Equal(resp.Total))
	assert.True(t, credit.BalanceAfter.IsZero())

	inv := f.invoices.invoices[id]
	assert.Equal(t,
		[]string{model.EventCreated, model.EventAuthorizationReceived, model.EventVoided},
		eventTypes(inv))

	// The credit note request references the original voucher.
	require.Len(t, f.fiscal.requests, 2)
	cn := f.fiscal.requests[1]
	assert.Equal(t, 8, cn.VoucherTypeCode)
	assert.True(t, cn.Total.Equal(resp.Total))
	require.Len(t, cn.Related, 1)
	assert.Equal(t, 6, cn.Related[0].TypeCode)
	assert.Equal(t, int64(42), cn.Related[0].Number)
}

func TestVoidRequiresCompletedInvoice(t *testing.T) {
	f := newInvoiceFixture(t)

	inv := &model.Invoice{
		VoucherType: model.VoucherTypeB,
		PointOfSale: 1,
		AccountID:   f.account.ID,
		Status:      model.InvoiceStatusPending,
	}
	require.NoError(t, f.invoices.Create(context.Background(), nil, inv))

	_, err := f.svc.Void(context.Background(), f.userID, inv.ID, "mistake")
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
}

func TestVoidTwiceFails(t *testing.T) {
	f := newInvoiceFixture(t)

	resp, err := f.svc.Issue(context.Background(), f.userID, f.issueRequest(1))
	require.NoError(t, err)
	id := uuid.MustParse(resp.ID)

	_, err = f.svc.Void(context.Background(), f.userID, id, "first")
	require.NoError(t, err)
	_, err = f.svc.Void(context.Background(), f.userID, id, "second")
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
}

func TestVoidAuthorityFailureLeavesInvoiceUntouched(t *testing.T) {
	f := newInvoiceFixture(t)

	resp, err := f.svc.Issue(context.Background(), f.userID, f.issueRequest(3))
	require.NoError(t, err)
	id := uuid.MustParse(resp.ID)

	f.fiscal.authErr = apperrors.AuthorityUnreachable(errors.New("gateway timeout"))
	_, err = f.svc.Void(context.Background(), f.userID, id, "customer returned the goods")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrAuthorityUnreachable)

	// Without a credit note nothing moves: still completed, stock still
	// deducted, debit still on the books.
	inv := f.invoices.invoices[id]
	assert.Equal(t, model.InvoiceStatusCompleted, inv.Status)
	assert.Equal(t, 7, f.variant.Stock)
	assert.Len(t, f.accounts.transactions, 1)
	assert.Equal(t, []string{model.EventCreated, model.EventAuthorizationReceived}, eventTypes(inv))
}

func TestVoidUnknownInvoice(t *testing.T) {
	f := newInvoiceFixture(t)

	_, err := f.svc.Void(context.Background(), f.userID, uuid.New(), "whatever")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestLastVoucher(t *testing.T) {
	f := newInvoiceFixture(t)
	f.fiscal.lastNumber = 128

	resp, err := f.svc.LastVoucher(context.Background(), 3, "A")
	require.NoError(t, err)
	assert.Equal(t, 3, resp.PointOfSale)
	assert.Equal(t, "A", resp.VoucherType)
	assert.Equal(t, int64(128), resp.LastNumber)

	_, err = f.svc.LastVoucher(context.Background(), 3, "X")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestListFiltersByStatus(t *testing.T) {
	f := newInvoiceFixture(t)

	_, err := f.svc.Issue(context.Background(), f.userID, f.issueRequest(1))
	require.NoError(t, err)
	f.fiscal.authErr = apperrors.AuthorityUnreachable(errors.New("down"))
	_, _ = f.svc.Issue(context.Background(), f.userID, f.issueRequest(1))

	completed, err := f.svc.List(context.Background(), dto.InvoiceFilter{Status: model.InvoiceStatusCompleted})
	require.NoError(t, err)
	assert.Equal(t, int64(1), completed.Total)

	all, err := f.svc.List(context.Background(), dto.InvoiceFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), all.Total)
}

func TestIssuePersistFailureRecordsGrantedCAE(t *testing.T) {
	f := newInvoiceFixture(t)
	f.invoices.failSetAuthorization = errors.New("connection reset by peer")

	_, err := f.svc.Issue(context.Background(), f.userID, f.issueRequest(2))
	var failed *apperrors.IssuanceFailed
	require.ErrorAs(t, err, &failed)

	inv := f.invoices.invoices[failed.InvoiceID]
	require.NotNil(t, inv)
	assert.Equal(t, model.InvoiceStatusError, inv.Status)
	require.NotNil(t, inv.ErrorMessage)
	assert.Contains(t, *inv.ErrorMessage, "CAE 71234567890123")
	assert.Contains(t, *inv.ErrorMessage, "voucher 42")

	// The grant survives on the event trail even though the row update
	// failed, so the operator can recover the CAE.
	assert.Equal(t,
		[]string{model.EventCreated, model.EventAuthorizationReceived, model.EventError},
		eventTypes(inv))
	grant := inv.Events[1]
	assert.Contains(t, grant.Description, "71234567890123")
	assert.NotEmpty(t, grant.Metadata)

	// No side effects ran against stock or the account ledger.
	assert.Equal(t, 10, f.variant.Stock)
	assert.Empty(t, f.accounts.transactions)
}

// racingFiscal holds every LastVoucherNumber caller on a barrier so
// simultaneous issuances read the same last number, then accepts only the
// first submission of each voucher number.
type racingFiscal struct {
	gate sync.WaitGroup

	mu     sync.Mutex
	last   int64
	issued map[int64]bool
}

func (f *racingFiscal) LastVoucherNumber(_ context.Context, _, _ int) (int64, error) {
	f.gate.Done()
	f.gate.Wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last, nil
}

func (f *racingFiscal) RequestAuthorization(_ context.Context, ar infra.AuthorizationRequest) (*infra.AuthorizationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.issued[ar.VoucherNumber] {
		return nil, apperrors.AuthorityRejected(
			fmt.Sprintf("10016: voucher %d was already authorized", ar.VoucherNumber))
	}
	f.issued[ar.VoucherNumber] = true
	if ar.VoucherNumber > f.last {
		f.last = ar.VoucherNumber
	}
	return &infra.AuthorizationResult{
		CAE:           fmt.Sprintf("7%013d", ar.VoucherNumber),
		CAEExpiresAt:  time.Now().AddDate(0, 0, 10),
		VoucherNumber: ar.VoucherNumber,
		Raw:           []byte(`{"Resultado":"A"}`),
	}, nil
}

var _ FiscalClient = (*racingFiscal)(nil)

func TestConcurrentIssuesNeverShareVoucherNumber(t *testing.T) {
	f := newInvoiceFixture(t)
	fiscal := &racingFiscal{last: 41, issued: make(map[int64]bool)}
	fiscal.gate.Add(2)
	svc := NewInvoiceService(
		f.invoices,
		f.accounts,
		NewAccountService(f.accounts),
		NewInventoryService(f.variants, nil),
		fiscal,
		NewVoucherAllocator(fiscal),
		nil,
		21,
	)

	type outcome struct {
		resp *dto.InvoiceResponse
		err  error
	}
	results := make(chan outcome, 2)
	for i := 0; i < 2; i++ {
		go func() {
			resp, err := svc.Issue(context.Background(), f.userID, f.issueRequest(1))
			results <- outcome{resp, err}
		}()
	}

	var winner *dto.InvoiceResponse
	var loserErr error
	for i := 0; i < 2; i++ {
		r := <-results
		if r.err != nil {
			loserErr = r.err
		} else {
			winner = r.resp
		}
	}

	// Both issuances derived voucher 42 from the same stale last number;
	// the authority is the arbiter and only one submission wins it.
	require.NotNil(t, winner, "exactly one issuance should complete")
	require.Error(t, loserErr, "the other issuance should be rejected")
	require.NotNil(t, winner.VoucherNumber)
	assert.Equal(t, int64(42), *winner.VoucherNumber)

	assert.ErrorIs(t, loserErr, apperrors.ErrAuthorityRejected)
	var failed *apperrors.IssuanceFailed
	require.ErrorAs(t, loserErr, &failed)
	loser := f.invoices.invoices[failed.InvoiceID]
	require.NotNil(t, loser)
	assert.Equal(t, model.InvoiceStatusError, loser.Status)
	assert.Nil(t, loser.VoucherNumber)

	// Only the winning issuance touched stock and the ledger.
	assert.Equal(t, 9, f.variant.Stock)
	require.Len(t, f.accounts.transactions, 1)
	assert.True(t, f.accounts.transactions[0].Amount.Equal(decimal.RequireFromString("6050.00")))
}
