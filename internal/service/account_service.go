package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"facturador/internal/apperrors"
	"facturador/internal/dto"
	"facturador/internal/model"
	"facturador/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Posting is one requested ledger entry. Debits increase what the holder
// owes the business; credits decrease it.
type Posting struct {
	AccountID   uuid.UUID
	Direction   string // model.DirectionDebit | model.DirectionCredit
	Amount      decimal.Decimal
	Description string
	InvoiceID   *uuid.UUID
	CreatedBy   uuid.UUID
}

// AccountService is the account ledger plus thin CRUD over the account
// records themselves. Balances are mutated only through PostTx; the
// balanceAfter snapshot on each transaction is written once and never
// recomputed, so replaying the journal reproduces the current balance.
type AccountService interface {
	Create(ctx context.Context, req dto.CreateAccountRequest) (*dto.AccountResponse, error)
	Update(ctx context.Context, id uuid.UUID, req dto.UpdateAccountRequest) (*dto.AccountResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*dto.AccountResponse, error)
	List(ctx context.Context, status string) ([]dto.AccountResponse, error)

	// PostTx appends one ledger entry inside the caller's transaction. The
	// account row is locked for the duration so concurrent postings to the
	// same account serialize. Debits fail with CreditLimitExceeded when the
	// resulting balance would pass the account's limit.
	PostTx(ctx context.Context, tx *gorm.DB, p Posting) (*model.AccountTransaction, error)

	// Post is the standalone operator-facing entry: PostTx in its own
	// transaction.
	Post(ctx context.Context, p Posting) (*dto.TransactionResponse, error)

	// Statement returns the ordered journal slice for [from, to] with
	// opening/closing balances and period totals.
	Statement(ctx context.Context, accountID uuid.UUID, from, to time.Time) (*dto.StatementResponse, error)
}

type accountService struct {
	repo repository.AccountRepository
	now  func() time.Time
}

func NewAccountService(repo repository.AccountRepository) AccountService {
	return &accountService{repo: repo, now: time.Now}
}

func (s *accountService) Create(ctx context.Context, req dto.CreateAccountRequest) (*dto.AccountResponse, error) {
	if existing, err := s.repo.FindByDocument(ctx, req.DocumentType, req.DocumentNumber); err == nil && existing != nil {
		return nil, fmt.Errorf("%w: account with document %s %s", apperrors.ErrDuplicate, req.DocumentType, req.DocumentNumber)
	}

	a := &model.Account{
		Name:           req.Name,
		DocumentType:   req.DocumentType,
		DocumentNumber: req.DocumentNumber,
		Kind:           req.Kind,
		CreditLimit:    req.CreditLimit,
		CurrentBalance: decimal.Zero,
		Status:         model.AccountStatusActive,
	}
	if req.Email != "" {
		a.Email = &req.Email
	}
	if req.Phone != "" {
		a.Phone = &req.Phone
	}
	if req.Address != "" {
		a.Address = &req.Address
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	return accountToResponse(a), nil
}

func (s *accountService) Update(ctx context.Context, id uuid.UUID, req dto.UpdateAccountRequest) (*dto.AccountResponse, error) {
	a, err := s.findAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		a.Name = *req.Name
	}
	if req.Email != nil {
		a.Email = req.Email
	}
	if req.Phone != nil {
		a.Phone = req.Phone
	}
	if req.Address != nil {
		a.Address = req.Address
	}
	if req.CreditLimit != nil {
		a.CreditLimit = *req.CreditLimit
	}
	if req.Status != nil {
		a.Status = *req.Status
	}
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	return accountToResponse(a), nil
}

func (s *accountService) Get(ctx context.Context, id uuid.UUID) (*dto.AccountResponse, error) {
	a, err := s.findAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	return accountToResponse(a), nil
}

func (s *accountService) List(ctx context.Context, status string) ([]dto.AccountResponse, error) {
	accounts, err := s.repo.List(ctx, status)
	if err != nil {
		return nil, err
	}
	resp := make([]dto.AccountResponse, 0, len(accounts))
	for i := range accounts {
		resp = append(resp, *accountToResponse(&accounts[i]))
	}
	return resp, nil
}

func (s *accountService) PostTx(ctx context.Context, tx *gorm.DB, p Posting) (*model.AccountTransaction, error) {
	if !p.Amount.IsPositive() {
		return nil, apperrors.Validationf("transaction amount must be positive")
	}
	if p.Direction != model.DirectionDebit && p.Direction != model.DirectionCredit {
		return nil, apperrors.Validationf("unknown direction %q", p.Direction)
	}

	a, err := s.repo.FindByIDForUpdate(tx, p.AccountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: account %s", apperrors.ErrNotFound, p.AccountID)
		}
		return nil, err
	}

	var newBalance decimal.Decimal
	if p.Direction == model.DirectionDebit {
		newBalance = a.CurrentBalance.Add(p.Amount)
		// Only debits are limit-checked: credits always reduce exposure.
		if newBalance.GreaterThan(a.CreditLimit) {
			return nil, apperrors.CreditLimitExceeded(a.ID)
		}
	} else {
		newBalance = a.CurrentBalance.Sub(p.Amount)
	}

	now := s.now()
	t := &model.AccountTransaction{
		AccountID:    p.AccountID,
		Direction:    p.Direction,
		Amount:       p.Amount,
		Description:  p.Description,
		InvoiceID:    p.InvoiceID,
		BalanceAfter: newBalance,
		CreatedBy:    p.CreatedBy,
		CreatedAt:    now,
	}
	if err := s.repo.CreateTransactionTx(tx, t); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateBalanceTx(tx, p.AccountID, newBalance, now); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *accountService) Post(ctx context.Context, p Posting) (*dto.TransactionResponse, error) {
	var t *model.AccountTransaction
	err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		var txErr error
		t, txErr = s.PostTx(ctx, tx, p)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return transactionToResponse(t), nil
}

func (s *accountService) Statement(ctx context.Context, accountID uuid.UUID, from, to time.Time) (*dto.StatementResponse, error) {
	a, err := s.findAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	txs, err := s.repo.ListTransactions(ctx, accountID, &from, &to)
	if err != nil {
		return nil, err
	}

	debits := decimal.Zero
	credits := decimal.Zero
	entries := make([]dto.TransactionResponse, 0, len(txs))
	for i := range txs {
		t := &txs[i]
		if t.Direction == model.DirectionDebit {
			debits = debits.Add(t.Amount)
		} else {
			credits = credits.Add(t.Amount)
		}
		entries = append(entries, *transactionToResponse(t))
	}

	// Closing is the last snapshot in range; opening is derived so that
	// opening + debits - credits == closing always holds.
	closing := a.CurrentBalance
	if n := len(txs); n > 0 {
		closing = txs[n-1].BalanceAfter
	}
	opening := closing.Sub(debits).Add(credits)

	return &dto.StatementResponse{
		Account:        *accountToResponse(a),
		From:           from.Format("2006-01-02"),
		To:             to.Format("2006-01-02"),
		OpeningBalance: opening,
		ClosingBalance: closing,
		TotalDebits:    debits,
		TotalCredits:   credits,
		Transactions:   entries,
	}, nil
}

func (s *accountService) findAccount(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	a, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: account %s", apperrors.ErrNotFound, id)
		}
		return nil, err
	}
	return a, nil
}

func accountToResponse(a *model.Account) *dto.AccountResponse {
	resp := &dto.AccountResponse{
		ID:             a.ID.String(),
		Name:           a.Name,
		DocumentType:   a.DocumentType,
		DocumentNumber: a.DocumentNumber,
		Kind:           a.Kind,
		CreditLimit:    a.CreditLimit,
		CurrentBalance: a.CurrentBalance,
		Status:         a.Status,
		CreatedAt:      a.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
	if a.Email != nil {
		resp.Email = *a.Email
	}
	if a.Phone != nil {
		resp.Phone = *a.Phone
	}
	if a.Address != nil {
		resp.Address = *a.Address
	}
	return resp
}

func transactionToResponse(t *model.AccountTransaction) *dto.TransactionResponse {
	resp := &dto.TransactionResponse{
		ID:           t.ID.String(),
		Direction:    t.Direction,
		Amount:       t.Amount,
		Description:  t.Description,
		BalanceAfter: t.BalanceAfter,
		CreatedBy:    t.CreatedBy.String(),
		CreatedAt:    t.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
	if t.InvoiceID != nil {
		id := t.InvoiceID.String()
		resp.InvoiceID = &id
	}
	return resp
}
