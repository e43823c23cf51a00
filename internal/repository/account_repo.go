package repository

import (
	"context"
	"time"

	"facturador/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AccountRepository is the data access contract for accounts and their
// transaction journal. Balance mutation methods take an explicit tx so the
// ledger can pair the journal append and the balance update atomically.
type AccountRepository interface {
	Create(ctx context.Context, a *model.Account) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Account, error)
	// FindByIDForUpdate row-locks the account, serializing concurrent
	// postings against the same entity.
	FindByIDForUpdate(tx *gorm.DB, id uuid.UUID) (*model.Account, error)
	FindByDocument(ctx context.Context, docType, docNumber string) (*model.Account, error)
	List(ctx context.Context, status string) ([]model.Account, error)
	Update(ctx context.Context, a *model.Account) error

	CreateTransactionTx(tx *gorm.DB, t *model.AccountTransaction) error
	UpdateBalanceTx(tx *gorm.DB, id uuid.UUID, balance decimal.Decimal, at time.Time) error
	ListTransactions(ctx context.Context, accountID uuid.UUID, from, to *time.Time) ([]model.AccountTransaction, error)

	DB() *gorm.DB
}

type accountRepo struct{ db *gorm.DB }

func NewAccountRepository(db *gorm.DB) AccountRepository { return &accountRepo{db: db} }

func (r *accountRepo) Create(ctx context.Context, a *model.Account) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *accountRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	var a model.Account
	err := r.db.WithContext(ctx).First(&a, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *accountRepo) FindByIDForUpdate(tx *gorm.DB, id uuid.UUID) (*model.Account, error) {
	var a model.Account
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&a, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *accountRepo) FindByDocument(ctx context.Context, docType, docNumber string) (*model.Account, error) {
	var a model.Account
	err := r.db.WithContext(ctx).
		Where("document_type = ? AND document_number = ?", docType, docNumber).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *accountRepo) List(ctx context.Context, status string) ([]model.Account, error) {
	var accounts []model.Account
	q := r.db.WithContext(ctx)
	if status != "" && status != "all" {
		q = q.Where("status = ?", status)
	}
	err := q.Order("name ASC").Find(&accounts).Error
	return accounts, err
}

func (r *accountRepo) Update(ctx context.Context, a *model.Account) error {
	return r.db.WithContext(ctx).Save(a).Error
}

func (r *accountRepo) CreateTransactionTx(tx *gorm.DB, t *model.AccountTransaction) error {
	return tx.Create(t).Error
}

func (r *accountRepo) UpdateBalanceTx(tx *gorm.DB, id uuid.UUID, balance decimal.Decimal, at time.Time) error {
	return tx.Model(&model.Account{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"current_balance":     balance,
			"last_transaction_at": at,
		}).Error
}

func (r *accountRepo) ListTransactions(ctx context.Context, accountID uuid.UUID, from, to *time.Time) ([]model.AccountTransaction, error) {
	var txns []model.AccountTransaction
	q := r.db.WithContext(ctx).Where("account_id = ?", accountID)
	if from != nil {
		q = q.Where("created_at >= ?", *from)
	}
	if to != nil {
		q = q.Where("created_at <= ?", *to)
	}
	err := q.Order("created_at ASC").Find(&txns).Error
	return txns, err
}

func (r *accountRepo) DB() *gorm.DB { return r.db }
