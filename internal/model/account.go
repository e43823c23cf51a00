package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	AccountKindCustomer = "customer"
	AccountKindSupplier = "supplier"

	AccountStatusActive    = "active"
	AccountStatusSuspended = "suspended"
	AccountStatusClosed    = "closed"
)

// Transaction directions. A debit increases what the holder owes the
// business, a credit decreases it.
const (
	DirectionDebit  = "debit"
	DirectionCredit = "credit"
)

// Account is a running customer/supplier balance. CurrentBalance is signed:
// positive means the holder owes the business. The balance is mutated only
// through the account ledger's posting path, never directly.
type Account struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name           string    `gorm:"not null"`
	DocumentType   string    `gorm:"type:varchar(10);not null"`
	DocumentNumber string    `gorm:"type:varchar(20);not null"`
	Email          *string
	Phone          *string
	Address        *string
	Kind           string          `gorm:"type:varchar(10);not null"`
	CreditLimit    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	CurrentBalance decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	Status         string          `gorm:"type:varchar(10);not null;default:'active'"`
	Notes          *string         `gorm:"type:text"`

	LastTransactionAt *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// AccountTransaction is one append-only ledger entry. BalanceAfter snapshots
// the account balance immediately after this entry and is never recomputed:
// replaying all entries in order must reproduce the account's current balance.
type AccountTransaction struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	AccountID   uuid.UUID       `gorm:"type:uuid;index;not null"`
	Direction   string          `gorm:"type:varchar(6);not null"`
	Amount      decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Description string          `gorm:"not null"`
	InvoiceID   *uuid.UUID      `gorm:"type:uuid"`
	BalanceAfter decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	CreatedBy   uuid.UUID       `gorm:"type:uuid;not null"`
	CreatedAt   time.Time

	Invoice *Invoice `gorm:"foreignKey:InvoiceID"`
}
