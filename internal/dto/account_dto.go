package dto

import (
	"github.com/shopspring/decimal"
)

type CreateAccountRequest struct {
	Name           string          `json:"name" validate:"required,min=2,max=120"`
	DocumentType   string          `json:"document_type" validate:"required,oneof=CUIT CUIL DNI"`
	DocumentNumber string          `json:"document_number" validate:"required,min=7,max=11,numeric"`
	Email          string          `json:"email" validate:"omitempty,email"`
	Phone          string          `json:"phone" validate:"omitempty,max=30"`
	Address        string          `json:"address" validate:"omitempty,max=200"`
	Kind           string          `json:"kind" validate:"required,oneof=customer supplier"`
	CreditLimit    decimal.Decimal `json:"credit_limit" validate:"min=0"`
}

type UpdateAccountRequest struct {
	Name        *string          `json:"name" validate:"omitempty,min=2,max=120"`
	Email       *string          `json:"email" validate:"omitempty,email"`
	Phone       *string          `json:"phone" validate:"omitempty,max=30"`
	Address     *string          `json:"address" validate:"omitempty,max=200"`
	CreditLimit *decimal.Decimal `json:"credit_limit" validate:"omitempty,min=0"`
	Status      *string          `json:"status" validate:"omitempty,oneof=active suspended"`
}

type AccountResponse struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	DocumentType   string          `json:"document_type"`
	DocumentNumber string          `json:"document_number"`
	Email          string          `json:"email,omitempty"`
	Phone          string          `json:"phone,omitempty"`
	Address        string          `json:"address,omitempty"`
	Kind           string          `json:"kind"`
	CreditLimit    decimal.Decimal `json:"credit_limit"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
	Status         string          `json:"status"`
	CreatedAt      string          `json:"created_at"`
}

type CreateTransactionRequest struct {
	Direction   string          `json:"direction" validate:"required,oneof=debit credit"`
	Amount      decimal.Decimal `json:"amount" validate:"required,gt=0"`
	Description string          `json:"description" validate:"required,max=200"`
}

type TransactionResponse struct {
	ID           string          `json:"id"`
	Direction    string          `json:"direction"`
	Amount       decimal.Decimal `json:"amount"`
	Description  string          `json:"description"`
	InvoiceID    *string         `json:"invoice_id,omitempty"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	CreatedBy    string          `json:"created_by,omitempty"`
	CreatedAt    string          `json:"created_at"`
}

// StatementResponse is a dated slice of an account's journal with period
// totals. Opening plus debits minus credits always equals closing.
type StatementResponse struct {
	Account        AccountResponse       `json:"account"`
	From           string                `json:"from"`
	To             string                `json:"to"`
	OpeningBalance decimal.Decimal       `json:"opening_balance"`
	ClosingBalance decimal.Decimal       `json:"closing_balance"`
	TotalDebits    decimal.Decimal       `json:"total_debits"`
	TotalCredits   decimal.Decimal       `json:"total_credits"`
	Transactions   []TransactionResponse `json:"transactions"`
}
