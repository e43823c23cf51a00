// Package apperrors defines the typed failure taxonomy shared by the
// invoicing workflow and its collaborators. Every component-level failure is
// wrapped around one of these sentinels so callers can branch with errors.Is
// and the HTTP layer can map them without string matching.
package apperrors

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrValidation: malformed or missing input, caught before any mutation.
	ErrValidation = errors.New("validation error")

	// ErrNotFound: a referenced entity does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrDuplicate: unique-key conflict on creation.
	ErrDuplicate = errors.New("resource already exists")

	// ErrSkuNotFound: an invoice line references an unknown SKU.
	ErrSkuNotFound = errors.New("sku not found")

	// ErrInsufficientStock: an adjustment would drive stock below zero.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrCreditLimitExceeded: a debit would push the balance past the
	// account's credit limit.
	ErrCreditLimitExceeded = errors.New("credit limit exceeded")

	// ErrAuthorityUnreachable: transient transport failure talking to the
	// fiscal authority. Retryable by caller policy.
	ErrAuthorityUnreachable = errors.New("fiscal authority unreachable")

	// ErrAuthorityRejected: the authority explicitly declined the request.
	// Non-retryable with the same payload; carries the authority's reason.
	ErrAuthorityRejected = errors.New("fiscal authority rejected the request")

	// ErrInvalidState: the operation is not valid for the invoice's current
	// lifecycle state.
	ErrInvalidState = errors.New("invalid invoice state for this operation")

	// ErrConcurrentUpdate: an atomic precondition check failed after the
	// bounded retry budget was exhausted.
	ErrConcurrentUpdate = errors.New("concurrent update conflict")
)

func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}

func SkuNotFound(sku string) error {
	return fmt.Errorf("%w: %s", ErrSkuNotFound, sku)
}

func InsufficientStock(sku string, have, want int) error {
	return fmt.Errorf("%w: %s has %d, requested %d", ErrInsufficientStock, sku, have, want)
}

func CreditLimitExceeded(accountID uuid.UUID) error {
	return fmt.Errorf("%w: account %s", ErrCreditLimitExceeded, accountID)
}

func AuthorityRejected(reason string) error {
	return fmt.Errorf("%w: %s", ErrAuthorityRejected, reason)
}

func AuthorityUnreachable(err error) error {
	return fmt.Errorf("%w: %v", ErrAuthorityUnreachable, err)
}

// IssuanceFailed ties an authority failure to the pending invoice it left
// behind, so the caller learns the invoice id for inspection and retry.
type IssuanceFailed struct {
	InvoiceID uuid.UUID
	Err       error
}

func (e *IssuanceFailed) Error() string {
	return fmt.Sprintf("invoice %s: %v", e.InvoiceID, e.Err)
}

func (e *IssuanceFailed) Unwrap() error { return e.Err }
