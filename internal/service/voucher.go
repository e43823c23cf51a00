package service

import (
	"context"

	"facturador/internal/infra"
)

// FiscalClient is the slice of the authority client the services consume.
// *infra.AFIPClient satisfies it; tests substitute a stub.
type FiscalClient interface {
	LastVoucherNumber(ctx context.Context, pointOfSale, voucherTypeCode int) (int64, error)
	RequestAuthorization(ctx context.Context, ar infra.AuthorizationRequest) (*infra.AuthorizationResult, error)
}

var _ FiscalClient = (*infra.AFIPClient)(nil)

// VoucherAllocator computes the next voucher number for a
// (point of sale, voucher type) pair.
//
// The authority is the single source of truth for numbering: another process
// may have issued vouchers since our last call, so the next number is
// re-derived from the authority on every issuance instead of trusting a local
// counter. The value only seeds the authorization request; the number echoed
// back in the authority's response is what gets persisted. If two concurrent
// issuances compute the same next number the authority accepts one and
// rejects the other, which surfaces as a normal authorization failure.
type VoucherAllocator interface {
	NextNumber(ctx context.Context, pointOfSale, voucherTypeCode int) (int64, error)
}

type voucherAllocator struct {
	fiscal FiscalClient
}

func NewVoucherAllocator(fiscal FiscalClient) VoucherAllocator {
	return &voucherAllocator{fiscal: fiscal}
}

func (a *voucherAllocator) NextNumber(ctx context.Context, pointOfSale, voucherTypeCode int) (int64, error) {
	last, err := a.fiscal.LastVoucherNumber(ctx, pointOfSale, voucherTypeCode)
	if err != nil {
		return 0, err
	}
	return last + 1, nil
}
