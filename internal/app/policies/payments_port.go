package policies

import (
	"context"

	"rentbook/internal/domain/payment"
)

// PaymentsPort answers the single payment fact rental confirmation depends on.
type PaymentsPort interface {
	HasSucceededPayment(ctx context.Context, rentalID string) (bool, error)
}

// ReceiptPayments reads payment receipts recorded from payment events.
type ReceiptPayments struct {
	Receipts payment.Repository
}

func (p ReceiptPayments) HasSucceededPayment(ctx context.Context, rentalID string) (bool, error) {
	return p.Receipts.HasSucceeded(ctx, rentalID)
}
