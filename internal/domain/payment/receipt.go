package payment

import (
	"context"
	"time"

	"rentbook/internal/domain/shared/money"
)

// Receipt records a payment the payments service reported as succeeded.
type Receipt struct {
	PaymentID   string
	RentalID    string
	Amount      money.Money
	SucceededAt time.Time
}

type Repository interface {
	RecordSucceeded(ctx context.Context, receipt Receipt) error
	HasSucceeded(ctx context.Context, rentalID string) (bool, error)
}
