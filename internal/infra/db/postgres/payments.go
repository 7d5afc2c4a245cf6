package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"rentbook/internal/domain/payment"
)

// PaymentRepository keeps receipts outside the booking units.
type PaymentRepository struct {
	DB *sqlx.DB
}

func (r *PaymentRepository) RecordSucceeded(ctx context.Context, receipt payment.Receipt) error {
	id := receipt.PaymentID
	if id == "" {
		id = receipt.RentalID
	}
	_, err := r.DB.ExecContext(ctx, `INSERT INTO payment_receipts (payment_id, rental_id, amount, currency, succeeded_at)
		VALUES ($1, $2, $3, $4, $5) ON CONFLICT (payment_id) DO NOTHING`,
		id, receipt.RentalID, receipt.Amount.Amount, receipt.Amount.Currency, receipt.SucceededAt)
	return translate(err)
}

func (r *PaymentRepository) HasSucceeded(ctx context.Context, rentalID string) (bool, error) {
	var exists bool
	err := r.DB.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM payment_receipts WHERE rental_id = $1)`, rentalID)
	return exists, translate(err)
}

// Inbox deduplicates consumed events per consumer name.
type Inbox struct {
	DB       *sqlx.DB
	Consumer string
}

func (i *Inbox) Seen(ctx context.Context, eventID string) (bool, error) {
	res, err := i.DB.ExecContext(ctx, `INSERT INTO app_inbox (event_id, consumer) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		eventID, i.Consumer)
	if err != nil {
		return false, translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

func (i *Inbox) Release(ctx context.Context, eventID string) error {
	_, err := i.DB.ExecContext(ctx, `DELETE FROM app_inbox WHERE event_id = $1 AND consumer = $2`, eventID, i.Consumer)
	return err
}

var _ payment.Repository = (*PaymentRepository)(nil)
