package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"rentbook/internal/domain/catalog"
	"rentbook/internal/domain/rental"
	"rentbook/internal/domain/shared/daterange"
	"rentbook/internal/domain/shared/money"
)

const rentalColumns = `id, item_id, renter_id, owner_id, start_date, end_date, duration_days,
	currency, daily_price_amount, total_price_amount, deposit_amount, status,
	accepted_at, renter_confirmed_at, pickup_at, return_at, cancelled_at,
	cancellation_reason, created_at, updated_at, version`

type RentalRepository struct {
	q querier
}

func (r *RentalRepository) ByID(ctx context.Context, id rental.RentalID) (*rental.Rental, error) {
	var row rentalRow
	err := r.q.GetContext(ctx, &row, `SELECT `+rentalColumns+` FROM rentals WHERE id = $1`, string(id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, rental.ErrRentalNotFound
	}
	if err != nil {
		return nil, translate(err)
	}
	return row.toAggregate(), nil
}

// Save inserts a new rental or updates an existing one guarded by its version.
func (r *RentalRepository) Save(ctx context.Context, rent *rental.Rental) error {
	row := newRentalRow(rent)
	row.Version = rent.Version + 1
	var (
		res sql.Result
		err error
	)
	if rent.Version == 0 {
		res, err = r.q.NamedExecContext(ctx, `INSERT INTO rentals (`+rentalColumns+`) VALUES (
			:id, :item_id, :renter_id, :owner_id, :start_date, :end_date, :duration_days,
			:currency, :daily_price_amount, :total_price_amount, :deposit_amount, :status,
			:accepted_at, :renter_confirmed_at, :pickup_at, :return_at, :cancelled_at,
			:cancellation_reason, :created_at, :updated_at, :version)
			ON CONFLICT (id) DO NOTHING`, row)
	} else {
		res, err = r.q.ExecContext(ctx, `UPDATE rentals SET
			start_date = $1, end_date = $2, duration_days = $3, total_price_amount = $4, status = $5,
			accepted_at = $6, renter_confirmed_at = $7, pickup_at = $8, return_at = $9, cancelled_at = $10,
			cancellation_reason = $11, updated_at = $12, version = $13
			WHERE id = $14 AND version = $15`,
			row.StartDate, row.EndDate, row.DurationDays, row.TotalPrice, row.Status,
			row.AcceptedAt, row.RenterConfirmedAt, row.PickupAt, row.ReturnAt, row.CancelledAt,
			row.CancellationReason, row.UpdatedAt, row.Version, row.ID, rent.Version)
	}
	if err != nil {
		return translate(err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return rental.ErrConcurrentUpdate
	}
	rent.Version = row.Version
	return nil
}

func (r *RentalRepository) Blocking(ctx context.Context, itemID catalog.ItemID, window daterange.DateRange) ([]*rental.Rental, error) {
	return r.list(ctx, `SELECT `+rentalColumns+` FROM rentals
		WHERE item_id = $1 AND status = ANY($2) AND start_date <= $3 AND end_date >= $4
		ORDER BY start_date, id`,
		string(itemID), pq.Array(statusStrings(rental.BlockingStatuses)), window.End, window.Start)
}

func (r *RentalRepository) ListByItem(ctx context.Context, itemID catalog.ItemID) ([]*rental.Rental, error) {
	return r.list(ctx, `SELECT `+rentalColumns+` FROM rentals WHERE item_id = $1 ORDER BY start_date, id`, string(itemID))
}

func (r *RentalRepository) ListByRenter(ctx context.Context, renterID string) ([]*rental.Rental, error) {
	return r.list(ctx, `SELECT `+rentalColumns+` FROM rentals WHERE renter_id = $1 ORDER BY created_at DESC`, renterID)
}

func (r *RentalRepository) ListByOwner(ctx context.Context, ownerID string) ([]*rental.Rental, error) {
	return r.list(ctx, `SELECT `+rentalColumns+` FROM rentals WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
}

func (r *RentalRepository) ListStale(ctx context.Context, day time.Time) ([]*rental.Rental, error) {
	return r.list(ctx, `SELECT `+rentalColumns+` FROM rentals
		WHERE status = ANY($1) AND start_date < $2 ORDER BY start_date, id`,
		pq.Array([]string{string(rental.StatusPending), string(rental.StatusOwnerAccepted)}), daterange.Day(day))
}

func (r *RentalRepository) list(ctx context.Context, query string, args ...any) ([]*rental.Rental, error) {
	var rows []rentalRow
	if err := r.q.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, translate(err)
	}
	out := make([]*rental.Rental, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toAggregate())
	}
	return out, nil
}

func statusStrings(ss []rental.Status) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = string(s)
	}
	return out
}

type rentalRow struct {
	ID                 string       `db:"id"`
	ItemID             string       `db:"item_id"`
	RenterID           string       `db:"renter_id"`
	OwnerID            string       `db:"owner_id"`
	StartDate          time.Time    `db:"start_date"`
	EndDate            time.Time    `db:"end_date"`
	DurationDays       int          `db:"duration_days"`
	Currency           string       `db:"currency"`
	DailyPrice         int64        `db:"daily_price_amount"`
	TotalPrice         int64        `db:"total_price_amount"`
	Deposit            int64        `db:"deposit_amount"`
	Status             string       `db:"status"`
	AcceptedAt         sql.NullTime `db:"accepted_at"`
	RenterConfirmedAt  sql.NullTime `db:"renter_confirmed_at"`
	PickupAt           sql.NullTime `db:"pickup_at"`
	ReturnAt           sql.NullTime `db:"return_at"`
	CancelledAt        sql.NullTime `db:"cancelled_at"`
	CancellationReason string       `db:"cancellation_reason"`
	CreatedAt          time.Time    `db:"created_at"`
	UpdatedAt          time.Time    `db:"updated_at"`
	Version            int64        `db:"version"`
}

func newRentalRow(r *rental.Rental) rentalRow {
	return rentalRow{
		ID:                 string(r.ID),
		ItemID:             string(r.ItemID),
		RenterID:           r.RenterID,
		OwnerID:            r.OwnerID,
		StartDate:          r.Period.Start,
		EndDate:            r.Period.End,
		DurationDays:       r.DurationDays,
		Currency:           r.DailyPrice.Currency,
		DailyPrice:         r.DailyPrice.Amount,
		TotalPrice:         r.TotalPrice.Amount,
		Deposit:            r.Deposit.Amount,
		Status:             string(r.Status),
		AcceptedAt:         nullTime(r.AcceptedAt),
		RenterConfirmedAt:  nullTime(r.RenterConfirmedAt),
		PickupAt:           nullTime(r.PickupAt),
		ReturnAt:           nullTime(r.ReturnAt),
		CancelledAt:        nullTime(r.CancelledAt),
		CancellationReason: r.CancellationReason,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
		Version:            r.Version,
	}
}

func (row rentalRow) toAggregate() *rental.Rental {
	price := func(amount int64) money.Money { return money.Money{Amount: amount, Currency: row.Currency} }
	return &rental.Rental{
		ID:                 rental.RentalID(row.ID),
		ItemID:             catalog.ItemID(row.ItemID),
		RenterID:           row.RenterID,
		OwnerID:            row.OwnerID,
		Period:             daterange.DateRange{Start: daterange.Day(row.StartDate), End: daterange.Day(row.EndDate)},
		DurationDays:       row.DurationDays,
		DailyPrice:         price(row.DailyPrice),
		TotalPrice:         price(row.TotalPrice),
		Deposit:            price(row.Deposit),
		Status:             rental.Status(row.Status),
		AcceptedAt:         fromNull(row.AcceptedAt),
		RenterConfirmedAt:  fromNull(row.RenterConfirmedAt),
		PickupAt:           fromNull(row.PickupAt),
		ReturnAt:           fromNull(row.ReturnAt),
		CancelledAt:        fromNull(row.CancelledAt),
		CancellationReason: row.CancellationReason,
		CreatedAt:          row.CreatedAt.UTC(),
		UpdatedAt:          row.UpdatedAt.UTC(),
		Version:            row.Version,
	}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func fromNull(t sql.NullTime) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time.UTC()
}
