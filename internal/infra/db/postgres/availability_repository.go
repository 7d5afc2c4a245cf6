package postgres

import (
	"context"
	"time"

	"rentbook/internal/domain/availability"
	"rentbook/internal/domain/catalog"
	"rentbook/internal/domain/shared/daterange"
)

type AvailabilityRepository struct {
	q querier
}

func (r *AvailabilityRepository) Range(ctx context.Context, itemID catalog.ItemID, window daterange.DateRange) ([]availability.Day, error) {
	return r.list(ctx, `SELECT item_id, day, available, reason, rental_id, note, updated_at
		FROM availability_days WHERE item_id = $1 AND day BETWEEN $2 AND $3 ORDER BY day`,
		string(itemID), window.Start, window.End)
}

func (r *AvailabilityRepository) ByRental(ctx context.Context, rentalID string) ([]availability.Day, error) {
	return r.list(ctx, `SELECT item_id, day, available, reason, rental_id, note, updated_at
		FROM availability_days WHERE rental_id = $1 ORDER BY day`, rentalID)
}

func (r *AvailabilityRepository) Save(ctx context.Context, days []availability.Day) error {
	for _, d := range days {
		_, err := r.q.ExecContext(ctx, `INSERT INTO availability_days (item_id, day, available, reason, rental_id, note, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (item_id, day) DO UPDATE SET
				available = EXCLUDED.available, reason = EXCLUDED.reason, rental_id = EXCLUDED.rental_id,
				note = EXCLUDED.note, updated_at = EXCLUDED.updated_at`,
			string(d.ItemID), daterange.Day(d.Date), d.Available, string(d.Reason), d.RentalID, d.Note, d.UpdatedAt)
		if err != nil {
			return translate(err)
		}
	}
	return nil
}

func (r *AvailabilityRepository) list(ctx context.Context, query string, args ...any) ([]availability.Day, error) {
	var rows []dayRow
	if err := r.q.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, translate(err)
	}
	out := make([]availability.Day, 0, len(rows))
	for _, row := range rows {
		out = append(out, availability.Day{
			ItemID:    catalog.ItemID(row.ItemID),
			Date:      daterange.Day(row.Day),
			Available: row.Available,
			Reason:    availability.Reason(row.Reason),
			RentalID:  row.RentalID,
			Note:      row.Note,
			UpdatedAt: row.UpdatedAt.UTC(),
		})
	}
	return out, nil
}

type dayRow struct {
	ItemID    string    `db:"item_id"`
	Day       time.Time `db:"day"`
	Available bool      `db:"available"`
	Reason    string    `db:"reason"`
	RentalID  string    `db:"rental_id"`
	Note      string    `db:"note"`
	UpdatedAt time.Time `db:"updated_at"`
}
