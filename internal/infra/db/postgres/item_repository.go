package postgres

import (
	"context"
	"database/sql"
	"errors"

	"rentbook/internal/domain/catalog"
	"rentbook/internal/domain/shared/money"
)

type ItemRepository struct {
	q querier
}

// NewItemRepository returns a repository outside any unit, used for fixtures.
func NewItemRepository(q querier) *ItemRepository {
	return &ItemRepository{q: q}
}

func (r *ItemRepository) ByID(ctx context.Context, id catalog.ItemID) (*catalog.Item, error) {
	var row itemRow
	err := r.q.GetContext(ctx, &row, `SELECT id, owner_id, title, daily_price_amount, deposit_amount, currency, available, deleted
		FROM catalog_items WHERE id = $1`, string(id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, catalog.ErrItemNotFound
	}
	if err != nil {
		return nil, translate(err)
	}
	return &catalog.Item{
		ID:         catalog.ItemID(row.ID),
		OwnerID:    row.OwnerID,
		Title:      row.Title,
		DailyPrice: money.Money{Amount: row.DailyPrice, Currency: row.Currency},
		Deposit:    money.Money{Amount: row.Deposit, Currency: row.Currency},
		Available:  row.Available,
		Deleted:    row.Deleted,
	}, nil
}

func (r *ItemRepository) SetAvailable(ctx context.Context, id catalog.ItemID, available bool) error {
	res, err := r.q.ExecContext(ctx, `UPDATE catalog_items SET available = $1 WHERE id = $2`, available, string(id))
	if err != nil {
		return translate(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return catalog.ErrItemNotFound
	}
	return nil
}

func (r *ItemRepository) Upsert(ctx context.Context, item catalog.Item) error {
	_, err := r.q.ExecContext(ctx, `INSERT INTO catalog_items (id, owner_id, title, daily_price_amount, deposit_amount, currency, available, deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET owner_id = EXCLUDED.owner_id, title = EXCLUDED.title,
			daily_price_amount = EXCLUDED.daily_price_amount, deposit_amount = EXCLUDED.deposit_amount,
			currency = EXCLUDED.currency, available = EXCLUDED.available, deleted = EXCLUDED.deleted`,
		string(item.ID), item.OwnerID, item.Title, item.DailyPrice.Amount, item.Deposit.Amount,
		item.DailyPrice.Currency, item.Available, item.Deleted)
	return translate(err)
}

type itemRow struct {
	ID         string `db:"id"`
	OwnerID    string `db:"owner_id"`
	Title      string `db:"title"`
	DailyPrice int64  `db:"daily_price_amount"`
	Deposit    int64  `db:"deposit_amount"`
	Currency   string `db:"currency"`
	Available  bool   `db:"available"`
	Deleted    bool   `db:"deleted"`
}
