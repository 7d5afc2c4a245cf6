package catalog

import (
	"context"

	"rentbook/internal/domain/shared/fault"
	"rentbook/internal/domain/shared/money"
)

var ErrItemNotFound = fault.New(fault.ErrNotFound, "catalog: item not found")

type ItemID string

// Item is the slice of the catalog entry the booking core depends on. The
// catalog service owns the rest of the listing.
type Item struct {
	ID         ItemID
	OwnerID    string
	Title      string
	DailyPrice money.Money
	Deposit    money.Money
	Available  bool
	Deleted    bool
}

// Repository resolves items and receives availability hints after confirm/cancel.
type Repository interface {
	ByID(ctx context.Context, id ItemID) (*Item, error)
	SetAvailable(ctx context.Context, id ItemID, available bool) error
}

// Live loads an item and hides soft-deleted entries behind ErrItemNotFound.
func Live(ctx context.Context, repo Repository, id ItemID) (*Item, error) {
	item, err := repo.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.Deleted {
		return nil, ErrItemNotFound
	}
	return item, nil
}
