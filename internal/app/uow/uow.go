package uow

import (
	"context"

	"rentbook/internal/domain/availability"
	"rentbook/internal/domain/catalog"
	"rentbook/internal/domain/rental"
)

// UnitOfWork coordinates repositories inside a transaction boundary.
type UnitOfWork interface {
	Items() catalog.Repository
	Rentals() rental.Repository
	Availability() availability.Repository

	// LockItem serializes check-then-write sequences on one item until the unit
	// commits or rolls back.
	LockItem(ctx context.Context, id catalog.ItemID) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UoWFactory starts unit of work instances.
type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

// TxOptions configure transaction boundaries.
type TxOptions struct {
	ReadOnly bool
}
