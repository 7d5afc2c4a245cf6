package rentals

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	handlersupport "rentbook/internal/app/handlers/support"
	"rentbook/internal/app/outbox"
	"rentbook/internal/app/uow"
	"rentbook/internal/domain/availability"
	"rentbook/internal/domain/catalog"
	"rentbook/internal/domain/rental"
	"rentbook/internal/domain/shared/daterange"
)

// Base carries what every rental command handler needs.
type Base struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Encoder    outbox.Encoder
	Clock      handlersupport.Clock
	Logger     *slog.Logger
}

func (b Base) logger() *slog.Logger {
	return handlersupport.Logger(b.Logger)
}

// persist saves the rental and hands its events, plus any ledger events, to the outbox.
func (b Base) persist(ctx context.Context, unit uow.UnitOfWork, r *rental.Rental, ledger *availability.Ledger) error {
	if err := unit.Rentals().Save(ctx, r); err != nil {
		return err
	}
	evs := r.Drain()
	if ledger != nil {
		evs = append(evs, ledger.Drain()...)
	}
	return outbox.Stage(ctx, b.Outbox, b.Encoder, evs)
}

// lockedRental loads the rental, takes its item lock and reloads it so the
// returned state is the one the lock protects.
func lockedRental(ctx context.Context, unit uow.UnitOfWork, id string) (*rental.Rental, error) {
	r, err := unit.Rentals().ByID(ctx, rental.RentalID(id))
	if err != nil {
		return nil, err
	}
	if err := unit.LockItem(ctx, r.ItemID); err != nil {
		return nil, err
	}
	return unit.Rentals().ByID(ctx, r.ID)
}

// ensureFree fails with rental.ErrDatesUnavailable when window collides with
// another blocking rental or with a ledger block.
func ensureFree(ctx context.Context, unit uow.UnitOfWork, ledger *availability.Ledger, itemID catalog.ItemID, window daterange.DateRange, exclude rental.RentalID) error {
	blocking, err := unit.Rentals().Blocking(ctx, itemID, window)
	if err != nil {
		return err
	}
	if err := rental.EnsureNoOverlap(blocking, window, exclude); err != nil {
		return err
	}
	check, err := ledger.Check(ctx, itemID, window)
	if err != nil {
		return err
	}
	if !check.Available {
		return fmt.Errorf("%w: %s blocked from %s", rental.ErrDatesUnavailable, itemID, check.Unavailable[0].Format(daterange.Layout))
	}
	return nil
}

// releaseDates frees the ledger days held by r and, when r was the last rental
// holding dates on its item, marks the item available again.
func releaseDates(ctx context.Context, unit uow.UnitOfWork, ledger *availability.Ledger, r *rental.Rental, wasHolding bool, now time.Time) error {
	if _, err := ledger.ReleaseForRental(ctx, string(r.ID), now); err != nil {
		return err
	}
	if !wasHolding {
		return nil
	}
	others, err := unit.Rentals().ListByItem(ctx, r.ItemID)
	if err != nil {
		return err
	}
	for _, other := range others {
		if other.ID != r.ID && other.Status.HoldsDates() {
			return nil
		}
	}
	return unit.Items().SetAvailable(ctx, r.ItemID, true)
}
