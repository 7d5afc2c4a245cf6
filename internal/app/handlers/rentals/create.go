package rentals

import (
	"context"
	"time"

	"github.com/google/uuid"

	"rentbook/internal/app/commands"
	"rentbook/internal/app/dto"
	"rentbook/internal/app/middleware"
	"rentbook/internal/app/uow"
	"rentbook/internal/domain/availability"
	"rentbook/internal/domain/catalog"
	"rentbook/internal/domain/rental"
	"rentbook/internal/domain/shared/daterange"
)

const createRentalKey = "rentals.create"

type CreateRentalCommand struct {
	// RentalID is optional; a UUID is assigned when empty.
	RentalID        string
	RenterID        string    `validate:"required"`
	ItemID          string    `validate:"required"`
	Start           time.Time `validate:"required"`
	End             time.Time `validate:"required"`
	IdempotencyKeyV string
}

func (c CreateRentalCommand) Key() string            { return createRentalKey }
func (c CreateRentalCommand) ActorID() string        { return c.RenterID }
func (c CreateRentalCommand) IdempotencyKey() string { return c.IdempotencyKeyV }
func (c CreateRentalCommand) ReplayTarget() any     { return &dto.Rental{} }

type CreateRentalHandler struct {
	Base
}

func (h *CreateRentalHandler) Handle(ctx context.Context, cmd CreateRentalCommand) (*dto.Rental, error) {
	period, err := daterange.New(cmd.Start, cmd.End)
	if err != nil {
		return nil, err
	}
	id := cmd.RentalID
	if id == "" {
		id = uuid.NewString()
	}

	var out dto.Rental
	err = uow.Write(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		itemID := catalog.ItemID(cmd.ItemID)
		if err := unit.LockItem(ctx, itemID); err != nil {
			return err
		}
		item, err := catalog.Live(ctx, unit.Items(), itemID)
		if err != nil {
			return err
		}
		now := h.Clock.Now()
		r, err := rental.NewRental(rental.CreateParams{
			ID:       rental.RentalID(id),
			Item:     item,
			RenterID: cmd.RenterID,
			Period:   period,
			Now:      now,
		})
		if err != nil {
			return err
		}
		ledger := availability.NewLedger(unit.Availability())
		if err := ensureFree(ctx, unit, ledger, itemID, period, ""); err != nil {
			return err
		}
		if err := h.persist(ctx, unit, r, ledger); err != nil {
			return err
		}
		out = dto.MapRental(r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	h.logger().Info("rental requested", "rental_id", out.ID, "item_id", out.ItemID, "renter_id", out.RenterID, "period", period.String())
	return &out, nil
}

var _ commands.Handler[CreateRentalCommand, *dto.Rental] = (*CreateRentalHandler)(nil)
var _ middleware.IdempotentCommand = CreateRentalCommand{}
var _ middleware.ActorMessage = CreateRentalCommand{}
