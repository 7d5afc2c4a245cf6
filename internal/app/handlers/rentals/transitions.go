package rentals

import (
	"context"
	"time"

	"rentbook/internal/app/commands"
	"rentbook/internal/app/dto"
	"rentbook/internal/app/middleware"
	"rentbook/internal/app/policies"
	"rentbook/internal/app/uow"
	"rentbook/internal/domain/availability"
	"rentbook/internal/domain/catalog"
	"rentbook/internal/domain/rental"
)

const (
	acceptRentalKey  = "rentals.accept"
	confirmRentalKey = "rentals.confirm"
	extendRentalKey  = "rentals.extend"
	cancelRentalKey  = "rentals.cancel"
	pickUpRentalKey  = "rentals.pickup"
	returnRentalKey  = "rentals.return"
	disputeRentalKey = "rentals.dispute"
)

type step func(ctx context.Context, unit uow.UnitOfWork, r *rental.Rental, ledger *availability.Ledger, now time.Time) error

// apply runs one state transition and its ledger side effects in a single unit
// while the rental's item is locked.
func (b Base) apply(ctx context.Context, rentalID string, fn step) (*dto.Rental, error) {
	var out dto.Rental
	err := uow.Write(ctx, b.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		r, err := lockedRental(ctx, unit, rentalID)
		if err != nil {
			return err
		}
		ledger := availability.NewLedger(unit.Availability())
		if err := fn(ctx, unit, r, ledger, b.Clock.Now()); err != nil {
			return err
		}
		if err := b.persist(ctx, unit, r, ledger); err != nil {
			return err
		}
		out = dto.MapRental(r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

type AcceptRentalCommand struct {
	RentalID string `validate:"required"`
	OwnerID  string `validate:"required"`
}

func (c AcceptRentalCommand) Key() string     { return acceptRentalKey }
func (c AcceptRentalCommand) ActorID() string { return c.OwnerID }

type AcceptRentalHandler struct {
	Base
}

func (h *AcceptRentalHandler) Handle(ctx context.Context, cmd AcceptRentalCommand) (*dto.Rental, error) {
	res, err := h.apply(ctx, cmd.RentalID, func(ctx context.Context, unit uow.UnitOfWork, r *rental.Rental, _ *availability.Ledger, now time.Time) error {
		if _, err := r.Authorize(cmd.OwnerID, rental.ActionAccept); err != nil {
			return err
		}
		item, err := catalog.Live(ctx, unit.Items(), r.ItemID)
		if err != nil {
			return err
		}
		return r.Accept(cmd.OwnerID, item, now)
	})
	if err != nil {
		return nil, err
	}
	h.logger().Info("rental accepted", "rental_id", res.ID, "owner_id", cmd.OwnerID)
	return res, nil
}

type ConfirmRentalCommand struct {
	RentalID        string `validate:"required"`
	RenterID        string `validate:"required"`
	IdempotencyKeyV string
}

func (c ConfirmRentalCommand) Key() string            { return confirmRentalKey }
func (c ConfirmRentalCommand) ActorID() string        { return c.RenterID }
func (c ConfirmRentalCommand) IdempotencyKey() string { return c.IdempotencyKeyV }
func (c ConfirmRentalCommand) ReplayTarget() any     { return &dto.Rental{} }

type ConfirmRentalHandler struct {
	Base
	Payments policies.PaymentsPort
}

func (h *ConfirmRentalHandler) Handle(ctx context.Context, cmd ConfirmRentalCommand) (*dto.Rental, error) {
	changed := false
	res, err := h.apply(ctx, cmd.RentalID, func(ctx context.Context, unit uow.UnitOfWork, r *rental.Rental, ledger *availability.Ledger, now time.Time) error {
		if _, err := r.Authorize(cmd.RenterID, rental.ActionConfirm); err != nil {
			return err
		}
		paid := false
		if r.Status == rental.StatusOwnerAccepted {
			var err error
			if paid, err = h.Payments.HasSucceededPayment(ctx, string(r.ID)); err != nil {
				return err
			}
		}
		var err error
		if changed, err = r.Confirm(cmd.RenterID, paid, now); err != nil || !changed {
			return err
		}
		blocking, err := unit.Rentals().Blocking(ctx, r.ItemID, r.Period)
		if err != nil {
			return err
		}
		if err := rental.EnsureNoOverlap(blocking, r.Period, r.ID); err != nil {
			return err
		}
		if err := ledger.BlockForRental(ctx, r.ItemID, string(r.ID), r.Period, now); err != nil {
			return err
		}
		return unit.Items().SetAvailable(ctx, r.ItemID, false)
	})
	if err != nil {
		return nil, err
	}
	if changed {
		h.logger().Info("rental confirmed", "rental_id", res.ID, "item_id", res.ItemID)
	} else {
		h.logger().Debug("rental already confirmed", "rental_id", res.ID)
	}
	return res, nil
}

type ExtendRentalCommand struct {
	RentalID        string    `validate:"required"`
	Actor           string    `validate:"required"`
	NewEnd          time.Time `validate:"required"`
	IdempotencyKeyV string
}

func (c ExtendRentalCommand) Key() string            { return extendRentalKey }
func (c ExtendRentalCommand) ActorID() string        { return c.Actor }
func (c ExtendRentalCommand) IdempotencyKey() string { return c.IdempotencyKeyV }
func (c ExtendRentalCommand) ReplayTarget() any     { return &dto.Rental{} }

type ExtendRentalHandler struct {
	Base
}

func (h *ExtendRentalHandler) Handle(ctx context.Context, cmd ExtendRentalCommand) (*dto.Rental, error) {
	res, err := h.apply(ctx, cmd.RentalID, func(ctx context.Context, unit uow.UnitOfWork, r *rental.Rental, ledger *availability.Ledger, now time.Time) error {
		suffix, err := r.ExtensionSuffix(cmd.Actor, cmd.NewEnd)
		if err != nil {
			return err
		}
		if err := ensureFree(ctx, unit, ledger, r.ItemID, suffix, r.ID); err != nil {
			return err
		}
		if _, err := r.Extend(cmd.Actor, cmd.NewEnd, now); err != nil {
			return err
		}
		if !r.Status.HoldsDates() {
			return nil
		}
		return ledger.BlockForRental(ctx, r.ItemID, string(r.ID), suffix, now)
	})
	if err != nil {
		return nil, err
	}
	h.logger().Info("rental extended", "rental_id", res.ID, "end_date", res.EndDate, "actor_id", cmd.Actor)
	return res, nil
}

type CancelRentalCommand struct {
	RentalID        string `validate:"required"`
	Actor           string `validate:"required"`
	Reason          string `validate:"max=500"`
	IdempotencyKeyV string
}

func (c CancelRentalCommand) Key() string            { return cancelRentalKey }
func (c CancelRentalCommand) ActorID() string        { return c.Actor }
func (c CancelRentalCommand) IdempotencyKey() string { return c.IdempotencyKeyV }
func (c CancelRentalCommand) ReplayTarget() any     { return &dto.Rental{} }

type CancelRentalHandler struct {
	Base
}

func (h *CancelRentalHandler) Handle(ctx context.Context, cmd CancelRentalCommand) (*dto.Rental, error) {
	res, err := h.apply(ctx, cmd.RentalID, func(ctx context.Context, unit uow.UnitOfWork, r *rental.Rental, ledger *availability.Ledger, now time.Time) error {
		wasHolding := r.Status.HoldsDates()
		if err := r.Cancel(cmd.Actor, cmd.Reason, now); err != nil {
			return err
		}
		return releaseDates(ctx, unit, ledger, r, wasHolding, now)
	})
	if err != nil {
		return nil, err
	}
	h.logger().Info("rental cancelled", "rental_id", res.ID, "actor_id", cmd.Actor, "reason", res.CancellationReason)
	return res, nil
}

type PickUpRentalCommand struct {
	RentalID string `validate:"required"`
	OwnerID  string `validate:"required"`
}

func (c PickUpRentalCommand) Key() string     { return pickUpRentalKey }
func (c PickUpRentalCommand) ActorID() string { return c.OwnerID }

type PickUpRentalHandler struct {
	Base
}

func (h *PickUpRentalHandler) Handle(ctx context.Context, cmd PickUpRentalCommand) (*dto.Rental, error) {
	return h.apply(ctx, cmd.RentalID, func(_ context.Context, _ uow.UnitOfWork, r *rental.Rental, _ *availability.Ledger, now time.Time) error {
		return r.PickUp(cmd.OwnerID, now)
	})
}

type ReturnRentalCommand struct {
	RentalID string `validate:"required"`
	OwnerID  string `validate:"required"`
}

func (c ReturnRentalCommand) Key() string     { return returnRentalKey }
func (c ReturnRentalCommand) ActorID() string { return c.OwnerID }

type ReturnRentalHandler struct {
	Base
}

func (h *ReturnRentalHandler) Handle(ctx context.Context, cmd ReturnRentalCommand) (*dto.Rental, error) {
	return h.apply(ctx, cmd.RentalID, func(ctx context.Context, unit uow.UnitOfWork, r *rental.Rental, ledger *availability.Ledger, now time.Time) error {
		if err := r.Return(cmd.OwnerID, now); err != nil {
			return err
		}
		return releaseDates(ctx, unit, ledger, r, true, now)
	})
}

type DisputeRentalCommand struct {
	RentalID string `validate:"required"`
	Actor    string `validate:"required"`
}

func (c DisputeRentalCommand) Key() string     { return disputeRentalKey }
func (c DisputeRentalCommand) ActorID() string { return c.Actor }

type DisputeRentalHandler struct {
	Base
}

func (h *DisputeRentalHandler) Handle(ctx context.Context, cmd DisputeRentalCommand) (*dto.Rental, error) {
	res, err := h.apply(ctx, cmd.RentalID, func(_ context.Context, _ uow.UnitOfWork, r *rental.Rental, _ *availability.Ledger, now time.Time) error {
		return r.Dispute(cmd.Actor, now)
	})
	if err != nil {
		return nil, err
	}
	h.logger().Warn("rental disputed", "rental_id", res.ID, "actor_id", cmd.Actor)
	return res, nil
}

var (
	_ commands.Handler[AcceptRentalCommand, *dto.Rental]  = (*AcceptRentalHandler)(nil)
	_ commands.Handler[ConfirmRentalCommand, *dto.Rental] = (*ConfirmRentalHandler)(nil)
	_ commands.Handler[ExtendRentalCommand, *dto.Rental]  = (*ExtendRentalHandler)(nil)
	_ commands.Handler[CancelRentalCommand, *dto.Rental]  = (*CancelRentalHandler)(nil)
	_ commands.Handler[PickUpRentalCommand, *dto.Rental]  = (*PickUpRentalHandler)(nil)
	_ commands.Handler[ReturnRentalCommand, *dto.Rental]  = (*ReturnRentalHandler)(nil)
	_ commands.Handler[DisputeRentalCommand, *dto.Rental] = (*DisputeRentalHandler)(nil)

	_ middleware.IdempotentCommand = ConfirmRentalCommand{}
	_ middleware.IdempotentCommand = ExtendRentalCommand{}
	_ middleware.IdempotentCommand = CancelRentalCommand{}
)
