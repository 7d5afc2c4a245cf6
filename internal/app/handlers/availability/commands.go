package availability

import (
	"context"
	"log/slog"
	"time"

	"rentbook/internal/app/dto"
	handlersupport "rentbook/internal/app/handlers/support"
	"rentbook/internal/app/outbox"
	"rentbook/internal/app/uow"
	domainavailability "rentbook/internal/domain/availability"
	"rentbook/internal/domain/catalog"
	"rentbook/internal/domain/shared/daterange"
)

const (
	blockDatesKey   = "availability.block"
	unblockDatesKey = "availability.unblock"
)

type BlockDatesCommand struct {
	ItemID  string    `validate:"required"`
	OwnerID string    `validate:"required"`
	Start   time.Time `validate:"required"`
	End     time.Time `validate:"required"`
	Reason  string    `validate:"omitempty,oneof=OWNER_BLOCKED MAINTENANCE"`
	Note    string    `validate:"max=280"`
}

func (c BlockDatesCommand) Key() string     { return blockDatesKey }
func (c BlockDatesCommand) ActorID() string { return c.OwnerID }

type UnblockDatesCommand struct {
	ItemID  string    `validate:"required"`
	OwnerID string    `validate:"required"`
	Start   time.Time `validate:"required"`
	End     time.Time `validate:"required"`
	Reason  string    `validate:"omitempty,oneof=OWNER_BLOCKED MAINTENANCE"`
}

func (c UnblockDatesCommand) Key() string     { return unblockDatesKey }
func (c UnblockDatesCommand) ActorID() string { return c.OwnerID }

// DatesHandler serves owner-initiated block and unblock requests.
type DatesHandler struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Encoder    outbox.Encoder
	Clock      handlersupport.Clock
	Logger     *slog.Logger
}

func (h *DatesHandler) HandleBlock(ctx context.Context, cmd BlockDatesCommand) (*dto.BlockResult, error) {
	return h.run(ctx, cmd.ItemID, cmd.OwnerID, cmd.Start, cmd.End, func(ctx context.Context, ledger *domainavailability.Ledger, block domainavailability.OwnerBlock, now time.Time) (int, error) {
		block.Reason = domainavailability.Reason(cmd.Reason)
		block.Note = cmd.Note
		return ledger.BlockOwner(ctx, block, now)
	})
}

func (h *DatesHandler) HandleUnblock(ctx context.Context, cmd UnblockDatesCommand) (*dto.BlockResult, error) {
	return h.run(ctx, cmd.ItemID, cmd.OwnerID, cmd.Start, cmd.End, func(ctx context.Context, ledger *domainavailability.Ledger, block domainavailability.OwnerBlock, now time.Time) (int, error) {
		block.Reason = domainavailability.Reason(cmd.Reason)
		return ledger.UnblockOwner(ctx, block, now)
	})
}

type ownerChange func(ctx context.Context, ledger *domainavailability.Ledger, block domainavailability.OwnerBlock, now time.Time) (int, error)

func (h *DatesHandler) run(ctx context.Context, itemID, ownerID string, start, end time.Time, change ownerChange) (*dto.BlockResult, error) {
	window, err := daterange.New(start, end)
	if err != nil {
		return nil, err
	}
	result := &dto.BlockResult{ItemID: itemID}
	err = uow.Write(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		id := catalog.ItemID(itemID)
		if err := unit.LockItem(ctx, id); err != nil {
			return err
		}
		item, err := catalog.Live(ctx, unit.Items(), id)
		if err != nil {
			return err
		}
		ledger := domainavailability.NewLedger(unit.Availability())
		changed, err := change(ctx, ledger, domainavailability.OwnerBlock{Item: item, ActorID: ownerID, Range: window}, h.Clock.Now())
		if err != nil {
			return err
		}
		result.Changed = changed
		return outbox.Stage(ctx, h.Outbox, h.Encoder, ledger.Drain())
	})
	if err != nil {
		return nil, err
	}
	handlersupport.Logger(h.Logger).Info("owner calendar updated", "item_id", itemID, "range", window.String(), "changed", result.Changed)
	return result, nil
}

