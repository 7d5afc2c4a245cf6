package rentals

import (
	"context"
	"errors"
	"time"

	"rentbook/internal/app/commands"
	"rentbook/internal/app/dto"
	"rentbook/internal/app/uow"
	"rentbook/internal/domain/availability"
	"rentbook/internal/domain/rental"
	"rentbook/internal/domain/shared/daterange"
)

const expireStaleRentalsKey = "rentals.expire_stale"

// ExpireStaleRentalsCommand cancels requests that were never confirmed before their start date.
type ExpireStaleRentalsCommand struct {
	// AsOf overrides the handler clock; zero means now.
	AsOf time.Time
}

func (c ExpireStaleRentalsCommand) Key() string { return expireStaleRentalsKey }

type ExpireStaleRentalsHandler struct {
	Base
}

func (h *ExpireStaleRentalsHandler) Handle(ctx context.Context, cmd ExpireStaleRentalsCommand) (*dto.ExpireResult, error) {
	now := cmd.AsOf
	if now.IsZero() {
		now = h.Clock.Now()
	}
	result := &dto.ExpireResult{Expired: []string{}, RanAt: now.UTC()}
	err := uow.Write(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		stale, err := unit.Rentals().ListStale(ctx, daterange.Today(now))
		if err != nil {
			return err
		}
		ledger := availability.NewLedger(unit.Availability())
		for _, candidate := range stale {
			r, err := lockedRental(ctx, unit, string(candidate.ID))
			if err != nil {
				return err
			}
			if err := r.Expire(now); err != nil {
				if errors.Is(err, rental.ErrInvalidState) || errors.Is(err, rental.ErrNotStale) {
					continue
				}
				return err
			}
			if err := releaseDates(ctx, unit, ledger, r, false, now); err != nil {
				return err
			}
			if err := h.persist(ctx, unit, r, ledger); err != nil {
				return err
			}
			result.Expired = append(result.Expired, string(r.ID))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(result.Expired) > 0 {
		h.logger().Info("stale rentals expired", "count", len(result.Expired))
	}
	return result, nil
}

var _ commands.Handler[ExpireStaleRentalsCommand, *dto.ExpireResult] = (*ExpireStaleRentalsHandler)(nil)
