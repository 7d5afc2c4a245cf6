package availability

import (
	"context"
	"time"

	"rentbook/internal/app/dto"
	handlersupport "rentbook/internal/app/handlers/support"
	"rentbook/internal/app/queries"
	"rentbook/internal/app/uow"
	domainavailability "rentbook/internal/domain/availability"
	"rentbook/internal/domain/catalog"
	"rentbook/internal/domain/shared/daterange"
)

const (
	getCalendarKey       = "availability.calendar"
	checkAvailabilityKey = "availability.check"
)

type GetCalendarQuery struct {
	ItemID string `validate:"required"`
	// From defaults to today.
	From time.Time
	// Months defaults to 3.
	Months int `validate:"gte=0,lte=12"`
}

func (q GetCalendarQuery) Key() string { return getCalendarKey }

type GetCalendarHandler struct {
	UoWFactory uow.UoWFactory
	Clock      handlersupport.Clock
}

func (h *GetCalendarHandler) Handle(ctx context.Context, q GetCalendarQuery) (dto.Calendar, error) {
	from := q.From
	if from.IsZero() {
		from = h.Clock.Now()
	}
	window, err := domainavailability.CalendarWindow(from, q.Months)
	if err != nil {
		return dto.Calendar{}, err
	}
	return uow.Read(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) (dto.Calendar, error) {
		item, err := catalog.Live(ctx, unit.Items(), catalog.ItemID(q.ItemID))
		if err != nil {
			return dto.Calendar{}, err
		}
		days, err := domainavailability.NewLedger(unit.Availability()).Calendar(ctx, item.ID, window)
		if err != nil {
			return dto.Calendar{}, err
		}
		return dto.MapCalendar(string(item.ID), window, days), nil
	})
}

type CheckAvailabilityQuery struct {
	ItemID string    `validate:"required"`
	Start  time.Time `validate:"required"`
	End    time.Time `validate:"required"`
}

func (q CheckAvailabilityQuery) Key() string { return checkAvailabilityKey }

type CheckAvailabilityHandler struct {
	UoWFactory uow.UoWFactory
}

// Handle reports ledger blocks together with days covered by blocking rentals,
// the same facts rental creation checks against.
func (h *CheckAvailabilityHandler) Handle(ctx context.Context, q CheckAvailabilityQuery) (dto.AvailabilityCheck, error) {
	window, err := daterange.New(q.Start, q.End)
	if err != nil {
		return dto.AvailabilityCheck{}, err
	}
	return uow.Read(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) (dto.AvailabilityCheck, error) {
		item, err := catalog.Live(ctx, unit.Items(), catalog.ItemID(q.ItemID))
		if err != nil {
			return dto.AvailabilityCheck{}, err
		}
		blocking, err := unit.Rentals().Blocking(ctx, item.ID, window)
		if err != nil {
			return dto.AvailabilityCheck{}, err
		}
		occupied := make([]daterange.DateRange, 0, len(blocking))
		for _, r := range blocking {
			occupied = append(occupied, r.Period)
		}
		check, err := domainavailability.NewLedger(unit.Availability()).Check(ctx, item.ID, window, occupied...)
		if err != nil {
			return dto.AvailabilityCheck{}, err
		}
		return dto.MapCheck(string(item.ID), check), nil
	})
}

var _ queries.Handler[GetCalendarQuery, dto.Calendar] = (*GetCalendarHandler)(nil)
var _ queries.Handler[CheckAvailabilityQuery, dto.AvailabilityCheck] = (*CheckAvailabilityHandler)(nil)
