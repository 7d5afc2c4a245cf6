package availability

import (
	"time"

	"rentbook/internal/domain/catalog"
	"rentbook/internal/domain/shared/daterange"
)

type DaysBlocked struct {
	ItemID   catalog.ItemID
	Range    daterange.DateRange
	Reason   Reason
	RentalID string
	Count    int
	At       time.Time
}

func (e DaysBlocked) EventName() string     { return "availability.blocked" }
func (e DaysBlocked) AggregateID() string   { return string(e.ItemID) }
func (e DaysBlocked) OccurredAt() time.Time { return e.At }

type DaysReleased struct {
	ItemID   catalog.ItemID
	Range    daterange.DateRange
	Reason   Reason
	RentalID string
	Count    int
	At       time.Time
}

func (e DaysReleased) EventName() string     { return "availability.released" }
func (e DaysReleased) AggregateID() string   { return string(e.ItemID) }
func (e DaysReleased) OccurredAt() time.Time { return e.At }
