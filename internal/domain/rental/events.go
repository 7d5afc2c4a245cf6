package rental

import (
	"time"

	"rentbook/internal/domain/catalog"
	"rentbook/internal/domain/shared/daterange"
	"rentbook/internal/domain/shared/money"
)

type RentalRequested struct {
	RentalID RentalID
	ItemID   catalog.ItemID
	RenterID string
	Period   daterange.DateRange
	Total    money.Money
	At       time.Time
}

func (e RentalRequested) EventName() string     { return "rental.requested" }
func (e RentalRequested) AggregateID() string   { return string(e.RentalID) }
func (e RentalRequested) OccurredAt() time.Time { return e.At }

type RentalAccepted struct {
	RentalID RentalID
	ItemID   catalog.ItemID
	At       time.Time
}

func (e RentalAccepted) EventName() string     { return "rental.accepted" }
func (e RentalAccepted) AggregateID() string   { return string(e.RentalID) }
func (e RentalAccepted) OccurredAt() time.Time { return e.At }

type RentalConfirmed struct {
	RentalID RentalID
	ItemID   catalog.ItemID
	Period   daterange.DateRange
	Total    money.Money
	At       time.Time
}

func (e RentalConfirmed) EventName() string     { return "rental.confirmed" }
func (e RentalConfirmed) AggregateID() string   { return string(e.RentalID) }
func (e RentalConfirmed) OccurredAt() time.Time { return e.At }

type RentalExtended struct {
	RentalID RentalID
	ItemID   catalog.ItemID
	Added    daterange.DateRange
	Total    money.Money
	At       time.Time
}

func (e RentalExtended) EventName() string     { return "rental.extended" }
func (e RentalExtended) AggregateID() string   { return string(e.RentalID) }
func (e RentalExtended) OccurredAt() time.Time { return e.At }

type RentalPickedUp struct {
	RentalID RentalID
	ItemID   catalog.ItemID
	At       time.Time
}

func (e RentalPickedUp) EventName() string     { return "rental.picked_up" }
func (e RentalPickedUp) AggregateID() string   { return string(e.RentalID) }
func (e RentalPickedUp) OccurredAt() time.Time { return e.At }

type RentalReturned struct {
	RentalID RentalID
	ItemID   catalog.ItemID
	At       time.Time
}

func (e RentalReturned) EventName() string     { return "rental.returned" }
func (e RentalReturned) AggregateID() string   { return string(e.RentalID) }
func (e RentalReturned) OccurredAt() time.Time { return e.At }

type RentalDisputed struct {
	RentalID RentalID
	ItemID   catalog.ItemID
	OpenedBy Role
	At       time.Time
}

func (e RentalDisputed) EventName() string     { return "rental.disputed" }
func (e RentalDisputed) AggregateID() string   { return string(e.RentalID) }
func (e RentalDisputed) OccurredAt() time.Time { return e.At }

type RentalCancelled struct {
	RentalID RentalID
	ItemID   catalog.ItemID
	From     Status
	Reason   string
	At       time.Time
}

func (e RentalCancelled) EventName() string     { return "rental.cancelled" }
func (e RentalCancelled) AggregateID() string   { return string(e.RentalID) }
func (e RentalCancelled) OccurredAt() time.Time { return e.At }
