package rental

import (
	"context"
	"fmt"
	"strings"
	"time"

	"rentbook/internal/domain/catalog"
	"rentbook/internal/domain/shared/daterange"
	"rentbook/internal/domain/shared/events"
	"rentbook/internal/domain/shared/fault"
	"rentbook/internal/domain/shared/money"
)

var (
	ErrRentalNotFound   = fault.New(fault.ErrNotFound, "rental: not found")
	ErrInvalidState     = fault.New(fault.ErrInvalidState, "rental: invalid state transition")
	ErrForbidden        = fault.New(fault.ErrForbidden, "rental: actor not allowed for this operation")
	ErrOwnItem          = fault.New(fault.ErrValidation, "rental: renter cannot rent own item")
	ErrStartInPast      = fault.New(fault.ErrValidation, "rental: start date is in the past")
	ErrEndNotExtended   = fault.New(fault.ErrValidation, "rental: new end date must be after current end date")
	ErrRenterRequired   = fault.New(fault.ErrValidation, "rental: renter id required")
	ErrItemUnavailable  = fault.New(fault.ErrConflict, "rental: item is not available")
	ErrItemWithdrawn    = fault.New(fault.ErrInvalidState, "rental: item is no longer available")
	ErrDatesUnavailable = fault.New(fault.ErrConflict, "rental: dates are already booked")
	ErrPaymentRequired  = fault.New(fault.ErrInvalidState, "rental: payment must succeed before confirmation")
	ErrPickupTooEarly   = fault.New(fault.ErrInvalidState, "rental: pickup before start date")
	ErrNotStale         = fault.New(fault.ErrInvalidState, "rental: request has not expired")
	ErrConcurrentUpdate = fault.New(fault.ErrTransient, "rental: concurrent update detected")
)

type RentalID string

type Rental struct {
	ID           RentalID
	ItemID       catalog.ItemID
	RenterID     string
	OwnerID      string
	Period       daterange.DateRange
	DurationDays int
	DailyPrice   money.Money
	TotalPrice   money.Money
	Deposit      money.Money
	Status       Status

	AcceptedAt         time.Time
	RenterConfirmedAt  time.Time
	PickupAt           time.Time
	ReturnAt           time.Time
	CancelledAt        time.Time
	CancellationReason string

	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int64
	events.Recorder
}

type Repository interface {
	ByID(ctx context.Context, id RentalID) (*Rental, error)
	Save(ctx context.Context, rental *Rental) error
	// Blocking lists rentals of the item in a blocking status whose period overlaps window.
	Blocking(ctx context.Context, itemID catalog.ItemID, window daterange.DateRange) ([]*Rental, error)
	ListByItem(ctx context.Context, itemID catalog.ItemID) ([]*Rental, error)
	ListByRenter(ctx context.Context, renterID string) ([]*Rental, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*Rental, error)
	// ListStale lists PENDING and OWNER_ACCEPTED rentals starting before day.
	ListStale(ctx context.Context, day time.Time) ([]*Rental, error)
}

type CreateParams struct {
	ID       RentalID
	Item     *catalog.Item
	RenterID string
	Period   daterange.DateRange
	Now      time.Time
}

// NewRental snapshots the item's prices into a PENDING request. Overlap with
// other rentals is checked by the caller against the item's blocking set.
func NewRental(p CreateParams) (*Rental, error) {
	if strings.TrimSpace(p.RenterID) == "" {
		return nil, ErrRenterRequired
	}
	if p.Item.OwnerID == p.RenterID {
		return nil, ErrOwnItem
	}
	if p.Period.Start.Before(daterange.Today(p.Now)) {
		return nil, ErrStartInPast
	}
	if !p.Period.End.After(p.Period.Start) {
		return nil, daterange.ErrEmptyRange
	}
	if !p.Item.Available {
		return nil, ErrItemUnavailable
	}
	days := p.Period.Days()
	now := p.Now.UTC()
	r := &Rental{
		ID:           p.ID,
		ItemID:       p.Item.ID,
		RenterID:     p.RenterID,
		OwnerID:      p.Item.OwnerID,
		Period:       p.Period,
		DurationDays: days,
		DailyPrice:   p.Item.DailyPrice,
		TotalPrice:   p.Item.DailyPrice.Times(days),
		Deposit:      p.Item.Deposit,
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.Record(RentalRequested{RentalID: r.ID, ItemID: r.ItemID, RenterID: r.RenterID, Period: r.Period, Total: r.TotalPrice, At: now})
	return r, nil
}

// RoleOf resolves the actor's relation to the rental.
func (r *Rental) RoleOf(actorID string) (Role, bool) {
	switch actorID {
	case "":
		return "", false
	case SystemActor:
		return RoleSystem, true
	case r.OwnerID:
		return RoleOwner, true
	case r.RenterID:
		return RoleRenter, true
	}
	return "", false
}

// Authorize checks the actor before any status check so wrong actors always see ErrForbidden.
func (r *Rental) Authorize(actorID string, action Action) (Role, error) {
	role, ok := r.RoleOf(actorID)
	if !ok || !Allowed(role, action) {
		return "", ErrForbidden
	}
	return role, nil
}

// CanView reports whether actor is a party of the rental.
func (r *Rental) CanView(actorID string) bool {
	role, ok := r.RoleOf(actorID)
	return ok && role != RoleSystem
}

func (r *Rental) plan(actorID string, action Action) (Role, Status, error) {
	role, err := r.Authorize(actorID, action)
	if err != nil {
		return "", "", err
	}
	next, err := Next(r.Status, action)
	if err != nil {
		return "", "", fmt.Errorf("%w: cannot %s a %s rental", err, action, r.Status)
	}
	return role, next, nil
}

func (r *Rental) Accept(actorID string, item *catalog.Item, now time.Time) error {
	_, next, err := r.plan(actorID, ActionAccept)
	if err != nil {
		return err
	}
	if item == nil || item.Deleted || !item.Available {
		return ErrItemWithdrawn
	}
	now = now.UTC()
	r.Status = next
	r.AcceptedAt = now
	r.UpdatedAt = now
	r.Record(RentalAccepted{RentalID: r.ID, ItemID: r.ItemID, At: now})
	return nil
}

// Confirm moves an accepted request to CONFIRMED once paid. A repeated confirm
// by the renter of an already confirmed rental reports changed=false and no error.
func (r *Rental) Confirm(actorID string, paid bool, now time.Time) (changed bool, err error) {
	if r.Status == StatusConfirmed {
		if _, err := r.Authorize(actorID, ActionConfirm); err != nil {
			return false, err
		}
		return false, nil
	}
	_, next, err := r.plan(actorID, ActionConfirm)
	if err != nil {
		return false, err
	}
	if !paid {
		return false, ErrPaymentRequired
	}
	now = now.UTC()
	r.Status = next
	r.RenterConfirmedAt = now
	r.UpdatedAt = now
	r.Record(RentalConfirmed{RentalID: r.ID, ItemID: r.ItemID, Period: r.Period, Total: r.TotalPrice, At: now})
	return true, nil
}

// ExtensionSuffix validates newEnd and returns the days an extension would add.
func (r *Rental) ExtensionSuffix(actorID string, newEnd time.Time) (daterange.DateRange, error) {
	if _, _, err := r.plan(actorID, ActionExtend); err != nil {
		return daterange.DateRange{}, err
	}
	newEnd = daterange.Day(newEnd)
	if !newEnd.After(r.Period.End) {
		return daterange.DateRange{}, ErrEndNotExtended
	}
	return daterange.DateRange{Start: r.Period.End.AddDate(0, 0, 1), End: newEnd}, nil
}

// Extend advances the end date; the caller has already checked the suffix for conflicts.
func (r *Rental) Extend(actorID string, newEnd time.Time, now time.Time) (daterange.DateRange, error) {
	suffix, err := r.ExtensionSuffix(actorID, newEnd)
	if err != nil {
		return daterange.DateRange{}, err
	}
	added := suffix.Days()
	total, err := r.TotalPrice.Plus(r.DailyPrice.Times(added))
	if err != nil {
		return daterange.DateRange{}, err
	}
	now = now.UTC()
	r.Period.End = suffix.End
	r.DurationDays += added
	r.TotalPrice = total
	r.UpdatedAt = now
	r.Record(RentalExtended{RentalID: r.ID, ItemID: r.ItemID, Added: suffix, Total: r.TotalPrice, At: now})
	return suffix, nil
}

func (r *Rental) PickUp(actorID string, now time.Time) error {
	_, next, err := r.plan(actorID, ActionPickUp)
	if err != nil {
		return err
	}
	if daterange.Today(now).Before(r.Period.Start) {
		return ErrPickupTooEarly
	}
	now = now.UTC()
	r.Status = next
	r.PickupAt = now
	r.UpdatedAt = now
	r.Record(RentalPickedUp{RentalID: r.ID, ItemID: r.ItemID, At: now})
	return nil
}

func (r *Rental) Return(actorID string, now time.Time) error {
	_, next, err := r.plan(actorID, ActionReturn)
	if err != nil {
		return err
	}
	now = now.UTC()
	r.Status = next
	r.ReturnAt = now
	r.UpdatedAt = now
	r.Record(RentalReturned{RentalID: r.ID, ItemID: r.ItemID, At: now})
	return nil
}

func (r *Rental) Dispute(actorID string, now time.Time) error {
	role, next, err := r.plan(actorID, ActionDispute)
	if err != nil {
		return err
	}
	now = now.UTC()
	r.Status = next
	r.UpdatedAt = now
	r.Record(RentalDisputed{RentalID: r.ID, ItemID: r.ItemID, OpenedBy: role, At: now})
	return nil
}

func (r *Rental) Cancel(actorID, reason string, now time.Time) error {
	role, next, err := r.plan(actorID, ActionCancel)
	if err != nil {
		return err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "cancelled-by-" + string(role)
	}
	r.cancel(next, reason, now)
	return nil
}

// Expire cancels a request whose start date passed before it was confirmed.
func (r *Rental) Expire(now time.Time) error {
	_, next, err := r.plan(SystemActor, ActionExpire)
	if err != nil {
		return err
	}
	if !r.Period.Start.Before(daterange.Today(now)) {
		return ErrNotStale
	}
	r.cancel(next, "expired", now)
	return nil
}

func (r *Rental) cancel(next Status, reason string, now time.Time) {
	previous := r.Status
	now = now.UTC()
	r.Status = next
	r.CancellationReason = reason
	r.CancelledAt = now
	r.UpdatedAt = now
	r.Record(RentalCancelled{RentalID: r.ID, ItemID: r.ItemID, From: previous, Reason: reason, At: now})
}
