package availability

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"time"

	"rentbook/internal/domain/catalog"
	"rentbook/internal/domain/shared/daterange"
	"rentbook/internal/domain/shared/events"
	"rentbook/internal/domain/shared/fault"
)

const (
	HorizonMonths         = 12
	DefaultCalendarMonths = 3
)

var (
	ErrNotOwner       = fault.New(fault.ErrForbidden, "availability: only the item owner can change its calendar")
	ErrStartInPast    = fault.New(fault.ErrValidation, "availability: range starts in the past")
	ErrBeyondHorizon  = fault.New(fault.ErrValidation, "availability: range extends beyond the 12 month horizon")
	ErrInvalidMonths  = fault.New(fault.ErrValidation, "availability: months must be between 1 and 12")
	ErrInvalidReason  = fault.New(fault.ErrValidation, "availability: unsupported block reason")
	ErrRentalRequired = fault.New(fault.ErrValidation, "availability: rental id required")
)

type Reason string

const (
	ReasonNone         Reason = ""
	ReasonOwnerBlocked Reason = "OWNER_BLOCKED"
	ReasonRental       Reason = "RENTAL"
	ReasonMaintenance  Reason = "MAINTENANCE"
)

// ownerReason reports whether an owner may place or lift this kind of block.
func (r Reason) ownerReason() bool {
	return r == ReasonOwnerBlocked || r == ReasonMaintenance
}

// Day is the stored fact for one item and calendar date. RentalID is set iff Reason is RENTAL.
type Day struct {
	ItemID    catalog.ItemID
	Date      time.Time
	Available bool
	Reason    Reason
	RentalID  string
	Note      string
	UpdatedAt time.Time
}

// Free is the synthesized default for dates without a stored row.
func Free(itemID catalog.ItemID, date time.Time) Day {
	return Day{ItemID: itemID, Date: daterange.Day(date), Available: true}
}

func (d Day) release(now time.Time) Day {
	d.Available = true
	d.Reason = ReasonNone
	d.RentalID = ""
	d.Note = ""
	d.UpdatedAt = now
	return d
}

type Repository interface {
	// Range returns stored rows for the item within window ordered by date.
	Range(ctx context.Context, itemID catalog.ItemID, window daterange.DateRange) ([]Day, error)
	// ByRental returns rows held by the rental ordered by date.
	ByRental(ctx context.Context, rentalID string) ([]Day, error)
	// Save upserts rows keyed by (item, date).
	Save(ctx context.Context, days []Day) error
}

// Ledger applies block and release rules to the per-day availability facts of items.
type Ledger struct {
	repo Repository
	events.Recorder
}

func NewLedger(repo Repository) *Ledger {
	return &Ledger{repo: repo}
}

// CalendarWindow resolves the days covered by a calendar view of months starting at from.
func CalendarWindow(from time.Time, months int) (daterange.DateRange, error) {
	if months == 0 {
		months = DefaultCalendarMonths
	}
	if months < 1 || months > HorizonMonths {
		return daterange.DateRange{}, ErrInvalidMonths
	}
	start := daterange.Day(from)
	return daterange.New(start, start.AddDate(0, months, -1))
}

// Calendar loads stored rows once and returns a restartable sequence covering
// every day of window, filling gaps with Free.
func (l *Ledger) Calendar(ctx context.Context, itemID catalog.ItemID, window daterange.DateRange) (iter.Seq[Day], error) {
	stored, err := l.index(ctx, itemID, window)
	if err != nil {
		return nil, err
	}
	return func(yield func(Day) bool) {
		for date := range window.Each() {
			day, ok := stored[date]
			if !ok {
				day = Free(itemID, date)
			}
			if !yield(day) {
				return
			}
		}
	}, nil
}

// ValidateOwnerRange enforces that manual blocks start today or later and stay within the horizon.
func ValidateOwnerRange(r daterange.DateRange, now time.Time) error {
	today := daterange.Today(now)
	if r.Start.Before(today) {
		return ErrStartInPast
	}
	if r.End.After(today.AddDate(0, HorizonMonths, 0)) {
		return ErrBeyondHorizon
	}
	return nil
}

type OwnerBlock struct {
	Item    *catalog.Item
	ActorID string
	Range   daterange.DateRange
	Reason  Reason
	Note    string
}

func (b OwnerBlock) validate(now time.Time) (Reason, error) {
	if b.Item == nil || b.Item.OwnerID != b.ActorID {
		return "", ErrNotOwner
	}
	reason := b.Reason
	if reason == ReasonNone {
		reason = ReasonOwnerBlocked
	}
	if !reason.ownerReason() {
		return "", ErrInvalidReason
	}
	if err := ValidateOwnerRange(b.Range, now); err != nil {
		return "", err
	}
	return reason, nil
}

// BlockOwner marks every day of the range not held by a rental as blocked by the
// owner. Days already carrying the same reason are left untouched. It returns the
// number of days changed.
func (l *Ledger) BlockOwner(ctx context.Context, b OwnerBlock, now time.Time) (int, error) {
	reason, err := b.validate(now)
	if err != nil {
		return 0, err
	}
	stored, err := l.index(ctx, b.Item.ID, b.Range)
	if err != nil {
		return 0, err
	}
	now = now.UTC()
	var changed []Day
	for date := range b.Range.Each() {
		day, ok := stored[date]
		if !ok {
			day = Free(b.Item.ID, date)
		}
		if day.Reason == ReasonRental || day.Reason == reason {
			continue
		}
		day.Available = false
		day.Reason = reason
		day.RentalID = ""
		day.Note = b.Note
		day.UpdatedAt = now
		changed = append(changed, day)
	}
	if err := l.save(ctx, changed); err != nil {
		return 0, err
	}
	if len(changed) > 0 {
		l.Record(DaysBlocked{ItemID: b.Item.ID, Range: b.Range, Reason: reason, Count: len(changed), At: now})
	}
	return len(changed), nil
}

// UnblockOwner releases the days of the range carrying the owner reason. Rental
// blocks are never released here.
func (l *Ledger) UnblockOwner(ctx context.Context, b OwnerBlock, now time.Time) (int, error) {
	reason, err := b.validate(now)
	if err != nil {
		return 0, err
	}
	stored, err := l.index(ctx, b.Item.ID, b.Range)
	if err != nil {
		return 0, err
	}
	now = now.UTC()
	var changed []Day
	for date := range b.Range.Each() {
		day, ok := stored[date]
		if !ok || day.Reason != reason {
			continue
		}
		changed = append(changed, day.release(now))
	}
	if err := l.save(ctx, changed); err != nil {
		return 0, err
	}
	if len(changed) > 0 {
		l.Record(DaysReleased{ItemID: b.Item.ID, Range: b.Range, Reason: reason, Count: len(changed), At: now})
	}
	return len(changed), nil
}

// BlockForRental marks the range as held by rentalID, overriding owner blocks.
func (l *Ledger) BlockForRental(ctx context.Context, itemID catalog.ItemID, rentalID string, r daterange.DateRange, now time.Time) error {
	if rentalID == "" {
		return ErrRentalRequired
	}
	now = now.UTC()
	days := make([]Day, 0, r.Days())
	for date := range r.Each() {
		days = append(days, Day{
			ItemID:    itemID,
			Date:      date,
			Available: false,
			Reason:    ReasonRental,
			RentalID:  rentalID,
			UpdatedAt: now,
		})
	}
	if err := l.save(ctx, days); err != nil {
		return err
	}
	l.Record(DaysBlocked{ItemID: itemID, Range: r, Reason: ReasonRental, RentalID: rentalID, Count: len(days), At: now})
	return nil
}

// ReleaseForRental frees every day pointing at rentalID and returns how many were released.
func (l *Ledger) ReleaseForRental(ctx context.Context, rentalID string, now time.Time) (int, error) {
	if rentalID == "" {
		return 0, ErrRentalRequired
	}
	held, err := l.repo.ByRental(ctx, rentalID)
	if err != nil {
		return 0, err
	}
	if len(held) == 0 {
		return 0, nil
	}
	now = now.UTC()
	released := make([]Day, 0, len(held))
	for _, day := range held {
		released = append(released, day.release(now))
	}
	if err := l.save(ctx, released); err != nil {
		return 0, err
	}
	l.Record(DaysReleased{
		ItemID:   held[0].ItemID,
		Range:    daterange.DateRange{Start: held[0].Date, End: held[len(held)-1].Date},
		Reason:   ReasonRental,
		RentalID: rentalID,
		Count:    len(released),
		At:       now,
	})
	return len(released), nil
}

type Check struct {
	Available   bool
	Unavailable []time.Time
}

// Check reports the days of window that are blocked in the ledger or covered by
// one of the occupied ranges, so a preview agrees with the overlap check used on creation.
func (l *Ledger) Check(ctx context.Context, itemID catalog.ItemID, window daterange.DateRange, occupied ...daterange.DateRange) (Check, error) {
	stored, err := l.index(ctx, itemID, window)
	if err != nil {
		return Check{}, err
	}
	var out Check
	for date := range window.Each() {
		if day, ok := stored[date]; ok && !day.Available {
			out.Unavailable = append(out.Unavailable, date)
			continue
		}
		if slices.ContainsFunc(occupied, func(r daterange.DateRange) bool { return r.Contains(date) }) {
			out.Unavailable = append(out.Unavailable, date)
		}
	}
	out.Available = len(out.Unavailable) == 0
	return out, nil
}

func (l *Ledger) index(ctx context.Context, itemID catalog.ItemID, window daterange.DateRange) (map[time.Time]Day, error) {
	rows, err := l.repo.Range(ctx, itemID, window)
	if err != nil {
		return nil, fmt.Errorf("availability: load %s: %w", window, err)
	}
	stored := make(map[time.Time]Day, len(rows))
	for _, row := range rows {
		row.Date = daterange.Day(row.Date)
		stored[row.Date] = row
	}
	return stored, nil
}

func (l *Ledger) save(ctx context.Context, days []Day) error {
	if len(days) == 0 {
		return nil
	}
	if err := l.repo.Save(ctx, days); err != nil {
		return fmt.Errorf("availability: save %d days: %w", len(days), err)
	}
	return nil
}
