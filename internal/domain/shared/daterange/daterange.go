package daterange

import (
	"iter"
	"time"

	"rentbook/internal/domain/shared/fault"
)

const Layout = "2006-01-02"

var (
	ErrInvalidRange = fault.New(fault.ErrValidation, "daterange: end must not be before start")
	ErrEmptyRange   = fault.New(fault.ErrValidation, "daterange: end must be after start")
	ErrInvalidDate  = fault.New(fault.ErrValidation, "daterange: date must be YYYY-MM-DD")
)

// DateRange is an inclusive interval of whole UTC calendar days [Start, End].
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Today returns the current calendar day for now.
func Today(now time.Time) time.Time {
	return Day(now)
}

// Parse reads a YYYY-MM-DD date.
func Parse(value string) (time.Time, error) {
	t, err := time.Parse(Layout, value)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

// New builds an inclusive range allowing single-day ranges (start == end).
func New(start, end time.Time) (DateRange, error) {
	dr := DateRange{Start: Day(start), End: Day(end)}
	if dr.Start.IsZero() || dr.End.IsZero() || dr.End.Before(dr.Start) {
		return DateRange{}, ErrInvalidRange
	}
	return dr, nil
}

// NewStrict builds a range that spans at least two days (end > start).
func NewStrict(start, end time.Time) (DateRange, error) {
	dr, err := New(start, end)
	if err != nil {
		return DateRange{}, err
	}
	if !dr.End.After(dr.Start) {
		return DateRange{}, ErrEmptyRange
	}
	return dr, nil
}

// Days returns the inclusive day count.
func (dr DateRange) Days() int {
	return DaysBetween(dr.Start, dr.End) + 1
}

// DaysBetween returns the whole-day distance from a to b.
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)).Hours() / 24)
}

// Overlaps treats both ends as occupied: a range ending on the day another starts conflicts.
func (dr DateRange) Overlaps(other DateRange) bool {
	return !dr.Start.After(other.End) && !other.Start.After(dr.End)
}

func (dr DateRange) Contains(t time.Time) bool {
	d := Day(t)
	return !d.Before(dr.Start) && !d.After(dr.End)
}

// Intersect returns the shared days of both ranges.
func (dr DateRange) Intersect(other DateRange) (DateRange, bool) {
	if !dr.Overlaps(other) {
		return DateRange{}, false
	}
	start := dr.Start
	if other.Start.After(start) {
		start = other.Start
	}
	end := dr.End
	if other.End.Before(end) {
		end = other.End
	}
	return DateRange{Start: start, End: end}, true
}

// Each yields every day of the range in order. The sequence can be ranged over repeatedly.
func (dr DateRange) Each() iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		for d := dr.Start; !d.After(dr.End); d = d.AddDate(0, 0, 1) {
			if !yield(d) {
				return
			}
		}
	}
}

func (dr DateRange) String() string {
	return dr.Start.Format(Layout) + ".." + dr.End.Format(Layout)
}
