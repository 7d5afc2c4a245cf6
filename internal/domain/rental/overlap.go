package rental

import (
	"fmt"

	"rentbook/internal/domain/shared/daterange"
)

// Conflicts returns the blocking rentals whose period overlaps candidate.
// exclude skips the rental being extended; pass "" on creation.
func Conflicts(existing []*Rental, candidate daterange.DateRange, exclude RentalID) []*Rental {
	var out []*Rental
	for _, r := range existing {
		if r == nil || r.ID == exclude || r.Status.Terminal() {
			continue
		}
		if r.Period.Overlaps(candidate) {
			out = append(out, r)
		}
	}
	return out
}

// EnsureNoOverlap fails with ErrDatesUnavailable when candidate collides with another rental.
func EnsureNoOverlap(existing []*Rental, candidate daterange.DateRange, exclude RentalID) error {
	conflicts := Conflicts(existing, candidate, exclude)
	if len(conflicts) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s overlaps rental %s (%s)", ErrDatesUnavailable, candidate, conflicts[0].ID, conflicts[0].Period)
}
