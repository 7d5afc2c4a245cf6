package dto

import (
	"iter"
	"time"

	"rentbook/internal/domain/availability"
	"rentbook/internal/domain/shared/daterange"
)

type CalendarDay struct {
	Date        string `json:"date"`
	IsAvailable bool   `json:"is_available"`
	BlockReason string `json:"block_reason,omitempty"`
	RentalID    string `json:"rental_id,omitempty"`
	Note        string `json:"note,omitempty"`
}

type Calendar struct {
	ItemID string        `json:"item_id"`
	From   string        `json:"from"`
	To     string        `json:"to"`
	Days   []CalendarDay `json:"days"`
}

func MapCalendar(itemID string, window daterange.DateRange, days iter.Seq[availability.Day]) Calendar {
	out := Calendar{
		ItemID: itemID,
		From:   window.Start.Format(daterange.Layout),
		To:     window.End.Format(daterange.Layout),
		Days:   make([]CalendarDay, 0, window.Days()),
	}
	for d := range days {
		out.Days = append(out.Days, CalendarDay{
			Date:        d.Date.Format(daterange.Layout),
			IsAvailable: d.Available,
			BlockReason: string(d.Reason),
			RentalID:    d.RentalID,
			Note:        d.Note,
		})
	}
	return out
}

type AvailabilityCheck struct {
	ItemID           string   `json:"item_id"`
	IsAvailable      bool     `json:"is_available"`
	UnavailableDates []string `json:"unavailable_dates"`
}

func MapCheck(itemID string, check availability.Check) AvailabilityCheck {
	dates := make([]string, 0, len(check.Unavailable))
	for _, d := range check.Unavailable {
		dates = append(dates, d.Format(daterange.Layout))
	}
	return AvailabilityCheck{ItemID: itemID, IsAvailable: check.Available, UnavailableDates: dates}
}

type BlockResult struct {
	ItemID  string `json:"item_id"`
	Changed int    `json:"changed"`
}

type ExpireResult struct {
	Expired []string  `json:"expired"`
	RanAt   time.Time `json:"ran_at"`
}
