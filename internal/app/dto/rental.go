package dto

import (
	"time"

	"rentbook/internal/domain/rental"
	"rentbook/internal/domain/shared/daterange"
	"rentbook/internal/domain/shared/money"
)

type MoneyDTO struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func MapMoney(m money.Money) MoneyDTO {
	return MoneyDTO{Amount: m.Amount, Currency: m.Currency}
}

type Rental struct {
	ID                 string     `json:"id"`
	ItemID             string     `json:"item_id"`
	RenterID           string     `json:"renter_id"`
	OwnerID            string     `json:"owner_id"`
	StartDate          string     `json:"start_date"`
	EndDate            string     `json:"end_date"`
	DurationDays       int        `json:"duration_days"`
	DailyPrice         MoneyDTO   `json:"daily_price"`
	TotalPrice         MoneyDTO   `json:"total_price"`
	Deposit            MoneyDTO   `json:"deposit"`
	Status             string     `json:"status"`
	AcceptedAt         *time.Time `json:"accepted_at,omitempty"`
	RenterConfirmedAt  *time.Time `json:"renter_confirmed_at,omitempty"`
	PickupAt           *time.Time `json:"pickup_at,omitempty"`
	ReturnAt           *time.Time `json:"return_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

type RentalCollection struct {
	Items []Rental `json:"items"`
}

func MapRental(r *rental.Rental) Rental {
	if r == nil {
		return Rental{}
	}
	return Rental{
		ID:                 string(r.ID),
		ItemID:             string(r.ItemID),
		RenterID:           r.RenterID,
		OwnerID:            r.OwnerID,
		StartDate:          r.Period.Start.Format(daterange.Layout),
		EndDate:            r.Period.End.Format(daterange.Layout),
		DurationDays:       r.DurationDays,
		DailyPrice:         MapMoney(r.DailyPrice),
		TotalPrice:         MapMoney(r.TotalPrice),
		Deposit:            MapMoney(r.Deposit),
		Status:             string(r.Status),
		AcceptedAt:         optionalTime(r.AcceptedAt),
		RenterConfirmedAt:  optionalTime(r.RenterConfirmedAt),
		PickupAt:           optionalTime(r.PickupAt),
		ReturnAt:           optionalTime(r.ReturnAt),
		CancelledAt:        optionalTime(r.CancelledAt),
		CancellationReason: r.CancellationReason,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

func MapRentals(rs []*rental.Rental) RentalCollection {
	items := make([]Rental, 0, len(rs))
	for _, r := range rs {
		items = append(items, MapRental(r))
	}
	return RentalCollection{Items: items}
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
