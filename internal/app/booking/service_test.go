package booking_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentbook/internal/app/booking"
	availabilityapp "rentbook/internal/app/handlers/availability"
	rentalsapp "rentbook/internal/app/handlers/rentals"
	"rentbook/internal/app/policies"
	"rentbook/internal/domain/catalog"
	"rentbook/internal/domain/payment"
	"rentbook/internal/domain/rental"
	"rentbook/internal/domain/shared/fault"
	"rentbook/internal/domain/shared/money"
	"rentbook/internal/infra/storage/memory"
)

const (
	itemID = "item-1"
	owner  = "owner-1"
	renter = "renter-1"
)

var now = time.Date(2024, 1, 5, 9, 30, 0, 0, time.UTC)

type fixture struct {
	store   *memory.Store
	service *booking.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	require.NoError(t, store.PutItem(context.Background(), catalog.Item{
		ID:         itemID,
		OwnerID:    owner,
		Title:      "Cordless drill",
		DailyPrice: money.Must(100, "USD"),
		Deposit:    money.Must(50, "USD"),
		Available:  true,
	}))
	svc := booking.NewService(booking.Deps{
		UoWFactory:   memory.Factory{Store: store},
		Outbox:       store.Outbox(),
		Payments:     policies.ReceiptPayments{Receipts: store},
		Idempotency:  memory.NewIdempotencyStore(0),
		Clock:        func() time.Time { return now },
		RetryBackoff: []time.Duration{time.Millisecond, time.Millisecond},
	})
	return &fixture{store: store, service: svc}
}

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func (f *fixture) create(t *testing.T, who, start, end string) (string, error) {
	t.Helper()
	res, err := f.service.CreateRental(context.Background(), rentalsapp.CreateRentalCommand{
		RenterID: who,
		ItemID:   itemID,
		Start:    date(start),
		End:      date(end),
	})
	if err != nil {
		return "", err
	}
	return res.ID, nil
}

// confirmed walks a request through accept, payment and confirm.
func (f *fixture) confirmed(t *testing.T, start, end string) string {
	t.Helper()
	ctx := context.Background()
	id, err := f.create(t, renter, start, end)
	require.NoError(t, err)
	_, err = f.service.AcceptRental(ctx, id, owner)
	require.NoError(t, err)
	require.NoError(t, f.store.RecordSucceeded(ctx, payment.Receipt{PaymentID: "pay-" + id, RentalID: id, Amount: money.Must(400, "USD"), SucceededAt: now}))
	res, err := f.service.ConfirmRental(ctx, rentalsapp.ConfirmRentalCommand{RentalID: id, RenterID: renter})
	require.NoError(t, err)
	require.Equal(t, string(rental.StatusConfirmed), res.Status)
	return id
}

func TestCreateRentalSnapshotsPrice(t *testing.T) {
	f := newFixture(t)

	res, err := f.service.CreateRental(context.Background(), rentalsapp.CreateRentalCommand{
		RenterID: renter,
		ItemID:   itemID,
		Start:    date("2024-01-10"),
		End:      date("2024-01-13"),
	})
	require.NoError(t, err)
	assert.Equal(t, string(rental.StatusPending), res.Status)
	assert.Equal(t, 4, res.DurationDays)
	assert.Equal(t, int64(400), res.TotalPrice.Amount)
	assert.Equal(t, "USD", res.TotalPrice.Currency)
	assert.Equal(t, int64(50), res.Deposit.Amount)
	assert.Equal(t, owner, res.OwnerID)
	assert.Len(t, f.store.Outbox().Records(), 1)
}

func TestCreateRentalRejectsOverlap(t *testing.T) {
	f := newFixture(t)
	_, err := f.create(t, renter, "2024-01-10", "2024-01-13")
	require.NoError(t, err)

	_, err = f.create(t, "renter-2", "2024-01-13", "2024-01-15")
	require.ErrorIs(t, err, rental.ErrDatesUnavailable)
	assert.True(t, errors.Is(err, fault.ErrConflict))

	_, err = f.create(t, "renter-2", "2024-01-14", "2024-01-15")
	assert.NoError(t, err)
}

func TestCreateRentalValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.create(t, owner, "2024-01-10", "2024-01-13")
	assert.ErrorIs(t, err, rental.ErrOwnItem)

	_, err = f.create(t, renter, "2024-01-01", "2024-01-03")
	assert.ErrorIs(t, err, rental.ErrStartInPast)

	_, err = f.create(t, "", "2024-01-10", "2024-01-13")
	assert.ErrorIs(t, err, fault.ErrValidation)

	_, err = f.service.CreateRental(context.Background(), rentalsapp.CreateRentalCommand{
		RenterID: renter, ItemID: "missing", Start: date("2024-01-10"), End: date("2024-01-12"),
	})
	assert.ErrorIs(t, err, catalog.ErrItemNotFound)
}

func TestConcurrentOverlappingCreatesAdmitOne(t *testing.T) {
	f := newFixture(t)

	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.create(t, []string{"renter-a", "renter-b"}[i], "2024-01-10", "2024-01-14")
		}(i)
	}
	wg.Wait()

	succeeded, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, fault.ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, conflicts)
}

func TestConfirmRequiresPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id, err := f.create(t, renter, "2024-01-10", "2024-01-13")
	require.NoError(t, err)

	_, err = f.service.ConfirmRental(ctx, rentalsapp.ConfirmRentalCommand{RentalID: id, RenterID: renter})
	assert.ErrorIs(t, err, rental.ErrInvalidState)

	_, err = f.service.AcceptRental(ctx, id, owner)
	require.NoError(t, err)
	_, err = f.service.ConfirmRental(ctx, rentalsapp.ConfirmRentalCommand{RentalID: id, RenterID: renter})
	assert.ErrorIs(t, err, rental.ErrPaymentRequired)
}

func TestConfirmBlocksCalendarAndIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.confirmed(t, "2024-01-10", "2024-01-13")

	again, err := f.service.ConfirmRental(ctx, rentalsapp.ConfirmRentalCommand{RentalID: id, RenterID: renter})
	require.NoError(t, err)
	assert.Equal(t, string(rental.StatusConfirmed), again.Status)

	check, err := f.service.CheckAvailability(ctx, availabilityapp.CheckAvailabilityQuery{
		ItemID: itemID, Start: date("2024-01-12"), End: date("2024-01-15"),
	})
	require.NoError(t, err)
	assert.False(t, check.IsAvailable)
	assert.Equal(t, []string{"2024-01-12", "2024-01-13"}, check.UnavailableDates)

	cal, err := f.service.GetAvailabilityCalendar(ctx, availabilityapp.GetCalendarQuery{ItemID: itemID, Months: 1})
	require.NoError(t, err)
	var held []string
	for _, d := range cal.Days {
		if d.RentalID == id {
			held = append(held, d.Date)
		}
	}
	assert.Equal(t, []string{"2024-01-10", "2024-01-11", "2024-01-12", "2024-01-13"}, held)
}

func TestExtendConflictKeepsEndDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.create(t, "renter-2", "2024-01-15", "2024-01-16")
	require.NoError(t, err)
	first := f.confirmed(t, "2024-01-10", "2024-01-12")

	_, err = f.service.ExtendRental(ctx, rentalsapp.ExtendRentalCommand{RentalID: first, Actor: renter, NewEnd: date("2024-01-15")})
	require.ErrorIs(t, err, rental.ErrDatesUnavailable)

	got, err := f.service.GetRental(ctx, first, renter)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-12", got.EndDate)
	assert.Equal(t, int64(300), got.TotalPrice.Amount)

	extended, err := f.service.ExtendRental(ctx, rentalsapp.ExtendRentalCommand{RentalID: first, Actor: renter, NewEnd: date("2024-01-14")})
	require.NoError(t, err)
	assert.Equal(t, "2024-01-14", extended.EndDate)
	assert.Equal(t, 5, extended.DurationDays)
	assert.Equal(t, int64(500), extended.TotalPrice.Amount)
}

func TestCancelReleasesDates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.confirmed(t, "2024-01-10", "2024-01-13")

	res, err := f.service.CancelRental(ctx, rentalsapp.CancelRentalCommand{RentalID: id, Actor: renter})
	require.NoError(t, err)
	assert.Equal(t, string(rental.StatusCancelled), res.Status)
	assert.Equal(t, "cancelled-by-renter", res.CancellationReason)

	check, err := f.service.CheckAvailability(ctx, availabilityapp.CheckAvailabilityQuery{
		ItemID: itemID, Start: date("2024-01-10"), End: date("2024-01-13"),
	})
	require.NoError(t, err)
	assert.True(t, check.IsAvailable)

	_, err = f.create(t, "renter-2", "2024-01-11", "2024-01-12")
	assert.NoError(t, err)
}

func TestLifecycleThroughReturn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.confirmed(t, "2024-01-05", "2024-01-07")

	_, err := f.service.ReturnRental(ctx, id, owner)
	assert.ErrorIs(t, err, rental.ErrInvalidState)

	_, err = f.service.PickUpRental(ctx, id, renter)
	assert.ErrorIs(t, err, fault.ErrForbidden)

	active, err := f.service.PickUpRental(ctx, id, owner)
	require.NoError(t, err)
	assert.Equal(t, string(rental.StatusActive), active.Status)

	done, err := f.service.ReturnRental(ctx, id, owner)
	require.NoError(t, err)
	assert.Equal(t, string(rental.StatusCompleted), done.Status)

	_, err = f.service.CancelRental(ctx, rentalsapp.CancelRentalCommand{RentalID: id, Actor: renter})
	assert.ErrorIs(t, err, rental.ErrInvalidState)
}

func TestExpireStaleRentals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stale, err := f.create(t, renter, "2024-01-06", "2024-01-08")
	require.NoError(t, err)
	fresh, err := f.create(t, renter, "2024-01-20", "2024-01-21")
	require.NoError(t, err)

	res, err := f.service.ExpireStaleRentals(ctx, date("2024-01-07"))
	require.NoError(t, err)
	assert.Equal(t, []string{stale}, res.Expired)

	got, err := f.service.GetRental(ctx, stale, renter)
	require.NoError(t, err)
	assert.Equal(t, string(rental.StatusCancelled), got.Status)
	assert.Equal(t, "expired", got.CancellationReason)

	got, err = f.service.GetRental(ctx, fresh, renter)
	require.NoError(t, err)
	assert.Equal(t, string(rental.StatusPending), got.Status)

	res, err = f.service.ExpireStaleRentals(ctx, date("2024-01-07"))
	require.NoError(t, err)
	assert.Empty(t, res.Expired)
}

func TestOwnerBlockAndUnblock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.BlockDates(ctx, availabilityapp.BlockDatesCommand{
		ItemID: itemID, OwnerID: renter, Start: date("2024-02-01"), End: date("2024-02-03"),
	})
	assert.ErrorIs(t, err, fault.ErrForbidden)

	res, err := f.service.BlockDates(ctx, availabilityapp.BlockDatesCommand{
		ItemID: itemID, OwnerID: owner, Start: date("2024-02-01"), End: date("2024-02-03"), Reason: "MAINTENANCE", Note: "service",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Changed)

	_, err = f.create(t, renter, "2024-02-03", "2024-02-05")
	assert.ErrorIs(t, err, rental.ErrDatesUnavailable)

	res, err = f.service.UnblockDates(ctx, availabilityapp.UnblockDatesCommand{
		ItemID: itemID, OwnerID: owner, Start: date("2024-02-01"), End: date("2024-02-03"), Reason: "MAINTENANCE",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Changed)

	_, err = f.create(t, renter, "2024-02-03", "2024-02-05")
	assert.NoError(t, err)
}

func TestCreateRentalReplaysIdempotencyKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cmd := rentalsapp.CreateRentalCommand{
		RenterID:        renter,
		ItemID:          itemID,
		Start:           date("2024-01-10"),
		End:             date("2024-01-13"),
		IdempotencyKeyV: "create-1",
	}

	first, err := f.service.CreateRental(ctx, cmd)
	require.NoError(t, err)
	second, err := f.service.CreateRental(ctx, cmd)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	list, err := f.service.ListRenterRentals(ctx, renter)
	require.NoError(t, err)
	assert.Len(t, list.Items, 1)
}

func TestGetRentalHidesFromStrangers(t *testing.T) {
	f := newFixture(t)
	id, err := f.create(t, renter, "2024-01-10", "2024-01-13")
	require.NoError(t, err)

	_, err = f.service.GetRental(context.Background(), id, "someone-else")
	assert.ErrorIs(t, err, fault.ErrForbidden)

	owned, err := f.service.ListOwnerRentals(context.Background(), owner)
	require.NoError(t, err)
	require.Len(t, owned.Items, 1)
	assert.Equal(t, id, owned.Items[0].ID)
}
