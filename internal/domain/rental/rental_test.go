package rental

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentbook/internal/domain/catalog"
	"rentbook/internal/domain/shared/daterange"
	"rentbook/internal/domain/shared/fault"
	"rentbook/internal/domain/shared/money"
)

const (
	owner  = "owner-1"
	renter = "renter-1"
)

var now = time.Date(2024, 1, 5, 9, 30, 0, 0, time.UTC)

func testItem() *catalog.Item {
	return &catalog.Item{
		ID:         "item-1",
		OwnerID:    owner,
		DailyPrice: money.Must(100, "USD"),
		Deposit:    money.Must(250, "USD"),
		Available:  true,
	}
}

func period(t *testing.T, start, end string) daterange.DateRange {
	t.Helper()
	s, err := daterange.Parse(start)
	require.NoError(t, err)
	e, err := daterange.Parse(end)
	require.NoError(t, err)
	r, err := daterange.New(s, e)
	require.NoError(t, err)
	return r
}

func newPending(t *testing.T) *Rental {
	t.Helper()
	r, err := NewRental(CreateParams{ID: "r-1", Item: testItem(), RenterID: renter, Period: period(t, "2024-01-10", "2024-01-13"), Now: now})
	require.NoError(t, err)
	return r
}

func newConfirmed(t *testing.T) *Rental {
	t.Helper()
	r := newPending(t)
	require.NoError(t, r.Accept(owner, testItem(), now))
	changed, err := r.Confirm(renter, true, now)
	require.NoError(t, err)
	require.True(t, changed)
	return r
}

func TestNewRentalSnapshotsPrice(t *testing.T) {
	r := newPending(t)

	assert.Equal(t, StatusPending, r.Status)
	assert.Equal(t, 4, r.DurationDays)
	assert.Equal(t, money.Must(400, "USD"), r.TotalPrice)
	assert.Equal(t, money.Must(250, "USD"), r.Deposit)
	assert.Equal(t, owner, r.OwnerID)
	require.Len(t, r.Pending(), 1)
	assert.Equal(t, "rental.requested", r.Pending()[0].EventName())
}

func TestNewRentalValidation(t *testing.T) {
	unavailable := testItem()
	unavailable.Available = false

	cases := []struct {
		name   string
		params CreateParams
		want   error
	}{
		{"own item", CreateParams{Item: testItem(), RenterID: owner, Period: period(t, "2024-01-10", "2024-01-13"), Now: now}, ErrOwnItem},
		{"start in past", CreateParams{Item: testItem(), RenterID: renter, Period: period(t, "2024-01-04", "2024-01-13"), Now: now}, ErrStartInPast},
		{"single day", CreateParams{Item: testItem(), RenterID: renter, Period: period(t, "2024-01-10", "2024-01-10"), Now: now}, daterange.ErrEmptyRange},
		{"missing renter", CreateParams{Item: testItem(), RenterID: " ", Period: period(t, "2024-01-10", "2024-01-13"), Now: now}, ErrRenterRequired},
		{"item unavailable", CreateParams{Item: unavailable, RenterID: renter, Period: period(t, "2024-01-10", "2024-01-13"), Now: now}, ErrItemUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewRental(tc.params)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestStartTodayIsAllowed(t *testing.T) {
	_, err := NewRental(CreateParams{Item: testItem(), RenterID: renter, Period: period(t, "2024-01-05", "2024-01-06"), Now: now})
	assert.NoError(t, err)
}

func TestWrongActorIsForbiddenBeforeStateCheck(t *testing.T) {
	r := newPending(t)

	// Confirm from PENDING by the owner: both wrong actor and wrong state.
	_, err := r.Confirm(owner, true, now)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.ErrorIs(t, err, fault.ErrForbidden)

	_, err = r.Confirm(renter, true, now)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.ErrorIs(t, err, fault.ErrInvalidState)

	assert.ErrorIs(t, r.Accept("stranger", testItem(), now), ErrForbidden)
	assert.ErrorIs(t, r.Accept(renter, testItem(), now), ErrForbidden)
	assert.Equal(t, StatusPending, r.Status)
}

func TestAcceptRequiresAvailableItem(t *testing.T) {
	r := newPending(t)
	item := testItem()
	item.Available = false

	err := r.Accept(owner, item, now)
	assert.ErrorIs(t, err, ErrItemWithdrawn)
	assert.Equal(t, StatusPending, r.Status)
	assert.True(t, r.AcceptedAt.IsZero())
}

func TestConfirmRequiresPayment(t *testing.T) {
	r := newPending(t)
	require.NoError(t, r.Accept(owner, testItem(), now))

	_, err := r.Confirm(renter, false, now)
	assert.ErrorIs(t, err, ErrPaymentRequired)
	assert.True(t, errors.Is(err, fault.ErrInvalidState))
	assert.Equal(t, StatusOwnerAccepted, r.Status)
}

func TestConfirmIsIdempotent(t *testing.T) {
	r := newConfirmed(t)
	confirmedAt := r.RenterConfirmedAt
	r.Discard()

	changed, err := r.Confirm(renter, true, now.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, confirmedAt, r.RenterConfirmedAt)
	assert.Empty(t, r.Pending())

	_, err = r.Confirm(owner, true, now)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestExtendAddsDailyPrice(t *testing.T) {
	r := newConfirmed(t)
	newEnd := period(t, "2024-01-15", "2024-01-15").Start

	suffix, err := r.Extend(owner, newEnd, now)
	require.NoError(t, err)

	assert.Equal(t, "2024-01-14..2024-01-15", suffix.String())
	assert.Equal(t, newEnd, r.Period.End)
	assert.Equal(t, 6, r.DurationDays)
	assert.Equal(t, money.Must(600, "USD"), r.TotalPrice)
	assert.Equal(t, money.Must(250, "USD"), r.Deposit)
	assert.Equal(t, StatusConfirmed, r.Status)
}

func TestExtendRejectsEarlierEnd(t *testing.T) {
	r := newConfirmed(t)
	_, err := r.Extend(renter, r.Period.End, now)
	assert.ErrorIs(t, err, ErrEndNotExtended)

	pending := newPending(t)
	_, err = pending.Extend(renter, pending.Period.End.AddDate(0, 0, 3), now)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestCancelDefaultsReason(t *testing.T) {
	r := newConfirmed(t)
	require.NoError(t, r.Cancel(renter, "  ", now))
	assert.Equal(t, StatusCancelled, r.Status)
	assert.Equal(t, "cancelled-by-renter", r.CancellationReason)
	assert.False(t, r.CancelledAt.IsZero())

	assert.ErrorIs(t, r.Cancel(owner, "again", now), ErrInvalidState)
}

func TestPickUpAndReturn(t *testing.T) {
	r := newConfirmed(t)

	assert.ErrorIs(t, r.PickUp(owner, now), ErrPickupTooEarly)

	onStart := time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)
	assert.ErrorIs(t, r.PickUp(renter, onStart), ErrForbidden)
	require.NoError(t, r.PickUp(owner, onStart))
	assert.Equal(t, StatusActive, r.Status)

	require.NoError(t, r.Return(owner, onStart.AddDate(0, 0, 3)))
	assert.Equal(t, StatusCompleted, r.Status)
	assert.True(t, r.Status.Terminal())
}

func TestDisputeKeepsBlocking(t *testing.T) {
	r := newConfirmed(t)
	require.NoError(t, r.Dispute(renter, now))
	assert.Equal(t, StatusDisputed, r.Status)
	assert.False(t, r.Status.Terminal())
	assert.True(t, r.Status.HoldsDates())
}

func TestExpire(t *testing.T) {
	r := newPending(t)
	assert.ErrorIs(t, r.Expire(now), ErrNotStale)

	later := time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC)
	require.NoError(t, r.Expire(later))
	assert.Equal(t, StatusCancelled, r.Status)
	assert.Equal(t, "expired", r.CancellationReason)

	confirmed := newConfirmed(t)
	assert.ErrorIs(t, confirmed.Expire(later), ErrInvalidState)
}

func TestNextTable(t *testing.T) {
	cases := []struct {
		from   Status
		action Action
		want   Status
		ok     bool
	}{
		{StatusPending, ActionAccept, StatusOwnerAccepted, true},
		{StatusOwnerAccepted, ActionConfirm, StatusConfirmed, true},
		{StatusPending, ActionConfirm, "", false},
		{StatusActive, ActionExtend, StatusActive, true},
		{StatusCompleted, ActionCancel, "", false},
		{StatusCancelled, ActionCancel, "", false},
		{StatusDisputed, ActionCancel, StatusCancelled, true},
		{StatusActive, ActionReturn, StatusCompleted, true},
	}
	for _, tc := range cases {
		got, err := Next(tc.from, tc.action)
		if tc.ok {
			require.NoError(t, err, "%s/%s", tc.from, tc.action)
			assert.Equal(t, tc.want, got)
		} else {
			assert.ErrorIs(t, err, ErrInvalidState, "%s/%s", tc.from, tc.action)
		}
	}
}
