package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentbook/internal/app/uow"
	"rentbook/internal/domain/catalog"
	"rentbook/internal/domain/rental"
	"rentbook/internal/domain/shared/daterange"
	"rentbook/internal/domain/shared/fault"
	"rentbook/internal/domain/shared/money"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "postgres"), mock
}

func sampleRental() *rental.Rental {
	usd := func(v int64) money.Money { return money.Must(v, "USD") }
	created := time.Date(2024, 1, 5, 9, 30, 0, 0, time.UTC)
	return &rental.Rental{
		ID:           "r-1",
		ItemID:       "item-1",
		RenterID:     "renter-1",
		OwnerID:      "owner-1",
		Period:       daterange.DateRange{Start: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), End: time.Date(2024, 1, 13, 0, 0, 0, 0, time.UTC)},
		DurationDays: 4,
		DailyPrice:   usd(100),
		TotalPrice:   usd(400),
		Deposit:      usd(250),
		Status:       rental.StatusPending,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
}

func TestRentalSaveInsertsFirstVersion(t *testing.T) {
	db, mock := newMock(t)
	repo := &RentalRepository{q: db}
	r := sampleRental()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO rentals")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Save(context.Background(), r))
	assert.Equal(t, int64(1), r.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRentalSaveDetectsVersionClash(t *testing.T) {
	db, mock := newMock(t)
	repo := &RentalRepository{q: db}
	r := sampleRental()
	r.Version = 3

	mock.ExpectExec(regexp.QuoteMeta("UPDATE rentals SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Save(context.Background(), r)
	require.ErrorIs(t, err, rental.ErrConcurrentUpdate)
	assert.ErrorIs(t, err, fault.ErrTransient)
	assert.Equal(t, int64(3), r.Version)
}

func TestBlockingMapsRows(t *testing.T) {
	db, mock := newMock(t)
	repo := &RentalRepository{q: db}
	window := daterange.DateRange{Start: time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC), End: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)}
	created := time.Date(2024, 1, 5, 9, 30, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"id", "item_id", "renter_id", "owner_id", "start_date", "end_date", "duration_days",
		"currency", "daily_price_amount", "total_price_amount", "deposit_amount", "status",
		"accepted_at", "renter_confirmed_at", "pickup_at", "return_at", "cancelled_at",
		"cancellation_reason", "created_at", "updated_at", "version",
	}).AddRow(
		"r-1", "item-1", "renter-1", "owner-1",
		time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 13, 0, 0, 0, 0, time.UTC), 4,
		"USD", 100, 400, 250, "CONFIRMED",
		created, created, nil, nil, nil,
		"", created, created, 3,
	)
	mock.ExpectQuery(`FROM rentals\s+WHERE item_id = \$1 AND status = ANY\(\$2\)`).
		WithArgs("item-1", sqlmock.AnyArg(), window.End, window.Start).
		WillReturnRows(rows)

	got, err := repo.Blocking(context.Background(), catalog.ItemID("item-1"), window)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, rental.StatusConfirmed, got[0].Status)
	assert.Equal(t, money.Must(400, "USD"), got[0].TotalPrice)
	assert.Equal(t, 4, got[0].Period.Days())
	assert.True(t, got[0].PickupAt.IsZero())
	assert.Equal(t, int64(3), got[0].Version)
}

func TestLockItemSerializationFailureIsTransient(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtext($1))")).
		WithArgs("item-1").
		WillReturnError(&pq.Error{Code: codeSerializationFailure})
	mock.ExpectRollback()

	unit, err := Factory{DB: db}.Begin(context.Background(), uow.TxOptions{})
	require.NoError(t, err)
	err = unit.LockItem(context.Background(), "item-1")
	assert.ErrorIs(t, err, fault.ErrTransient)
	require.NoError(t, unit.Rollback(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTranslateExclusionViolation(t *testing.T) {
	err := translate(&pq.Error{Code: codeExclusionViolation, Message: "conflicting key value violates exclusion constraint"})
	assert.ErrorIs(t, err, rental.ErrDatesUnavailable)
	assert.ErrorIs(t, err, fault.ErrConflict)
	assert.ErrorIs(t, translate(&pq.Error{Code: codeDeadlockDetected}), fault.ErrTransient)
}

func TestInboxSeen(t *testing.T) {
	db, mock := newMock(t)
	inbox := &Inbox{DB: db, Consumer: "payments"}
	query := regexp.QuoteMeta("INSERT INTO app_inbox")
	mock.ExpectExec(query).WithArgs("evt-1", "payments").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(query).WithArgs("evt-1", "payments").WillReturnResult(sqlmock.NewResult(0, 0))

	seen, err := inbox.Seen(context.Background(), "evt-1")
	require.NoError(t, err)
	assert.False(t, seen)
	seen, err = inbox.Seen(context.Background(), "evt-1")
	require.NoError(t, err)
	assert.True(t, seen)
}
