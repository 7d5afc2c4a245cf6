package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"rentbook/internal/app/uow"
	"rentbook/internal/domain/availability"
	"rentbook/internal/domain/catalog"
	"rentbook/internal/domain/rental"
)

var ErrUnitOfWorkNotConfigured = errors.New("postgres: unit of work factory missing database")

type Factory struct {
	DB *sqlx.DB
}

func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	tx, err := f.DB.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable, ReadOnly: opts.ReadOnly})
	if err != nil {
		return nil, translate(err)
	}
	return &Unit{tx: tx}, nil
}

// Unit wraps one SERIALIZABLE transaction.
type Unit struct {
	tx *sqlx.Tx
}

func (u *Unit) Items() catalog.Repository {
	return &ItemRepository{q: u.tx}
}

func (u *Unit) Rentals() rental.Repository {
	return &RentalRepository{q: u.tx}
}

func (u *Unit) Availability() availability.Repository {
	return &AvailabilityRepository{q: u.tx}
}

// LockItem serializes writers per item until the transaction ends.
func (u *Unit) LockItem(ctx context.Context, id catalog.ItemID) error {
	_, err := u.tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, string(id))
	return translate(err)
}

func (u *Unit) Commit(context.Context) error {
	return translate(u.tx.Commit())
}

func (u *Unit) Rollback(context.Context) error {
	err := u.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

// querier is satisfied by both *sqlx.DB and *sqlx.Tx.
type querier interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
}
