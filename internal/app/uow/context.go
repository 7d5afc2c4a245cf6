package uow

import (
	"context"
	"errors"
)

var ErrUnitOfWorkMissing = errors.New("uow: no unit of work and no factory")

type ctxKey struct{}

// sessionBinder is implemented by units whose repositories read a driver
// session from the context.
type sessionBinder interface {
	InjectContext(context.Context) context.Context
}

// With returns ctx carrying unit.
func With(ctx context.Context, unit UnitOfWork) context.Context {
	if b, ok := unit.(sessionBinder); ok {
		ctx = b.InjectContext(ctx)
	}
	return context.WithValue(ctx, ctxKey{}, unit)
}

func FromContext(ctx context.Context) (UnitOfWork, bool) {
	unit, ok := ctx.Value(ctxKey{}).(UnitOfWork)
	return unit, ok
}

// Do runs fn inside the unit already carried by ctx. Without one it begins a
// unit from f: a read-write unit commits when fn succeeds, a read-only unit is
// always rolled back.
func Do[T any](ctx context.Context, f UoWFactory, opts TxOptions, fn func(context.Context, UnitOfWork) (T, error)) (T, error) {
	var zero T
	if unit, ok := FromContext(ctx); ok {
		return fn(ctx, unit)
	}
	if f == nil {
		return zero, ErrUnitOfWorkMissing
	}
	unit, err := f.Begin(ctx, opts)
	if err != nil {
		return zero, err
	}
	ctx = With(ctx, unit)
	out, err := fn(ctx, unit)
	if err != nil || opts.ReadOnly {
		_ = unit.Rollback(ctx)
		if err != nil {
			return zero, err
		}
		return out, nil
	}
	if err := unit.Commit(ctx); err != nil {
		_ = unit.Rollback(ctx)
		return zero, err
	}
	return out, nil
}

// Write is Do for read-write work without a result.
func Write(ctx context.Context, f UoWFactory, fn func(context.Context, UnitOfWork) error) error {
	_, err := Do(ctx, f, TxOptions{}, func(ctx context.Context, unit UnitOfWork) (struct{}, error) {
		return struct{}{}, fn(ctx, unit)
	})
	return err
}

// Read is Do on a read-only unit.
func Read[T any](ctx context.Context, f UoWFactory, fn func(context.Context, UnitOfWork) (T, error)) (T, error) {
	return Do(ctx, f, TxOptions{ReadOnly: true}, fn)
}
