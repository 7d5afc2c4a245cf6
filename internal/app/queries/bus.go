// Package queries routes read-only lookups. Queries skip the command
// middleware chain and run against read-only units of work.
package queries

import (
	"context"
	"errors"
	"fmt"
)

type Query interface {
	Key() string
}

type Handler[Q Query, R any] interface {
	Handle(ctx context.Context, q Q) (R, error)
}

type HandlerFunc[Q Query, R any] func(ctx context.Context, q Q) (R, error)

func (f HandlerFunc[Q, R]) Handle(ctx context.Context, q Q) (R, error) {
	return f(ctx, q)
}

type Bus interface {
	Ask(ctx context.Context, q Query) (any, error)
}

var ErrUnknownQuery = errors.New("queries: no handler registered")

// Table is filled once during wiring and read concurrently afterwards.
type Table map[string]func(ctx context.Context, q Query) (any, error)

func (t Table) Ask(ctx context.Context, q Query) (any, error) {
	fn, ok := t[q.Key()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownQuery, q.Key())
	}
	return fn(ctx, q)
}

// Register binds h to the key of query type Q.
func Register[Q Query, R any](t Table, h Handler[Q, R]) {
	var zero Q
	key := zero.Key()
	if _, dup := t[key]; dup {
		panic(fmt.Sprintf("queries: %q registered twice", key))
	}
	t[key] = func(ctx context.Context, raw Query) (any, error) {
		q, ok := raw.(Q)
		if !ok {
			return nil, fmt.Errorf("queries: %s routed a %T", key, raw)
		}
		return h.Handle(ctx, q)
	}
}

// Ask runs q and asserts the result type.
func Ask[R any, Q Query](ctx context.Context, bus Bus, q Q) (R, error) {
	var out R
	res, err := bus.Ask(ctx, q)
	if err != nil || res == nil {
		return out, err
	}
	out, ok := res.(R)
	if !ok {
		return out, fmt.Errorf("queries: %s returned %T", q.Key(), res)
	}
	return out, nil
}
