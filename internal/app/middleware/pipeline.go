package middleware

import (
	"context"

	"rentbook/internal/app/commands"
	"rentbook/internal/app/queries"
)

type CommandMiddleware func(next commands.Bus) commands.Bus

type QueryMiddleware func(next queries.Bus) queries.Bus

// DispatchFunc lets a closure stand in for a command bus.
type DispatchFunc func(ctx context.Context, cmd commands.Command) (any, error)

func (f DispatchFunc) Dispatch(ctx context.Context, cmd commands.Command) (any, error) {
	return f(ctx, cmd)
}

// AskFunc lets a closure stand in for a query bus.
type AskFunc func(ctx context.Context, q queries.Query) (any, error)

func (f AskFunc) Ask(ctx context.Context, q queries.Query) (any, error) {
	return f(ctx, q)
}

// ChainCommands wraps base so that mws[0] sees a command first.
func ChainCommands(base commands.Bus, mws ...CommandMiddleware) commands.Bus {
	for i := len(mws) - 1; i >= 0; i-- {
		base = mws[i](base)
	}
	return base
}

func ChainQueries(base queries.Bus, mws ...QueryMiddleware) queries.Bus {
	for i := len(mws) - 1; i >= 0; i-- {
		base = mws[i](base)
	}
	return base
}

// precheck is a command middleware that stops at the first failing check.
type precheck func(ctx context.Context, message any) error

func (check precheck) commands() CommandMiddleware {
	return func(next commands.Bus) commands.Bus {
		return DispatchFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if err := check(ctx, cmd); err != nil {
				return nil, err
			}
			return next.Dispatch(ctx, cmd)
		})
	}
}

func (check precheck) queries() QueryMiddleware {
	return func(next queries.Bus) queries.Bus {
		return AskFunc(func(ctx context.Context, q queries.Query) (any, error) {
			if err := check(ctx, q); err != nil {
				return nil, err
			}
			return next.Ask(ctx, q)
		})
	}
}
