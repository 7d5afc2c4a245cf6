package middleware

import (
	"context"

	"rentbook/internal/app/commands"
	"rentbook/internal/app/uow"
)

// Transaction runs each command in its own read-write unit of work. Handlers
// find the unit in the context; it commits only if the handler succeeds.
func Transaction(factory uow.UoWFactory) CommandMiddleware {
	if factory == nil {
		panic("middleware: uow factory required")
	}
	return func(next commands.Bus) commands.Bus {
		return DispatchFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			return uow.Do(ctx, factory, uow.TxOptions{}, func(ctx context.Context, _ uow.UnitOfWork) (any, error) {
				return next.Dispatch(ctx, cmd)
			})
		})
	}
}
