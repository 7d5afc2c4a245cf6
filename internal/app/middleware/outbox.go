package middleware

import (
	"context"
	"log/slog"

	"rentbook/internal/app/commands"
	"rentbook/internal/app/outbox"
)

// OutboxFlush wakes relays once the wrapped command committed. Place it outside
// Transaction. Records are already durable, so a failed signal is only logged.
func OutboxFlush(box outbox.Outbox, logger *slog.Logger) CommandMiddleware {
	if box == nil {
		panic("middleware: outbox required")
	}
	return func(next commands.Bus) commands.Bus {
		return DispatchFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			res, err := next.Dispatch(ctx, cmd)
			if err != nil {
				return nil, err
			}
			if err := box.Flush(ctx); err != nil && logger != nil {
				logger.Warn("outbox flush failed", "command", cmd.Key(), "error", err)
			}
			return res, nil
		})
	}
}
