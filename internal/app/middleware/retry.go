package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"rentbook/internal/app/commands"
	"rentbook/internal/domain/shared/fault"
)

// RetryPolicy bounds how often a transaction is re-run after a transient storage failure.
type RetryPolicy struct {
	// Backoff holds the wait before each re-run; its length is the retry budget.
	Backoff []time.Duration
	Logger  *slog.Logger
}

// DefaultRetryBackoff is used when no policy is configured.
var DefaultRetryBackoff = []time.Duration{10 * time.Millisecond, 40 * time.Millisecond, 120 * time.Millisecond}

// Retry re-dispatches commands that failed with fault.ErrTransient. It must sit
// outside Transaction so every attempt runs in a fresh unit of work.
func Retry(policy RetryPolicy) CommandMiddleware {
	backoff := policy.Backoff
	if backoff == nil {
		backoff = DefaultRetryBackoff
	}
	return func(next commands.Bus) commands.Bus {
		return DispatchFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			res, err := next.Dispatch(ctx, cmd)
			for attempt := 0; err != nil && errors.Is(err, fault.ErrTransient) && attempt < len(backoff); attempt++ {
				if policy.Logger != nil {
					policy.Logger.Warn("retrying command after transient failure",
						"command", cmd.Key(), "attempt", attempt+1, "error", err)
				}
				timer := time.NewTimer(backoff[attempt])
				select {
				case <-ctx.Done():
					timer.Stop()
					return nil, errors.Join(err, ctx.Err())
				case <-timer.C:
				}
				res, err = next.Dispatch(ctx, cmd)
			}
			if err != nil {
				return nil, err
			}
			return res, nil
		})
	}
}
