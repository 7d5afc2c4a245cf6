package schedule

import (
	"context"
	"log/slog"
	"time"

	"rentbook/internal/app/dto"
)

// Expirer cancels rental requests whose start date passed unconfirmed.
type Expirer interface {
	ExpireStaleRentals(ctx context.Context, asOf time.Time) (*dto.ExpireResult, error)
}

type ExpireStaleJob struct {
	Service Expirer
	Now     func() time.Time
	Logger  *slog.Logger
}

func (j *ExpireStaleJob) Name() string { return "rentals.expire_stale" }

func (j *ExpireStaleJob) Run(ctx context.Context) error {
	now := time.Now
	if j.Now != nil {
		now = j.Now
	}
	res, err := j.Service.ExpireStaleRentals(ctx, now().UTC())
	if err != nil {
		return err
	}
	if j.Logger != nil && res != nil && len(res.Expired) > 0 {
		j.Logger.Info("stale rentals expired", "count", len(res.Expired), "as_of", res.RanAt)
	}
	return nil
}
