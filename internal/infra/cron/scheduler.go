// Package cron runs schedule.Jobs on robfig/cron specs.
package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"rentbook/internal/app/schedule"
)

type Scheduler struct {
	cron    *cron.Cron
	logger  *slog.Logger
	timeout time.Duration
	ctx     context.Context
}

// New creates a UTC scheduler. Specs use the five-field format with an
// optional leading seconds field.
func New(logger *slog.Logger, timeout time.Duration) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(time.UTC), cron.WithParser(parser), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger:  logger,
		timeout: timeout,
		ctx:     context.Background(),
	}
}

func (s *Scheduler) Register(spec string, job schedule.Job) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
		defer cancel()
		started := time.Now()
		if err := job.Run(ctx); err != nil {
			s.logger.Error("scheduled job failed", "job", job.Name(), "error", err)
			return
		}
		s.logger.Debug("scheduled job finished", "job", job.Name(), "took", time.Since(started))
	})
	if err != nil {
		return err
	}
	s.logger.Info("scheduled job registered", "job", job.Name(), "spec", spec)
	return nil
}

// Start runs the scheduler until ctx ends, then waits for running jobs.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx = ctx
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	return ctx.Err()
}

var _ schedule.Scheduler = (*Scheduler)(nil)
