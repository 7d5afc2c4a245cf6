package schedule

import "context"

// Job is a unit of periodic background work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduler runs jobs on a cron-style spec until its context ends.
type Scheduler interface {
	Register(spec string, job Job) error
	Start(ctx context.Context) error
}
