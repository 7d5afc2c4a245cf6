package cron

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	runs atomic.Int32
}

func (j *countingJob) Name() string { return "test.counting" }

func (j *countingJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	return ctx.Err()
}

func TestRegisterRejectsBadSpec(t *testing.T) {
	s := New(nil, 0)
	assert.Error(t, s.Register("not a spec", &countingJob{}))
}

func TestSchedulerRunsJobsUntilCancelled(t *testing.T) {
	s := New(nil, time.Second)
	job := &countingJob{}
	require.NoError(t, s.Register("@every 1s", job))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	assert.Eventually(t, func() bool { return job.runs.Load() > 0 }, 3*time.Second, 20*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
