package tasks_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dalemusser/stratasheet/internal/app/system/tasks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func stopWithin(t *testing.T, r *tasks.Runner, d time.Duration) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return r.Stop(ctx)
}

func TestRunner_RunsImmediatelyThenOnInterval(t *testing.T) {
	r := tasks.New(zap.NewNop(), 0)

	var runs atomic.Int32
	r.Register(tasks.Job{
		Name:     "tick",
		Interval: 20 * time.Millisecond,
		Run: func(context.Context) error {
			runs.Add(1)
			return nil
		},
	})
	r.Start()

	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, stopWithin(t, r, 2*time.Second))
}

func TestRunner_StopCancelsJobContext(t *testing.T) {
	r := tasks.New(zap.NewNop(), 0)

	started := make(chan struct{})
	var sawCancel atomic.Bool
	r.Register(tasks.Job{
		Name:     "waits",
		Interval: time.Hour,
		Run: func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			sawCancel.Store(true)
			return ctx.Err()
		},
	})
	r.Start()
	<-started

	require.NoError(t, stopWithin(t, r, 2*time.Second))
	assert.True(t, sawCancel.Load())
}

func TestRunner_StopTimesOutOnStuckJob(t *testing.T) {
	r := tasks.New(zap.NewNop(), 0)

	release := make(chan struct{})
	started := make(chan struct{})
	r.Register(tasks.Job{
		Name:     "stuck",
		Interval: time.Hour,
		Run: func(context.Context) error {
			close(started)
			<-release
			return nil
		},
	})
	r.Start()
	<-started

	err := stopWithin(t, r, 50*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.NoError(t, stopWithin(t, r, 2*time.Second))
}

func TestRunner_DefaultTimeoutBoundsEachRun(t *testing.T) {
	r := tasks.New(zap.NewNop(), 20*time.Millisecond)

	got := make(chan error, 1)
	r.Register(tasks.Job{
		Name:     "bounded",
		Interval: time.Hour,
		Run: func(ctx context.Context) error {
			<-ctx.Done()
			got <- ctx.Err()
			return ctx.Err()
		},
	})
	r.Start()

	select {
	case err := <-got:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(2 * time.Second):
		t.Fatal("run was not bounded by the default timeout")
	}
	require.NoError(t, stopWithin(t, r, time.Second))
}

func TestRunner_RunOnce(t *testing.T) {
	r := tasks.New(zap.NewNop(), 0)
	boom := errors.New("boom")
	r.Register(tasks.Job{Name: "fails", Interval: time.Hour, Run: func(context.Context) error { return boom }})

	assert.ErrorIs(t, r.RunOnce(context.Background(), "fails"), boom)
	assert.Error(t, r.RunOnce(context.Background(), "missing"))
}

func TestRunner_RegisterSkipsNonPositiveInterval(t *testing.T) {
	r := tasks.New(zap.NewNop(), 0)
	noop := func(context.Context) error { return nil }
	r.Register(tasks.Job{Name: "never", Run: noop})
	r.Register(tasks.Job{Name: "negative", Interval: -time.Second, Run: noop})
	r.Register(tasks.Job{Name: "hourly", Interval: time.Hour, Run: noop})

	assert.Equal(t, []string{"hourly"}, r.Jobs())
}

func TestRunner_StopBeforeStart(t *testing.T) {
	r := tasks.New(zap.NewNop(), 0)
	assert.NoError(t, r.Stop(context.Background()))
}
