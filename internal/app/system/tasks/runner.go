// internal/app/system/tasks/runner.go
// Package tasks runs periodic maintenance jobs in the background.
package tasks

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Job is a function run once at start and then every Interval.
type Job struct {
	Name     string
	Interval time.Duration
	Timeout  time.Duration // per run; zero uses the runner default
	Run      func(ctx context.Context) error
}

// Runner owns one goroutine per registered job.
type Runner struct {
	logger  *zap.Logger
	timeout time.Duration
	jobs    []Job

	cancel context.CancelFunc
	group  *errgroup.Group

	mu       sync.Mutex
	inFlight map[string]int
}

// New returns a Runner whose jobs are bounded by defaultTimeout per run
// unless they set their own. Zero means unbounded.
func New(logger *zap.Logger, defaultTimeout time.Duration) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		logger:   logger,
		timeout:  defaultTimeout,
		inFlight: make(map[string]int),
	}
}

// Register adds a job. It must be called before Start. Jobs without a
// positive interval are dropped with a warning.
func (r *Runner) Register(job Job) {
	if job.Interval <= 0 {
		r.logger.Warn("job not registered: interval must be positive", zap.String("job", job.Name))
		return
	}
	r.jobs = append(r.jobs, job)
}

// Jobs lists the registered job names in registration order.
func (r *Runner) Jobs() []string {
	names := make([]string, 0, len(r.jobs))
	for _, j := range r.jobs {
		names = append(names, j.Name)
	}
	return names
}

// Start launches every registered job.
func (r *Runner) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.group = new(errgroup.Group)

	for _, job := range r.jobs {
		r.group.Go(func() error {
			r.loop(ctx, job)
			return nil
		})
	}
}

// Stop cancels all jobs and waits for them until ctx is done, in which case
// it returns ctx.Err() and logs the jobs that are still running.
func (r *Runner) Stop(ctx context.Context) error {
	if r.cancel == nil {
		return nil
	}
	r.cancel()

	done := make(chan struct{})
	go func() {
		_ = r.group.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("background task runner stopped")
		return nil
	case <-ctx.Done():
		r.logger.Warn("background task runner did not stop in time",
			zap.Strings("still_running", r.running()))
		return ctx.Err()
	}
}

// RunOnce runs the named job immediately on the caller's goroutine.
func (r *Runner) RunOnce(ctx context.Context, name string) error {
	i := slices.IndexFunc(r.jobs, func(j Job) bool { return j.Name == name })
	if i < 0 {
		return fmt.Errorf("tasks: no job named %q", name)
	}
	return r.jobs[i].Run(ctx)
}

func (r *Runner) loop(ctx context.Context, job Job) {
	r.runOne(ctx, job)

	t := time.NewTicker(job.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.runOne(ctx, job)
		}
	}
}

func (r *Runner) runOne(ctx context.Context, job Job) {
	r.track(job.Name, 1)
	defer r.track(job.Name, -1)

	limit := job.Timeout
	if limit <= 0 {
		limit = r.timeout
	}
	runCtx := ctx
	if limit > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, limit)
		defer cancel()
	}

	start := time.Now()
	err := job.Run(runCtx)
	took := zap.Duration("duration", time.Since(start))
	switch {
	case err == nil:
		r.logger.Debug("job completed", zap.String("job", job.Name), took)
	case ctx.Err() != nil:
		// shutting down
		r.logger.Debug("job cancelled", zap.String("job", job.Name), took)
	default:
		r.logger.Error("job failed", zap.String("job", job.Name), took, zap.Error(err))
	}
}

func (r *Runner) track(name string, delta int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inFlight[name] += delta
	if r.inFlight[name] <= 0 {
		delete(r.inFlight, name)
	}
}

func (r *Runner) running() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.inFlight))
	for n := range r.inFlight {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
