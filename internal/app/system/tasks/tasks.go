// internal/app/system/tasks/tasks.go

// Package tasks runs named background jobs on fixed intervals. Each
// job also stays invocable as a synchronous single pass (RunOnce) so
// operational tooling and tests never wait on wall-clock time.
package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// Job is one scheduled unit of background work. Run must be safe to
// invoke concurrently with itself; the sweeper's conditional updates
// satisfy that.
type Job struct {
	Name     string
	Interval time.Duration
	Timeout  time.Duration // per-invocation deadline; 0 means no deadline
	Run      func(ctx context.Context) error
}

// Runner schedules a set of jobs. The clock is injected so tests can
// drive ticks with a mock.
type Runner struct {
	jobs []Job
	clk  clock.Clock
	log  *zap.Logger

	mu     sync.Mutex
	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewRunner(clk clock.Clock, logger *zap.Logger, jobs ...Job) *Runner {
	return &Runner{jobs: jobs, clk: clk, log: logger}
}

// Start launches one goroutine per job. Calling Start on a running
// runner is a no-op.
func (r *Runner) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopCh != nil {
		return
	}
	r.stopCh = make(chan struct{})

	for _, job := range r.jobs {
		r.wg.Add(1)
		go r.loop(job, r.stopCh)
		r.log.Info("background job started",
			zap.String("job", job.Name),
			zap.Duration("interval", job.Interval))
	}
}

// Stop signals every job loop to exit and waits for them to finish.
func (r *Runner) Stop() {
	r.mu.Lock()
	stopCh := r.stopCh
	r.stopCh = nil
	r.mu.Unlock()
	if stopCh == nil {
		return
	}
	close(stopCh)
	r.wg.Wait()
	r.log.Info("background jobs stopped")
}

// RunOnce executes every job a single time, synchronously, and returns
// the first error encountered (later jobs still run).
func (r *Runner) RunOnce(ctx context.Context) error {
	var first error
	for _, job := range r.jobs {
		if err := r.invoke(ctx, job); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (r *Runner) loop(job Job, stopCh chan struct{}) {
	defer r.wg.Done()

	ticker := r.clk.Ticker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if err := r.invoke(context.Background(), job); err != nil {
				// Infrastructure faults are logged and retried on the
				// next scheduled cycle, not retried in-loop.
				r.log.Error("background job failed",
					zap.String("job", job.Name),
					zap.Error(err))
			}
		}
	}
}

func (r *Runner) invoke(ctx context.Context, job Job) error {
	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}
	return job.Run(ctx)
}
