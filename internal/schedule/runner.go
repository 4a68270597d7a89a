// Package schedule runs the analysis job on a cron schedule in serve mode.
package schedule

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/chtc/gpureport/internal/errors"
)

// Job is one scheduled unit of work.
type Job func(ctx context.Context) error

// Runner triggers a Job on a cron schedule and remembers the outcome of the
// most recent run. It doubles as the readiness signal: the reporter is ready
// once one run has succeeded.
type Runner struct {
	cron *cron.Cron
	job  Job

	mu          sync.Mutex
	lastSuccess time.Time
	lastErr     error
}

// New creates a Runner for the given cron spec (standard five-field syntax,
// plus descriptors like @hourly and @every).
func New(spec string, job Job) (*Runner, error) {
	r := &Runner{job: job}

	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		if err := r.RunNow(context.Background()); err != nil {
			slog.Error("scheduled run failed", "error", err)
		}
	}); err != nil {
		return nil, errors.New(errors.CodeConfigInvalid, "parse schedule "+spec, err)
	}
	r.cron = c

	return r, nil
}

// Start begins the schedule in a background goroutine.
func (r *Runner) Start() {
	r.cron.Start()
}

// Stop halts the schedule and waits for a running job to finish, bounded by
// the context.
func (r *Runner) Stop(ctx context.Context) error {
	stopped := r.cron.Stop()
	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunNow executes the job immediately, outside the schedule, and records
// the outcome.
func (r *Runner) RunNow(ctx context.Context) error {
	err := r.job(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastErr = err
	if err == nil {
		r.lastSuccess = time.Now()
	}
	return err
}

// IsReady reports whether at least one run has succeeded.
func (r *Runner) IsReady() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.lastSuccess.IsZero()
}

// LastError returns the error from the most recent run, or nil.
func (r *Runner) LastError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}
