// Package schedule runs recurring jobs (promotion sweeps, compliance
// digests) on cron expressions.
package schedule

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Job is a named unit of recurring work.
type Job struct {
	// Name identifies the job in logs.
	Name string

	// Spec is a standard 5-field cron expression.
	Spec string

	// Run executes the job. Errors are logged, never fatal; the next tick
	// still fires.
	Run func(ctx context.Context) error
}

// Runner schedules jobs with a shared cron instance.
type Runner struct {
	cron   *cron.Cron
	logger *slog.Logger

	// ctx is passed to job runs; canceled when the runner stops.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewRunner creates a stopped runner. Add jobs, then call Start.
func NewRunner(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		cron:   cron.New(),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Add registers a job. Returns an error for an invalid cron spec.
func (r *Runner) Add(job Job) error {
	if job.Name == "" {
		return fmt.Errorf("job name is required")
	}
	if job.Run == nil {
		return fmt.Errorf("job %q has no run function", job.Name)
	}

	_, err := r.cron.AddFunc(job.Spec, func() {
		r.logger.Debug("scheduled job starting", "job", job.Name)
		if err := job.Run(r.ctx); err != nil {
			r.logger.Error("scheduled job failed", "job", job.Name, "error", err)
			return
		}
		r.logger.Debug("scheduled job finished", "job", job.Name)
	})
	if err != nil {
		return fmt.Errorf("scheduling job %q with spec %q: %w", job.Name, job.Spec, err)
	}

	r.logger.Info("job scheduled", "job", job.Name, "spec", job.Spec)
	return nil
}

// Start begins firing jobs in background goroutines.
func (r *Runner) Start() {
	r.cron.Start()
}

// Stop cancels running jobs and waits for in-flight runs to finish.
func (r *Runner) Stop() {
	r.cancel()
	<-r.cron.Stop().Done()
}
