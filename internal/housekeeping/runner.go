// Package housekeeping runs periodic maintenance jobs such as pruning
// expired sessions.
package housekeeping

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// PruneFunc deletes stale records and reports how many were removed.
type PruneFunc func(ctx context.Context) (int64, error)

// Runner schedules the session prune job on a cron expression.
type Runner struct {
	cron   *cron.Cron
	prune  PruneFunc
	logger *slog.Logger

	mu      sync.Mutex
	started bool
}

// NewRunner registers prune on spec, a standard five field expression or a
// descriptor such as "@hourly".
func NewRunner(spec string, prune PruneFunc, logger *slog.Logger) (*Runner, error) {
	if prune == nil {
		return nil, fmt.Errorf("housekeeping: prune func is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Runner{
		cron:   cron.New(cron.WithChain(cron.Recover(cronLogger{logger}), cron.SkipIfStillRunning(cronLogger{logger}))),
		prune:  prune,
		logger: logger.With("component", "housekeeping"),
	}
	if _, err := r.cron.AddFunc(spec, func() { _ = r.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("housekeeping: invalid schedule %q: %w", spec, err)
	}
	return r, nil
}

// Start begins running jobs in the background. Calling Start twice is a no-op.
func (r *Runner) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true
	r.cron.Start()
	r.logger.Info("housekeeping started", "next_run", r.cron.Entries()[0].Next)
}

// Stop halts scheduling and waits for a running job to finish or ctx to end.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	started := r.started
	r.started = false
	r.mu.Unlock()
	if !started {
		return nil
	}

	done := r.cron.Stop()
	select {
	case <-done.Done():
		r.logger.Info("housekeeping stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce prunes immediately.
func (r *Runner) RunOnce(ctx context.Context) error {
	removed, err := r.prune(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "session prune failed", "error", err)
		return err
	}
	r.logger.InfoContext(ctx, "session prune finished", "removed", removed)
	return nil
}

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append([]any{"error", err}, keysAndValues...)...)
}
