// Package dispatch runs best-effort side effects such as certificate mail.
// A task's failure is logged and counted; it never reaches the caller and is
// never retried.
package dispatch

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

type Task func(ctx context.Context) error

// Runner accepts fire-and-forget tasks.
type Runner interface {
	Go(ctx context.Context, name string, task Task)
}

// FailureObserver is notified when a task fails.
type FailureObserver interface {
	RecordSideEffectFailure(task string)
}

type Dispatcher struct {
	group    errgroup.Group
	logger   *slog.Logger
	timeout  time.Duration
	observer FailureObserver
}

// New returns a Dispatcher running at most limit tasks at once.
func New(limit int, timeout time.Duration, logger *slog.Logger, observer FailureObserver) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{logger: logger, timeout: timeout, observer: observer}
	if limit > 0 {
		d.group.SetLimit(limit)
	}
	return d
}

// Go schedules task detached from ctx's cancellation, so a finished HTTP
// request does not abort mail delivery. Go never blocks: when limit tasks are
// already running the task is dropped, logged and counted as a failure.
func (d *Dispatcher) Go(ctx context.Context, name string, task Task) {
	detached := context.WithoutCancel(ctx)
	started := d.group.TryGo(func() error {
		runCtx := detached
		if d.timeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(detached, d.timeout)
			defer cancel()
		}
		run(runCtx, name, task, d.logger, d.observer)
		return nil
	})
	if !started {
		d.logger.Warn("side effect dropped, dispatcher saturated", slog.String("task", name))
		if d.observer != nil {
			d.observer.RecordSideEffectFailure(name)
		}
	}
}

// Wait blocks until every scheduled task has finished.
func (d *Dispatcher) Wait() {
	_ = d.group.Wait()
}

// Inline runs tasks synchronously on the caller's goroutine.
type Inline struct {
	Logger   *slog.Logger
	Observer FailureObserver
}

func (i Inline) Go(ctx context.Context, name string, task Task) {
	logger := i.Logger
	if logger == nil {
		logger = slog.Default()
	}
	run(ctx, name, task, logger, i.Observer)
}

func run(ctx context.Context, name string, task Task, logger *slog.Logger, observer FailureObserver) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("side effect panicked", slog.String("task", name), slog.Any("panic", r))
			if observer != nil {
				observer.RecordSideEffectFailure(name)
			}
		}
	}()
	if err := task(ctx); err != nil {
		logger.Warn("side effect failed", slog.String("task", name), slog.String("error", err.Error()))
		if observer != nil {
			observer.RecordSideEffectFailure(name)
		}
	}
}
