// Package runner executes a runnable on a worker separate from the driver
// context, so the driver can wait for completion with a deadline and ask the
// worker to stop when the deadline is missed.
//
// The stop protocol is cooperative: StopWorker cancels the worker's context
// and waits a short grace period for the worker to acknowledge by finishing.
// A runnable that ignores its context keeps the worker occupied and makes
// StopWorker fail; the caller is expected to turn that into a timeout failure
// rather than silently ignore it.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"
)

// Runnable is the unit of work whose execution is deadline-bounded. It must
// observe ctx cancellation at its blocking points for stop requests to take
// effect; a runnable that never checks ctx can only be abandoned, not stopped.
type Runnable func(ctx context.Context, args ...any) (any, error)

// errStopRequested is the cancel cause installed by StopWorker.
var errStopRequested = errors.New("stop requested")

const defaultStopGrace = 100 * time.Millisecond

// Worker runs one runnable on the shared worker pool. A Worker is single-use:
// RunInWorker may be called once, and Result is only valid after RunInWorker
// returned true.
type Worker struct {
	ctx    context.Context
	cancel context.CancelCauseFunc

	fn   Runnable
	args []any

	done      chan struct{}
	value     any
	err       error
	stopGrace time.Duration
	log       *slog.Logger
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithStopGrace sets how long StopWorker waits for the worker to acknowledge
// the stop request before reporting failure.
func WithStopGrace(grace time.Duration) WorkerOption {
	return func(w *Worker) {
		w.stopGrace = grace
	}
}

// WithLogger sets the logger used for worker lifecycle events.
func WithLogger(log *slog.Logger) WorkerOption {
	return func(w *Worker) {
		w.log = log
	}
}

// NewWorker prepares a worker for the given runnable. The runnable is not
// started until RunInWorker is called.
func NewWorker(ctx context.Context, fn Runnable, args []any, opts ...WorkerOption) *Worker {
	workerCtx, cancel := context.WithCancelCause(ctx)

	w := &Worker{
		ctx:       workerCtx,
		cancel:    cancel,
		fn:        fn,
		args:      args,
		done:      make(chan struct{}),
		stopGrace: defaultStopGrace,
		log:       slog.Default(),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// RunInWorker submits the runnable to the shared pool and waits up to deadline
// for it to finish. It returns true if the runnable completed in time (in
// which case Result holds its outcome) and false on a deadline miss. On a miss
// the runnable keeps running until it observes a stop request.
func (w *Worker) RunInWorker(deadline time.Duration) bool {
	err := Submit(func() {
		defer close(w.done)
		defer w.recoverPanic()

		w.value, w.err = w.fn(w.ctx, w.args...)
	})
	if err != nil {
		close(w.done)

		w.err = fmt.Errorf("submitting runnable to worker pool: %w", err)

		return true
	}

	timer := time.NewTimer(deadline)
	defer timer.Stop()

	select {
	case <-w.done:
		return true
	case <-timer.C:
		return false
	}
}

// Result returns the runnable's outcome. Only valid after RunInWorker
// returned true.
func (w *Worker) Result() (any, error) {
	return w.value, w.err
}

// StopWorker asks the still-running worker to stop and waits for it to
// acknowledge. It returns an error if the worker does not finish within the
// stop grace period.
func (w *Worker) StopWorker() error {
	w.cancel(errStopRequested)

	timer := time.NewTimer(w.stopGrace)
	defer timer.Stop()

	select {
	case <-w.done:
		return nil
	case <-timer.C:
		w.log.Warn("Worker ignored stop request", "grace", w.stopGrace)

		return fmt.Errorf("worker did not stop within %s", w.stopGrace)
	}
}

// recoverPanic converts a panicking runnable into an error result so a panic
// on the worker cannot take down the process.
func (w *Worker) recoverPanic() {
	if r := recover(); r != nil {
		w.err = fmt.Errorf("panic in worker: %v\nstack trace:\n%s", r, debug.Stack())

		w.log.Error("Runnable panicked on worker", "panic", r)
	}
}
