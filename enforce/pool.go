package enforce

import (
	"context"
	"fmt"
	"time"

	tberrors "github.com/runward/timebox/errors"
	"github.com/runward/timebox/runner"
)

// WorkerRunner is the worker-execution collaborator of PoolStrategy. The
// production implementation is runner.Worker; tests substitute fakes.
type WorkerRunner interface {
	// RunInWorker starts the runnable on a worker and waits up to deadline
	// for it to finish, reporting whether it did.
	RunInWorker(deadline time.Duration) bool

	// Result returns the runnable's outcome. Valid only after RunInWorker
	// returned true.
	Result() (any, error)

	// StopWorker asks a still-running worker to stop. Best effort; returns an
	// error when the worker does not acknowledge.
	StopWorker() error
}

// WorkerFactory creates a WorkerRunner for one runnable.
type WorkerFactory func(ctx context.Context, fn Runnable, args []any) WorkerRunner

func defaultWorkerFactory(ctx context.Context, fn Runnable, args []any) WorkerRunner { //nolint:ireturn
	return runner.NewWorker(ctx, fn, args)
}

// PoolStrategy enforces deadlines cooperatively: the runnable executes on a
// separate worker, the driver waits up to the deadline for natural
// completion, and on a miss asks the worker to stop. Whether or not the stop
// succeeds, a deadline miss always ends in a timeout failure; a stop failure
// is reported as a variant message, never silently ignored.
//
// This is the universally available fallback and makes the weakest
// interruption guarantee: a runnable that ignores its context is abandoned,
// not preempted.
type PoolStrategy struct {
	opts *options
}

// NewPoolStrategy creates the cooperative-worker-abort strategy.
func NewPoolStrategy(opts ...Option) *PoolStrategy {
	return &PoolStrategy{opts: newOptions(opts)}
}

func (s *PoolStrategy) Name() string {
	return "pool"
}

// Execute implements Strategy.
func (s *PoolStrategy) Execute(
	ctx context.Context, timeout time.Duration, arm Arm, fn Runnable, args ...any,
) (any, error) {
	worker := s.opts.newWorker(ctx, fn, args)

	armedTotal.WithLabelValues(s.Name()).Inc()
	s.opts.log.Debug("Armed cooperative deadline", "arm", arm.ID, "timeout", timeout)

	if worker.RunInWorker(timeout) {
		disarmedTotal.WithLabelValues(s.Name()).Inc()

		return worker.Result()
	}

	firedTotal.WithLabelValues(s.Name()).Inc()
	s.opts.log.Debug("Deadline elapsed, stopping worker", "arm", arm.ID)

	if err := worker.StopWorker(); err != nil {
		stopFailuresTotal.Inc()
		s.opts.log.Warn("Stopping worker after deadline miss failed", "arm", arm.ID, "error", err)

		return nil, tberrors.NewTimeout(fmt.Sprintf("Stopping keyword after %s failed: %s", arm.Label, err))
	}

	return nil, tberrors.NewTimeout(arm.Message)
}

var _ Strategy = (*PoolStrategy)(nil)
