// Package enforce implements the deadline enforcement strategies and the
// process-wide selection between them.
//
// Three mutually exclusive mechanisms share one contract:
//
//   - AlarmStrategy arms a process-wide OS interval timer and interrupts the
//     calling context when it fires (Linux).
//   - InjectStrategy runs the runnable on a worker and forcibly injects a
//     cancellation into the worker's context when a background timer fires,
//     retrying until the injection is observed (Windows-class fallback).
//   - PoolStrategy runs the runnable on a pooled worker, waits up to the
//     deadline, and cooperatively asks the worker to stop on a miss
//     (universal fallback).
//
// Exactly one strategy is selected per process, by platform capability, and
// shared by every timeout. The selection is immutable for the process
// lifetime.
package enforce

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/runward/timebox/runner"
)

// Runnable is the deadline-bounded unit of work. See runner.Runnable.
type Runnable = runner.Runnable

// Strategy executes a runnable under a wall-clock deadline. A deadline miss
// always surfaces as a *errors.TimeoutError; the countdown is disarmed on
// every exit path, success or failure.
type Strategy interface {
	// Name identifies the strategy in logs and metrics.
	Name() string

	// Execute runs fn with the given positional args and fails it if it does
	// not finish within timeout. ctx is the driver's context; the runnable
	// observes the deadline through the (possibly derived) context it is
	// handed. The returned value and error are the runnable's own on success.
	Execute(ctx context.Context, timeout time.Duration, arm Arm, fn Runnable, args ...any) (any, error)
}

// Arm is the per-armed-deadline context object. It carries its own expiry
// message, captured once at arm time, instead of a process-global message
// slot: by the time a timer fires the owning timeout's clock may already have
// moved past expiry, so the message must not be recomputed.
type Arm struct {
	// ID correlates the log lines of one armed deadline.
	ID string

	// Label is the lower-case timeout kind, e.g. "test timeout". Used in the
	// stop-failure message of the cooperative strategy.
	Label string

	// Message is the expiry message reported when the deadline fires.
	Message string
}

// NewArm creates an Arm with a fresh correlation ID.
func NewArm(label, message string) Arm {
	return Arm{
		ID:      uuid.NewString(),
		Label:   label,
		Message: message,
	}
}

// Selection is a capability decision, not configuration: probe is provided by
// the platform-specific file compiled into this build.
var selectStrategy = sync.OnceValue(func() Strategy { //nolint:gochecknoglobals
	s := probe()

	slog.Debug("Selected deadline enforcement strategy", "strategy", s.Name())

	return s
})

// Selected returns the process-wide enforcement strategy, choosing it on
// first use. All timeouts share the returned instance.
func Selected() Strategy { //nolint:ireturn
	return selectStrategy()
}

// options configures a strategy. Shared across the three implementations;
// each reads the fields it cares about.
type options struct {
	log            *slog.Logger
	newWorker      WorkerFactory
	injectAttempts int
	injectInterval time.Duration
}

// Option configures a strategy constructor.
type Option func(*options)

// WithLogger sets the logger used for arm/fire/cancel events.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

// WithWorkerFactory overrides how PoolStrategy obtains workers. Used to
// substitute a fake worker in tests.
func WithWorkerFactory(factory WorkerFactory) Option {
	return func(o *options) {
		o.newWorker = factory
	}
}

// WithInjectAttempts bounds InjectStrategy's injection retry loop.
func WithInjectAttempts(attempts int) Option {
	return func(o *options) {
		o.injectAttempts = attempts
	}
}

// WithInjectInterval caps the backoff between injection attempts.
func WithInjectInterval(interval time.Duration) Option {
	return func(o *options) {
		o.injectInterval = interval
	}
}

func newOptions(opts []Option) *options {
	o := &options{
		log:            slog.Default(),
		newWorker:      defaultWorkerFactory,
		injectAttempts: defaultInjectAttempts,
		injectInterval: defaultInjectInterval,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}
