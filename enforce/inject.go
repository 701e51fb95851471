package enforce

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/atomic"

	tberrors "github.com/runward/timebox/errors"
)

// States of one armed injection. Transitions:
//
//	armed -> cancelled   (runnable finished before the timer fired)
//	armed -> fired       (timer fired; injection loop running)
//	fired -> delivered   (worker observed the injected failure)
//	fired -> cancelled   (completion raced ahead of delivery; the cancel
//	                      path neutralizes the injection and raises the
//	                      timeout itself)
//
// A fired injection that is never observed stays fired; the worker is
// abandoned once the retry bound is exhausted.
const (
	stateArmed int32 = iota
	stateFired
	stateCancelled
	stateDelivered
)

const (
	defaultInjectAttempts = 100
	defaultInjectInterval = 20 * time.Millisecond
)

// InjectStrategy runs the runnable on a dedicated worker goroutine and, when
// the deadline elapses, injects a timeout failure into the worker's execution
// context. Injection can race with the worker finishing unrelated work, so
// the fire path retries until the injection is observed to take effect:
// after each attempt an unobserved injection is neutralized, the scheduler is
// yielded, and the attempt repeats. The loop is bounded; on exhaustion the
// worker is abandoned best-effort and the timeout surfaces anyway.
//
// Go cannot raise into a running goroutine, so delivery is cooperative: the
// injected failure lands at the worker's next context check or, at the
// latest, when the runnable returns. This is the documented weakening of the
// forced-preemption original.
type InjectStrategy struct {
	opts *options
}

// NewInjectStrategy creates the async-injection strategy.
func NewInjectStrategy(opts ...Option) *InjectStrategy {
	return &InjectStrategy{opts: newOptions(opts)}
}

func (s *InjectStrategy) Name() string {
	return "inject"
}

// result carries the worker's outcome to the driver.
type result struct {
	value any
	err   error
}

// Execute implements Strategy.
func (s *InjectStrategy) Execute(
	ctx context.Context, timeout time.Duration, arm Arm, fn Runnable, args ...any,
) (any, error) {
	workerCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	sig := newSignaler(arm, cancel, s.opts)
	resultCh := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultCh <- result{err: fmt.Errorf("panic in worker: %v\nstack trace:\n%s", r, debug.Stack())}
			}
		}()

		value, err := fn(workerCtx, args...)

		// An injected failure observed at completion wins over the
		// runnable's own outcome: an observed fire is never discarded.
		if pending := sig.consume(); pending != nil {
			resultCh <- result{err: pending}

			return
		}

		resultCh <- result{value: value, err: err}
	}()

	armedTotal.WithLabelValues(s.Name()).Inc()
	s.opts.log.Debug("Armed injection deadline", "arm", arm.ID, "timeout", timeout)
	sig.start(timeout)

	select {
	case r := <-resultCh:
		if err := sig.cancel(); err != nil {
			return nil, err
		}

		disarmedTotal.WithLabelValues(s.Name()).Inc()

		return r.value, r.err
	case err := <-sig.abandoned:
		// Retry bound exhausted; the worker never acknowledged. Leave it
		// behind and surface the timeout.
		injectionAbandonedTotal.Inc()
		s.opts.log.Warn("Abandoning worker after unobserved injection", "arm", arm.ID)

		return nil, err
	}
}

var _ Strategy = (*InjectStrategy)(nil)

// signaler owns one armed timer and the injection state machine. It is the
// per-arm analogue of a process-global signal handler: all state, including
// the expiry message, lives here.
type signaler struct {
	arm  Arm
	opts *options

	state   *atomic.Int32
	pending *atomic.Pointer[tberrors.TimeoutError]

	inject    context.CancelCauseFunc
	timer     *time.Timer
	delivered chan struct{}
	fireDone  chan struct{}
	abandoned chan error
}

func newSignaler(arm Arm, inject context.CancelCauseFunc, opts *options) *signaler {
	return &signaler{
		arm:       arm,
		opts:      opts,
		state:     atomic.NewInt32(stateArmed),
		pending:   atomic.NewPointer[tberrors.TimeoutError](nil),
		inject:    inject,
		delivered: make(chan struct{}),
		fireDone:  make(chan struct{}),
		abandoned: make(chan error, 1),
	}
}

// start arms the one-shot timer.
func (g *signaler) start(timeout time.Duration) {
	g.timer = time.AfterFunc(timeout, g.fire)
}

// fire transitions armed -> fired and runs the injection loop: store the
// timeout failure where the worker will observe it, cancel the worker's
// context, and wait for the observation acknowledgment. An attempt that is
// not acknowledged within the backoff interval is neutralized before the next
// one, so a stale injection cannot surface at an unsafe point later.
func (g *signaler) fire() {
	defer close(g.fireDone)

	if !g.state.CompareAndSwap(stateArmed, stateFired) {
		// Cancelled first; nothing to deliver.
		return
	}

	firedTotal.WithLabelValues("inject").Inc()
	g.opts.log.Debug("Injection deadline fired", "arm", g.arm.ID)

	failure := tberrors.NewTimeout(g.arm.Message)
	g.pending.Store(failure)
	g.inject(failure)

	wait := backoff.NewExponentialBackOff()
	wait.InitialInterval = time.Millisecond
	wait.MaxInterval = g.opts.injectInterval

	for attempt := 1; ; attempt++ {
		select {
		case <-g.delivered:
			g.opts.log.Debug("Injection delivered", "arm", g.arm.ID, "attempts", attempt)

			return
		case <-time.After(wait.NextBackOff()):
		}

		if g.state.Load() != stateFired {
			// fired -> cancelled raced in; the cancel path owns the outcome.
			return
		}

		if attempt >= g.opts.injectAttempts {
			g.abandoned <- tberrors.NewTimeout(g.arm.Message)

			return
		}

		// Neutralize the unobserved injection, yield so the worker gets
		// scheduled, and retry.
		injectionRetriesTotal.Inc()
		g.pending.Store(nil)
		runtime.Gosched()
		g.pending.Store(failure)
	}
}

// consume is called by the worker when the runnable returns. It claims any
// pending injected failure and acknowledges delivery.
func (g *signaler) consume() *tberrors.TimeoutError {
	failure := g.pending.Swap(nil)
	if failure == nil {
		return nil
	}

	g.state.Store(stateDelivered)
	close(g.delivered)

	return failure
}

// cancel disables the timer after the runnable finished. If the timer had
// already fired (the race window between firing and cancelling), the timeout
// genuinely occurred: any still-pending injection is neutralized so it cannot
// surface later, and the timeout failure is raised synchronously instead.
func (g *signaler) cancel() error {
	g.timer.Stop()

	if g.state.CompareAndSwap(stateArmed, stateCancelled) {
		return nil
	}

	// The timer fired before cancellation won the race. Stop a still-running
	// retry loop, wait for it to wind down (it observes the state change
	// within one backoff tick), then neutralize whatever injection is left so
	// it cannot surface at an unsafe point later.
	g.state.CompareAndSwap(stateFired, stateCancelled)
	<-g.fireDone
	g.pending.Store(nil)

	return tberrors.NewTimeout(g.arm.Message)
}
