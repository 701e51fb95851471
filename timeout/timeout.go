// Package timeout tracks configured test and keyword timeouts and runs work
// under them.
//
// A Timeout is a single-use value object: it is created when its scope (a
// test or a keyword) begins, started when the scope's clock should begin
// counting, and discarded when the scope ends. Running work under a timeout
// delegates to the process-wide enforcement strategy selected by the enforce
// package.
//
// Timeout specs may contain ${variable} placeholders resolved through the
// variables package. A spec that resolves to "" or "NONE" (any case) leaves
// the timeout permanently inactive: that is the "no timeout configured" path,
// not an error. An unparsable spec does not fail resolution either; the error
// is swallowed and the timeout made active-and-already-expired, so the
// failure surfaces exactly once, at run time, before the work is touched.
package timeout

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/runward/timebox/enforce"
	tberrors "github.com/runward/timebox/errors"
	"github.com/runward/timebox/timestr"
	"github.com/runward/timebox/variables"
)

// Runnable is the deadline-bounded unit of work. See enforce.Runnable.
type Runnable = enforce.Runnable

// epsilonSecs makes a misconfigured timeout evaluate as active and already
// expired, deferring the configuration error to run time.
const epsilonSecs = 0.000001

// Timeout tracks one configured timeout: its textual spec, optional expiry
// message, resolved duration and activation timestamp. The zero duration
// sentinel -1 means "not yet resolved / no timeout configured".
type Timeout struct {
	spec    string
	message string
	secs    float64
	started time.Time
	err     error

	label    string
	strategy enforce.Strategy
	now      func() time.Time
}

// Option configures a Timeout at construction.
type Option func(*Timeout)

// WithResolver resolves variable placeholders in the spec and message
// immediately at construction.
func WithResolver(resolver variables.Resolver) Option {
	return func(t *Timeout) {
		t.Resolve(resolver)
	}
}

// WithStrategy overrides the process-wide enforcement strategy for this
// timeout. Intended for tests.
func WithStrategy(strategy enforce.Strategy) Option {
	return func(t *Timeout) {
		t.strategy = strategy
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Timeout) {
		t.now = now
	}
}

func newTimeout(label, spec, message string, opts []Option) *Timeout {
	t := &Timeout{
		spec:    spec,
		message: message,
		secs:    -1,
		label:   label,
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Resolve substitutes variable placeholders in the spec and message and
// parses the spec into a duration. It never returns an error: a resolution
// failure is recorded and deferred until Run, with the timeout made active
// and already expired so the failure cannot be lost.
func (t *Timeout) Resolve(resolver variables.Resolver) {
	spec, err := resolver.ReplaceString(t.spec)
	if err != nil {
		t.fail(err)

		return
	}

	t.spec = spec
	if spec == "" || strings.EqualFold(spec, "NONE") {
		return
	}

	secs, err := timestr.ToSeconds(spec)
	if err != nil {
		t.fail(err)

		return
	}

	t.secs = secs
	t.spec = timestr.FromSeconds(secs)

	message, err := resolver.ReplaceString(t.message)
	if err != nil {
		t.fail(err)

		return
	}

	t.message = message
}

func (t *Timeout) fail(err error) {
	t.secs = epsilonSecs
	t.err = fmt.Errorf("Setting %s failed: %s", strings.ToLower(t.label), err)
}

// Start records the activation timestamp. A zero, negative or unresolved
// duration never activates; starting is a no-op then.
func (t *Timeout) Start() {
	if t.secs > 0 {
		t.started = t.now()
	}
}

// Active reports whether the timeout has been started with a positive
// duration.
func (t *Timeout) Active() bool {
	return !t.started.IsZero()
}

// TimeLeft returns the remaining seconds, or -1 when inactive. The value is
// rounded to millisecond precision: without rounding, boundary comparisons
// fail intermittently on coarse-grained clocks.
func (t *Timeout) TimeLeft() float64 {
	if !t.Active() {
		return -1
	}

	elapsed := t.now().Sub(t.started).Seconds()

	return math.Round((t.secs-elapsed)*1000) / 1000
}

// TimedOut reports whether an active timeout has expired.
func (t *Timeout) TimedOut() bool {
	return t.Active() && t.TimeLeft() <= 0
}

// String returns the textual spec, normalized if resolution succeeded.
func (t *Timeout) String() string {
	return t.spec
}

// Compare orders timeouts by urgency: active sorts before inactive, and among
// active timeouts the one with less time left sorts first. Callers use this
// to decide which of the nested test and keyword deadlines governs.
func (t *Timeout) Compare(other *Timeout) int {
	switch {
	case t.Active() != other.Active():
		if t.Active() {
			return -1
		}

		return 1
	case t.TimeLeft() < other.TimeLeft():
		return -1
	case t.TimeLeft() > other.TimeLeft():
		return 1
	default:
		return 0
	}
}

// Less reports whether t is more urgent than other. See Compare.
func (t *Timeout) Less(other *Timeout) bool {
	return t.Compare(other) < 0
}

// Message describes the timeout's current state for the user: not active,
// active with remaining time, or the expiry message.
func (t *Timeout) Message() string {
	if !t.Active() {
		return fmt.Sprintf("%s not active.", t.label)
	}

	if !t.TimedOut() {
		return fmt.Sprintf("%s %s active. %v seconds left.", t.label, t.spec, t.TimeLeft())
	}

	return t.expiryMessage()
}

// expiryMessage is the user message if configured, else a generated
// "<type> <spec> exceeded." string.
func (t *Timeout) expiryMessage() string {
	if t.message != "" {
		return t.message
	}

	return fmt.Sprintf("%s %s exceeded.", t.label, t.spec)
}

// Run executes fn under this timeout and returns its result, or the timeout
// failure if the deadline elapses first.
//
// Contract, checked in order:
//  1. A recorded resolution error fails with a DataError before the work is
//     touched.
//  2. Running a never-started timeout is an orchestration bug and fails with
//     a FrameworkError.
//  3. An already-expired timeout fails with a TimeoutError without invoking
//     the runnable.
//  4. Otherwise the remaining time and expiry message are handed to the
//     process enforcement strategy.
func (t *Timeout) Run(ctx context.Context, fn Runnable, args ...any) (any, error) {
	if t.err != nil {
		return nil, tberrors.NewData(t.err.Error())
	}

	if !t.Active() {
		return nil, tberrors.NewFramework("Timeout is not active")
	}

	left := t.TimeLeft()
	if left <= 0 {
		return nil, tberrors.NewTimeout(t.Message())
	}

	arm := enforce.NewArm(strings.ToLower(t.label), t.expiryMessage())
	deadline := time.Duration(left * float64(time.Second))

	return t.enforcement().Execute(ctx, deadline, arm, fn, args...)
}

func (t *Timeout) enforcement() enforce.Strategy { //nolint:ireturn
	if t.strategy != nil {
		return t.strategy
	}

	return enforce.Selected()
}
