//go:build linux

package enforce

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"go.uber.org/atomic"
	"golang.org/x/sys/unix"

	tberrors "github.com/runward/timebox/errors"
)

// AlarmStrategy arms the process-wide real-time interval timer (ITIMER_REAL)
// and reacts to the resulting SIGALRM by failing whatever is running on the
// calling context. The runnable executes synchronously on the caller; the
// interrupt lands at its next context check, which is adequate granularity on
// the platforms where this strategy is selected.
//
// The interval timer is one per process, so deadlines must not be nested on
// the same context through this strategy; callers serialize nested timeouts
// by comparing urgency and letting the most urgent one own the arm/disarm
// pair.
type AlarmStrategy struct {
	opts *options
}

// NewAlarmStrategy creates the alarm-signal strategy.
func NewAlarmStrategy(opts ...Option) *AlarmStrategy {
	return &AlarmStrategy{opts: newOptions(opts)}
}

func (s *AlarmStrategy) Name() string {
	return "alarm"
}

// Execute implements Strategy.
func (s *AlarmStrategy) Execute(
	ctx context.Context, timeout time.Duration, arm Arm, fn Runnable, args ...any,
) (any, error) {
	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	fired := atomic.NewBool(false)

	alarm := make(chan os.Signal, 1)
	signal.Notify(alarm, unix.SIGALRM)

	stop := make(chan struct{})
	watcherDone := make(chan struct{})

	go func() {
		defer close(watcherDone)

		select {
		case <-alarm:
			fired.Store(true)
			firedTotal.WithLabelValues(s.Name()).Inc()
			s.opts.log.Debug("Alarm fired", "arm", arm.ID)
			cancel(tberrors.NewTimeout(arm.Message))
		case <-stop:
		}
	}()

	disarmed := false
	disarm := func() {
		if disarmed {
			return
		}

		disarmed = true

		_ = setAlarm(0)
		signal.Stop(alarm)
		close(stop)
		<-watcherDone
	}
	// Disarm on every exit path, including a panicking runnable.
	defer disarm()

	if err := setAlarm(timeout); err != nil {
		return nil, fmt.Errorf("arming interval timer: %w", err)
	}

	armedTotal.WithLabelValues(s.Name()).Inc()
	s.opts.log.Debug("Armed alarm deadline", "arm", arm.ID, "timeout", timeout)

	value, err := fn(runCtx, args...)

	disarm()

	// An observed fire wins over the runnable's own outcome, even if the
	// work had almost finished.
	if fired.Load() {
		return nil, tberrors.NewTimeout(arm.Message)
	}

	if err == nil {
		disarmedTotal.WithLabelValues(s.Name()).Inc()
	}

	return value, err
}

// setAlarm arms the one-shot ITIMER_REAL countdown, or disarms it when d is
// zero.
func setAlarm(d time.Duration) error {
	_, err := unix.Setitimer(unix.ItimerReal, unix.Itimerval{
		Value: unix.NsecToTimeval(d.Nanoseconds()),
	})

	return err
}

var _ Strategy = (*AlarmStrategy)(nil)
