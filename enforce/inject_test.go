package enforce

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tberrors "github.com/runward/timebox/errors"
)

func TestInjectStrategyExecute(t *testing.T) {
	t.Parallel()

	arm := NewArm("test timeout", "Test timeout 100ms exceeded.")

	t.Run("returns the runnable's result when it finishes in time", func(t *testing.T) {
		t.Parallel()

		s := NewInjectStrategy(WithLogger(slogt.New(t)))

		value, err := s.Execute(t.Context(), time.Second, arm,
			func(ctx context.Context, args ...any) (any, error) {
				return "ok", nil
			})
		require.NoError(t, err)
		assert.Equal(t, "ok", value)
	})

	t.Run("propagates the runnable's own error", func(t *testing.T) {
		t.Parallel()

		wantErr := errors.New("keyword failed")
		s := NewInjectStrategy(WithLogger(slogt.New(t)))

		_, err := s.Execute(t.Context(), time.Second, arm,
			func(ctx context.Context, args ...any) (any, error) {
				return nil, wantErr
			})
		require.ErrorIs(t, err, wantErr)
		require.NotErrorIs(t, err, tberrors.ErrTimeout)
	})

	t.Run("passes positional arguments through", func(t *testing.T) {
		t.Parallel()

		s := NewInjectStrategy(WithLogger(slogt.New(t)))

		value, err := s.Execute(t.Context(), time.Second, arm,
			func(ctx context.Context, args ...any) (any, error) {
				return args[0].(string) + args[1].(string), nil
			}, "foo", "bar")
		require.NoError(t, err)
		assert.Equal(t, "foobar", value)
	})

	t.Run("injects a timeout into a context-aware runnable", func(t *testing.T) {
		t.Parallel()

		s := NewInjectStrategy(WithLogger(slogt.New(t)))
		start := time.Now()

		_, err := s.Execute(t.Context(), 100*time.Millisecond, arm,
			func(ctx context.Context, args ...any) (any, error) {
				select {
				case <-ctx.Done():
					return nil, context.Cause(ctx)
				case <-time.After(2 * time.Second):
					return "late", nil
				}
			})

		elapsed := time.Since(start)

		require.ErrorIs(t, err, tberrors.ErrTimeout)
		assert.Equal(t, "Test timeout 100ms exceeded.", err.Error())
		assert.Less(t, elapsed, time.Second, "injection should land near the deadline")
	})

	t.Run("converts a late natural completion into the injected failure", func(t *testing.T) {
		t.Parallel()

		// The runnable ignores its context and finishes on its own after the
		// deadline. The pending injection must be observed at completion and
		// win over the successful return.
		s := NewInjectStrategy(WithLogger(slogt.New(t)))

		_, err := s.Execute(t.Context(), 30*time.Millisecond, arm,
			func(ctx context.Context, args ...any) (any, error) {
				time.Sleep(150 * time.Millisecond)

				return "finished anyway", nil
			})

		require.ErrorIs(t, err, tberrors.ErrTimeout)
		assert.Equal(t, "Test timeout 100ms exceeded.", err.Error())
	})

	t.Run("abandons a worker that never observes the injection", func(t *testing.T) {
		t.Parallel()

		s := NewInjectStrategy(
			WithLogger(slogt.New(t)),
			WithInjectAttempts(3),
			WithInjectInterval(5*time.Millisecond),
		)

		release := make(chan struct{})
		defer close(release)

		start := time.Now()

		_, err := s.Execute(t.Context(), 20*time.Millisecond, arm,
			func(ctx context.Context, args ...any) (any, error) {
				<-release // blocked in a way the runtime cannot interrupt

				return nil, nil
			})

		require.ErrorIs(t, err, tberrors.ErrTimeout)
		assert.Less(t, time.Since(start), 2*time.Second, "retry bound must terminate the wait")
	})
}

func TestSignalerCancel(t *testing.T) {
	t.Parallel()

	arm := NewArm("test timeout", "Test timeout 1s exceeded.")

	t.Run("cancel before fire disables the timer silently", func(t *testing.T) {
		t.Parallel()

		_, cancel := context.WithCancelCause(t.Context())
		defer cancel(nil)

		sig := newSignaler(arm, cancel, newOptions([]Option{WithLogger(slogt.New(t))}))
		sig.start(time.Hour)

		require.NoError(t, sig.cancel())
		assert.Equal(t, stateCancelled, sig.state.Load())
	})

	t.Run("cancel after fire neutralizes the injection and raises the timeout", func(t *testing.T) {
		t.Parallel()

		_, cancel := context.WithCancelCause(t.Context())
		defer cancel(nil)

		sig := newSignaler(arm, cancel, newOptions([]Option{
			WithLogger(slogt.New(t)),
			WithInjectAttempts(2),
			WithInjectInterval(time.Millisecond),
		}))
		sig.start(time.Nanosecond)

		// Let the timer fire and mark the state before cancelling.
		require.Eventually(t, func() bool {
			return sig.state.Load() == stateFired
		}, time.Second, time.Millisecond)

		err := sig.cancel()
		require.ErrorIs(t, err, tberrors.ErrTimeout)
		assert.Equal(t, "Test timeout 1s exceeded.", err.Error())
		assert.Nil(t, sig.pending.Load(), "pending injection must be neutralized")
	})
}
