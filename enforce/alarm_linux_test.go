//go:build linux

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

// The interval timer is one per process, so these tests share a single
// strategy and must not run in parallel with each other.
func TestAlarmStrategyExecute(t *testing.T) { //nolint:tparallel
	s := NewAlarmStrategy(WithLogger(slogt.New(t)))
	arm := NewArm("test timeout", "Test timeout 100ms exceeded.")

	t.Run("returns the runnable's result when it finishes in time", func(t *testing.T) {
		value, err := s.Execute(t.Context(), time.Second, arm,
			func(ctx context.Context, args ...any) (any, error) {
				return "ok", nil
			})
		require.NoError(t, err)
		assert.Equal(t, "ok", value)
	})

	t.Run("propagates the runnable's own error", func(t *testing.T) {
		wantErr := errors.New("keyword failed")

		_, err := s.Execute(t.Context(), time.Second, arm,
			func(ctx context.Context, args ...any) (any, error) {
				return nil, wantErr
			})
		require.ErrorIs(t, err, wantErr)
		require.NotErrorIs(t, err, tberrors.ErrTimeout)
	})

	t.Run("passes positional arguments through", func(t *testing.T) {
		value, err := s.Execute(t.Context(), time.Second, arm,
			func(ctx context.Context, args ...any) (any, error) {
				return args[0].(int) * args[1].(int), nil
			}, 6, 7)
		require.NoError(t, err)
		assert.Equal(t, 42, value)
	})

	t.Run("interrupts a context-aware runnable near the deadline", func(t *testing.T) {
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
		assert.Less(t, elapsed, time.Second, "alarm should interrupt near the deadline")
	})

	t.Run("an observed fire wins even if the runnable returns a result", func(t *testing.T) {
		_, err := s.Execute(t.Context(), 30*time.Millisecond, arm,
			func(ctx context.Context, args ...any) (any, error) {
				<-ctx.Done() // wait for the interrupt, then return "success"

				return "almost made it", nil
			})
		require.ErrorIs(t, err, tberrors.ErrTimeout)
	})

	t.Run("disarms the countdown on successful exit", func(t *testing.T) {
		_, err := s.Execute(t.Context(), 50*time.Millisecond, arm,
			func(ctx context.Context, args ...any) (any, error) {
				return nil, nil
			})
		require.NoError(t, err)

		// A previous armed countdown must not fire into this later call.
		value, err := s.Execute(t.Context(), time.Second, arm,
			func(ctx context.Context, args ...any) (any, error) {
				time.Sleep(100 * time.Millisecond)

				return "clean", nil
			})
		require.NoError(t, err)
		assert.Equal(t, "clean", value)
	})
}
