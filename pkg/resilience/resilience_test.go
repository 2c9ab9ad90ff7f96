package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func TestCircuitBreakerOpensAndRecovers(t *testing.T) {
	var transitions []State
	cb := NewCircuitBreaker("wikipedia", CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Minute,
		OnStateChange:    func(_ string, to State) { transitions = append(transitions, to) },
	})
	now := time.Unix(1_700_000_000, 0)
	cb.now = func() time.Time { return now }

	for range 2 {
		assert.ErrorIs(t, cb.Execute(func() error { return errBoom }), errBoom)
	}
	require.Equal(t, StateOpen, cb.GetState())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)

	now = now.Add(time.Minute)
	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.GetState())
	assert.Equal(t, []State{StateOpen, StateHalfOpen, StateClosed}, transitions)
}

func TestCircuitBreakerIgnoredErrorsDoNotCount(t *testing.T) {
	cb := NewCircuitBreaker("arxiv", CircuitBreakerConfig{FailureThreshold: 1})
	isCancel := func(err error) bool { return errors.Is(err, context.Canceled) }

	err := cb.Execute(func() error { return context.Canceled }, isCancel)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, cb.GetState())

	_ = cb.Execute(func() error { return errBoom }, isCancel)
	assert.Equal(t, StateOpen, cb.GetState())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreakerHalfOpenProbeFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker("wikipedia", CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Second})
	now := time.Unix(1_700_000_000, 0)
	cb.now = func() time.Time { return now }

	_ = cb.Execute(func() error { return errBoom })
	now = now.Add(time.Second)
	_ = cb.Execute(func() error { return errBoom })
	assert.Equal(t, StateOpen, cb.GetState())
}

func TestRetry(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

	t.Run("succeeds after transient failures", func(t *testing.T) {
		var calls atomic.Int32
		err := Retry(context.Background(), "generate", cfg, func(ctx context.Context) error {
			if calls.Add(1) < 3 {
				return errBoom
			}
			return nil
		})
		require.NoError(t, err)
		assert.EqualValues(t, 3, calls.Load())
	})

	t.Run("gives up and wraps the last error", func(t *testing.T) {
		err := Retry(context.Background(), "generate", cfg, func(ctx context.Context) error { return errBoom })
		assert.ErrorIs(t, err, errBoom)
		assert.Contains(t, err.Error(), "all 3 attempts failed")
	})

	t.Run("non-retryable stops at once", func(t *testing.T) {
		c := cfg
		c.Retryable = func(error) bool { return false }
		var calls atomic.Int32
		err := Retry(context.Background(), "generate", c, func(ctx context.Context) error {
			calls.Add(1)
			return errBoom
		})
		assert.ErrorIs(t, err, errBoom)
		assert.EqualValues(t, 1, calls.Load())
	})

	t.Run("context errors are not retried", func(t *testing.T) {
		var calls atomic.Int32
		err := Retry(context.Background(), "generate", cfg, func(ctx context.Context) error {
			calls.Add(1)
			return context.DeadlineExceeded
		})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.EqualValues(t, 1, calls.Load())
	})
}

func TestComputeDelayIsCapped(t *testing.T) {
	cfg := RetryConfig{InitialDelay: time.Second, MaxDelay: 3 * time.Second, Multiplier: 10, JitterFraction: 0.1}
	assert.LessOrEqual(t, computeDelay(5, cfg), 3*time.Second)
	d := computeDelay(1, cfg)
	assert.InDelta(t, float64(time.Second), float64(d), float64(100*time.Millisecond))
}

func TestWithTimeout(t *testing.T) {
	err := WithTimeout(context.Background(), 10*time.Millisecond, "run", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.EqualError(t, err, "run exceeded its 10ms budget: context deadline exceeded")

	parent, cancel := context.WithCancel(context.Background())
	cancel()
	err = WithTimeout(parent, time.Second, "run", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, context.DeadlineExceeded)
	assert.EqualError(t, err, "run cancelled: context canceled")

	assert.ErrorIs(t, WithTimeout(context.Background(), 0, "run", func(context.Context) error { return errBoom }), errBoom)
}
