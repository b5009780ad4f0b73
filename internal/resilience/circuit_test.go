package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3, ResetTimeout: time.Minute})
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		err := cb.Execute(context.Background(), func(ctx context.Context) error { return boom })
		assert.ErrorIs(t, err, boom)
	}
	assert.Equal(t, CircuitOpen, cb.State())

	// While open, fn is not invoked.
	called := false
	err := cb.Execute(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitHalfOpenProbeRecovers(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: 5 * time.Millisecond})

	require.Error(t, cb.Execute(context.Background(), func(ctx context.Context) error {
		return errors.New("boom")
	}))
	require.Equal(t, CircuitOpen, cb.State())

	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, CircuitHalfOpen, cb.State())

	require.NoError(t, cb.Execute(context.Background(), func(ctx context.Context) error { return nil }))
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitHalfOpenProbeFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: 5 * time.Millisecond})

	require.Error(t, cb.Execute(context.Background(), func(ctx context.Context) error {
		return errors.New("boom")
	}))
	time.Sleep(10 * time.Millisecond)
	require.Equal(t, CircuitHalfOpen, cb.State())

	require.Error(t, cb.Execute(context.Background(), func(ctx context.Context) error {
		return errors.New("still down")
	}))
	assert.Equal(t, CircuitOpen, cb.State())
}

func TestCircuitShouldTripFilter(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Minute,
		ShouldTrip:       IsTransient,
	})

	// Permanent errors do not trip the breaker.
	require.Error(t, cb.Execute(context.Background(), func(ctx context.Context) error {
		return errors.New("invalid request")
	}))
	assert.Equal(t, CircuitClosed, cb.State())

	require.Error(t, cb.Execute(context.Background(), func(ctx context.Context) error {
		return NewTransientError(errors.New("timeout"), 504)
	}))
	assert.Equal(t, CircuitOpen, cb.State())
}

func TestCircuitStateChangeCallback(t *testing.T) {
	var transitions []string
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Minute,
		OnStateChange: func(from, to CircuitState) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	_ = cb.Execute(context.Background(), func(ctx context.Context) error { return errors.New("boom") })
	assert.Equal(t, []string{"closed->open"}, transitions)
}
