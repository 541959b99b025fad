package errors

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestBreaker(clock *fakeClock) *CircuitBreaker {
	cb := NewCircuitBreaker("generator", CircuitBreakerConfig{FailureThreshold: 2, SuccessThreshold: 1, Timeout: time.Minute})
	cb.now = clock.now
	return cb
}

func TestCircuitBreakerOpensOnTransientFailures(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	cb := newTestBreaker(clock)
	transient := NewTransientError(errors.New("503"), "upstream unavailable")

	for i := 0; i < 2; i++ {
		err := cb.Execute(context.Background(), func(context.Context) error { return transient })
		require.ErrorIs(t, err, transient)
	}
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.True(t, IsDegraded(err))
	assert.False(t, IsTransient(err))
	assert.False(t, called)
}

func TestCircuitBreakerIgnoresPermanentErrors(t *testing.T) {
	cb := newTestBreaker(&fakeClock{t: time.Unix(1000, 0)})
	permanent := NewPermanentError(errors.New("400"), "bad request")

	for i := 0; i < 5; i++ {
		_ = cb.Execute(context.Background(), func(context.Context) error { return permanent })
	}
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerClosesAfterSuccessfulProbe(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	cb := newTestBreaker(clock)
	transient := NewTransientError(errors.New("timeout"), "")
	for i := 0; i < 2; i++ {
		_ = cb.Execute(context.Background(), func(context.Context) error { return transient })
	}
	require.Equal(t, StateOpen, cb.State())

	clock.t = clock.t.Add(2 * time.Minute)
	value, err := ExecuteFunc(cb, context.Background(), func(context.Context) (string, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", value)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerReopensWhenProbeFails(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	cb := newTestBreaker(clock)
	transient := NewTransientError(errors.New("timeout"), "")
	for i := 0; i < 2; i++ {
		_ = cb.Execute(context.Background(), func(context.Context) error { return transient })
	}

	clock.t = clock.t.Add(2 * time.Minute)
	_ = cb.Execute(context.Background(), func(context.Context) error { return transient })
	assert.Equal(t, StateOpen, cb.State())
	assert.Equal(t, "open", cb.State().String())
}
