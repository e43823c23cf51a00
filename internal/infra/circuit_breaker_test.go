package infra

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBreaker() *CircuitBreaker {
	return NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		OpenTimeout:      20 * time.Millisecond,
	})
}

func failOnce(cb *CircuitBreaker) error {
	return cb.Execute(func() error { return errors.New("upstream down") })
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	cb := newTestBreaker()
	require.Equal(t, CBClosed, cb.State())

	for i := 0; i < 3; i++ {
		require.Error(t, failOnce(cb))
	}
	assert.Equal(t, CBOpen, cb.State())

	// While open the call is short-circuited: fn never runs.
	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	cb := newTestBreaker()

	require.Error(t, failOnce(cb))
	require.Error(t, failOnce(cb))
	require.NoError(t, cb.Execute(func() error { return nil }))
	require.Error(t, failOnce(cb))
	require.Error(t, failOnce(cb))

	// Never three in a row, so still closed.
	assert.Equal(t, CBClosed, cb.State())
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	cb := newTestBreaker()
	for i := 0; i < 3; i++ {
		require.Error(t, failOnce(cb))
	}
	require.Equal(t, CBOpen, cb.State())

	time.Sleep(30 * time.Millisecond)
	require.Equal(t, CBHalfOpen, cb.State())

	// Two successful probes close the breaker again.
	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, CBHalfOpen, cb.State())
	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, CBClosed, cb.State())
}

func TestBreakerProbeFailureReopens(t *testing.T) {
	cb := newTestBreaker()
	for i := 0; i < 3; i++ {
		require.Error(t, failOnce(cb))
	}

	time.Sleep(30 * time.Millisecond)
	require.Equal(t, CBHalfOpen, cb.State())

	require.Error(t, failOnce(cb))
	assert.Equal(t, CBOpen, cb.State())
}

func TestBreakerStateStrings(t *testing.T) {
	assert.Equal(t, "closed", CBClosed.String())
	assert.Equal(t, "open", CBOpen.String())
	assert.Equal(t, "half-open", CBHalfOpen.String())
}
