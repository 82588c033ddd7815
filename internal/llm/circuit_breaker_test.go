package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreakerPassesResultsThrough(t *testing.T) {
	cb := NewCircuitBreaker()

	result, err := cb.Execute(context.Background(), func() (interface{}, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, "closed", cb.State())
}

func TestCircuitBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	cb := NewCircuitBreakerWithConfig(CircuitBreakerConfig{
		MaxFailures:          3,
		Timeout:              time.Minute,
		HalfOpenMaxSuccesses: 1,
	})
	boom := errors.New("backend down")

	for i := 0; i < 3; i++ {
		_, err := cb.Execute(context.Background(), func() (interface{}, error) {
			return nil, boom
		})
		assert.ErrorIs(t, err, boom)
	}
	assert.Equal(t, "open", cb.State())

	called := false
	_, err := cb.Execute(context.Background(), func() (interface{}, error) {
		called = true
		return "ok", nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called, "fn must not run while the circuit is open")
}

func TestCircuitBreakerStaysClosedOnIntermittentFailures(t *testing.T) {
	cb := NewCircuitBreakerWithConfig(CircuitBreakerConfig{
		MaxFailures:          3,
		Timeout:              time.Minute,
		HalfOpenMaxSuccesses: 1,
	})
	boom := errors.New("blip")

	for i := 0; i < 5; i++ {
		_, _ = cb.Execute(context.Background(), func() (interface{}, error) { return nil, boom })
		_, err := cb.Execute(context.Background(), func() (interface{}, error) { return "ok", nil })
		require.NoError(t, err)
	}
	assert.Equal(t, "closed", cb.State())
}

func TestCircuitBreakerRejectsCancelledContext(t *testing.T) {
	cb := NewCircuitBreaker()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := cb.Execute(ctx, func() (interface{}, error) { return "ok", nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "closed", cb.State(), "a cancelled caller is not a backend failure")
}
