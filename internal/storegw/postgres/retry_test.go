package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryExecutor_Execute_SucceedsAfterTransientFailures(t *testing.T) {
	exec := NewRetryExecutor(RetryConfig{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond, BackoffFactor: 2}, nil)

	var calls int
	err := exec.Execute(context.Background(), func() error {
		calls++
		if calls < 3 {
			return &DatabaseError{Code: "40001"} // serialization_failure, retryable
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryExecutor_Execute_StopsRetryingNonRetryableError(t *testing.T) {
	exec := NewRetryExecutor(RetryConfig{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond, BackoffFactor: 2}, nil)

	var calls int
	err := exec.Execute(context.Background(), func() error {
		calls++
		return &DatabaseError{Code: "23505"} // unique_violation, not retryable
	})

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryExecutor_Execute_ExhaustsMaxRetries(t *testing.T) {
	exec := NewRetryExecutor(RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond, BackoffFactor: 2}, nil)

	var calls int
	err := exec.Execute(context.Background(), func() error {
		calls++
		return &DatabaseError{Code: "40001"}
	})

	assert.Error(t, err)
	assert.Equal(t, 3, calls, "MaxRetries=2 means 3 total attempts")
}

func TestRetryExecutor_Execute_StopsOnContextCancellation(t *testing.T) {
	exec := NewRetryExecutor(RetryConfig{MaxRetries: 5, InitialDelay: 50 * time.Millisecond, MaxDelay: time.Second, BackoffFactor: 2}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	err := exec.Execute(ctx, func() error {
		calls++
		return &DatabaseError{Code: "40001"}
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	cb := NewCircuitBreaker(2, time.Hour)

	failing := errors.New("boom")
	assert.Error(t, cb.Call(func() error { return failing }))
	assert.False(t, cb.IsOpen())
	assert.Error(t, cb.Call(func() error { return failing }))
	assert.True(t, cb.IsOpen())

	err := cb.Call(func() error { return nil })
	assert.ErrorIs(t, err, ErrCircuitBreakerOpen)
}

func TestCircuitBreaker_HalfOpensAfterResetTimeout(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Millisecond)

	failing := errors.New("boom")
	require.Error(t, cb.Call(func() error { return failing }))
	require.True(t, cb.IsOpen())

	time.Sleep(5 * time.Millisecond)
	err := cb.Call(func() error { return nil })
	assert.NoError(t, err)
	assert.False(t, cb.IsOpen(), "a successful probe call must close the breaker again")
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Hour)
	failing := errors.New("boom")

	_ = cb.Call(func() error { return failing })
	_ = cb.Call(func() error { return nil })
	assert.Equal(t, 0, cb.GetFailureCount())
}
