package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecute_OpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker("test", Config{
		FailureThreshold: 2,
		Timeout:          time.Minute,
	})

	fail := errors.New("downstream error")
	for i := 0; i < 2; i++ {
		err := cb.Execute(context.Background(), func() error { return fail })
		require.ErrorIs(t, err, fail)
	}

	assert.Equal(t, StateOpen, cb.State())

	err := cb.Execute(context.Background(), func() error {
		t.Fatal("call should not be admitted while open")
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestExecute_HalfOpenRecovery(t *testing.T) {
	cb := NewCircuitBreaker("test", Config{
		FailureThreshold: 1,
		SuccessThreshold: 1,
		MaxRequests:      1,
		Timeout:          5 * time.Millisecond,
	})

	require.Error(t, cb.Execute(context.Background(), func() error {
		return errors.New("boom")
	}))
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(10 * time.Millisecond)
	require.Equal(t, StateHalfOpen, cb.State())

	require.NoError(t, cb.Execute(context.Background(), func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
}

func TestExecute_ContextCancelled(t *testing.T) {
	cb := NewCircuitBreaker("test", Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := cb.Execute(ctx, func() error {
		t.Fatal("call should not run with cancelled context")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, uint32(0), cb.Counts().Requests)
}

func TestExecute_SuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreaker("test", Config{FailureThreshold: 3})

	require.Error(t, cb.Execute(context.Background(), func() error {
		return errors.New("boom")
	}))
	require.NoError(t, cb.Execute(context.Background(), func() error { return nil }))

	counts := cb.Counts()
	assert.Equal(t, uint32(0), counts.ConsecutiveFailures)
	assert.Equal(t, StateClosed, cb.State())
}
