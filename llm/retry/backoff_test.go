package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/extractflow/types"
)

func fastPolicy(maxRetries int) *RetryPolicy {
	return &RetryPolicy{
		MaxRetries:   maxRetries,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestBackoff_Success(t *testing.T) {
	r := NewBackoff(fastPolicy(3), zap.NewNop())

	callCount := 0
	err := r.Do(context.Background(), func() error {
		callCount++
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, callCount, "应该只调用一次")
}

func TestBackoff_RetryAndSuccess(t *testing.T) {
	r := NewBackoff(fastPolicy(3), zap.NewNop())

	callCount := 0
	transient := types.NewError(types.ErrUpstreamError, "503").WithRetryable(true)

	got, err := Do(context.Background(), r, func(context.Context) (string, error) {
		callCount++
		if callCount < 3 {
			return "", transient
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, callCount)
}

func TestBackoff_Exhausted(t *testing.T) {
	var retries []int
	policy := fastPolicy(2)
	policy.OnRetry = func(attempt int, _ error, _ time.Duration) { retries = append(retries, attempt) }
	r := NewBackoff(policy, nil)

	callCount := 0
	cause := WrapRetryable(errors.New("persistent"))
	err := r.Do(context.Background(), func() error {
		callCount++
		return cause
	})

	require.Error(t, err)
	var ex *ExhaustedError
	require.ErrorAs(t, err, &ex)
	assert.Equal(t, 3, ex.Attempts)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 3, callCount)
	assert.Equal(t, []int{1, 2}, retries)
}

func TestBackoff_NonRetryableStopsImmediately(t *testing.T) {
	r := NewBackoff(fastPolicy(5), zap.NewNop())

	callCount := 0
	fatal := types.NewError(types.ErrUnauthorized, "bad key")
	err := r.Do(context.Background(), func() error {
		callCount++
		return fatal
	})

	assert.Same(t, fatal, err)
	assert.Equal(t, 1, callCount)
}

func TestBackoff_CustomShouldRetry(t *testing.T) {
	sentinel := errors.New("flaky")
	policy := fastPolicy(1)
	policy.ShouldRetry = func(err error) bool { return errors.Is(err, sentinel) }
	r := NewBackoff(policy, zap.NewNop())

	callCount := 0
	err := r.Do(context.Background(), func() error {
		callCount++
		return sentinel
	})

	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 2, callCount)
}

func TestBackoff_ContextCancelled(t *testing.T) {
	policy := fastPolicy(3)
	policy.InitialDelay = time.Second
	policy.MaxDelay = time.Second
	r := NewBackoff(policy, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	callCount := 0
	err := r.Do(ctx, func() error {
		callCount++
		cancel()
		return WrapRetryable(errors.New("temporary"))
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, callCount)
}

func TestBackoff_Delay(t *testing.T) {
	r := NewBackoff(&RetryPolicy{
		MaxRetries:   5,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
	}, nil)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, 1 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, r.delay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestBackoff_JitterStaysInBounds(t *testing.T) {
	r := NewBackoff(&RetryPolicy{
		MaxRetries:   3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}, nil)

	for i := 0; i < 50; i++ {
		d := r.delay(2)
		assert.GreaterOrEqual(t, d, 150*time.Millisecond)
		assert.LessOrEqual(t, d, 250*time.Millisecond)
	}
}

func TestNewBackoff_Normalizes(t *testing.T) {
	r := NewBackoff(&RetryPolicy{MaxRetries: -1, Multiplier: 0.5}, nil)
	p := r.Policy()

	assert.Equal(t, 0, p.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, p.InitialDelay)
	assert.Equal(t, 10*time.Second, p.MaxDelay)
	assert.Equal(t, 2.0, p.Multiplier)
	assert.NotNil(t, p.ShouldRetry)
}
