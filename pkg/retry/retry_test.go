package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy() Policy {
	return Policy{MaxRetries: 2, Delay: time.Millisecond}
}

func TestDefault(t *testing.T) {
	p := Default()
	assert.Equal(t, 2, p.MaxRetries)
	assert.Equal(t, time.Second, p.Delay)
	assert.Equal(t, 3, p.Attempts())
}

func TestDoSucceedsFirstTime(t *testing.T) {
	calls := 0
	v, err := Do(context.Background(), fastPolicy(), func(context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 1, calls)
}

func TestDoRecoversAfterTransientFailure(t *testing.T) {
	calls := 0
	v, err := Do(context.Background(), fastPolicy(), func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 3, calls)
}

func TestDoSurfacesOnlyLastError(t *testing.T) {
	calls := 0
	var retried []int
	p := fastPolicy()
	p.OnRetry = func(attempt int, err error) { retried = append(retried, attempt) }

	last := errors.New("attempt 3 failed")
	_, err := Do(context.Background(), p, func(context.Context) (int, error) {
		calls++
		if calls == 3 {
			return 0, last
		}
		return 0, fmt.Errorf("attempt %d failed", calls)
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, last)
	assert.NotContains(t, err.Error(), "attempt 1 failed")
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDoWaitsBetweenAttempts(t *testing.T) {
	p := Policy{MaxRetries: 2, Delay: 20 * time.Millisecond}
	start := time.Now()
	_, _ = Do(context.Background(), p, func(context.Context) (int, error) {
		return 0, errors.New("down")
	})
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestDoHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := Do(ctx, fastPolicy(), func(context.Context) (int, error) {
		calls++
		return 1, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestDoStopsDuringDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxRetries: 2, Delay: time.Hour}

	calls := 0
	start := time.Now()
	_, err := Do(ctx, p, func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, errors.New("boom")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), time.Second)
}

func TestNegativeRetriesMeansSingleAttempt(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Policy{MaxRetries: -1}, func(context.Context) (int, error) {
		calls++
		return 0, errors.New("no")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}
