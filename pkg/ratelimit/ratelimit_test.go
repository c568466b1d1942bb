package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(maxPerMinute int) (*Limiter, *time.Time, *[]time.Duration) {
	current := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var slept []time.Duration

	limiter := New(maxPerMinute)
	limiter.now = func() time.Time { return current }
	limiter.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		// 真实时钟在休眠结束后总会略微超过目标时刻
		current = current.Add(d + time.Millisecond)
		return nil
	}
	return limiter, &current, &slept
}

func TestLimiterAllowsUpToLimit(t *testing.T) {
	limiter, _, slept := newTestLimiter(3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, limiter.Acquire(ctx))
	}
	assert.Empty(t, *slept)
}

func TestLimiterBlocksOverLimit(t *testing.T) {
	limiter, current, slept := newTestLimiter(2)
	ctx := context.Background()

	require.NoError(t, limiter.Acquire(ctx))
	*current = current.Add(10 * time.Second)
	require.NoError(t, limiter.Acquire(ctx))

	// 第三次应等到最早的记录滑出窗口
	require.NoError(t, limiter.Acquire(ctx))
	require.Len(t, *slept, 1)
	assert.Equal(t, 50*time.Second, (*slept)[0])
}

func TestLimiterWindowSlides(t *testing.T) {
	limiter, current, slept := newTestLimiter(1)
	ctx := context.Background()

	require.NoError(t, limiter.Acquire(ctx))
	*current = current.Add(61 * time.Second)
	require.NoError(t, limiter.Acquire(ctx))
	assert.Empty(t, *slept)
}

func TestLimiterDisabled(t *testing.T) {
	limiter := New(0)
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		require.NoError(t, limiter.Acquire(ctx))
	}
}

func TestLimiterContextCanceled(t *testing.T) {
	limiter := New(1)
	limiter.sleep = sleepContext

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, limiter.Acquire(ctx))

	cancel()
	err := limiter.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
