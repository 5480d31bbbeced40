package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiter_CountdownAndDeny(t *testing.T) {
	limiter := NewMemoryLimiter(0)
	cfg := Config{Window: 60 * time.Second, MaxRequests: 5}
	ctx := context.Background()

	for _, wantRemaining := range []int{4, 3, 2, 1, 0} {
		res := limiter.Check(ctx, "ip:1.2.3.4", cfg)
		require.True(t, res.Allowed)
		assert.Equal(t, wantRemaining, res.Remaining)
	}

	res := limiter.Check(ctx, "ip:1.2.3.4", cfg)
	assert.False(t, res.Allowed)
	assert.Greater(t, res.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, res.RetryAfter, 60*time.Second)
}

func TestMemoryLimiter_AdmissionBoundUnderConcurrency(t *testing.T) {
	limiter := NewMemoryLimiter(0)
	cfg := Config{Window: time.Minute, MaxRequests: 10}
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.Check(ctx, "shared", cfg).Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, allowed)
}

func TestMemoryLimiter_WindowSlides(t *testing.T) {
	limiter := NewMemoryLimiter(0)
	cfg := Config{Window: 50 * time.Millisecond, MaxRequests: 1}
	ctx := context.Background()

	require.True(t, limiter.Check(ctx, "k", cfg).Allowed)
	require.False(t, limiter.Check(ctx, "k", cfg).Allowed)

	time.Sleep(60 * time.Millisecond)
	assert.True(t, limiter.Check(ctx, "k", cfg).Allowed)
}

func TestMemoryLimiter_BoundedKeyCount(t *testing.T) {
	limiter := NewMemoryLimiter(3)
	cfg := Config{Window: time.Minute, MaxRequests: 1}
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		limiter.Check(ctx, fmt.Sprintf("key-%d", i), cfg)
	}

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.LessOrEqual(t, len(limiter.windows), 3)
}

func TestMemoryLimiter_SweepDropsIdleWindows(t *testing.T) {
	limiter := NewMemoryLimiter(0)
	cfg := Config{Window: time.Minute, MaxRequests: 5}
	limiter.Check(context.Background(), "idle", cfg)

	limiter.sweep(0)

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.Empty(t, limiter.windows)
}
