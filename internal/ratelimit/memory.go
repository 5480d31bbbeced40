package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultMaxKeys bounds the fallback limiter's key map.
const DefaultMaxKeys = 10_000

type window struct {
	admitted  []time.Time
	lastTouch time.Time
}

// MemoryLimiter is the in-process fallback used when no Redis is
// configured. It is correct only within a single instance and is
// explicitly a degraded mode: multi-instance deployments must use
// RedisLimiter. The key map is bounded by evicting the
// least-recently-touched key, and a periodic sweep drops windows with
// no live entries.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	maxKeys int
}

func NewMemoryLimiter(maxKeys int) *MemoryLimiter {
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}
	slog.Warn("Using in-process rate limiter; admission bounds are per-instance only")
	return &MemoryLimiter{
		windows: make(map[string]*window),
		maxKeys: maxKeys,
	}
}

func (l *MemoryLimiter) Check(_ context.Context, key string, cfg Config) Result {
	now := time.Now()
	cutoff := now.Add(-cfg.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	w, exists := l.windows[key]
	if !exists {
		if len(l.windows) >= l.maxKeys {
			l.evictOldestLocked()
		}
		w = &window{}
		l.windows[key] = w
	}
	w.lastTouch = now

	// Evict entries outside the sliding window. Admissions are appended
	// in time order, so find the first survivor.
	survivors := w.admitted
	for len(survivors) > 0 && !survivors[0].After(cutoff) {
		survivors = survivors[1:]
	}
	w.admitted = append(w.admitted[:0], survivors...)

	count := len(w.admitted)
	if count < cfg.MaxRequests {
		w.admitted = append(w.admitted, now)
		return Result{
			Allowed:   true,
			Limit:     cfg.MaxRequests,
			Remaining: cfg.MaxRequests - count - 1,
			ResetAt:   now.Add(cfg.Window),
		}
	}

	resetAt := w.admitted[0].Add(cfg.Window)
	retryAfter := resetAt.Sub(now)
	if retryAfter <= 0 {
		retryAfter = time.Millisecond
	}
	return Result{
		Allowed:    false,
		Limit:      cfg.MaxRequests,
		Remaining:  0,
		ResetAt:    resetAt,
		RetryAfter: retryAfter,
	}
}

func (l *MemoryLimiter) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	for key, w := range l.windows {
		if oldestKey == "" || w.lastTouch.Before(oldest) {
			oldestKey = key
			oldest = w.lastTouch
		}
	}
	if oldestKey != "" {
		delete(l.windows, oldestKey)
	}
}

// StartSweep removes windows untouched for maxIdle at the given
// interval until ctx is cancelled, bounding memory between bursts.
func (l *MemoryLimiter) StartSweep(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.sweep(maxIdle)
		}
	}
}

func (l *MemoryLimiter) sweep(maxIdle time.Duration) {
	cutoff := time.Now().Add(-maxIdle)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, w := range l.windows {
		if w.lastTouch.Before(cutoff) {
			delete(l.windows, key)
			removed++
		}
	}
	if removed > 0 {
		slog.Debug("Swept stale rate limit windows", "removed", removed)
	}
}
