// Package ratelimit implements sliding-window admission control. The
// distributed implementation runs a single atomic Redis script per
// decision; the in-process implementation is a degraded fallback for
// single-instance deployments without Redis. Both fail closed: on any
// infrastructure error the decision is a denial, never an admission.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	MinWindow      = time.Second
	MaxWindow      = time.Hour
	MinMaxRequests = 1
	MaxMaxRequests = 10_000
)

var ErrConfigOutOfRange = errors.New("rate limit config out of range")

// Config is the admission policy for one endpoint class.
type Config struct {
	Window      time.Duration
	MaxRequests int
}

func (c Config) Validate() error {
	if c.Window < MinWindow || c.Window > MaxWindow {
		return fmt.Errorf("%w: window %s not in [%s, %s]", ErrConfigOutOfRange, c.Window, MinWindow, MaxWindow)
	}
	if c.MaxRequests < MinMaxRequests || c.MaxRequests > MaxMaxRequests {
		return fmt.Errorf("%w: max requests %d not in [%d, %d]", ErrConfigOutOfRange, c.MaxRequests, MinMaxRequests, MaxMaxRequests)
	}
	return nil
}

// Result is the admission decision plus the metadata every caller must
// surface: ceiling, remaining budget, reset time, and (on denial only)
// a retry-after hint.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Limiter makes admission decisions. Implementations never return an
// error from Check: infrastructure failures are folded into a denial
// per the fail-closed policy.
type Limiter interface {
	Check(ctx context.Context, key string, cfg Config) Result
}

// deny is the fail-closed decision used when the backing store cannot
// answer. The caller is told to retry after a full window.
func deny(cfg Config, now time.Time) Result {
	return Result{
		Allowed:    false,
		Limit:      cfg.MaxRequests,
		Remaining:  0,
		ResetAt:    now.Add(cfg.Window),
		RetryAfter: cfg.Window,
	}
}
