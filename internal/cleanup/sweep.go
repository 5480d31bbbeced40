// Package cleanup runs the batched expiry and hard-deletion passes
// that keep the confirmation table and the revoked-key backlog bounded
// in size.
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/securenotify/notify-core/internal/apperr"
	"github.com/securenotify/notify-core/internal/audit"
	"github.com/securenotify/notify-core/internal/secure"
)

const (
	DefaultRetention = 30 * 24 * time.Hour
	DefaultBatchSize = 500

	MinRetention = 24 * time.Hour
	MaxRetention = 365 * 24 * time.Hour

	// MinSecretLength is the floor for the trigger secret.
	MinSecretLength = 32
)

// placeholderSecrets are rejected outright so a default config value
// can never authenticate a sweep.
var placeholderSecrets = []string{
	"changeme",
	"change-me-please",
	"placeholder",
	"secret",
	"cleanup-secret",
}

// ValidateSecret enforces the shared-secret policy at config load.
func ValidateSecret(secret string) error {
	if len(secret) < MinSecretLength {
		return fmt.Errorf("cleanup secret must be at least %d characters", MinSecretLength)
	}
	for _, placeholder := range placeholderSecrets {
		if secret == placeholder {
			return fmt.Errorf("cleanup secret matches a known placeholder value")
		}
	}
	return nil
}

// ConfirmationSweeper is the slice of the confirmation store the sweep
// uses.
type ConfirmationSweeper interface {
	ExpireAllDue(ctx context.Context, now time.Time) (int64, error)
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time, batchSize int) (int64, error)
}

// KeyPurger hard-deletes soft-deleted keys past retention.
type KeyPurger interface {
	HardDeleteRevokedBefore(ctx context.Context, cutoff time.Time, batchSize int) (int64, error)
}

// Report summarizes one sweep run. A failure in one batch is recorded
// here without aborting batches already committed.
type Report struct {
	ExpiredCount int64    `json:"expiredCount"`
	DeletedCount int64    `json:"deletedCount"`
	Failures     []string `json:"failures,omitempty"`
}

type Config struct {
	Secret    string
	Retention time.Duration
	BatchSize int
}

func (c Config) withDefaults() Config {
	if c.Retention == 0 {
		c.Retention = DefaultRetention
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	return c
}

type Sweeper struct {
	confirmations ConfirmationSweeper
	keys          KeyPurger
	sink          audit.Sink
	config        Config
	nowFn         func() time.Time
}

func NewSweeper(confirmations ConfirmationSweeper, keys KeyPurger, sink audit.Sink, config Config) *Sweeper {
	return &Sweeper{
		confirmations: confirmations,
		keys:          keys,
		sink:          sink,
		config:        config.withDefaults(),
		nowFn:         time.Now,
	}
}

// Trigger authenticates an external sweep request and runs it. The
// secret comparison is constant time and fails closed: no configured
// secret means no trigger.
func (s *Sweeper) Trigger(ctx context.Context, secret string) (Report, error) {
	if s.config.Secret == "" || !secure.EqualString(secret, s.config.Secret) {
		return Report{}, apperr.New(apperr.CleanupUnauthorized, "invalid cleanup secret")
	}
	return s.Run(ctx), nil
}

// Run executes both passes. Each batch commits independently, so a
// mid-sweep failure or caller timeout loses nothing already done.
func (s *Sweeper) Run(ctx context.Context) Report {
	now := s.nowFn()
	cutoff := now.Add(-s.config.Retention)
	var report Report

	expired, err := s.confirmations.ExpireAllDue(ctx, now)
	if err != nil {
		report.Failures = append(report.Failures, fmt.Sprintf("expire pass: %v", err))
	} else {
		report.ExpiredCount = expired
	}

	report.DeletedCount += s.drain(ctx, &report, "purge keys", func() (int64, error) {
		return s.keys.HardDeleteRevokedBefore(ctx, cutoff, s.config.BatchSize)
	})
	report.DeletedCount += s.drain(ctx, &report, "purge confirmations", func() (int64, error) {
		return s.confirmations.DeleteTerminalBefore(ctx, cutoff, s.config.BatchSize)
	})

	slog.Info("Cleanup sweep finished",
		"expired", report.ExpiredCount,
		"deleted", report.DeletedCount,
		"failures", len(report.Failures))

	s.sink.Emit(ctx, audit.Event{
		Timestamp: now.UTC(),
		Action:    audit.ActionCleanupRun,
		Success:   len(report.Failures) == 0,
		Metadata: map[string]string{
			"expired": fmt.Sprintf("%d", report.ExpiredCount),
			"deleted": fmt.Sprintf("%d", report.DeletedCount),
		},
	})
	return report
}

// drain repeats a batched delete until a short batch signals the end.
// A batch error stops this pass but keeps earlier batches.
func (s *Sweeper) drain(ctx context.Context, report *Report, pass string, batch func() (int64, error)) int64 {
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			report.Failures = append(report.Failures, fmt.Sprintf("%s: %v", pass, err))
			return total
		}
		n, err := batch()
		if err != nil {
			report.Failures = append(report.Failures, fmt.Sprintf("%s: %v", pass, err))
			return total
		}
		total += n
		if n < int64(s.config.BatchSize) {
			return total
		}
	}
}

// StartSchedule runs the sweep at the given interval until ctx is
// cancelled, for deployments without an external trigger.
func (s *Sweeper) StartSchedule(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Run(ctx)
		}
	}
}
