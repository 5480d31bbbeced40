package revocation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/securenotify/notify-core/internal/secure"
)

type LifecycleConfig struct {
	HashIterations int
	MaxAttempts    int
	Lockout        time.Duration
}

func (c LifecycleConfig) withDefaults() LifecycleConfig {
	if c.HashIterations == 0 {
		c.HashIterations = secure.DefaultIterations
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.Lockout == 0 {
		c.Lockout = DefaultLockout
	}
	return c
}

// Lifecycle drives the confirmation-code state machine. It never
// returns an error for expected business outcomes: a wrong code, a
// locked record, or an expired record is reported through VerifyResult
// while errors are reserved for store failures.
type Lifecycle struct {
	store  Store
	config LifecycleConfig
	nowFn  func() time.Time
}

func NewLifecycle(store Store, config LifecycleConfig) *Lifecycle {
	return &Lifecycle{
		store:  store,
		config: config.withDefaults(),
		nowFn:  time.Now,
	}
}

// Create issues a confirmation for targetID. The plaintext code is
// returned exactly once; only its salted hash is persisted and the
// record can never reproduce it.
func (l *Lifecycle) Create(ctx context.Context, targetID, requesterID, reason string, expiry time.Duration) (Confirmation, string, error) {
	if expiry == 0 {
		expiry = DefaultExpiry
	}
	if expiry < MinExpiry || expiry > MaxExpiry {
		return Confirmation{}, "", ErrExpiryOutOfRange
	}

	code, err := secure.GenerateToken()
	if err != nil {
		return Confirmation{}, "", fmt.Errorf("generate confirmation code: %w", err)
	}
	codeHash, err := secure.Hash(code, l.config.HashIterations)
	if err != nil {
		return Confirmation{}, "", fmt.Errorf("hash confirmation code: %w", err)
	}

	now := l.nowFn().UTC()
	confirmation := Confirmation{
		ID:          uuid.NewString(),
		TargetID:    targetID,
		RequesterID: requesterID,
		CodeHash:    codeHash,
		Status:      StatusPending,
		Reason:      reason,
		ExpiresAt:   now.Add(expiry),
		CreatedAt:   now,
	}
	if err := l.store.Create(ctx, confirmation); err != nil {
		return Confirmation{}, "", err
	}

	slog.Info("Confirmation created", "confirmation_id", confirmation.ID, "target_id", targetID, "expires_at", confirmation.ExpiresAt)
	return confirmation, code, nil
}

// Verify checks a candidate code. Verification is non-consuming: a
// match leaves the record pending so the explicit Confirm step
// performs the transition. A mismatch increments the attempt count
// atomically in the store; reaching the maximum locks the record.
func (l *Lifecycle) Verify(ctx context.Context, id, candidate string) (VerifyResult, error) {
	confirmation, err := l.store.Get(ctx, id)
	if err != nil {
		return VerifyResult{}, err
	}
	now := l.nowFn()

	if confirmation.Locked(now) {
		return VerifyResult{Locked: true, Confirmation: confirmation}, nil
	}

	if confirmation.Status == StatusPending && confirmation.ExpiredAt(now) {
		if err := l.store.MarkExpired(ctx, id); err != nil && !errors.Is(err, ErrNotPending) {
			return VerifyResult{}, err
		}
		confirmation.Status = StatusExpired
		return VerifyResult{Confirmation: confirmation}, nil
	}

	// Terminal records fail closed without touching the store.
	if confirmation.Status != StatusPending {
		return VerifyResult{Confirmation: confirmation}, nil
	}

	if !secure.Verify(candidate, confirmation.CodeHash, l.config.HashIterations) {
		count, err := l.store.RecordFailedAttempt(ctx, id, l.config.MaxAttempts, now.Add(l.config.Lockout))
		if err != nil {
			if errors.Is(err, ErrNotPending) {
				// Lost a race to a concurrent transition; fail closed.
				return VerifyResult{Confirmation: confirmation}, nil
			}
			return VerifyResult{}, err
		}
		confirmation.AttemptCount = count
		locked := count >= l.config.MaxAttempts
		if locked {
			lockedUntil := now.Add(l.config.Lockout)
			confirmation.LockedUntil = &lockedUntil
			slog.Warn("Confirmation locked after repeated failures", "confirmation_id", id, "attempts", count)
		}
		return VerifyResult{Locked: locked, Confirmation: confirmation}, nil
	}

	return VerifyResult{Valid: true, Confirmation: confirmation}, nil
}

// Confirm transitions pending → confirmed. Callers must have passed
// Verify first; the conditional update rejects anything not pending.
func (l *Lifecycle) Confirm(ctx context.Context, id, confirmerID string) error {
	return l.store.Confirm(ctx, id, confirmerID, l.nowFn())
}

// Cancel transitions pending → cancelled.
func (l *Lifecycle) Cancel(ctx context.Context, id, cancellerID string) error {
	if err := l.store.Cancel(ctx, id, l.nowFn()); err != nil {
		return err
	}
	slog.Info("Confirmation cancelled", "confirmation_id", id, "cancelled_by", cancellerID)
	return nil
}
