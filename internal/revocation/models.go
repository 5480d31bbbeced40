// Package revocation implements the two-phase key revocation flow: a
// request step that issues a one-time confirmation code, and a
// separate confirm step that consumes it. The confirmation record
// lives in Postgres; only a salted hash of the code is ever stored.
package revocation

import (
	"errors"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

const (
	MinExpiry = time.Hour
	MaxExpiry = 8760 * time.Hour

	// DefaultExpiry matches the API default of 24 confirmation hours.
	DefaultExpiry = 24 * time.Hour

	DefaultMaxAttempts = 5
	DefaultLockout     = 60 * time.Minute

	MinReasonLength = 10
	MaxReasonLength = 1000
)

var (
	ErrConfirmationNotFound = errors.New("confirmation not found")
	ErrNotPending           = errors.New("confirmation is not pending")
	ErrExpiryOutOfRange     = errors.New("confirmation expiry out of range")
	ErrDuplicatePending     = errors.New("target already has a pending confirmation")
)

// Confirmation is one in-flight revocation attempt. A record that has
// left pending is immutable; the stores enforce that with conditional
// updates.
type Confirmation struct {
	ID           string
	TargetID     string
	RequesterID  string
	CodeHash     string
	Status       Status
	Reason       string
	ExpiresAt    time.Time
	AttemptCount int
	LockedUntil  *time.Time
	CreatedAt    time.Time
	ConfirmedAt  *time.Time
	ConfirmedBy  string
}

func (c Confirmation) Terminal() bool {
	return c.Status != StatusPending
}

func (c Confirmation) Locked(now time.Time) bool {
	return c.LockedUntil != nil && c.LockedUntil.After(now)
}

func (c Confirmation) ExpiredAt(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// VerifyResult reports a code check. Valid and Locked are mutually
// exclusive; a locked record is never compared against the candidate.
type VerifyResult struct {
	Valid        bool
	Locked       bool
	Confirmation Confirmation
}
