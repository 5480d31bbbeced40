package revocation

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/securenotify/notify-core/internal/apperr"
	"github.com/securenotify/notify-core/internal/audit"
	"github.com/securenotify/notify-core/internal/keys"
)

const (
	PermissionRevokeKeys = "keys:revoke"
	RoleAdmin            = "admin"
)

// Actor is the authenticated principal driving a workflow operation.
type Actor struct {
	ID          string
	Role        string
	Permissions []string
}

func (a Actor) Admin() bool {
	return a.Role == RoleAdmin
}

func (a Actor) Has(permission string) bool {
	for _, p := range a.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// ResourceStore is the slice of the key store the workflow needs: an
// existence check with ownership metadata, and the terminal soft
// delete. The workflow does not own the key lifecycle beyond that.
type ResourceStore interface {
	GetByID(ctx context.Context, id string) (keys.Key, error)
	SoftDelete(ctx context.Context, id, revokedBy, reason string, now time.Time) error
}

// Deliverer hands the one-time confirmation code to the requester over
// an out-of-band channel. Delivery transport is owned by the
// surrounding system; implementations must never log the code.
type Deliverer interface {
	DeliverCode(ctx context.Context, requesterID, confirmationID, code string) error
}

type RequestResult struct {
	ConfirmationID string
	ExpiresAt      time.Time
}

type ConfirmResult struct {
	DeletedResourceID string
}

type StatusSnapshot struct {
	ID           string
	TargetID     string
	Status       Status
	AttemptCount int
	Locked       bool
	ExpiresAt    time.Time
	CreatedAt    time.Time
	ConfirmedAt  *time.Time
}

// Service orchestrates the two-phase revocation flow: permission
// checks, reason validation, idempotent request handling, and the
// coordination between the confirmation lifecycle and the key store.
type Service struct {
	lifecycle *Lifecycle
	store     Store
	resources ResourceStore
	deliverer Deliverer
	sink      audit.Sink
	nowFn     func() time.Time
}

func NewService(lifecycle *Lifecycle, store Store, resources ResourceStore, deliverer Deliverer, sink audit.Sink) *Service {
	return &Service{
		lifecycle: lifecycle,
		store:     store,
		resources: resources,
		deliverer: deliverer,
		sink:      sink,
		nowFn:     time.Now,
	}
}

// Request starts a revocation. It validates permission and reason,
// surfaces an existing pending confirmation idempotently, and only
// then issues a new code. Validation failures never mutate state.
func (s *Service) Request(ctx context.Context, actor Actor, targetID, reason string, expiry time.Duration) (RequestResult, error) {
	key, err := s.resources.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, keys.ErrKeyNotFound) {
			return RequestResult{}, apperr.New(apperr.NotFound, "key not found")
		}
		return RequestResult{}, apperr.Wrap("load key", err)
	}

	if err := s.authorize(actor, key); err != nil {
		return RequestResult{}, err
	}
	if key.Revoked() {
		return RequestResult{}, apperr.New(apperr.AlreadyRevoked, "key is already revoked")
	}
	if err := validateReason(reason); err != nil {
		return RequestResult{}, err
	}

	// Idempotency: at most one pending confirmation per target. A
	// repeat request surfaces the existing one instead of a duplicate.
	// An overdue record still holds the pending slot until it is
	// transitioned, so expire it here rather than waiting for a sweep.
	if existing, err := s.store.GetPendingByTarget(ctx, targetID); err == nil {
		if !existing.ExpiredAt(s.nowFn()) {
			return RequestResult{ConfirmationID: existing.ID, ExpiresAt: existing.ExpiresAt}, pendingConflict(existing)
		}
		if err := s.store.MarkExpired(ctx, existing.ID); err != nil && !errors.Is(err, ErrNotPending) {
			return RequestResult{}, apperr.Wrap("expire stale confirmation", err)
		}
	} else if !errors.Is(err, ErrConfirmationNotFound) {
		return RequestResult{}, apperr.Wrap("check pending confirmation", err)
	}

	confirmation, code, err := s.lifecycle.Create(ctx, targetID, actor.ID, reason, expiry)
	if err != nil {
		if errors.Is(err, ErrExpiryOutOfRange) {
			return RequestResult{}, apperr.New(apperr.ValidationFailed, "confirmation expiry out of range")
		}
		if errors.Is(err, ErrDuplicatePending) {
			// Lost a race to a concurrent request; surface the winner.
			if winner, getErr := s.store.GetPendingByTarget(ctx, targetID); getErr == nil {
				return RequestResult{ConfirmationID: winner.ID, ExpiresAt: winner.ExpiresAt}, pendingConflict(winner)
			}
		}
		return RequestResult{}, apperr.Wrap("create confirmation", err)
	}

	if err := s.deliverer.DeliverCode(ctx, actor.ID, confirmation.ID, code); err != nil {
		slog.Error("Failed to deliver confirmation code", "confirmation_id", confirmation.ID, "error", err)
	}

	s.emit(ctx, audit.ActionRevocationRequested, actor.ID, targetID, true, map[string]string{
		"confirmation_id": confirmation.ID,
		"reason":          reason,
	})

	return RequestResult{ConfirmationID: confirmation.ID, ExpiresAt: confirmation.ExpiresAt}, nil
}

// Confirm consumes a confirmation code and performs the irreversible
// half of the flow: the confirmed transition followed by the soft
// delete of the target key.
func (s *Service) Confirm(ctx context.Context, actor Actor, confirmationID, code string) (ConfirmResult, error) {
	result, err := s.lifecycle.Verify(ctx, confirmationID, code)
	if err != nil {
		if errors.Is(err, ErrConfirmationNotFound) {
			return ConfirmResult{}, apperr.New(apperr.NotFound, "confirmation not found")
		}
		return ConfirmResult{}, apperr.Wrap("verify confirmation", err)
	}

	confirmation := result.Confirmation
	if result.Locked {
		s.emit(ctx, audit.ActionRevocationLocked, actor.ID, confirmation.TargetID, false, map[string]string{
			"confirmation_id": confirmationID,
		})
		appErr := apperr.New(apperr.Locked, "too many failed attempts")
		if confirmation.LockedUntil != nil {
			appErr.RetryAfter = confirmation.LockedUntil.Sub(s.nowFn())
		}
		return ConfirmResult{}, appErr
	}
	if !result.Valid {
		if confirmation.Status == StatusExpired {
			return ConfirmResult{}, apperr.New(apperr.Expired, "confirmation has expired")
		}
		if confirmation.Terminal() {
			return ConfirmResult{}, apperr.Newf(apperr.NotFound, "confirmation is %s", confirmation.Status)
		}
		return ConfirmResult{}, apperr.New(apperr.AuthFailed, "invalid confirmation code")
	}

	// Snapshot the key before the terminal transition so the audit
	// trail records pre-deletion state.
	key, err := s.resources.GetByID(ctx, confirmation.TargetID)
	if err != nil {
		return ConfirmResult{}, apperr.Wrap("load key for revocation", err)
	}

	if err := s.lifecycle.Confirm(ctx, confirmationID, actor.ID); err != nil {
		if errors.Is(err, ErrNotPending) {
			return ConfirmResult{}, apperr.New(apperr.NotFound, "confirmation is no longer pending")
		}
		return ConfirmResult{}, apperr.Wrap("confirm", err)
	}

	now := s.nowFn()
	if err := s.resources.SoftDelete(ctx, key.ID, actor.ID, confirmation.Reason, now); err != nil {
		if !errors.Is(err, keys.ErrKeyRevoked) {
			return ConfirmResult{}, apperr.Wrap("revoke key", err)
		}
	}

	s.emit(ctx, audit.ActionRevocationConfirmed, actor.ID, key.ID, true, map[string]string{
		"confirmation_id": confirmationID,
		"channel_id":      key.ChannelID,
		"owner_id":        key.OwnerID,
		"fingerprint":     key.Fingerprint,
		"algorithm":       key.Algorithm,
		"reason":          confirmation.Reason,
	})

	return ConfirmResult{DeletedResourceID: key.ID}, nil
}

// Cancel aborts a pending confirmation.
func (s *Service) Cancel(ctx context.Context, actor Actor, confirmationID string) error {
	confirmation, err := s.store.Get(ctx, confirmationID)
	if err != nil {
		if errors.Is(err, ErrConfirmationNotFound) {
			return apperr.New(apperr.NotFound, "confirmation not found")
		}
		return apperr.Wrap("load confirmation", err)
	}
	if err := s.authorizeView(actor, confirmation); err != nil {
		return err
	}

	if err := s.lifecycle.Cancel(ctx, confirmationID, actor.ID); err != nil {
		if errors.Is(err, ErrNotPending) {
			return apperr.Newf(apperr.NotFound, "confirmation is %s", confirmation.Status)
		}
		return apperr.Wrap("cancel confirmation", err)
	}

	s.emit(ctx, audit.ActionRevocationCancelled, actor.ID, confirmation.TargetID, true, map[string]string{
		"confirmation_id": confirmationID,
	})
	return nil
}

// Status returns a snapshot of a confirmation. The stored hash is
// never part of the snapshot.
func (s *Service) Status(ctx context.Context, actor Actor, confirmationID string) (StatusSnapshot, error) {
	confirmation, err := s.store.Get(ctx, confirmationID)
	if err != nil {
		if errors.Is(err, ErrConfirmationNotFound) {
			return StatusSnapshot{}, apperr.New(apperr.NotFound, "confirmation not found")
		}
		return StatusSnapshot{}, apperr.Wrap("load confirmation", err)
	}
	if err := s.authorizeView(actor, confirmation); err != nil {
		return StatusSnapshot{}, err
	}

	return StatusSnapshot{
		ID:           confirmation.ID,
		TargetID:     confirmation.TargetID,
		Status:       confirmation.Status,
		AttemptCount: confirmation.AttemptCount,
		Locked:       confirmation.Locked(s.nowFn()),
		ExpiresAt:    confirmation.ExpiresAt,
		CreatedAt:    confirmation.CreatedAt,
		ConfirmedAt:  confirmation.ConfirmedAt,
	}, nil
}

// authorize gates the request phase: admins may revoke any key, other
// actors must own the key and carry the elevated permission.
func (s *Service) authorize(actor Actor, key keys.Key) error {
	if actor.ID == "" {
		return apperr.New(apperr.AuthRequired, "no credential presented")
	}
	if actor.Admin() {
		return nil
	}
	if !actor.Has(PermissionRevokeKeys) {
		return apperr.New(apperr.PermissionDenied, "missing keys:revoke permission")
	}
	if actor.ID != key.OwnerID {
		return apperr.New(apperr.PermissionDenied, "not the key owner")
	}
	return nil
}

func (s *Service) authorizeView(actor Actor, confirmation Confirmation) error {
	if actor.ID == "" {
		return apperr.New(apperr.AuthRequired, "no credential presented")
	}
	if actor.Admin() || actor.ID == confirmation.RequesterID {
		return nil
	}
	return apperr.New(apperr.PermissionDenied, "not the confirmation requester")
}

// pendingConflict builds the conflict error for a live pending
// confirmation, carrying its id and expiry so the caller can proceed
// with the existing flow.
func pendingConflict(existing Confirmation) *apperr.Error {
	appErr := apperr.New(apperr.ConfirmationPending, "a pending confirmation already exists for this key")
	appErr.ConfirmationID = existing.ID
	appErr.ExpiresAt = existing.ExpiresAt
	return appErr
}

func (s *Service) emit(ctx context.Context, action, actorID, targetID string, success bool, metadata map[string]string) {
	s.sink.Emit(ctx, audit.Event{
		Timestamp: s.nowFn().UTC(),
		Action:    action,
		ActorID:   actorID,
		TargetID:  targetID,
		Success:   success,
		Metadata:  metadata,
	})
}

func validateReason(reason string) error {
	trimmed := strings.TrimSpace(reason)
	if !utf8.ValidString(trimmed) {
		return apperr.New(apperr.ValidationFailed, "reason is not valid UTF-8")
	}
	if length := utf8.RuneCountInString(trimmed); length < MinReasonLength || length > MaxReasonLength {
		return apperr.Newf(apperr.ValidationFailed, "reason must be %d-%d characters", MinReasonLength, MaxReasonLength)
	}
	for _, r := range trimmed {
		if unicode.IsControl(r) {
			return apperr.New(apperr.ValidationFailed, "reason contains control characters")
		}
	}
	return nil
}
