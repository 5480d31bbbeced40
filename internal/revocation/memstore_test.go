package revocation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory Store used by the lifecycle and workflow
// tests. Mutations hold the lock for the whole read-modify-write so it
// honors the same atomicity the SQL conditional updates provide.
type memStore struct {
	mu      sync.Mutex
	records map[string]Confirmation
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]Confirmation)}
}

func (s *memStore) Create(_ context.Context, c Confirmation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Mirror the partial unique index: one pending row per target.
	if c.Status == StatusPending {
		for _, existing := range s.records {
			if existing.TargetID == c.TargetID && existing.Status == StatusPending {
				return ErrDuplicatePending
			}
		}
	}
	s.records[c.ID] = c
	return nil
}

func (s *memStore) Get(_ context.Context, id string) (Confirmation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.records[id]
	if !ok {
		return Confirmation{}, ErrConfirmationNotFound
	}
	return c, nil
}

func (s *memStore) GetPendingByTarget(_ context.Context, targetID string) (Confirmation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.records {
		if c.TargetID == targetID && c.Status == StatusPending {
			return c, nil
		}
	}
	return Confirmation{}, ErrConfirmationNotFound
}

func (s *memStore) RecordFailedAttempt(_ context.Context, id string, maxAttempts int, lockedUntil time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.records[id]
	if !ok || c.Status != StatusPending {
		return 0, ErrNotPending
	}
	c.AttemptCount++
	if c.AttemptCount >= maxAttempts {
		until := lockedUntil
		c.LockedUntil = &until
	}
	s.records[id] = c
	return c.AttemptCount, nil
}

func (s *memStore) MarkExpired(_ context.Context, id string) error {
	return s.transition(id, StatusExpired, "", nil)
}

func (s *memStore) Confirm(_ context.Context, id, confirmedBy string, now time.Time) error {
	return s.transition(id, StatusConfirmed, confirmedBy, &now)
}

func (s *memStore) Cancel(_ context.Context, id string, _ time.Time) error {
	return s.transition(id, StatusCancelled, "", nil)
}

func (s *memStore) transition(id string, to Status, confirmedBy string, confirmedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.records[id]
	if !ok || c.Status != StatusPending {
		return ErrNotPending
	}
	c.Status = to
	c.ConfirmedBy = confirmedBy
	c.ConfirmedAt = confirmedAt
	s.records[id] = c
	return nil
}

func (s *memStore) ExpireAllDue(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var expired int64
	for id, c := range s.records {
		if c.Status == StatusPending && now.After(c.ExpiresAt) {
			c.Status = StatusExpired
			s.records[id] = c
			expired++
		}
	}
	return expired, nil
}

func (s *memStore) DeleteTerminalBefore(_ context.Context, cutoff time.Time, batchSize int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int64
	for id, c := range s.records {
		if deleted >= int64(batchSize) {
			break
		}
		if c.Status != StatusPending && c.CreatedAt.Before(cutoff) {
			delete(s.records, id)
			deleted++
		}
	}
	return deleted, nil
}

func TestMemStore_CreateRejectsSecondPending(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	base := Confirmation{
		TargetID:  "k1",
		CodeHash:  "hash",
		Status:    StatusPending,
		Reason:    "scheduled rotation policy",
		ExpiresAt: time.Now().Add(time.Hour),
		CreatedAt: time.Now(),
	}

	first := base
	first.ID = "c1"
	require.NoError(t, store.Create(ctx, first))

	second := base
	second.ID = "c2"
	assert.ErrorIs(t, store.Create(ctx, second), ErrDuplicatePending)

	// A terminal record frees the slot.
	require.NoError(t, store.MarkExpired(ctx, "c1"))
	require.NoError(t, store.Create(ctx, second))
}
