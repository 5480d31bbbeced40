package revocation

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/securenotify/notify-core/internal/secure"
)

func testLifecycle(t *testing.T) (*Lifecycle, *memStore) {
	t.Helper()
	store := newMemStore()
	lc := NewLifecycle(store, LifecycleConfig{HashIterations: secure.MinIterations})
	return lc, store
}

func TestLifecycle_CreateReturnsCodeOnce(t *testing.T) {
	lc, store := testLifecycle(t)
	ctx := context.Background()

	confirmation, code, err := lc.Create(ctx, "k1", "u1", "rotation policy", time.Hour)
	require.NoError(t, err)

	assert.Len(t, code, secure.TokenLength)
	assert.Equal(t, StatusPending, confirmation.Status)
	assert.Equal(t, "k1", confirmation.TargetID)
	assert.Equal(t, "u1", confirmation.RequesterID)
	assert.Equal(t, 0, confirmation.AttemptCount)

	// Only the salted hash is persisted, never the code.
	stored, err := store.Get(ctx, confirmation.ID)
	require.NoError(t, err)
	assert.NotContains(t, stored.CodeHash, code)
	assert.True(t, strings.Contains(stored.CodeHash, ":"))
	assert.True(t, secure.Verify(code, stored.CodeHash, secure.MinIterations))
}

func TestLifecycle_CreateExpiryBounds(t *testing.T) {
	lc, _ := testLifecycle(t)
	ctx := context.Background()

	_, _, err := lc.Create(ctx, "k1", "u1", "reason text here", 30*time.Minute)
	assert.ErrorIs(t, err, ErrExpiryOutOfRange)

	_, _, err = lc.Create(ctx, "k1", "u1", "reason text here", 8761*time.Hour)
	assert.ErrorIs(t, err, ErrExpiryOutOfRange)

	// Zero means the 24h default
	confirmation, _, err := lc.Create(ctx, "k1", "u1", "reason text here", 0)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(DefaultExpiry), confirmation.ExpiresAt, time.Minute)
}

func TestLifecycle_VerifyWrongCodeIncrementsAttempts(t *testing.T) {
	lc, _ := testLifecycle(t)
	ctx := context.Background()

	confirmation, _, err := lc.Create(ctx, "k1", "u1", "rotation policy", time.Hour)
	require.NoError(t, err)

	wrong := strings.Repeat("ab", 32)
	result, err := lc.Verify(ctx, confirmation.ID, wrong)
	require.NoError(t, err)

	assert.False(t, result.Valid)
	assert.False(t, result.Locked)
	assert.Equal(t, 1, result.Confirmation.AttemptCount)
}

func TestLifecycle_LockoutAfterMaxFailures(t *testing.T) {
	lc, _ := testLifecycle(t)
	ctx := context.Background()

	confirmation, code, err := lc.Create(ctx, "k1", "u1", "rotation policy", time.Hour)
	require.NoError(t, err)

	wrong := strings.Repeat("00", 32)
	for i := 1; i < DefaultMaxAttempts; i++ {
		result, err := lc.Verify(ctx, confirmation.ID, wrong)
		require.NoError(t, err)
		assert.False(t, result.Locked, "attempt %d should not lock", i)
	}

	result, err := lc.Verify(ctx, confirmation.ID, wrong)
	require.NoError(t, err)
	assert.True(t, result.Locked)

	// The correct code is rejected while the lock holds.
	result, err = lc.Verify(ctx, confirmation.ID, code)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.True(t, result.Locked)
}

func TestLifecycle_LockExpires(t *testing.T) {
	store := newMemStore()
	lc := NewLifecycle(store, LifecycleConfig{
		HashIterations: secure.MinIterations,
		MaxAttempts:    1,
		Lockout:        time.Minute,
	})
	ctx := context.Background()

	confirmation, code, err := lc.Create(ctx, "k1", "u1", "rotation policy", time.Hour)
	require.NoError(t, err)

	result, err := lc.Verify(ctx, confirmation.ID, strings.Repeat("00", 32))
	require.NoError(t, err)
	require.True(t, result.Locked)

	// Move the clock past lockedUntil; the correct code works again.
	lc.nowFn = func() time.Time { return time.Now().Add(2 * time.Minute) }
	result, err = lc.Verify(ctx, confirmation.ID, code)
	require.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestLifecycle_VerifyIsNonConsuming(t *testing.T) {
	lc, store := testLifecycle(t)
	ctx := context.Background()

	confirmation, code, err := lc.Create(ctx, "k1", "u1", "rotation policy", time.Hour)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		result, err := lc.Verify(ctx, confirmation.ID, code)
		require.NoError(t, err)
		assert.True(t, result.Valid)
	}

	stored, err := store.Get(ctx, confirmation.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, stored.Status)
}

func TestLifecycle_VerifyExpiredTransitions(t *testing.T) {
	lc, store := testLifecycle(t)
	ctx := context.Background()

	confirmation, code, err := lc.Create(ctx, "k1", "u1", "rotation policy", time.Hour)
	require.NoError(t, err)

	lc.nowFn = func() time.Time { return time.Now().Add(2 * time.Hour) }

	result, err := lc.Verify(ctx, confirmation.ID, code)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, StatusExpired, result.Confirmation.Status)

	stored, err := store.Get(ctx, confirmation.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, stored.Status)
}

func TestLifecycle_VerifyTerminalFailsClosed(t *testing.T) {
	lc, _ := testLifecycle(t)
	ctx := context.Background()

	for _, terminal := range []func(id string) error{
		func(id string) error { return lc.Confirm(ctx, id, "admin-1") },
		func(id string) error { return lc.Cancel(ctx, id, "u1") },
	} {
		confirmation, code, err := lc.Create(ctx, "k1", "u1", "rotation policy", time.Hour)
		require.NoError(t, err)
		require.NoError(t, terminal(confirmation.ID))

		result, err := lc.Verify(ctx, confirmation.ID, code)
		require.NoError(t, err)
		assert.False(t, result.Valid)
		assert.False(t, result.Locked)
	}
}

func TestLifecycle_ConfirmOnlyFromPending(t *testing.T) {
	lc, store := testLifecycle(t)
	ctx := context.Background()

	confirmation, _, err := lc.Create(ctx, "k1", "u1", "rotation policy", time.Hour)
	require.NoError(t, err)

	require.NoError(t, lc.Confirm(ctx, confirmation.ID, "admin-1"))

	stored, err := store.Get(ctx, confirmation.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, stored.Status)
	assert.Equal(t, "admin-1", stored.ConfirmedBy)
	require.NotNil(t, stored.ConfirmedAt)

	// Second confirm and cancel both hit the conditional update.
	assert.ErrorIs(t, lc.Confirm(ctx, confirmation.ID, "admin-1"), ErrNotPending)
	assert.ErrorIs(t, lc.Cancel(ctx, confirmation.ID, "u1"), ErrNotPending)
}

func TestLifecycle_VerifyUnknownID(t *testing.T) {
	lc, _ := testLifecycle(t)
	_, err := lc.Verify(context.Background(), "missing", "code")
	assert.ErrorIs(t, err, ErrConfirmationNotFound)
}
