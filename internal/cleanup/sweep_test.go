package cleanup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/securenotify/notify-core/internal/apperr"
	"github.com/securenotify/notify-core/internal/audit"
)

type fakeConfirmations struct {
	due       int64
	terminal  int64
	expireErr error
	deleteErr error

	expireCalls int
}

func (f *fakeConfirmations) ExpireAllDue(_ context.Context, _ time.Time) (int64, error) {
	f.expireCalls++
	if f.expireErr != nil {
		return 0, f.expireErr
	}
	n := f.due
	f.due = 0
	return n, nil
}

func (f *fakeConfirmations) DeleteTerminalBefore(_ context.Context, _ time.Time, batchSize int) (int64, error) {
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	n := min(f.terminal, int64(batchSize))
	f.terminal -= n
	return n, nil
}

type fakeKeys struct {
	revoked   int64
	batchErr  error
	failAfter int

	calls int
}

func (f *fakeKeys) HardDeleteRevokedBefore(_ context.Context, _ time.Time, batchSize int) (int64, error) {
	f.calls++
	if f.batchErr != nil && f.calls > f.failAfter {
		return 0, f.batchErr
	}
	n := min(f.revoked, int64(batchSize))
	f.revoked -= n
	return n, nil
}

const validSecret = "0123456789abcdef0123456789abcdef"

func newSweeper(confirmations *fakeConfirmations, keyStore *fakeKeys, batchSize int) *Sweeper {
	return NewSweeper(confirmations, keyStore, audit.SlogSink{}, Config{
		Secret:    validSecret,
		Retention: DefaultRetention,
		BatchSize: batchSize,
	})
}

func TestSweeper_TriggerAuth(t *testing.T) {
	sweeper := newSweeper(&fakeConfirmations{}, &fakeKeys{}, 10)
	ctx := context.Background()

	_, err := sweeper.Trigger(ctx, "wrong-secret")
	assert.True(t, apperr.Is(err, apperr.CleanupUnauthorized))

	_, err = sweeper.Trigger(ctx, "")
	assert.True(t, apperr.Is(err, apperr.CleanupUnauthorized))

	report, err := sweeper.Trigger(ctx, validSecret)
	require.NoError(t, err)
	assert.Empty(t, report.Failures)
}

func TestSweeper_NoConfiguredSecretFailsClosed(t *testing.T) {
	sweeper := NewSweeper(&fakeConfirmations{}, &fakeKeys{}, audit.SlogSink{}, Config{})

	_, err := sweeper.Trigger(context.Background(), "")
	assert.True(t, apperr.Is(err, apperr.CleanupUnauthorized))
}

func TestSweeper_ExpireAndPurgeCounts(t *testing.T) {
	confirmations := &fakeConfirmations{due: 7, terminal: 3}
	keyStore := &fakeKeys{revoked: 12}
	sweeper := newSweeper(confirmations, keyStore, 5)

	report := sweeper.Run(context.Background())
	assert.Equal(t, int64(7), report.ExpiredCount)
	assert.Equal(t, int64(15), report.DeletedCount)
	assert.Empty(t, report.Failures)

	// 12 keys at batch size 5 needs three batches (5, 5, 2).
	assert.Equal(t, 3, keyStore.calls)
}

func TestSweeper_IdempotentExpire(t *testing.T) {
	confirmations := &fakeConfirmations{due: 4}
	sweeper := newSweeper(confirmations, &fakeKeys{}, 5)

	first := sweeper.Run(context.Background())
	assert.Equal(t, int64(4), first.ExpiredCount)

	second := sweeper.Run(context.Background())
	assert.Equal(t, int64(0), second.ExpiredCount)
}

func TestSweeper_BatchFailureKeepsCommittedBatches(t *testing.T) {
	keyStore := &fakeKeys{revoked: 20, batchErr: errors.New("lock timeout"), failAfter: 2}
	confirmations := &fakeConfirmations{terminal: 2}
	sweeper := newSweeper(confirmations, keyStore, 5)

	report := sweeper.Run(context.Background())

	// Two key batches committed before the failure; the confirmation
	// pass still ran independently.
	assert.Equal(t, int64(12), report.DeletedCount)
	require.Len(t, report.Failures, 1)
	assert.Contains(t, report.Failures[0], "lock timeout")
}

func TestSweeper_ExpirePassFailureIsIsolated(t *testing.T) {
	confirmations := &fakeConfirmations{expireErr: errors.New("db down")}
	keyStore := &fakeKeys{revoked: 2}
	sweeper := newSweeper(confirmations, keyStore, 5)

	report := sweeper.Run(context.Background())
	assert.Equal(t, int64(0), report.ExpiredCount)
	assert.Equal(t, int64(2), report.DeletedCount)
	require.Len(t, report.Failures, 1)
}

func TestValidateSecret(t *testing.T) {
	assert.NoError(t, ValidateSecret(validSecret))
	assert.Error(t, ValidateSecret("short"))
	assert.Error(t, ValidateSecret("changeme"))
	assert.Error(t, ValidateSecret("placeholder"))
}
