package revocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store defines the persistence operations the lifecycle and workflow
// need. All state transitions are single-row conditional updates
// scoped by id and current status, so concurrent calls cannot move a
// record out of a terminal state.
type Store interface {
	Create(ctx context.Context, c Confirmation) error
	Get(ctx context.Context, id string) (Confirmation, error)
	GetPendingByTarget(ctx context.Context, targetID string) (Confirmation, error)

	// RecordFailedAttempt increments attempt_count atomically in the
	// store and sets locked_until when the incremented count reaches
	// maxAttempts. It returns the post-increment count. Two concurrent
	// failed verifies must observe distinct counts.
	RecordFailedAttempt(ctx context.Context, id string, maxAttempts int, lockedUntil time.Time) (int, error)

	MarkExpired(ctx context.Context, id string) error
	Confirm(ctx context.Context, id, confirmedBy string, now time.Time) error
	Cancel(ctx context.Context, id string, now time.Time) error

	// ExpireAllDue transitions every overdue pending record in one
	// batched statement and reports how many changed.
	ExpireAllDue(ctx context.Context, now time.Time) (int64, error)

	// DeleteTerminalBefore hard-deletes one batch of terminal records
	// created before cutoff, returning the count removed.
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time, batchSize int) (int64, error)
}

const confirmationColumns = `id, target_id, COALESCE(requester_id, ''), code_hash, status, reason,
	expires_at, attempt_count, locked_until, created_at, confirmed_at, COALESCE(confirmed_by, '')`

// PgStore is the Postgres-backed Store.
type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (s *PgStore) Create(ctx context.Context, c Confirmation) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO revocation_confirmations
			(id, target_id, requester_id, code_hash, status, reason, expires_at, attempt_count, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9)`,
		c.ID, c.TargetID, c.RequesterID, c.CodeHash, string(c.Status), c.Reason,
		c.ExpiresAt.UTC(), c.AttemptCount, c.CreatedAt.UTC(),
	)
	if err != nil {
		// The partial unique index on pending targets rejects a second
		// in-flight confirmation for the same key.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicatePending
		}
		return fmt.Errorf("create confirmation: %w", err)
	}
	return nil
}

func (s *PgStore) Get(ctx context.Context, id string) (Confirmation, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+confirmationColumns+` FROM revocation_confirmations WHERE id = $1`, id)
	return scanConfirmation(row)
}

func (s *PgStore) GetPendingByTarget(ctx context.Context, targetID string) (Confirmation, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+confirmationColumns+` FROM revocation_confirmations
		WHERE target_id = $1 AND status = 'pending'
		ORDER BY created_at DESC LIMIT 1`, targetID)
	return scanConfirmation(row)
}

func (s *PgStore) RecordFailedAttempt(ctx context.Context, id string, maxAttempts int, lockedUntil time.Time) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		UPDATE revocation_confirmations
		SET attempt_count = attempt_count + 1,
		    locked_until = CASE WHEN attempt_count + 1 >= $2 THEN $3 ELSE locked_until END
		WHERE id = $1 AND status = 'pending'
		RETURNING attempt_count`,
		id, maxAttempts, lockedUntil.UTC(),
	).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotPending
		}
		return 0, fmt.Errorf("record failed attempt: %w", err)
	}
	return count, nil
}

func (s *PgStore) MarkExpired(ctx context.Context, id string) error {
	return s.transition(ctx, id, `
		UPDATE revocation_confirmations SET status = 'expired'
		WHERE id = $1 AND status = 'pending'`)
}

func (s *PgStore) Confirm(ctx context.Context, id, confirmedBy string, now time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE revocation_confirmations
		SET status = 'confirmed', confirmed_at = $2, confirmed_by = $3
		WHERE id = $1 AND status = 'pending'`,
		id, now.UTC(), confirmedBy,
	)
	if err != nil {
		return fmt.Errorf("confirm: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotPending
	}
	return nil
}

func (s *PgStore) Cancel(ctx context.Context, id string, _ time.Time) error {
	return s.transition(ctx, id, `
		UPDATE revocation_confirmations SET status = 'cancelled'
		WHERE id = $1 AND status = 'pending'`)
}

func (s *PgStore) ExpireAllDue(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE revocation_confirmations SET status = 'expired'
		WHERE status = 'pending' AND expires_at < $1`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("expire due confirmations: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PgStore) DeleteTerminalBefore(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM revocation_confirmations
		WHERE id IN (
			SELECT id FROM revocation_confirmations
			WHERE status IN ('confirmed', 'cancelled', 'expired') AND created_at < $1
			ORDER BY created_at
			LIMIT $2
		)`, cutoff.UTC(), batchSize)
	if err != nil {
		return 0, fmt.Errorf("delete terminal confirmations: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PgStore) transition(ctx context.Context, id, query string) error {
	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("transition confirmation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotPending
	}
	return nil
}

func scanConfirmation(row pgx.Row) (Confirmation, error) {
	var c Confirmation
	var status string
	err := row.Scan(
		&c.ID, &c.TargetID, &c.RequesterID, &c.CodeHash, &status, &c.Reason,
		&c.ExpiresAt, &c.AttemptCount, &c.LockedUntil, &c.CreatedAt, &c.ConfirmedAt, &c.ConfirmedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Confirmation{}, ErrConfirmationNotFound
		}
		return Confirmation{}, fmt.Errorf("scan confirmation: %w", err)
	}
	c.Status = Status(status)
	return c, nil
}
