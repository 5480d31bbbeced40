package keys

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrKeyNotFound      = errors.New("key not found")
	ErrKeyAlreadyExists = errors.New("key already registered for channel")
	ErrKeyRevoked       = errors.New("key already revoked")
	ErrKeyNotRevoked    = errors.New("key is not revoked")
)

const keyColumns = `id, channel_id, owner_id, public_key, algorithm, fingerprint,
	created_at, revoked_at, COALESCE(revoked_by, ''), COALESCE(revocation_reason, '')`

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Register(ctx context.Context, channelID, ownerID, publicKey, algorithm string) (Key, error) {
	key := Key{
		ID:          uuid.NewString(),
		ChannelID:   channelID,
		OwnerID:     ownerID,
		PublicKey:   publicKey,
		Algorithm:   algorithm,
		Fingerprint: Fingerprint(publicKey),
		CreatedAt:   time.Now().UTC(),
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO registered_keys (id, channel_id, owner_id, public_key, algorithm, fingerprint, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		key.ID, key.ChannelID, key.OwnerID, key.PublicKey, key.Algorithm, key.Fingerprint, key.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Key{}, ErrKeyAlreadyExists
		}
		return Key{}, fmt.Errorf("register key: %w", err)
	}
	return key, nil
}

func (s *Store) GetByID(ctx context.Context, id string) (Key, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+keyColumns+` FROM registered_keys WHERE id = $1`, id)
	return scanKey(row)
}

// GetByChannel returns the active key registered for a channel.
func (s *Store) GetByChannel(ctx context.Context, channelID string) (Key, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+keyColumns+` FROM registered_keys
		WHERE channel_id = $1 AND revoked_at IS NULL`, channelID)
	return scanKey(row)
}

func (s *Store) ListByOwner(ctx context.Context, ownerID string) ([]Key, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+keyColumns+` FROM registered_keys
		WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()

	var result []Key
	for rows.Next() {
		key, err := scanKey(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, key)
	}
	return result, rows.Err()
}

// SoftDelete marks the key revoked, stamping revoker and reason. The
// update is conditional on the key still being active so a concurrent
// revocation cannot double-apply.
func (s *Store) SoftDelete(ctx context.Context, id, revokedBy, reason string, now time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE registered_keys
		SET revoked_at = $2, revoked_by = $3, revocation_reason = $4
		WHERE id = $1 AND revoked_at IS NULL`,
		id, now.UTC(), revokedBy, reason,
	)
	if err != nil {
		return fmt.Errorf("soft delete key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := s.GetByID(ctx, id); errors.Is(getErr, ErrKeyNotFound) {
			return ErrKeyNotFound
		}
		return ErrKeyRevoked
	}
	return nil
}

// Restore reverses a soft delete within the retention window.
func (s *Store) Restore(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE registered_keys
		SET revoked_at = NULL, revoked_by = NULL, revocation_reason = NULL
		WHERE id = $1 AND revoked_at IS NOT NULL`, id)
	if err != nil {
		return fmt.Errorf("restore key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := s.GetByID(ctx, id); errors.Is(getErr, ErrKeyNotFound) {
			return ErrKeyNotFound
		}
		return ErrKeyNotRevoked
	}
	return nil
}

// HardDeleteRevokedBefore permanently removes one batch of keys whose
// revocation is older than cutoff. Callers loop until the returned
// count is below batchSize; each batch commits independently so a
// failure or timeout loses no prior batch.
func (s *Store) HardDeleteRevokedBefore(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM registered_keys
		WHERE id IN (
			SELECT id FROM registered_keys
			WHERE revoked_at IS NOT NULL AND revoked_at < $1
			ORDER BY revoked_at
			LIMIT $2
		)`, cutoff.UTC(), batchSize)
	if err != nil {
		return 0, fmt.Errorf("hard delete keys: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanKey(row pgx.Row) (Key, error) {
	var key Key
	err := row.Scan(
		&key.ID, &key.ChannelID, &key.OwnerID, &key.PublicKey, &key.Algorithm, &key.Fingerprint,
		&key.CreatedAt, &key.RevokedAt, &key.RevokedBy, &key.RevocationReason,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Key{}, ErrKeyNotFound
		}
		return Key{}, fmt.Errorf("scan key: %w", err)
	}
	return key, nil
}
