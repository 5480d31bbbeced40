// Package keys manages registered public keys, the credential a
// revocation ultimately disables. Revocation is a soft delete: the row
// keeps its revocation stamps for audit and bounded-window recovery
// until the cleanup sweep hard-deletes it.
package keys

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

type Key struct {
	ID               string
	ChannelID        string
	OwnerID          string
	PublicKey        string
	Algorithm        string
	Fingerprint      string
	CreatedAt        time.Time
	RevokedAt        *time.Time
	RevokedBy        string
	RevocationReason string
}

func (k Key) Revoked() bool {
	return k.RevokedAt != nil
}

// Fingerprint returns the hex SHA-256 of the key material, used for
// display and audit without echoing the full key.
func Fingerprint(publicKey string) string {
	sum := sha256.Sum256([]byte(publicKey))
	return hex.EncodeToString(sum[:])
}
