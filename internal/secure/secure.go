// Package secure holds the shared security primitives: constant-time
// comparison, random token generation, and the salted iterative hash
// used for confirmation codes.
package secure

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// TokenLength is the hex length of generated tokens (256 bits).
	TokenLength = 64

	saltLength   = 16
	digestLength = 32

	// MinIterations and MaxIterations bound the PBKDF2 work factor.
	MinIterations = 100_000
	MaxIterations = 1_000_000

	// DefaultIterations follows the current OWASP recommendation for
	// PBKDF2-SHA256.
	DefaultIterations = 210_000
)

var ErrIterationsOutOfRange = errors.New("hash iterations out of range")

// Equal compares two byte sequences in constant time. Unlike a bare
// subtle.ConstantTimeCompare call, a length mismatch does not
// short-circuit: the mismatching branch still performs a full
// comparison so timing does not reveal length equality.
func Equal(a, b []byte) bool {
	if len(a) != len(b) {
		subtle.ConstantTimeCompare(a, a)
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}

func EqualString(a, b string) bool {
	return Equal([]byte(a), []byte(b))
}

// GenerateToken returns 256 bits of cryptographically secure
// randomness as a 64-char hex string.
func GenerateToken() (string, error) {
	buf := make([]byte, TokenLength/2)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Hash derives a salted digest of secret using PBKDF2-SHA256 with a
// fresh random salt. The output format is "saltHex:digestHex". The raw
// secret is never logged or stored.
func Hash(secret string, iterations int) (string, error) {
	if iterations < MinIterations || iterations > MaxIterations {
		return "", ErrIterationsOutOfRange
	}

	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	digest := pbkdf2.Key([]byte(secret), salt, iterations, digestLength, sha256.New)
	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(digest), nil
}

// Verify recomputes the digest of secret with the salt embedded in
// stored and compares in constant time. A malformed stored hash fails
// closed.
func Verify(secret, stored string, iterations int) bool {
	if iterations < MinIterations || iterations > MaxIterations {
		return false
	}

	saltHex, digestHex, ok := strings.Cut(stored, ":")
	if !ok {
		return false
	}
	salt, err := hex.DecodeString(saltHex)
	if err != nil || len(salt) != saltLength {
		return false
	}
	expected, err := hex.DecodeString(digestHex)
	if err != nil || len(expected) != digestLength {
		return false
	}

	digest := pbkdf2.Key([]byte(secret), salt, iterations, digestLength, sha256.New)
	return Equal(digest, expected)
}
