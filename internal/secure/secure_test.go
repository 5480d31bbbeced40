package secure

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEqual(t *testing.T) {
	assert.True(t, Equal([]byte("abc"), []byte("abc")))
	assert.False(t, Equal([]byte("abc"), []byte("abd")))

	// Length mismatch must fail without panicking
	assert.False(t, Equal([]byte("abc"), []byte("abcd")))
	assert.False(t, Equal([]byte("abc"), nil))
	assert.True(t, Equal(nil, nil))
}

func TestGenerateToken(t *testing.T) {
	token, err := GenerateToken()
	require.NoError(t, err)
	assert.Len(t, token, TokenLength)

	// Hex alphabet only
	assert.Equal(t, strings.ToLower(token), token)
	for _, r := range token {
		assert.Contains(t, "0123456789abcdef", string(r))
	}

	// Two draws must differ
	other, err := GenerateToken()
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestHashVerifyRoundTrip(t *testing.T) {
	secret, err := GenerateToken()
	require.NoError(t, err)

	stored, err := Hash(secret, MinIterations)
	require.NoError(t, err)
	assert.NotContains(t, stored, secret)

	// salt:digest shape
	salt, digest, ok := strings.Cut(stored, ":")
	require.True(t, ok)
	assert.Len(t, salt, 32)
	assert.Len(t, digest, 64)

	assert.True(t, Verify(secret, stored, MinIterations))

	// Wrong secret of equal length fails
	wrong, err := GenerateToken()
	require.NoError(t, err)
	assert.False(t, Verify(wrong, stored, MinIterations))

	// Wrong iteration count produces a different digest
	assert.False(t, Verify(secret, stored, MinIterations+1))
}

func TestHashFreshSaltPerCall(t *testing.T) {
	first, err := Hash("same-secret", MinIterations)
	require.NoError(t, err)
	second, err := Hash("same-secret", MinIterations)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestHashIterationBounds(t *testing.T) {
	_, err := Hash("s", MinIterations-1)
	assert.ErrorIs(t, err, ErrIterationsOutOfRange)

	_, err = Hash("s", MaxIterations+1)
	assert.ErrorIs(t, err, ErrIterationsOutOfRange)
}

func TestVerifyMalformedStored(t *testing.T) {
	assert.False(t, Verify("s", "", MinIterations))
	assert.False(t, Verify("s", "no-separator", MinIterations))
	assert.False(t, Verify("s", "zz:zz", MinIterations))
	assert.False(t, Verify("s", "abcd:1234", MinIterations))
}
