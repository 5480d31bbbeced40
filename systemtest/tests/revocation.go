package tests

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/securenotify/notify-core/internal/api/http/dto"
)

// TestKeyRevocationFlow drives a key from registration through the
// two-phase revocation against the real database.
func TestKeyRevocationFlow(t *testing.T, router *gin.Engine, token string, codes *CodeRecorder) {
	var keyID string

	t.Run("register key", func(t *testing.T) {
		rr := doJSON(router, "POST", "/api/register", token, dto.RegisterKeyRequest{
			ChannelID: "channel-flow",
			PublicKey: "-----BEGIN PUBLIC KEY-----\nMIIBIjAN\n-----END PUBLIC KEY-----",
			Algorithm: "rsa",
		})
		require.Equal(t, http.StatusCreated, rr.Code)

		var resp dto.KeyResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		require.NotEmpty(t, resp.ID)
		assert.NotEmpty(t, resp.Fingerprint)
		keyID = resp.ID
	})

	t.Run("duplicate channel rejected", func(t *testing.T) {
		rr := doJSON(router, "POST", "/api/register", token, dto.RegisterKeyRequest{
			ChannelID: "channel-flow",
			PublicKey: "another-key",
			Algorithm: "ecc",
		})
		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("unauthenticated register rejected", func(t *testing.T) {
		rr := doJSON(router, "POST", "/api/register", "", dto.RegisterKeyRequest{
			ChannelID: "channel-anon",
			PublicKey: "key-material",
			Algorithm: "rsa",
		})
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	var confirmationID string

	t.Run("request revocation", func(t *testing.T) {
		rr := doJSON(router, "DELETE", "/api/keys/"+keyID, token, dto.RevokeKeyRequest{
			Reason: "device lost, rotating credentials",
		})
		require.Equal(t, http.StatusAccepted, rr.Code)

		var resp dto.RevokeKeyResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		require.NotEmpty(t, resp.ConfirmationID)
		assert.False(t, resp.ExpiresAt.IsZero())
		confirmationID = resp.ConfirmationID

		require.Len(t, codes.Code(confirmationID), 64)
	})

	t.Run("wrong code counted", func(t *testing.T) {
		rr := doJSON(router, "POST", "/api/keys/revocations/"+confirmationID+"/confirm", token, dto.ConfirmRevocationRequest{
			Code: strings.Repeat("0", 64),
		})
		assert.Equal(t, http.StatusUnauthorized, rr.Code)

		rr = doJSON(router, "GET", "/api/keys/revocations/"+confirmationID, token, nil)
		require.Equal(t, http.StatusOK, rr.Code)

		var status dto.RevocationStatusResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &status))
		assert.Equal(t, 1, status.AttemptCount)
		assert.False(t, status.Locked)
	})

	t.Run("confirm with delivered code", func(t *testing.T) {
		rr := doJSON(router, "POST", "/api/keys/revocations/"+confirmationID+"/confirm", token, dto.ConfirmRevocationRequest{
			Code: codes.Code(confirmationID),
		})
		require.Equal(t, http.StatusOK, rr.Code)

		var resp dto.ConfirmRevocationResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, keyID, resp.DeletedResourceID)
	})

	t.Run("revoked key dropped from channel lookup", func(t *testing.T) {
		rr := doJSON(router, "GET", "/api/register?channelId=channel-flow", token, nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("confirm again rejected", func(t *testing.T) {
		rr := doJSON(router, "POST", "/api/keys/revocations/"+confirmationID+"/confirm", token, dto.ConfirmRevocationRequest{
			Code: codes.Code(confirmationID),
		})
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

// TestCancelFlow covers the second exit from a pending confirmation.
func TestCancelFlow(t *testing.T, router *gin.Engine, token string) {
	rr := doJSON(router, "POST", "/api/register", token, dto.RegisterKeyRequest{
		ChannelID: "channel-cancel",
		PublicKey: "key-material-cancel",
		Algorithm: "ecc",
	})
	require.Equal(t, http.StatusCreated, rr.Code)
	var key dto.KeyResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &key))

	rr = doJSON(router, "DELETE", "/api/keys/"+key.ID, token, dto.RevokeKeyRequest{
		Reason: "requested in error, keeping key",
	})
	require.Equal(t, http.StatusAccepted, rr.Code)
	var pending dto.RevokeKeyResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &pending))

	rr = doJSON(router, "POST", "/api/keys/revocations/"+pending.ConfirmationID+"/cancel", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	// The key survives and stays resolvable.
	rr = doJSON(router, "GET", "/api/register?channelId=channel-cancel", token, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}
