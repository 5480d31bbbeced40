package tests

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/securenotify/notify-core/internal/api/http/dto"
	"github.com/securenotify/notify-core/internal/auth"
)

// TestRegister exercises account signup.
func TestRegister(t *testing.T, router *gin.Engine) {
	t.Run("success", func(t *testing.T) {
		rr := doJSON(router, "POST", "/api/auth/register", "", dto.RegisterRequest{Username: "newuser", Password: "password123"})
		require.Equal(t, http.StatusCreated, rr.Code)

		var resp dto.RegisterResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "newuser", resp.Username)
		assert.NotEmpty(t, resp.ID)
	})

	t.Run("duplicate username", func(t *testing.T) {
		rr := doJSON(router, "POST", "/api/auth/register", "", dto.RegisterRequest{Username: "newuser", Password: "password123"})
		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("password too short", func(t *testing.T) {
		rr := doJSON(router, "POST", "/api/auth/register", "", dto.RegisterRequest{Username: "shortpw", Password: "short"})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

// TestLogin exercises the login endpoint against a seeded user and
// returns a valid token for the later flows.
func TestLogin(t *testing.T, router *gin.Engine, jwtSecret, username, password string) string {
	var token string

	t.Run("success", func(t *testing.T) {
		rr := doJSON(router, "POST", "/api/auth/login", "", dto.LoginRequest{Username: username, Password: password})
		require.Equal(t, http.StatusOK, rr.Code)

		var resp dto.LoginResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		require.NotEmpty(t, resp.Token)

		claims, err := auth.ValidateToken(jwtSecret, resp.Token)
		require.NoError(t, err)
		assert.Equal(t, username, claims.Username)
		token = resp.Token
	})

	t.Run("wrong password", func(t *testing.T) {
		rr := doJSON(router, "POST", "/api/auth/login", "", dto.LoginRequest{Username: username, Password: "not-the-password"})
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("nonexistent user", func(t *testing.T) {
		rr := doJSON(router, "POST", "/api/auth/login", "", dto.LoginRequest{Username: "nobody", Password: password})
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("rate limit headers", func(t *testing.T) {
		rr := doJSON(router, "POST", "/api/auth/login", "", dto.LoginRequest{Username: username, Password: password})
		assert.NotEmpty(t, rr.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, rr.Header().Get("X-RateLimit-Remaining"))
	})

	return token
}
