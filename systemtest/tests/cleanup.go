package tests

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/securenotify/notify-core/internal/api/http/dto"
)

// TestCleanupTrigger checks the shared-secret admin endpoint.
func TestCleanupTrigger(t *testing.T, router *gin.Engine, secret string) {
	t.Run("wrong secret rejected", func(t *testing.T) {
		rr := doCleanup(router, "not-the-secret")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("missing secret rejected", func(t *testing.T) {
		rr := doCleanup(router, "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("valid secret runs sweep", func(t *testing.T) {
		rr := doCleanup(router, secret)
		require.Equal(t, http.StatusOK, rr.Code)

		var resp dto.CleanupResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Empty(t, resp.Failures)
	})
}

func doCleanup(router *gin.Engine, secret string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/api/admin/cleanup", nil)
	if secret != "" {
		req.Header.Set("X-Cleanup-Secret", secret)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}
