package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/securenotify/notify-core/internal/api/http/dto"
	"github.com/securenotify/notify-core/internal/cleanup"
	"github.com/securenotify/notify-core/internal/keys"
)

const cleanupSecretHeader = "X-Cleanup-Secret"

type AdminHandler struct {
	sweeper *cleanup.Sweeper
	keys    *keys.Store
}

func NewAdminHandler(sweeper *cleanup.Sweeper, keyStore *keys.Store) *AdminHandler {
	return &AdminHandler{sweeper: sweeper, keys: keyStore}
}

// TriggerCleanup runs the expiry and hard-delete passes. The shared
// secret rides in a header so it never lands in access logs.
func (h *AdminHandler) TriggerCleanup(c *gin.Context) {
	report, err := h.sweeper.Trigger(c.Request.Context(), c.GetHeader(cleanupSecretHeader))
	if err != nil {
		slog.Warn("Rejected cleanup trigger", "client_ip", c.ClientIP())
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.CleanupResponse{
		ExpiredCount: report.ExpiredCount,
		DeletedCount: report.DeletedCount,
		Failures:     report.Failures,
	})
}

// RestoreKey reverses a soft delete while the key is still inside the
// retention window. Admin only.
func (h *AdminHandler) RestoreKey(c *gin.Context) {
	id := c.Param("id")
	if err := h.keys.Restore(c.Request.Context(), id); err != nil {
		switch {
		case errors.Is(err, keys.ErrKeyNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "key not found"})
		case errors.Is(err, keys.ErrKeyNotRevoked):
			c.JSON(http.StatusConflict, gin.H{"error": "key is not revoked"})
		default:
			slog.Error("Failed to restore key", "key_id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "restored"})
}
