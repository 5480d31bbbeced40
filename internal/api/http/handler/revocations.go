package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/securenotify/notify-core/internal/api/http/dto"
	"github.com/securenotify/notify-core/internal/api/http/middleware"
	"github.com/securenotify/notify-core/internal/revocation"
)

type RevocationsHandler struct {
	service *revocation.Service
}

func NewRevocationsHandler(service *revocation.Service) *RevocationsHandler {
	return &RevocationsHandler{service: service}
}

// Revoke starts the two-phase flow for a key. The confirmation code is
// delivered out of band; the response carries only the confirmation id
// and its expiry.
func (h *RevocationsHandler) Revoke(c *gin.Context) {
	var req dto.RevokeKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	expiry := time.Duration(req.ConfirmationHours) * time.Hour
	result, err := h.service.Request(c.Request.Context(), middleware.Actor(c), c.Param("id"), req.Reason, expiry)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, dto.RevokeKeyResponse{
		ConfirmationID: result.ConfirmationID,
		ExpiresAt:      result.ExpiresAt,
	})
}

func (h *RevocationsHandler) Confirm(c *gin.Context) {
	var req dto.ConfirmRevocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.Confirm(c.Request.Context(), middleware.Actor(c), c.Param("id"), req.Code)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ConfirmRevocationResponse{DeletedResourceID: result.DeletedResourceID})
}

func (h *RevocationsHandler) Cancel(c *gin.Context) {
	if err := h.service.Cancel(c.Request.Context(), middleware.Actor(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

func (h *RevocationsHandler) Status(c *gin.Context) {
	snapshot, err := h.service.Status(c.Request.Context(), middleware.Actor(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.RevocationStatusResponse{
		ID:           snapshot.ID,
		TargetID:     snapshot.TargetID,
		Status:       string(snapshot.Status),
		AttemptCount: snapshot.AttemptCount,
		Locked:       snapshot.Locked,
		ExpiresAt:    snapshot.ExpiresAt,
		CreatedAt:    snapshot.CreatedAt,
		ConfirmedAt:  snapshot.ConfirmedAt,
	})
}
