package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/securenotify/notify-core/internal/api/http/dto"
	"github.com/securenotify/notify-core/internal/api/http/middleware"
	"github.com/securenotify/notify-core/internal/keys"
)

type KeysHandler struct {
	store *keys.Store
}

func NewKeysHandler(store *keys.Store) *KeysHandler {
	return &KeysHandler{store: store}
}

func (h *KeysHandler) Register(c *gin.Context) {
	var req dto.RegisterKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actor := middleware.Actor(c)
	key, err := h.store.Register(c.Request.Context(), req.ChannelID, actor.ID, req.PublicKey, req.Algorithm)
	if err != nil {
		if errors.Is(err, keys.ErrKeyAlreadyExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "channel already has an active key"})
			return
		}
		slog.Error("Failed to register key", "channel_id", req.ChannelID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register key"})
		return
	}

	c.JSON(http.StatusCreated, keyResponse(key))
}

func (h *KeysHandler) GetByChannel(c *gin.Context) {
	channelID := c.Query("channelId")
	if channelID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "channelId is required"})
		return
	}

	key, err := h.store.GetByChannel(c.Request.Context(), channelID)
	if err != nil {
		if errors.Is(err, keys.ErrKeyNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no active key for channel"})
			return
		}
		slog.Error("Failed to look up key", "channel_id", channelID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, keyResponse(key))
}

func (h *KeysHandler) ListMine(c *gin.Context) {
	actor := middleware.Actor(c)
	owned, err := h.store.ListByOwner(c.Request.Context(), actor.ID)
	if err != nil {
		slog.Error("Failed to list keys", "owner_id", actor.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	result := make([]dto.KeyResponse, 0, len(owned))
	for _, key := range owned {
		result = append(result, keyResponse(key))
	}
	c.JSON(http.StatusOK, dto.ListKeysResponse{Keys: result, Count: len(result)})
}

func keyResponse(key keys.Key) dto.KeyResponse {
	return dto.KeyResponse{
		ID:          key.ID,
		ChannelID:   key.ChannelID,
		OwnerID:     key.OwnerID,
		PublicKey:   key.PublicKey,
		Algorithm:   key.Algorithm,
		Fingerprint: key.Fingerprint,
		CreatedAt:   key.CreatedAt,
		RevokedAt:   key.RevokedAt,
	}
}
