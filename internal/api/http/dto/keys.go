package dto

import "time"

type RegisterKeyRequest struct {
	ChannelID string `json:"channelId" binding:"required,min=1,max=255"`
	PublicKey string `json:"publicKey" binding:"required"`
	Algorithm string `json:"algorithm" binding:"required,oneof=rsa ecc aes"`
}

type KeyResponse struct {
	ID          string     `json:"id"`
	ChannelID   string     `json:"channelId"`
	OwnerID     string     `json:"ownerId"`
	PublicKey   string     `json:"publicKey"`
	Algorithm   string     `json:"algorithm"`
	Fingerprint string     `json:"fingerprint"`
	CreatedAt   time.Time  `json:"createdAt"`
	RevokedAt   *time.Time `json:"revokedAt,omitempty"`
}

type ListKeysResponse struct {
	Keys  []KeyResponse `json:"keys"`
	Count int           `json:"count"`
}
