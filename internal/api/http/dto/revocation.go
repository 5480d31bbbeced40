package dto

import "time"

type RevokeKeyRequest struct {
	Reason            string `json:"reason" binding:"required"`
	ConfirmationHours int    `json:"confirmationHours"`
}

type RevokeKeyResponse struct {
	ConfirmationID string    `json:"confirmationId"`
	ExpiresAt      time.Time `json:"expiresAt"`
}

type ConfirmRevocationRequest struct {
	Code string `json:"code" binding:"required,len=64"`
}

type ConfirmRevocationResponse struct {
	DeletedResourceID string `json:"deletedResourceId"`
}

type RevocationStatusResponse struct {
	ID           string     `json:"id"`
	TargetID     string     `json:"targetId"`
	Status       string     `json:"status"`
	AttemptCount int        `json:"attemptCount"`
	Locked       bool       `json:"locked"`
	ExpiresAt    time.Time  `json:"expiresAt"`
	CreatedAt    time.Time  `json:"createdAt"`
	ConfirmedAt  *time.Time `json:"confirmedAt,omitempty"`
}
