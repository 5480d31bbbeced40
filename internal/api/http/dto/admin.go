package dto

type CleanupResponse struct {
	ExpiredCount int64    `json:"expiredCount"`
	DeletedCount int64    `json:"deletedCount"`
	Failures     []string `json:"failures,omitempty"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error          string `json:"error"`
	Kind           string `json:"kind"`
	Ref            string `json:"ref,omitempty"`
	RetryAfter     int64  `json:"retryAfterSeconds,omitempty"`
	ConfirmationID string `json:"confirmationId,omitempty"`
	ExpiresAt      string `json:"expiresAt,omitempty"`
}
