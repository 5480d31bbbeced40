package revocation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// WebhookDeliverer posts confirmation codes to an external notification
// endpoint. The endpoint owns the last hop to the requester (email,
// push, SMS); this process never logs or stores the plaintext code.
type WebhookDeliverer struct {
	url    string
	client *http.Client
}

func NewWebhookDeliverer(url string) *WebhookDeliverer {
	return &WebhookDeliverer{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type deliveryPayload struct {
	RequesterID    string `json:"requester_id"`
	ConfirmationID string `json:"confirmation_id"`
	Code           string `json:"code"`
}

func (d *WebhookDeliverer) DeliverCode(ctx context.Context, requesterID, confirmationID, code string) error {
	body, err := json.Marshal(deliveryPayload{
		RequesterID:    requesterID,
		ConfirmationID: confirmationID,
		Code:           code,
	})
	if err != nil {
		return fmt.Errorf("encode delivery payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build delivery request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver confirmation code: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("delivery endpoint returned status %d for confirmation %s", resp.StatusCode, confirmationID)
	}
	return nil
}
