package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultWebhookTimeout = 10 * time.Second

// webhookPayload is the body posted to the endpoint. Receivers get the title
// and message as separate fields and decide the formatting themselves.
type webhookPayload struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// WebhookSender delivers notifications as JSON POSTs to a configured URL.
type WebhookSender struct {
	url    string
	client *http.Client
}

// NewWebhookSender builds a sender for url. A non-positive timeout falls back
// to the default.
func NewWebhookSender(url string, timeout time.Duration) *WebhookSender {
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	return &WebhookSender{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Send posts the event to the webhook. Any 2xx response counts as delivered.
func (s *WebhookSender) Send(ctx context.Context, title, message string) error {
	body, err := json.Marshal(webhookPayload{Title: title, Message: message})
	if err != nil {
		return fmt.Errorf("webhook: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Endpoints often explain rejections in the body.
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("webhook: unexpected status %d: %s", resp.StatusCode, detail)
	}
	return nil
}

// Name identifies the sender in failure reports.
func (s *WebhookSender) Name() string { return "webhook" }
