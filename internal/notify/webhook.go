package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"mempool-sentinel/internal/domain"
)

// WebhookNotifier posts alerts as JSON to a chat webhook URL.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhookNotifier creates a webhook channel for the given URL.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Compile-time interface check.
var _ Notifier = (*WebhookNotifier)(nil)

// Name identifies the channel.
func (n *WebhookNotifier) Name() string { return "webhook" }

// Send posts the alert payload. Non-2xx responses are errors.
func (n *WebhookNotifier) Send(ctx context.Context, alert *domain.Alert) error {
	payload := map[string]interface{}{
		"text":      OneLine(alert),
		"chain":     alert.Chain,
		"severity":  alert.Severity,
		"usd_value": alert.USDValue,
		"tx_hash":   alert.TxHash,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
