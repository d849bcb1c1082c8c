package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/tair/price-tracker/internal/tracker/domain"
)

// WebhookPayload is the JSON body posted for every alert
type WebhookPayload struct {
	Event string       `json:"event"`
	Text  string       `json:"text"`
	Alert domain.Alert `json:"alert"`
}

// WebhookNotifier posts alerts to an HTTP endpoint (Slack compatible "text" field)
type WebhookNotifier struct {
	client *resty.Client
	url    string
}

// NewWebhookNotifier creates a webhook notifier. Delivery is attempted once.
func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &WebhookNotifier{client: client, url: url}
}

func (n *WebhookNotifier) Notify(ctx context.Context, alert domain.Alert) error {
	payload := WebhookPayload{
		Event: "price_drop",
		Text:  alert.Title + "\n" + alert.Body,
		Alert: alert,
	}

	resp, err := n.client.R().
		SetContext(ctx).
		SetBody(payload).
		Post(n.url)
	if err != nil {
		return fmt.Errorf("failed to call webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode())
	}
	return nil
}
