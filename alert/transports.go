package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HealthcheckTransport pings a healthchecks-style URL on every fired
// event, the same GET-and-ignore-body pattern the teacher uses for its
// dead-man's-switch ping, generalized from a fixed post-vote call into a
// transport any alert category can fan out to.
type HealthcheckTransport struct {
	URL    string
	client *http.Client
}

func NewHealthcheckTransport(url string, timeout time.Duration) *HealthcheckTransport {
	return &HealthcheckTransport{URL: url, client: &http.Client{Timeout: timeout}}
}

func (t *HealthcheckTransport) Name() string { return "healthcheck:" + t.URL }

func (t *HealthcheckTransport) Send(ctx context.Context, _ Event) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.URL, nil)
	if err != nil {
		return fmt.Errorf("build healthcheck request: %w", err)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("healthcheck ping: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("healthcheck ping returned status %d", resp.StatusCode)
	}
	return nil
}

// WebhookTransport posts the event as a JSON object with a single "text"
// field to an operator-configured endpoint (a Slack-compatible incoming
// webhook, or a bespoke receiver that accepts that shape).
type WebhookTransport struct {
	URL    string
	client *http.Client
}

func NewWebhookTransport(url string, timeout time.Duration) *WebhookTransport {
	return &WebhookTransport{URL: url, client: &http.Client{Timeout: timeout}}
}

func (t *WebhookTransport) Name() string { return "webhook:" + t.URL }

type webhookPayload struct {
	Text string `json:"text"`
}

func (t *WebhookTransport) Send(ctx context.Context, e Event) error {
	body, err := json.Marshal(webhookPayload{
		Text: fmt.Sprintf("[%s] %s: %s", e.Severity, e.Category, e.Message),
	})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// LogTransport writes the event to the structured logger; every
// supervisor carries at least this transport so alerts are never silent
// even with no external transport configured.
type LogTransport struct {
	logFn func(Event)
}

func NewLogTransport(logFn func(Event)) *LogTransport {
	return &LogTransport{logFn: logFn}
}

func (t *LogTransport) Name() string { return "log" }

func (t *LogTransport) Send(_ context.Context, e Event) error {
	t.logFn(e)
	return nil
}
