package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const requestTimeout = 10 * time.Second

// Webhook payload styles.
const (
	TypeGeneric = "generic"
	TypeDiscord = "discord"
	TypeSlack   = "slack"
	TypeGotify  = "gotify"
)

// Webhook posts messages to a chat or push endpoint. Delivery is a single
// attempt.
type Webhook struct {
	url        string
	kind       string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewWebhook creates a Webhook for url using the payload style kind.
func NewWebhook(url, kind string, logger *slog.Logger) *Webhook {
	return NewWebhookWithHTTPClient(url, kind, &http.Client{Timeout: requestTimeout}, logger)
}

// NewWebhookWithHTTPClient creates a Webhook with a custom HTTP client (for testing).
func NewWebhookWithHTTPClient(url, kind string, c *http.Client, logger *slog.Logger) *Webhook {
	if kind == "" {
		kind = TypeGeneric
	}
	return &Webhook{
		url:        url,
		kind:       kind,
		httpClient: c,
		logger:     logger.With(slog.String("component", "webhook")),
	}
}

// Notify posts m.
func (w *Webhook) Notify(ctx context.Context, m Message) error {
	body, err := w.format(m)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: creating webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "hashscan-webhook/1.0")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notify: sending webhook: %w", err)
	}
	defer resp.Body.Close()        //nolint:errcheck
	io.Copy(io.Discard, resp.Body) //nolint:errcheck

	if resp.StatusCode >= 400 {
		return fmt.Errorf("notify: webhook returned status %d", resp.StatusCode)
	}
	w.logger.Debug("webhook delivered", slog.String("type", w.kind))
	return nil
}

func (w *Webhook) format(m Message) ([]byte, error) {
	title := m.Subject
	if title == "" {
		title = ReportSubject
	}

	var payload any
	switch w.kind {
	case TypeDiscord:
		payload = map[string]any{
			"embeds": []map[string]any{{
				"title":       title,
				"description": m.Body,
				"color":       3447003, // blue
			}},
		}
	case TypeSlack:
		payload = map[string]any{"text": fmt.Sprintf("*%s*\n%s", title, m.Body)}
	case TypeGotify:
		payload = map[string]any{"title": title, "message": m.Body}
	default:
		payload = map[string]any{"subject": title, "body": m.Body}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("notify: encoding webhook payload: %w", err)
	}
	return body, nil
}
