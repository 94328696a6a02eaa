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

// WebhookSink POSTs events as JSON to an HTTP endpoint.
type WebhookSink struct {
	name   string
	url    string
	client *http.Client
}

// NewWebhookSink builds a webhook sink. Timeout bounds the whole
// request including connection setup.
func NewWebhookSink(name, url string, timeout time.Duration) *WebhookSink {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookSink{
		name:   name,
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (s *WebhookSink) Name() string { return s.name }

func (s *WebhookSink) Send(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func (s *WebhookSink) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
