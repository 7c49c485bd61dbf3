package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"savings-intents-go/internal/models"

	"go.uber.org/zap"
	"golang.org/x/net/http2"
)

// WebhookNotifier posts notifications as JSON to an HTTP endpoint
type WebhookNotifier struct {
	client *http.Client
	url    string
}

func NewWebhookNotifier(cfg models.NotifyConfig) (*WebhookNotifier, error) {
	if cfg.WebhookUrl == "" {
		return nil, fmt.Errorf("notify webhook url cannot be empty")
	}

	client, err := createCustomHttpClient(cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("unable to create http client: %w", err)
	}
	return &WebhookNotifier{client: client, url: cfg.WebhookUrl}, nil
}

func createCustomHttpClient(timeout time.Duration) (*http.Client, error) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	tr := &http.Transport{
		ResponseHeaderTimeout: timeout,
		Proxy:                 http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			KeepAlive: 30 * time.Second,
			Timeout:   timeout,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   timeout,
		MaxIdleConnsPerHost:   5,
		ExpectContinueTimeout: time.Second,
	}

	if err := http2.ConfigureTransport(tr); err != nil {
		return nil, err
	}

	return &http.Client{Transport: tr, Timeout: timeout}, nil
}

func (n *WebhookNotifier) NotifyCompletion(ctx context.Context, userId string, summary models.IntentSummary) error {
	body, err := json.Marshal(Notification{Event: EventIntentCompleted, UserId: userId, Summary: summary})
	if err != nil {
		return fmt.Errorf("unable to encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("unable to build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", summary.IntentId)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("notification request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		if err := resp.Body.Close(); err != nil {
			zap.L().Warn("Failed to close notification response body", zap.Error(err))
		}
	}()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("notification endpoint returned %d", resp.StatusCode)
	}
	return nil
}
