package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/pkg/utils"
)

type WebhookConfig struct {
	// URLs receive every tenant's handoffs, on top of the tenant's own webhooks.
	URLs        []string
	Secret      string
	Timeout     time.Duration
	MaxAttempts int
	Backoff     time.Duration
}

// WebhookNotifier POSTs the handoff as JSON, signed with X-Hub-Signature-256
// when a secret is configured.
type WebhookNotifier struct {
	cfg    WebhookConfig
	client *http.Client
}

func NewWebhookNotifier(cfg WebhookConfig) *WebhookNotifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	return &WebhookNotifier{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

func (n *WebhookNotifier) NotifyHandoff(ctx context.Context, h Handoff) error {
	urls := append(append([]string{}, n.cfg.URLs...), h.Targets.Webhooks...)
	if len(urls) == 0 {
		return ErrNoTargets
	}

	payload, err := json.Marshal(map[string]any{"event": "handoff.requested", "data": h})
	if err != nil {
		return fmt.Errorf("marshal handoff: %w", err)
	}

	var lastErr error
	successes := 0
	for _, url := range urls {
		if err := n.submit(ctx, url, payload); err != nil {
			lastErr = err
			logrus.Warnf("[NOTIFY] failed forwarding handoff to %s: %v", url, err)
			continue
		}
		successes++
	}
	if successes == 0 {
		return lastErr
	}
	return nil
}

func (n *WebhookNotifier) submit(ctx context.Context, url string, payload []byte) error {
	sleep := n.cfg.Backoff
	var err error
	for attempt := 0; attempt < n.cfg.MaxAttempts; attempt++ {
		if err = n.post(ctx, url, payload); err == nil {
			return nil
		}
		if attempt < n.cfg.MaxAttempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(sleep):
			}
			sleep *= 2
		}
	}
	return fmt.Errorf("webhook %s failed after %d attempts: %w", url, n.cfg.MaxAttempts, err)
}

func (n *WebhookNotifier) post(ctx context.Context, url string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if n.cfg.Secret != "" {
		signature, err := utils.SignatureHeader(payload, []byte(n.cfg.Secret))
		if err != nil {
			return err
		}
		req.Header.Set("X-Hub-Signature-256", signature)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
