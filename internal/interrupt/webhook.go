package interrupt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/tjfontaine/blueprint-api/internal/core/domain"
	"github.com/tjfontaine/blueprint-api/internal/server"
)

// WebhookAction is the verdict returned by a webhook.
type WebhookAction string

const (
	ActionAllow WebhookAction = "allow"
	ActionDeny  WebhookAction = "deny"
)

// WebhookInput is the body POSTed to a webhook.
type WebhookInput struct {
	Hook      string `json:"hook"`
	Model     string `json:"model"`
	Payload   any    `json:"payload"`
	RequestID string `json:"request_id,omitempty"`
}

// WebhookOutput is the body a webhook must answer with.
type WebhookOutput struct {
	Action     WebhookAction `json:"action"`
	DenyReason string        `json:"deny_reason,omitempty"`
}

// WebhookConfig configures a webhook hook.
type WebhookConfig struct {
	URL     string
	Timeout time.Duration
	OnError WebhookAction // "allow" or "deny" (default: deny)
	Retries int
	Headers map[string]string
	// Transport overrides the HTTP transport, e.g. with one that refuses
	// private addresses.
	Transport http.RoundTripper
	Logger    *slog.Logger
}

type webhook struct {
	url     string
	onError WebhookAction // Action to take on transport errors
	retries int
	headers map[string]string
	client  *http.Client
	logger  *slog.Logger
}

// NewWebhook creates a hook that asks an external HTTP endpoint whether the
// pipeline may continue.
func NewWebhook(cfg WebhookConfig) Hook {
	onError := cfg.OnError
	if onError == "" {
		onError = ActionDeny // Default to fail-closed
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	w := &webhook{
		url:     cfg.URL,
		onError: onError,
		retries: cfg.Retries,
		headers: cfg.Headers,
		client:  &http.Client{Timeout: timeout, Transport: cfg.Transport},
		logger:  logger,
	}
	return w.run
}

func (w *webhook) run(ctx context.Context, ev *Event) error {
	in := &WebhookInput{
		Hook:      ev.Name,
		Payload:   ev.Payload,
		RequestID: server.GetRequestID(ctx),
	}
	if ev.Model != nil {
		in.Model = ev.Model.Name
		in.Payload = visiblePayload(ev.Model, ev.Payload)
	}

	var lastErr error
	attempts := w.retries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		out, err := w.doRequest(ctx, in)
		if err == nil {
			return verdict(out)
		}
		lastErr = err

		// Don't retry on context cancellation
		if ctx.Err() != nil {
			break
		}
	}

	if w.onError == ActionAllow {
		w.logger.Warn("webhook failed, continuing",
			slog.String("hook", ev.Name),
			slog.String("url", w.url),
			slog.String("error", lastErr.Error()))
		return nil
	}
	return domain.ErrPermission(fmt.Sprintf("webhook error: %v", lastErr)).WithCode(domain.ErrorCodeHookDenied)
}

func verdict(out *WebhookOutput) error {
	if out.Action != ActionDeny {
		return nil
	}
	reason := out.DenyReason
	if reason == "" {
		reason = "denied by webhook"
	}
	return domain.ErrPermission(reason).WithCode(domain.ErrorCodeHookDenied)
}

func (w *webhook) doRequest(ctx context.Context, in *WebhookInput) (*WebhookOutput, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("marshal webhook input: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var out WebhookOutput
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("unmarshal webhook output: %w", err)
	}

	switch out.Action {
	case ActionAllow, ActionDeny:
	case "":
		out.Action = ActionAllow
	default:
		return nil, fmt.Errorf("invalid action from webhook: %s", out.Action)
	}

	return &out, nil
}

func visiblePayload(m *domain.Model, payload any) any {
	switch p := payload.(type) {
	case domain.Record:
		return m.Visible(p)
	case UpdatePayload:
		return UpdatePayload{Before: m.Visible(p.Before), After: m.Visible(p.After)}
	default:
		return payload
	}
}
