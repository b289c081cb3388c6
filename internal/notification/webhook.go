// File: internal/notification/webhook.go
package notification

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/smartdevs17/xltoken-dashboard/internal/config"
	"github.com/smartdevs17/xltoken-dashboard/pkg/utils"
)

// SignatureHeader carries the hex HMAC-SHA256 of the request body when the
// webhook has a secret.
const SignatureHeader = "X-Dashboard-Signature"

// WebhookSender handles webhook delivery
type WebhookSender struct {
	retry      WebhookRetryConfig
	logger     *logrus.Entry
	httpClient *http.Client
	userAgent  string
}

// WebhookPayload defines the webhook payload structure
type WebhookPayload struct {
	ID        string      `json:"id"`
	Event     string      `json:"event"`
	Timestamp time.Time   `json:"timestamp"`
	Source    string      `json:"source"`
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Version   string      `json:"version"`
}

// WebhookRetryConfig defines retry configuration for webhooks
type WebhookRetryConfig struct {
	MaxAttempts int           `json:"max_attempts"`
	BaseDelay   time.Duration `json:"base_delay"`
	MaxDelay    time.Duration `json:"max_delay"`
}

// WebhookResponse represents a webhook response
type WebhookResponse struct {
	StatusCode   int           `json:"status_code"`
	ResponseTime time.Duration `json:"response_time"`
	Attempts     int           `json:"attempts"`
	Success      bool          `json:"success"`
	Error        error         `json:"error,omitempty"`
	Body         string        `json:"body,omitempty"`
}

// NewWebhookSender creates a new webhook sender
func NewWebhookSender(timeout time.Duration, retry WebhookRetryConfig) *WebhookSender {
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = 1
	}
	if retry.MaxDelay <= 0 {
		retry.MaxDelay = 30 * time.Second
	}

	return &WebhookSender{
		retry:     retry,
		logger:    utils.ComponentLogger("webhook_sender"),
		userAgent: "xltoken-dashboard/1.0",
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     30 * time.Second,
			},
		},
	}
}

// Send delivers payload to hook, retrying with exponential backoff
func (ws *WebhookSender) Send(ctx context.Context, hook config.WebhookConfig, payload *WebhookPayload) *WebhookResponse {
	body, err := json.Marshal(payload)
	if err != nil {
		return &WebhookResponse{
			Error: utils.NewAppError(utils.ErrCodeInternal, "Failed to marshal webhook payload", err.Error()),
		}
	}

	var last *WebhookResponse
	for attempt := 1; attempt <= ws.retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := ws.retryDelay(attempt)
			ws.logger.WithFields(logrus.Fields{
				"url":     hook.URL,
				"attempt": attempt,
				"delay":   delay,
			}).Debug("Retrying webhook")

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				last.Error = ctx.Err()
				return last
			}
		}

		last = ws.sendOnce(ctx, hook, payload.ID, body)
		last.Attempts = attempt
		if last.Success {
			return last
		}

		if attempt < ws.retry.MaxAttempts {
			ws.logger.WithFields(logrus.Fields{
				"url":         hook.URL,
				"attempt":     attempt,
				"status_code": last.StatusCode,
				"error":       last.Error,
			}).Warn("Webhook attempt failed, retrying")
		}
	}

	return last
}

func (ws *WebhookSender) sendOnce(ctx context.Context, hook config.WebhookConfig, id string, body []byte) *WebhookResponse {
	start := time.Now()
	response := &WebhookResponse{}

	method := strings.ToUpper(hook.Method)
	if method == "" {
		method = http.MethodPost
	}

	req, err := http.NewRequestWithContext(ctx, method, hook.URL, bytes.NewReader(body))
	if err != nil {
		response.Error = utils.NewAppError(utils.ErrCodeInternal, "Failed to create webhook request", err.Error())
		return response
	}

	for key, value := range hook.Headers {
		req.Header.Set(key, value)
	}
	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", ws.userAgent)
	}
	req.Header.Set("X-Timestamp", fmt.Sprintf("%d", time.Now().Unix()))
	req.Header.Set("X-Request-ID", id)
	if hook.Secret != "" {
		req.Header.Set(SignatureHeader, Sign(hook.Secret, body))
	}

	resp, err := ws.httpClient.Do(req)
	response.ResponseTime = time.Since(start)
	if err != nil {
		response.Error = utils.NewAppError(utils.ErrCodeExternal, "Failed to send webhook", err.Error())
		return response
	}
	defer resp.Body.Close()

	response.StatusCode = resp.StatusCode
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	response.Body = string(snippet)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		response.Success = true
	} else {
		response.Error = utils.NewAppError(utils.ErrCodeExternal,
			"Webhook returned non-success status",
			fmt.Sprintf("status: %d, body: %s", resp.StatusCode, response.Body))
	}

	return response
}

// retryDelay is base * 2^(attempt-2), capped at MaxDelay
func (ws *WebhookSender) retryDelay(attempt int) time.Duration {
	if ws.retry.BaseDelay <= 0 {
		return 0
	}
	delay := ws.retry.BaseDelay << uint(attempt-2)
	if delay <= 0 || delay > ws.retry.MaxDelay {
		delay = ws.retry.MaxDelay
	}
	return delay
}

// Sign returns "sha256=<hex hmac>" of body keyed by secret
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// ValidateWebhookConfig validates webhook configuration
func ValidateWebhookConfig(hook config.WebhookConfig) error {
	if hook.URL == "" {
		return utils.NewAppError(utils.ErrCodeValidation, "Webhook URL is required", hook.Name)
	}
	if !strings.HasPrefix(hook.URL, "http://") && !strings.HasPrefix(hook.URL, "https://") {
		return utils.NewAppError(utils.ErrCodeValidation, "Webhook URL must be http or https", hook.URL)
	}
	return nil
}
