// Package webhook delivers accepted contact inquiries to the configured
// notification endpoint.
package webhook

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

	"go.uber.org/zap"

	"jertine-site/internal/domain"
)

const (
	SignatureHeader = "X-Jertine-Signature-SHA256"
	userAgent       = "JertineTechContact/1.0"

	MaxAttempts    = 2
	DefaultTimeout = 8 * time.Second
	backoffStep    = 250 * time.Millisecond
)

// HTTPStatusError captures non-2xx webhook responses.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("webhook: unexpected status %d: %s", e.StatusCode, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// DeliveryError is returned once every attempt has failed.
type DeliveryError struct {
	Attempts int
	Err      error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("webhook: delivery failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// AttemptObserver is notified after every attempt. result is "ok" or "error".
type AttemptObserver func(result string)

// Config holds the endpoint and credentials. An empty URL disables delivery.
type Config struct {
	URL           string
	BearerToken   string
	SigningSecret string
	Timeout       time.Duration
}

// Client posts inquiry payloads with bounded retry.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *zap.Logger
	sleep      func(time.Duration)
	observe    AttemptObserver
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

func WithAttemptObserver(fn AttemptObserver) Option {
	return func(c *Client) {
		c.observe = fn
	}
}

// NewClient creates a Client. A zero or negative timeout uses DefaultTimeout.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.URL = strings.TrimSpace(cfg.URL)
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
		log:        zap.NewNop(),
		sleep:      time.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether an endpoint is set.
func (c *Client) Configured() bool {
	return c.cfg.URL != ""
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Deliver posts the payload. Without a configured endpoint it only logs and
// succeeds. Each attempt is bounded by the configured timeout and ignores
// cancellation of ctx; a failed attempt is retried after 250ms times the
// attempt number.
func (c *Client) Deliver(ctx context.Context, payload domain.InquiryPayload) error {
	if !c.Configured() {
		c.log.Info("contact inquiry accepted (webhook not configured)",
			zap.String("submission_id", payload.SubmissionID),
			zap.Int("message_length", len(payload.Message)),
			zap.String("received_at", payload.ReceivedAt),
			zap.String("rate_key", payload.RateKey),
		)
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("webhook: marshal payload: %w", err)
	}

	base := context.WithoutCancel(ctx)
	var lastErr error
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		lastErr = c.attempt(base, body)
		if lastErr == nil {
			c.observeAttempt("ok")
			return nil
		}
		c.observeAttempt("error")
		c.log.Warn("webhook attempt failed",
			zap.String("submission_id", payload.SubmissionID),
			zap.Int("attempt", attempt),
			zap.Error(lastErr),
		)
		if attempt < MaxAttempts {
			c.sleep(backoffStep * time.Duration(attempt))
		}
	}
	return &DeliveryError{Attempts: MaxAttempts, Err: lastErr}
}

func (c *Client) attempt(ctx context.Context, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if c.cfg.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.BearerToken)
	}
	if c.cfg.SigningSecret != "" {
		req.Header.Set(SignatureHeader, Sign(c.cfg.SigningSecret, body))
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return &HTTPStatusError{StatusCode: res.StatusCode, Body: string(buf)}
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 1<<20))
	return nil
}

func (c *Client) observeAttempt(result string) {
	if c.observe != nil {
		c.observe(result)
	}
}
