// Package transport is the outbound HTTP plumbing shared by the remote
// scoring backend and the OPA server engine: JSON requests, Fibonacci
// backoff retries for transient failures, and a circuit breaker.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"mercator-hq/certify/pkg/config"

	retry "github.com/sethvargo/go-retry"
)

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 512

// Client sends JSON requests with retries behind a circuit breaker.
type Client struct {
	name       string
	http       *http.Client
	breaker    CircuitBreaker
	maxRetries uint64
	backoff    time.Duration
	logger     *slog.Logger
}

// NewClient creates a client named name (used in breaker errors and logs).
func NewClient(name string, cfg config.ClientConfig, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = config.DefaultClientRetryBackoff
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return &Client{
		name:       name,
		http:       &http.Client{Timeout: timeout},
		breaker:    NewCircuitBreaker(name, cfg.BreakerTimeout, cfg.BreakerMaxFailures),
		maxRetries: uint64(retries),
		backoff:    backoff,
		logger:     logger.With("component", "transport", "client", name),
	}
}

// PostJSON encodes body, posts it to url and decodes a 2xx response into out.
// Transient failures are retried; the last error is returned.
func (c *Client) PostJSON(ctx context.Context, url string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	b := retry.WithMaxRetries(c.maxRetries, retry.NewFibonacci(c.backoff))

	attempt := 0
	err = retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		err := c.breaker.Execute(func() error {
			return c.post(ctx, url, payload, out)
		})
		if err != nil && IsTransient(err) {
			c.logger.WarnContext(ctx, "request failed, will retry",
				"url", url,
				"attempt", attempt,
				"error", err,
			)
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		c.logger.WarnContext(ctx, "request failed",
			"url", url,
			"attempts", attempt,
			"breaker", c.BreakerState(),
			"error", err,
		)
	}
	return err
}

func (c *Client) post(ctx context.Context, url string, payload []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{URL: url, Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", url, err)
	}
	return nil
}

// BreakerState returns the breaker state ("closed", "half-open", "open").
func (c *Client) BreakerState() string {
	return c.breaker.State()
}
