// Package llm is a client for an OpenAI-compatible chat completions gateway.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/and161185/lyceum-portal/internal/errs"
	"github.com/and161185/lyceum-portal/internal/metrics"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// Gateway errors.
var (
	ErrRateLimited     = fmt.Errorf("llm: %w", errs.ErrRateLimited)
	ErrPaymentRequired = fmt.Errorf("llm: payment required: %w", errs.ErrUpstream)
)

// Message is one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type completionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Config configures Client.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Timeout     time.Duration // per attempt
	MaxAttempts int
	BackoffBase time.Duration
}

// Client calls POST {BaseURL}/chat/completions.
type Client struct {
	cfg     Config
	http    *http.Client
	log     *zap.Logger
	metrics *metrics.Metrics
}

// New constructs a Client. Zero values in cfg get defaults.
func New(cfg Config, log *zap.Logger, m *metrics.Metrics) *Client {
	if cfg.Model == "" {
		cfg.Model = "google/gemini-2.5-flash"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 500 * time.Millisecond
	}
	if log == nil {
		log = zap.NewNop()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, log: log, metrics: m}
}

// Complete sends messages and returns the first choice's content.
// Timeouts, transport errors and 5xx responses are retried with exponential backoff.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	body, err := json.Marshal(completionRequest{Model: c.cfg.Model, Messages: messages})
	if err != nil {
		return "", err
	}

	b := retry.WithMaxRetries(uint64(c.cfg.MaxAttempts-1), retry.NewExponential(c.cfg.BackoffBase))
	var answer string
	attempt := 0
	err = retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		a, err := c.once(ctx, body)
		if err != nil {
			var re *retryableError
			if errors.As(err, &re) {
				c.log.Warn("llm attempt failed", zap.Int("attempt", attempt), zap.Error(re.err))
				return retry.RetryableError(re.err)
			}
			return err
		}
		answer = a
		return nil
	})
	if err != nil {
		c.metrics.LLMRequest(outcome(err))
		if errors.Is(err, errs.ErrRateLimited) || errors.Is(err, errs.ErrUpstream) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", errs.ErrUpstream, err)
	}
	c.metrics.LLMRequest("ok")
	return answer, nil
}

type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }

func (c *Client) once(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &retryableError{err: fmt.Errorf("transport: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", ErrRateLimited
	case resp.StatusCode == http.StatusPaymentRequired:
		return "", ErrPaymentRequired
	case resp.StatusCode >= 500:
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", &retryableError{err: fmt.Errorf("%w: status %d", errs.ErrUpstream, resp.StatusCode)}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return "", fmt.Errorf("%w: status %d", errs.ErrUpstream, resp.StatusCode)
	}

	var out completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", errs.ErrUpstream, err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choices", errs.ErrUpstream)
	}
	return out.Choices[0].Message.Content, nil
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrPaymentRequired):
		return "payment_required"
	default:
		return "error"
	}
}
