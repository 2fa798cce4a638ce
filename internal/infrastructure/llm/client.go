package llm

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"RSSDigest/internal/domain"
	"RSSDigest/internal/ports"
)

const (
	defaultRetryDelay = 2 * time.Second
	maxResponseBytes  = 4 << 20
)

var (
	// ErrTimeout is returned once every attempt allowed by the retry budget timed out.
	ErrTimeout = errors.New("llm request timed out")
	// ErrStatus marks a non-2xx response. Not retried.
	ErrStatus = errors.New("llm unexpected status")
	// ErrMalformedResponse marks a body without choices[0].message.content. Not retried.
	ErrMalformedResponse = errors.New("llm malformed response")
)

var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// Client implements ports.Completer against an OpenAI-compatible /chat/completions API.
type Client struct {
	endpoint   domain.Endpoint
	httpClient *http.Client
	limiter    *rate.Limiter
	retryDelay time.Duration
	logger     *slog.Logger
}

var _ ports.Completer = (*Client)(nil)

// Option customizes a Client.
type Option func(*Client)

// WithRetryDelay overrides the fixed pause between timed-out attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.retryDelay = d
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient builds a client for one endpoint. TLS verification follows
// endpoint.VerifyTLS; self-hosted endpoints behind private CAs set it to false.
func NewClient(endpoint domain.Endpoint, opts ...Option) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: !endpoint.VerifyTLS, //nolint:gosec // opt-in per endpoint
	}

	if endpoint.MaxRetries <= 0 {
		endpoint.MaxRetries = 3
	}
	if endpoint.Timeout <= 0 {
		endpoint.Timeout = 120 * time.Second
	}

	c := &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Transport: transport},
		retryDelay: defaultRetryDelay,
		logger:     slog.Default(),
	}
	if endpoint.RequestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(endpoint.RequestsPerMinute)), 1)
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("endpoint", endpoint.Name)
	return c
}

// Name returns the endpoint display name.
func (c *Client) Name() string {
	return c.endpoint.Name
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message *struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends prompt as a single user message and returns the generated
// text with <think> blocks removed and whitespace trimmed. Timeouts are
// retried up to the endpoint's budget with a fixed delay; any other failure
// returns immediately.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.endpoint.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: c.endpoint.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat payload: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.endpoint.MaxRetries; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return "", fmt.Errorf("rate limit wait: %w", err)
			}
		}

		text, err := c.doComplete(ctx, body)
		if err == nil {
			return text, nil
		}
		if !isTimeout(ctx, err) {
			return "", err
		}

		lastErr = err
		c.logger.Warn("llm request timed out", "attempt", attempt, "max_attempts", c.endpoint.MaxRetries)
		if attempt < c.endpoint.MaxRetries {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}
	}

	return "", fmt.Errorf("%w after %d attempts: %v", ErrTimeout, c.endpoint.MaxRetries, lastErr)
}

func (c *Client) doComplete(ctx context.Context, body []byte) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.endpoint.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.endpoint.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.endpoint.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("%w %s: %s", ErrStatus, resp.Status, strings.TrimSpace(string(payload)))
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read chat response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message == nil || parsed.Choices[0].Message.Content == nil {
		return "", fmt.Errorf("%w: missing choices[0].message.content", ErrMalformedResponse)
	}

	return StripReasoning(*parsed.Choices[0].Message.Content), nil
}

// StripReasoning removes <think>...</think> blocks and trims whitespace.
func StripReasoning(text string) string {
	return strings.TrimSpace(thinkBlock.ReplaceAllString(text, ""))
}

// isTimeout reports an attempt-level timeout. Cancellation of the caller's
// context is never treated as one.
func isTimeout(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
