// Package httpx provides the shared GET-JSON helper used by the signal
// fetchers: fixed per-attempt timeout, bounded retries with exponential
// backoff, and JSON decoding into a caller-supplied value.
package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	cbotel "github.com/citybrief/citybrief/internal/otel"
)

var tracer = cbotel.Tracer("github.com/citybrief/citybrief/internal/httpx")

// Defaults for fetcher HTTP calls. Retries exhaust into an error; callers
// above the fetchers never see a transport exception.
const (
	DefaultTimeout   = 10 * time.Second
	DefaultRetries   = 3
	DefaultBaseDelay = 500 * time.Millisecond
)

// Client wraps an http.Client with retry policy for upstream JSON APIs.
type Client struct {
	httpClient *http.Client
	retries    int
	baseDelay  time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithRetries sets the maximum attempt count.
func WithRetries(n int) Option {
	return func(c *Client) { c.retries = n }
}

// WithBaseDelay sets the base backoff delay (doubled per attempt).
func WithBaseDelay(d time.Duration) Option {
	return func(c *Client) { c.baseDelay = d }
}

// NewClient creates a Client with default timeout and retry policy.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		retries:    DefaultRetries,
		baseDelay:  DefaultBaseDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetJSON performs a GET with query params and decodes the JSON response into
// out. Non-2xx statuses and transport errors are retried with exponential
// backoff (baseDelay × 2^attempt); the last error is returned once attempts
// are exhausted.
func (c *Client) GetJSON(ctx context.Context, rawURL string, params url.Values, out interface{}) error {
	ctx, span := tracer.Start(ctx, "httpx.get_json",
		trace.WithAttributes(attribute.String("url.full", rawURL)))
	defer span.End()

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parsing url %s: %w", rawURL, err)
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}

	var lastErr error
	for attempt := 0; attempt < c.retries; attempt++ {
		if attempt > 0 {
			delay := c.baseDelay * (1 << (attempt - 1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				span.RecordError(ctx.Err())
				return ctx.Err()
			}
		}

		lastErr = c.getOnce(ctx, u.String(), out)
		if lastErr == nil {
			span.SetAttributes(attribute.Int("http.retry_count", attempt))
			return nil
		}

		log.Debug().
			Err(lastErr).
			Str("url", u.Host+u.Path).
			Int("attempt", attempt+1).
			Msg("upstream_fetch_retry")
	}

	span.RecordError(lastErr)
	return fmt.Errorf("after %d attempts: %w", c.retries, lastErr)
}

func (c *Client) getOnce(ctx context.Context, fullURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Cap the body read so a misbehaving upstream can't balloon the error.
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("http %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
