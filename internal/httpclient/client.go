// Package httpclient performs outbound calls to rate-limited provider APIs
// with a per-attempt timeout and linear backoff.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/metrics"
	"github.com/mathieu-neron/TubePulse/tubepulse-go/pkg/retry"
)

const (
	DefaultTimeout = 10 * time.Second
	maxErrorBody   = 512
	maxBodySize    = 16 << 20
)

// ErrRetriesExhausted matches the error returned once every attempt failed.
var ErrRetriesExhausted = retry.ErrExhausted

// sensitiveParams are stripped from URLs before they reach logs or errors.
var sensitiveParams = []string{"key", "api_key", "apikey", "token", "access_token", "auth_header", "authorization"}

// Request describes one outbound call. Fatal lets the caller mark statuses
// (e.g. 404) that must not be retried.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
	Fatal  func(status int) bool
}

// StatusError is a non-2xx response.
type StatusError struct {
	Status int
	URL    string
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.URL, e.Status, e.Body)
}

// RateLimited reports whether the provider answered 429.
func (e *StatusError) RateLimited() bool {
	return e.Status == http.StatusTooManyRequests
}

// IsStatus reports whether err carries a StatusError with the given code.
func IsStatus(err error, status int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == status
}

// FatalStatuses returns a Fatal predicate for a fixed set of codes.
func FatalStatuses(codes ...int) func(int) bool {
	return func(status int) bool {
		for _, c := range codes {
			if c == status {
				return true
			}
		}
		return false
	}
}

// Client wraps an *http.Client with retry semantics. It holds no per-request state.
type Client struct {
	http    *http.Client
	timeout time.Duration
	logger  zerolog.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

// New creates a Client whose attempts are each bounded by timeout.
func New(timeout time.Duration, logger zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		http:    &http.Client{},
		timeout: timeout,
		logger:  logger,
	}
}

// WithSleep returns a copy of c that waits between attempts using sleep.
func (c *Client) WithSleep(sleep func(ctx context.Context, d time.Duration) error) *Client {
	cp := *c
	cp.sleep = sleep
	return &cp
}

// Fetch performs req up to maxRetries times in total. Every failed attempt,
// including 429 responses and timeouts, waits baseDelay*attempt before the
// next one. A status the caller marked fatal stops immediately.
func (c *Client) Fetch(ctx context.Context, req Request, maxRetries int, baseDelay time.Duration) ([]byte, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	safeURL := RedactURL(req.URL)

	cfg := retry.Config{
		MaxAttempts: maxRetries,
		Backoff:     retry.Linear(baseDelay),
		Logger:      c.logger.With().Str("url", safeURL).Logger(),
		Sleep:       c.sleep,
	}

	return retry.DoWithResult(ctx, cfg, func(attempt int) ([]byte, error) {
		body, err := c.attempt(ctx, req, safeURL)
		if err == nil {
			metrics.UpstreamAttempts.WithLabelValues("ok").Inc()
			return body, nil
		}

		var se *StatusError
		switch {
		case errors.As(err, &se) && se.RateLimited():
			metrics.UpstreamAttempts.WithLabelValues("rate_limited").Inc()
			c.logger.Debug().Str("url", safeURL).Int("attempt", attempt).Msg("provider rate limited")
			return nil, err
		case errors.As(err, &se):
			metrics.UpstreamAttempts.WithLabelValues("status").Inc()
			if req.Fatal != nil && req.Fatal(se.Status) {
				return nil, retry.Permanent(err)
			}
			return nil, err
		case errors.Is(err, context.DeadlineExceeded):
			metrics.UpstreamAttempts.WithLabelValues("timeout").Inc()
			return nil, err
		default:
			metrics.UpstreamAttempts.WithLabelValues("error").Inc()
			return nil, err
		}
	})
}

// FetchJSON is Fetch followed by decoding the body into out.
func (c *Client) FetchJSON(ctx context.Context, req Request, maxRetries int, baseDelay time.Duration, out any) error {
	body, err := c.Fetch(ctx, req, maxRetries, baseDelay)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", RedactURL(req.URL), err)
	}
	return nil
}

func (c *Client) attempt(ctx context.Context, req Request, safeURL string) ([]byte, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(attemptCtx, req.Method, req.URL, body)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("build request for %s: %w", safeURL, err))
	}
	for k, vals := range req.Header {
		for _, v := range vals {
			httpReq.Header.Add(k, v)
		}
	}
	if req.Body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return nil, fmt.Errorf("request to %s timed out after %s: %w", safeURL, c.timeout, context.DeadlineExceeded)
		}
		return nil, fmt.Errorf("request to %s: %s", safeURL, redactError(err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		if attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return nil, fmt.Errorf("reading %s timed out after %s: %w", safeURL, c.timeout, context.DeadlineExceeded)
		}
		return nil, fmt.Errorf("read response from %s: %w", safeURL, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := strings.TrimSpace(string(data))
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return nil, &StatusError{Status: resp.StatusCode, URL: safeURL, Body: snippet}
	}
	return data, nil
}

// RedactURL removes credentials and sensitive query parameters from raw.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	u.User = nil
	q := u.Query()
	changed := false
	for _, p := range sensitiveParams {
		for key := range q {
			if strings.EqualFold(key, p) {
				q.Set(key, "REDACTED")
				changed = true
			}
		}
	}
	if changed {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// redactError strips the URL embedded by net/http in *url.Error.
func redactError(err error) string {
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Op + ": " + ue.Err.Error()
	}
	return err.Error()
}
