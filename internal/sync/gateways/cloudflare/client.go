// Package cloudflare is the HTTPS gateway to the Zero Trust Gateway
// API: list CRUD and rule CRUD under one account, with bearer
// authentication, request pacing, timeouts, and bounded retry of
// transient failures.
package cloudflare

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	logpkg "github.com/haukened/blocksync/internal/sync/common/log"
	"github.com/haukened/blocksync/internal/sync/domain"
)

const defaultBaseURL = "https://api.cloudflare.com/client/v4"

// Error message constants for consistent error handling
const (
	errTokenRequired   = "api token is required"
	errAccountRequired = "account id is required"
)

// Client talks to the gateway API for a single account. All calls are
// paced through a shared rate limiter and retried a bounded number of
// times on transient failures.
type Client struct {
	baseURL   string
	accountID string
	token     string
	http      *http.Client
	timeout   time.Duration
	retries   int
	backoff   time.Duration
	limiter   *pacer
	logger    logpkg.Logger
}

// Options defines configuration parameters for the API client.
type Options struct {
	// required parameters
	AccountID string
	Token     string
	// tunables with defaults
	BaseURL      string
	Timeout      time.Duration
	Retries      int
	RetryBackoff time.Duration
	RateLimitRPS float64
	Logger       logpkg.Logger
	// injectable for testing
	HTTPClient *http.Client
}

// NewClient creates a gateway API client. Returns an error when the
// token or account id is missing. Defaults: 10s timeout, 3 retries,
// 500ms initial backoff, 4 requests/second.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.Token) == "" {
		return nil, fmt.Errorf(errTokenRequired)
	}
	if strings.TrimSpace(opts.AccountID) == "" {
		return nil, fmt.Errorf(errAccountRequired)
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 500 * time.Millisecond
	}
	if opts.RateLimitRPS == 0 {
		opts.RateLimitRPS = 4
	}
	if opts.Logger == nil {
		opts.Logger = logpkg.GetLogger()
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	return &Client{
		baseURL:   strings.TrimSuffix(opts.BaseURL, "/"),
		accountID: opts.AccountID,
		token:     opts.Token,
		http:      opts.HTTPClient,
		timeout:   opts.Timeout,
		retries:   opts.Retries,
		backoff:   opts.RetryBackoff,
		limiter:   newPacer(opts.RateLimitRPS),
		logger:    opts.Logger,
	}, nil
}

// envelope is the platform's uniform response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Errors  []apiError      `json:"errors"`
	Result  json.RawMessage `json:"result"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ensureContextDeadline ensures the context has a deadline, adding the
// client's default timeout if needed.
func (c *Client) ensureContextDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); !ok {
		return context.WithTimeout(ctx, c.timeout)
	}
	return ctx, nil
}

// do issues one logical API call: pace, send, classify, decode. The
// whole call (including retries) runs under a single deadline. Transient
// failures (network errors, 429, 5xx) are retried with doubling backoff
// up to the retry budget; structured rejections are returned
// immediately as ErrExternalRejected.
func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	ctx, cancel := c.ensureContextDeadline(ctx)
	if cancel != nil {
		defer cancel()
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
	}

	url := c.baseURL + path
	backoff := c.backoff
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			c.logger.Debug(map[string]any{
				"method": method, "path": path, "attempt": attempt, "error": lastErr.Error(),
			}, "gateway_retry")
			t := time.NewTimer(backoff)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				return fmt.Errorf("%w: %s %s: %v", domain.ErrExternalRequestFailed, method, path, ctx.Err())
			}
			t.Stop()
			backoff *= 2
		}
		if err := c.limiter.wait(ctx); err != nil {
			return fmt.Errorf("%w: %s %s: %v", domain.ErrExternalRequestFailed, method, path, err)
		}

		retryable, err := c.send(ctx, method, url, payload, out)
		if err == nil {
			return nil
		}
		if !retryable {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("%w: %s %s: giving up after %d attempts: %v",
		domain.ErrExternalRequestFailed, method, path, c.retries+1, lastErr)
}

// send performs a single HTTP round trip. The first return reports
// whether the failure is transient and worth retrying.
func (c *Client) send(ctx context.Context, method, url string, payload []byte, out any) (bool, error) {
	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return false, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return true, fmt.Errorf("%w: %v", domain.ErrExternalRequestFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return true, fmt.Errorf("%w: read response: %v", domain.ErrExternalRequestFailed, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return true, fmt.Errorf("%w: status %d", domain.ErrExternalRequestFailed, resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return false, fmt.Errorf("%w: malformed response (status %d): %v", domain.ErrExternalRejected, resp.StatusCode, err)
	}
	if resp.StatusCode >= 400 || !env.Success {
		return false, fmt.Errorf("%w: status %d: %s", domain.ErrExternalRejected, resp.StatusCode, joinAPIErrors(env.Errors))
	}
	if out != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return false, fmt.Errorf("%w: decode result: %v", domain.ErrExternalRejected, err)
		}
	}
	return false, nil
}

// joinAPIErrors flattens the platform's error array for diagnostics.
func joinAPIErrors(errs []apiError) string {
	if len(errs) == 0 {
		return "no error detail provided"
	}
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, fmt.Sprintf("%d: %s", e.Code, e.Message))
	}
	return strings.Join(parts, "; ")
}
