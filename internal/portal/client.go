package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// TokenSource supplies the bearer credential attached to each request.
// An empty token means the request is sent unauthenticated.
type TokenSource interface {
	Token() (string, error)
}

// StaticToken is a TokenSource that always returns the same token.
type StaticToken string

// Token returns the token itself.
func (t StaticToken) Token() (string, error) { return string(t), nil }

// Option customizes a Client.
type Option func(*Client)

// WithTimeout bounds every request made by the client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithMaxRetries sets how many times a rate-limited request is retried.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithUnauthorizedHook registers the session teardown run on a 401.
func WithUnauthorizedHook(fn func()) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// Client is a thin HTTP client for the ambassador portal REST API.
// It handles Bearer token authentication, JSON and multipart bodies,
// automatic retry with exponential backoff on HTTP 429, and the
// session teardown hook on HTTP 401.
type Client struct {
	baseURL        string
	tokens         TokenSource
	httpClient     *http.Client
	maxRetries     int
	onUnauthorized func()
	logger         *slog.Logger
}

// NewClient creates a new portal client. The baseURL should include the
// API version prefix (e.g., http://localhost:3000/api/v1).
func NewClient(baseURL string, tokens TokenSource, opts ...Option) *Client {
	if tokens == nil {
		tokens = StaticToken("")
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxRetries: 3,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// requestBody produces a fresh body for every attempt, since a retried
// request cannot reuse a consumed reader.
type requestBody struct {
	contentType string
	build       func() (io.Reader, error)
}

func jsonBody(v interface{}) (*requestBody, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshaling request body: %w", err)
	}
	return &requestBody{
		contentType: "application/json",
		build: func() (io.Reader, error) {
			return bytes.NewReader(data), nil
		},
	}, nil
}

// request describes one logical API call.
type request struct {
	method string
	path   string
	body   *requestBody
	result interface{}

	// public requests skip the unauthorized hook (login endpoints).
	public bool
}

// errorBody is the shape of the server's error payload.
type errorBody struct {
	Message string `json:"message"`
}

// do is the core HTTP method that builds the request, handles auth,
// rate limiting with exponential backoff, and JSON deserialization.
func (c *Client) do(ctx context.Context, r request) error {
	url := c.baseURL + r.path

	token, err := c.tokens.Token()
	if err != nil {
		return fmt.Errorf("loading credential: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		var bodyReader io.Reader
		if r.body != nil {
			bodyReader, err = r.body.build()
			if err != nil {
				return fmt.Errorf("building request body: %w", err)
			}
		}

		req, err := http.NewRequestWithContext(ctx, r.method, url, bodyReader)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}

		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		req.Header.Set("Accept", "application/json")
		if r.body != nil {
			req.Header.Set("Content-Type", r.body.contentType)
		}

		started := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.logger.WarnContext(ctx, "portal_request_failed",
				"method", r.method, "path", r.path, "error", err.Error())
			return &APIError{Method: r.method, Path: r.path, Err: err}
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return &APIError{Method: r.method, Path: r.path, Err: fmt.Errorf("reading response body: %w", readErr)}
		}

		c.logger.DebugContext(ctx, "portal_request",
			"method", r.method,
			"path", r.path,
			"status", resp.StatusCode,
			"duration_ms", time.Since(started).Milliseconds(),
		)

		if resp.StatusCode == http.StatusTooManyRequests {
			waitDuration := retryAfterDuration(resp, attempt)
			lastErr = &APIError{
				Status: resp.StatusCode, Method: r.method, Path: r.path,
				Message: "rate limited",
			}
			if attempt == c.maxRetries {
				break
			}

			select {
			case <-ctx.Done():
				return &APIError{Method: r.method, Path: r.path, Err: ctx.Err()}
			case <-time.After(waitDuration):
				continue
			}
		}

		if resp.StatusCode == http.StatusUnauthorized {
			if !r.public && c.onUnauthorized != nil {
				c.onUnauthorized()
			}
			msg := serverMessage(respBody)
			if msg == "" {
				msg = "authentication failed (401): log in again"
			}
			return &AuthError{Message: msg, SignIn: r.public}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &APIError{
				Status:  resp.StatusCode,
				Method:  r.method,
				Path:    r.path,
				Message: serverMessage(respBody),
			}
		}

		// No content to parse (e.g. 204 or a bare ack).
		if r.result == nil || resp.StatusCode == http.StatusNoContent {
			return nil
		}

		if err := json.Unmarshal(respBody, r.result); err != nil {
			return fmt.Errorf("unmarshaling response from %s %s: %w", r.method, r.path, err)
		}

		return nil
	}

	return fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

// serverMessage extracts {"message": "..."} from an error body.
func serverMessage(body []byte) string {
	var eb errorBody
	if json.Unmarshal(body, &eb) == nil {
		return eb.Message
	}
	return ""
}

// retryAfterDuration reads the Retry-After header and computes a wait
// duration. Falls back to exponential backoff if the header is missing.
func retryAfterDuration(resp *http.Response, attempt int) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}

	// Exponential backoff: 1s, 2s, 4s, ...
	backoff := time.Duration(1<<uint(attempt)) * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	return backoff
}
