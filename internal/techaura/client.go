// Package techaura is the HTTP client for the TechAura order backend.
// The engine runs fine without it; it exists for order lookups and the
// burning-station telemetry calls once a conversation converts.
package techaura

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/techaura/aurabot/internal/logging"
)

// ErrMissingAPIKey is returned by New when no API key is configured.
var ErrMissingAPIKey = errors.New("techaura: api key is required")

// maxErrorMessageLen caps error_message payloads; the backend rejects
// anything longer.
const maxErrorMessageLen = 10000

// APIError is a non-retryable error response from the backend.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("techaura: %s (%s, HTTP %d)", e.Message, e.Code, e.StatusCode)
	}
	return fmt.Sprintf("techaura: %s (HTTP %d)", e.Message, e.StatusCode)
}

// IsAuthError reports whether err is a 401 from the backend.
func IsAuthError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// Order is a pending USB order as the backend reports it.
type Order struct {
	OrderID       string   `json:"order_id"`
	OrderNumber   string   `json:"order_number"`
	CustomerName  string   `json:"customer_name"`
	CustomerPhone string   `json:"customer_phone"`
	ProductType   string   `json:"product_type"` // music, videos, movies
	Capacity      string   `json:"capacity"`
	Genres        []string `json:"genres"`
	Artists       []string `json:"artists"`
	Videos        []string `json:"videos,omitempty"`
	Movies        []string `json:"movies,omitempty"`
	Status        string   `json:"status"`
	CreatedAt     string   `json:"created_at,omitempty"`
}

// envelope is the backend's uniform response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Code    string          `json:"code,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Client talks to the TechAura order API with bearer-token auth and
// exponential-backoff retries on transient failures.
type Client struct {
	baseURL string
	apiKey  string
	http    *retryablehttp.Client
	log     *logging.Logger
}

// Option adjusts client construction.
type Option func(*Client)

// WithRetryMax overrides the retry attempt ceiling.
func WithRetryMax(n int) Option {
	return func(c *Client) { c.http.RetryMax = n }
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.HTTPClient.Timeout = d }
}

// WithRetryWait overrides the backoff window.
func WithRetryWait(min, max time.Duration) Option {
	return func(c *Client) {
		c.http.RetryWaitMin = min
		c.http.RetryWaitMax = max
	}
}

// New creates a client. The base URL's trailing slash is stripped; an
// empty API key is rejected up front rather than as a 401 later.
func New(baseURL, apiKey string, log *logging.Logger, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 8 * time.Second
	rc.HTTPClient.Timeout = 30 * time.Second
	rc.Logger = nil
	rc.CheckRetry = retryPolicy
	// Surface the last response instead of retryablehttp's "giving up"
	// error so status handling below stays in one place.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    rc,
		log:     log.Sub("techaura"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// retryPolicy retries transport failures and 429/500/503. Everything else,
// auth failures above all, fails fast.
func retryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}
	switch resp.StatusCode {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable:
		return true, nil
	}
	return false, nil
}

// Health checks connectivity and credentials against GET /health.
func (c *Client) Health(ctx context.Context) (bool, error) {
	env, err := c.do(ctx, http.MethodGet, "/health", nil, nil)
	if err != nil {
		return false, err
	}
	return env.Success, nil
}

// pendingPayload matches the data member of GET /orders/pending.
type pendingPayload struct {
	Orders     []Order `json:"orders"`
	Pagination struct {
		Page       int `json:"page"`
		PerPage    int `json:"per_page"`
		Total      int `json:"total"`
		TotalPages int `json:"total_pages"`
	} `json:"pagination"`
}

// PendingOrders fetches one page of orders awaiting burning. Unsuccessful
// or malformed payloads yield an empty slice, never nil-pointer surprises.
func (c *Client) PendingOrders(ctx context.Context, page, perPage int) ([]Order, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("per_page", strconv.Itoa(perPage))

	env, err := c.do(ctx, http.MethodGet, "/orders/pending", nil, query)
	if err != nil {
		return nil, err
	}
	if !env.Success || len(env.Data) == 0 {
		return []Order{}, nil
	}

	var payload pendingPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		c.log.Warn().Err(err).Msg("malformed pending-orders payload")
		return []Order{}, nil
	}
	if payload.Orders == nil {
		return []Order{}, nil
	}
	return payload.Orders, nil
}

// StartBurning marks an order as in progress at the burning station.
func (c *Client) StartBurning(ctx context.Context, orderID string) (bool, error) {
	env, err := c.do(ctx, http.MethodPost, "/orders/"+url.PathEscape(orderID)+"/start-burning", nil, nil)
	if err != nil {
		return false, err
	}
	return env.Success, nil
}

// CompleteBurning marks an order as burned, with optional operator notes.
func (c *Client) CompleteBurning(ctx context.Context, orderID, notes string) (bool, error) {
	var body map[string]any
	if notes != "" {
		body = map[string]any{"notes": notes}
	}
	env, err := c.do(ctx, http.MethodPost, "/orders/"+url.PathEscape(orderID)+"/complete-burning", body, nil)
	if err != nil {
		return false, err
	}
	return env.Success, nil
}

// ReportError reports a burning failure for an order. Oversized messages
// are truncated with a marker rather than rejected by the backend.
func (c *Client) ReportError(ctx context.Context, orderID, message, code string, retryable bool) (bool, error) {
	if len(message) > maxErrorMessageLen {
		message = message[:maxErrorMessageLen] + "...[truncated]"
	}
	body := map[string]any{
		"error_message": message,
		"error_code":    code,
		"retryable":     retryable,
	}
	env, err := c.do(ctx, http.MethodPost, "/orders/"+url.PathEscape(orderID)+"/report-error", body, nil)
	if err != nil {
		return false, err
	}
	return env.Success, nil
}

// do performs one API call (with retries inside the HTTP client) and
// decodes the response envelope.
func (c *Client) do(ctx context.Context, method, path string, body any, query url.Values) (*envelope, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("techaura: encoding request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, fmt.Errorf("techaura: building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("techaura: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("techaura: reading response: %w", err)
	}

	var env envelope
	if len(raw) > 0 {
		// A decode failure on an error status still yields a usable
		// APIError below.
		_ = json.Unmarshal(raw, &env)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		msg := env.Error
		if msg == "" {
			msg = "invalid api key"
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Code: "INVALID_API_KEY", Message: msg}
	}
	if resp.StatusCode >= 400 {
		msg := env.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Code: env.Code, Message: msg}
	}

	return &env, nil
}
