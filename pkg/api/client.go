// Package api is the HTTP client for the ShipGrid service: streaming image
// optimization, Meesho account linking, and the status/validation surface.
// Every request carries the bearer credential supplied by the caller; token
// acquisition and renewal live elsewhere.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://api.shipgrid.in/api"
	defaultTimeout = 5 * time.Minute

	// Proactive rate limiting: the service throttles aggressively on the
	// shipping-cost endpoint, so stay well under its ceiling.
	defaultRateLimit = rate.Limit(5) // 5 requests per second
	defaultBurstSize = 10
)

// RetryConfig configures the retry mechanism for idempotent HTTP requests.
type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Multiplier:      2.0,
	}
}

// DefaultTransport returns an optimized http.Transport with tuned connection pool settings.
func DefaultTransport() *http.Transport {
	return &http.Transport{
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
		DisableKeepAlives:     false,
		DisableCompression:    false,
	}
}

// Client is a ShipGrid API client
type Client struct {
	token       string
	baseURL     string
	httpClient  *http.Client
	transport   *LoggingTransport
	rateLimiter *rate.Limiter
	retryConfig RetryConfig
}

// ClientOptions tune client construction.
type ClientOptions struct {
	// NetworkLogsEnabled turns on JSONL request/response logging.
	NetworkLogsEnabled bool
	// NetworkLogDir overrides the default network log location.
	NetworkLogDir string
	// RetryConfig is optional; if nil, default config is used
	RetryConfig *RetryConfig
	// Timeout overrides the default HTTP client timeout (0 keeps the default).
	Timeout time.Duration
}

// NewClient creates a new ShipGrid client
func NewClient(token string, baseURL string) *Client {
	return NewClientWithOptions(token, baseURL, ClientOptions{})
}

func NewClientWithOptions(token string, baseURL string, opts ClientOptions) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	baseTransport := DefaultTransport()
	transport := NewLoggingTransport(baseTransport, opts.NetworkLogDir, opts.NetworkLogsEnabled)

	var retryConfig RetryConfig
	if opts.RetryConfig != nil {
		retryConfig = *opts.RetryConfig
	} else {
		retryConfig = DefaultRetryConfig()
	}

	timeout := defaultTimeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}

	return &Client{
		token:       token,
		baseURL:     baseURL,
		transport:   transport,
		rateLimiter: rate.NewLimiter(defaultRateLimit, defaultBurstSize),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		retryConfig: retryConfig,
	}
}

// Close closes the client and its resources
func (c *Client) Close() error {
	if c.transport != nil {
		return c.transport.Close()
	}
	return nil
}

// BaseURL returns the configured service base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetTimeout updates the underlying HTTP client timeout (0 disables timeout).
func (c *Client) SetTimeout(timeout time.Duration) {
	if c.httpClient != nil {
		c.httpClient.Timeout = timeout
	}
}

// isRetryableError checks if an error is retryable based on status code.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if apiErr, ok := err.(*APIError); ok {
		return apiErr.Retryable
	}
	// Network errors are generally retryable
	return true
}

// isIdempotentMethod checks if an HTTP method is idempotent and safe to retry.
func isIdempotentMethod(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete:
		return true
	default:
		return false
	}
}

// calculateBackoff calculates the delay for the next retry attempt using exponential backoff with jitter.
func (c *Client) calculateBackoff(attempt int) time.Duration {
	if attempt <= 0 {
		return c.retryConfig.InitialInterval
	}

	delay := float64(c.retryConfig.InitialInterval)
	for i := 0; i < attempt; i++ {
		delay *= c.retryConfig.Multiplier
	}

	if delay > float64(c.retryConfig.MaxInterval) {
		delay = float64(c.retryConfig.MaxInterval)
	}

	// Jitter prevents thundering herd when multiple clients retry together
	jitter := time.Duration(rand.Float64() * delay * 0.5)
	delay = delay*0.75 + float64(jitter)

	return time.Duration(delay)
}

// Do executes an HTTP request with proactive rate limiting and, for
// idempotent methods, retry with exponential backoff. Non-idempotent
// methods get exactly one attempt.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if !isIdempotentMethod(req.Method) {
		if c.rateLimiter != nil {
			if err := c.rateLimiter.Wait(req.Context()); err != nil {
				return nil, fmt.Errorf("rate limit wait: %w", err)
			}
		}
		return c.httpClient.Do(req)
	}

	var lastErr error
	var resp *http.Response

	for attempt := 0; attempt <= c.retryConfig.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.calculateBackoff(attempt - 1)
			select {
			case <-req.Context().Done():
				return nil, req.Context().Err()
			case <-time.After(delay):
			}
		}

		reqClone := req.Clone(req.Context())
		if req.Body != nil && req.Body != http.NoBody {
			bodyBytes, err := io.ReadAll(req.Body)
			if err != nil {
				return nil, fmt.Errorf("reading request body: %w", err)
			}
			req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
			reqClone.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}

		if c.rateLimiter != nil {
			if err := c.rateLimiter.Wait(req.Context()); err != nil {
				return nil, fmt.Errorf("rate limit wait: %w", err)
			}
		}

		resp, lastErr = c.httpClient.Do(reqClone)
		if lastErr == nil {
			if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
				apiErr := c.parseError(resp)
				resp.Body.Close()
				lastErr = apiErr
				if isRetryableError(apiErr) && attempt < c.retryConfig.MaxRetries {
					continue
				}
				return nil, apiErr
			}
			return resp, nil
		}

		if attempt < c.retryConfig.MaxRetries && isRetryableError(lastErr) {
			continue
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("max retries (%d) exceeded: %w", c.retryConfig.MaxRetries, lastErr)
	}
	return nil, fmt.Errorf("max retries (%d) exceeded", c.retryConfig.MaxRetries)
}

// setHeaders sets common request headers
func (c *Client) setHeaders(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	req.Header.Set("User-Agent", "shipgrid-go")
}

// getJSON issues a GET and decodes the response body into out.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// postJSON issues a POST with a JSON body (nil for empty) and decodes the
// response into out when out is non-nil.
func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	var body io.Reader = http.NoBody
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseError(resp)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// LinkStatus fetches the current account-link snapshot.
func (c *Client) LinkStatus(ctx context.Context) (*LinkStatus, error) {
	var status LinkStatus
	if err := c.getJSON(ctx, "/meesho/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// ValidateSession checks whether the stored Meesho session is still active.
func (c *Client) ValidateSession(ctx context.Context) (*SessionValidation, error) {
	var validation SessionValidation
	if err := c.getJSON(ctx, "/meesho/validate-session", &validation); err != nil {
		return nil, err
	}
	return &validation, nil
}

// Link links an account using manually captured dashboard credentials.
func (c *Client) Link(ctx context.Context, creds ManualCredentials) (*LinkResult, error) {
	var result LinkResult
	if err := c.postJSON(ctx, "/meesho/link", creds, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Unlink removes the stored account credentials.
func (c *Client) Unlink(ctx context.Context) (*LinkResult, error) {
	var result LinkResult
	if err := c.postJSON(ctx, "/meesho/unlink", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ShippingCost asks the linked account's pricing API for a fee breakdown.
func (c *Client) ShippingCost(ctx context.Context, req ShippingCostRequest) (*ShippingCostResult, error) {
	var result ShippingCostResult
	if err := c.postJSON(ctx, "/meesho/shipping-cost", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Categories lists the product taxonomy with breadcrumb paths.
func (c *Client) Categories(ctx context.Context) ([]Category, error) {
	var cats []Category
	if err := c.getJSON(ctx, "/meesho/categories", &cats); err != nil {
		return nil, err
	}
	return cats, nil
}

// ImageResults fetches the stored record for one processed image.
func (c *Client) ImageResults(ctx context.Context, imageID string) (*ImageResult, error) {
	var result ImageResult
	if err := c.getJSON(ctx, "/images/"+url.PathEscape(imageID)+"/results", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// History lists recent processed images, newest first.
func (c *Client) History(ctx context.Context, limit int) ([]ImageResult, error) {
	path := "/images/history"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var results []ImageResult
	if err := c.getJSON(ctx, path, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// StartLoginSession starts a remote browser login session.
func (c *Client) StartLoginSession(ctx context.Context, creds LoginCredentials) (*LoginSessionHandle, error) {
	var handle LoginSessionHandle
	if err := c.postJSON(ctx, "/meesho/playwright/start", creds, &handle); err != nil {
		return nil, err
	}
	return &handle, nil
}

// LoginSessionStatus polls a remote login session.
func (c *Client) LoginSessionStatus(ctx context.Context, sessionID string) (*LoginSessionState, error) {
	var state LoginSessionState
	if err := c.getJSON(ctx, "/meesho/playwright/status/"+url.PathEscape(sessionID), &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// CancelLoginSession cancels a remote login session.
func (c *Client) CancelLoginSession(ctx context.Context, sessionID string) (*CancelResult, error) {
	var result CancelResult
	if err := c.postJSON(ctx, "/meesho/playwright/cancel/"+url.PathEscape(sessionID), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// parseError parses an error response and wraps it with additional context
func (c *Client) parseError(resp *http.Response) error {
	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    resp.Status,
			Retryable:  resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
		}
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Detail == "" {
		// Include raw body in error message for debugging
		rawBody := strings.TrimSpace(string(body))
		if len(rawBody) > 500 {
			rawBody = rawBody[:500] + "..."
		}
		message := resp.Status
		if rawBody != "" {
			message = fmt.Sprintf("%s (raw: %s)", resp.Status, rawBody)
		}
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    message,
			Retryable:  resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    errResp.Detail,
		Retryable:  resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
	}
}

// parseRetryAfter parses the Retry-After header
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(header); err == nil {
		return time.Duration(seconds) * time.Second
	}

	if t, err := time.Parse(time.RFC1123, header); err == nil {
		return time.Until(t)
	}

	return 0
}
