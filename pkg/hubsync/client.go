package hubsync

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is the low-level HubSpot API transport. Every request passes the
// rate limiter, carries a bearer token kept fresh by the credential
// manager, and is retried with jittered exponential backoff on transient
// statuses. Failures are converted into the AuthError / APIError /
// ConnectionError taxonomy; callers never see raw transport errors.
//
// The rate limiter and credential manager are held by explicit composition
// so both dependencies stay visible and mockable.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *RateLimiter
	creds      *CredentialManager
	logger     Logger
	metrics    Metrics

	maxRetries int
	retryBase  time.Duration
}

// NewClient creates a HubSpot API client. AccessToken is required; all
// other config fields have defaults.
func NewClient(cfg Config) (*Client, error) {
	if cfg.AccessToken == "" {
		return nil, ErrMissingAccessToken
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = &NoopLogger{}
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = &NoopMetrics{}
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		limiter:    NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow),
		creds:      NewCredentialManager(cfg),
		logger:     logger,
		metrics:    metrics,
		maxRetries: maxRetries,
		retryBase:  defaultRetryBaseDelay,
	}, nil
}

// RateLimiter exposes the client's admission controller so callers sharing
// the connection (e.g. a webhook handler) observe the same budget.
func (c *Client) RateLimiter() *RateLimiter {
	return c.limiter
}

// Credentials exposes the client's credential manager.
func (c *Client) Credentials() *CredentialManager {
	return c.creds
}

// Request issues an API call and returns the raw JSON response body. A
// 204 No Content response yields a nil body and nil error. Only idempotent
// methods are retried automatically; a POST that may have partially
// succeeded is returned to the caller after the first failure.
func (c *Client) Request(ctx context.Context, method, path string, body interface{}, query url.Values) (json.RawMessage, error) {
	if err := c.creds.EnsureFresh(ctx); err != nil {
		return nil, err
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, &ValidationError{Message: "encoding request body: " + err.Error()}
		}
	}

	reqURL := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	start := time.Now()
	for attempt := 0; ; attempt++ {
		if err := c.waitForSlot(ctx); err != nil {
			return nil, err
		}

		res, err := c.do(ctx, method, reqURL, payload)
		if err != nil {
			c.logger.Error("hubspot request failed",
				Field{Key: "method", Value: method},
				Field{Key: "path", Value: path},
				Field{Key: "error", Value: err.Error()})
			return nil, &ConnectionError{Err: err}
		}

		resBody, readErr := io.ReadAll(res.Body)
		res.Body.Close()
		if readErr != nil {
			return nil, &ConnectionError{Err: readErr}
		}

		c.logger.Debug("hubspot request",
			Field{Key: "method", Value: method},
			Field{Key: "path", Value: path},
			Field{Key: "status", Value: res.StatusCode},
			Field{Key: "attempt", Value: attempt})

		if retryableStatus(res.StatusCode) && attempt < c.maxRetries && idempotent(method) {
			c.metrics.RecordRetry(method, res.StatusCode)
			if err := c.backoff(ctx, attempt); err != nil {
				return nil, err
			}
			continue
		}

		c.metrics.RecordAPIRequest(method, path, res.StatusCode, time.Since(start))

		switch {
		case res.StatusCode == http.StatusNoContent:
			return nil, nil
		case res.StatusCode >= 200 && res.StatusCode < 300:
			return resBody, nil
		default:
			return nil, apiErrorFromResponse(res.StatusCode, resBody)
		}
	}
}

func (c *Client) waitForSlot(ctx context.Context) error {
	waitStart := time.Now()
	if err := c.limiter.WaitAndAcquire(ctx); err != nil {
		return &ConnectionError{Err: err}
	}
	if wait := time.Since(waitStart); wait > time.Millisecond {
		c.metrics.RecordRateLimitWait(wait)
		c.logger.Debug("rate limit wait", Field{Key: "wait", Value: wait.String()})
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, reqURL string, payload []byte) (*http.Response, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.creds.AccessToken())
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.httpClient.Do(req)
}

// backoff sleeps for retryBase * 2^attempt with half the delay jittered,
// honoring context cancellation.
func (c *Client) backoff(ctx context.Context, attempt int) error {
	delay := c.retryBase << uint(attempt)
	delay = delay/2 + time.Duration(rand.Int63n(int64(delay/2+1)))

	timer := time.NewTimer(delay)
	select {
	case <-ctx.Done():
		timer.Stop()
		return &ConnectionError{Err: ctx.Err()}
	case <-timer.C:
		return nil
	}
}

func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPut,
		http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func apiErrorFromResponse(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	var details map[string]any
	if len(body) > 0 && json.Unmarshal(body, &details) == nil {
		apiErr.Details = details
		if msg, ok := details["message"].(string); ok {
			apiErr.Message = msg
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}
