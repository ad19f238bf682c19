package hubsync

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// CredentialManager holds the current access token and refreshes it via
// the OAuth2 refresh-token grant when it expires. One instance per
// configured connection; the owner constructs it and injects it into the
// client. Concurrent EnsureFresh calls are collapsed into a single refresh
// request.
type CredentialManager struct {
	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time

	clientID     string
	clientSecret string
	tokenURL     string

	httpClient *http.Client
	logger     Logger
	metrics    Metrics
	group      singleflight.Group

	now func() time.Time
}

// NewCredentialManager creates a credential manager from the client
// config. When no refresh token is configured the manager runs in static
// token mode and EnsureFresh is a no-op.
func NewCredentialManager(cfg Config) *CredentialManager {
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
	return &CredentialManager{
		accessToken:  cfg.AccessToken,
		refreshToken: cfg.RefreshToken,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		tokenURL:     baseURL + "/oauth/v1/token",
		httpClient:   httpClient,
		logger:       logger,
		metrics:      metrics,
		now:          time.Now,
	}
}

// AccessToken returns the current access token.
func (c *CredentialManager) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

// EnsureFresh refreshes the access token if a refresh token is configured
// and the current token has expired (or has never been stamped with an
// expiry). Returns an *AuthError when the grant fails.
func (c *CredentialManager) EnsureFresh(ctx context.Context) error {
	if !c.refreshConfigured() {
		return nil
	}
	if c.fresh() {
		return nil
	}

	// singleflight collapses concurrent callers onto one refresh request
	// per instance.
	_, err, _ := c.group.Do("refresh", func() (interface{}, error) {
		if c.fresh() {
			return nil, nil
		}
		return nil, c.refresh(ctx)
	})
	return err
}

func (c *CredentialManager) refreshConfigured() bool {
	// refreshToken rotates under the lock when a grant returns a new one.
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refreshToken != "" && c.clientID != "" && c.clientSecret != ""
}

func (c *CredentialManager) fresh() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.expiresAt.IsZero() && c.now().Before(c.expiresAt)
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

func (c *CredentialManager) refresh(ctx context.Context) error {
	c.logger.Info("refreshing hubspot oauth token")

	c.mu.RLock()
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"refresh_token": {c.refreshToken},
	}
	c.mu.RUnlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return &AuthError{Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordTokenRefresh(false)
		return &AuthError{Message: "token refresh request failed: " + err.Error()}
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		c.metrics.RecordTokenRefresh(false)
		return &AuthError{Message: "reading token response: " + err.Error()}
	}

	if res.StatusCode != http.StatusOK {
		c.metrics.RecordTokenRefresh(false)
		c.logger.Error("token refresh failed",
			Field{Key: "status", Value: res.StatusCode})
		return &AuthError{
			StatusCode: res.StatusCode,
			Message:    "token refresh rejected: " + strings.TrimSpace(string(body)),
		}
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		c.metrics.RecordTokenRefresh(false)
		return &AuthError{Message: "malformed token response: " + err.Error()}
	}
	if tok.AccessToken == "" {
		c.metrics.RecordTokenRefresh(false)
		return &AuthError{Message: "token response missing access_token"}
	}
	if tok.ExpiresIn <= 0 {
		tok.ExpiresIn = defaultTokenExpirySeconds
	}

	c.mu.Lock()
	c.accessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		c.refreshToken = tok.RefreshToken
	}
	// The safety margin keeps in-flight requests from racing the expiry.
	c.expiresAt = c.now().Add(time.Duration(tok.ExpiresIn)*time.Second - tokenSafetyMargin)
	c.mu.Unlock()

	c.metrics.RecordTokenRefresh(true)
	c.logger.Info("hubspot token refreshed",
		Field{Key: "expires_in", Value: tok.ExpiresIn})
	return nil
}
