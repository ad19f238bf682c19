package hubsync

import (
	"net/http"
	"os"
	"time"
)

const (
	// DefaultBaseURL is the HubSpot API root.
	DefaultBaseURL = "https://api.hubapi.com"

	apiVersion = "v3"

	// HubSpot publishes a limit of 100 requests per rolling 10 seconds
	// for private app tokens.
	defaultRateLimitRequests = 100
	defaultRateLimitWindow   = 10 * time.Second

	defaultMaxRetries     = 3
	defaultRetryBaseDelay = 500 * time.Millisecond
	defaultHTTPTimeout    = 10 * time.Second

	// maxBatchSize is HubSpot's limit for batch mutation endpoints.
	maxBatchSize = 100

	// maxPageSize is HubSpot's limit for list endpoints.
	maxPageSize = 100

	// propertyGroupName is the custom property group holding the AMANDA
	// deal properties.
	propertyGroupName = "amanda_portal"

	defaultTokenExpirySeconds = 1800
	tokenSafetyMargin         = 60 * time.Second
)

// Deal represents a HubSpot deal carrying the AMANDA custom properties.
// Instances are transient: they are built from an API response or from an
// internal record right before a request, never persisted by this package.
type Deal struct {
	// ID is the HubSpot object id. Empty until the deal has been created
	// remotely.
	ID string

	Name      string
	Amount    float64
	Stage     string
	CloseDate string
	Pipeline  string
	OwnerID   string
	CreatedAt string
	UpdatedAt string

	// AMANDA custom properties.
	PWin               float64
	GateStatus         string
	Phase              string
	ComplianceCoverage float64
	SolicitationNumber string
	Agency             string
	PriorityTier       string
	ContractVehicle    string
}

// SyncResult is the outcome of one synchronization pass.
type SyncResult struct {
	Success      bool
	DealsSynced  int
	DealsCreated int
	DealsUpdated int
	DealsFailed  int

	// Errors holds per-record failures in the order they occurred.
	Errors []string

	// CallbackErrors holds failures raised by registered callbacks. A
	// failing callback never blocks later callbacks; the failure is
	// surfaced here instead of being swallowed into logs.
	CallbackErrors []CallbackError

	Timestamp time.Time
}

// WebhookEvent is a single parsed HubSpot change notification.
type WebhookEvent struct {
	EventID          string
	SubscriptionType string
	ObjectID         string
	PropertyName     string
	PropertyValue    string
	OccurredAt       time.Time
	PortalID         string
}

// Config configures a Client. Only AccessToken is required; refresh fields
// enable the OAuth refresh-token grant, and everything else has defaults.
type Config struct {
	// AccessToken is the HubSpot access token (private app or OAuth).
	// Required for any outbound call.
	AccessToken string

	// RefreshToken, ClientID and ClientSecret enable automatic token
	// refresh. When RefreshToken is empty the client runs in static
	// token mode and never refreshes.
	RefreshToken string
	ClientID     string
	ClientSecret string

	// BaseURL overrides the API root, mainly for tests.
	BaseURL string

	// HTTPClient is an optional HTTP client. If nil, a default client
	// with a 10s timeout is used. A caller wanting cancellation of
	// in-flight requests should set its own timeout here; a timeout
	// surfaces as a ConnectionError.
	HTTPClient *http.Client

	// MaxRetries bounds automatic retries of idempotent requests that
	// fail with a retryable status. Defaults to 3.
	MaxRetries int

	// RateLimit overrides the admission budget. Zero values use
	// HubSpot's published 100 requests / 10 seconds.
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Logger receives structured diagnostics. If nil, logging is a
	// no-op. Use logger/zerolog for a zerolog-backed implementation.
	Logger Logger

	// Metrics is an optional metrics collector. If nil, metrics are
	// silently ignored. Use metrics/prometheus for Prometheus metrics.
	Metrics Metrics
}

// ConfigFromEnv builds a Config from the HUBSPOT_* environment variables
// used by the portal deployment.
func ConfigFromEnv() Config {
	return Config{
		AccessToken:  os.Getenv("HUBSPOT_ACCESS_TOKEN"),
		RefreshToken: os.Getenv("HUBSPOT_REFRESH_TOKEN"),
		ClientID:     os.Getenv("HUBSPOT_CLIENT_ID"),
		ClientSecret: os.Getenv("HUBSPOT_CLIENT_SECRET"),
	}
}

// AccountInfo describes the connected HubSpot portal, returned by
// Client.AccountInfo.
type AccountInfo struct {
	PortalID  int64  `json:"portalId"`
	HubDomain string `json:"hubDomain"`
	TimeZone  string `json:"timeZone"`
	Currency  string `json:"currency"`
}
