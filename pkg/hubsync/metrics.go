package hubsync

import "time"

// Metrics defines the interface for tracking connector operations.
type Metrics interface {
	// RecordAPIRequest records an outbound API call with its final status.
	RecordAPIRequest(method, path string, status int, duration time.Duration)

	// RecordRetry records a retried request and the status that caused it.
	RecordRetry(method string, status int)

	// RecordRateLimitWait records time spent blocked on admission control.
	RecordRateLimitWait(wait time.Duration)

	// RecordTokenRefresh records an OAuth token refresh attempt.
	RecordTokenRefresh(success bool)

	// RecordSync records the outcome of a sync pass ("pull" or "push").
	RecordSync(direction string, synced, failed int)

	// RecordWebhookEvent records a processed webhook event and its outcome
	// ("success", "error", "duplicate", "skipped").
	RecordWebhookEvent(subscriptionType, outcome string)

	// RecordWebhookError records a rejected webhook delivery.
	RecordWebhookError(reason string)
}

// NoopMetrics is a no-op implementation of the Metrics interface.
type NoopMetrics struct{}

func (n *NoopMetrics) RecordAPIRequest(method, path string, status int, duration time.Duration) {}
func (n *NoopMetrics) RecordRetry(method string, status int)                                    {}
func (n *NoopMetrics) RecordRateLimitWait(wait time.Duration)                                   {}
func (n *NoopMetrics) RecordTokenRefresh(success bool)                                          {}
func (n *NoopMetrics) RecordSync(direction string, synced, failed int)                          {}
func (n *NoopMetrics) RecordWebhookEvent(subscriptionType, outcome string)                      {}
func (n *NoopMetrics) RecordWebhookError(reason string)                                         {}
