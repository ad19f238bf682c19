package prommetrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics implements hubsync.Metrics using Prometheus.
type Metrics struct {
	apiRequestsTotal    *prometheus.CounterVec
	apiRequestDuration  *prometheus.HistogramVec
	retriesTotal        *prometheus.CounterVec
	rateLimitWait       prometheus.Histogram
	tokenRefreshesTotal *prometheus.CounterVec
	syncRecordsTotal    *prometheus.CounterVec
	webhookEventsTotal  *prometheus.CounterVec
	webhookErrorsTotal  *prometheus.CounterVec
}

// NewMetrics creates a new Prometheus metrics implementation registered
// against reg.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		apiRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Total number of HubSpot API requests by final status.",
		}, []string{"method", "status"}),

		apiRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "Latency of HubSpot API requests, retries included.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		retriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_retries_total",
			Help:      "Total number of retried API requests by status.",
		}, []string{"method", "status"}),

		rateLimitWait: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rate_limit_wait_seconds",
			Help:      "Time spent blocked on rate-limit admission.",
			Buckets:   []float64{.01, .05, .1, .5, 1, 2, 5, 10},
		}),

		tokenRefreshesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_refreshes_total",
			Help:      "Total number of OAuth token refresh attempts.",
		}, []string{"success"}),

		syncRecordsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_records_total",
			Help:      "Records processed by sync passes.",
		}, []string{"direction", "outcome"}),

		webhookEventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Processed webhook events by subscription type and outcome.",
		}, []string{"type", "outcome"}),

		webhookErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_errors_total",
			Help:      "Rejected webhook deliveries by reason.",
		}, []string{"reason"}),
	}
}

// DefaultMetrics creates metrics registered against the default Prometheus
// registerer.
func DefaultMetrics(namespace string) *Metrics {
	return NewMetrics(prometheus.DefaultRegisterer, namespace)
}

func (m *Metrics) RecordAPIRequest(method, path string, status int, duration time.Duration) {
	m.apiRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.apiRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

func (m *Metrics) RecordRetry(method string, status int) {
	m.retriesTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

func (m *Metrics) RecordRateLimitWait(wait time.Duration) {
	m.rateLimitWait.Observe(wait.Seconds())
}

func (m *Metrics) RecordTokenRefresh(success bool) {
	m.tokenRefreshesTotal.WithLabelValues(strconv.FormatBool(success)).Inc()
}

func (m *Metrics) RecordSync(direction string, synced, failed int) {
	m.syncRecordsTotal.WithLabelValues(direction, "synced").Add(float64(synced))
	m.syncRecordsTotal.WithLabelValues(direction, "failed").Add(float64(failed))
}

func (m *Metrics) RecordWebhookEvent(subscriptionType, outcome string) {
	m.webhookEventsTotal.WithLabelValues(subscriptionType, outcome).Inc()
}

func (m *Metrics) RecordWebhookError(reason string) {
	m.webhookErrorsTotal.WithLabelValues(reason).Inc()
}
