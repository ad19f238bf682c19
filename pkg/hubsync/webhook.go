package hubsync

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw request body.
const SignatureHeader = "X-HubSpot-Signature"

const maxWebhookBody = 1 << 20 // 1MB; HubSpot deliveries are far smaller

// Webhook subscription types.
const (
	SubscriptionDealCreation       = "deal.creation"
	SubscriptionDealPropertyChange = "deal.propertyChange"
	SubscriptionDealDeletion       = "deal.deletion"
)

// stagePropertyName is the deal property whose changes select the
// won/lost/updated channel.
const stagePropertyName = "dealstage"

// Ingestor verifies, parses and dispatches inbound webhook deliveries. It
// feeds the same callback registry as the sync service's polling path.
type Ingestor struct {
	client  *Client
	sync    *SyncService
	secret  []byte
	cache   EventCache
	logger  Logger
	metrics Metrics
}

// IngestorConfig configures an Ingestor.
type IngestorConfig struct {
	// WebhookSecret is the shared secret for signature verification.
	// When empty, verification is SKIPPED: this is an explicit degraded
	// mode for local development and is logged on every delivery. Always
	// configure a secret in production.
	WebhookSecret string

	// Cache drops redelivered events by id. Optional; nil disables
	// deduplication. Cache errors fail open (the event is processed)
	// so a dead backend cannot stall ingestion.
	Cache EventCache

	Logger  Logger
	Metrics Metrics
}

// NewIngestor creates a webhook ingestor that fetches full objects through
// client and dispatches through the sync service's callback registry.
func NewIngestor(client *Client, syncService *SyncService, cfg IngestorConfig) *Ingestor {
	logger := cfg.Logger
	if logger == nil {
		logger = &NoopLogger{}
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = &NoopMetrics{}
	}
	return &Ingestor{
		client:  client,
		sync:    syncService,
		secret:  []byte(cfg.WebhookSecret),
		cache:   cfg.Cache,
		logger:  logger,
		metrics: metrics,
	}
}

// VerifySignature checks a hex HMAC-SHA256 signature over the raw body in
// constant time. With no secret configured it returns nil and logs the
// degraded mode.
func (i *Ingestor) VerifySignature(body []byte, signature string) error {
	if len(i.secret) == 0 {
		i.logger.Warn("webhook secret not configured, skipping signature verification")
		return nil
	}
	if signature == "" {
		return ErrSignatureMismatch
	}

	mac := hmac.New(sha256.New, i.secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	// hmac.Equal compares in constant time.
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(signature))) {
		return ErrSignatureMismatch
	}
	return nil
}

// ParseEvents decodes a delivery body into events, tolerating absent
// optional fields. Events keep their arrival order, which preserves
// per-object ordering during dispatch.
func ParseEvents(body []byte) ([]WebhookEvent, error) {
	var raw []struct {
		EventID          json.Number `json:"eventId"`
		SubscriptionType string      `json:"subscriptionType"`
		ObjectID         json.Number `json:"objectId"`
		PropertyName     string      `json:"propertyName"`
		PropertyValue    string      `json:"propertyValue"`
		OccurredAt       int64       `json:"occurredAt"`
		PortalID         json.Number `json:"portalId"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &ValidationError{Message: "malformed webhook payload: " + err.Error()}
	}

	events := make([]WebhookEvent, 0, len(raw))
	for _, item := range raw {
		ev := WebhookEvent{
			EventID:          item.EventID.String(),
			SubscriptionType: item.SubscriptionType,
			ObjectID:         item.ObjectID.String(),
			PropertyName:     item.PropertyName,
			PropertyValue:    item.PropertyValue,
			PortalID:         item.PortalID.String(),
		}
		if item.OccurredAt > 0 {
			ev.OccurredAt = time.UnixMilli(item.OccurredAt).UTC()
		}
		events = append(events, ev)
	}
	return events, nil
}

// Handler returns the HTTP handler for webhook deliveries. A signature
// failure rejects the whole request with 401 before any parsing; per-event
// failures inside an accepted payload are isolated and the delivery is
// still acknowledged with 200, since a non-2xx would make the sender
// redeliver every event in the batch. Per-event failures surface through
// the logger and metrics instead.
func (i *Ingestor) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBody)
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			i.metrics.RecordWebhookError("invalid_payload")
			return
		}

		if err := i.VerifySignature(body, r.Header.Get(SignatureHeader)); err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			i.metrics.RecordWebhookError("signature_mismatch")
			return
		}

		events, err := ParseEvents(body)
		if err != nil {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			i.metrics.RecordWebhookError("invalid_payload")
			return
		}

		i.Process(r.Context(), events)

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

// Process dispatches parsed events sequentially, which preserves ordering
// across events for the same object id. A failure of one event is logged
// and collected without stopping the rest. The returned errors are the
// per-event failures in processing order.
func (i *Ingestor) Process(ctx context.Context, events []WebhookEvent) []error {
	var errs []error
	for _, ev := range events {
		if i.isDuplicate(ctx, ev.EventID) {
			i.metrics.RecordWebhookEvent(ev.SubscriptionType, "duplicate")
			continue
		}
		if err := i.processEvent(ctx, ev); err != nil {
			i.logger.Error("webhook event failed",
				Field{Key: "event_id", Value: ev.EventID},
				Field{Key: "type", Value: ev.SubscriptionType},
				Field{Key: "object_id", Value: ev.ObjectID},
				Field{Key: "error", Value: err.Error()})
			i.metrics.RecordWebhookEvent(ev.SubscriptionType, "error")
			errs = append(errs, fmt.Errorf("event %s: %w", ev.EventID, err))
			continue
		}
		i.metrics.RecordWebhookEvent(ev.SubscriptionType, "success")
	}
	return errs
}

func (i *Ingestor) isDuplicate(ctx context.Context, eventID string) bool {
	if i.cache == nil || eventID == "" {
		return false
	}
	seen, err := i.cache.Seen(ctx, eventID)
	if err != nil {
		// Fail open: a broken cache must not stall ingestion.
		i.logger.Warn("event cache unavailable",
			Field{Key: "error", Value: err.Error()})
		return false
	}
	return seen
}

func (i *Ingestor) processEvent(ctx context.Context, ev WebhookEvent) error {
	switch ev.SubscriptionType {
	case SubscriptionDealCreation:
		// Webhooks carry only the changed id, not the record; fetch the
		// full object before dispatching.
		deal, err := i.client.GetDeal(ctx, ev.ObjectID)
		if err != nil {
			return err
		}
		return dispatchResult(i.sync.dispatch(EventDealCreated, deal))

	case SubscriptionDealPropertyChange:
		deal, err := i.client.GetDeal(ctx, ev.ObjectID)
		if err != nil {
			return err
		}
		event := EventDealUpdated
		if ev.PropertyName == stagePropertyName {
			event = classifyStage(ev.PropertyValue)
		}
		return dispatchResult(i.sync.dispatch(event, deal))

	case SubscriptionDealDeletion:
		i.logger.Info("deal deleted remotely",
			Field{Key: "object_id", Value: ev.ObjectID})
		return nil

	default:
		return &ValidationError{Message: "unknown subscription type: " + ev.SubscriptionType}
	}
}

func dispatchResult(errs []CallbackError) error {
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return fmt.Errorf("%d callback(s) failed: %s", len(errs), strings.Join(msgs, "; "))
}
