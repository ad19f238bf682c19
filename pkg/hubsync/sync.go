package hubsync

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Event names dispatched by the sync service and the webhook ingestor.
// Poll-based and push-based updates flow through the same channels, so
// downstream consumers never need to know how an update arrived.
const (
	EventDealCreated = "deal_created"
	EventDealUpdated = "deal_updated"
	EventDealWon     = "deal_won"
	EventDealLost    = "deal_lost"
)

// Callback reacts to a deal event. An error does not stop later callbacks
// for the same event; it is collected into the dispatch result.
type Callback func(deal *Deal) error

// CallbackError records one failed callback invocation.
type CallbackError struct {
	Event string
	Index int
	Err   error
}

func (e CallbackError) Error() string {
	return fmt.Sprintf("callback %d for %s: %v", e.Index, e.Event, e.Err)
}

// SyncService orchestrates bidirectional synchronization between HubSpot
// and the AMANDA pipeline and owns the event-callback registry.
type SyncService struct {
	client  *Client
	logger  Logger
	metrics Metrics

	mu        sync.RWMutex
	callbacks map[string][]Callback
}

// SyncOption customizes a SyncService.
type SyncOption func(*SyncService)

// WithSyncLogger sets the service logger.
func WithSyncLogger(l Logger) SyncOption {
	return func(s *SyncService) { s.logger = l }
}

// WithSyncMetrics sets the service metrics collector.
func WithSyncMetrics(m Metrics) SyncOption {
	return func(s *SyncService) { s.metrics = m }
}

// NewSyncService creates a sync service over an explicitly injected
// client.
func NewSyncService(client *Client, opts ...SyncOption) *SyncService {
	s := &SyncService{
		client:    client,
		logger:    &NoopLogger{},
		metrics:   &NoopMetrics{},
		callbacks: make(map[string][]Callback),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// On registers a callback for an event name. Multiple callbacks per event
// run in registration order.
func (s *SyncService) On(event string, cb Callback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks[event] = append(s.callbacks[event], cb)
}

// dispatch invokes every callback registered for the event, in order,
// collecting failures instead of aborting.
func (s *SyncService) dispatch(event string, deal *Deal) []CallbackError {
	s.mu.RLock()
	cbs := s.callbacks[event]
	s.mu.RUnlock()

	var errs []CallbackError
	for i, cb := range cbs {
		if err := cb(deal); err != nil {
			s.logger.Error("sync callback failed",
				Field{Key: "event", Value: event},
				Field{Key: "index", Value: i},
				Field{Key: "deal_id", Value: deal.ID},
				Field{Key: "error", Value: err.Error()})
			errs = append(errs, CallbackError{Event: event, Index: i, Err: err})
		}
	}
	return errs
}

// classifyStage chooses the event channel for a stage value. Both the pull
// path and the webhook path go through this one function so behavior is
// identical regardless of how a change arrived. Unknown stage strings are
// treated as ordinary updates.
func classifyStage(stage string) string {
	switch Stage(stage) {
	case StageClosedWon:
		return EventDealWon
	case StageClosedLost:
		return EventDealLost
	default:
		return EventDealUpdated
	}
}

// SyncFromRemote pages through all remote deals and dispatches each one to
// the channel matching its stage. A dispatch failure for one record is
// recorded and does not abort the pass; a failure of the listing call
// itself is fatal and returned alongside the partial result.
func (s *SyncService) SyncFromRemote(ctx context.Context, pipelineID string) (*SyncResult, error) {
	result := &SyncResult{Success: true}
	defer func() {
		result.Timestamp = time.Now().UTC()
		s.metrics.RecordSync("pull", result.DealsSynced, result.DealsFailed)
	}()

	cursor := ""
	for {
		deals, next, err := s.client.ListDeals(ctx, ListDealsOptions{
			Limit:      maxPageSize,
			After:      cursor,
			PipelineID: pipelineID,
		})
		if err != nil {
			result.Success = false
			result.Errors = append(result.Errors, "listing deals: "+err.Error())
			return result, err
		}

		for _, deal := range deals {
			result.DealsSynced++
			if cbErrs := s.dispatch(classifyStage(deal.Stage), deal); len(cbErrs) > 0 {
				result.CallbackErrors = append(result.CallbackErrors, cbErrs...)
				for _, cbErr := range cbErrs {
					result.Errors = append(result.Errors,
						fmt.Sprintf("deal %s: %v", deal.ID, cbErr))
				}
				result.DealsFailed++
			}
		}

		if next == "" {
			break
		}
		cursor = next
	}

	result.Success = result.DealsFailed == 0
	return result, nil
}

// SyncToRemote pushes local deals to HubSpot. A deal that already carries
// a remote id is updated; one without is created, and the assigned id is
// written back onto the caller's record so the linkage can be persisted.
// Per-record failures are collected and do not stop the pass.
func (s *SyncService) SyncToRemote(ctx context.Context, deals []*Deal) *SyncResult {
	result := &SyncResult{Success: true}
	defer func() {
		result.Timestamp = time.Now().UTC()
		s.metrics.RecordSync("push", result.DealsSynced, result.DealsFailed)
	}()

	for _, deal := range deals {
		if deal.ID != "" {
			if _, err := s.client.UpdateDeal(ctx, deal.ID, deal); err != nil {
				result.Errors = append(result.Errors,
					fmt.Sprintf("deal %q: %v", deal.Name, err))
				result.DealsFailed++
				continue
			}
			result.DealsUpdated++
		} else {
			created, err := s.client.CreateDeal(ctx, deal)
			if err != nil {
				result.Errors = append(result.Errors,
					fmt.Sprintf("deal %q: %v", deal.Name, err))
				result.DealsFailed++
				continue
			}
			deal.ID = created.ID
			result.DealsCreated++
		}
		result.DealsSynced++
	}

	result.Success = result.DealsFailed == 0
	return result
}
