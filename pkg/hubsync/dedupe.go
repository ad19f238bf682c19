package hubsync

import "context"

// EventCache remembers recently processed webhook event ids so redelivered
// events (senders commonly redeliver on timeout) are dropped instead of
// dispatched twice.
//
// Seen records the id and reports whether it had been recorded before.
// Check and record are one atomic operation, which makes deduplication
// at-most-once: an event that fails after being recorded is not
// reprocessed when the sender redelivers it. The pull pass reconciles
// anything lost that way.
//
// Implementations must be safe for concurrent use. storage/memory provides
// a bounded in-process cache; storage/redis and storage/postgres share the
// cache across replicas.
type EventCache interface {
	Seen(ctx context.Context, eventID string) (bool, error)
}
