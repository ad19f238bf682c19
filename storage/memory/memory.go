// Package memory provides a bounded in-process implementation of the
// hubsync.EventCache interface. Suitable for single-instance deployments;
// replicas sharing a webhook endpoint should use the redis or postgres
// backend instead.
package memory

import (
	"context"
	"sync"
)

const defaultCapacity = 4096

// Cache remembers the most recently seen event ids up to a fixed
// capacity, evicting the oldest id once full.
type Cache struct {
	mu       sync.Mutex
	capacity int
	seen     map[string]struct{}
	order    []string
	head     int
}

// New creates an event cache holding up to capacity ids. Non-positive
// capacity uses a default of 4096.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Cache{
		capacity: capacity,
		seen:     make(map[string]struct{}, capacity),
		order:    make([]string, 0, capacity),
	}
}

// Seen records the event id and reports whether it had been recorded
// before.
func (c *Cache) Seen(_ context.Context, eventID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.seen[eventID]; ok {
		return true, nil
	}

	if len(c.order) < c.capacity {
		c.order = append(c.order, eventID)
	} else {
		// Ring buffer: overwrite the oldest slot.
		delete(c.seen, c.order[c.head])
		c.order[c.head] = eventID
		c.head = (c.head + 1) % c.capacity
	}
	c.seen[eventID] = struct{}{}

	return false, nil
}

// Len returns the number of ids currently held.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}
