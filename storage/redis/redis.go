// Package redis provides a Redis implementation of the hubsync.EventCache
// interface. SET NX with a TTL makes the check-and-record atomic, so
// replicas behind one webhook endpoint share a single deduplication
// window.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis event cache configuration.
type Config struct {
	// KeyPrefix is prepended to all Redis keys (default: "hubsync:event:").
	KeyPrefix string

	// TTL is how long an event id is remembered (default: 24h). HubSpot
	// stops redelivering long before that.
	TTL time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		KeyPrefix: "hubsync:event:",
		TTL:       24 * time.Hour,
	}
}

// Cache implements hubsync.EventCache using Redis.
type Cache struct {
	client redis.UniversalClient
	config Config
}

// New creates a Redis event cache. The client can be *redis.Client,
// *redis.ClusterClient, or *redis.Ring.
func New(client redis.UniversalClient, config Config) (*Cache, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "hubsync:event:"
	}
	if config.TTL <= 0 {
		config.TTL = 24 * time.Hour
	}
	return &Cache{client: client, config: config}, nil
}

// Seen records the event id and reports whether it had been recorded
// before. SET NX returns false when the key already existed.
func (c *Cache) Seen(ctx context.Context, eventID string) (bool, error) {
	stored, err := c.client.SetNX(ctx, c.config.KeyPrefix+eventID, 1, c.config.TTL).Result()
	if err != nil {
		return false, fmt.Errorf("recording event id: %w", err)
	}
	return !stored, nil
}
