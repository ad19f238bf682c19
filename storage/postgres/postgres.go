// Package postgres provides a PostgreSQL implementation of the
// hubsync.EventCache interface using INSERT ... ON CONFLICT for an atomic
// check-and-record. Rows older than the retention window are pruned
// opportunistically.
package postgres

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS webhook_events (
	event_id   TEXT PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Config holds PostgreSQL event cache configuration.
type Config struct {
	// ConnectionString is the PostgreSQL connection string.
	ConnectionString string

	// RecordTTL is how long processed event ids are retained
	// (default: 24h).
	RecordTTL time.Duration

	// CleanupEvery prunes expired rows once per this many inserts
	// (default: 1000).
	CleanupEvery int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		RecordTTL:    24 * time.Hour,
		CleanupEvery: 1000,
	}
}

// Cache implements hubsync.EventCache using PostgreSQL.
type Cache struct {
	pool    *pgxpool.Pool
	config  Config
	inserts atomic.Int64
}

// New creates a PostgreSQL event cache and ensures its table exists.
func New(ctx context.Context, config Config) (*Cache, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required")
	}
	if config.RecordTTL <= 0 {
		config.RecordTTL = 24 * time.Hour
	}
	if config.CleanupEvery <= 0 {
		config.CleanupEvery = 1000
	}

	pool, err := pgxpool.New(ctx, config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating webhook_events table: %w", err)
	}

	return &Cache{pool: pool, config: config}, nil
}

// Close releases the connection pool.
func (c *Cache) Close() {
	c.pool.Close()
}

// Seen records the event id and reports whether it had been recorded
// before. ON CONFLICT DO NOTHING reports zero affected rows for a
// duplicate.
func (c *Cache) Seen(ctx context.Context, eventID string) (bool, error) {
	tag, err := c.pool.Exec(ctx,
		`INSERT INTO webhook_events (event_id) VALUES ($1) ON CONFLICT DO NOTHING`,
		eventID)
	if err != nil {
		return false, fmt.Errorf("recording event id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return true, nil
	}

	if c.inserts.Add(1)%int64(c.config.CleanupEvery) == 0 {
		c.cleanup(ctx)
	}
	return false, nil
}

func (c *Cache) cleanup(ctx context.Context) {
	_, _ = c.pool.Exec(ctx,
		`DELETE FROM webhook_events WHERE created_at < $1`,
		time.Now().Add(-c.config.RecordTTL))
}
