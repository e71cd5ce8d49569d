package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/dgraph-io/ristretto"
)

// =============================================================================
// Cached Backend - hot reads in front of a durable backend
// =============================================================================
//
// Writes go to the durable backend first and then to the cache. A value that
// ristretto evicts or rejects is still on disk, so eviction only costs a
// re-read.

const (
	defaultNumCounters = 1e5
	defaultMaxCost     = 32 << 20
	defaultBufferItems = 64
)

// CacheConfig sizes the hot cache.
type CacheConfig struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
	Logger      *slog.Logger
}

func (c *CacheConfig) applyDefaults() {
	if c.NumCounters <= 0 {
		c.NumCounters = defaultNumCounters
	}
	if c.MaxCost <= 0 {
		c.MaxCost = defaultMaxCost
	}
	if c.BufferItems <= 0 {
		c.BufferItems = defaultBufferItems
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// CacheStats reports hot cache effectiveness.
type CacheStats struct {
	Hits      int64
	Misses    int64
	Evictions int64
}

// Cached wraps a Backend with a ristretto read cache.
type Cached struct {
	next   Backend
	cache  *ristretto.Cache
	logger *slog.Logger

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// NewCached wraps next. Closing the returned backend closes next too.
func NewCached(next Backend, cfg CacheConfig) (*Cached, error) {
	cfg.applyDefaults()
	c := &Cached{next: next, logger: cfg.Logger}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		OnEvict:     c.onEvict,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}
	c.cache = cache
	return c, nil
}

func (c *Cached) onEvict(_ *ristretto.Item) {
	c.evictions.Add(1)
}

func (c *Cached) Get(ctx context.Context, key string) ([]byte, error) {
	if v, ok := c.cache.Get(key); ok {
		c.hits.Add(1)
		return append([]byte(nil), v.([]byte)...), nil
	}
	c.misses.Add(1)
	raw, err := c.next.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	c.remember(key, raw)
	return raw, nil
}

func (c *Cached) Set(ctx context.Context, key string, value []byte) error {
	if err := c.next.Set(ctx, key, value); err != nil {
		c.cache.Del(key)
		return err
	}
	c.remember(key, value)
	return nil
}

func (c *Cached) remember(key string, value []byte) {
	cp := append([]byte(nil), value...)
	if !c.cache.Set(key, cp, int64(len(cp)+len(key))) {
		c.logger.Debug("cache rejected document", "key", key)
	}
	c.cache.Wait()
}

func (c *Cached) Remove(ctx context.Context, key string) error {
	c.cache.Del(key)
	return c.next.Remove(ctx, key)
}

func (c *Cached) Clear(ctx context.Context) error {
	c.cache.Clear()
	return c.next.Clear(ctx)
}

func (c *Cached) Keys(ctx context.Context, prefix string) ([]string, error) {
	return c.next.Keys(ctx, prefix)
}

// Stats returns a snapshot of cache counters.
func (c *Cached) Stats() CacheStats {
	return CacheStats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

func (c *Cached) Close() error {
	c.cache.Close()
	return c.next.Close()
}
