package cmdi

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/fcs-sru-endpoint/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/fcs-sru-endpoint/pkg/redis"
)

const keyPrefix = "cmdi:"

// RequestCache memoises fetches for the lifetime of one request. It has no
// eviction; create one per request and drop it afterwards.
type RequestCache struct {
	fetcher Fetcher
	mu      sync.Mutex
	docs    map[string][]byte
}

// NewRequestCache wraps f.
func NewRequestCache(f Fetcher) *RequestCache {
	return &RequestCache{fetcher: f, docs: make(map[string][]byte)}
}

// Fetch implements Fetcher. Failures are not cached.
func (c *RequestCache) Fetch(ctx context.Context, u string) ([]byte, error) {
	c.mu.Lock()
	doc, ok := c.docs[u]
	c.mu.Unlock()
	if ok {
		return doc, nil
	}
	doc, err := c.fetcher.Fetch(ctx, u)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.docs[u] = doc
	c.mu.Unlock()
	return doc, nil
}

// Len returns the number of cached documents.
func (c *RequestCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.docs)
}

// Store is the key-value backend of SharedCache; *redis.Client satisfies it.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// SharedCache keeps fetched documents in a Store for ttl and collapses
// concurrent fetches of one URL. Store failures degrade to direct fetches.
type SharedCache struct {
	fetcher Fetcher
	store   Store
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// NewSharedCache wraps f. m may be nil.
func NewSharedCache(f Fetcher, store Store, ttl time.Duration, m *metrics.Metrics) *SharedCache {
	return &SharedCache{
		fetcher: f,
		store:   store,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "cmdi-cache"),
	}
}

// Fetch implements Fetcher.
func (c *SharedCache) Fetch(ctx context.Context, u string) ([]byte, error) {
	key := buildKey(u)
	if doc, ok := c.get(ctx, key); ok {
		return doc, nil
	}
	val, err, _ := c.group.Do(key, func() (any, error) {
		if doc, ok := c.get(ctx, key); ok {
			return doc, nil
		}
		doc, err := c.fetcher.Fetch(ctx, u)
		if err != nil {
			c.observe("error")
			return nil, err
		}
		if err := c.store.Set(ctx, key, doc, c.ttl); err != nil {
			c.logger.Error("cache set failed", "key", key, "error", err)
		}
		return doc, nil
	})
	if err != nil {
		return nil, err
	}
	return val.([]byte), nil
}

func (c *SharedCache) get(ctx context.Context, key string) ([]byte, bool) {
	doc, err := c.store.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.misses.Add(1)
		c.observe("miss")
		return nil, false
	}
	c.hits.Add(1)
	c.observe("hit")
	return doc, true
}

func (c *SharedCache) observe(result string) {
	if c.metrics != nil {
		c.metrics.CMDICacheTotal.WithLabelValues(result).Inc()
	}
}

// Invalidate drops every cached document.
func (c *SharedCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating CMDI cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

// Stats returns the hit and miss counts since start.
func (c *SharedCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func buildKey(u string) string {
	hash := sha256.Sum256([]byte(u))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
