package pregel

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/flowgraph/workflow/internal/core/graph"
	"github.com/flowgraph/workflow/internal/core/value"
)

// ResultCache stores node results across runs for nodes that declare a CachePolicy.
// PRINCIPLES:
// - ISP: two methods, safe for concurrent use
// - A zero ttl means the entry never expires
type ResultCache interface {
	Get(key string) (value.Value, bool)
	Set(key string, v value.Value, ttl time.Duration)
}

type cacheEntry struct {
	value   value.Value
	expires time.Time
}

// MemoryCache is an in-process ResultCache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]cacheEntry), now: time.Now}
}

func (c *MemoryCache) Get(key string) (value.Value, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return value.Null(), false
	}
	if !e.expires.IsZero() && c.now().After(e.expires) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return value.Null(), false
	}
	return e.value, true
}

func (c *MemoryCache) Set(key string, v value.Value, ttl time.Duration) {
	e := cacheEntry{value: v}
	if ttl > 0 {
		e.expires = c.now().Add(ttl)
	}
	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
}

// Len returns the number of stored entries, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// CacheKey derives the cache key for a node invocation. Input-hash policies
// key on the msgpack encoding of the input; time-based policies only on the node.
func CacheKey(workflow, node string, p graph.CachePolicy, input value.Value) (string, error) {
	key := workflow + "/" + node
	if p.Key != "" {
		key += "/" + p.Key
	}
	if p.Kind == graph.CacheTimeBased {
		return key, nil
	}

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(input); err != nil {
		return "", err
	}
	sum := sha256.Sum256(buf.Bytes())
	return key + "/" + hex.EncodeToString(sum[:]), nil
}

// cacheTTL resolves the expiry of a policy against the executor default.
func cacheTTL(p graph.CachePolicy, fallback time.Duration) time.Duration {
	if p.TTLSeconds > 0 {
		return time.Duration(p.TTLSeconds) * time.Second
	}
	return fallback
}
