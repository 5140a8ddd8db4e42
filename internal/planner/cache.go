package planner

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultCacheSize = 256
	defaultCacheTTL  = 15 * time.Minute
)

// Entry is one cached plan. Usage is incremented atomically on every hit so
// concurrent requests can share the entry.
type Entry struct {
	Plan       []string
	Confidence float64
	Reasoning  string
	CreatedAt  time.Time
	usage      atomic.Int64
}

// Usage returns how many times the entry has been served.
func (e *Entry) Usage() int64 {
	return e.usage.Load()
}

// Cache is a TTL-bound LRU of validated plans, keyed by the normalized query
// and the registry fingerprint. It is safe for concurrent use across
// requests.
type Cache struct {
	lru *expirable.LRU[string, *Entry]
	ttl time.Duration
}

// NewCache creates a plan cache. Non-positive size or ttl fall back to
// defaults.
func NewCache(size int, ttl time.Duration) *Cache {
	if size <= 0 {
		size = defaultCacheSize
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Cache{
		lru: expirable.NewLRU[string, *Entry](size, nil, ttl),
		ttl: ttl,
	}
}

// TTL returns the cache's entry lifetime.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get returns a non-expired entry and bumps its usage counter.
func (c *Cache) Get(key string) (*Entry, bool) {
	entry, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	entry.usage.Add(1)
	return entry, true
}

// Put stores a plan under the key.
func (c *Cache) Put(key string, plan []string, confidence float64, reasoning string) *Entry {
	entry := &Entry{
		Plan:       append([]string(nil), plan...),
		Confidence: confidence,
		Reasoning:  reasoning,
		CreatedAt:  time.Now(),
	}
	c.lru.Add(key, entry)
	return entry
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	return c.lru.Len()
}

// Normalize canonicalizes a query for cache keying: lowercased with
// whitespace runs collapsed.
func Normalize(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

// CacheKey derives the cache key for a query under a registry fingerprint.
// Any change to the skill catalog changes the fingerprint and so misses all
// prior entries.
func CacheKey(normalizedQuery, fingerprint string) string {
	h := sha256.New()
	h.Write([]byte(normalizedQuery))
	h.Write([]byte{0})
	h.Write([]byte(fingerprint))
	return hex.EncodeToString(h.Sum(nil))
}
