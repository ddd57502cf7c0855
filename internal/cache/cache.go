// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cache implements the mediator's query-result cache: an
// LRU-ordered, TTL-expiring, byte-budgeted map keyed by query fingerprint.
package cache

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

type entry struct {
	key       string
	value     []byte
	expiresAt time.Time
	hasTTL    bool
}

// Stats reports cache effectiveness.
type Stats struct {
	Hits       uint64
	Misses     uint64
	Evictions  uint64
	HitRate    float64
	BytesUsed  int
}

// Cache is an LRU + TTL + size-capped key/value store. All operations are
// serialized by a single mutex.
type Cache struct {
	mu sync.Mutex

	maxEntries int
	maxBytes   int

	order   *list.List
	items   map[string]*list.Element
	bytesUsed int

	hits, misses, evictions uint64
}

// New builds a Cache bounded by maxEntries and maxBytes.
func New(maxEntries, maxBytes int) *Cache {
	return &Cache{
		maxEntries: maxEntries,
		maxBytes:   maxBytes,
		order:      list.New(),
		items:      make(map[string]*list.Element),
	}
}

// Key fingerprints sql plus a canonical rendering of context.
func Key(sql string, context string) string {
	sum := sha256.Sum256([]byte(sql + context))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached value for key, promoting it to most-recently-used.
// Expired entries are treated as a miss and removed.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}
	e := el.Value.(*entry)
	if e.hasTTL && time.Now().After(e.expiresAt) {
		c.removeElement(el)
		c.misses++
		return nil, false
	}
	c.order.MoveToFront(el)
	c.hits++
	return e.value, true
}

// Set stores value under key with an optional TTL (zero means no expiry),
// evicting expired entries first, then the least-recently-used entry until
// both the entry count and byte budget are satisfied.
func (c *Cache) Set(key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.evictExpiredLocked()

	if el, ok := c.items[key]; ok {
		c.removeElement(el)
	}

	e := &entry{key: key, value: value}
	if ttl > 0 {
		e.hasTTL = true
		e.expiresAt = time.Now().Add(ttl)
	}
	el := c.order.PushFront(e)
	c.items[key] = el
	c.bytesUsed += len(value)

	for c.maxEntries > 0 && c.order.Len() > c.maxEntries {
		c.evictOldestLocked()
	}
	for c.maxBytes > 0 && c.bytesUsed > c.maxBytes && c.order.Len() > 0 {
		c.evictOldestLocked()
	}
}

// Invalidate removes a single key.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.removeElement(el)
	}
}

// InvalidateAll clears the cache.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.items = make(map[string]*list.Element)
	c.bytesUsed = 0
}

// Thunk computes a value to cache on a miss.
type Thunk func(ctx context.Context) ([]byte, error)

// GetOrCompute returns the cached value for key, or invokes thunk on a miss
// and caches its result under ttl.
func (c *Cache) GetOrCompute(ctx context.Context, key string, ttl time.Duration, thunk Thunk) ([]byte, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := thunk(ctx)
	if err != nil {
		return nil, err
	}
	c.Set(key, v, ttl)
	return v, nil
}

// Stats returns a snapshot of cache effectiveness counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	rate := 0.0
	if total > 0 {
		rate = float64(c.hits) / float64(total)
	}
	return Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		HitRate:   rate,
		BytesUsed: c.bytesUsed,
	}
}

func (c *Cache) evictExpiredLocked() {
	var next *list.Element
	for el := c.order.Back(); el != nil; el = next {
		next = el.Prev()
		e := el.Value.(*entry)
		if e.hasTTL && time.Now().After(e.expiresAt) {
			c.removeElement(el)
		}
	}
}

func (c *Cache) evictOldestLocked() {
	el := c.order.Back()
	if el == nil {
		return
	}
	c.removeElement(el)
	c.evictions++
}

func (c *Cache) removeElement(el *list.Element) {
	e := el.Value.(*entry)
	c.order.Remove(el)
	delete(c.items, e.key)
	c.bytesUsed -= len(e.value)
}
