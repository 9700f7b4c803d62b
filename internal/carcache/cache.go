// Package carcache implements a process-wide mapping from carUid to the
// reduced car descriptor, populated on every successful car fetch and
// consulted only on fallback paths.
package carcache

import (
	"sync"

	"github.com/carrental/gateway/internal/domain"
)

// Cache is safe for concurrent use. It has no TTL and no capacity bound;
// a long-running process can grow it without limit.
type Cache struct {
	mu sync.RWMutex
	m  map[string]domain.CarInfo
}

// New constructs an empty car fallback cache.
func New() *Cache {
	return &Cache{m: make(map[string]domain.CarInfo)}
}

// Put records the descriptor most recently observed for carUid. Concurrent
// writes for the same key converge to the last writer.
func (c *Cache) Put(info domain.CarInfo) {
	if info.CarUID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[info.CarUID] = info
}

// Get returns the cached descriptor for carUid, or false if none was ever recorded.
func (c *Cache) Get(carUID string) (domain.CarInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	info, ok := c.m[carUID]
	return info, ok
}

// GetOrEmpty returns the cached descriptor for carUid, or a bare descriptor
// carrying only the known carUid when nothing was ever cached.
func (c *Cache) GetOrEmpty(carUID string) domain.CarInfo {
	if info, ok := c.Get(carUID); ok {
		return info
	}
	return domain.CarInfo{CarUID: carUID}
}

// Len reports the number of cached entries, exposed for introspection/metrics.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}
