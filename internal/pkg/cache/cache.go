// Package cache provides a best-effort TTL cache. Callers must treat
// every miss or failure as a fallthrough to the store of record; the
// cache never carries authoritative state.
package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cache is the narrow caching contract consumed by the services.
type Cache interface {
	Get(key string) (any, bool)
	Set(key string, value any, ttl time.Duration)
	Delete(key string)
}

// Memory is an in-process Cache backed by go-cache.
type Memory struct {
	c *gocache.Cache
}

// NewMemory creates an in-memory cache. defaultTTL applies when Set is
// called with a non-positive ttl; cleanupInterval controls expired-item
// collection.
func NewMemory(defaultTTL, cleanupInterval time.Duration) *Memory {
	return &Memory{c: gocache.New(defaultTTL, cleanupInterval)}
}

func (m *Memory) Get(key string) (any, bool) {
	return m.c.Get(key)
}

func (m *Memory) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	m.c.Set(key, value, ttl)
}

func (m *Memory) Delete(key string) {
	m.c.Delete(key)
}
