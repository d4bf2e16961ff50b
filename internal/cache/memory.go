package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// defaultMaxEntries bounds the in-memory cache. When full, the entry with
// the oldest write time is evicted to make room.
const defaultMaxEntries = 100

// MemoryCache implements Cache using in-memory storage. Expiry is lazy:
// entries are checked on read and removed only by Sweep or overflow
// eviction.
type MemoryCache struct {
	mu         sync.RWMutex
	data       map[string]*cacheItem
	maxEntries int
}

type cacheItem struct {
	value      []byte
	cachedAt   time.Time
	expiration time.Time
}

// NewMemoryCache creates a new in-memory cache with the default bound
func NewMemoryCache() *MemoryCache {
	return NewMemoryCacheWithCapacity(defaultMaxEntries)
}

// NewMemoryCacheWithCapacity creates a new in-memory cache bounded at
// maxEntries (unbounded when <= 0)
func NewMemoryCacheWithCapacity(maxEntries int) *MemoryCache {
	return &MemoryCache{
		data:       make(map[string]*cacheItem),
		maxEntries: maxEntries,
	}
}

// Get retrieves a value from cache
func (m *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, exists := m.data[key]
	if !exists {
		return nil, ErrCacheMiss
	}

	if time.Now().After(item.expiration) {
		return nil, ErrCacheMiss
	}

	return item.value, nil
}

// Set stores a value in cache, evicting the oldest entry on overflow
func (m *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if _, exists := m.data[key]; !exists && m.maxEntries > 0 && len(m.data) >= m.maxEntries {
		m.evictOldestLocked()
	}

	m.data[key] = &cacheItem{
		value:      value,
		cachedAt:   now,
		expiration: now.Add(ttl),
	}

	return nil
}

// evictOldestLocked removes the entry with the oldest write time. Expired
// entries are preferred victims.
func (m *MemoryCache) evictOldestLocked() {
	now := time.Now()
	var victim string
	var victimAt time.Time
	for key, item := range m.data {
		if now.After(item.expiration) {
			delete(m.data, key)
			return
		}
		if victim == "" || item.cachedAt.Before(victimAt) {
			victim = key
			victimAt = item.cachedAt
		}
	}
	if victim != "" {
		delete(m.data, victim)
	}
}

// Delete removes a value from cache
func (m *MemoryCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	return nil
}

// Exists checks if a key exists and has not expired
func (m *MemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, exists := m.data[key]
	if !exists {
		return false, nil
	}

	if time.Now().After(item.expiration) {
		return false, nil
	}

	return true, nil
}

// Clear removes all keys matching pattern
func (m *MemoryCache) Clear(ctx context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Simple pattern matching (only supports * wildcard)
	for key := range m.data {
		if matchPattern(key, pattern) {
			delete(m.data, key)
		}
	}

	return nil
}

// Sweep proactively removes expired entries and returns how many were
// evicted
func (m *MemoryCache) Sweep(ctx context.Context) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	evicted := 0
	for key, item := range m.data {
		if now.After(item.expiration) {
			delete(m.data, key)
			evicted++
		}
	}
	return evicted
}

// Len returns the number of entries, expired included
func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// matchPattern performs simple pattern matching
func matchPattern(s, pattern string) bool {
	if pattern == "*" {
		return true
	}

	if strings.HasSuffix(pattern, "*") {
		prefix := strings.TrimSuffix(pattern, "*")
		return strings.HasPrefix(s, prefix)
	}

	return s == pattern
}
