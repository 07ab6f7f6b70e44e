// Package cache provides result caches for diagnostic evaluations.
package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/gyndok/lancet-obesity-compass/internal/domain"
)

const (
	defaultMaxItems = 1024
	defaultTTL      = 15 * time.Minute
)

type memoryEntry struct {
	result    *domain.DiagnosticResult
	expiresAt time.Time
}

// MemoryCache is an in-process LRU cache with expiring entries
type MemoryCache struct {
	lru        *expirable.LRU[string, memoryEntry]
	defaultTTL time.Duration
	now        func() time.Time
}

// NewMemoryCache creates a memory cache holding at most maxItems results.
// Entries never outlive ttl even if a longer one is passed to Set.
func NewMemoryCache(maxItems int, ttl time.Duration) *MemoryCache {
	if maxItems <= 0 {
		maxItems = defaultMaxItems
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}

	return &MemoryCache{
		lru:        expirable.NewLRU[string, memoryEntry](maxItems, nil, ttl),
		defaultTTL: ttl,
		now:        time.Now,
	}
}

// Get returns the cached result for key
func (m *MemoryCache) Get(_ context.Context, key string) (*domain.DiagnosticResult, bool) {
	entry, ok := m.lru.Get(key)
	if !ok {
		return nil, false
	}
	if m.now().After(entry.expiresAt) {
		m.lru.Remove(key)
		return nil, false
	}
	return entry.result, true
}

// Set stores result under key. A zero ttl uses the cache default.
func (m *MemoryCache) Set(_ context.Context, key string, result *domain.DiagnosticResult, ttl time.Duration) error {
	if ttl <= 0 || ttl > m.defaultTTL {
		ttl = m.defaultTTL
	}
	m.lru.Add(key, memoryEntry{result: result, expiresAt: m.now().Add(ttl)})
	return nil
}

// Len reports the number of live entries
func (m *MemoryCache) Len() int {
	return m.lru.Len()
}

// Close releases the cache contents
func (m *MemoryCache) Close() error {
	m.lru.Purge()
	return nil
}
