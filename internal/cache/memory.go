package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value      string
	insertedAt time.Time
	expiresAt  time.Time
}

// Memory is an in-process Store bounded by entry count and per-entry TTL.
// Constructed once at process start and shared for the process lifetime; no
// teardown is needed beyond process exit. The mutex guards map access only and
// is never held across I/O.
type Memory struct {
	ttl        time.Duration
	maxEntries int

	mu      sync.Mutex
	entries map[string]memoryEntry
}

// NewMemory returns a Memory store with the given per-entry ttl and capacity.
// The reference deployment uses 5 minutes and 10,000 entries.
func NewMemory(ttl time.Duration, maxEntries int) *Memory {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	return &Memory{
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]memoryEntry),
	}
}

// Get returns the value for key if present and not expired. Expired entries
// are dropped on read.
func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return "", false, nil
	}
	if now.After(e.expiresAt) {
		delete(m.entries, key)
		return "", false, nil
	}
	return e.value, true, nil
}

// Insert stores value under key. At capacity, expired entries are purged
// first; if the store is still full, the oldest entry is evicted.
func (m *Memory) Insert(_ context.Context, key, value string) error {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entries[key]; !exists && len(m.entries) >= m.maxEntries {
		m.purgeExpiredLocked(now)
		if len(m.entries) >= m.maxEntries {
			m.evictOldestLocked()
		}
	}
	m.entries[key] = memoryEntry{
		value:      value,
		insertedAt: now,
		expiresAt:  now.Add(m.ttl),
	}
	return nil
}

// Invalidate removes key if present.
func (m *Memory) Invalidate(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// Len returns the current entry count, expired entries included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Memory) purgeExpiredLocked(now time.Time) {
	for k, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, k)
		}
	}
}

func (m *Memory) evictOldestLocked() {
	var (
		oldestKey string
		oldestAt  time.Time
		first     = true
	)
	for k, e := range m.entries {
		if first || e.insertedAt.Before(oldestAt) {
			oldestKey, oldestAt = k, e.insertedAt
			first = false
		}
	}
	if !first {
		delete(m.entries, oldestKey)
	}
}
