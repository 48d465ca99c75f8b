// Package cache provides the string-keyed read-through cache used by the auth
// path to avoid database round-trips on session and user lookups. The cache is
// never authoritative: entries live for a bounded TTL, the store is bounded in
// size, and callers must tolerate both staleness within the TTL window and
// arbitrary entry loss.
package cache

import "context"

// Store is a bounded string-keyed cache with TTL eviction. Implementations are
// safe for concurrent use and never hold internal locks across caller code.
type Store interface {
	// Get returns the cached value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	// Insert stores value under key for the store's configured TTL.
	Insert(ctx context.Context, key, value string) error
	// Invalidate removes key. Removing an absent key is a no-op.
	Invalidate(ctx context.Context, key string) error
}
