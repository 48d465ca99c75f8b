package auth

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"session-control-plane/internal/cache"
	sessiondomain "session-control-plane/internal/session/domain"
	userdomain "session-control-plane/internal/user/domain"
)

// Cache key prefixes for session and user projections.
const (
	userKeyPrefix    = "user:"
	sessionKeyPrefix = "session:"
)

// SessionStore is the session persistence surface the auth package needs.
type SessionStore interface {
	Create(ctx context.Context, userID, refreshTokenID string) (*sessiondomain.Session, error)
	GetByID(ctx context.Context, id string) (*sessiondomain.Session, error)
	Touch(ctx context.Context, id string) error
	Revoke(ctx context.Context, id string) error
	RevokeAllByUser(ctx context.Context, userID string) (int64, error)
	RotateRefreshToken(ctx context.Context, sessionID, oldID, newID string) error
	SetCurrentRefreshToken(ctx context.Context, sessionID, refreshTokenID string) error
	IsRefreshTokenRevoked(ctx context.Context, tokenID string) (bool, error)
}

// UserStore is the user read surface the auth package needs.
type UserStore interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
}

// Lookups resolves sessions and users cache-first. The durable store is always
// the source of truth: cache failures of any kind degrade to a store read, and
// a corrupted cache entry is dropped rather than surfaced. Each store or cache
// call is bounded by a per-call timeout so a hung backend fails the request
// instead of blocking it indefinitely.
type Lookups struct {
	sessions SessionStore
	users    UserStore
	cache    cache.Store
	timeout  time.Duration
}

// NewLookups returns Lookups over the given stores and cache. timeout bounds
// each individual store/cache call; zero disables the bound.
func NewLookups(sessions SessionStore, users UserStore, cacheStore cache.Store, timeout time.Duration) *Lookups {
	return &Lookups{sessions: sessions, users: users, cache: cacheStore, timeout: timeout}
}

// Session returns the session for id, consulting the cache first and
// repopulating it on a durable-store hit. Returns (nil, nil) when the session
// does not exist; errors are database failures only.
func (l *Lookups) Session(ctx context.Context, id string) (*sessiondomain.Session, error) {
	key := sessionKeyPrefix + id

	if raw, ok := l.cacheGet(ctx, key); ok {
		var s sessiondomain.Session
		if err := json.Unmarshal([]byte(raw), &s); err == nil {
			return &s, nil
		}
		// Schema drift or corruption: drop the entry and fall through to the store.
		log.Printf("auth: corrupt cached session %s, invalidating", id)
		l.cacheInvalidate(ctx, key)
	}

	callCtx, cancel := l.callCtx(ctx)
	defer cancel()
	s, err := l.sessions.GetByID(callCtx, id)
	if err != nil || s == nil {
		return s, err
	}

	l.cachePut(ctx, key, s)
	return s, nil
}

// User returns the user for id with the same cache-aside contract as Session.
func (l *Lookups) User(ctx context.Context, id string) (*userdomain.User, error) {
	key := userKeyPrefix + id

	if raw, ok := l.cacheGet(ctx, key); ok {
		var u userdomain.User
		if err := json.Unmarshal([]byte(raw), &u); err == nil {
			return &u, nil
		}
		log.Printf("auth: corrupt cached user %s, invalidating", id)
		l.cacheInvalidate(ctx, key)
	}

	callCtx, cancel := l.callCtx(ctx)
	defer cancel()
	u, err := l.users.GetByID(callCtx, id)
	if err != nil || u == nil {
		return u, err
	}

	l.cachePut(ctx, key, u)
	return u, nil
}

// InvalidateSession drops the cached projection of the session. Every writer
// of session state must call it after a durable mutation.
func (l *Lookups) InvalidateSession(ctx context.Context, id string) {
	l.cacheInvalidate(ctx, sessionKeyPrefix+id)
}

// InvalidateUser drops the cached projection of the user.
func (l *Lookups) InvalidateUser(ctx context.Context, id string) {
	l.cacheInvalidate(ctx, userKeyPrefix+id)
}

func (l *Lookups) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, l.timeout)
}

func (l *Lookups) cacheGet(ctx context.Context, key string) (string, bool) {
	callCtx, cancel := l.callCtx(ctx)
	defer cancel()
	raw, ok, err := l.cache.Get(callCtx, key)
	if err != nil {
		log.Printf("cache: get %s failed: %v", key, err)
		return "", false
	}
	return raw, ok
}

// cachePut serializes v into the cache. Best-effort: failures are logged and
// swallowed because correctness never depends on the cache being populated.
func (l *Lookups) cachePut(ctx context.Context, key string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("cache: serialize %s failed: %v", key, err)
		return
	}
	callCtx, cancel := l.callCtx(ctx)
	defer cancel()
	if err := l.cache.Insert(callCtx, key, string(b)); err != nil {
		log.Printf("cache: insert %s failed: %v", key, err)
	}
}

func (l *Lookups) cacheInvalidate(ctx context.Context, key string) {
	callCtx, cancel := l.callCtx(ctx)
	defer cancel()
	if err := l.cache.Invalidate(callCtx, key); err != nil {
		log.Printf("cache: invalidate %s failed: %v", key, err)
	}
}
