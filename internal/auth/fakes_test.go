package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	sessiondomain "session-control-plane/internal/session/domain"
	sessionrepo "session-control-plane/internal/session/repository"
	"session-control-plane/internal/telemetry"
	userdomain "session-control-plane/internal/user/domain"
)

type memSessionStore struct {
	mu            sync.Mutex
	m             map[string]*sessiondomain.Session
	ledger        map[string]string // token id -> revoked reason
	touchInterval time.Duration
	touchCalls    int
	getCalls      int
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{
		m:             make(map[string]*sessiondomain.Session),
		ledger:        make(map[string]string),
		touchInterval: time.Hour,
	}
}

func (r *memSessionStore) Create(ctx context.Context, userID, refreshTokenID string) (*sessiondomain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	s := &sessiondomain.Session{
		ID:             uuid.New().String(),
		UserID:         userID,
		CreatedAt:      now,
		RefreshTokenID: refreshTokenID,
	}
	if refreshTokenID != "" {
		issued := now
		s.RefreshTokenIssuedAt = &issued
	}
	r.m[s.ID] = s
	cp := *s
	return &cp, nil
}

func (r *memSessionStore) GetByID(ctx context.Context, id string) (*sessiondomain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.getCalls++
	s, ok := r.m[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *memSessionStore) Touch(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touchCalls++
	s, ok := r.m[id]
	if !ok || s.RevokedAt != nil {
		return nil
	}
	now := time.Now().UTC()
	if s.LastUsedAt == nil || now.Sub(*s.LastUsedAt) >= r.touchInterval {
		s.LastUsedAt = &now
	}
	return nil
}

func (r *memSessionStore) Revoke(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.m[id]; ok && s.RevokedAt == nil {
		t := time.Now().UTC()
		s.RevokedAt = &t
	}
	return nil
}

func (r *memSessionStore) RevokeAllByUser(ctx context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := time.Now().UTC()
	var n int64
	for _, s := range r.m {
		if s.UserID != userID || s.RevokedAt != nil {
			continue
		}
		if s.RefreshTokenID != "" {
			if _, seen := r.ledger[s.RefreshTokenID]; !seen {
				r.ledger[s.RefreshTokenID] = sessiondomain.RevokedReasonReuse
			}
		}
		s.RevokedAt = &t
		n++
	}
	return n, nil
}

func (r *memSessionStore) RotateRefreshToken(ctx context.Context, sessionID, oldID, newID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.m[sessionID]
	if !ok || s.RevokedAt != nil || s.RefreshTokenID != oldID {
		return sessionrepo.ErrTokenReuseDetected
	}
	if _, seen := r.ledger[oldID]; !seen {
		r.ledger[oldID] = sessiondomain.RevokedReasonRotation
	}
	now := time.Now().UTC()
	s.RefreshTokenID = newID
	s.RefreshTokenIssuedAt = &now
	return nil
}

func (r *memSessionStore) SetCurrentRefreshToken(ctx context.Context, sessionID, refreshTokenID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.m[sessionID]
	if !ok {
		return nil
	}
	now := time.Now().UTC()
	s.RefreshTokenID = refreshTokenID
	s.RefreshTokenIssuedAt = &now
	return nil
}

func (r *memSessionStore) IsRefreshTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.ledger[tokenID]
	return ok, nil
}

type memUserStore struct {
	mu       sync.Mutex
	m        map[string]*userdomain.User
	getCalls int
}

func newMemUserStore() *memUserStore {
	return &memUserStore{m: make(map[string]*userdomain.User)}
}

func (r *memUserStore) GetByID(ctx context.Context, id string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.getCalls++
	u, ok := r.m[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *memUserStore) put(u *userdomain.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[u.ID] = u
}

// memEmitter records emitted security events for assertions.
type memEmitter struct {
	mu     sync.Mutex
	events []*telemetry.SecurityEvent
}

func (e *memEmitter) Emit(ctx context.Context, event *telemetry.SecurityEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	return nil
}

func (e *memEmitter) byType(eventType string) []*telemetry.SecurityEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []*telemetry.SecurityEvent
	for _, ev := range e.events {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}
