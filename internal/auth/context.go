package auth

import (
	"context"
	"time"

	userdomain "session-control-plane/internal/user/domain"
)

// Identity is the request-scoped resolved identity: the user, the session the
// access credential was minted for, and the credential expiry. It is created
// once per request by the session middleware and discarded with the request;
// it is never persisted.
type Identity struct {
	User           *userdomain.User
	SessionID      string
	TokenExpiresAt time.Time
}

type contextKey struct{ name string }

var identityKey = contextKey{"identity"}

// WithIdentity returns a context carrying the resolved request identity.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFrom returns the request identity and true if set. Handlers must not
// assume it is present unless they run behind the session middleware.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	v, ok := ctx.Value(identityKey).(Identity)
	return v, ok
}
