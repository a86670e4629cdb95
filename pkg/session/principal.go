package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Principal is the authenticated caller as described by a session token.
// Name, Email and EmailVerified are cached claims and may be stale; purchase
// and verification checks must re-read the identity record.
type Principal struct {
	UserID        uuid.UUID
	Email         string
	Name          string
	EmailVerified bool
	ExpiresAt     time.Time
}

func (p Principal) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("user", p.UserID.String()),
		slog.String("email", p.Email),
	)
}

// contextKey is a value for use with context.WithValue. It's used as
// a pointer so it fits in an interface{} without allocation.
type contextKey struct {
	name string
}

func (k *contextKey) String() string {
	return "session context value " + k.name
}

var principalKey = &contextKey{"Principal"}

// WithPrincipal returns a copy of ctx carrying p
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// FromContext returns the principal stored by Middleware, or nil
func FromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey).(*Principal)
	return p
}
