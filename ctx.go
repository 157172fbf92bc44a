package auth

import (
	"context"

	"github.com/goliatone/go-router"
)

// IdentityLocalsKey is the router locals key holding the *RequestIdentity.
const IdentityLocalsKey = "identity"

var identityCtxKey = &contextKey{"identity"}
var statusCtxKey = &contextKey{"auth_status"}

type contextKey struct {
	name string
}

// WithIdentity sets the identity in the given context
func WithIdentity(ctx context.Context, identity *RequestIdentity) context.Context {
	return context.WithValue(ctx, identityCtxKey, identity)
}

// IdentityFromContext finds the identity in the context.
func IdentityFromContext(ctx context.Context) (*RequestIdentity, bool) {
	if ctx == nil {
		return nil, false
	}
	identity, ok := ctx.Value(identityCtxKey).(*RequestIdentity)
	return identity, ok && identity != nil
}

// WithAuthStatus records the gate outcome in the context.
func WithAuthStatus(ctx context.Context, status AuthStatus) context.Context {
	return context.WithValue(ctx, statusCtxKey, status)
}

// AuthStatusFromContext returns the gate outcome, ANONYMOUS when unset.
func AuthStatusFromContext(ctx context.Context) AuthStatus {
	if ctx == nil {
		return StatusAnonymous
	}
	if status, ok := ctx.Value(statusCtxKey).(AuthStatus); ok {
		return status
	}
	return StatusAnonymous
}

// IdentityFromRouter finds the identity in router locals, falling back to
// the request context.
func IdentityFromRouter(ctx router.Context) (*RequestIdentity, bool) {
	if identity, ok := ctx.Locals(IdentityLocalsKey).(*RequestIdentity); ok && identity != nil {
		return identity, true
	}
	return IdentityFromContext(ctx.Context())
}
