// Package auth provides the authentication middleware and the basic, bearer
// and OIDC authenticators guarding REST endpoints.
package auth

import (
	"context"
	"fmt"
	"time"
)

// AuthContext is the per-principal record of identity carried through a
// request or bound to an MCP session. It is immutable after creation.
type AuthContext struct {
	Authenticated bool
	Username      string
	Email         string
	Roles         []string
	Groups        []string
	// AuthType is "basic", "bearer" or "oidc".
	AuthType string
	AuthTime time.Time

	// OIDC token binding.
	TokenJTI       string
	TokenExpiresAt time.Time
	RefreshToken   string
}

// HasRole reports whether the principal carries the role.
func (a *AuthContext) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// NeedsTokenRefresh reports whether an OIDC-bound context is within five
// minutes of token expiry.
func (a *AuthContext) NeedsTokenRefresh(now time.Time) bool {
	if a.TokenExpiresAt.IsZero() {
		return false
	}
	return !now.Before(a.TokenExpiresAt.Add(-5 * time.Minute))
}

// IsTokenExpired reports whether the bound token has expired.
func (a *AuthContext) IsTokenExpired(now time.Time) bool {
	if a.TokenExpiresAt.IsZero() {
		return false
	}
	return now.After(a.TokenExpiresAt)
}

// String renders the context without secrets.
func (a *AuthContext) String() string {
	if a == nil {
		return "<nil>"
	}
	return fmt.Sprintf("AuthContext{Username:%q, AuthType:%q, Authenticated:%t}",
		a.Username, a.AuthType, a.Authenticated)
}

// authContextKey keys the AuthContext in a request context. An empty struct
// type cannot collide with keys from other packages.
type authContextKey struct{}

// WithAuthContext stores an AuthContext in the context.
func WithAuthContext(ctx context.Context, ac *AuthContext) context.Context {
	if ac == nil {
		return ctx
	}
	return context.WithValue(ctx, authContextKey{}, ac)
}

// FromContext retrieves the AuthContext, if any.
func FromContext(ctx context.Context) (*AuthContext, bool) {
	ac, ok := ctx.Value(authContextKey{}).(*AuthContext)
	return ac, ok
}
