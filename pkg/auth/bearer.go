package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/datazoode/flapi/pkg/config"
)

// BearerAuthenticator verifies HS256 JWTs against a shared secret and issuer.
type BearerAuthenticator struct {
	cfg *config.AuthConfig
	now func() time.Time
}

// NewBearerAuthenticator creates an authenticator for one endpoint's config.
func NewBearerAuthenticator(cfg *config.AuthConfig) *BearerAuthenticator {
	return &BearerAuthenticator{cfg: cfg, now: time.Now}
}

// Authenticate parses the Authorization header value. A nil result means the
// token was rejected.
func (b *BearerAuthenticator) Authenticate(authorization string) *AuthContext {
	const prefix = "Bearer "
	if !strings.HasPrefix(authorization, prefix) {
		return nil
	}
	tokenString := authorization[len(prefix):]

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(b.now),
	}
	if b.cfg.JWTIssuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(b.cfg.JWTIssuer))
	}

	token, err := jwt.Parse(tokenString, func(*jwt.Token) (any, error) {
		return []byte(b.cfg.JWTSecret), nil
	}, parserOpts...)
	if err != nil || !token.Valid {
		return nil
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil
	}
	sub, _ := claims.GetSubject()
	if sub == "" {
		return nil
	}

	return &AuthContext{
		Authenticated: true,
		Username:      sub,
		Roles:         stringSlice(claims["roles"]),
		AuthType:      "bearer",
		AuthTime:      b.now(),
	}
}

// stringSlice coerces a claim value into a string slice, tolerating the
// []any shape JSON decoding produces.
func stringSlice(v any) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, e := range s {
			if str, ok := e.(string); ok {
				out = append(out, str)
			}
		}
		return out
	case string:
		if s == "" {
			return nil
		}
		return []string{s}
	default:
		return nil
	}
}
