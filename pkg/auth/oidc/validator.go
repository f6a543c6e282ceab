package oidc

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/datazoode/flapi/pkg/config"
	"github.com/datazoode/flapi/pkg/logger"
)

// DefaultClockSkew tolerates clock drift between the gateway and providers.
const DefaultClockSkew = 300 * time.Second

// Claims is the validated token payload with configured claims extracted.
type Claims struct {
	Subject   string
	Username  string
	Email     string
	Roles     []string
	Groups    []string
	JTI       string
	ExpiresAt time.Time
	Raw       map[string]any
}

// TokenValidator verifies RS256/RS384/RS512 tokens against a provider's
// published keys.
type TokenValidator struct {
	discovery *DiscoveryClient
	jwks      *JWKSManager
	now       func() time.Time
}

// NewTokenValidator wires the discovery client and JWKS manager together.
func NewTokenValidator(discovery *DiscoveryClient, jwks *JWKSManager) *TokenValidator {
	return &TokenValidator{discovery: discovery, jwks: jwks, now: time.Now}
}

// Validate verifies the raw token against cfg and extracts the configured
// claims. All failures are returned as errors; callers map them to a single
// authentication failure.
func (v *TokenValidator) Validate(ctx context.Context, rawToken string, cfg *config.OIDCConfig) (*Claims, error) {
	doc, err := v.discovery.Discover(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("provider discovery failed: %w", err)
	}

	skew := DefaultClockSkew
	if cfg.ClockSkewSeconds > 0 {
		skew = time.Duration(cfg.ClockSkewSeconds) * time.Second
	}

	token, err := jwt.Parse(rawToken, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("token header missing kid")
		}
		return v.jwks.GetKey(ctx, kid, doc.JWKSURI)
	},
		jwt.WithValidMethods([]string{"RS256", "RS384", "RS512"}),
		jwt.WithTimeFunc(v.now),
		jwt.WithLeeway(skew),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("token verification failed: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("unexpected claims type")
	}

	if iss, _ := claims.GetIssuer(); iss != cfg.Issuer {
		return nil, fmt.Errorf("issuer mismatch: %s", iss)
	}
	if err := checkAudience(claims, cfg.AllowedAudiences); err != nil {
		return nil, err
	}

	return extractClaims(claims, cfg), nil
}

// checkAudience passes when at least one audience value appears in the allow
// list, or when the list is empty. The permissive empty-list default is
// intentional and documented on the config type.
func checkAudience(claims jwt.MapClaims, allowed []string) error {
	if len(allowed) == 0 {
		return nil
	}
	audiences, err := claims.GetAudience()
	if err != nil {
		return fmt.Errorf("invalid audience claim: %w", err)
	}
	for _, aud := range audiences {
		for _, a := range allowed {
			if aud == a {
				return nil
			}
		}
	}
	return fmt.Errorf("audience not allowed")
}

func extractClaims(claims jwt.MapClaims, cfg *config.OIDCConfig) *Claims {
	out := &Claims{Raw: claims}

	out.Subject, _ = claims.GetSubject()
	out.Username = stringClaim(claims, cfg.EffectiveUsernameClaim())
	if out.Username == "" {
		out.Username = out.Subject
	}

	emailClaim := cfg.EmailClaim
	if emailClaim == "" {
		emailClaim = "email"
	}
	out.Email = stringClaim(claims, emailClaim)

	// The dotted role path wins; the flat roles claim is the fallback.
	if cfg.RoleClaimPath != "" {
		out.Roles = sliceAtPath(claims, cfg.RoleClaimPath)
	}
	if len(out.Roles) == 0 {
		rolesClaim := cfg.RolesClaim
		if rolesClaim == "" {
			rolesClaim = "roles"
		}
		out.Roles = sliceClaim(claims, rolesClaim)
	}

	groupsClaim := cfg.GroupsClaim
	if groupsClaim == "" {
		groupsClaim = "groups"
	}
	out.Groups = sliceClaim(claims, groupsClaim)

	out.JTI = stringClaim(claims, "jti")
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}

	if out.Username == "" {
		logger.Warnf("token validated but username claim %q is empty", cfg.EffectiveUsernameClaim())
	}
	return out
}

func stringClaim(claims jwt.MapClaims, name string) string {
	s, _ := claims[name].(string)
	return s
}

func sliceClaim(claims jwt.MapClaims, name string) []string {
	return anyToStrings(claims[name])
}

// sliceAtPath traverses dotted nesting such as "realm_access.roles".
func sliceAtPath(claims jwt.MapClaims, path string) []string {
	var node any = map[string]any(claims)
	for _, part := range strings.Split(path, ".") {
		m, ok := node.(map[string]any)
		if !ok {
			return nil
		}
		node = m[part]
	}
	return anyToStrings(node)
}

func anyToStrings(v any) []string {
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
