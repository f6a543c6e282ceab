package auth

import (
	"context"
	"crypto/md5" //nolint:gosec // legacy hash compatibility, see AllowLegacyHashes
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/datazoode/flapi/pkg/config"
)

// UserStore looks up externally provisioned basic-auth users. The auth
// middleware persists users pulled from an external secret store here.
type UserStore interface {
	LookupUser(ctx context.Context, secretName, username string) (*config.UserConfig, error)
}

// BasicAuthenticator verifies Basic credentials against inline users and an
// optional external user store.
type BasicAuthenticator struct {
	cfg   *config.AuthConfig
	store UserStore
	now   func() time.Time
}

// NewBasicAuthenticator creates an authenticator for one endpoint's config.
// store may be nil when no external secret reference is configured.
func NewBasicAuthenticator(cfg *config.AuthConfig, store UserStore) *BasicAuthenticator {
	return &BasicAuthenticator{cfg: cfg, store: store, now: time.Now}
}

// Authenticate parses the Authorization header value and verifies the
// credentials. A nil AuthContext means the credentials were rejected.
func (b *BasicAuthenticator) Authenticate(ctx context.Context, authorization string) *AuthContext {
	const prefix = "Basic "
	if !strings.HasPrefix(authorization, prefix) {
		return nil
	}
	decoded, err := base64.StdEncoding.DecodeString(authorization[len(prefix):])
	if err != nil {
		return nil
	}
	username, password, found := strings.Cut(string(decoded), ":")
	if !found {
		return nil
	}

	// Inline users win over the external store.
	for i := range b.cfg.Users {
		u := &b.cfg.Users[i]
		if u.Username == username {
			if b.verifyPassword(password, u.Password) {
				return &AuthContext{
					Authenticated: true,
					Username:      username,
					Roles:         u.Roles,
					AuthType:      "basic",
					AuthTime:      b.now(),
				}
			}
			return nil
		}
	}

	if b.cfg.FromSecret != "" && b.store != nil {
		u, err := b.store.LookupUser(ctx, b.cfg.FromSecret, username)
		if err == nil && u != nil && b.verifyPassword(password, u.Password) {
			return &AuthContext{
				Authenticated: true,
				Username:      username,
				Roles:         u.Roles,
				AuthType:      "basic",
				AuthTime:      b.now(),
			}
		}
	}
	return nil
}

// verifyPassword accepts bcrypt hashes always, and plaintext or 32-hex MD5
// stored values on the legacy compatibility path.
func (b *BasicAuthenticator) verifyPassword(presented, stored string) bool {
	if strings.HasPrefix(stored, "$2a$") || strings.HasPrefix(stored, "$2b$") || strings.HasPrefix(stored, "$2y$") {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(presented)) == nil
	}
	if !b.cfg.LegacyHashesAllowed() {
		return false
	}
	if isMD5Hex(stored) {
		sum := md5.Sum([]byte(presented)) //nolint:gosec // legacy compatibility
		return subtle.ConstantTimeCompare([]byte(hex.EncodeToString(sum[:])), []byte(stored)) == 1
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(stored)) == 1
}

// isMD5Hex reports whether s is a 32-character lowercase hex string.
func isMD5Hex(s string) bool {
	if len(s) != 32 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
