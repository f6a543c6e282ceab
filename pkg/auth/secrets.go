package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/datazoode/flapi/pkg/config"
	"github.com/datazoode/flapi/pkg/engine"
	"github.com/datazoode/flapi/pkg/logger"
	"github.com/datazoode/flapi/pkg/vfs"
)

// secretUsers is the JSON blob shape stored in an external secret store.
type secretUsers struct {
	Users []config.UserConfig `json:"users"`
}

// SecretsStore holds basic-auth users pulled from external secret stores,
// keyed by secret name. The users are also persisted into the engine's local
// secrets table so operators can inspect what was bootstrapped.
type SecretsStore struct {
	mu    sync.RWMutex
	users map[string]map[string]config.UserConfig // secret name -> username -> user
}

// NewSecretsStore creates an empty store.
func NewSecretsStore() *SecretsStore {
	return &SecretsStore{users: map[string]map[string]config.UserConfig{}}
}

// LookupUser implements UserStore.
func (s *SecretsStore) LookupUser(_ context.Context, secretName, username string) (*config.UserConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byName, ok := s.users[secretName]
	if !ok {
		return nil, fmt.Errorf("secret %s was not bootstrapped", secretName)
	}
	u, ok := byName[username]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

// put installs the users for one secret, replacing any prior set.
func (s *SecretsStore) put(secretName string, users []config.UserConfig) {
	byName := make(map[string]config.UserConfig, len(users))
	for _, u := range users {
		byName[u.Username] = u
	}
	s.mu.Lock()
	s.users[secretName] = byName
	s.mu.Unlock()
}

// Bootstrap resolves every endpoint's external secret reference: the engine's
// secret catalog supplies the blob location, the VFS fetches the JSON user
// blob, and the users land in the store plus the engine's local secrets
// table. Runs once before serving.
func Bootstrap(ctx context.Context, store *SecretsStore, eng engine.Engine, files vfs.FileProvider, eps []*config.EndpointConfig) error {
	seen := map[string]bool{}
	for _, ep := range eps {
		name := ep.Auth.FromSecret
		if !ep.Auth.Enabled || name == "" || seen[name] {
			continue
		}
		seen[name] = true

		secret, err := eng.SecretCatalog().GetSecret(ctx, name)
		if err != nil {
			return fmt.Errorf("external secret %s: %w", name, err)
		}
		path := secret.Options["path"]
		if path == "" {
			return fmt.Errorf("external secret %s carries no path option", name)
		}

		blob, err := files.ReadFile(ctx, path)
		if err != nil {
			return fmt.Errorf("external secret %s: failed to fetch %s: %w", name, path, err)
		}
		var parsed secretUsers
		if err := json.Unmarshal(blob, &parsed); err != nil {
			return fmt.Errorf("external secret %s: invalid user blob: %w", name, err)
		}

		store.put(name, parsed.Users)
		if err := persistUsers(ctx, eng, name, parsed.Users); err != nil {
			return err
		}
		logger.Infof("bootstrapped %d basic-auth users from external secret %s", len(parsed.Users), name)
	}
	return nil
}

// persistUsers mirrors the bootstrapped users into the local secrets table.
// Passwords are stored as received; the blob already carries hashes.
func persistUsers(ctx context.Context, eng engine.Engine, secretName string, users []config.UserConfig) error {
	ddl := []string{
		"CREATE SCHEMA IF NOT EXISTS flapi_secrets",
		`CREATE TABLE IF NOT EXISTS flapi_secrets.basic_auth_users (
			secret_name VARCHAR, username VARCHAR, password VARCHAR, roles VARCHAR)`,
	}
	for _, stmt := range ddl {
		if err := eng.Exec(ctx, stmt, nil); err != nil {
			return fmt.Errorf("failed to prepare local secrets table: %w", err)
		}
	}
	err := eng.Exec(ctx,
		"DELETE FROM flapi_secrets.basic_auth_users WHERE secret_name = $secret_name",
		map[string]any{"secret_name": secretName})
	if err != nil {
		return fmt.Errorf("failed to reset local secrets table: %w", err)
	}
	for _, u := range users {
		roles, _ := json.Marshal(u.Roles)
		err := eng.Exec(ctx,
			`INSERT INTO flapi_secrets.basic_auth_users VALUES ($secret_name, $username, $password, $roles)`,
			map[string]any{
				"secret_name": secretName,
				"username":    u.Username,
				"password":    u.Password,
				"roles":       string(roles),
			})
		if err != nil {
			return fmt.Errorf("failed to persist user %s: %w", u.Username, err)
		}
	}
	return nil
}
