package vfs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalProvider serves plain paths and file:// URIs from the local
// filesystem. Local reads are never cached; freshness beats throughput for
// config and template files.
type LocalProvider struct{}

// NewLocalProvider creates a local filesystem provider.
func NewLocalProvider() *LocalProvider {
	return &LocalProvider{}
}

func localPath(path string) string {
	return strings.TrimPrefix(path, "file://")
}

// ReadFile implements FileProvider.
func (*LocalProvider) ReadFile(_ context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(localPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// FileExists implements FileProvider.
func (*LocalProvider) FileExists(_ context.Context, path string) (bool, error) {
	_, err := os.Stat(localPath(path))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// ListFiles implements FileProvider.
func (*LocalProvider) ListFiles(_ context.Context, dir, pattern string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(localPath(dir), pattern))
	if err != nil {
		return nil, fmt.Errorf("invalid glob %s: %w", pattern, err)
	}
	return matches, nil
}
