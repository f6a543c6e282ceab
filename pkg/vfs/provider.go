// Package vfs provides the scheme-aware file abstraction over local paths and
// remote object storage, with an optional caching decorator.
package vfs

import (
	"context"
	"strings"
)

// FileProvider reads files from one storage backend. Implementations must be
// safe for concurrent use.
type FileProvider interface {
	// ReadFile returns the full content of the file at path.
	ReadFile(ctx context.Context, path string) ([]byte, error)
	// FileExists reports whether the file at path exists.
	FileExists(ctx context.Context, path string) (bool, error)
	// ListFiles returns the paths under dir matching the glob pattern.
	ListFiles(ctx context.Context, dir, pattern string) ([]string, error)
}

// remoteSchemes are the URI schemes the VFS treats as remote storage.
var remoteSchemes = []string{"s3://", "gs://", "az://", "azure://", "http://", "https://"}

// IsRemotePath reports whether path names a remote backend.
func IsRemotePath(path string) bool {
	for _, scheme := range remoteSchemes {
		if strings.HasPrefix(path, scheme) {
			return true
		}
	}
	return false
}

// Scheme returns the URI scheme of path ("" for plain local paths; "file" for
// file:// URIs).
func Scheme(path string) string {
	i := strings.Index(path, "://")
	if i < 0 {
		return ""
	}
	return path[:i]
}

// StripScheme removes "<scheme>://" from path, returning bucket/key style
// remainder.
func StripScheme(path string) string {
	i := strings.Index(path, "://")
	if i < 0 {
		return path
	}
	return path[i+3:]
}

// SplitBucketKey splits "bucket/some/key" into its bucket and key parts.
func SplitBucketKey(rest string) (bucket, key string) {
	i := strings.IndexByte(rest, '/')
	if i < 0 {
		return rest, ""
	}
	return rest[:i], rest[i+1:]
}
