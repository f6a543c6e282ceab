package vfs

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// PathValidator normalizes user-supplied paths and rejects traversal
// attempts before they reach any file provider.
type PathValidator struct {
	// AllowedSchemes whitelists remote URI schemes. Defaults to file and
	// https.
	AllowedSchemes []string
	// AllowedPrefixes confines local paths when non-empty.
	AllowedPrefixes []string
	// ResolveSymlinks computes the filesystem real path before the prefix
	// check.
	ResolveSymlinks bool
}

// NewPathValidator creates a validator with the default scheme whitelist.
func NewPathValidator() *PathValidator {
	return &PathValidator{AllowedSchemes: []string{"file", "https"}}
}

// Validate decodes, normalizes and confines userPath. Relative local paths
// are resolved against basePath, which is required in that case.
func (v *PathValidator) Validate(userPath, basePath string) (string, error) {
	decoded, err := iterativeDecode(userPath)
	if err != nil {
		return "", fmt.Errorf("invalid path encoding: %w", err)
	}

	normalized := normalize(decoded)
	if hasTraversalSegment(normalized) {
		return "", fmt.Errorf("path traversal detected in %q", userPath)
	}

	if scheme := Scheme(normalized); scheme != "" {
		if !v.schemeAllowed(scheme) {
			return "", fmt.Errorf("scheme %s:// is not allowed", scheme)
		}
		return normalized, nil
	}

	resolved := normalized
	if !filepath.IsAbs(resolved) {
		if basePath == "" {
			return "", fmt.Errorf("relative path %q requires a base path", userPath)
		}
		resolved = normalize(basePath) + "/" + resolved
		resolved = strings.ReplaceAll(resolved, "//", "/")
	}
	if v.ResolveSymlinks {
		real, err := filepath.EvalSymlinks(resolved)
		if err == nil {
			resolved = normalize(real)
		}
	}

	if len(v.AllowedPrefixes) > 0 {
		contained := false
		for _, prefix := range v.AllowedPrefixes {
			if strings.HasPrefix(resolved, normalize(prefix)) {
				contained = true
				break
			}
		}
		if !contained {
			return "", fmt.Errorf("path %q escapes the allowed directories", userPath)
		}
	}

	return resolved, nil
}

func (v *PathValidator) schemeAllowed(scheme string) bool {
	for _, s := range v.AllowedSchemes {
		if strings.EqualFold(s, scheme) {
			return true
		}
	}
	return false
}

// iterativeDecode URL-decodes up to three times, catching multi-level
// encodings of traversal sequences. Decoding stops early at a fixed point.
func iterativeDecode(s string) (string, error) {
	for i := 0; i < 3; i++ {
		decoded, err := url.QueryUnescape(s)
		if err != nil {
			return "", err
		}
		if decoded == s {
			return s, nil
		}
		s = decoded
	}
	return s, nil
}

// normalize converts backslashes to forward slashes and collapses runs of
// slashes, keeping a scheme's "//" intact.
func normalize(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	var scheme string
	if i := strings.Index(p, "://"); i >= 0 {
		scheme = p[:i+3]
		p = p[i+3:]
	}
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	return scheme + p
}

// hasTraversalSegment reports whether ".." appears as a complete path
// segment anywhere in p.
func hasTraversalSegment(p string) bool {
	rest := p
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	for _, seg := range strings.Split(rest, "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}
