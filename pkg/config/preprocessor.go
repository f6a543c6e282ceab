package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Preprocessor resolves include directives and environment substitutions in
// YAML sources before they are decoded into config structs. The config loader
// consumes this contract; the request path never touches it.
type Preprocessor interface {
	// Process reads the file at path and returns the parsed tree with all
	// {{include[:section] from path [if cond]}} directives resolved and
	// {{env.VAR}} substitutions performed.
	Process(path string) (map[string]any, error)
}

var (
	includeRe = regexp.MustCompile(`^\{\{\s*include(?::([A-Za-z0-9_.-]+))?\s+from\s+(\S+)(?:\s+if\s+(\S+))?\s*\}\}$`)
	envRe     = regexp.MustCompile(`\{\{\s*env\.([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)
)

// ExtendedPreprocessor implements Preprocessor with recursive include
// resolution, circular-inclusion detection and a whitelist of environment
// variable name patterns.
type ExtendedPreprocessor struct {
	// EnvWhitelist holds regex patterns; an {{env.VAR}} reference whose name
	// matches none of them is an error.
	EnvWhitelist []*regexp.Regexp

	readFile func(string) ([]byte, error)
}

// NewExtendedPreprocessor creates a preprocessor with the given whitelist
// patterns. An empty whitelist rejects all env substitutions.
func NewExtendedPreprocessor(patterns []string) (*ExtendedPreprocessor, error) {
	p := &ExtendedPreprocessor{readFile: os.ReadFile}
	for _, pat := range patterns {
		re, err := regexp.Compile(pat)
		if err != nil {
			return nil, fmt.Errorf("invalid env whitelist pattern %q: %w", pat, err)
		}
		p.EnvWhitelist = append(p.EnvWhitelist, re)
	}
	return p, nil
}

// Process implements Preprocessor.
func (p *ExtendedPreprocessor) Process(path string) (map[string]any, error) {
	return p.process(path, map[string]bool{})
}

func (p *ExtendedPreprocessor) process(path string, visiting map[string]bool) (map[string]any, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if visiting[abs] {
		return nil, fmt.Errorf("circular include detected at %s", path)
	}
	visiting[abs] = true
	defer delete(visiting, abs)

	raw, err := p.readFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	substituted, err := p.substituteEnv(string(raw))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var tree map[string]any
	if err := yaml.Unmarshal([]byte(substituted), &tree); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	resolved, err := p.resolveNode(tree, filepath.Dir(path), visiting)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	tree, _ = resolved.(map[string]any)
	return tree, nil
}

// resolveNode walks the tree replacing include-directive strings with the
// included content.
func (p *ExtendedPreprocessor) resolveNode(node any, baseDir string, visiting map[string]bool) (any, error) {
	switch n := node.(type) {
	case map[string]any:
		out := make(map[string]any, len(n))
		for k, v := range n {
			rv, err := p.resolveNode(v, baseDir, visiting)
			if err != nil {
				return nil, err
			}
			out[k] = rv
		}
		return out, nil
	case []any:
		out := make([]any, 0, len(n))
		for _, v := range n {
			rv, err := p.resolveNode(v, baseDir, visiting)
			if err != nil {
				return nil, err
			}
			out = append(out, rv)
		}
		return out, nil
	case string:
		m := includeRe.FindStringSubmatch(strings.TrimSpace(n))
		if m == nil {
			return n, nil
		}
		section, includePath, cond := m[1], m[2], m[3]
		if cond != "" {
			ok, err := evalCondition(cond)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, nil
			}
		}
		if !filepath.IsAbs(includePath) {
			includePath = filepath.Join(baseDir, includePath)
		}
		included, err := p.process(includePath, visiting)
		if err != nil {
			return nil, err
		}
		if section == "" {
			return included, nil
		}
		sub, ok := included[section]
		if !ok {
			return nil, fmt.Errorf("include section %q not found in %s", section, includePath)
		}
		return sub, nil
	default:
		return node, nil
	}
}

// evalCondition evaluates "true", "false", "env.VAR" and "!env.VAR".
func evalCondition(cond string) (bool, error) {
	negate := false
	if strings.HasPrefix(cond, "!") {
		negate = true
		cond = cond[1:]
	}
	var v bool
	switch {
	case cond == "true":
		v = true
	case cond == "false":
		v = false
	case strings.HasPrefix(cond, "env."):
		v = os.Getenv(strings.TrimPrefix(cond, "env.")) != ""
	default:
		return false, fmt.Errorf("unsupported include condition %q", cond)
	}
	if negate {
		v = !v
	}
	return v, nil
}

func (p *ExtendedPreprocessor) substituteEnv(text string) (string, error) {
	var firstErr error
	out := envRe.ReplaceAllStringFunc(text, func(match string) string {
		name := envRe.FindStringSubmatch(match)[1]
		if !p.envAllowed(name) {
			if firstErr == nil {
				firstErr = fmt.Errorf("environment variable %s is not whitelisted", name)
			}
			return match
		}
		return os.Getenv(name)
	})
	return out, firstErr
}

func (p *ExtendedPreprocessor) envAllowed(name string) bool {
	for _, re := range p.EnvWhitelist {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}
