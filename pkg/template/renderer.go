// Package template defines the SQL template rendering contract consumed by
// the REST, MCP and cache paths. The full template language lives outside the
// request-serving core; the default renderer covers plain parameter
// substitution.
package template

import (
	"fmt"
	"regexp"
	"strings"
)

// Renderer renders a SQL template source with a parameter map.
type Renderer interface {
	Render(source string, params map[string]any) (string, error)
}

var placeholderRe = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_.]*)\s*\}\}`)

// DefaultRenderer substitutes {{ name }} placeholders with parameter values.
// Unknown placeholders are an error so template typos surface at render time
// rather than as engine syntax errors.
type DefaultRenderer struct{}

// NewDefaultRenderer creates the substitution renderer.
func NewDefaultRenderer() *DefaultRenderer {
	return &DefaultRenderer{}
}

// Render implements Renderer.
func (*DefaultRenderer) Render(source string, params map[string]any) (string, error) {
	var missing []string
	out := placeholderRe.ReplaceAllStringFunc(source, func(match string) string {
		name := placeholderRe.FindStringSubmatch(match)[1]
		v, ok := params[name]
		if !ok {
			missing = append(missing, name)
			return match
		}
		return fmt.Sprintf("%v", v)
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("template references undefined parameters: %s", strings.Join(missing, ", "))
	}
	return out, nil
}
