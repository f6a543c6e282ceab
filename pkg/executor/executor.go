// Package executor runs rendered SQL against the engine and converts result
// rows into the JSON tree served to clients.
package executor

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/datazoode/flapi/pkg/engine"
	"github.com/datazoode/flapi/pkg/engine/typeconv"
	"github.com/datazoode/flapi/pkg/errors"
)

// Executor converts engine results to JSON rows.
type Executor struct {
	engine   engine.Engine
	registry *typeconv.Registry
}

// New creates an executor over the engine with the default converter
// registry.
func New(eng engine.Engine) *Executor {
	return &Executor{engine: eng, registry: typeconv.Default()}
}

// NewWithRegistry creates an executor with an explicit registry.
func NewWithRegistry(eng engine.Engine, reg *typeconv.Registry) *Executor {
	return &Executor{engine: eng, registry: reg}
}

// Execute runs the rendered SQL with the parameter map and returns one JSON
// object per row, keyed by column name.
func (e *Executor) Execute(ctx context.Context, sql string, params map[string]any) ([]map[string]any, error) {
	rows, err := e.engine.Query(ctx, sql, params)
	if err != nil {
		return nil, errors.NewDatabaseError(firstLine(err.Error()), err)
	}
	defer rows.Close()

	var out []map[string]any
	cols := rows.Columns()
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, errors.NewDatabaseError(firstLine(err.Error()), err)
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[col.Name] = e.convert(col.TypeName, values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDatabaseError(firstLine(err.Error()), err)
	}
	return out, nil
}

// convert maps one engine value to its JSON representation. NULL becomes
// JSON null; registered converters win; complex types are handled inline;
// anything else falls back to stringification.
func (e *Executor) convert(typeName string, v any) any {
	if v == nil {
		return nil
	}
	if conv, ok := e.registry.Lookup(typeName); ok {
		return conv(v)
	}
	return convertComplex(typeName, v)
}

func convertComplex(typeName string, v any) any {
	base := typeName
	if i := strings.IndexByte(base, '('); i >= 0 {
		base = base[:i]
	}
	switch {
	case base == "DATE":
		if t, ok := v.(time.Time); ok {
			return t.Format("2006-01-02")
		}
	case base == "TIME":
		if t, ok := v.(time.Time); ok {
			return t.Format("15:04:05")
		}
	case strings.HasPrefix(base, "TIMESTAMP"):
		if t, ok := v.(time.Time); ok {
			return t.UTC().Format(time.RFC3339Nano)
		}
	case base == "INTERVAL":
		return fmt.Sprintf("%v", v)
	case base == "DECIMAL":
		switch n := v.(type) {
		case float64:
			return n
		case string:
			return stringToFloat(n)
		default:
			return stringToFloat(fmt.Sprintf("%v", v))
		}
	case base == "BLOB":
		if b, ok := v.([]byte); ok {
			return base64.StdEncoding.EncodeToString(b)
		}
	case base == "UUID" || base == "BIT":
		return fmt.Sprintf("%v", v)
	case strings.HasPrefix(base, "STRUCT") || strings.HasPrefix(base, "MAP"):
		if m, ok := v.(map[string]any); ok {
			return m
		}
	case strings.HasPrefix(base, "LIST") || strings.HasSuffix(base, "[]"):
		if l, ok := v.([]any); ok {
			return l
		}
	case base == "ENUM":
		return fmt.Sprintf("%v", v)
	}
	// Unknown type: stringify through the engine's representation.
	return fmt.Sprintf("%v", v)
}

func stringToFloat(s string) any {
	var f float64
	if _, err := fmt.Sscanf(s, "%g", &f); err != nil {
		return s
	}
	return f
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
