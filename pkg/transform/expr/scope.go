package expr

import (
	"fmt"
	"strconv"
	"strings"
)

// Scope resolves identifier paths referenced by expressions. Implementations
// decide whether an unknown name is forgiving (nil value) or a hard error;
// row scopes resolve missing fields to nil while binding scopes fail.
type Scope interface {
	Resolve(path string) (any, error)
}

// MapScope resolves dot paths against a nested map, preferring an exact
// match for dotted keys before traversing. Unknown names resolve to nil.
type MapScope map[string]any

func (s MapScope) Resolve(path string) (any, error) {
	value, _ := lookupMap(s, path)
	return value, nil
}

// PrefixScope strips a namespace prefix (e.g. "item.") before delegating,
// and also accepts the bare path so row fields stay addressable inside
// repeat regions.
type PrefixScope struct {
	Prefix string
	Next   Scope
}

func (s PrefixScope) Resolve(path string) (any, error) {
	if s.Next == nil {
		return nil, nil
	}
	if trimmed, ok := strings.CutPrefix(path, s.Prefix); ok {
		return s.Next.Resolve(trimmed)
	}
	return s.Next.Resolve(path)
}

func lookupMap(values map[string]any, path string) (any, bool) {
	if len(values) == 0 || strings.TrimSpace(path) == "" {
		return nil, false
	}
	path = strings.TrimSpace(path)

	if v, ok := values[path]; ok {
		return v, true
	}

	parts := strings.Split(path, ".")
	var current any = values
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, false
		}
		switch typed := current.(type) {
		case map[string]any:
			next, ok := typed[part]
			if !ok {
				return nil, false
			}
			current = next
		case map[string]string:
			next, ok := typed[part]
			if !ok {
				return nil, false
			}
			current = next
		default:
			return nil, false
		}
	}
	return current, true
}

// Truthy reports whether a value counts as true in boolean position.
func Truthy(value any) bool {
	if value == nil {
		return false
	}
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return strings.TrimSpace(v) != ""
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	case float32:
		return v != 0
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	default:
		return true
	}
}

// Number coerces a value to float64 where possible.
func Number(value any) (float64, bool) {
	if value == nil {
		return 0, false
	}
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Text coerces a value to its string form.
func Text(value any) string {
	if value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(value)
	}
}
