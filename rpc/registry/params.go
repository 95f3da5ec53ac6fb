package registry

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"unicode"
)

// --------------------------------------------------------------------------
// Parameter container normalization
// --------------------------------------------------------------------------

// DecodeParams turns a raw JSON parameter container into a uniform
// key-value map. A nil or empty container yields an empty map; anything
// that is not a JSON object is an error.
func DecodeParams(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var params map[string]any
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, fmt.Errorf("parameters must be a JSON object: %v", err)
	}
	if params == nil {
		params = map[string]any{}
	}
	return params, nil
}

// NormalizeKeys converts the top-level keys of a wire parameter map from
// the caller convention (snake_case) to the handler convention
// (camelCase). Keys that contain no underscore pass through unchanged, so
// callers already using camelCase are unaffected.
func NormalizeKeys(params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[SnakeToCamel(k)] = v
	}
	return out
}

// --------------------------------------------------------------------------
// Casing transform
// --------------------------------------------------------------------------

// SnakeToCamel converts snake_case to camelCase: every underscore is
// dropped and the following letter upper-cased ("max_logs" -> "maxLogs").
// The transform is deterministic and CamelToSnake reverses it exactly for
// names made of lower-case words separated by single underscores, the
// only shape the wire convention produces.
func SnakeToCamel(s string) string {
	if !strings.Contains(s, "_") {
		return s
	}

	var sb strings.Builder
	sb.Grow(len(s))
	upperNext := false
	for _, r := range s {
		if r == '_' {
			upperNext = true
			continue
		}
		if upperNext {
			sb.WriteRune(unicode.ToUpper(r))
			upperNext = false
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// CamelToSnake converts camelCase to snake_case: an underscore is
// inserted before every upper-case letter, which is then lower-cased
// ("maxLogs" -> "max_logs").
func CamelToSnake(s string) string {
	var sb strings.Builder
	sb.Grow(len(s) + 4)
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				sb.WriteByte('_')
			}
			sb.WriteRune(unicode.ToLower(r))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// --------------------------------------------------------------------------
// Type coercion
// --------------------------------------------------------------------------

// Coerce adapts a decoded JSON value to a declared parameter type tag.
// JSON numbers always decode as float64; integer tags accept them when
// they carry no fractional part. The tag "any" (or an empty tag) accepts
// everything.
func Coerce(declaredType string, v any) (any, error) {
	switch declaredType {
	case "", "any":
		return v, nil
	case "string":
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", v)
		}
		return s, nil
	case "int", "integer":
		switch n := v.(type) {
		case float64:
			if n != math.Trunc(n) {
				return nil, fmt.Errorf("expected integer, got %v", n)
			}
			return int(n), nil
		case int:
			return n, nil
		}
		return nil, fmt.Errorf("expected integer, got %T", v)
	case "float", "number":
		switch n := v.(type) {
		case float64:
			return n, nil
		case int:
			return float64(n), nil
		}
		return nil, fmt.Errorf("expected number, got %T", v)
	case "bool", "boolean":
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("expected boolean, got %T", v)
		}
		return b, nil
	case "object":
		m, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expected object, got %T", v)
		}
		return m, nil
	case "array":
		a, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("expected array, got %T", v)
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unknown parameter type tag '%s'", declaredType)
	}
}
