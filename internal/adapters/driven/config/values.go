// Package config holds value coercion shared by the ConfigStore implementations.
//
// Values arrive typed from TOML (int64, float64, bool) or as raw strings from
// the settings command line, so every getter accepts both forms.
package config

import (
	"strconv"
	"strings"
)

// String returns v as a string. Scalars are formatted; other types yield "".
func String(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// Int returns v as an int, or 0 if it is not numeric.
func Int(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return int(f)
		}
	}
	return 0
}

// Float returns v as a float64, or 0 if it is not numeric.
func Float(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return f
		}
	}
	return 0
}

// Bool returns v as a bool. Strings accept the forms strconv.ParseBool does.
func Bool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		return err == nil && b
	}
	return false
}

// StringSlice returns v as a string slice. A comma separated string is split.
func StringSlice(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		result := make([]string, 0, len(t))
		for _, item := range t {
			if str, ok := item.(string); ok {
				result = append(result, str)
			}
		}
		return result
	case string:
		if strings.TrimSpace(t) == "" {
			return nil
		}
		parts := strings.Split(t, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				result = append(result, p)
			}
		}
		return result
	}
	return nil
}

// Flatten converts nested maps to dot-notation keys.
// E.g., {"a": {"b": 1}} becomes {"a.b": 1}.
func Flatten(m map[string]any) map[string]any {
	result := make(map[string]any)
	flattenInto(result, m, "")
	return result
}

func flattenInto(dst, m map[string]any, prefix string) {
	for key, value := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if nested, ok := value.(map[string]any); ok {
			flattenInto(dst, nested, fullKey)
			continue
		}
		dst[fullKey] = value
	}
}

// Nest is the inverse of Flatten. A key that is both a value and a table
// prefix keeps the table; the scalar is dropped.
func Nest(flat map[string]any) map[string]any {
	result := make(map[string]any)
	for key, value := range flat {
		parts := strings.Split(key, ".")
		node := result
		for _, p := range parts[:len(parts)-1] {
			child, ok := node[p].(map[string]any)
			if !ok {
				child = make(map[string]any)
				node[p] = child
			}
			node = child
		}
		leaf := parts[len(parts)-1]
		if _, isTable := node[leaf].(map[string]any); isTable {
			continue
		}
		node[leaf] = value
	}
	return result
}
