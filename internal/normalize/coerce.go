package normalize

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Sanitize returns a new map containing only the keys listed in allowed.
// Absent keys are simply omitted; it never fails.
func Sanitize(source map[string]any, allowed map[string]struct{}) map[string]any {
	out := make(map[string]any, len(allowed))
	for k, v := range source {
		if _, ok := allowed[k]; ok {
			out[k] = v
		}
	}
	return out
}

// decodeObject parses a JSON-encoded string into a map. A successful parse
// that yields anything other than an object is an error too; callers decide
// whether that means "empty map" or "skip this element".
func decodeObject(s string) (map[string]any, error) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, fmt.Errorf("decoding nested JSON: %w", err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("nested JSON is %T, not an object", v)
	}
	return m, nil
}

// CoerceToMap turns a value that may be a map, a JSON-encoded string, or
// absent into a map. Malformed input degrades to an empty map rather than
// an error: partial enrichment beats a failed pipeline here.
func CoerceToMap(v any) map[string]any {
	switch t := v.(type) {
	case nil:
		return map[string]any{}
	case map[string]any:
		return t
	case string:
		m, err := decodeObject(t)
		if err != nil {
			return map[string]any{}
		}
		return m
	default:
		return map[string]any{}
	}
}

// optString extracts an optional string field, tolerating absence and
// non-string noise. Empty strings count as absent so fallback keys get a
// chance.
func optString(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// optFloat extracts an optional numeric field. Models drift between JSON
// numbers and numeric strings, so both are accepted.
func optFloat(v any) *float64 {
	switch t := v.(type) {
	case float64:
		return &t
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return &f
		}
		return nil
	case int:
		f := float64(t)
		return &f
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return &f
		}
		return nil
	default:
		return nil
	}
}

// optBool extracts an optional boolean field, accepting the string forms
// models occasionally emit.
func optBool(v any) *bool {
	switch t := v.(type) {
	case bool:
		return &t
	case string:
		if b, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(t))); err == nil {
			return &b
		}
		return nil
	default:
		return nil
	}
}

// optStrings extracts an optional list of strings, keeping only string
// elements.
func optStrings(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	default:
		return nil
	}
}
