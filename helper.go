// File: confgen/helper.go
package confgen

import "fmt"

// qualifiedKey builds a `<namespace>::<property>` lookup key.
func qualifiedKey(namespace, property string) string {
	return namespace + "::" + property
}

// componentKey namespaces a component property under the literal
// `component` token, as in `component::memcached`.
func componentKey(name string) string {
	return qualifiedKey("component", name)
}

// deepCopyValue copies maps and slices so merged results never alias layer
// data. Scalars are returned as-is.
func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		c := make(map[string]any, len(t))
		for k, e := range t {
			c[k] = deepCopyValue(e)
		}
		return c
	case []any:
		c := make([]any, len(t))
		for i, e := range t {
			c[i] = deepCopyValue(e)
		}
		return c
	default:
		return v
	}
}

// normalizeValue coerces map[any]any trees (as yaml.v3 produces for
// non-string keys) into map[string]any so merge and template layers see one
// shape regardless of the source format.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = normalizeValue(e)
		}
		return t
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[fmt.Sprintf("%v", k)] = normalizeValue(e)
		}
		return m
	case []any:
		for i, e := range t {
			t[i] = normalizeValue(e)
		}
		return t
	default:
		return v
	}
}

// isValidKeySegment checks if a property or entity name is a valid bare key
// part (A-Za-z0-9_-).
func isValidKeySegment(s string) bool {
	if len(s) == 0 {
		return false
	}
	for _, r := range s {
		isLetter := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		isDigit := r >= '0' && r <= '9'
		isUnderscore := r == '_'
		isDash := r == '-'

		if !(isLetter || isDigit || isUnderscore || isDash) {
			return false
		}
	}
	return true
}
