package registry

// Typed accessors for validated parameter maps. Validation normalizes all
// numbers to float64 and all sequences to []any, so these helpers only need
// to handle that shape plus the raw types a caller may hand in directly.

// StringParam returns the named parameter as a string, or fallback.
func StringParam(params map[string]any, name, fallback string) string {
	if v, ok := params[name].(string); ok {
		return v
	}
	return fallback
}

// FloatParam returns the named parameter as a float64, or fallback.
func FloatParam(params map[string]any, name string, fallback float64) float64 {
	switch v := params[name].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return fallback
}

// IntParam returns the named parameter as an int, or fallback.
func IntParam(params map[string]any, name string, fallback int) int {
	switch v := params[name].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return fallback
}

// BoolParam returns the named parameter as a bool, or fallback.
func BoolParam(params map[string]any, name string, fallback bool) bool {
	if v, ok := params[name].(bool); ok {
		return v
	}
	return fallback
}

// SliceParam returns the named parameter as a []any, or nil.
func SliceParam(params map[string]any, name string) []any {
	if v, ok := params[name].([]any); ok {
		return v
	}
	return nil
}

// StringSliceParam returns the named parameter as a []string, dropping
// non-string elements.
func StringSliceParam(params map[string]any, name string) []string {
	raw := SliceParam(params, name)
	if raw == nil {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// MapParam returns the named parameter as a map[string]any, or nil.
func MapParam(params map[string]any, name string) map[string]any {
	if v, ok := params[name].(map[string]any); ok {
		return v
	}
	return nil
}
