package parse

// Helpers for digging through externally supplied, loosely shaped JSON
// decoded into map[string]any. Every access is an optional lookup with a
// zero-value default; nothing here panics on a wrong shape.

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// asInt64 accepts the numeric shapes encoding/json produces (float64) plus
// the integer types fixtures construct directly.
func asInt64(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	}
	return 0
}

func getMap(m map[string]any, key string) map[string]any {
	if m == nil {
		return nil
	}
	return asMap(m[key])
}

func getSlice(m map[string]any, key string) []any {
	if m == nil {
		return nil
	}
	return asSlice(m[key])
}

func getString(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	return asString(m[key])
}

func getInt64(m map[string]any, key string) int64 {
	if m == nil {
		return 0
	}
	return asInt64(m[key])
}
