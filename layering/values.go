package layering

import (
	"math"
	"reflect"
	"sort"
)

// Metadata keys stored next to values in layer documents.
const (
	OverridenKey    = "__overriden_keys__"
	EnvironmentKey  = "__environment_keys__"
	DynamicKeyLabel = "__dynamic_keys_labels__"
)

// MetadataKeys lists every key reserved for metadata.
var MetadataKeys = []string{OverridenKey, EnvironmentKey, DynamicKeyLabel}

type notSet struct{}

func (notSet) String() string { return "<NOT_SET>" }

// NotSet marks a value that was never provided for a layer.
var NotSet any = notSet{}

// IsNotSet reports whether value is the NotSet marker.
func IsNotSet(value any) bool {
	_, ok := value.(notSet)
	return ok
}

// IsMetadataKey reports whether key is reserved for metadata.
func IsMetadataKey(key string) bool {
	switch key {
	case OverridenKey, EnvironmentKey, DynamicKeyLabel:
		return true
	}
	return false
}

// Clone deep copies JSON-like values (maps, slices and scalars).
func Clone(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			out[key] = Clone(item)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = Clone(item)
		}
		return out
	case []string:
		out := make([]string, len(typed))
		copy(out, typed)
		return out
	case map[string][]string:
		out := make(map[string][]string, len(typed))
		for key, item := range typed {
			out[key] = append([]string(nil), item...)
		}
		return out
	default:
		return value
	}
}

// CloneMap deep copies a map, returning an empty map for nil input.
func CloneMap(value map[string]any) map[string]any {
	if value == nil {
		return map[string]any{}
	}
	return Clone(value).(map[string]any)
}

// Equal compares JSON-like values. Numbers compare by numeric value so an int
// read from code equals the float64 decoded from JSON.
func Equal(a, b any) bool {
	if IsNotSet(a) || IsNotSet(b) {
		return IsNotSet(a) && IsNotSet(b)
	}
	if fa, ok := Number(a); ok {
		fb, ok := Number(b)
		return ok && (fa == fb || (math.IsNaN(fa) && math.IsNaN(fb)))
	}
	switch ta := a.(type) {
	case map[string]any:
		tb, ok := b.(map[string]any)
		if !ok || len(ta) != len(tb) {
			return false
		}
		for key, item := range ta {
			other, exists := tb[key]
			if !exists || !Equal(item, other) {
				return false
			}
		}
		return true
	case []any:
		tb, ok := toAnySlice(b)
		if !ok || len(ta) != len(tb) {
			return false
		}
		for i := range ta {
			if !Equal(ta[i], tb[i]) {
				return false
			}
		}
		return true
	case []string:
		tb, ok := toAnySlice(b)
		if !ok || len(ta) != len(tb) {
			return false
		}
		for i := range ta {
			if !Equal(ta[i], tb[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

// StripMetadata returns a deep copy of value without metadata keys at any
// depth.
func StripMetadata(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			if IsMetadataKey(key) {
				continue
			}
			out[key] = StripMetadata(item)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = StripMetadata(item)
		}
		return out
	default:
		return value
	}
}

// SplitMetadata separates the top level metadata keys from the value keys of
// a layer document.
func SplitMetadata(value map[string]any) (data map[string]any, metadata map[string]any) {
	data = make(map[string]any, len(value))
	metadata = map[string]any{}
	for key, item := range value {
		if IsMetadataKey(key) {
			metadata[key] = Clone(item)
			continue
		}
		data[key] = item
	}
	return data, metadata
}

// StringList converts a decoded metadata list into sorted strings. Non string
// items are ignored.
func StringList(value any) []string {
	var out []string
	switch typed := value.(type) {
	case []string:
		out = append(out, typed...)
	case []any:
		for _, item := range typed {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
	}
	sort.Strings(out)
	return out
}

func toAnySlice(value any) ([]any, bool) {
	switch typed := value.(type) {
	case []any:
		return typed, true
	case []string:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = item
		}
		return out, true
	}
	return nil, false
}

// Number converts any Go numeric value into float64.
func Number(value any) (float64, bool) {
	switch typed := value.(type) {
	case int:
		return float64(typed), true
	case int8:
		return float64(typed), true
	case int16:
		return float64(typed), true
	case int32:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case uint:
		return float64(typed), true
	case uint8:
		return float64(typed), true
	case uint16:
		return float64(typed), true
	case uint32:
		return float64(typed), true
	case uint64:
		return float64(typed), true
	case float32:
		return float64(typed), true
	case float64:
		return typed, true
	}
	return 0, false
}
