// Package sanitize reduces chunk metadata to values a vector index can store.
package sanitize

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"chatpdf/internal/domain"
)

// Chunks returns copies of chunks whose metadata holds only primitive
// values. Text and Source are left untouched.
func Chunks(chunks []domain.Chunk) []domain.Chunk {
	out := make([]domain.Chunk, len(chunks))
	for i, ch := range chunks {
		ch.Metadata = Metadata(ch.Metadata)
		out[i] = ch
	}
	return out
}

// Metadata keeps strings, booleans, numbers and nil. Times become RFC3339
// strings and slices of primitives become comma-separated strings.
// Everything else is dropped.
func Metadata(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		if clean, ok := value(v); ok {
			out[k] = clean
		}
	}
	return out
}

// IsPrimitive reports whether v can be stored as-is.
func IsPrimitive(v any) bool {
	if v == nil {
		return true
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func value(v any) (any, bool) {
	if IsPrimitive(v) {
		return v, true
	}
	if t, ok := v.(time.Time); ok {
		return t.UTC().Format(time.RFC3339), true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		parts := make([]string, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			elem := rv.Index(i).Interface()
			if !IsPrimitive(elem) || elem == nil {
				return nil, false
			}
			parts = append(parts, fmt.Sprint(elem))
		}
		return strings.Join(parts, ", "), true
	}
	return nil, false
}
