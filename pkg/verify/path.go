package verify

import (
	"encoding/json"
	"reflect"
	"strconv"
	"strings"

	"github.com/mohae/deepcopy"
)

// Get resolves a dotted field path inside doc. A numeric segment indexes
// into an array: "faqs.0.answer".
func Get(doc Document, path string) (any, bool) {
	var cur any = map[string]any(doc)
	for _, part := range strings.Split(path, ".") {
		if m, ok := asMap(cur); ok {
			if cur, ok = m[part]; !ok {
				return nil, false
			}
			continue
		}
		items, ok := AsSlice(cur)
		idx, isIdx := index(part)
		if !ok || !isIdx || idx >= len(items) {
			return nil, false
		}
		cur = items[idx]
	}
	return cur, true
}

// Set writes v at a dotted path, replacing non-object intermediates with
// fresh objects. Numeric segments address existing array elements; writes
// past the end of an array are dropped.
func Set(doc Document, path string, v any) {
	setIn(map[string]any(doc), strings.Split(path, "."), v)
}

func setIn(m map[string]any, parts []string, v any) {
	key := parts[0]
	if len(parts) == 1 {
		m[key] = v
		return
	}
	if idx, ok := index(parts[1]); ok {
		if items, isSlice := AsSlice(m[key]); isSlice {
			if idx >= len(items) {
				return
			}
			m[key] = items
			if len(parts) == 2 {
				items[idx] = v
				return
			}
			next, ok := asMap(items[idx])
			if !ok {
				next = make(map[string]any)
				items[idx] = next
			}
			setIn(next, parts[2:], v)
			return
		}
	}
	next, ok := asMap(m[key])
	if !ok {
		next = make(map[string]any)
	}
	m[key] = next
	setIn(next, parts[1:], v)
}

func index(part string) (int, bool) {
	n, err := strconv.Atoi(part)
	return n, err == nil && n >= 0
}

// Clone deep-copies doc. A nil doc clones to an empty one.
func Clone(doc Document) Document {
	if doc == nil {
		return Document{}
	}
	cp, ok := deepcopy.Copy(doc).(Document)
	if !ok {
		return Document{}
	}
	return cp
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, m != nil
	case Document:
		return map[string]any(m), m != nil
	default:
		return nil, false
	}
}

// AsSlice views any slice value as []any.
func AsSlice(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	if s, ok := v.([]any); ok {
		return s, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// AsNumber converts Go and JSON numeric representations to float64.
// Strings are not numbers.
func AsNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// Delete removes the value at a dotted path. Missing paths are ignored, and
// so are paths naming an array element: arrays keep their length.
func Delete(doc Document, path string) {
	parent, key := "", path
	if i := strings.LastIndex(path, "."); i >= 0 {
		parent, key = path[:i], path[i+1:]
	}
	if parent == "" {
		delete(doc, key)
		return
	}
	v, ok := Get(doc, parent)
	if !ok {
		return
	}
	if m, ok := asMap(v); ok {
		delete(m, key)
	}
}
