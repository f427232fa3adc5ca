package synth

import (
	"fmt"
	"strings"
)

// TopUp merges have and extra into a list of at most max unique entries,
// padding to min. Existing entries come first. When the unique entries run
// out, earlier ones are reused with a variant suffix (" #2", " #3", ...).
// Object entries are told apart by their "name" field.
func TopUp(have, extra []any, min, max int) []any {
	seen := make(map[string]bool)
	out := make([]any, 0, max)
	add := func(v any) {
		if len(out) >= max {
			return
		}
		k := keyOf(v)
		if k == "" {
			return
		}
		if seen[k] {
			v = relabel(v, seen)
			k = keyOf(v)
		}
		seen[k] = true
		out = append(out, v)
	}

	for _, v := range have {
		add(v)
	}
	for _, v := range extra {
		if len(out) >= min {
			break
		}
		if k := keyOf(v); k != "" && !seen[k] {
			add(v)
		}
	}
	if len(out) == 0 {
		return out
	}
	pool := append([]any(nil), out...)
	for i := 0; len(out) < min; i++ {
		add(pool[i%len(pool)])
	}
	return out
}

func keyOf(v any) string {
	switch t := v.(type) {
	case string:
		return strings.ToLower(strings.TrimSpace(t))
	case map[string]any:
		if name, ok := t["name"].(string); ok {
			return strings.ToLower(strings.TrimSpace(name))
		}
		return strings.ToLower(fmt.Sprint(t))
	case nil:
		return ""
	default:
		return strings.ToLower(fmt.Sprint(t))
	}
}

func relabel(v any, seen map[string]bool) any {
	label := func(base string) string {
		base = baseLabel(base)
		for n := 2; ; n++ {
			cand := fmt.Sprintf("%s #%d", base, n)
			if !seen[strings.ToLower(cand)] {
				return cand
			}
		}
	}
	switch t := v.(type) {
	case string:
		return label(strings.TrimSpace(t))
	case map[string]any:
		cp := make(map[string]any, len(t))
		for k, val := range t {
			cp[k] = val
		}
		name, _ := t["name"].(string)
		if name == "" {
			name = "item"
		}
		cp["name"] = label(name)
		return cp
	default:
		return label(fmt.Sprint(t))
	}
}

// baseLabel strips an existing variant suffix so "x #2" relabels to "x #3".
func baseLabel(s string) string {
	i := strings.LastIndex(s, " #")
	if i < 0 {
		return s
	}
	for _, r := range s[i+2:] {
		if r < '0' || r > '9' {
			return s
		}
	}
	if i+2 == len(s) {
		return s
	}
	return s[:i]
}
