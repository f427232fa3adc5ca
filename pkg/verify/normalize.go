package verify

import "strings"

// Normalize returns a copy of doc with lenient representations brought to
// canonical form:
//   - prefix fields start with the exact prefix exactly once (prepended
//     when missing, re-cased, repeated occurrences collapsed);
//   - enum values matching an allowed value ignoring case take its spelling;
//   - array fields become []any.
//
// Missing or empty values are left alone; Validate reports them.
func Normalize(doc Document, set ConstraintSet) Document {
	out := Clone(doc)
	for _, rule := range set {
		if rule.Kind == KindAscending {
			continue
		}
		for _, c := range expand(out, rule) {
			normalizeField(out, c)
		}
	}
	return out
}

func normalizeField(out Document, c Constraint) {
	v, ok := Get(out, c.Field)
	if !ok || v == nil {
		return
	}
	switch c.Kind {
	case KindPrefix:
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) != "" {
			Set(out, c.Field, CanonicalPrefix(s, c.Prefix))
		}
	case KindEnum:
		if s, isStr := v.(string); isStr {
			if canon, found := matchEnum(s, c.Values); found {
				Set(out, c.Field, canon)
			}
		}
	case KindItems:
		if _, already := v.([]any); already {
			return
		}
		if s, isSlice := AsSlice(v); isSlice {
			Set(out, c.Field, s)
		}
	}
}

// CanonicalPrefix returns s starting with prefix exactly once.
func CanonicalPrefix(s, prefix string) string {
	prefix = strings.TrimSpace(prefix)
	rest := strings.TrimSpace(s)
	for {
		r, ok := cutPrefixFold(rest, prefix)
		if !ok {
			break
		}
		rest = strings.TrimSpace(r)
	}
	if rest == "" {
		return prefix
	}
	return prefix + " " + rest
}

func matchEnum(s string, values []string) (string, bool) {
	for _, v := range values {
		if s == v {
			return v, true
		}
	}
	t := strings.TrimSpace(s)
	for _, v := range values {
		if strings.EqualFold(t, v) {
			return v, true
		}
	}
	return "", false
}
