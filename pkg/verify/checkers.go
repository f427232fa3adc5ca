package verify

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Outcome is the result of checking one constraint.
type Outcome struct {
	Passed  bool
	Actual  any
	Message string
}

// Checker evaluates one constraint kind against a document.
type Checker func(doc Document, c Constraint) Outcome

var checkers = map[Kind]Checker{
	KindRequired:  checkRequired,
	KindNonEmpty:  checkNonEmpty,
	KindText:      checkText,
	KindItems:     checkItems,
	KindRange:     checkRange,
	KindEnum:      checkEnum,
	KindPrefix:    checkPrefix,
	KindAscending: checkAscending,
}

func pass(actual any) Outcome { return Outcome{Passed: true, Actual: actual} }

func fail(c Constraint, actual any, format string, args ...any) Outcome {
	msg := c.Message
	if msg == "" {
		msg = fmt.Sprintf(format, args...)
	}
	return Outcome{Actual: actual, Message: msg}
}

func checkRequired(doc Document, c Constraint) Outcome {
	v, ok := Get(doc, c.Field)
	if !ok || v == nil {
		return fail(c, nil, "%s is required", c.Field)
	}
	return pass(v)
}

func checkNonEmpty(doc Document, c Constraint) Outcome {
	v, ok := Get(doc, c.Field)
	if !ok || v == nil {
		return fail(c, nil, "%s is missing", c.Field)
	}
	if isEmpty(v) {
		return fail(c, v, "%s is empty", c.Field)
	}
	return pass(v)
}

func checkText(doc Document, c Constraint) Outcome {
	v, ok := Get(doc, c.Field)
	if !ok || v == nil {
		return fail(c, nil, "%s is missing", c.Field)
	}
	s, isStr := v.(string)
	if !isStr {
		return fail(c, v, "%s is not a string", c.Field)
	}
	if strings.TrimSpace(s) == "" {
		return fail(c, s, "%s is empty", c.Field)
	}
	return pass(s)
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t) == ""
	}
	if m, ok := asMap(v); ok {
		return len(m) == 0
	}
	if s, ok := AsSlice(v); ok {
		return len(s) == 0
	}
	return false
}

// checkItems counts entries only; an absent field counts as zero entries.
func checkItems(doc Document, c Constraint) Outcome {
	v, ok := Get(doc, c.Field)
	n := 0
	if ok && v != nil {
		s, isSlice := AsSlice(v)
		if !isSlice {
			return fail(c, v, "%s is not an array", c.Field)
		}
		n = len(s)
	}
	if float64(n) < c.Min || float64(n) > c.Max {
		if c.Min == c.Max {
			return fail(c, n, "%s has %d items, want exactly %d", c.Field, n, int(c.Min))
		}
		return fail(c, n, "%s has %d items, want %d-%d", c.Field, n, int(c.Min), int(c.Max))
	}
	return pass(n)
}

func checkRange(doc Document, c Constraint) Outcome {
	v, ok := Get(doc, c.Field)
	if !ok || v == nil {
		return fail(c, nil, "%s is missing", c.Field)
	}
	n, isNum := AsNumber(v)
	if !isNum {
		return fail(c, v, "%s is not a number", c.Field)
	}
	if !inRange(n, c) {
		return fail(c, n, "%s = %g is out of range", c.Field, n)
	}
	return pass(n)
}

func inRange(n float64, c Constraint) bool {
	if n < c.Min || (c.ExclusiveMin && n == c.Min) {
		return false
	}
	if n > c.Max || (c.ExclusiveMax && n == c.Max) {
		return false
	}
	return true
}

func checkEnum(doc Document, c Constraint) Outcome {
	v, ok := Get(doc, c.Field)
	if !ok || v == nil {
		return fail(c, nil, "%s is missing", c.Field)
	}
	s, isStr := v.(string)
	if !isStr {
		return fail(c, v, "%s is not a string", c.Field)
	}
	for _, allowed := range c.Values {
		if s == allowed {
			return pass(s)
		}
	}
	return fail(c, s, "%s = %q is not one of the allowed values", c.Field, s)
}

func checkPrefix(doc Document, c Constraint) Outcome {
	v, ok := Get(doc, c.Field)
	if !ok || v == nil {
		return fail(c, nil, "%s is missing", c.Field)
	}
	s, isStr := v.(string)
	if !isStr {
		return fail(c, v, "%s is not a string", c.Field)
	}
	if _, has := cutPrefixFold(strings.TrimSpace(s), c.Prefix); !has {
		return fail(c, truncate(s, 80), "%s does not start with %q", c.Field, c.Prefix)
	}
	return pass(s)
}

func checkAscending(doc Document, c Constraint) Outcome {
	vals := make([]float64, len(c.Fields))
	for i, f := range c.Fields {
		v, ok := Get(doc, f)
		n, isNum := AsNumber(v)
		if !ok || !isNum {
			return fail(c, nil, "%s is not a number", f)
		}
		vals[i] = n
	}
	for i := 1; i < len(vals); i++ {
		if vals[i] <= vals[i-1] {
			return fail(c, vals, "%s must be greater than %s", c.Fields[i], c.Fields[i-1])
		}
	}
	return pass(vals)
}

// cutPrefixFold strips prefix from s ignoring letter case. A prefix ending
// in a letter or digit only matches at a word boundary, so "I willow" does
// not carry the prefix "I will".
func cutPrefixFold(s, prefix string) (string, bool) {
	prefix = strings.TrimSpace(prefix)
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return s, false
	}
	rest := s[len(prefix):]
	last, _ := utf8.DecodeLastRuneInString(prefix)
	if rest != "" && (unicode.IsLetter(last) || unicode.IsDigit(last)) {
		next, _ := utf8.DecodeRuneInString(rest)
		if unicode.IsLetter(next) || unicode.IsDigit(next) {
			return s, false
		}
	}
	return rest, true
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
