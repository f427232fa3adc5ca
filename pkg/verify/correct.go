package verify

import (
	"math"
	"strconv"
	"strings"
)

// Filler supplies generic content for the corrective pass.
type Filler interface {
	// Text returns a non-empty string for field.
	Text(field string) string
	// Item returns the index-th padding entry for an array field.
	Item(field string, index int) any
	// Number returns a value for field, ideally inside [min, max].
	Number(field string, min, max float64) float64
}

// Per-element constraints under a padded array need a pass of their own.
const correctPasses = 4

// Correct repairs doc so that it satisfies set: missing values are filled,
// arrays padded or truncated to their bounds, numbers clamped, enums reset to
// their first value, prefixes prepended and ascending fields spread apart.
// For any set that passes Check the result validates clean. A document that
// already validates is returned unchanged (after Normalize).
func Correct(doc Document, set ConstraintSet, fill Filler) Document {
	out := Normalize(doc, set)
	for range correctPasses {
		res := Validate(out, set)
		if res.Valid() {
			return out
		}
		for _, v := range res.Violations {
			fixViolation(out, v.Constraint, set, fill)
		}
		out = Normalize(out, set)
	}
	return out
}

func fixViolation(doc Document, c Constraint, set ConstraintSet, fill Filler) {
	switch c.Kind {
	case KindRequired:
		if v, ok := Get(doc, c.Field); !ok || v == nil {
			Set(doc, c.Field, defaultFor(c.Field, set, fill))
		}
	case KindNonEmpty:
		v, ok := Get(doc, c.Field)
		if !ok || v == nil || isEmpty(v) {
			Set(doc, c.Field, nonEmptyFor(c.Field, set, fill))
		}
	case KindText:
		v, _ := Get(doc, c.Field)
		switch t := v.(type) {
		case string:
			if strings.TrimSpace(t) != "" {
				Set(doc, c.Field, strings.TrimSpace(t))
				return
			}
		case bool:
			Set(doc, c.Field, strconv.FormatBool(t))
			return
		default:
			if n, ok := AsNumber(v); ok {
				Set(doc, c.Field, strconv.FormatFloat(n, 'f', -1, 64))
				return
			}
		}
		Set(doc, c.Field, defaultFor(c.Field, set, fill))
	case KindItems:
		fixItems(doc, c, fill)
	case KindRange:
		// Clamp into the bounds of every range on the field, not just this
		// one, so two overlapping ranges cannot undo each other.
		lo, hi := set.numericBounds(c.Field)
		v, _ := Get(doc, c.Field)
		n, ok := AsNumber(v)
		if !ok || math.IsNaN(n) {
			n = fill.Number(c.Field, lo, hi)
		}
		Set(doc, c.Field, math.Min(math.Max(n, lo), hi))
	case KindEnum:
		allowed := set.enumValues(c.Field)
		if len(allowed) == 0 {
			allowed = c.Values
		}
		v, _ := Get(doc, c.Field)
		if s, ok := v.(string); ok {
			if canon, found := matchEnum(s, allowed); found {
				Set(doc, c.Field, canon)
				return
			}
		}
		Set(doc, c.Field, allowed[0])
	case KindPrefix:
		v, _ := Get(doc, c.Field)
		s, ok := v.(string)
		if !ok || strings.TrimSpace(s) == "" {
			s = fill.Text(c.Field)
		}
		Set(doc, c.Field, CanonicalPrefix(s, c.Prefix))
	case KindAscending:
		fixAscending(doc, c, set, fill)
	}
}

func fixItems(doc Document, c Constraint, fill Filler) {
	v, _ := Get(doc, c.Field)
	items, _ := AsSlice(v)
	minN, maxN := int(c.Min), int(c.Max)
	if len(items) > maxN {
		items = items[:maxN]
	}
	out := make([]any, len(items), max(len(items), minN))
	copy(out, items)
	for i := len(out); i < minN; i++ {
		out = append(out, fill.Item(c.Field, i))
	}
	Set(doc, c.Field, out)
}

// defaultFor builds a value of the shape the set implies for field.
func defaultFor(field string, set ConstraintSet, fill Filler) any {
	switch set.shapeOf(field) {
	case shapeObject:
		return map[string]any{}
	case shapeArray:
		return []any{}
	case shapeNumber:
		lo, hi := set.numericBounds(field)
		return fill.Number(field, lo, hi)
	}
	if allowed := set.enumValues(field); len(allowed) > 0 {
		return allowed[0]
	}
	for _, c := range set.ForField(field) {
		switch c.Kind {
		case KindPrefix:
			return CanonicalPrefix(fill.Text(field), c.Prefix)
		}
	}
	return fill.Text(field)
}

func nonEmptyFor(field string, set ConstraintSet, fill Filler) any {
	switch set.shapeOf(field) {
	case shapeArray:
		return []any{fill.Item(field, 0)}
	case shapeObject:
		// Child constraints populate the object on the next pass.
		return map[string]any{"name": fill.Text(field)}
	}
	return defaultFor(field, set, fill)
}

// fixAscending keeps each value where it is when possible, pushing later
// values up by one unit; if the bounds leave no room for that it falls back
// to the smallest feasible increasing sequence.
func fixAscending(doc Document, c Constraint, set ConstraintSet, fill Filler) {
	n := len(c.Fields)
	vals := make([]float64, n)
	for i, f := range c.Fields {
		lo, hi := set.numericBounds(f)
		v, _ := Get(doc, f)
		x, ok := AsNumber(v)
		if !ok {
			x = fill.Number(f, lo, hi)
		}
		x = math.Min(math.Max(x, lo), hi)
		if i > 0 && x <= vals[i-1] {
			x = math.Min(vals[i-1]+1, hi)
		}
		vals[i] = x
	}
	ok := true
	for i := 1; i < n; i++ {
		if vals[i] <= vals[i-1] {
			ok = false
			break
		}
	}
	if !ok {
		vals = set.minimalAscending(c.Fields)
	}
	for i, f := range c.Fields {
		Set(doc, f, vals[i])
	}
}
