package verify

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Document is a structured task value: the decoded form of a generation
// result, keyed by top-level field name. Nested objects are map[string]any.
type Document map[string]any

// Wildcard is the path segment that stands for every element of an array:
// "faqs.*.answer".
const Wildcard = "*"

// Kind names a constraint type.
type Kind string

const (
	KindRequired  Kind = "required"
	KindNonEmpty  Kind = "non_empty"
	KindText      Kind = "text"
	KindItems     Kind = "items"
	KindRange     Kind = "range"
	KindEnum      Kind = "enum"
	KindPrefix    Kind = "prefix"
	KindAscending Kind = "ascending"
)

// ErrInvalidConstraint is returned by ConstraintSet.Check for sets that no
// value could ever satisfy.
var ErrInvalidConstraint = errors.New("invalid constraint")

// Constraint is a declarative rule on one output field (or, for ascending,
// an ordered list of numeric fields). Field paths use dots for nesting:
// "basic.price".
type Constraint struct {
	Kind         Kind     `yaml:"kind" json:"kind"`
	Field        string   `yaml:"field,omitempty" json:"field,omitempty"`
	Fields       []string `yaml:"fields,omitempty" json:"fields,omitempty"`
	Min          float64  `yaml:"min,omitempty" json:"min,omitempty"`
	Max          float64  `yaml:"max,omitempty" json:"max,omitempty"`
	ExclusiveMin bool     `yaml:"exclusive_min,omitempty" json:"exclusive_min,omitempty"`
	ExclusiveMax bool     `yaml:"exclusive_max,omitempty" json:"exclusive_max,omitempty"`
	Values       []string `yaml:"values,omitempty" json:"values,omitempty"`
	Prefix       string   `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	Message      string   `yaml:"message,omitempty" json:"message,omitempty"`
}

func Required(field string) Constraint { return Constraint{Kind: KindRequired, Field: field} }

func NonEmpty(field string) Constraint { return Constraint{Kind: KindNonEmpty, Field: field} }

// Text requires a string with at least one non-space character.
func Text(field string) Constraint { return Constraint{Kind: KindText, Field: field} }

// Items bounds the length of an array field, inclusive on both ends.
func Items(field string, min, max int) Constraint {
	return Constraint{Kind: KindItems, Field: field, Min: float64(min), Max: float64(max)}
}

// Count requires an array field to hold exactly n entries.
func Count(field string, n int) Constraint { return Items(field, n, n) }

// Range bounds a numeric field, inclusive on both ends.
func Range(field string, min, max float64) Constraint {
	return Constraint{Kind: KindRange, Field: field, Min: min, Max: max}
}

func Enum(field string, values ...string) Constraint {
	return Constraint{Kind: KindEnum, Field: field, Values: values}
}

// Prefix requires a string field to start with prefix, ignoring letter case.
func Prefix(field, prefix string) Constraint {
	return Constraint{Kind: KindPrefix, Field: field, Prefix: prefix}
}

// Ascending requires the listed numeric fields to be strictly increasing.
func Ascending(fields ...string) Constraint {
	return Constraint{Kind: KindAscending, Fields: fields}
}

// Targets returns the field paths the constraint reads.
func (c Constraint) Targets() []string {
	if c.Kind == KindAscending {
		return c.Fields
	}
	return []string{c.Field}
}

func (c Constraint) String() string {
	switch c.Kind {
	case KindItems:
		if c.Min == c.Max {
			return fmt.Sprintf("%s: exactly %d items", c.Field, int(c.Min))
		}
		return fmt.Sprintf("%s: %d-%d items", c.Field, int(c.Min), int(c.Max))
	case KindRange:
		lo, hi := "[", "]"
		if c.ExclusiveMin {
			lo = "("
		}
		if c.ExclusiveMax {
			hi = ")"
		}
		return fmt.Sprintf("%s: number in %s%g, %g%s", c.Field, lo, c.Min, c.Max, hi)
	case KindEnum:
		return fmt.Sprintf("%s: one of %s", c.Field, strings.Join(c.Values, " | "))
	case KindPrefix:
		return fmt.Sprintf("%s: starts with %q", c.Field, c.Prefix)
	case KindAscending:
		return fmt.Sprintf("%s: strictly increasing", strings.Join(c.Fields, " < "))
	case KindText:
		return fmt.Sprintf("%s: non-empty text", c.Field)
	default:
		return fmt.Sprintf("%s: %s", c.Field, c.Kind)
	}
}

// ConstraintSet is the output contract of one task.
type ConstraintSet []Constraint

// ForField returns the constraints that read field, including wildcard
// constraints whose pattern matches it.
func (s ConstraintSet) ForField(field string) []Constraint {
	var out []Constraint
	for _, c := range s {
		for _, t := range c.Targets() {
			if t == field || matchPath(t, field) {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// Fields returns every constrained field path in declaration order.
func (s ConstraintSet) Fields() []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range s {
		for _, t := range c.Targets() {
			if t != "" && !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out
}

type shape int

const (
	shapeAny shape = iota
	shapeText
	shapeNumber
	shapeArray
	shapeObject
)

func kindShape(k Kind) shape {
	switch k {
	case KindItems:
		return shapeArray
	case KindRange, KindAscending:
		return shapeNumber
	case KindEnum, KindPrefix, KindText:
		return shapeText
	default:
		return shapeAny
	}
}

// shapeOf reports which JSON shape the set implies for field. A field with
// constrained children is an object, or an array when the next segment of a
// child path is the wildcard.
func (s ConstraintSet) shapeOf(field string) shape {
	parts := strings.Split(field, ".")
	found := shapeAny
	for _, c := range s {
		for _, t := range c.Targets() {
			tp := strings.Split(t, ".")
			if len(tp) <= len(parts) || !matchSegments(tp[:len(parts)], parts) {
				continue
			}
			if tp[len(parts)] == Wildcard {
				return shapeArray
			}
			found = shapeObject
		}
	}
	if found != shapeAny {
		return found
	}
	for _, c := range s.ForField(field) {
		if sh := kindShape(c.Kind); sh != shapeAny {
			return sh
		}
	}
	return shapeAny
}

// Check reports whether the set is satisfiable: bounds ordered, enums and
// prefixes non-empty, no field asked to be two different shapes, overlapping
// ranges, compatible enums and prefixes on a field, and enough room inside
// the ranges for ascending fields.
func (s ConstraintSet) Check() error {
	var errs []error
	shapes := make(map[string]shape)

	for i, c := range s {
		if err := c.check(); err != nil {
			errs = append(errs, fmt.Errorf("constraint %d (%s): %w", i, c.Kind, err))
			continue
		}
		for _, t := range c.Targets() {
			sh := kindShape(c.Kind)
			if sh == shapeAny {
				continue
			}
			if prev, ok := shapes[t]; ok && prev != sh {
				errs = append(errs, fmt.Errorf("field %s: conflicting constraint kinds: %w", t, ErrInvalidConstraint))
				continue
			}
			shapes[t] = sh
		}
	}

	errs = append(errs, s.checkFields()...)

	for _, c := range s {
		if c.Kind != KindAscending || len(c.Fields) < 2 {
			continue
		}
		seq := s.minimalAscending(c.Fields)
		for i, f := range c.Fields {
			_, hi := s.numericBounds(f)
			if seq[i] > hi {
				errs = append(errs, fmt.Errorf("ascending %s: no room inside range of %s: %w",
					strings.Join(c.Fields, ","), f, ErrInvalidConstraint))
				break
			}
		}
	}

	return errors.Join(errs...)
}

func (c Constraint) check() error {
	if c.Kind != KindAscending && strings.TrimSpace(c.Field) == "" {
		return fmt.Errorf("field is required: %w", ErrInvalidConstraint)
	}
	for _, t := range c.Targets() {
		if !strings.Contains(t, Wildcard) {
			continue
		}
		if c.Kind == KindAscending {
			return fmt.Errorf("ascending field %s: wildcards not allowed: %w", t, ErrInvalidConstraint)
		}
		parts := strings.Split(t, ".")
		for i, p := range parts {
			if strings.Contains(p, Wildcard) && (p != Wildcard || i == 0) {
				return fmt.Errorf("field %s: wildcard must be a whole segment after the array field: %w", t, ErrInvalidConstraint)
			}
		}
	}
	switch c.Kind {
	case KindRequired, KindNonEmpty, KindText:
		return nil
	case KindItems:
		if c.Min < 0 || c.Max < c.Min || c.Min != math.Trunc(c.Min) || c.Max != math.Trunc(c.Max) {
			return fmt.Errorf("items bounds [%g, %g]: %w", c.Min, c.Max, ErrInvalidConstraint)
		}
	case KindRange:
		if c.Max < c.Min || (c.Max == c.Min && (c.ExclusiveMin || c.ExclusiveMax)) {
			return fmt.Errorf("range bounds [%g, %g]: %w", c.Min, c.Max, ErrInvalidConstraint)
		}
	case KindEnum:
		if len(c.Values) == 0 {
			return fmt.Errorf("enum without values: %w", ErrInvalidConstraint)
		}
		for _, v := range c.Values {
			if strings.TrimSpace(v) == "" {
				return fmt.Errorf("enum with a blank value: %w", ErrInvalidConstraint)
			}
		}
	case KindPrefix:
		if strings.TrimSpace(c.Prefix) == "" {
			return fmt.Errorf("empty prefix: %w", ErrInvalidConstraint)
		}
	case KindAscending:
		if len(c.Fields) < 2 {
			return fmt.Errorf("ascending needs at least two fields: %w", ErrInvalidConstraint)
		}
	default:
		return fmt.Errorf("unknown kind %q: %w", c.Kind, ErrInvalidConstraint)
	}
	return nil
}

// checkFields looks across the constraints on each field for combinations
// that pass one by one but exclude each other.
func (s ConstraintSet) checkFields() []error {
	var errs []error
	for _, f := range s.Fields() {
		var prefixes []string
		var enums [][]string
		ranges := 0
		for _, c := range s {
			if c.Field != f {
				continue
			}
			switch c.Kind {
			case KindRange:
				ranges++
			case KindPrefix:
				prefixes = append(prefixes, strings.TrimSpace(c.Prefix))
			case KindEnum:
				enums = append(enums, c.Values)
			}
		}
		if ranges > 1 {
			if lo, hi := s.numericBounds(f); lo > hi {
				errs = append(errs, fmt.Errorf("field %s: ranges do not overlap: %w", f, ErrInvalidConstraint))
			}
		}
		for _, p := range prefixes[min(1, len(prefixes)):] {
			if !strings.EqualFold(p, prefixes[0]) {
				errs = append(errs, fmt.Errorf("field %s: prefixes %q and %q exclude each other: %w",
					f, prefixes[0], p, ErrInvalidConstraint))
				break
			}
		}
		if len(enums) == 0 {
			continue
		}
		allowed := intersect(enums)
		if len(allowed) == 0 {
			errs = append(errs, fmt.Errorf("field %s: enums share no value: %w", f, ErrInvalidConstraint))
			continue
		}
		for _, p := range prefixes {
			for _, v := range allowed {
				if CanonicalPrefix(v, p) != v {
					errs = append(errs, fmt.Errorf("field %s: enum value %q does not start with %q: %w",
						f, v, p, ErrInvalidConstraint))
				}
			}
		}
	}
	return errs
}

// enumValues returns the values every enum on field allows, in the order the
// first enum lists them.
func (s ConstraintSet) enumValues(field string) []string {
	var enums [][]string
	for _, c := range s.ForField(field) {
		if c.Kind == KindEnum {
			enums = append(enums, c.Values)
		}
	}
	return intersect(enums)
}

func intersect(lists [][]string) []string {
	if len(lists) == 0 {
		return nil
	}
	var out []string
	for _, v := range lists[0] {
		shared := true
		for _, other := range lists[1:] {
			if !slices.Contains(other, v) {
				shared = false
				break
			}
		}
		if shared {
			out = append(out, v)
		}
	}
	return out
}

// matchPath reports whether a concrete path is an instance of pattern:
// same number of segments, with each wildcard standing for an array index.
func matchPath(pattern, path string) bool {
	if !strings.Contains(pattern, Wildcard) {
		return false
	}
	return matchSegments(strings.Split(pattern, "."), strings.Split(path, "."))
}

func matchSegments(pattern, path []string) bool {
	if len(pattern) != len(path) {
		return false
	}
	for i, p := range pattern {
		if p == path[i] {
			continue
		}
		if _, isIdx := index(path[i]); p != Wildcard || !isIdx {
			return false
		}
	}
	return true
}

// expand resolves the wildcards in c against doc, giving one constraint per
// array element present. A missing array expands to nothing.
func expand(doc Document, c Constraint) []Constraint {
	if c.Kind == KindAscending {
		return []Constraint{c}
	}
	parts := strings.Split(c.Field, ".")
	at := slices.Index(parts, Wildcard)
	if at < 0 {
		return []Constraint{c}
	}
	base := strings.Join(parts[:at], ".")
	v, _ := Get(doc, base)
	items, _ := AsSlice(v)
	var out []Constraint
	for i := range items {
		cc := c
		cc.Field = strings.Join(slices.Concat(parts[:at], []string{strconv.Itoa(i)}, parts[at+1:]), ".")
		out = append(out, expand(doc, cc)...)
	}
	return out
}

// numericBounds returns the tightest closed bounds the set's range
// constraints place on field. Exclusive bounds are stepped inward by one
// unit, or by half the span when that is narrower. Unconstrained fields get
// [0, MaxFloat64].
func (s ConstraintSet) numericBounds(field string) (float64, float64) {
	lo, hi := 0.0, math.MaxFloat64
	first := true
	for _, c := range s.ForField(field) {
		if c.Kind != KindRange {
			continue
		}
		clo, chi := closedBounds(c)
		if first {
			lo, hi = clo, chi
			first = false
			continue
		}
		lo = math.Max(lo, clo)
		hi = math.Min(hi, chi)
	}
	return lo, hi
}

func closedBounds(c Constraint) (float64, float64) {
	lo, hi := c.Min, c.Max
	step := math.Min(1, (hi-lo)/2)
	if c.ExclusiveMin {
		lo += step
	}
	if c.ExclusiveMax {
		hi -= step
	}
	return lo, hi
}

// minimalAscending is the smallest strictly increasing sequence (unit step)
// starting at the lower bounds of fields.
func (s ConstraintSet) minimalAscending(fields []string) []float64 {
	seq := make([]float64, len(fields))
	for i, f := range fields {
		lo, _ := s.numericBounds(f)
		if i == 0 {
			seq[i] = lo
			continue
		}
		seq[i] = math.Max(lo, seq[i-1]+1)
	}
	return seq
}
