package verify

import (
	"fmt"
	"strings"
)

// Violation records one failed constraint.
type Violation struct {
	Constraint Constraint `json:"constraint"`
	Field      string     `json:"field"`
	Actual     any        `json:"actual,omitempty"`
	Message    string     `json:"message"`
}

func (v Violation) Error() string { return v.Message }

// Result is the outcome of validating a document against a constraint set.
type Result struct {
	Violations []Violation `json:"violations,omitempty"`
}

// Valid returns true if no constraint was violated.
func (r Result) Valid() bool { return len(r.Violations) == 0 }

// Error joins all violation messages.
func (r Result) Error() string {
	if r.Valid() {
		return ""
	}
	msgs := make([]string, len(r.Violations))
	for i, v := range r.Violations {
		msgs[i] = v.Message
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(msgs, "; "))
}

// Fields returns the distinct field paths touched by violations.
func (r Result) Fields() []string {
	seen := make(map[string]bool)
	var out []string
	for _, v := range r.Violations {
		for _, f := range v.Constraint.Targets() {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	return out
}

// Messages returns the violation messages.
func (r Result) Messages() []string {
	out := make([]string, len(r.Violations))
	for i, v := range r.Violations {
		out[i] = v.Message
	}
	return out
}

// Validate checks doc against every constraint in set. Wildcard constraints
// are checked once per array element, and violations name the element path.
// It never mutates doc.
func Validate(doc Document, set ConstraintSet) Result {
	var result Result
	for _, rule := range set {
		checker, ok := checkers[rule.Kind]
		if !ok {
			result.Violations = append(result.Violations, Violation{
				Constraint: rule,
				Field:      rule.Field,
				Message:    fmt.Sprintf("unknown constraint kind %q", rule.Kind),
			})
			continue
		}
		for _, c := range expand(doc, rule) {
			out := checker(doc, c)
			if out.Passed {
				continue
			}
			field := c.Field
			if c.Kind == KindAscending {
				field = strings.Join(c.Fields, ",")
			}
			result.Violations = append(result.Violations, Violation{
				Constraint: c,
				Field:      field,
				Actual:     out.Actual,
				Message:    out.Message,
			})
		}
	}
	return result
}
