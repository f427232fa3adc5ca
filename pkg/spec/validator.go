package spec

import (
	"fmt"
	"strings"

	"github.com/cgast/gigsmith/pkg/task"
	"github.com/cgast/gigsmith/pkg/verify"
)

// ValidationError represents a single validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationResult holds all validation errors for a graph document.
type ValidationResult struct {
	Errors []ValidationError
}

// Valid returns true if no validation errors were found.
func (r ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// Error returns a combined error message from all validation errors.
func (r ValidationResult) Error() string {
	if r.Valid() {
		return ""
	}
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(msgs, "; "))
}

func (r *ValidationResult) add(field, format string, args ...any) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// ValidateGraph checks a document field by field. Cycles are left to
// orchestrator.BuildGraph, which sees the whole graph at once.
func ValidateGraph(g TaskGraph) ValidationResult {
	var result ValidationResult

	if g.APIVersion == "" {
		result.add("apiVersion", "required")
	} else if g.APIVersion != APIVersion {
		result.add("apiVersion", "unsupported version %q (expected %s)", g.APIVersion, APIVersion)
	}

	overlay := false
	switch g.Kind {
	case "":
		result.add("kind", "required")
	case KindTaskGraph:
	case KindTaskOverlay:
		overlay = true
	default:
		result.add("kind", "unsupported kind %q (expected %s or %s)", g.Kind, KindTaskGraph, KindTaskOverlay)
	}

	if g.Meta.Name == "" {
		result.add("meta.name", "required")
	}

	if len(g.Tasks) == 0 {
		result.add("tasks", "at least one task is required")
	}

	ids := make(map[string]bool, len(g.Tasks))
	for _, t := range g.Tasks {
		ids[t.ID] = true
	}

	seen := make(map[string]bool, len(g.Tasks))
	for i, t := range g.Tasks {
		field := fmt.Sprintf("tasks[%d]", i)
		if strings.TrimSpace(t.ID) == "" {
			result.add(field+".id", "required")
		} else if seen[t.ID] {
			result.add(field+".id", "duplicate task id %q", t.ID)
		}
		seen[t.ID] = true

		if t.Prompt != "" {
			if _, err := task.ParsePrompt(t.ID, t.Prompt); err != nil {
				result.add(field+".prompt", "%v", err)
			}
		}
		if t.Timeout < 0 {
			result.add(field+".timeout", "must not be negative")
		}
		if overlay {
			continue
		}

		if strings.TrimSpace(t.Prompt) == "" {
			result.add(field+".prompt", "required")
		}
		for j, dep := range t.DependsOn {
			if !ids[dep] {
				result.add(fmt.Sprintf("%s.depends_on[%d]", field, j), "unknown task %q", dep)
			}
		}
		validateInputs(&result, field, t)
		validateConstraints(&result, field, t.Constraints)
	}

	return result
}

func validateInputs(result *ValidationResult, field string, t task.Spec) {
	names := make(map[string]bool, len(t.Inputs))
	for k, p := range t.Inputs {
		f := fmt.Sprintf("%s.inputs[%d]", field, k)
		switch {
		case p.Name == "":
			result.add(f+".name", "required")
		case names[p.Name]:
			result.add(f+".name", "duplicate input %q", p.Name)
		}
		names[p.Name] = true
		if p.Upstream() && !containsString(t.DependsOn, p.From) {
			result.add(f+".from", "task %q is not in depends_on", p.From)
		}
	}
}

func validateConstraints(result *ValidationResult, field string, set verify.ConstraintSet) {
	before := len(result.Errors)
	for k, c := range set {
		f := fmt.Sprintf("%s.constraints[%d]", field, k)
		if c.Kind == "" {
			result.add(f+".kind", "required")
			continue
		}
		if err := (verify.ConstraintSet{c}).Check(); err != nil {
			result.add(f, "%v", err)
		}
	}
	// Set-wide problems (conflicting shapes, disjoint ranges, clashing
	// prefixes and enums, no room for ascending) only make sense once each
	// constraint is well-formed.
	if len(result.Errors) == before {
		if err := set.Check(); err != nil {
			result.add(field+".constraints", "%v", err)
		}
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
