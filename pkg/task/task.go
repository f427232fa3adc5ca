// Package task defines generation tasks and runs one task to a valid
// output.
package task

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cgast/gigsmith/pkg/verify"
)

// SourceRequest names the caller's request as a parameter source.
const SourceRequest = "request"

// ErrMissingInput is returned when a required parameter cannot be resolved.
var ErrMissingInput = errors.New("missing input")

// Param is one named input of a task.
type Param struct {
	Name string `yaml:"name" json:"name"`
	// From is SourceRequest (the default) or the id of an upstream task.
	From string `yaml:"from,omitempty" json:"from,omitempty"`
	// Field is a dotted path inside the source. Empty means the request
	// value called Name, or the whole upstream output.
	Field    string `yaml:"field,omitempty" json:"field,omitempty"`
	Required bool   `yaml:"required,omitempty" json:"required,omitempty"`
}

// Upstream reports whether the parameter is fed by another task.
func (p Param) Upstream() bool {
	return p.From != "" && p.From != SourceRequest
}

// Field describes one output field to the generation capability.
type Field struct {
	Name        string `yaml:"name" json:"name"`
	Type        string `yaml:"type" json:"type"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Spec is the static description of a generation task.
type Spec struct {
	ID          string               `yaml:"id" json:"id"`
	Description string               `yaml:"description,omitempty" json:"description,omitempty"`
	DependsOn   []string             `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`
	Inputs      []Param              `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	Fields      []Field              `yaml:"fields,omitempty" json:"fields,omitempty"`
	Constraints verify.ConstraintSet `yaml:"constraints,omitempty" json:"constraints,omitempty"`
	Prompt      string               `yaml:"prompt" json:"prompt"`
	Timeout     time.Duration        `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// RequestParams returns the names of request values the task reads.
func (s *Spec) RequestParams() []Param {
	var out []Param
	for _, p := range s.Inputs {
		if !p.Upstream() {
			out = append(out, p)
		}
	}
	return out
}

// ResolveInputs collects the task's inputs from the request and from the
// outputs of finished upstream tasks.
func (s *Spec) ResolveInputs(request map[string]any, upstream map[string]verify.Document) (map[string]any, error) {
	inputs := make(map[string]any, len(s.Inputs))
	for _, p := range s.Inputs {
		v, ok := p.Lookup(request, upstream)
		if !ok {
			if p.Required {
				return nil, fmt.Errorf("task %s: input %q: %w", s.ID, p.Name, ErrMissingInput)
			}
			continue
		}
		inputs[p.Name] = v
	}
	return inputs, nil
}

// Lookup resolves the parameter. Nil values and empty strings count as
// absent.
func (p Param) Lookup(request map[string]any, upstream map[string]verify.Document) (any, bool) {
	if !p.Upstream() {
		key := p.Field
		if key == "" {
			key = p.Name
		}
		v, ok := verify.Get(request, key)
		if !ok || v == nil {
			return nil, false
		}
		if s, isStr := v.(string); isStr && s == "" {
			return nil, false
		}
		return v, true
	}
	doc, ok := upstream[p.From]
	if !ok {
		return nil, false
	}
	if p.Field == "" {
		return map[string]any(verify.Clone(doc)), true
	}
	v, ok := verify.Get(doc, p.Field)
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// State is the lifecycle position of an Instance.
type State int

const (
	StatePending State = iota
	StateRunning
	StateValidating
	StateRepairing
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateValidating:
		return "validating"
	case StateRepairing:
		return "repairing"
	case StateCompleted:
		return "completed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool { return s == StateCompleted }

// Instance is one run of a Spec within a request.
type Instance struct {
	Spec   *Spec
	Inputs map[string]any

	mu        sync.Mutex
	state     State
	candidate verify.Document
	output    *Output
}

// NewInstance creates a pending instance.
func NewInstance(spec *Spec, inputs map[string]any) *Instance {
	return &Instance{Spec: spec, Inputs: inputs}
}

func (i *Instance) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// Candidate returns the raw generated value, nil if generation failed.
func (i *Instance) Candidate() verify.Document {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.candidate
}

// Output returns the final output once the instance is completed.
func (i *Instance) Output() (Output, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.output == nil {
		return Output{}, false
	}
	return *i.output, true
}

func (i *Instance) transition(to State) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.state.Terminal() {
		panic(fmt.Sprintf("task %s: transition from terminal state to %s", i.Spec.ID, to))
	}
	i.state = to
}

func (i *Instance) setCandidate(doc verify.Document) {
	i.mu.Lock()
	i.candidate = doc
	i.mu.Unlock()
}

func (i *Instance) complete(out Output) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.output = &out
	i.state = StateCompleted
}
