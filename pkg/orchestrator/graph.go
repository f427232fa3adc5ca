package orchestrator

import (
	"slices"
	"strings"

	"github.com/cgast/gigsmith/pkg/task"
)

// Graph is a validated, acyclic set of task specs.
type Graph struct {
	specs      []*task.Spec
	index      map[string]int
	deps       [][]int
	dependents [][]int
}

// BuildGraph validates specs and links them into a Graph. It rejects
// missing or duplicate ids, unknown and self dependencies, cycles, prompts
// that do not parse, unsatisfiable constraint sets and inputs read from
// tasks that are not declared dependencies.
func BuildGraph(specs []task.Spec) (*Graph, error) {
	g := &Graph{
		specs: make([]*task.Spec, len(specs)),
		index: make(map[string]int, len(specs)),
	}
	for i := range specs {
		s := specs[i]
		id := strings.TrimSpace(s.ID)
		if id == "" || id != s.ID {
			return nil, configErr(s.ID, "task %d: id must be non-empty without surrounding spaces: %w", i, ErrInvalidSpec)
		}
		if _, dup := g.index[id]; dup {
			return nil, configErr(id, "%w", ErrDuplicateTask)
		}
		g.index[id] = i
		g.specs[i] = &s
	}

	g.deps = make([][]int, len(specs))
	g.dependents = make([][]int, len(specs))
	for i, s := range g.specs {
		declared := make(map[string]bool, len(s.DependsOn))
		for _, dep := range s.DependsOn {
			if dep == s.ID {
				return nil, configErr(s.ID, "depends on itself: %w", ErrCycle)
			}
			j, ok := g.index[dep]
			if !ok {
				return nil, configErr(s.ID, "%w %q", ErrUnknownDependency, dep)
			}
			if declared[dep] {
				continue
			}
			declared[dep] = true
			g.deps[i] = append(g.deps[i], j)
			g.dependents[j] = append(g.dependents[j], i)
		}
		if err := checkSpec(s, declared); err != nil {
			return nil, err
		}
	}

	if cyc := g.unordered(); len(cyc) > 0 {
		return nil, configErr(cyc[0], "%w among %s", ErrCycle, strings.Join(cyc, ", "))
	}
	return g, nil
}

func checkSpec(s *task.Spec, declared map[string]bool) error {
	for _, p := range s.Inputs {
		if strings.TrimSpace(p.Name) == "" {
			return configErr(s.ID, "input without a name: %w", ErrInvalidSpec)
		}
		if p.Upstream() && !declared[p.From] {
			return configErr(s.ID, "input %q reads task %q which is not a dependency: %w", p.Name, p.From, ErrInvalidSpec)
		}
	}
	if _, err := task.ParsePrompt(s.ID, s.Prompt); err != nil {
		return configErr(s.ID, "%w: %w", ErrInvalidSpec, err)
	}
	if err := s.Constraints.Check(); err != nil {
		return configErr(s.ID, "%w: %w", ErrInvalidSpec, err)
	}
	return nil
}

// unordered runs Kahn's algorithm and returns the ids it could not order,
// which are exactly the tasks on or behind a cycle.
func (g *Graph) unordered() []string {
	indegree := g.indegrees()
	queue := make([]int, 0, len(g.specs))
	for i, d := range indegree {
		if d == 0 {
			queue = append(queue, i)
		}
	}
	seen := 0
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		seen++
		for _, j := range g.dependents[i] {
			indegree[j]--
			if indegree[j] == 0 {
				queue = append(queue, j)
			}
		}
	}
	if seen == len(g.specs) {
		return nil
	}
	var left []string
	for i, d := range indegree {
		if d > 0 {
			left = append(left, g.specs[i].ID)
		}
	}
	return left
}

func (g *Graph) indegrees() []int {
	out := make([]int, len(g.specs))
	for i := range g.specs {
		out[i] = len(g.deps[i])
	}
	return out
}

// Len returns the number of tasks.
func (g *Graph) Len() int { return len(g.specs) }

// Specs returns the specs in declaration order.
func (g *Graph) Specs() []*task.Spec { return slices.Clone(g.specs) }

// Spec looks up a task by id.
func (g *Graph) Spec(id string) (*task.Spec, bool) {
	i, ok := g.index[id]
	if !ok {
		return nil, false
	}
	return g.specs[i], true
}

// Dependents returns the ids of the tasks that directly depend on id.
func (g *Graph) Dependents(id string) []string {
	i, ok := g.index[id]
	if !ok {
		return nil
	}
	out := make([]string, len(g.dependents[i]))
	for k, j := range g.dependents[i] {
		out[k] = g.specs[j].ID
	}
	return out
}

// Stages groups task ids into topological levels: every task's
// dependencies sit in earlier stages. Tasks within a stage keep
// declaration order.
func (g *Graph) Stages() [][]string {
	indegree := g.indegrees()
	var current []int
	for i, d := range indegree {
		if d == 0 {
			current = append(current, i)
		}
	}
	var stages [][]string
	for len(current) > 0 {
		stage := make([]string, len(current))
		var next []int
		for k, i := range current {
			stage[k] = g.specs[i].ID
			for _, j := range g.dependents[i] {
				indegree[j]--
				if indegree[j] == 0 {
					next = append(next, j)
				}
			}
		}
		slices.Sort(next)
		stages = append(stages, stage)
		current = next
	}
	return stages
}

// RequestParams returns the request inputs the graph reads, one entry per
// name. A name is required if any task requires it.
func (g *Graph) RequestParams() []task.Param {
	var out []task.Param
	pos := make(map[string]int)
	for _, s := range g.specs {
		for _, p := range s.RequestParams() {
			key := p.Field
			if key == "" {
				key = p.Name
			}
			if i, ok := pos[key]; ok {
				out[i].Required = out[i].Required || p.Required
				continue
			}
			pos[key] = len(out)
			out = append(out, task.Param{Name: key, Required: p.Required})
		}
	}
	return out
}
