package spec

import (
	"fmt"

	"github.com/cgast/gigsmith/pkg/orchestrator"
	"github.com/cgast/gigsmith/pkg/task"
)

// ExecutionPlan is a preview of how a graph runs: which request inputs it
// needs and which tasks run together.
type ExecutionPlan struct {
	Graph  string      `json:"graph"`
	Inputs []string    `json:"inputs"`
	Stages []PlanStage `json:"stages"`
	Tasks  int         `json:"tasks"`
	// Width is the size of the largest stage, the most tasks that can run
	// at once.
	Width int `json:"width"`
}

// PlanStage is a set of tasks whose dependencies all sit in earlier stages.
type PlanStage struct {
	Index int        `json:"index"`
	Tasks []PlanTask `json:"tasks"`
}

// PlanTask is a single task in a plan.
type PlanTask struct {
	ID          string   `json:"id"`
	DependsOn   []string `json:"depends_on,omitempty"`
	Constraints []string `json:"constraints,omitempty"`
	Timeout     string   `json:"timeout,omitempty"`
}

// Resolve turns a validated document into task specs. Overlays are
// applied to base; full graphs replace it.
func Resolve(g TaskGraph, base []task.Spec) ([]task.Spec, error) {
	if vr := ValidateGraph(g); !vr.Valid() {
		return nil, fmt.Errorf("invalid graph %s: %s", g.Meta.Name, vr.Error())
	}
	if g.Kind == KindTaskOverlay {
		return Overlay(base, g)
	}
	return g.Tasks, nil
}

// GeneratePlan builds the graph and previews its execution.
func GeneratePlan(name string, specs []task.Spec) (ExecutionPlan, error) {
	g, err := orchestrator.BuildGraph(specs)
	if err != nil {
		return ExecutionPlan{}, err
	}

	plan := ExecutionPlan{Graph: name, Tasks: g.Len()}
	for _, p := range g.RequestParams() {
		plan.Inputs = append(plan.Inputs, p.Name)
	}
	for i, stage := range g.Stages() {
		ps := PlanStage{Index: i}
		for _, id := range stage {
			s, _ := g.Spec(id)
			pt := PlanTask{ID: id, DependsOn: s.DependsOn}
			for _, c := range s.Constraints {
				pt.Constraints = append(pt.Constraints, c.String())
			}
			if s.Timeout > 0 {
				pt.Timeout = s.Timeout.String()
			}
			ps.Tasks = append(ps.Tasks, pt)
		}
		plan.Width = max(plan.Width, len(stage))
		plan.Stages = append(plan.Stages, ps)
	}
	return plan, nil
}
