// Package orchestrator runs a graph of generation tasks, starting each task
// as soon as its dependencies have completed.
package orchestrator

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/cgast/gigsmith/internal/logger"
	"github.com/cgast/gigsmith/pkg/events"
	"github.com/cgast/gigsmith/pkg/task"
	"github.com/cgast/gigsmith/pkg/verify"
)

// Executor runs one task instance to completion. *task.Runner implements it.
type Executor interface {
	Execute(ctx context.Context, inst *task.Instance) task.Output
}

// Recorder receives per-task and per-run measurements.
type Recorder interface {
	ObserveTask(out task.Output)
	ObserveRun(result *Result)
}

// Result holds the output of every task of a run.
type Result struct {
	RunID    string                 `json:"run_id"`
	Request  map[string]any         `json:"request,omitempty"`
	Outputs  map[string]task.Output `json:"outputs"`
	Order    []string               `json:"order"`
	Started  time.Time              `json:"started"`
	Finished time.Time              `json:"finished"`
}

// Value returns the accepted value of a task.
func (r *Result) Value(taskID string) verify.Document {
	return r.Outputs[taskID].Value
}

// Repaired returns the ids of tasks whose value came from the fallback.
func (r *Result) Repaired() []string {
	var out []string
	for id, o := range r.Outputs {
		if o.Repaired {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

// Duration returns the wall time of the run.
func (r *Result) Duration() time.Duration { return r.Finished.Sub(r.Started) }

// Orchestrator runs task graphs. It holds no per-run state and can serve
// concurrent runs.
type Orchestrator struct {
	exec        Executor
	maxParallel int
	logger      logger.Logger
	publisher   events.Publisher
	recorder    Recorder
	newRunID    func() string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMaxParallel bounds how many tasks of one run execute at once. Zero or
// less means no bound.
func WithMaxParallel(n int) Option {
	return func(o *Orchestrator) { o.maxParallel = n }
}

func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithPublisher sets where run and task events go.
func WithPublisher(p events.Publisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithRunIDs overrides run id generation.
func WithRunIDs(fn func() string) Option {
	return func(o *Orchestrator) { o.newRunID = fn }
}

// New creates an Orchestrator around exec.
func New(exec Executor, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		exec:     exec,
		logger:   logger.Nop(),
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RunAll builds the graph from specs and runs it for one request.
func (o *Orchestrator) RunAll(ctx context.Context, specs []task.Spec, request map[string]any) (*Result, error) {
	g, err := BuildGraph(specs)
	if err != nil {
		return nil, err
	}
	return o.Run(ctx, g, request)
}

type completion struct {
	idx int
	out task.Output
}

// Run executes every task of g. Required request inputs are checked before
// anything starts; after that the run cannot fail, since every task ends
// with a valid value.
func (o *Orchestrator) Run(ctx context.Context, g *Graph, request map[string]any) (*Result, error) {
	if err := checkRequest(g, request); err != nil {
		return nil, err
	}

	res := &Result{
		RunID:   o.newRunID(),
		Request: request,
		Outputs: make(map[string]task.Output, g.Len()),
		Order:   make([]string, 0, g.Len()),
		Started: time.Now(),
	}
	log := o.logger.With("run", res.RunID)
	log.Info("run started", "tasks", g.Len())
	o.publish(events.TaskEvent(events.EventRunStart, res.RunID, "", map[string]any{"tasks": g.Len()}))

	// Only this goroutine touches indegree and values. Task goroutines own
	// their instance until they hand the output back on done.
	indegree := g.indegrees()
	values := make(map[string]verify.Document, g.Len())
	done := make(chan completion, g.Len())

	var eg errgroup.Group
	if o.maxParallel > 0 {
		eg.SetLimit(o.maxParallel)
	}
	launch := func(i int) {
		spec := g.specs[i]
		inputs, err := spec.ResolveInputs(request, values)
		if err != nil {
			// Unreachable for a built graph and a checked request.
			log.Error("resolve inputs", "task", spec.ID, "error", err)
			inputs = map[string]any{}
		}
		inst := task.NewInstance(spec, inputs)
		o.publish(events.TaskEvent(events.EventTaskStart, res.RunID, spec.ID, nil))
		eg.Go(func() error {
			done <- completion{idx: i, out: o.exec.Execute(ctx, inst)}
			return nil
		})
	}

	for i, d := range indegree {
		if d == 0 {
			launch(i)
		}
	}
	for range g.Len() {
		c := <-done
		id := g.specs[c.idx].ID
		res.Outputs[id] = c.out
		res.Order = append(res.Order, id)
		values[id] = c.out.Value
		o.taskFinished(res.RunID, c.out)

		for _, j := range g.dependents[c.idx] {
			indegree[j]--
			if indegree[j] == 0 {
				launch(j)
			}
		}
	}
	_ = eg.Wait()

	res.Finished = time.Now()
	repaired := res.Repaired()
	log.Info("run finished", "duration", res.Duration(), "repaired", len(repaired))
	o.publish(events.TaskEvent(events.EventRunEnd, res.RunID, "", map[string]any{
		"repaired": repaired,
	}))
	if o.recorder != nil {
		o.recorder.ObserveRun(res)
	}
	return res, nil
}

func (o *Orchestrator) taskFinished(runID string, out task.Output) {
	o.logger.Debug("task finished", "run", runID, "task", out.TaskID, "repaired", out.Repaired, "duration", out.Duration)
	if out.Repaired {
		e := events.TaskEvent(events.EventTaskRepaired, runID, out.TaskID, map[string]any{
			"violations":       out.Violations,
			"generation_error": out.GenerationError,
		})
		o.publish(e)
	}
	e := events.TaskEvent(events.EventTaskEnd, runID, out.TaskID, map[string]any{
		"repaired":   out.Repaired,
		"normalized": out.Normalized,
		"attempts":   out.Attempts,
	})
	e.Duration = out.Duration
	o.publish(e)
	if o.recorder != nil {
		o.recorder.ObserveTask(out)
	}
}

func (o *Orchestrator) publish(e events.Event) {
	if o.publisher != nil {
		o.publisher.Publish(e)
	}
}

func checkRequest(g *Graph, request map[string]any) error {
	for _, p := range g.RequestParams() {
		if !p.Required {
			continue
		}
		if _, ok := p.Lookup(request, nil); !ok {
			return &ConfigError{Err: fmt.Errorf("request input %q: %w", p.Name, ErrMissingInput)}
		}
	}
	return nil
}
