package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cgast/gigsmith/pkg/events"
	"github.com/cgast/gigsmith/pkg/synth"
	"github.com/cgast/gigsmith/pkg/task"
	"github.com/cgast/gigsmith/pkg/verify"
)

func spec(id string, deps ...string) task.Spec {
	s := task.Spec{
		ID:          id,
		DependsOn:   deps,
		Prompt:      "generate " + id,
		Constraints: verify.ConstraintSet{verify.NonEmpty("value")},
	}
	for _, d := range deps {
		s.Inputs = append(s.Inputs, task.Param{Name: d, From: d, Field: "value", Required: true})
	}
	return s
}

// diamond: a -> b, a -> c, (b, c) -> d, plus an independent e.
func diamond() []task.Spec {
	return []task.Spec{
		spec("a"),
		spec("b", "a"),
		spec("c", "a"),
		spec("d", "b", "c"),
		spec("e"),
	}
}

// recorder is a fake Executor that logs start and finish order and echoes
// its inputs into the output value.
type recorder struct {
	mu       sync.Mutex
	started  map[string]time.Time
	finished map[string]time.Time
	inputs   map[string]map[string]any
	running  atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
}

func newRecorder(delay time.Duration) *recorder {
	return &recorder{
		started:  map[string]time.Time{},
		finished: map[string]time.Time{},
		inputs:   map[string]map[string]any{},
		delay:    delay,
	}
}

func (r *recorder) Execute(_ context.Context, inst *task.Instance) task.Output {
	n := r.running.Add(1)
	for {
		p := r.peak.Load()
		if n <= p || r.peak.CompareAndSwap(p, n) {
			break
		}
	}
	r.mu.Lock()
	r.started[inst.Spec.ID] = time.Now()
	r.inputs[inst.Spec.ID] = inst.Inputs
	r.mu.Unlock()

	time.Sleep(r.delay)

	r.mu.Lock()
	r.finished[inst.Spec.ID] = time.Now()
	r.mu.Unlock()
	r.running.Add(-1)
	return task.Output{TaskID: inst.Spec.ID, Value: verify.Document{"value": "out-" + inst.Spec.ID}}
}

func TestBuildGraphErrors(t *testing.T) {
	badPrompt := spec("a")
	badPrompt.Prompt = "{{ .x "
	badSet := spec("a")
	badSet.Constraints = verify.ConstraintSet{verify.Items("tags", 5, 2)}
	enumOutsidePrefix := spec("a")
	enumOutsidePrefix.Constraints = verify.ConstraintSet{
		verify.Prefix("title", "I will"), verify.Enum("title", "Design a logo"),
	}
	twoPrefixes := spec("a")
	twoPrefixes.Constraints = verify.ConstraintSet{
		verify.Prefix("title", "I will"), verify.Prefix("title", "We can"),
	}
	disjointRanges := spec("a")
	disjointRanges.Constraints = verify.ConstraintSet{
		verify.Range("price", 0, 10), verify.Range("price", 20, 30),
	}
	stray := spec("b")
	stray.Inputs = []task.Param{{Name: "x", From: "a"}}

	tests := []struct {
		name  string
		specs []task.Spec
		want  error
		task  string
	}{
		{"cycle", []task.Spec{spec("a", "c"), spec("b", "a"), spec("c", "b")}, ErrCycle, "a"},
		{"self dependency", []task.Spec{spec("a", "a")}, ErrCycle, "a"},
		{"unknown dependency", []task.Spec{spec("a", "ghost")}, ErrUnknownDependency, "a"},
		{"duplicate", []task.Spec{spec("a"), spec("a")}, ErrDuplicateTask, "a"},
		{"empty id", []task.Spec{spec("")}, ErrInvalidSpec, ""},
		{"bad prompt", []task.Spec{badPrompt}, ErrInvalidSpec, "a"},
		{"infeasible constraints", []task.Spec{badSet}, ErrInvalidSpec, "a"},
		{"enum value without prefix", []task.Spec{enumOutsidePrefix}, ErrInvalidSpec, "a"},
		{"conflicting prefixes", []task.Spec{twoPrefixes}, ErrInvalidSpec, "a"},
		{"disjoint ranges", []task.Spec{disjointRanges}, ErrInvalidSpec, "a"},
		{"input from non dependency", []task.Spec{spec("a"), stray}, ErrInvalidSpec, "b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildGraph(tt.specs)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			var cfg *ConfigError
			require.ErrorAs(t, err, &cfg)
			assert.Equal(t, tt.task, cfg.Task)
		})
	}
}

func TestBuildGraphCycleBehindValidTasks(t *testing.T) {
	_, err := BuildGraph([]task.Spec{spec("root"), spec("x", "root", "y"), spec("y", "x")})
	require.ErrorIs(t, err, ErrCycle)
	assert.Contains(t, err.Error(), "x, y")
}

func TestStages(t *testing.T) {
	g, err := BuildGraph(diamond())
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "e"}, {"b", "c"}, {"d"}}, g.Stages())
	assert.Equal(t, []string{"b", "c"}, g.Dependents("a"))
	assert.Equal(t, 5, g.Len())
}

func TestRunAllRespectsDependencies(t *testing.T) {
	rec := newRecorder(5 * time.Millisecond)
	res, err := New(rec).RunAll(context.Background(), diamond(), nil)
	require.NoError(t, err)

	require.Len(t, res.Outputs, 5)
	assert.Len(t, res.Order, 5)
	for _, s := range diamond() {
		for _, dep := range s.DependsOn {
			assert.False(t, rec.started[s.ID].Before(rec.finished[dep]),
				"%s started before %s finished", s.ID, dep)
		}
	}
	assert.Equal(t, map[string]any{"b": "out-b", "c": "out-c"}, rec.inputs["d"])
	assert.Equal(t, verify.Document{"value": "out-d"}, res.Value("d"))
	assert.NotEmpty(t, res.RunID)
}

func TestRunAllRunsIndependentTasksConcurrently(t *testing.T) {
	const n = 4
	var wg sync.WaitGroup
	wg.Add(n)
	var specs []task.Spec
	for i := range n {
		specs = append(specs, spec(fmt.Sprintf("t%d", i)))
	}
	exec := executorFunc(func(_ context.Context, inst *task.Instance) task.Output {
		wg.Done()
		waited := make(chan struct{})
		go func() { wg.Wait(); close(waited) }()
		select {
		case <-waited:
		case <-time.After(2 * time.Second):
			return task.Output{TaskID: inst.Spec.ID, Value: verify.Document{"value": "timeout"}}
		}
		return task.Output{TaskID: inst.Spec.ID, Value: verify.Document{"value": "ok"}}
	})

	res, err := New(exec).RunAll(context.Background(), specs, nil)
	require.NoError(t, err)
	for _, out := range res.Outputs {
		assert.Equal(t, "ok", out.Value["value"], "tasks did not overlap")
	}
}

func TestRunAllMaxParallel(t *testing.T) {
	var specs []task.Spec
	for i := range 8 {
		specs = append(specs, spec(fmt.Sprintf("t%d", i)))
	}
	rec := newRecorder(5 * time.Millisecond)

	_, err := New(rec, WithMaxParallel(2)).RunAll(context.Background(), specs, nil)
	require.NoError(t, err)
	assert.LessOrEqual(t, rec.peak.Load(), int32(2))
	assert.Len(t, rec.finished, 8)
}

func TestRunAllFailsFastOnConfigError(t *testing.T) {
	rec := newRecorder(0)
	res, err := New(rec).RunAll(context.Background(), []task.Spec{spec("a", "b"), spec("b", "a")}, nil)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrCycle)
	assert.Empty(t, rec.started)
}

func TestRunAllMissingRequestInput(t *testing.T) {
	s := spec("title")
	s.Inputs = []task.Param{{Name: "keyword", Required: true}}
	rec := newRecorder(0)

	_, err := New(rec).RunAll(context.Background(), []task.Spec{s}, map[string]any{"keyword": ""})
	require.ErrorIs(t, err, ErrMissingInput)
	var cfg *ConfigError
	assert.True(t, errors.As(err, &cfg))
	assert.Empty(t, rec.started)

	_, err = New(rec).RunAll(context.Background(), []task.Spec{s}, map[string]any{"keyword": "logo"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"keyword": "logo"}, rec.inputs["title"])
}

func TestRunAllEmptyGraph(t *testing.T) {
	res, err := New(newRecorder(0)).RunAll(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Outputs)
}

func TestRunAllPublishesEvents(t *testing.T) {
	bus := events.NewMemoryBus()
	o := New(newRecorder(0), WithPublisher(bus), WithRunIDs(func() string { return "run-1" }))

	_, err := o.RunAll(context.Background(), diamond(), nil)
	require.NoError(t, err)

	got := bus.RunHistory("run-1")
	require.NotEmpty(t, got)
	assert.Equal(t, events.EventRunStart, got[0].Type)
	assert.Equal(t, events.EventRunEnd, got[len(got)-1].Type)
	ends := 0
	for _, e := range got {
		if e.Type == events.EventTaskEnd {
			ends++
		}
	}
	assert.Equal(t, 5, ends)
}

func TestRunAllWithFailingGenerator(t *testing.T) {
	gen := task.GeneratorFunc(func(context.Context, task.Request) (verify.Document, error) {
		return nil, errors.New("backend down")
	})
	runner := task.NewRunner(gen, synth.New(synth.WithSeed(1)), task.WithRetry(1, time.Millisecond))
	specs := diamond()

	res, err := New(runner).RunAll(context.Background(), specs, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, res.Repaired())
	for _, s := range specs {
		out := res.Outputs[s.ID]
		assert.True(t, verify.Validate(out.Value, s.Constraints).Valid(), s.ID)
	}
}

func TestRunAllConcurrentRuns(t *testing.T) {
	o := New(newRecorder(time.Millisecond))
	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := o.RunAll(context.Background(), diamond(), nil)
			assert.NoError(t, err)
			assert.Len(t, res.Outputs, 5)
		}()
	}
	wg.Wait()
}

type executorFunc func(ctx context.Context, inst *task.Instance) task.Output

func (f executorFunc) Execute(ctx context.Context, inst *task.Instance) task.Output {
	return f(ctx, inst)
}
