package task

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/cgast/gigsmith/internal/logger"
	"github.com/cgast/gigsmith/pkg/synth"
	"github.com/cgast/gigsmith/pkg/verify"
)

const (
	DefaultTimeout  = 30 * time.Second
	DefaultAttempts = 2
	DefaultBackoff  = 250 * time.Millisecond
)

// Fallback synthesizes valid values for tasks whose candidate failed.
// *synth.Synthesizer implements it.
type Fallback interface {
	Synthesize(taskID string, inputs map[string]any, set verify.ConstraintSet, prior verify.Document) verify.Document
	Filler(taskID string, inputs map[string]any) verify.Filler
}

// Output is the accepted value of a task plus how it was obtained.
type Output struct {
	TaskID string          `json:"task_id"`
	Value  verify.Document `json:"value"`
	// Repaired is set when the value came (at least partly) from the
	// fallback synthesizer.
	Repaired bool `json:"repaired"`
	// Normalized is set when the candidate passed only after normalization.
	Normalized bool               `json:"normalized"`
	Violations []verify.Violation `json:"violations,omitempty"`
	// Unresolved lists what the accepted value still violates. It stays
	// empty unless the fallback and the corrective pass both fall short.
	Unresolved      []verify.Violation `json:"unresolved,omitempty"`
	GenerationError string             `json:"generation_error,omitempty"`
	Attempts        int                `json:"attempts"`
	Duration        time.Duration      `json:"duration"`
}

// Runner executes single task instances.
type Runner struct {
	gen      Generator
	fallback Fallback
	timeout  time.Duration
	attempts int
	backoff  time.Duration
	logger   logger.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithTimeout sets the per-attempt timeout for tasks that do not set one.
func WithTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithRetry sets how many generation attempts a task gets and the initial
// backoff between them.
func WithRetry(attempts int, backoff time.Duration) RunnerOption {
	return func(r *Runner) {
		if attempts > 0 {
			r.attempts = attempts
		}
		if backoff > 0 {
			r.backoff = backoff
		}
	}
}

func WithLogger(l logger.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// NewRunner creates a Runner. A nil generator makes every task fall back; a
// nil fallback uses a randomly seeded synthesizer without providers.
func NewRunner(gen Generator, fallback Fallback, opts ...RunnerOption) *Runner {
	r := &Runner{
		gen:      gen,
		fallback: fallback,
		timeout:  DefaultTimeout,
		attempts: DefaultAttempts,
		backoff:  DefaultBackoff,
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.fallback == nil {
		r.fallback = synth.New(synth.WithLogger(r.logger))
	}
	return r
}

// Execute takes inst from pending to completed. It never fails: generation
// errors, timeouts and invalid candidates all end in a synthesized value
// that satisfies the task's constraints. Should the corrective pass still
// leave violations, they are logged and kept in Output.Unresolved.
func (r *Runner) Execute(ctx context.Context, inst *Instance) Output {
	start := time.Now()
	spec := inst.Spec
	set := spec.Constraints
	log := r.logger.With("task", spec.ID)
	out := Output{TaskID: spec.ID}

	inst.transition(StateRunning)
	var candidate verify.Document
	prompt, err := RenderPrompt(spec, inst.Inputs)
	if err == nil {
		candidate, out.Attempts, err = r.generate(ctx, spec, prompt)
	}
	if err != nil {
		out.GenerationError = err.Error()
		candidate = nil
		log.Warn("generation failed", "attempts", out.Attempts, "error", err)
	}
	inst.setCandidate(candidate)

	inst.transition(StateValidating)
	value := verify.Normalize(candidate, set)
	res := verify.Validate(value, set)
	if res.Valid() {
		out.Normalized = candidate != nil && !reflect.DeepEqual(value, candidate)
	} else {
		out.Violations = res.Violations
		inst.transition(StateRepairing)
		if candidate != nil {
			log.Warn("candidate failed validation", "violations", len(res.Violations), "fields", res.Fields())
		}
		value = r.fallback.Synthesize(spec.ID, inst.Inputs, set, value)
		if again := verify.Validate(value, set); !again.Valid() {
			log.Error("fallback failed validation", "error", again.Error())
			value = verify.Correct(value, set, r.fallback.Filler(spec.ID, inst.Inputs))
			if final := verify.Validate(value, set); !final.Valid() {
				out.Unresolved = final.Violations
				log.Error("value still violates constraints", "fields", final.Fields(), "error", final.Error())
			}
		}
		out.Repaired = true
	}

	out.Value = value
	out.Duration = time.Since(start)
	inst.complete(out)
	log.Debug("task completed", "repaired", out.Repaired, "normalized", out.Normalized, "duration", out.Duration)
	return out
}

func (r *Runner) generate(ctx context.Context, spec *Spec, prompt string) (verify.Document, int, error) {
	if r.gen == nil {
		return nil, 0, ErrUnavailable
	}
	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = r.timeout
	}
	req := Request{
		TaskID:      spec.ID,
		Prompt:      prompt,
		Fields:      spec.Fields,
		Constraints: spec.Constraints,
	}

	var (
		doc      verify.Document
		attempts int
	)
	backoff := retry.WithMaxRetries(uint64(r.attempts-1), retry.NewExponential(r.backoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		d, err := r.call(attemptCtx, req)
		switch {
		case err == nil:
			doc = d
			return nil
		case errors.Is(err, ErrUnavailable), ctx.Err() != nil:
			return err
		default:
			return retry.RetryableError(err)
		}
	})
	if err != nil {
		return nil, attempts, err
	}
	return doc, attempts, nil
}

func (r *Runner) call(ctx context.Context, req Request) (doc verify.Document, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("generator panicked: %v", p)
		}
	}()
	doc, err = r.gen.Generate(ctx, req)
	if err == nil && ctx.Err() != nil {
		// Late answers count as timeouts.
		return nil, ctx.Err()
	}
	return doc, err
}
