// Package synth builds schema-valid fallback values for tasks whose
// generated output is missing or invalid.
package synth

import (
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"strings"

	"dario.cat/mergo"

	"github.com/cgast/gigsmith/internal/logger"
	"github.com/cgast/gigsmith/pkg/verify"
)

// Request is what a ContentFunc receives.
type Request struct {
	TaskID string
	Inputs map[string]any
	// Topic is the keyword (or title) the task is about.
	Topic string
	// Rand is private to this call and seeded from the synthesizer's seed
	// source and the task id.
	Rand *rand.Rand
}

// ContentFunc produces task-specific fallback content. It may return a
// partial document; whatever it leaves out or gets wrong is filled
// generically.
type ContentFunc func(req Request) verify.Document

// Synthesizer produces fallback documents. It is safe for concurrent use:
// every call builds its own random generator.
type Synthesizer struct {
	seed      func() uint64
	providers map[string]ContentFunc
	logger    logger.Logger
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithSeed fixes the seed, making output reproducible.
func WithSeed(seed uint64) Option {
	return func(s *Synthesizer) { s.seed = func() uint64 { return seed } }
}

// WithSeedFunc sets the seed source consulted once per call.
func WithSeedFunc(fn func() uint64) Option {
	return func(s *Synthesizer) {
		if fn != nil {
			s.seed = fn
		}
	}
}

// WithProvider registers the content provider for a task.
func WithProvider(taskID string, fn ContentFunc) Option {
	return func(s *Synthesizer) { s.providers[taskID] = fn }
}

// WithLogger sets the logger used to report provider failures.
func WithLogger(l logger.Logger) Option {
	return func(s *Synthesizer) { s.logger = l }
}

// New creates a Synthesizer. Without WithSeed every call draws a fresh seed.
func New(opts ...Option) *Synthesizer {
	s := &Synthesizer{
		seed:      rand.Uint64,
		providers: make(map[string]ContentFunc),
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Providers returns the task ids that have a registered provider.
func (s *Synthesizer) Providers() []string {
	out := make([]string, 0, len(s.providers))
	for id := range s.providers {
		out = append(out, id)
	}
	return out
}

// Synthesize returns a document valid against set. Fields of prior that
// already satisfy their constraints are kept, short arrays are topped up
// from provider content, and everything else comes from the provider or the
// generic filler.
func (s *Synthesizer) Synthesize(taskID string, inputs map[string]any, set verify.ConstraintSet, prior verify.Document) verify.Document {
	seed := s.seed()
	req := Request{
		TaskID: taskID,
		Inputs: inputs,
		Topic:  Topic(taskID, inputs),
		Rand:   rand.New(rand.NewPCG(seed, streamOf(taskID))),
	}

	out := keepValid(prior, set)
	content := s.content(req)

	for _, c := range set {
		if c.Kind != verify.KindItems {
			continue
		}
		have, _ := verify.AsSlice(fieldValue(out, c.Field))
		extra, _ := verify.AsSlice(fieldValue(content, c.Field))
		merged := TopUp(have, extra, int(c.Min), int(c.Max))
		if len(merged) > 0 || len(have) > 0 {
			verify.Set(out, c.Field, merged)
		}
	}

	if content != nil {
		if err := mergo.Merge(&out, content); err != nil {
			s.logger.Warn("merge fallback content", "task", taskID, "error", err)
		}
	}

	return verify.Correct(out, set, newFiller(req.Topic, seed, taskID))
}

// Filler returns the generic filler for a task, keyed on its keyword or
// title input only.
func (s *Synthesizer) Filler(taskID string, inputs map[string]any) verify.Filler {
	return newFiller(Topic(taskID, inputs), s.seed(), taskID)
}

func (s *Synthesizer) content(req Request) (doc verify.Document) {
	fn, ok := s.providers[req.TaskID]
	if !ok {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("fallback provider panicked", "task", req.TaskID, "panic", fmt.Sprint(r))
			doc = nil
		}
	}()
	return verify.Clone(fn(req))
}

// keepValid returns a normalized copy of prior without the fields that
// violate set. Arrays with the wrong length are kept for topping up; the
// fields of an ascending group are dropped together so replacements stay
// consistent with each other.
func keepValid(prior verify.Document, set verify.ConstraintSet) verify.Document {
	out := verify.Normalize(prior, set)
	for _, v := range verify.Validate(out, set).Violations {
		c := v.Constraint
		if c.Kind == verify.KindItems {
			if _, ok := verify.AsSlice(fieldValue(out, c.Field)); ok {
				continue
			}
		}
		for _, f := range c.Targets() {
			verify.Delete(out, f)
		}
	}
	for _, c := range set {
		if c.Kind != verify.KindAscending {
			continue
		}
		for _, f := range c.Fields {
			if _, ok := verify.Get(out, f); !ok {
				for _, g := range c.Fields {
					verify.Delete(out, g)
				}
				break
			}
		}
	}
	return out
}

func fieldValue(doc verify.Document, field string) any {
	if doc == nil {
		return nil
	}
	v, _ := verify.Get(doc, field)
	return v
}

// Topic picks the subject a task's fallback content is about: the keyword
// input, else the title, else the task id.
func Topic(taskID string, inputs map[string]any) string {
	for _, key := range []string{"keyword", "title"} {
		if s, ok := inputs[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return taskID
}

func streamOf(taskID string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(taskID))
	return h.Sum64()
}
