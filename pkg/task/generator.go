package task

import (
	"context"
	"errors"

	"github.com/cgast/gigsmith/pkg/verify"
)

// ErrUnavailable marks a generation failure that retrying cannot fix.
var ErrUnavailable = errors.New("generator unavailable")

// Request is what the generation capability receives for one attempt.
type Request struct {
	TaskID      string               `json:"task_id"`
	Prompt      string               `json:"prompt"`
	Fields      []Field              `json:"fields"`
	Constraints verify.ConstraintSet `json:"constraints"`
}

// Generator is the opaque natural-language generation capability. It
// returns the raw structured candidate for a task or an error.
type Generator interface {
	Generate(ctx context.Context, req Request) (verify.Document, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req Request) (verify.Document, error)

func (f GeneratorFunc) Generate(ctx context.Context, req Request) (verify.Document, error) {
	return f(ctx, req)
}
