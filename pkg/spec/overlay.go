package spec

import (
	"errors"
	"fmt"
	"slices"

	"github.com/cgast/gigsmith/pkg/task"
)

var ErrUnknownTask = errors.New("unknown task")

// Overlay returns a copy of base with the prompts, timeouts and
// descriptions the overlay sets. Fields left empty in the overlay keep
// their base value.
func Overlay(base []task.Spec, g TaskGraph) ([]task.Spec, error) {
	out := slices.Clone(base)
	index := make(map[string]int, len(out))
	for i, s := range out {
		index[s.ID] = i
	}
	for _, o := range g.Tasks {
		i, ok := index[o.ID]
		if !ok {
			return nil, fmt.Errorf("overlay %s: %q: %w", g.Meta.Name, o.ID, ErrUnknownTask)
		}
		if o.Prompt != "" {
			out[i].Prompt = o.Prompt
		}
		if o.Timeout > 0 {
			out[i].Timeout = o.Timeout
		}
		if o.Description != "" {
			out[i].Description = o.Description
		}
	}
	return out, nil
}
