package generate

import (
	"context"

	"github.com/cgast/gigsmith/pkg/task"
	"github.com/cgast/gigsmith/pkg/verify"
)

// Offline never generates anything, so every task takes its fallback. It is
// the default backend when no capability is configured.
type Offline struct{}

func (Offline) Generate(context.Context, task.Request) (verify.Document, error) {
	return nil, task.ErrUnavailable
}
