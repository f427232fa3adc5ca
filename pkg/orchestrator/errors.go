package orchestrator

import (
	"errors"
	"fmt"

	"github.com/cgast/gigsmith/pkg/task"
)

var (
	ErrCycle             = errors.New("dependency cycle")
	ErrUnknownDependency = errors.New("unknown dependency")
	ErrDuplicateTask     = errors.New("duplicate task")
	ErrInvalidSpec       = errors.New("invalid task spec")
	ErrMissingInput      = task.ErrMissingInput
)

// ConfigError is a structural problem with the task graph or the request.
// It is reported before any task starts.
type ConfigError struct {
	Task string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Task == "" {
		return fmt.Sprintf("configuration error: %v", e.Err)
	}
	return fmt.Sprintf("configuration error in task %q: %v", e.Task, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

func configErr(taskID string, format string, args ...any) error {
	return &ConfigError{Task: taskID, Err: fmt.Errorf(format, args...)}
}
