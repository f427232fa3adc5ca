// Package spec reads task graphs from YAML files.
package spec

import (
	"github.com/cgast/gigsmith/pkg/task"
)

const (
	APIVersion = "gigsmith/v1"

	// KindTaskGraph documents declare a complete graph.
	KindTaskGraph = "TaskGraph"
	// KindTaskOverlay documents change prompts, timeouts and descriptions of
	// an existing graph.
	KindTaskOverlay = "TaskOverlay"
)

// TaskGraph is a task graph document.
type TaskGraph struct {
	APIVersion string      `yaml:"apiVersion" json:"apiVersion"`
	Kind       string      `yaml:"kind" json:"kind"`
	Meta       GraphMeta   `yaml:"meta" json:"meta"`
	Params     []ParamDef  `yaml:"params,omitempty" json:"params,omitempty"`
	Tasks      []task.Spec `yaml:"tasks" json:"tasks"`
}

// GraphMeta contains metadata about the graph.
type GraphMeta struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Author      string `yaml:"author,omitempty" json:"author,omitempty"`
}

// ParamDef is a document variable substituted into {{name}} placeholders
// before the document is parsed.
type ParamDef struct {
	Name        string `yaml:"name" json:"name"`
	Default     any    `yaml:"default" json:"default"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}
