package generate

import (
	"fmt"

	"github.com/cgast/gigsmith/pkg/task"
)

// Config selects the backend and carries the settings of each kind.
type Config struct {
	Backend string     `yaml:"backend" json:"backend"`
	LLM     LLMConfig  `yaml:"llm" json:"llm"`
	HTTP    HTTPConfig `yaml:"http" json:"http"`
}

// FromConfig builds a registry with the backends cfg configures and
// resolves the selected one. An empty backend name selects offline.
func FromConfig(cfg Config) (*Registry, task.Generator, error) {
	reg := NewRegistry()
	if cfg.LLM.Model != "" {
		llm, err := NewLLM(cfg.LLM)
		if err != nil {
			return nil, nil, err
		}
		if err := reg.Register(BackendLLM, llm); err != nil {
			return nil, nil, err
		}
	}
	if cfg.HTTP.Endpoint != "" {
		h, err := NewHTTP(cfg.HTTP)
		if err != nil {
			return nil, nil, err
		}
		if err := reg.Register(BackendHTTP, h); err != nil {
			return nil, nil, err
		}
	}

	name := cfg.Backend
	if name == "" {
		name = BackendOffline
	}
	gen, err := reg.Resolve(name)
	if err != nil {
		return nil, nil, fmt.Errorf("generator backend %q (available: %v): %w", name, reg.Names(), err)
	}
	return reg, gen, nil
}
