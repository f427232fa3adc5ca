package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/cgast/gigsmith/pkg/generate"
)

// Dir is the project directory holding config and history.
const Dir = ".gigsmith"

// Path returns the config file location inside root.
func Path(root string) string {
	return filepath.Join(root, Dir, "config.yaml")
}

// Config represents the runtime configuration from .gigsmith/config.yaml.
type Config struct {
	LogLevel     string             `yaml:"log_level" validate:"omitempty,oneof=debug info warn error disabled"`
	LogJSON      bool               `yaml:"log_json"`
	Generator    GeneratorConfig    `yaml:"generator"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Fallback     FallbackConfig     `yaml:"fallback"`
	Server       ServerConfig       `yaml:"server"`
	History      HistoryConfig      `yaml:"history"`
	// GraphFile is a TaskGraph or TaskOverlay document applied to the
	// built-in catalogue.
	GraphFile string `yaml:"graph_file"`
}

// GeneratorConfig selects the generation backend and how it is retried.
type GeneratorConfig struct {
	generate.Config `yaml:",inline"`
	Timeout         time.Duration `yaml:"timeout" validate:"gte=0"`
	Attempts        int           `yaml:"attempts" validate:"gte=1,lte=10"`
	Backoff         time.Duration `yaml:"backoff" validate:"gte=0"`
}

// OrchestratorConfig bounds task concurrency. Zero means unbounded.
type OrchestratorConfig struct {
	MaxParallel int `yaml:"max_parallel" validate:"gte=0"`
}

// FallbackConfig fixes the fallback seed; nil draws a fresh seed per task.
type FallbackConfig struct {
	Seed *uint64 `yaml:"seed"`
}

// ServerConfig defines the HTTP API listener.
type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required"`
}

// HistoryConfig defines run history settings.
type HistoryConfig struct {
	Persist    bool   `yaml:"persist"`
	Path       string `yaml:"path" validate:"required_if=Persist true"`
	MaxEntries int    `yaml:"max_entries" validate:"gte=0"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Generator: GeneratorConfig{
			Config: generate.Config{
				Backend: generate.BackendOffline,
				LLM: generate.LLMConfig{
					Provider:    generate.ProviderOpenAI,
					Temperature: 0.7,
				},
			},
			Timeout:  30 * time.Second,
			Attempts: 2,
			Backoff:  250 * time.Millisecond,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		History: HistoryConfig{
			Persist:    true,
			Path:       filepath.Join(Dir, "history.db"),
			MaxEntries: 1000,
		},
	}
}

// LoadConfig reads and parses a runtime config YAML file. ${VAR} references
// are replaced from the environment before parsing. Returns the default
// config if the file doesn't exist.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	interpolated := interpolateEnvVars(string(data))

	if err := yaml.Unmarshal([]byte(interpolated), &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(validateBackend, generate.Config{})
	return v
}

// validateBackend checks that the selected backend is known and has the
// settings it needs.
func validateBackend(sl validator.StructLevel) {
	cfg := sl.Current().Interface().(generate.Config)
	switch cfg.Backend {
	case "", generate.BackendOffline:
	case generate.BackendLLM:
		if cfg.LLM.Model == "" {
			sl.ReportError(cfg.LLM.Model, "model", "Model", "required_for_llm", "")
		}
	case generate.BackendHTTP:
		if cfg.HTTP.Endpoint == "" {
			sl.ReportError(cfg.HTTP.Endpoint, "endpoint", "Endpoint", "required_for_http", "")
		}
	default:
		sl.ReportError(cfg.Backend, "backend", "Backend", "oneof", "offline llm http")
	}
}

// Validate checks field values and returns one error listing every
// problem.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, len(verrs))
	for i, fe := range verrs {
		msgs[i] = fmt.Sprintf("%s: failed %s", strings.TrimPrefix(fe.Namespace(), "Config."), fe.Tag())
		if fe.Param() != "" {
			msgs[i] += " " + fe.Param()
		}
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// envVarPattern matches ${VAR_NAME} patterns.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// interpolateEnvVars replaces ${VAR_NAME} patterns with environment variable values.
func interpolateEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimPrefix(strings.TrimSuffix(match, "}"), "${")
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match // Leave unresolved if not set.
	})
}

// Write stores cfg at path, creating the directory.
func Write(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
