package generate

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/cgast/gigsmith/pkg/task"
	"github.com/cgast/gigsmith/pkg/verify"
)

// LLM providers.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

var ErrEmptyResponse = errors.New("empty model response")

// LLMConfig selects and configures a language model.
type LLMConfig struct {
	Provider    string  `yaml:"provider" json:"provider"`
	Model       string  `yaml:"model" json:"model"`
	APIKey      string  `yaml:"api_key" json:"-"`
	BaseURL     string  `yaml:"base_url" json:"base_url,omitempty"`
	Temperature float64 `yaml:"temperature" json:"temperature"`
}

// LLM generates task candidates with a langchaingo model in JSON mode.
type LLM struct {
	model       llms.Model
	temperature float64
}

// NewLLM creates the model named by cfg.
func NewLLM(cfg LLMConfig) (*LLM, error) {
	var (
		model llms.Model
		err   error
	)
	switch cfg.Provider {
	case ProviderOpenAI, "":
		opts := []openai.Option{openai.WithModel(cfg.Model)}
		if cfg.APIKey != "" {
			opts = append(opts, openai.WithToken(cfg.APIKey))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		model, err = openai.New(opts...)
	case ProviderOllama:
		opts := []ollama.Option{ollama.WithModel(cfg.Model), ollama.WithFormat("json")}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		model, err = ollama.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s model: %w", cfg.Provider, err)
	}
	return NewLLMWithModel(model, cfg.Temperature), nil
}

// NewLLMWithModel wraps an existing model.
func NewLLMWithModel(model llms.Model, temperature float64) *LLM {
	return &LLM{model: model, temperature: temperature}
}

func (g *LLM) Generate(ctx context.Context, req task.Request) (verify.Document, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, Contract(req)),
		llms.TextParts(llms.ChatMessageTypeHuman, req.Prompt),
	}
	opts := []llms.CallOption{llms.WithJSONMode()}
	if g.temperature > 0 {
		opts = append(opts, llms.WithTemperature(g.temperature))
	}

	resp, err := g.model.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return nil, fmt.Errorf("llm %s: %w", req.TaskID, err)
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0].Content == "" {
		return nil, fmt.Errorf("llm %s: %w", req.TaskID, ErrEmptyResponse)
	}
	doc, err := Decode(resp.Choices[0].Content, req.Fields)
	if err != nil {
		return nil, fmt.Errorf("llm %s: %w", req.TaskID, err)
	}
	return doc, nil
}
