package llm

import (
	"context"
	"fmt"
)

// ModelConfig is the declarative form of a model binding: which provider
// and model name, how to authenticate, and the sampling overrides to
// apply. It exists so agent configuration can be data (loaded, logged,
// diffed) rather than a chain of constructor calls.
type ModelConfig struct {
	Provider    string  `json:"provider"` // "openai", "anthropic", "ollama"
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	BaseURL     string  `json:"base_url,omitempty"`

	// APIKey authenticates directly; APIKeyFunc defers the lookup (vault,
	// short-lived token) to adapter construction time. When both are set,
	// APIKeyFunc wins.
	APIKey     string                                       `json:"api_key,omitempty"`
	APIKeyFunc func(ctx context.Context) (string, error) `json:"-"`
}

// NewAdapterFromConfig resolves cfg into a provider stream adapter,
// dispatching on cfg.Provider. ctx is only consulted when an APIKeyFunc
// needs resolving.
func NewAdapterFromConfig(ctx context.Context, cfg ModelConfig) (*Adapter, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("llm: model name is required")
	}

	apiKey := cfg.APIKey
	if cfg.APIKeyFunc != nil {
		resolved, err := cfg.APIKeyFunc(ctx)
		if err != nil {
			return nil, fmt.Errorf("llm: resolve api key for %s: %w", cfg.Provider, err)
		}
		apiKey = resolved
	}

	var baseURL []string
	if cfg.BaseURL != "" {
		baseURL = []string{cfg.BaseURL}
	}

	var adapter *Adapter
	switch cfg.Provider {
	case "openai":
		adapter = NewOpenAIAdapter(cfg.Model, apiKey, baseURL...)
	case "anthropic":
		adapter = NewAnthropicAdapter(cfg.Model, apiKey, baseURL...)
	case "ollama":
		adapter = NewOllamaAdapter(cfg.Model, baseURL...)
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}

	if cfg.Temperature > 0 || cfg.MaxTokens > 0 {
		if model, ok := adapter.Model.(*LiteLLMAdapter); ok {
			gen := *DefaultGenerationConfig
			if cfg.Temperature > 0 {
				gen.Temperature = cfg.Temperature
			}
			if cfg.MaxTokens > 0 {
				gen.MaxTokens = cfg.MaxTokens
			}
			model.SetConfig(&gen)
		}
	}
	return adapter, nil
}
