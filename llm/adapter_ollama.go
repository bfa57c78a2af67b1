package llm

import "github.com/voocel/litellm/providers"

// NewOllamaAdapter builds the Ollama provider stream adapter. Local Ollama
// models frequently omit a tool-call id from their streaming deltas
// entirely, so this adapter mints an id (tc_<uuid>) for any tool call that
// arrives without one; a non-empty provider id is forwarded after
// normalization.
func NewOllamaAdapter(model string, baseURL ...string) *Adapter {
	cfg := providers.ProviderConfig{}
	if len(baseURL) > 0 {
		cfg.BaseURL = baseURL[0]
	}
	return &Adapter{
		Model:          NewLiteLLMAdapter(model, providers.NewOllama(cfg)),
		Provider:       "ollama",
		mintToolCallID: true,
	}
}
