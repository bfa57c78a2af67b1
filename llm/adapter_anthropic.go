package llm

import "github.com/voocel/litellm/providers"

// NewAnthropicAdapter builds the Anthropic provider stream adapter.
// Anthropic, like OpenAI, issues a stable tool_use id with the opening
// content block, so ids are forwarded verbatim.
func NewAnthropicAdapter(model, apiKey string, baseURL ...string) *Adapter {
	return &Adapter{
		Model:    NewAnthropicModel(model, apiKey, baseURL...),
		Provider: "anthropic",
	}
}

// NewAnthropicAdapterFromProvider wraps an already-configured Anthropic
// provider, for callers that need custom litellm.ClientOptions.
func NewAnthropicAdapterFromProvider(model string, provider providers.Provider) *Adapter {
	return &Adapter{
		Model:    NewLiteLLMAdapter(model, provider),
		Provider: "anthropic",
	}
}
