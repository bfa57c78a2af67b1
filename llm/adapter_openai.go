package llm

import "github.com/voocel/litellm/providers"

// NewOpenAIAdapter builds the OpenAI provider stream adapter. OpenAI's
// streaming tool-call deltas always carry the call's id on their first
// chunk, so this adapter forwards ids verbatim rather than minting its own.
func NewOpenAIAdapter(model, apiKey string, baseURL ...string) *Adapter {
	return &Adapter{
		Model:    NewOpenAIModel(model, apiKey, baseURL...),
		Provider: "openai",
	}
}

// NewOpenAIAdapterFromProvider wraps an already-configured OpenAI provider,
// for callers that need custom litellm.ClientOptions.
func NewOpenAIAdapterFromProvider(model string, provider providers.Provider) *Adapter {
	return &Adapter{
		Model:    NewLiteLLMAdapter(model, provider),
		Provider: "openai",
	}
}
