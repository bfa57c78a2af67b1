package llm

import (
	"context"
	"errors"
	"testing"
)

func TestNewAdapterFromConfig(t *testing.T) {
	t.Run("unknown provider", func(t *testing.T) {
		_, err := NewAdapterFromConfig(context.Background(), ModelConfig{Provider: "mystery", Model: "m"})
		if err == nil {
			t.Fatal("expected an unknown-provider error")
		}
	})

	t.Run("missing model", func(t *testing.T) {
		_, err := NewAdapterFromConfig(context.Background(), ModelConfig{Provider: "ollama"})
		if err == nil {
			t.Fatal("expected a missing-model error")
		}
	})

	t.Run("ollama mints tool call ids", func(t *testing.T) {
		adapter, err := NewAdapterFromConfig(context.Background(), ModelConfig{Provider: "ollama", Model: "llama3"})
		if err != nil {
			t.Fatalf("NewAdapterFromConfig: %v", err)
		}
		if adapter.Provider != "ollama" {
			t.Errorf("Provider = %q", adapter.Provider)
		}
		if !adapter.mintToolCallID {
			t.Error("ollama adapter must mint its own tool call ids")
		}
	})

	t.Run("sampling overrides", func(t *testing.T) {
		adapter, err := NewAdapterFromConfig(context.Background(), ModelConfig{
			Provider:    "anthropic",
			Model:       "claude-sonnet-4",
			APIKey:      "k",
			Temperature: 0.2,
			MaxTokens:   512,
		})
		if err != nil {
			t.Fatalf("NewAdapterFromConfig: %v", err)
		}
		model, ok := adapter.Model.(*LiteLLMAdapter)
		if !ok {
			t.Fatalf("Model is %T, want *LiteLLMAdapter", adapter.Model)
		}
		cfg := model.GetConfig()
		if cfg.Temperature != 0.2 || cfg.MaxTokens != 512 {
			t.Errorf("config = temp %v maxTokens %d, want 0.2/512", cfg.Temperature, cfg.MaxTokens)
		}
		if DefaultGenerationConfig.Temperature == 0.2 {
			t.Error("override leaked into DefaultGenerationConfig")
		}
	})

	t.Run("api key producer failure", func(t *testing.T) {
		wantErr := errors.New("vault down")
		_, err := NewAdapterFromConfig(context.Background(), ModelConfig{
			Provider: "openai",
			Model:    "gpt-4o",
			APIKeyFunc: func(context.Context) (string, error) {
				return "", wantErr
			},
		})
		if !errors.Is(err, wantErr) {
			t.Fatalf("err = %v, want wrapped %v", err, wantErr)
		}
	})
}
