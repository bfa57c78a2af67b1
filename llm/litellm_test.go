package llm

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/voocel/litellm"
)

func TestLiteLLMAdapter_Creation(t *testing.T) {
	adapter := NewOpenAIModel("gpt-4.1-mini", os.Getenv("OPENAI_API_KEY"), os.Getenv("OPENAI_BASE_URL"))
	if adapter.Info().Name != "gpt-4.1-mini" {
		t.Errorf("Expected model name 'gpt-4.1-mini', got %s", adapter.Info().Name)
	}

	if adapter.Info().Provider != "openai" {
		t.Errorf("Expected provider 'openai', got %s", adapter.Info().Provider)
	}

	capabilities := adapter.Info().Capabilities
	expectedCaps := []string{"chat", "completion", "streaming", "tool_calling"}
	for _, expected := range expectedCaps {
		found := false
		for _, cap := range capabilities {
			if cap == expected {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("Expected capability '%s' not found", expected)
		}
	}
}

func TestLiteLLMAdapter_Anthropic(t *testing.T) {
	adapter := NewAnthropicModel("claude-4-sonnet", os.Getenv("ANTHROPIC_API_KEY"), os.Getenv("ANTHROPIC_BASE_URL"))

	if adapter.Info().Provider != "anthropic" {
		t.Errorf("Expected provider 'anthropic', got %s", adapter.Info().Provider)
	}
}

func TestLiteLLMAdapter_Gemini(t *testing.T) {
	adapter := NewGeminiModel("gemini-2.5-flash", os.Getenv("GEMINI_API_KEY"), os.Getenv("GEMINI_BASE_URL"))
	if adapter.Info().Provider != "google" {
		t.Errorf("Expected provider 'google', got %s", adapter.Info().Provider)
	}
}

func TestConvertMessages(t *testing.T) {
	messages := []Message{
		UserMsg("Hello"),
		{Role: RoleAssistant, Content: []ContentBlock{TextBlock("Hi there!")}},
	}

	llmMessages := convertMessages(messages)

	if len(llmMessages) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(llmMessages))
	}

	if llmMessages[0].Role != "user" {
		t.Errorf("Expected role 'user', got %s", llmMessages[0].Role)
	}

	if llmMessages[0].Content != "Hello" {
		t.Errorf("Expected content 'Hello', got %s", llmMessages[0].Content)
	}
}

func TestConvertMessages_ToolCallRoundTrip(t *testing.T) {
	toolCallArgs := json.RawMessage(`{"expression":"1+1"}`)
	messages := []Message{
		{
			Role:    RoleAssistant,
			Content: []ContentBlock{ToolCallBlock(ToolCall{ID: "call_1", Name: "calculator", Args: toolCallArgs})},
		},
		ToolResultMsg("call_1", json.RawMessage(`"2"`), false),
	}

	llmMessages := convertMessages(messages)

	if len(llmMessages[0].ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(llmMessages[0].ToolCalls))
	}
	if llmMessages[0].ToolCalls[0].Function.Name != "calculator" {
		t.Errorf("unexpected tool call name: %s", llmMessages[0].ToolCalls[0].Function.Name)
	}
	if llmMessages[1].ToolCallID != "call_1" {
		t.Errorf("expected tool call ID 'call_1', got %s", llmMessages[1].ToolCallID)
	}
}

func TestConvertResponse(t *testing.T) {
	response := &litellm.Response{
		Content: "",
		ToolCalls: []litellm.ToolCall{
			{
				ID: "call_1",
				Function: litellm.FunctionCall{
					Name:      "calculator",
					Arguments: `{"value":2}`,
				},
			},
		},
		FinishReason: "tool_calls",
		Model:        "gpt-test",
		Provider:     "openai",
		Usage: litellm.Usage{
			PromptTokens:     10,
			CompletionTokens: 5,
			TotalTokens:      15,
		},
	}

	msg := convertResponse(response)

	calls := msg.ToolCalls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 tool call in response, got %d", len(calls))
	}
	if calls[0].Name != "calculator" {
		t.Errorf("unexpected response tool call name: %s", calls[0].Name)
	}
	if msg.StopReason != StopReasonToolUse {
		t.Errorf("expected stop reason toolUse, got %s", msg.StopReason)
	}
	if msg.Usage == nil || msg.Usage.TotalTokens == 0 {
		t.Errorf("expected token usage to be populated")
	}
}

// Streaming test against a live provider; skipped without credentials.
func TestLiteLLMAdapter_StreamAPI(t *testing.T) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("OPENAI_API_KEY not set, skipping streaming API test")
	}
	apiBaseUrl := os.Getenv("OPENAI_BASE_URL")
	if apiBaseUrl == "" {
		apiBaseUrl = "https://api.openai.com/v1"
	}

	adapter := NewOpenAIModel("gpt-4.1-mini", apiKey, apiBaseUrl)

	eventChan, err := adapter.GenerateStream(context.Background(), []Message{
		UserMsg("Count from 1 to 5, one number per line."),
	}, nil)
	if err != nil {
		t.Fatalf("Failed to start stream: %v", err)
	}

	var events []StreamEvent
	var final Message

	for event := range eventChan {
		events = append(events, event)
		switch event.Type {
		case StreamEventError:
			t.Errorf("Stream error: %v", event.Err)
		case StreamEventDone:
			final = event.Message
		}
	}

	if len(events) == 0 {
		t.Error("Expected at least one event")
	}
	if events[len(events)-1].Type != StreamEventDone {
		t.Errorf("Expected last event to be done, got %s", events[len(events)-1].Type)
	}
	if final.TextContent() == "" {
		t.Error("Expected non-empty final content")
	}
}

func TestToolCallingSupport(t *testing.T) {
	tests := []struct {
		model    string
		expected bool
	}{
		{"gpt-4.1", true},
		{"gpt-5", true},
		{"claude-4-sonnet", true},
		{"gemini-2.5-pro", true},
		{"unknown-model", false},
	}

	for _, test := range tests {
		result := supportsToolCalling(test.model)
		if result != test.expected {
			t.Errorf("supportsToolCalling(%s) = %t, expected %t", test.model, result, test.expected)
		}
	}
}
