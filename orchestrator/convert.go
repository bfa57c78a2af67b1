package orchestrator

import (
	"encoding/json"

	"github.com/voocel/mas/llm"
	"github.com/voocel/mas/schema"
	"github.com/voocel/mas/tools"
)

// toModelMessages projects a conversation's flat schema.Message history
// (tool results stored as separate role="tool" messages, per
// runtime/conversation.go's AppendMessage) into the content-block shaped
// llm.Message sequence the provider adapters send to the model.
func toModelMessages(systemPrompt string, history []schema.Message) []llm.Message {
	out := make([]llm.Message, 0, len(history)+1)
	if systemPrompt != "" {
		out = append(out, llm.SystemMsg(systemPrompt))
	}
	for _, m := range history {
		switch m.Role {
		case schema.RoleUser:
			out = append(out, llm.UserMsg(m.Content))
		case schema.RoleSystem:
			out = append(out, llm.SystemMsg(m.Content))
		case schema.RoleAssistant:
			out = append(out, assistantToModelMessage(m))
		case schema.RoleTool:
			toolCallID, _ := m.Metadata["tool_call_id"].(string)
			isError, _ := m.Metadata["tool_call_error"].(bool)
			out = append(out, llm.ToolResultMsg(toolCallID, []byte(jsonString(m.Content)), isError))
		}
	}
	return out
}

func assistantToModelMessage(m schema.Message) llm.Message {
	msg := llm.Message{Role: llm.RoleAssistant}
	if m.Content != "" {
		msg.Content = append(msg.Content, llm.TextBlock(m.Content))
	}
	for _, tc := range m.ToolCalls {
		msg.Content = append(msg.Content, llm.ToolCallBlock(llm.ToolCall{
			ID:   tc.ID,
			Name: tc.Name,
			Args: []byte(tc.Args),
		}))
	}
	return msg
}

// fromModelMessage converts the model's assembled response back into the
// runtime's flat schema.Message shape for conversation history.
func fromModelMessage(m llm.Message) schema.Message {
	out := schema.Message{
		Role:    schema.RoleAssistant,
		Content: m.TextContent(),
	}
	for _, tc := range m.ToolCalls() {
		out.ToolCalls = append(out.ToolCalls, schema.ToolCall{
			ID:   tc.ID,
			Name: tc.Name,
			Args: json.RawMessage(tc.Args),
		})
	}
	return out
}

func toToolSpecs(ts []tools.Tool) []llm.ToolSpec {
	out := make([]llm.ToolSpec, 0, len(ts))
	for _, t := range ts {
		schemaDef := t.Schema()
		out = append(out, llm.ToolSpec{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters: map[string]any{
				"type":       schemaDef.Type,
				"properties": schemaDef.Properties,
				"required":   schemaDef.Required,
			},
		})
	}
	return out
}

// jsonString returns content unquoted for tool-result messages whose
// content is already plain text (error strings, simple results); content
// carrying a tool's raw JSON result is passed through unchanged by
// appendToolResult in turn.go (stored as a JSON string in Content).
func jsonString(content string) string {
	if content == "" {
		return "null"
	}
	return content
}
