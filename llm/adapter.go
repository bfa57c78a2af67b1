package llm

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/voocel/mas/schema"
)

// Adapter drives one model through a single stream→result cycle and
// translates its provider-native stream into the runtime's wire contract
// (schema.RuntimeEvent), grounded on litellm.go's GenerateStream event loop.
// The three provider constructors differ only in tool-call id policy:
// OpenAI and Anthropic stream a stable id with each tool call, which
// litellm.go's builder captures verbatim and normalizeToolCallID leaves
// untouched unless it breaks the shared charset; local Ollama models
// frequently omit one, so mintToolCallID backfills an id once the call is
// complete rather than leaving it blank for the rest of the runtime to
// choke on.
type Adapter struct {
	Model          ChatModel
	Provider       string
	mintToolCallID bool
}

// Stream runs one model turn. messages is the conversation history ending in
// the latest user/tool message; toolSpecs is the effective tool set for this
// call. onEvent is invoked for every RuntimeEvent as it becomes available
// (text/reasoning deltas); Stream returns the final assembled Message (text
// plus any tool calls) once the provider signals completion, and emits
// text-complete only when that message carries no tool calls. Tool calls are
// returned to the caller without any event emitted for them here.
func (a *Adapter) Stream(ctx context.Context, messages []Message, toolSpecs []ToolSpec, onEvent func(schema.RuntimeEvent)) (Message, error) {
	// A handoff can move the conversation to an agent on a different
	// provider mid-turn, so the accumulated history may carry ids and
	// thinking blocks shaped by another backend. TransformMessages
	// re-normalizes it for this one before the request goes out.
	messages = TransformMessages(messages, a.Provider)

	events, err := a.Model.GenerateStream(ctx, messages, toolSpecs)
	if err != nil {
		return Message{}, fmt.Errorf("%s: stream failed: %w", a.Provider, err)
	}

	messageID := uuid.NewString()
	var final Message

	for ev := range events {
		switch ev.Type {
		case StreamEventTextDelta:
			if ev.Delta != "" {
				onEvent(schema.TextDelta(messageID, ev.Delta))
			}
		case StreamEventThinkingDelta:
			if ev.Delta != "" {
				onEvent(schema.ReasoningDelta(messageID, ev.Delta))
			}
		case StreamEventDone:
			final = ev.Message
		case StreamEventError:
			return Message{}, fmt.Errorf("%s: stream error: %w", a.Provider, ev.Err)
		}
	}

	final = a.mintMissingToolCallIDs(final)
	toolCalls := final.ToolCalls()
	// text-complete is the turn's terminal event: only emit it when this
	// step has no tool calls. A step that both narrates and calls a tool
	// still ends in another stream/tool-exec round, not a terminal
	// text-complete. tool-call-start/tool-call-args belong to the
	// orchestrator's dispatch sequence, emitted once it knows the call's
	// agentId; emitting them here too would duplicate them.
	if len(toolCalls) == 0 {
		onEvent(schema.TextComplete(messageID, final.TextContent()))
	}
	return final, nil
}

// mintMissingToolCallIDs backfills empty tool-call ids for adapters that
// mint their own (Ollama) and runs every non-empty id through
// normalizeToolCallID, which forwards well-formed provider-issued ids
// verbatim and only rewrites ones that violate the shared
// [a-zA-Z0-9_-]{1,64} charset.
func (a *Adapter) mintMissingToolCallIDs(msg Message) Message {
	for i, block := range msg.Content {
		if block.Type != ContentToolCall || block.ToolCall == nil {
			continue
		}
		tc := *block.ToolCall
		switch {
		case tc.ID == "" && a.mintToolCallID:
			tc.ID = "tc_" + uuid.NewString()
		case tc.ID != "":
			tc.ID = normalizeToolCallID(tc.ID)
		default:
			continue
		}
		if tc.ID == block.ToolCall.ID {
			continue
		}
		msg.Content[i] = ToolCallBlock(tc)
	}
	return msg
}
