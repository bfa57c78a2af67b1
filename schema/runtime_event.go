package schema

import "encoding/json"

// RuntimeEventType enumerates the tagged union of events the orchestrator
// emits on a turn's output stream. Field names are stable wire contract:
// type, messageId, toolCallId, delta, args, result, error, code, from, to,
// reason, context.
type RuntimeEventType string

const (
	RuntimeEventTextDelta         RuntimeEventType = "text-delta"
	RuntimeEventTextComplete      RuntimeEventType = "text-complete"
	RuntimeEventReasoningDelta    RuntimeEventType = "reasoning-delta"
	RuntimeEventToolCallStart     RuntimeEventType = "tool-call-start"
	RuntimeEventToolCallArgs      RuntimeEventType = "tool-call-args"
	RuntimeEventToolCallResult    RuntimeEventType = "tool-call-result"
	RuntimeEventToolCallError     RuntimeEventType = "tool-call-error"
	RuntimeEventApprovalRequired  RuntimeEventType = "approval-required"
	RuntimeEventAgentHandoff      RuntimeEventType = "agent-handoff"
	RuntimeEventError             RuntimeEventType = "error"
)

// Stable error codes consumed by the transport/UI layer.
const (
	CodeToolInputInvalid     = "TOOL_INPUT_INVALID"
	CodeToolNotFound         = "TOOL_NOT_FOUND"
	CodeToolTimeout          = "TOOL_TIMEOUT"
	CodeToolResultTooLarge   = "TOOL_RESULT_TOO_LARGE"
	CodeUserRejected         = "USER_REJECTED"
	CodeApprovalTimeout      = "APPROVAL_TIMEOUT"
	CodeMaxIterationsExceed  = "MAX_ITERATIONS_EXCEEDED"
	CodeMCPTimeout           = "MCP_TIMEOUT"
	CodeCancelled            = "CANCELLED"
	CodeProviderError        = "PROVIDER_ERROR"
	CodeConversationBusy     = "CONVERSATION_BUSY"
)

// RuntimeEvent is one element of the tagged-union output stream.
// Only the fields relevant to Type are populated; the rest are zero.
type RuntimeEvent struct {
	Type       RuntimeEventType `json:"type"`
	MessageID  string           `json:"messageId,omitempty"`
	Delta      string           `json:"delta,omitempty"`
	Content    string           `json:"content,omitempty"`
	ToolCallID string           `json:"toolCallId,omitempty"`
	ToolName   string           `json:"toolName,omitempty"`
	AgentID    string           `json:"agentId,omitempty"`
	Args       json.RawMessage  `json:"args,omitempty"`
	Result     json.RawMessage  `json:"result,omitempty"`
	Error      string           `json:"error,omitempty"`
	Code       string           `json:"code,omitempty"`
	From       string           `json:"from,omitempty"`
	To         string           `json:"to,omitempty"`
	Reason     string           `json:"reason,omitempty"`
	Context    map[string]any   `json:"context,omitempty"`
}

func TextDelta(messageID, delta string) RuntimeEvent {
	return RuntimeEvent{Type: RuntimeEventTextDelta, MessageID: messageID, Delta: delta}
}

func TextComplete(messageID, content string) RuntimeEvent {
	return RuntimeEvent{Type: RuntimeEventTextComplete, MessageID: messageID, Content: content}
}

func ReasoningDelta(messageID, delta string) RuntimeEvent {
	return RuntimeEvent{Type: RuntimeEventReasoningDelta, MessageID: messageID, Delta: delta}
}

func ToolCallStart(toolCallID, toolName, agentID string) RuntimeEvent {
	return RuntimeEvent{Type: RuntimeEventToolCallStart, ToolCallID: toolCallID, ToolName: toolName, AgentID: agentID}
}

func ToolCallArgs(toolCallID string, args json.RawMessage) RuntimeEvent {
	return RuntimeEvent{Type: RuntimeEventToolCallArgs, ToolCallID: toolCallID, Args: args}
}

func ToolCallResult(toolCallID string, result json.RawMessage) RuntimeEvent {
	return RuntimeEvent{Type: RuntimeEventToolCallResult, ToolCallID: toolCallID, Result: result}
}

func ToolCallError(toolCallID, errMsg, code string) RuntimeEvent {
	return RuntimeEvent{Type: RuntimeEventToolCallError, ToolCallID: toolCallID, Error: errMsg, Code: code}
}

func ApprovalRequired(toolCallID, toolName, agentID string, args json.RawMessage) RuntimeEvent {
	return RuntimeEvent{Type: RuntimeEventApprovalRequired, ToolCallID: toolCallID, ToolName: toolName, AgentID: agentID, Args: args}
}

func AgentHandoff(from, to, reason string, ctx map[string]any) RuntimeEvent {
	return RuntimeEvent{Type: RuntimeEventAgentHandoff, From: from, To: to, Reason: reason, Context: ctx}
}

func ErrorEvent(errMsg, code string) RuntimeEvent {
	return RuntimeEvent{Type: RuntimeEventError, Error: errMsg, Code: code}
}
