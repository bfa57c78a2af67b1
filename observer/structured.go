package observer

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"time"

	"github.com/voocel/mas/schema"
)

// JSONObserver emits one JSON object per line, keyed by RuntimeEvent type.
type JSONObserver struct {
	logger *log.Logger
}

// NewJSONObserver creates a JSONObserver writing to out.
func NewJSONObserver(out io.Writer) *JSONObserver {
	if out == nil {
		out = io.Discard
	}
	return &JSONObserver{logger: log.New(out, "", 0)}
}

func (o *JSONObserver) OnEvent(_ context.Context, conversationID string, event schema.RuntimeEvent) {
	fields := map[string]any{
		"conversationId": conversationID,
		"event":          string(event.Type),
	}
	if event.MessageID != "" {
		fields["messageId"] = event.MessageID
	}
	if event.ToolCallID != "" {
		fields["toolCallId"] = event.ToolCallID
	}
	if event.ToolName != "" {
		fields["toolName"] = event.ToolName
	}
	if event.AgentID != "" {
		fields["agentId"] = event.AgentID
	}
	if event.Error != "" {
		fields["error"] = event.Error
	}
	if event.Code != "" {
		fields["code"] = event.Code
	}
	if event.From != "" {
		fields["from"] = event.From
	}
	if event.To != "" {
		fields["to"] = event.To
	}
	o.log(fields)
}

func (o *JSONObserver) OnTurnStart(_ context.Context, conversationID, agentID string) {
	o.log(map[string]any{
		"conversationId": conversationID,
		"event":          "turn_start",
		"agentId":        agentID,
	})
}

func (o *JSONObserver) OnTurnEnd(_ context.Context, conversationID string, err error) {
	fields := map[string]any{
		"conversationId": conversationID,
		"event":          "turn_end",
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	o.log(fields)
}

func (o *JSONObserver) OnToolCall(_ context.Context, conversationID, toolName string, args json.RawMessage) {
	fields := map[string]any{
		"conversationId": conversationID,
		"event":          "tool_call",
		"toolName":       toolName,
	}
	if len(args) > 0 {
		fields["args"] = json.RawMessage(args)
	}
	o.log(fields)
}

func (o *JSONObserver) OnToolResult(_ context.Context, conversationID, toolName string, result json.RawMessage, err error) {
	fields := map[string]any{
		"conversationId": conversationID,
		"event":          "tool_result",
		"toolName":       toolName,
		"resultBytes":    len(result),
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	o.log(fields)
}

func (o *JSONObserver) OnApprovalRequired(_ context.Context, conversationID, toolCallID, toolName string) {
	o.log(map[string]any{
		"conversationId": conversationID,
		"event":          "approval_required",
		"toolCallId":     toolCallID,
		"toolName":       toolName,
	})
}

func (o *JSONObserver) OnHandoff(_ context.Context, conversationID string, rec schema.HandoffRecord) {
	o.log(map[string]any{
		"conversationId": conversationID,
		"event":          "handoff",
		"from":           rec.From,
		"to":             rec.To,
		"reason":         rec.Reason,
	})
}

func (o *JSONObserver) OnError(_ context.Context, conversationID string, err error) {
	if err == nil {
		return
	}
	o.log(map[string]any{
		"conversationId": conversationID,
		"event":          "error",
		"error":          err.Error(),
	})
}

func (o *JSONObserver) log(fields map[string]any) {
	fields["ts"] = time.Now().Format(time.RFC3339Nano)
	data, err := json.Marshal(fields)
	if err != nil {
		o.logger.Printf("{\"event\":\"observer_marshal_error\",\"error\":%q}", err.Error())
		return
	}
	o.logger.Print(string(data))
}

var _ Observer = (*JSONObserver)(nil)
