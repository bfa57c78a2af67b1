package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/voocel/mas/schema"
)

// LoggerObserver provides plain human-readable log lines, the default for
// local development.
type LoggerObserver struct {
	logger *log.Logger
}

// NewLoggerObserver creates a LoggerObserver writing to out.
func NewLoggerObserver(out io.Writer) *LoggerObserver {
	if out == nil {
		out = io.Discard
	}
	return &LoggerObserver{
		logger: log.New(out, "mas ", log.LstdFlags|log.Lmicroseconds),
	}
}

func (o *LoggerObserver) OnEvent(_ context.Context, conversationID string, event schema.RuntimeEvent) {
	switch event.Type {
	case schema.RuntimeEventToolCallStart:
		o.logger.Printf("conv=%s tool call start name=%s id=%s agent=%s", conversationID, event.ToolName, event.ToolCallID, event.AgentID)
	case schema.RuntimeEventToolCallResult:
		o.logger.Printf("conv=%s tool call result id=%s", conversationID, event.ToolCallID)
	case schema.RuntimeEventToolCallError:
		o.logger.Printf("conv=%s tool call error id=%s code=%s err=%s", conversationID, event.ToolCallID, event.Code, event.Error)
	case schema.RuntimeEventAgentHandoff:
		o.logger.Printf("conv=%s handoff from=%s to=%s reason=%s", conversationID, event.From, event.To, event.Reason)
	case schema.RuntimeEventError:
		o.logger.Printf("conv=%s error code=%s err=%s", conversationID, event.Code, event.Error)
	default:
		o.logger.Printf("conv=%s event=%s", conversationID, event.Type)
	}
}

func (o *LoggerObserver) OnTurnStart(_ context.Context, conversationID, agentID string) {
	o.logger.Printf("conv=%s turn start agent=%s", conversationID, agentID)
}

func (o *LoggerObserver) OnTurnEnd(_ context.Context, conversationID string, err error) {
	if err != nil {
		o.logger.Printf("conv=%s turn end err=%v", conversationID, err)
		return
	}
	o.logger.Printf("conv=%s turn end", conversationID)
}

func (o *LoggerObserver) OnToolCall(_ context.Context, conversationID, toolName string, args json.RawMessage) {
	o.logger.Printf("conv=%s tool exec name=%s args=%d bytes", conversationID, toolName, len(args))
}

func (o *LoggerObserver) OnToolResult(_ context.Context, conversationID, toolName string, result json.RawMessage, err error) {
	if err != nil {
		o.logger.Printf("conv=%s tool done name=%s err=%v", conversationID, toolName, err)
		return
	}
	o.logger.Printf("conv=%s tool done name=%s result=%d bytes", conversationID, toolName, len(result))
}

func (o *LoggerObserver) OnApprovalRequired(_ context.Context, conversationID, toolCallID, toolName string) {
	o.logger.Printf("conv=%s approval required tool=%s id=%s", conversationID, toolName, toolCallID)
}

func (o *LoggerObserver) OnHandoff(_ context.Context, conversationID string, rec schema.HandoffRecord) {
	o.logger.Printf("conv=%s handoff accepted from=%s to=%s", conversationID, rec.From, rec.To)
}

func (o *LoggerObserver) OnError(_ context.Context, conversationID string, err error) {
	if err == nil {
		return
	}
	o.logger.Printf("conv=%s error %v", conversationID, err)
}

var _ Observer = (*LoggerObserver)(nil)

// SimpleTimerTracer provides minimal span duration tracing, used around a
// turn or a single provider call.
type SimpleTimerTracer struct {
	logger *log.Logger
}

// NewSimpleTimerTracer creates a tracer writing to out.
func NewSimpleTimerTracer(out io.Writer) *SimpleTimerTracer {
	if out == nil {
		out = io.Discard
	}
	return &SimpleTimerTracer{
		logger: log.New(out, "mas ", log.LstdFlags|log.Lmicroseconds),
	}
}

// StartSpan starts a named span and returns a func that ends it.
func (t *SimpleTimerTracer) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, func(error)) {
	start := time.Now()
	attrText := ""
	if len(attrs) > 0 {
		attrText = fmt.Sprintf(" attrs=%v", attrs)
	}
	t.logger.Printf("span start %s%s", name, attrText)
	return ctx, func(err error) {
		if err != nil {
			t.logger.Printf("span end %s err=%v duration=%s", name, err, time.Since(start))
			return
		}
		t.logger.Printf("span end %s duration=%s", name, time.Since(start))
	}
}
