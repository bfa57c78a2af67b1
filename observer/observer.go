// Package observer provides pluggable hooks into a turn's lifecycle: every
// RuntimeEvent the orchestrator emits, the turn and tool-execution
// boundaries, and the two moments a RuntimeEvent alone doesn't capture
// well (a pending approval, a completed handoff).
package observer

import (
	"context"
	"encoding/json"

	"github.com/voocel/mas/schema"
)

// Observer receives best-effort lifecycle notifications for a turn. Calls
// are synchronous with the orchestrator's own goroutine — implementations
// must not block, and a failing observer must never fail the turn.
type Observer interface {
	// OnEvent fires for every RuntimeEvent the turn emits, in order.
	OnEvent(ctx context.Context, conversationID string, event schema.RuntimeEvent)

	// OnTurnStart fires once the turn lock is held and the user message is
	// appended, before the first model call.
	OnTurnStart(ctx context.Context, conversationID, agentID string)

	// OnTurnEnd fires when the turn finishes, err carrying the turn-fatal
	// failure if it ended in one.
	OnTurnEnd(ctx context.Context, conversationID string, err error)

	// OnToolCall fires just before a tool executes, after validation and
	// any approval gate have passed.
	OnToolCall(ctx context.Context, conversationID, toolName string, args json.RawMessage)

	// OnToolResult fires once a tool's execution settles, with either its
	// serialized result or the error it failed with.
	OnToolResult(ctx context.Context, conversationID, toolName string, result json.RawMessage, err error)

	// OnApprovalRequired fires once a tool call is gated on human approval,
	// before the orchestrator starts waiting on it.
	OnApprovalRequired(ctx context.Context, conversationID, toolCallID, toolName string)

	// OnHandoff fires after a handoff has been accepted and the
	// conversation's current agent has changed.
	OnHandoff(ctx context.Context, conversationID string, rec schema.HandoffRecord)

	// OnError fires for turn-ending errors not already carried by an error
	// RuntimeEvent (a failed append to the conversation history).
	OnError(ctx context.Context, conversationID string, err error)
}

// Tracer brackets a named span of work with start/end timing.
// SimpleTimerTracer is the only implementation; the orchestrator treats a
// nil Tracer as "no tracing" rather than requiring a no-op stand-in.
type Tracer interface {
	StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, func(error))
}

// NoopObserver implements Observer with no-ops, the default when a caller
// doesn't need lifecycle visibility.
type NoopObserver struct{}

func (NoopObserver) OnEvent(context.Context, string, schema.RuntimeEvent)               {}
func (NoopObserver) OnTurnStart(context.Context, string, string)                        {}
func (NoopObserver) OnTurnEnd(context.Context, string, error)                           {}
func (NoopObserver) OnToolCall(context.Context, string, string, json.RawMessage)        {}
func (NoopObserver) OnToolResult(context.Context, string, string, json.RawMessage, error) {}
func (NoopObserver) OnApprovalRequired(context.Context, string, string, string)         {}
func (NoopObserver) OnHandoff(context.Context, string, schema.HandoffRecord)            {}
func (NoopObserver) OnError(context.Context, string, error)                             {}

var _ Observer = NoopObserver{}
