package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/voocel/mas/approval"
	"github.com/voocel/mas/runtime"
	"github.com/voocel/mas/schema"
)

// RuntimeInput is the transport-facing shape of one user turn: what a thin
// HTTP/SSE handler decodes from the wire and hands to the runtime. AgentID
// only seeds brand-new conversations; once a conversation exists, the
// active agent recorded in its state wins (handoffs move it).
type RuntimeInput struct {
	ConversationID string                 `json:"conversationId"`
	AgentID        string                 `json:"agentId,omitempty"`
	UserID         string                 `json:"userId,omitempty"`
	Message        string                 `json:"message"`
	Context        map[string]interface{} `json:"context,omitempty"`
	Attachments    []schema.Attachment    `json:"attachments,omitempty"`
}

// eventBuffer bounds the producer/consumer gap on a StreamTurn channel. A
// slow consumer applies backpressure to the turn instead of growing an
// unbounded queue.
const eventBuffer = 64

// StreamTurn runs one turn as a producer goroutine feeding a bounded event
// channel, the pull-based form of ProcessTurn a transport consumes: read
// until the channel closes (after a terminal text-complete or error event)
// or stop reading and cancel ctx to tear the turn down. The input's
// UserID/Context travel with the turn via runtime.TurnContext, visible to
// every tool execution and dynamic system prompt it triggers.
func (o *Orchestrator) StreamTurn(ctx context.Context, input RuntimeInput) <-chan schema.RuntimeEvent {
	events := make(chan schema.RuntimeEvent, eventBuffer)

	msg := schema.Message{
		ID:          uuid.NewString(),
		Role:        schema.RoleUser,
		Content:     input.Message,
		Attachments: input.Attachments,
		Timestamp:   time.Now(),
	}

	turnCtx := runtime.WithTurnContext(ctx, runtime.TurnContext{
		ConversationID: input.ConversationID,
		UserID:         input.UserID,
		Frontend:       input.Context,
	})

	go func() {
		defer close(events)
		_ = o.ProcessTurn(turnCtx, input.ConversationID, input.AgentID, msg, func(ev schema.RuntimeEvent) {
			select {
			case events <- ev:
			case <-ctx.Done():
				// Consumer is gone; the turn is being cancelled and its
				// terminal CANCELLED event has nowhere to land.
			}
		})
	}()

	return events
}

// SubmitApproval forwards a transport-delivered approval decision to the
// coordinator, the POST half of the frontend contract. The bool reports
// whether a pending slot existed and was resolved by this call; a false
// return means the decision arrived too late (slot already resolved,
// timed out, or cancelled) and was a no-op.
func (o *Orchestrator) SubmitApproval(toolCallID string, approved bool, reason string) bool {
	return o.Approvals.SubmitApproval(toolCallID, approval.Decision{Approved: approved, Reason: reason})
}
