package schema

import (
	"time"
)

// Handoff represents a control transfer between agents, synthesized by the
// handoff package's handoff_to_<agentId> tool and recognized by the
// orchestrator in place of an ordinary tool result.
type Handoff struct {
	// Target is the destination agent id.
	Target string `json:"target"`

	// Reason explains why the handoff happens.
	Reason string `json:"reason,omitempty"`

	// Message is the input passed to the next agent.
	Message string `json:"message,omitempty"`

	// Payload carries additional structured data delivered to the target.
	Payload map[string]interface{} `json:"payload,omitempty"`

	// Context carries contextual information threaded into the resulting
	// HandoffRecord.
	Context map[string]interface{} `json:"context,omitempty"`
}

// IsValid reports whether the handoff names a target agent.
func (h *Handoff) IsValid() bool {
	return h.Target != ""
}

// HandoffRecord is the orchestrator's ordered-history entry for one handoff
// that actually executed during a conversation: which agent gave up control,
// which agent received it, why, and when. ConversationState keeps a sequence
// of these for transcript and debugging purposes.
type HandoffRecord struct {
	From      string         `json:"from"`
	To        string         `json:"to"`
	Reason    string         `json:"reason,omitempty"`
	Context   map[string]any `json:"context,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewHandoffRecord builds a HandoffRecord from a completed Handoff.
func NewHandoffRecord(from string, h *Handoff, at time.Time) HandoffRecord {
	rec := HandoffRecord{From: from, To: h.Target, Reason: h.Reason, Timestamp: at}
	if len(h.Context) > 0 {
		rec.Context = h.Context
	}
	return rec
}
