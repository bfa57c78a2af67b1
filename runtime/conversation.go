package runtime

import (
	"context"
	"sync"

	"github.com/voocel/mas/schema"
)

// ConversationState is the process-wide, per-conversation record the
// orchestrator reads and mutates across turns: message history, which
// agent currently owns the conversation (changed by a handoff), and the
// turn lock that enforces the runtime's only concurrency rule: at most
// one turn in flight per conversation.
type ConversationState struct {
	ID             string
	history        ConversationStore
	currentAgentID string
	handoffs       []schema.HandoffRecord

	mu       sync.Mutex // serializes turns for this conversation
	turnMu   sync.Mutex // protects currentAgentID
	handoffMu sync.Mutex // protects handoffs
}

// History returns the conversation's message store.
func (cs *ConversationState) History() ConversationStore {
	return cs.history
}

// CurrentAgentID returns the agent id the next turn should run against.
func (cs *ConversationState) CurrentAgentID() string {
	cs.turnMu.Lock()
	defer cs.turnMu.Unlock()
	return cs.currentAgentID
}

// SetCurrentAgentID updates which agent owns the conversation, called
// after a successful handoff.
func (cs *ConversationState) SetCurrentAgentID(agentID string) {
	cs.turnMu.Lock()
	defer cs.turnMu.Unlock()
	cs.currentAgentID = agentID
}

// Handoffs returns the ordered sequence of handoffs that have executed on
// this conversation so far.
func (cs *ConversationState) Handoffs() []schema.HandoffRecord {
	cs.handoffMu.Lock()
	defer cs.handoffMu.Unlock()
	out := make([]schema.HandoffRecord, len(cs.handoffs))
	copy(out, cs.handoffs)
	return out
}

// RecordHandoff appends a completed handoff to the conversation's history
// and updates the current agent to its target, called by the orchestrator
// right after a handoff tool result is recognized and accepted.
func (cs *ConversationState) RecordHandoff(rec schema.HandoffRecord) {
	cs.handoffMu.Lock()
	cs.handoffs = append(cs.handoffs, rec)
	cs.handoffMu.Unlock()
	cs.SetCurrentAgentID(rec.To)
}

// TryBeginTurn attempts to acquire the conversation's turn lock. It
// returns ok=false immediately (never blocks) if a turn is already in
// flight — the caller should fail the request with
// schema.CodeConversationBusy rather than queue it, per this runtime's
// fail-fast policy. The returned release func must be called exactly once
// when the turn completes.
func (cs *ConversationState) TryBeginTurn() (release func(), ok bool) {
	if !cs.mu.TryLock() {
		return nil, false
	}
	return cs.mu.Unlock, true
}

// Store is the process-wide registry of ConversationStates, keyed by
// conversation id. A single Store is shared by every call into the
// orchestrator.
type Store struct {
	mu            sync.Mutex
	conversations map[string]*ConversationState
}

// NewStore creates an empty conversation store.
func NewStore() *Store {
	return &Store{conversations: make(map[string]*ConversationState)}
}

// GetOrCreate returns the existing ConversationState for id, or creates one
// seeded with initialAgentID if this is the first turn seen for id.
func (s *Store) GetOrCreate(id, initialAgentID string) *ConversationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cs, ok := s.conversations[id]; ok {
		return cs
	}
	cs := &ConversationState{
		ID:             id,
		history:        newInMemoryConversation(),
		currentAgentID: initialAgentID,
	}
	s.conversations[id] = cs
	return cs
}

// Get returns the ConversationState for id, if one exists.
func (s *Store) Get(id string) (*ConversationState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs, ok := s.conversations[id]
	return cs, ok
}

// Delete removes a conversation's state entirely, e.g. once a session is
// torn down by its caller. Safe to call even if a turn is in flight; it
// only removes the Store's reference, the ConversationState itself stays
// alive for whoever is still holding it.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, id)
}

// AppendMessage is a convenience wrapper over ConversationState.History().Add
// used by the orchestrator's turn loop.
func AppendMessage(ctx context.Context, cs *ConversationState, msg schema.Message) error {
	return cs.history.Add(ctx, msg)
}
