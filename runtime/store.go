package runtime

import (
	"context"
	"sync"
	"time"

	"github.com/voocel/mas/schema"
)

// ConversationStore manages a single conversation's message history.
// ConversationState.History() returns one of these; the orchestrator reads
// and appends through it on every turn.
type ConversationStore interface {
	Add(ctx context.Context, message schema.Message) error
	GetConversationContext(ctx context.Context) ([]schema.Message, error)
}

// inMemoryConversation is the default ConversationStore. A conversation's
// full transcript lives in process memory for the lifetime of its
// ConversationState; persistence across process restarts is out of scope
// for this runtime.
type inMemoryConversation struct {
	mu       sync.RWMutex
	messages []schema.Message
}

func newInMemoryConversation() ConversationStore {
	return &inMemoryConversation{messages: make([]schema.Message, 0)}
}

func (c *inMemoryConversation) Add(_ context.Context, message schema.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now()
	}
	c.messages = append(c.messages, *message.Clone())
	return nil
}

func (c *inMemoryConversation) GetConversationContext(_ context.Context) ([]schema.Message, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	history := make([]schema.Message, len(c.messages))
	for i, msg := range c.messages {
		history[i] = *msg.Clone()
	}
	return history, nil
}
