// Package approval implements the human-in-the-loop gate a sensitive tool
// call waits on before it executes: one outstanding channel-rendezvous slot
// per toolCallId, resolved exactly once by either a human decision, a
// timeout, or turn cancellation.
package approval

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/voocel/mas/schema"
)

// Decision is the human's resolution of an approval-required tool call.
type Decision struct {
	Approved bool
	Reason   string
	// EditedArgs lets an approver supply modified arguments before the
	// tool actually runs; nil means "run with the original args".
	EditedArgs []byte
}

// slot is the one-shot rendezvous for a single pending tool call.
type slot struct {
	ch     chan Decision
	once   sync.Once
	closed bool
}

func newSlot() *slot {
	return &slot{ch: make(chan Decision, 1)}
}

func (s *slot) resolve(d Decision) bool {
	ok := false
	s.once.Do(func() {
		s.ch <- d
		ok = true
	})
	return ok
}

// Coordinator tracks outstanding approval slots in one process-wide map
// keyed by toolCallId alone. Slots are not grouped by conversation: two
// conversations that use the same toolCallId address the same slot.
type Coordinator struct {
	mu    sync.Mutex
	slots map[string]*slot // toolCallId -> slot
}

// NewCoordinator creates an empty approval coordinator.
func NewCoordinator() *Coordinator {
	return &Coordinator{slots: make(map[string]*slot)}
}

// ErrAlreadyPending is returned by RequestApproval when a slot already
// exists for the given toolCallId (the orchestrator never asks twice for
// the same call).
var ErrAlreadyPending = fmt.Errorf("approval already pending for this tool call")

// RequestApproval opens a new slot for toolCallId. Callers emit the
// approval-required RuntimeEvent themselves (the coordinator has no
// knowledge of the event stream) and then call WaitForApproval.
func (c *Coordinator) RequestApproval(toolCallID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.slots[toolCallID]; exists {
		return ErrAlreadyPending
	}
	c.slots[toolCallID] = newSlot()
	return nil
}

// WaitForApproval blocks until a decision is submitted for toolCallId, the
// timeout elapses (timeout <= 0 means unbounded, per
// Orchestrator.Config.ApprovalTimeout's default), or ctx is cancelled.
// On timeout the returned error carries schema.CodeApprovalTimeout; on
// ctx cancellation it carries schema.CodeCancelled.
func (c *Coordinator) WaitForApproval(ctx context.Context, toolCallID string, timeout time.Duration) (Decision, error) {
	c.mu.Lock()
	s, ok := c.slots[toolCallID]
	c.mu.Unlock()
	if !ok {
		return Decision{}, fmt.Errorf("no pending approval for tool call %s", toolCallID)
	}
	defer c.clear(toolCallID)

	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case d := <-s.ch:
		return d, nil
	case <-timeoutCh:
		s.resolve(Decision{Approved: false, Reason: "approval timed out"})
		return Decision{}, &Error{Code: schema.CodeApprovalTimeout, Message: "approval timed out"}
	case <-ctx.Done():
		s.resolve(Decision{Approved: false, Reason: "cancelled"})
		return Decision{}, &Error{Code: schema.CodeCancelled, Message: ctx.Err().Error()}
	}
}

// SubmitApproval resolves the pending slot for toolCallId. It is safe to
// call from any goroutine (typically the transport layer handling an
// inbound decision message) and is idempotent: the first call wins, later
// calls are reported via the bool return but otherwise ignored.
func (c *Coordinator) SubmitApproval(toolCallID string, d Decision) bool {
	c.mu.Lock()
	s, ok := c.slots[toolCallID]
	c.mu.Unlock()
	if !ok {
		return false
	}
	return s.resolve(d)
}

// Cancel resolves toolCallId's slot (if any) as rejected, used when a turn
// is aborted while an approval is outstanding.
func (c *Coordinator) Cancel(toolCallID string) {
	c.mu.Lock()
	s, ok := c.slots[toolCallID]
	c.mu.Unlock()
	if ok {
		s.resolve(Decision{Approved: false, Reason: "cancelled"})
	}
}

// Pending reports whether toolCallId currently has an outstanding slot.
func (c *Coordinator) Pending(toolCallID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.slots[toolCallID]
	return ok
}

func (c *Coordinator) clear(toolCallID string) {
	c.mu.Lock()
	delete(c.slots, toolCallID)
	c.mu.Unlock()
}

// Error reports an approval-path failure with a stable RuntimeEvent code.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }
