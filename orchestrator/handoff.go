// Copyright 2025 CareFlow
// SPDX-License-Identifier: Apache-2.0
//
// Human Handoff Bridge - suspends a dispatch until an out-of-band operator
// reply arrives for the conversation, or the wait deadline expires.

package orchestrator

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrHandoffPending is returned when a conversation already has an
// outstanding handoff. Concurrent handoffs for one conversation are
// rejected rather than queued or replaced.
var ErrHandoffPending = errors.New("conversation already has a pending handoff")

// OperatorNotifier pushes frames to the external operator channel. Pushes
// are fire-and-forget: the bridge never waits for an acknowledgment.
type OperatorNotifier interface {
	Notify(conversationID string, frame OperatorFrame)
}

// OperatorFrame is one push to the operator channel.
type OperatorFrame struct {
	Type     string                 `json:"type"`
	Message  string                 `json:"message,omitempty"`
	Payload  map[string]interface{} `json:"payload,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// HandoffResponse is the outcome of one handoff wait.
type HandoffResponse struct {
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
	TimedOut bool                   `json:"timed_out,omitempty"`
}

// pendingHandoff is one live slot in the registry. The channel is buffered
// so the resolver never blocks on a waiter that has already given up.
type pendingHandoff struct {
	id        uuid.UUID
	createdAt time.Time
	done      chan HandoffResponse
}

// HandoffBridge owns the pending-slot registry. It is the only mutable
// shared state in the routing core: at most one live slot per conversation,
// resolved exactly once, by operator input or by timeout.
type HandoffBridge struct {
	notifier OperatorNotifier
	timeout  time.Duration

	mu      sync.Mutex
	pending map[string]*pendingHandoff
}

// NewHandoffBridge creates a bridge with the given wait deadline.
func NewHandoffBridge(notifier OperatorNotifier, timeout time.Duration) *HandoffBridge {
	if timeout <= 0 {
		timeout = DefaultHandoffTimeout
	}
	return &HandoffBridge{
		notifier: notifier,
		timeout:  timeout,
		pending:  make(map[string]*pendingHandoff),
	}
}

// Await registers a pending slot for the conversation, notifies the operator
// channel with the prompt, and blocks until the slot resolves. Timeout and
// context expiry resolve to the canned reassignment reply, never an error;
// the only error is a second concurrent handoff for the same conversation.
func (b *HandoffBridge) Await(ctx context.Context, conversationID, prompt string, metadata map[string]interface{}) (HandoffResponse, error) {
	slot := &pendingHandoff{
		id:        uuid.New(),
		createdAt: time.Now(),
		done:      make(chan HandoffResponse, 1),
	}

	b.mu.Lock()
	if _, exists := b.pending[conversationID]; exists {
		b.mu.Unlock()
		return HandoffResponse{}, ErrHandoffPending
	}
	b.pending[conversationID] = slot
	b.mu.Unlock()

	log.Printf("[Handoff] Awaiting operator input for conversation %s (handoff %s)", conversationID, slot.id)

	if b.notifier != nil {
		b.notifier.Notify(conversationID, OperatorFrame{
			Type:     "human_input_required",
			Message:  prompt,
			Metadata: metadata,
		})
	}

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	select {
	case resp := <-slot.done:
		log.Printf("[Handoff] Conversation %s resolved by operator after %s", conversationID, time.Since(slot.createdAt))
		return resp, nil
	case <-timer.C:
		return b.expire(conversationID, slot), nil
	case <-ctx.Done():
		return b.expire(conversationID, slot), nil
	}
}

// expire clears the slot after a timeout. If the operator resolved it in the
// same instant, the delivered reply wins: resolution is exactly-once and the
// buffered channel already holds the operator content.
func (b *HandoffBridge) expire(conversationID string, slot *pendingHandoff) HandoffResponse {
	b.mu.Lock()
	current, exists := b.pending[conversationID]
	if exists && current == slot {
		delete(b.pending, conversationID)
		b.mu.Unlock()
		log.Printf("[Handoff] Conversation %s timed out after %s", conversationID, b.timeout)
		return HandoffResponse{Content: HandoffTimeoutText, TimedOut: true}
	}
	b.mu.Unlock()

	select {
	case resp := <-slot.done:
		return resp
	default:
		return HandoffResponse{Content: HandoffTimeoutText, TimedOut: true}
	}
}

// Resolve delivers operator content into the matching pending slot. It is a
// no-op when no slot exists or the slot was already resolved; the returned
// bool reports whether a waiter was satisfied.
func (b *HandoffBridge) Resolve(conversationID, content string, metadata map[string]interface{}) bool {
	b.mu.Lock()
	slot, exists := b.pending[conversationID]
	if exists {
		delete(b.pending, conversationID)
	}
	b.mu.Unlock()

	if !exists {
		log.Printf("[Handoff] Ignoring operator input for %s: no pending handoff", conversationID)
		return false
	}

	slot.done <- HandoffResponse{Content: content, Metadata: metadata}
	return true
}

// Outstanding returns the number of live pending slots.
func (b *HandoffBridge) Outstanding() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}
