// Package convo tracks the remote conversation handle for each user so the
// conversational sub-API can continue a multi-turn exchange.
package convo

import (
	"sync"

	"wolframgate/internal/metrics"
)

// Tracker maps an opaque user id to the remote conversation id. At most one
// handle exists per user; a Set overwrites any prior handle. Handles never
// expire locally: staleness is only detected by the remote's explicit
// expired signal, at which point the caller clears and restarts.
type Tracker struct {
	mu      sync.RWMutex
	handles map[string]string
}

func NewTracker() *Tracker {
	return &Tracker{
		handles: make(map[string]string),
	}
}

// Get returns the stored conversation id for userID, if any.
func (t *Tracker) Get(userID string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.handles[userID]
	return id, ok
}

// Set stores conversationID as the handle for userID, replacing any prior one.
func (t *Tracker) Set(userID, conversationID string) {
	t.mu.Lock()
	t.handles[userID] = conversationID
	metrics.ConversationsActive.Set(float64(len(t.handles)))
	t.mu.Unlock()
}

// Clear removes the handle for userID. The next conversational call for that
// user starts a fresh remote thread.
func (t *Tracker) Clear(userID string) {
	t.mu.Lock()
	delete(t.handles, userID)
	metrics.ConversationsActive.Set(float64(len(t.handles)))
	t.mu.Unlock()
}

// ClearAll drops every tracked handle.
func (t *Tracker) ClearAll() {
	t.mu.Lock()
	t.handles = make(map[string]string)
	metrics.ConversationsActive.Set(0)
	t.mu.Unlock()
}

// Len returns the number of users with an active handle.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.handles)
}
