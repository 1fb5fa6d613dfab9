package core

import (
	"sync"
	"time"
)

// typingWindow is how long a typing signal stays active without a repeat.
// A start within the window of a previous start is a duplicate and is not
// relayed again; after the window the typist is assumed to have paused and a
// new start fires a fresh signal. Stop-typing is the client's job, this
// window only suppresses duplicates.
const typingWindow = 5 * time.Second

type typingKey struct {
	typist      string
	counterpart string
}

// TypingCoordinator relays ephemeral typing signals point-to-point. State is
// never persisted and evaporates when the typist disconnects.
type TypingCoordinator struct {
	registry *Registry
	window   time.Duration

	mu     sync.Mutex
	active map[typingKey]time.Time
	now    func() time.Time
}

// NewTypingCoordinator builds a coordinator over the shared registry.
func NewTypingCoordinator(registry *Registry) *TypingCoordinator {
	return &TypingCoordinator{
		registry: registry,
		window:   typingWindow,
		active:   make(map[typingKey]time.Time),
		now:      time.Now,
	}
}

// StartTyping relays user_typing to the counterpart unless an equivalent
// signal is already active. Nothing happens when the counterpart is offline.
func (t *TypingCoordinator) StartTyping(typist *Client, counterpartID string) {
	key := typingKey{typist: typist.UserID, counterpart: counterpartID}

	t.mu.Lock()
	last, exists := t.active[key]
	fresh := !exists || t.now().Sub(last) > t.window
	t.active[key] = t.now()
	t.mu.Unlock()

	if !fresh {
		return
	}

	t.registry.SendToUser(counterpartID, &Event{
		Kind:     EventUserTyping,
		UserID:   typist.UserID,
		Username: typist.Username,
	})
}

// StopTyping clears the typing state and relays user_stop_typing to the
// counterpart if reachable.
func (t *TypingCoordinator) StopTyping(typist *Client, counterpartID string) {
	key := typingKey{typist: typist.UserID, counterpart: counterpartID}

	t.mu.Lock()
	delete(t.active, key)
	t.mu.Unlock()

	t.registry.SendToUser(counterpartID, &Event{
		Kind:   EventUserStopTyping,
		UserID: typist.UserID,
	})
}

// ClearUser drops all typing state held for a user. Called when the user's
// last connection goes away; a dead connection stops emitting by itself.
func (t *TypingCoordinator) ClearUser(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key := range t.active {
		if key.typist == userID {
			delete(t.active, key)
		}
	}
}
