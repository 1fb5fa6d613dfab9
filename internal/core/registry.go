package core

import "sync"

// Registry maps user IDs to their live connection handles. It is the single
// source of truth for reachability. A user may hold several simultaneous
// connections (two devices); every event addressed to the user goes to all
// of them.
//
// The lock guards only the map itself and is never held across a store call
// or a blocking send; fan-out works on snapshots.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]map[string]*Client
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]map[string]*Client),
	}
}

// Register adds a connection handle to its user's set. Returns true when the
// user transitioned from unreachable to reachable. Re-registering the same
// handle is a no-op.
func (r *Registry) Register(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.conns[c.UserID]
	if !ok {
		set = make(map[string]*Client)
		r.conns[c.UserID] = set
	}
	if _, exists := set[c.ConnID]; exists {
		return false
	}
	wasEmpty := len(set) == 0
	set[c.ConnID] = c
	return wasEmpty
}

// Unregister removes a connection handle. Returns true when this was the
// user's last connection. Idempotent: removing an absent handle does nothing
// and reports false, so duplicate close signals never double-count presence.
func (r *Registry) Unregister(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.conns[c.UserID]
	if !ok {
		return false
	}
	if _, exists := set[c.ConnID]; !exists {
		return false
	}
	delete(set, c.ConnID)
	if len(set) == 0 {
		delete(r.conns, c.UserID)
		return true
	}
	return false
}

// Lookup returns a snapshot of the user's live connection handles. An empty
// slice means the user is unreachable; Lookup never fails.
func (r *Registry) Lookup(userID string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.conns[userID]
	clients := make([]*Client, 0, len(set))
	for _, c := range set {
		clients = append(clients, c)
	}
	return clients
}

// Reachable reports whether the user has at least one live connection.
func (r *Registry) Reachable(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[userID]) > 0
}

// SendToUser queues an event on every connection the user holds.
func (r *Registry) SendToUser(userID string, ev *Event) {
	for _, c := range r.Lookup(userID) {
		c.send(ev)
	}
}

// Broadcast queues an event on every connection in the registry.
func (r *Registry) Broadcast(ev *Event) {
	r.mu.RLock()
	clients := make([]*Client, 0, len(r.conns))
	for _, set := range r.conns {
		for _, c := range set {
			clients = append(clients, c)
		}
	}
	r.mu.RUnlock()

	for _, c := range clients {
		c.send(ev)
	}
}
