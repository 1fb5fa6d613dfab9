package core

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ovoronin/talkline-server/internal/store"
)

// PresenceTracker turns registry occupancy transitions into a persisted
// online flag and a user_status broadcast to every connected client.
//
// Transitions for one user are serialized under a per-user lock: the
// registration, the flag write, and the broadcast run as a unit, so a
// reconnect racing a slow disconnect cannot publish offline after online.
// The registry's own lock is untouched and other users never wait.
type PresenceTracker struct {
	registry *Registry
	users    store.UserStore
	log      *zerolog.Logger

	mu          sync.Mutex
	transitions map[string]*sync.Mutex
}

// NewPresenceTracker builds a tracker over the shared registry.
func NewPresenceTracker(registry *Registry, users store.UserStore, logger *zerolog.Logger) *PresenceTracker {
	return &PresenceTracker{
		registry:    registry,
		users:       users,
		log:         logger,
		transitions: make(map[string]*sync.Mutex),
	}
}

func (p *PresenceTracker) userLock(userID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	lock, ok := p.transitions[userID]
	if !ok {
		lock = &sync.Mutex{}
		p.transitions[userID] = lock
	}
	return lock
}

// HandleConnect registers the handle and, when the user came online,
// broadcasts the transition. A failed flag write is logged but does not undo
// the registration: the connection is live regardless of what the store says.
func (p *PresenceTracker) HandleConnect(ctx context.Context, c *Client) {
	lock := p.userLock(c.UserID)
	lock.Lock()
	defer lock.Unlock()

	if !p.registry.Register(c) {
		return
	}

	if err := p.users.SetUserOnline(ctx, c.UserID, true); err != nil {
		p.log.Error().Err(err).Str("user_id", c.UserID).Msg("persist online flag")
	}

	p.registry.Broadcast(&Event{
		Kind:     EventUserStatus,
		UserID:   c.UserID,
		IsOnline: true,
	})
}

// HandleDisconnect unregisters the handle and, when this was the user's last
// connection, broadcasts the offline transition. Returns true in that case so
// the gateway can release per-user state (typing). Idempotent per handle.
func (p *PresenceTracker) HandleDisconnect(ctx context.Context, c *Client) bool {
	lock := p.userLock(c.UserID)
	lock.Lock()
	defer lock.Unlock()

	if !p.registry.Unregister(c) {
		return false
	}

	if err := p.users.SetUserOnline(ctx, c.UserID, false); err != nil {
		p.log.Error().Err(err).Str("user_id", c.UserID).Msg("persist offline flag")
	}

	p.registry.Broadcast(&Event{
		Kind:     EventUserStatus,
		UserID:   c.UserID,
		IsOnline: false,
	})
	return true
}
