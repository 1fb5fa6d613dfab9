package core

import (
	"sync"
	"time"
)

// eventBuffer is the per-connection outbound queue depth. When it fills up
// the slowest events are dropped rather than blocking the core.
const eventBuffer = 32

// Client is one live connection as seen by the core. The transport layer owns
// the socket; the core only addresses events through this handle.
type Client struct {
	ConnID      string
	UserID      string
	Username    string
	ConnectedAt time.Time

	mu     sync.Mutex
	closed bool
	events chan *Event
}

// NewClient constructs a connection handle for an authenticated user.
func NewClient(connID, userID, username string) *Client {
	return &Client{
		ConnID:      connID,
		UserID:      userID,
		Username:    username,
		ConnectedAt: time.Now(),
		events:      make(chan *Event, eventBuffer),
	}
}

// Events exposes the outbound queue for the transport's write loop.
func (c *Client) Events() <-chan *Event {
	return c.events
}

// send queues an event without ever blocking. Events for a closed handle or a
// full buffer are dropped; a connection that disappeared mid-operation simply
// stops receiving.
func (c *Client) send(ev *Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.events <- ev:
	default:
	}
}

// Close marks the handle stale and releases the write loop. Safe to call
// more than once.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.events)
}
