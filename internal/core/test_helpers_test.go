package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ovoronin/talkline-server/internal/store"
)

func testLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

// memStore is an in-memory store.Store used to exercise the core without
// SQLite. createErr/updateErr inject persistence failures; setOnlineHook
// intercepts flag writes for interleaving tests and must be set before any
// goroutine touches the store.
type memStore struct {
	mu            sync.Mutex
	messages      map[string]*store.Message
	online        map[string]bool
	createErr     error
	updateErr     error
	setOnlineHook func(id string, online bool)
}

func newMemStore() *memStore {
	return &memStore{
		messages: make(map[string]*store.Message),
		online:   make(map[string]bool),
	}
}

func (m *memStore) CreateMessage(_ context.Context, sender, receiver, body string, media *store.Media) (*store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	msg := &store.Message{
		ID:         uuid.NewString(),
		SenderID:   sender,
		ReceiverID: receiver,
		Body:       body,
		Media:      media,
		Status:     store.StatusSent,
		CreatedAt:  time.Now(),
	}
	m.messages[msg.ID] = msg
	return copyMessage(msg), nil
}

func (m *memStore) GetMessage(_ context.Context, id string) (*store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyMessage(msg), nil
}

func (m *memStore) UpdateMessageStatus(_ context.Context, id string, status store.Status) (*store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	msg, ok := m.messages[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if status.Rank() > msg.Status.Rank() {
		msg.Status = status
	}
	return copyMessage(msg), nil
}

func (m *memStore) DeleteMessage(_ context.Context, id, requester string) (*store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if msg.SenderID != requester {
		return nil, store.ErrUnauthorized
	}
	delete(m.messages, id)
	return copyMessage(msg), nil
}

func (m *memStore) DeleteConversation(_ context.Context, userA, userB string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for id, msg := range m.messages {
		pair := (msg.SenderID == userA && msg.ReceiverID == userB) ||
			(msg.SenderID == userB && msg.ReceiverID == userA)
		if pair {
			delete(m.messages, id)
			count++
		}
	}
	return count, nil
}

func (m *memStore) ListConversation(_ context.Context, userA, userB string, limit int, before time.Time) ([]*store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*store.Message, 0)
	for _, msg := range m.messages {
		pair := (msg.SenderID == userA && msg.ReceiverID == userB) ||
			(msg.SenderID == userB && msg.ReceiverID == userA)
		if pair && msg.CreatedAt.Before(before) && len(out) < limit {
			out = append(out, copyMessage(msg))
		}
	}
	return out, nil
}

func (m *memStore) CountUnread(_ context.Context, receiver string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, msg := range m.messages {
		if msg.ReceiverID == receiver && msg.Status != store.StatusRead {
			count++
		}
	}
	return count, nil
}

func (m *memStore) CreateUser(_ context.Context, username, passwordHash string) (*store.User, error) {
	return &store.User{ID: uuid.NewString(), Username: username, PasswordHash: passwordHash}, nil
}

func (m *memStore) GetUserByID(_ context.Context, id string) (*store.User, error) {
	return nil, store.ErrNotFound
}

func (m *memStore) GetUserByUsername(_ context.Context, username string) (*store.User, error) {
	return nil, store.ErrNotFound
}

func (m *memStore) SetUserOnline(_ context.Context, id string, online bool) error {
	if m.setOnlineHook != nil {
		m.setOnlineHook(id, online)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.online[id] = online
	return nil
}

func (m *memStore) UpdateUsername(_ context.Context, id, username string) error {
	return nil
}

func (m *memStore) UpdatePassword(_ context.Context, id, passwordHash string) error {
	return nil
}

func (m *memStore) ListUsers(_ context.Context, excludeID string) ([]*store.User, error) {
	return nil, nil
}

func (m *memStore) SearchUsers(_ context.Context, query string) ([]*store.User, error) {
	return nil, nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) messageCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

func (m *memStore) isOnline(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online[id]
}

func copyMessage(msg *store.Message) *store.Message {
	clone := *msg
	return &clone
}

func timeFarFuture() time.Time {
	return time.Now().Add(24 * time.Hour)
}

// mustEvent drains the client's queue until an event of the wanted kind
// shows up or the deadline passes.
func mustEvent(t *testing.T, c *Client, kind EventKind) *Event {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-c.Events():
			if !ok {
				t.Fatalf("event channel closed while waiting for kind %v", kind)
			}
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("expected event kind %v not received", kind)
		}
	}
}

// noEvent asserts that no event of the given kind is queued.
func noEvent(t *testing.T, c *Client, kind EventKind) {
	t.Helper()

	for {
		select {
		case ev, ok := <-c.Events():
			if !ok {
				return
			}
			if ev.Kind == kind {
				t.Fatalf("unexpected event kind %v: %+v", kind, ev)
			}
		default:
			return
		}
	}
}
