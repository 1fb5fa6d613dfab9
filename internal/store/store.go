package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is returned when the requester does not own the row.
	ErrUnauthorized = errors.New("unauthorized")
)

// Status is the delivery state of a message. Transitions are monotonic:
// sent -> delivered -> read. Rank gives the ordering.
type Status string

const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
)

// Rank maps a status to its position in the delivery sequence.
// Unknown statuses rank below sent so they can never overwrite anything.
func (s Status) Rank() int {
	switch s {
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusRead:
		return 3
	default:
		return 0
	}
}

// Valid reports whether s is one of the known delivery states.
func (s Status) Valid() bool {
	return s.Rank() > 0
}

// User represents a user in the system.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	IsOnline     bool
	LastSeen     time.Time
	CreatedAt    time.Time
}

// Media describes an attachment carried by a message. The server stores the
// descriptor only; upload and hosting happen elsewhere.
type Media struct {
	URL      string
	Kind     string // image, video, audio, file
	Filename string
	Size     int64
}

// Message represents a persisted direct message between two users.
type Message struct {
	ID         string
	SenderID   string
	ReceiverID string
	Body       string
	Media      *Media
	Status     Status
	CreatedAt  time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, username, passwordHash string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id string) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// SetUserOnline flips the user's online flag and stamps last_seen.
	SetUserOnline(ctx context.Context, id string, online bool) error

	// UpdateUsername renames the user. Returns ErrNotFound if absent.
	UpdateUsername(ctx context.Context, id, username string) error

	// UpdatePassword replaces the user's password hash. Returns ErrNotFound
	// if absent.
	UpdatePassword(ctx context.Context, id, passwordHash string) error

	// ListUsers lists all users except the given one, for the contact list.
	ListUsers(ctx context.Context, excludeID string) ([]*User, error)

	// SearchUsers searches for users by username substring.
	SearchUsers(ctx context.Context, query string) ([]*User, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// CreateMessage persists a new message with status sent.
	CreateMessage(ctx context.Context, sender, receiver, body string, media *Media) (*Message, error)

	// GetMessage retrieves a message by ID. Returns ErrNotFound if absent.
	GetMessage(ctx context.Context, id string) (*Message, error)

	// UpdateMessageStatus advances the message's delivery status. Backward
	// transitions are no-ops that return the row unchanged. Returns
	// ErrNotFound if the message does not exist.
	UpdateMessageStatus(ctx context.Context, id string, status Status) (*Message, error)

	// DeleteMessage removes a message, but only when requester is its
	// sender, and returns the removed row so callers know both parties.
	// Returns ErrNotFound for an unknown id and ErrUnauthorized when the
	// requester does not own the message.
	DeleteMessage(ctx context.Context, id, requester string) (*Message, error)

	// DeleteConversation removes every message between the two users,
	// in both directions, and returns how many rows were removed.
	DeleteConversation(ctx context.Context, userA, userB string) (int64, error)

	// ListConversation returns up to limit messages between the two users
	// created before the given time, oldest first.
	ListConversation(ctx context.Context, userA, userB string, limit int, before time.Time) ([]*Message, error)

	// CountUnread counts messages addressed to receiver not yet read.
	CountUnread(ctx context.Context, receiver string) (int64, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
