package core

import "github.com/ovoronin/talkline-server/internal/store"

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventMessageSent confirms to the sender that their message was persisted.
	EventMessageSent EventKind = iota
	// EventReceiveMessage delivers a message to its receiver.
	EventReceiveMessage
	// EventMessageDelivered tells the sender the receiver was reachable.
	EventMessageDelivered
	// EventMessageStatusUpdate tells the sender about a later status change (read).
	EventMessageStatusUpdate
	// EventUserTyping tells the counterpart that a user started typing.
	EventUserTyping
	// EventUserStopTyping tells the counterpart that a user stopped typing.
	EventUserStopTyping
	// EventMessageDeleted tells both parties a message was removed.
	EventMessageDeleted
	// EventConversationCleared tells both parties a conversation was wiped.
	EventConversationCleared
	// EventUserStatus broadcasts an online/offline transition to everyone.
	EventUserStatus
	// EventError notifies the originating connection about a domain error.
	EventError
)

// Event is sent to clients to describe what happened in the system.
// Only the fields relevant to the kind are populated.
type Event struct {
	Kind      EventKind
	Message   *store.Message // message events
	MessageID string         // status update / deletion
	Status    store.Status   // status update
	UserID    string         // presence, typing, conversation_cleared
	Username  string         // typing
	IsOnline  bool           // presence
	Error     *CoreError
}
