package core

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/ovoronin/talkline-server/internal/store"
)

// MutationBroadcaster handles destructive conversation operations: deleting a
// single message or wiping a whole conversation, then telling both parties.
// Delete and Clear are the shared entry points; DeleteMessage and
// ClearConversation wrap them for websocket clients and turn failures into
// error events on the originating connection.
type MutationBroadcaster struct {
	registry *Registry
	messages store.MessageStore
	log      *zerolog.Logger
}

// NewMutationBroadcaster builds the broadcaster over the shared registry.
func NewMutationBroadcaster(registry *Registry, messages store.MessageStore, logger *zerolog.Logger) *MutationBroadcaster {
	return &MutationBroadcaster{
		registry: registry,
		messages: messages,
		log:      logger,
	}
}

// DeleteMessage removes a message on behalf of a websocket client. Deleting
// by a non-sender surfaces unauthorized to the requester and mutates nothing;
// deleting an already-gone message is a swallowed race.
func (b *MutationBroadcaster) DeleteMessage(ctx context.Context, origin *Client, messageID string) {
	err := b.Delete(ctx, origin.UserID, messageID)
	switch {
	case err == nil, errors.Is(err, store.ErrNotFound):
	case errors.Is(err, store.ErrUnauthorized):
		origin.send(&Event{
			Kind:  EventError,
			Error: coreError(ErrCodeUnauthorized, "only the sender can delete a message"),
		})
	default:
		origin.send(&Event{
			Kind:  EventError,
			Error: coreError(ErrCodePersistenceFailure, "failed to delete message"),
		})
	}
}

// Delete removes a message the requester sent and notifies the requester
// plus, when reachable, the message's receiver. The receiver comes from the
// stored row, never from the request, so nobody outside the conversation can
// be made to hear about it.
func (b *MutationBroadcaster) Delete(ctx context.Context, requesterID, messageID string) error {
	msg, err := b.messages.DeleteMessage(ctx, messageID, requesterID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			b.log.Debug().Str("message_id", messageID).Msg("delete of missing message")
		case errors.Is(err, store.ErrUnauthorized):
		default:
			b.log.Error().Err(err).Str("message_id", messageID).Msg("delete message")
		}
		return err
	}

	ev := &Event{Kind: EventMessageDeleted, MessageID: messageID}
	b.registry.SendToUser(msg.SenderID, ev)
	b.registry.SendToUser(msg.ReceiverID, ev)
	return nil
}

// ClearConversation wipes a conversation on behalf of a websocket client.
func (b *MutationBroadcaster) ClearConversation(ctx context.Context, origin *Client, otherUserID string) {
	if _, err := b.Clear(ctx, origin.UserID, otherUserID); err != nil {
		origin.send(&Event{
			Kind:  EventError,
			Error: coreError(ErrCodePersistenceFailure, "failed to clear conversation"),
		})
	}
}

// Clear wipes every message between the requester and the other user, both
// directions, then notifies each side with the counterpart's id. Returns how
// many rows were removed. Irreversible and unconditional; any confirmation
// step lives with the client.
func (b *MutationBroadcaster) Clear(ctx context.Context, requesterID, otherUserID string) (int64, error) {
	count, err := b.messages.DeleteConversation(ctx, requesterID, otherUserID)
	if err != nil {
		b.log.Error().Err(err).
			Str("user_a", requesterID).
			Str("user_b", otherUserID).
			Msg("clear conversation")
		return 0, err
	}

	b.log.Info().
		Str("user_a", requesterID).
		Str("user_b", otherUserID).
		Int64("removed", count).
		Msg("conversation cleared")

	b.registry.SendToUser(requesterID, &Event{Kind: EventConversationCleared, UserID: otherUserID})
	b.registry.SendToUser(otherUserID, &Event{Kind: EventConversationCleared, UserID: requesterID})
	return count, nil
}
