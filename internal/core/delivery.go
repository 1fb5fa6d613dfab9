package core

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ovoronin/talkline-server/internal/store"
)

// DeliveryEngine owns the per-message state machine sent -> delivered -> read.
// Status only moves forward; the store enforces the monotonic guard, the
// engine decides which events each transition produces.
type DeliveryEngine struct {
	registry *Registry
	messages store.MessageStore
	log      *zerolog.Logger
}

// NewDeliveryEngine builds the engine over the shared registry.
func NewDeliveryEngine(registry *Registry, messages store.MessageStore, logger *zerolog.Logger) *DeliveryEngine {
	return &DeliveryEngine{
		registry: registry,
		messages: messages,
		log:      logger,
	}
}

// Send persists a new message and routes it. The sender always gets a
// message_sent confirmation first; when the receiver is reachable the status
// advances to delivered and both sides hear about it. When the receiver is
// offline the record stays at sent and history delivery picks it up later.
//
// Error frames go to the originating connection only; broadcast events go to
// every connection the addressed user holds.
func (e *DeliveryEngine) Send(ctx context.Context, origin *Client, receiverID, body string, media *store.Media) {
	if strings.TrimSpace(body) == "" && media == nil {
		origin.send(&Event{
			Kind:  EventError,
			Error: coreError(ErrCodeInvalidInput, "message body or media is required"),
		})
		return
	}
	if receiverID == "" {
		origin.send(&Event{
			Kind:  EventError,
			Error: coreError(ErrCodeInvalidInput, "receiver is required"),
		})
		return
	}

	msg, err := e.messages.CreateMessage(ctx, origin.UserID, receiverID, strings.TrimSpace(body), media)
	if err != nil {
		e.log.Error().Err(err).Str("sender", origin.UserID).Msg("persist message")
		origin.send(&Event{
			Kind:  EventError,
			Error: coreError(ErrCodePersistenceFailure, "failed to send message"),
		})
		return
	}

	e.registry.SendToUser(origin.UserID, &Event{Kind: EventMessageSent, Message: msg})

	if !e.registry.Reachable(receiverID) {
		return
	}

	delivered, err := e.messages.UpdateMessageStatus(ctx, msg.ID, store.StatusDelivered)
	if err != nil {
		// The message is persisted and the sender was told; delivery
		// just did not advance. Suppress the delivery events so nobody
		// hears about a transition that did not happen.
		e.log.Error().Err(err).Str("message_id", msg.ID).Msg("mark delivered")
		return
	}

	e.registry.SendToUser(receiverID, &Event{Kind: EventReceiveMessage, Message: delivered})
	e.registry.SendToUser(origin.UserID, &Event{
		Kind:      EventMessageDelivered,
		MessageID: delivered.ID,
		Status:    delivered.Status,
	})
}

// AcknowledgeRead advances a message to read on behalf of its receiver and,
// when the transition actually happened, notifies the sender's connections.
// A stale or unknown message id is a harmless race: logged, never surfaced.
func (e *DeliveryEngine) AcknowledgeRead(ctx context.Context, readerID, messageID string) {
	msg, err := e.messages.GetMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			e.log.Debug().Str("message_id", messageID).Msg("read ack for missing message")
			return
		}
		e.log.Error().Err(err).Str("message_id", messageID).Msg("load message for read ack")
		return
	}

	if msg.ReceiverID != readerID {
		e.log.Warn().
			Str("message_id", messageID).
			Str("reader", readerID).
			Msg("read ack from non-receiver ignored")
		return
	}
	if msg.Status == store.StatusRead {
		// Already read; a second ack is a no-op and emits nothing.
		return
	}

	updated, err := e.messages.UpdateMessageStatus(ctx, messageID, store.StatusRead)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			e.log.Debug().Str("message_id", messageID).Msg("message deleted during read ack")
			return
		}
		e.log.Error().Err(err).Str("message_id", messageID).Msg("mark read")
		return
	}

	e.registry.SendToUser(updated.SenderID, &Event{
		Kind:      EventMessageStatusUpdate,
		MessageID: updated.ID,
		Status:    updated.Status,
	})
}
