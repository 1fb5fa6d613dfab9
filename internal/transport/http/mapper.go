package http

import (
	"context"
	"encoding/json"

	"github.com/ovoronin/talkline-server/internal/core"
	"github.com/ovoronin/talkline-server/internal/proto"
	"github.com/ovoronin/talkline-server/internal/store"
)

// dispatch routes one inbound frame to the owning core component. A non-nil
// return is a protocol error to bounce back to the client; domain errors are
// emitted by the components themselves through the event queue.
func (h *WSHandler) dispatch(ctx context.Context, client *core.Client, inbound proto.Inbound) *proto.Error {
	switch inbound.Type {
	case proto.InboundTypeSendMessage:
		var data proto.SendMessageData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return malformed(inbound.Type)
		}
		h.gw.Delivery.Send(ctx, client, data.ReceiverID, data.Message, mediaFromProto(data.Media))

	case proto.InboundTypeMessageRead:
		var data proto.MessageReadData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return malformed(inbound.Type)
		}
		if data.MessageID == "" {
			return &proto.Error{Code: core.ErrCodeBadRequest, Msg: "messageId is required"}
		}
		h.gw.Delivery.AcknowledgeRead(ctx, client.UserID, data.MessageID)

	case proto.InboundTypeTyping:
		var data proto.TypingData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return malformed(inbound.Type)
		}
		if data.ReceiverID == "" {
			return &proto.Error{Code: core.ErrCodeBadRequest, Msg: "receiverId is required"}
		}
		h.gw.Typing.StartTyping(client, data.ReceiverID)

	case proto.InboundTypeStopTyping:
		var data proto.TypingData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return malformed(inbound.Type)
		}
		if data.ReceiverID == "" {
			return &proto.Error{Code: core.ErrCodeBadRequest, Msg: "receiverId is required"}
		}
		h.gw.Typing.StopTyping(client, data.ReceiverID)

	case proto.InboundTypeDeleteMessage:
		var data proto.DeleteMessageData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return malformed(inbound.Type)
		}
		if data.MessageID == "" {
			return &proto.Error{Code: core.ErrCodeBadRequest, Msg: "messageId is required"}
		}
		h.gw.Mutation.DeleteMessage(ctx, client, data.MessageID)

	case proto.InboundTypeClearConversation:
		var data proto.ClearConversationData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return malformed(inbound.Type)
		}
		if data.UserID == "" {
			return &proto.Error{Code: core.ErrCodeBadRequest, Msg: "userId is required"}
		}
		h.gw.Mutation.ClearConversation(ctx, client, data.UserID)

	default:
		return &proto.Error{Code: core.ErrCodeBadRequest, Msg: "unknown frame type"}
	}
	return nil
}

func malformed(frameType string) *proto.Error {
	return &proto.Error{Code: core.ErrCodeBadRequest, Msg: "malformed " + frameType + " frame"}
}

func mediaFromProto(m *proto.MediaData) *store.Media {
	if m == nil {
		return nil
	}
	return &store.Media{
		URL:      m.URL,
		Kind:     m.Kind,
		Filename: m.Filename,
		Size:     m.Size,
	}
}

func messagePayload(m *store.Message) proto.MessagePayload {
	payload := proto.MessagePayload{
		MessageID:  m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Message:    m.Body,
		Timestamp:  m.CreatedAt.Unix(),
		Status:     string(m.Status),
	}
	if m.Media != nil {
		payload.Media = &proto.MediaData{
			URL:      m.Media.URL,
			Kind:     m.Media.Kind,
			Filename: m.Media.Filename,
			Size:     m.Media.Size,
		}
	}
	return payload
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventMessageSent:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventMessageSent,
			Data:  messagePayload(event.Message),
		}
	case core.EventReceiveMessage:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventReceiveMessage,
			Data:  messagePayload(event.Message),
		}
	case core.EventMessageDelivered:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventMessageDelivered,
			Data: proto.StatusPayload{
				MessageID: event.MessageID,
				Status:    string(event.Status),
			},
		}
	case core.EventMessageStatusUpdate:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventMessageStatusUpdate,
			Data: proto.StatusPayload{
				MessageID: event.MessageID,
				Status:    string(event.Status),
			},
		}
	case core.EventUserTyping:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventUserTyping,
			Data: proto.TypingPayload{
				UserID:   event.UserID,
				Username: event.Username,
			},
		}
	case core.EventUserStopTyping:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventUserStopTyping,
			Data:  proto.TypingPayload{UserID: event.UserID},
		}
	case core.EventMessageDeleted:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventMessageDeleted,
			Data:  proto.DeletedPayload{MessageID: event.MessageID},
		}
	case core.EventConversationCleared:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventConversationCleared,
			Data:  proto.ClearedPayload{UserID: event.UserID},
		}
	case core.EventUserStatus:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventUserStatus,
			Data: proto.StatusBroadcast{
				UserID:   event.UserID,
				IsOnline: event.IsOnline,
			},
		}
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}
