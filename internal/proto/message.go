package proto

import "encoding/json"

// Inbound is the envelope for frames coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Inbound frame types. Names are the wire contract.
const (
	InboundTypeSendMessage       = "send_message"
	InboundTypeMessageRead       = "message_read"
	InboundTypeTyping            = "typing"
	InboundTypeStopTyping        = "stop_typing"
	InboundTypeDeleteMessage     = "delete_message"
	InboundTypeClearConversation = "clear_conversation"
)

// Outbound event names.
const (
	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventMessageSent         = "message_sent"
	EventReceiveMessage      = "receive_message"
	EventMessageDelivered    = "message_delivered"
	EventMessageStatusUpdate = "message_status_update"
	EventUserTyping          = "user_typing"
	EventUserStopTyping      = "user_stop_typing"
	EventMessageDeleted      = "message_deleted"
	EventConversationCleared = "conversation_cleared"
	EventUserStatus          = "user_status"
)

// MediaData describes an attachment carried alongside a message body.
type MediaData struct {
	URL      string `json:"url"`
	Kind     string `json:"kind"`
	Filename string `json:"filename,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// SendMessageData asks the server to deliver a message to another user.
type SendMessageData struct {
	ReceiverID string     `json:"receiverId"`
	Message    string     `json:"message"`
	Media      *MediaData `json:"media,omitempty"`
}

// MessageReadData acknowledges that the client read a message.
type MessageReadData struct {
	MessageID string `json:"messageId"`
	SenderID  string `json:"senderId,omitempty"`
}

// TypingData carries typing/stop_typing signals toward a counterpart.
type TypingData struct {
	ReceiverID string `json:"receiverId"`
}

// DeleteMessageData asks the server to delete one message. ReceiverID is
// accepted for wire compatibility but ignored; the server notifies the
// parties of the stored row.
type DeleteMessageData struct {
	MessageID  string `json:"messageId"`
	ReceiverID string `json:"receiverId"`
}

// ClearConversationData asks the server to wipe a whole conversation.
type ClearConversationData struct {
	UserID string `json:"userId"`
}

// Outbound is the envelope for frames sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// MessagePayload is the wire shape of a message in message_sent and
// receive_message events.
type MessagePayload struct {
	MessageID  string     `json:"messageId"`
	SenderID   string     `json:"senderId"`
	ReceiverID string     `json:"receiverId"`
	Message    string     `json:"message"`
	Media      *MediaData `json:"media,omitempty"`
	Timestamp  int64      `json:"timestamp"`
	Status     string     `json:"status"`
}

// StatusPayload reports a delivery-status transition to the sender.
type StatusPayload struct {
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
}

// TypingPayload identifies who is typing.
type TypingPayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username,omitempty"`
}

// DeletedPayload identifies a removed message.
type DeletedPayload struct {
	MessageID string `json:"messageId"`
}

// ClearedPayload identifies the counterpart of a wiped conversation.
type ClearedPayload struct {
	UserID string `json:"userId"`
}

// StatusBroadcast is the user_status presence payload.
type StatusBroadcast struct {
	UserID   string `json:"userId"`
	IsOnline bool   `json:"isOnline"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
