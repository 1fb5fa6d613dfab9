package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/ovoronin/talkline-server/internal/core"
	"github.com/ovoronin/talkline-server/internal/store"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// MessageHandlers provides HTTP handlers for message history and mutations.
// Read acks and deletions taken over REST go through the same core components
// as the websocket path, so connected parties still hear about them live.
type MessageHandlers struct {
	store    store.MessageStore
	delivery *core.DeliveryEngine
	mutation *core.MutationBroadcaster
	log      *zerolog.Logger
}

// NewMessageHandlers creates a new message handlers instance.
func NewMessageHandlers(st store.MessageStore, delivery *core.DeliveryEngine, mutation *core.MutationBroadcaster, logger *zerolog.Logger) *MessageHandlers {
	return &MessageHandlers{
		store:    st,
		delivery: delivery,
		mutation: mutation,
		log:      logger,
	}
}

// MessageResponse represents a message in API responses.
type MessageResponse struct {
	MessageID  string     `json:"messageId"`
	SenderID   string     `json:"senderId"`
	ReceiverID string     `json:"receiverId"`
	Message    string     `json:"message"`
	Media      *MediaBody `json:"media,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
	Status     string     `json:"status"`
}

// MediaBody mirrors the persisted attachment descriptor.
type MediaBody struct {
	URL      string `json:"url"`
	Kind     string `json:"kind"`
	Filename string `json:"filename,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

func toMessageResponse(m *store.Message) MessageResponse {
	resp := MessageResponse{
		MessageID:  m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Message:    m.Body,
		Timestamp:  m.CreatedAt,
		Status:     string(m.Status),
	}
	if m.Media != nil {
		resp.Media = &MediaBody{
			URL:      m.Media.URL,
			Kind:     m.Media.Kind,
			Filename: m.Media.Filename,
			Size:     m.Media.Size,
		}
	}
	return resp
}

// Conversation returns a page of history with another user, oldest first.
// GET /api/conversations/:userId?limit=&before=<RFC3339>
func (h *MessageHandlers) Conversation(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	otherID := c.Param("userId")
	if otherID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "user id is required"})
		return
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
			return
		}
		limit = min(parsed, maxHistoryLimit)
	}

	before := time.Now().Add(time.Second)
	if raw := c.Query("before"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid before timestamp"})
			return
		}
		before = parsed
	}

	messages, err := h.store.ListConversation(c.Request.Context(), uid, otherID, limit, before)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", uid).Str("other_id", otherID).Msg("failed to list conversation")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]MessageResponse, 0, len(messages))
	for _, m := range messages {
		response = append(response, toMessageResponse(m))
	}
	c.JSON(http.StatusOK, gin.H{"messages": response, "hasMore": len(messages) == limit})
}

// MarkRead acknowledges a message as read on behalf of its receiver.
// PATCH /api/messages/:messageId/read
func (h *MessageHandlers) MarkRead(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	messageID := c.Param("messageId")
	if messageID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "message id is required"})
		return
	}

	// The engine validates receiver ownership and swallows stale ids; the
	// REST contract mirrors that by answering 204 either way.
	h.delivery.AcknowledgeRead(c.Request.Context(), uid, messageID)
	c.Status(http.StatusNoContent)
}

// DeleteMessage removes a message the caller sent; connected parties are
// notified over their sockets.
// DELETE /api/messages/:messageId
func (h *MessageHandlers) DeleteMessage(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	messageID := c.Param("messageId")
	if messageID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "message id is required"})
		return
	}

	err := h.mutation.Delete(c.Request.Context(), uid, messageID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "message not found"})
		return
	case errors.Is(err, store.ErrUnauthorized):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "only the sender can delete a message"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.Status(http.StatusNoContent)
}

// ClearConversation wipes the conversation with another user, both
// directions; connected parties are notified over their sockets.
// DELETE /api/conversations/:userId
func (h *MessageHandlers) ClearConversation(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	otherID := c.Param("userId")
	if otherID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "user id is required"})
		return
	}

	count, err := h.mutation.Clear(c.Request.Context(), uid, otherID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deletedCount": count})
}

// UnreadCount returns how many messages are waiting for the caller.
// GET /api/messages/unread/count
func (h *MessageHandlers) UnreadCount(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	count, err := h.store.CountUnread(c.Request.Context(), uid)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", uid).Msg("failed to count unread")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"unreadCount": count})
}
