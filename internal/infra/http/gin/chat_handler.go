package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	gin "github.com/gin-gonic/gin"

	"estately/internal/app/dto"
	chatservice "estately/internal/app/services/chat"
	domainchat "estately/internal/domain/chat"
)

// ChatHTTP exposes the REST catch-up surface next to the realtime channel.
type ChatHTTP interface {
	ListMyConversations(c *gin.Context)
	ListMessages(c *gin.Context)
	MarkRead(c *gin.Context)
}

// ChatHandler serves conversation history over plain HTTP. The realtime
// gateway is the primary channel; this is the restartable catch-up path.
type ChatHandler struct {
	Chat   *chatservice.Service
	Logger *slog.Logger
}

// ListMyConversations returns conversations the current user participates in.
func (h ChatHandler) ListMyConversations(c *gin.Context) {
	principal, ok := requireRole(c, "")
	if !ok {
		return
	}
	conversations, err := h.Chat.ListForUser(c.Request.Context(), principal.ID)
	if err != nil {
		h.respondChatError(c, err, "list conversations", "user_id", principal.ID)
		return
	}
	collection := dto.ConversationList{Items: make([]dto.Conversation, 0, len(conversations))}
	for _, conversation := range conversations {
		collection.Items = append(collection.Items, dto.NewConversation(conversation))
	}
	c.JSON(http.StatusOK, collection)
}

// ListMessages returns a conversation's messages oldest first, restricted
// to its participants.
func (h ChatHandler) ListMessages(c *gin.Context) {
	principal, ok := requireRole(c, "")
	if !ok {
		return
	}
	conversationID := strings.TrimSpace(c.Param("id"))
	if conversationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation id is required"})
		return
	}
	limit := parseLimit(c.Query("limit"))

	messages, err := h.Chat.History(c.Request.Context(), domainchat.ConversationID(conversationID), principal.ID, limit)
	if err != nil {
		h.respondChatError(c, err, "list messages", "conversation_id", conversationID, "user_id", principal.ID)
		return
	}
	collection := dto.ChatMessageList{Items: make([]dto.ChatMessage, 0, len(messages))}
	for _, message := range messages {
		collection.Items = append(collection.Items, dto.NewChatMessage(message))
	}
	c.JSON(http.StatusOK, collection)
}

// MarkRead marks the counterpart's messages as read for the current user.
func (h ChatHandler) MarkRead(c *gin.Context) {
	principal, ok := requireRole(c, "")
	if !ok {
		return
	}
	conversationID := strings.TrimSpace(c.Param("id"))
	if conversationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation id is required"})
		return
	}
	changed, err := h.Chat.MarkRead(c.Request.Context(), domainchat.ConversationID(conversationID), principal.ID)
	if err != nil {
		h.respondChatError(c, err, "mark read", "conversation_id", conversationID, "user_id", principal.ID)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": changed})
}

func (h ChatHandler) respondChatError(c *gin.Context, err error, action string, attrs ...any) {
	switch {
	case errors.Is(err, domainchat.ErrConversationNotFound), errors.Is(err, domainchat.ErrListingNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domainchat.ErrNotParticipant):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, domainchat.ErrSelfChat),
		errors.Is(err, domainchat.ErrCounterpartRequired),
		errors.Is(err, domainchat.ErrUserNotFound),
		errors.Is(err, domainchat.ErrNoAssignedAgent),
		errors.Is(err, domainchat.ErrListingIDRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		if h.Logger != nil {
			h.Logger.Error("chat request failed", append([]any{"action", action, "error", err}, attrs...)...)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "chat unavailable"})
	}
}

// parseLimit returns 0 (no limit) for anything that is not a positive integer.
func parseLimit(raw string) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value <= 0 {
		return 0
	}
	return value
}

var _ ChatHTTP = (*ChatHandler)(nil)
