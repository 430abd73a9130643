package realtime

import (
	"estately/internal/domain/chat"
	"estately/internal/domain/user"
)

// ConnID identifies a single live connection. Distinct from the user id:
// one user may hold several connections (two tabs, phone + desktop).
type ConnID string

// Server push event names.
const (
	EventChatCreated     = "chat-created"
	EventChatJoined      = "chat-joined"
	EventMessageSent     = "message-sent"
	EventMessageReceived = "message-received"
	EventTyping          = "typing"
	EventNotification    = "newNotification"
	EventStatsUpdate     = "statsUpdate"
	EventError           = "error"
)

// StatsRoom is the global statistics channel; no membership restriction.
const StatsRoom = "stats"

// ConversationRoom names the broadcast scope for one conversation.
func ConversationRoom(id chat.ConversationID) string {
	return "conversation:" + string(id)
}

// UserRoom names the single-member channel for personal notifications.
func UserRoom(id user.ID) string {
	return "user:" + string(id)
}

// Dispatcher delivers a payload to every connection joined to a room. Each
// delivery is independent and fire-and-forget: an unreachable member never
// blocks or fails the others, and no retries happen at this layer.
type Dispatcher interface {
	Publish(room, event string, payload any)
	PublishExcept(room, event string, payload any, except ConnID)
	PublishToUser(id user.ID, event string, payload any)
}
