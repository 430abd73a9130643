package ws

import (
	"encoding/json"

	"estately/internal/app/dto"
)

// Client action names.
const (
	ActionGetOrCreateChat = "getOrCreateChat"
	ActionJoinChat        = "joinChat"
	ActionSendMessage     = "sendMessage"
	ActionTyping          = "typing"
	ActionJoinStats       = "joinStats"
)

// ClientEnvelope is the frame clients send: an action name plus its payload.
type ClientEnvelope struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ServerEnvelope is the frame the server pushes: an event name plus payload.
type ServerEnvelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

type getOrCreateChatRequest struct {
	ListingID string `json:"listingId"`
}

type joinChatRequest struct {
	ConversationID string `json:"conversationId"`
}

type sendMessageRequest struct {
	ListingID     string `json:"listingId"`
	Text          string `json:"text"`
	CounterpartID string `json:"counterpartId,omitempty"`
}

type typingRequest struct {
	ConversationID string `json:"conversationId"`
}

type chatRefPayload struct {
	ConversationID string `json:"conversationId"`
}

type messageAckPayload struct {
	ConversationID string          `json:"conversationId"`
	Message        dto.ChatMessage `json:"message"`
}

type typingPayload struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}

type errorPayload struct {
	Action  string `json:"action,omitempty"`
	Message string `json:"message"`
}
