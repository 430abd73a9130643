package dto

import (
	"time"

	domainchat "estately/internal/domain/chat"
)

// Conversation describes chat metadata.
type Conversation struct {
	ID        string    `json:"id"`
	ListingID string    `json:"listing_id"`
	SellerID  string    `json:"seller_id"`
	BuyerID   string    `json:"buyer_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ConversationList is a collection of conversations.
type ConversationList struct {
	Items []Conversation `json:"items"`
}

// ChatMessage contains a single message payload. Only public fields: no
// credentials or internal references beyond the ids.
type ChatMessage struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	AuthorID       string    `json:"author_id"`
	Text           string    `json:"text"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

// ChatMessageList is an ordered message list, oldest first.
type ChatMessageList struct {
	Items []ChatMessage `json:"items"`
}

func NewConversation(c *domainchat.Conversation) Conversation {
	return Conversation{
		ID:        string(c.ID),
		ListingID: string(c.ListingID),
		SellerID:  string(c.SellerID),
		BuyerID:   string(c.BuyerID),
		CreatedAt: c.CreatedAt,
	}
}

func NewChatMessage(m *domainchat.Message) ChatMessage {
	return ChatMessage{
		ID:             string(m.ID),
		ConversationID: string(m.ConversationID),
		AuthorID:       string(m.AuthorID),
		Text:           m.Text,
		Status:         string(m.Status),
		CreatedAt:      m.CreatedAt,
	}
}
