package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"estately/internal/domain/user"
)

var (
	ErrMessageTextRequired = errors.New("chat: message text is required")
	ErrMessageTooLong      = errors.New("chat: message text too long")
	ErrAuthorRequired      = errors.New("chat: author id is required")
)

// MaxMessageLength bounds a single message body in runes.
const MaxMessageLength = 4000

type MessageID string

type MessageStatus string

const (
	StatusSent MessageStatus = "sent"
	StatusRead MessageStatus = "read"
)

// Message is immutable once created except for Status.
type Message struct {
	ID             MessageID
	ConversationID ConversationID
	AuthorID       user.ID
	Text           string
	Status         MessageStatus
	CreatedAt      time.Time
}

type CreateMessageParams struct {
	ID             MessageID
	ConversationID ConversationID
	AuthorID       user.ID
	Text           string
	Now            time.Time
}

func NewMessage(params CreateMessageParams) (*Message, error) {
	author := user.ID(strings.TrimSpace(string(params.AuthorID)))
	if author == "" {
		return nil, ErrAuthorRequired
	}
	text := strings.TrimSpace(params.Text)
	if text == "" {
		return nil, ErrMessageTextRequired
	}
	if len([]rune(text)) > MaxMessageLength {
		return nil, ErrMessageTooLong
	}
	now := params.Now
	if now.IsZero() {
		now = time.Now()
	}
	return &Message{
		ID:             params.ID,
		ConversationID: params.ConversationID,
		AuthorID:       author,
		Text:           text,
		Status:         StatusSent,
		CreatedAt:      now.UTC(),
	}, nil
}

// MessageStore persists messages in creation order. ListByConversation
// returns the ordered sequence, oldest first; limit <= 0 means all.
type MessageStore interface {
	Add(ctx context.Context, message *Message) error
	ListByConversation(ctx context.Context, id ConversationID, limit int) ([]*Message, error)
	MarkRead(ctx context.Context, id ConversationID, reader user.ID) (int, error)
	Count(ctx context.Context) (int64, error)
}
