package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"estately/internal/domain/listings"
	"estately/internal/domain/user"
)

var (
	ErrConversationNotFound = errors.New("chat: conversation not found")
	ErrListingNotFound      = errors.New("chat: listing not found")
	ErrNoAssignedAgent      = errors.New("chat: listing has no assigned agent")
	ErrSelfChat             = errors.New("chat: cannot open a conversation with yourself")
	ErrNotParticipant       = errors.New("chat: not a conversation participant")
	ErrCounterpartRequired  = errors.New("chat: counterpart id is required")
	ErrUserNotFound         = errors.New("chat: counterpart user not found")
	ErrListingIDRequired    = errors.New("chat: listing id is required")
	ErrParticipantsRequired = errors.New("chat: seller and buyer are required")
)

type ConversationID string

// Conversation is a two-party thread scoped to a single listing. The seller
// is the listing's assigned agent at creation time; the buyer is the
// counterpart. Participants never change after creation.
type Conversation struct {
	ID        ConversationID
	ListingID listings.ListingID
	SellerID  user.ID
	BuyerID   user.ID
	CreatedAt time.Time
}

// HasParticipant reports whether id is one of the two parties.
func (c *Conversation) HasParticipant(id user.ID) bool {
	return id == c.SellerID || id == c.BuyerID
}

// Counterpart returns the other party for a given participant.
func (c *Conversation) Counterpart(id user.ID) user.ID {
	if id == c.SellerID {
		return c.BuyerID
	}
	return c.SellerID
}

type CreateConversationParams struct {
	ID        ConversationID
	ListingID listings.ListingID
	SellerID  user.ID
	BuyerID   user.ID
	Now       time.Time
}

func NewConversation(params CreateConversationParams) (*Conversation, error) {
	if strings.TrimSpace(string(params.ListingID)) == "" {
		return nil, ErrListingIDRequired
	}
	seller := user.ID(strings.TrimSpace(string(params.SellerID)))
	buyer := user.ID(strings.TrimSpace(string(params.BuyerID)))
	if seller == "" || buyer == "" {
		return nil, ErrParticipantsRequired
	}
	if seller == buyer {
		return nil, ErrSelfChat
	}
	now := params.Now
	if now.IsZero() {
		now = time.Now()
	}
	return &Conversation{
		ID:        params.ID,
		ListingID: params.ListingID,
		SellerID:  seller,
		BuyerID:   buyer,
		CreatedAt: now.UTC(),
	}, nil
}

// ConversationStore persists conversations. GetOrCreate must be atomic
// under concurrent first-contact attempts for the same (listing, seller,
// buyer) triple: implementations back it with a uniqueness constraint and
// return the already-stored row when the insert loses the race.
type ConversationStore interface {
	GetOrCreate(ctx context.Context, conversation *Conversation) (*Conversation, error)
	ByID(ctx context.Context, id ConversationID) (*Conversation, error)
	ByParticipant(ctx context.Context, id user.ID) ([]*Conversation, error)
	Count(ctx context.Context) (int64, error)
}
