package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	domainchat "estately/internal/domain/chat"
	domainlistings "estately/internal/domain/listings"
	domainuser "estately/internal/domain/user"
)

// Service implements the conversation and message operations behind the
// realtime gateway and the REST catch-up endpoints. Membership in a
// conversation is the only authorization primitive: both parties hold
// symmetric read/write rights, and nobody else holds any.
type Service struct {
	Conversations domainchat.ConversationStore
	Messages      domainchat.MessageStore
	Listings      domainlistings.Directory
	Users         domainuser.Directory
	Logger        *slog.Logger
}

// ResolveOrCreate maps a (listing, requester, counterpart) triple to the
// single conversation for that pair, creating it on first contact. The
// listing's assigned agent is always the seller. When the requester is not
// the agent, the requester is the buyer and counterpartID is ignored; when
// the requester is the agent, counterpartID names the buyer and must be
// supplied. Safe under concurrent first contact: the store's GetOrCreate
// resolves the race to a single row.
func (s *Service) ResolveOrCreate(ctx context.Context, listingID domainlistings.ListingID, counterpartID, requesterID domainuser.ID) (*domainchat.Conversation, error) {
	if err := s.ensureDependencies(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(string(listingID)) == "" {
		return nil, domainchat.ErrListingIDRequired
	}
	listing, err := s.Listings.FindWithAgent(ctx, listingID)
	if err != nil {
		if errors.Is(err, domainlistings.ErrNotFound) {
			return nil, domainchat.ErrListingNotFound
		}
		return nil, err
	}
	if !listing.HasAgent() {
		return nil, domainchat.ErrNoAssignedAgent
	}
	seller := domainuser.ID(listing.Agent)

	buyer := requesterID
	if requesterID == seller {
		buyer = domainuser.ID(strings.TrimSpace(string(counterpartID)))
		if buyer == "" {
			return nil, domainchat.ErrCounterpartRequired
		}
		exists, err := s.Users.Exists(ctx, buyer)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, domainchat.ErrUserNotFound
		}
	}
	if seller == buyer {
		return nil, domainchat.ErrSelfChat
	}

	conversation, err := domainchat.NewConversation(domainchat.CreateConversationParams{
		ID:        domainchat.ConversationID(uuid.NewString()),
		ListingID: listing.ID,
		SellerID:  seller,
		BuyerID:   buyer,
		Now:       time.Now(),
	})
	if err != nil {
		return nil, err
	}
	stored, err := s.Conversations.GetOrCreate(ctx, conversation)
	if err != nil {
		return nil, err
	}
	if stored.ID == conversation.ID && s.Logger != nil {
		s.Logger.Info("conversation created",
			"conversation_id", stored.ID,
			"listing_id", stored.ListingID,
			"seller_id", stored.SellerID,
			"buyer_id", stored.BuyerID,
		)
	}
	return stored, nil
}

// GetWithParticipants loads a conversation by id.
func (s *Service) GetWithParticipants(ctx context.Context, id domainchat.ConversationID) (*domainchat.Conversation, error) {
	if err := s.ensureDependencies(); err != nil {
		return nil, err
	}
	conversation, err := s.Conversations.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return conversation, nil
}

// Authorize loads a conversation and verifies the requester is one of its
// two parties.
func (s *Service) Authorize(ctx context.Context, id domainchat.ConversationID, requesterID domainuser.ID) (*domainchat.Conversation, error) {
	conversation, err := s.GetWithParticipants(ctx, id)
	if err != nil {
		return nil, err
	}
	if !conversation.HasParticipant(requesterID) {
		return nil, domainchat.ErrNotParticipant
	}
	return conversation, nil
}

// Append persists a message authored by a participant. The write is
// committed before any broadcast happens; history remains the catch-up
// path if the realtime delivery is lost.
func (s *Service) Append(ctx context.Context, id domainchat.ConversationID, authorID domainuser.ID, text string) (*domainchat.Message, error) {
	conversation, err := s.Authorize(ctx, id, authorID)
	if err != nil {
		return nil, err
	}
	message, err := domainchat.NewMessage(domainchat.CreateMessageParams{
		ID:             domainchat.MessageID(uuid.NewString()),
		ConversationID: conversation.ID,
		AuthorID:       authorID,
		Text:           text,
		Now:            time.Now(),
	})
	if err != nil {
		return nil, err
	}
	if err := s.Messages.Add(ctx, message); err != nil {
		return nil, err
	}
	return message, nil
}

// History returns the conversation's messages oldest first. Every call
// re-reads the persisted order; limit <= 0 returns everything.
func (s *Service) History(ctx context.Context, id domainchat.ConversationID, requesterID domainuser.ID, limit int) ([]*domainchat.Message, error) {
	conversation, err := s.Authorize(ctx, id, requesterID)
	if err != nil {
		return nil, err
	}
	return s.Messages.ListByConversation(ctx, conversation.ID, limit)
}

// MarkRead flips the counterpart's pending messages to read and reports how
// many changed.
func (s *Service) MarkRead(ctx context.Context, id domainchat.ConversationID, readerID domainuser.ID) (int, error) {
	conversation, err := s.Authorize(ctx, id, readerID)
	if err != nil {
		return 0, err
	}
	return s.Messages.MarkRead(ctx, conversation.ID, readerID)
}

// ListForUser returns every conversation the user participates in.
func (s *Service) ListForUser(ctx context.Context, id domainuser.ID) ([]*domainchat.Conversation, error) {
	if err := s.ensureDependencies(); err != nil {
		return nil, err
	}
	return s.Conversations.ByParticipant(ctx, id)
}

func (s *Service) ensureDependencies() error {
	switch {
	case s.Conversations == nil:
		return errors.New("chat: conversation store required")
	case s.Messages == nil:
		return errors.New("chat: message store required")
	case s.Listings == nil:
		return errors.New("chat: listing directory required")
	case s.Users == nil:
		return errors.New("chat: user directory required")
	default:
		return nil
	}
}
