package chat

import (
	"errors"
	"testing"
	"time"
)

func TestNewConversation(t *testing.T) {
	conversation, err := NewConversation(CreateConversationParams{
		ID:        "conv-1",
		ListingID: "listing-1",
		SellerID:  "agent-1",
		BuyerID:   "buyer-1",
		Now:       time.Now(),
	})
	if err != nil {
		t.Fatalf("NewConversation failed: %v", err)
	}
	if !conversation.HasParticipant("agent-1") || !conversation.HasParticipant("buyer-1") {
		t.Error("both parties must be participants")
	}
	if conversation.HasParticipant("stranger") {
		t.Error("stranger must not be a participant")
	}
	if got := conversation.Counterpart("agent-1"); got != "buyer-1" {
		t.Errorf("expected counterpart buyer-1, got %q", got)
	}
	if got := conversation.Counterpart("buyer-1"); got != "agent-1" {
		t.Errorf("expected counterpart agent-1, got %q", got)
	}
}

func TestNewConversationValidation(t *testing.T) {
	cases := []struct {
		name   string
		params CreateConversationParams
		want   error
	}{
		{
			"missing listing",
			CreateConversationParams{ID: "c", SellerID: "a", BuyerID: "b"},
			ErrListingIDRequired,
		},
		{
			"missing seller",
			CreateConversationParams{ID: "c", ListingID: "l", BuyerID: "b"},
			ErrParticipantsRequired,
		},
		{
			"missing buyer",
			CreateConversationParams{ID: "c", ListingID: "l", SellerID: "a"},
			ErrParticipantsRequired,
		},
		{
			"same party on both sides",
			CreateConversationParams{ID: "c", ListingID: "l", SellerID: "a", BuyerID: "a"},
			ErrSelfChat,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewConversation(tc.params); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestNewMessage(t *testing.T) {
	message, err := NewMessage(CreateMessageParams{
		ID:             "msg-1",
		ConversationID: "conv-1",
		AuthorID:       "buyer-1",
		Text:           "  hello there  ",
		Now:            time.Now(),
	})
	if err != nil {
		t.Fatalf("NewMessage failed: %v", err)
	}
	if message.Text != "hello there" {
		t.Errorf("expected trimmed text, got %q", message.Text)
	}
	if message.Status != StatusSent {
		t.Errorf("expected status %q, got %q", StatusSent, message.Status)
	}
}

func TestNewMessageValidation(t *testing.T) {
	if _, err := NewMessage(CreateMessageParams{
		ID:             "msg-1",
		ConversationID: "conv-1",
		AuthorID:       "buyer-1",
		Text:           "   ",
	}); !errors.Is(err, ErrMessageTextRequired) {
		t.Fatalf("expected ErrMessageTextRequired, got %v", err)
	}

	long := make([]byte, MaxMessageLength+1)
	for i := range long {
		long[i] = 'x'
	}
	if _, err := NewMessage(CreateMessageParams{
		ID:             "msg-1",
		ConversationID: "conv-1",
		AuthorID:       "buyer-1",
		Text:           string(long),
	}); !errors.Is(err, ErrMessageTooLong) {
		t.Fatalf("expected ErrMessageTooLong, got %v", err)
	}

	if _, err := NewMessage(CreateMessageParams{
		ID:             "msg-1",
		ConversationID: "conv-1",
		Text:           "hi",
	}); !errors.Is(err, ErrAuthorRequired) {
		t.Fatalf("expected ErrAuthorRequired, got %v", err)
	}
}
