package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	domainchat "estately/internal/domain/chat"
	domainlistings "estately/internal/domain/listings"
	domainuser "estately/internal/domain/user"
	"estately/internal/infra/storage/memory"
)

const (
	testListing    = "listing-1"
	testAgent      = "agent-1"
	testBuyer      = "buyer-1"
	testOtherBuyer = "buyer-2"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	ctx := context.Background()

	listings := memory.NewListingRepository()
	users := memory.NewUserRepository()

	listing, err := domainlistings.NewListing(domainlistings.CreateListingParams{
		ID:         testListing,
		Agent:      testAgent,
		Title:      "Two-room flat",
		City:       "Moscow",
		PriceCents: 1000000,
	})
	if err != nil {
		t.Fatalf("NewListing failed: %v", err)
	}
	if err := listings.Save(ctx, listing); err != nil {
		t.Fatalf("Save listing failed: %v", err)
	}

	orphan, err := domainlistings.NewListing(domainlistings.CreateListingParams{
		ID:         "listing-orphan",
		Title:      "Unassigned warehouse",
		City:       "Kazan",
		PriceCents: 500000,
	})
	if err != nil {
		t.Fatalf("NewListing failed: %v", err)
	}
	if err := listings.Save(ctx, orphan); err != nil {
		t.Fatalf("Save listing failed: %v", err)
	}

	for _, seed := range []struct {
		id    domainuser.ID
		email string
		roles []domainuser.Role
	}{
		{testAgent, "agent@example.com", []domainuser.Role{domainuser.RoleAgent}},
		{testBuyer, "buyer1@example.com", []domainuser.Role{domainuser.RoleClient}},
		{testOtherBuyer, "buyer2@example.com", []domainuser.Role{domainuser.RoleClient}},
	} {
		account, err := domainuser.NewUser(domainuser.CreateParams{
			ID:    seed.id,
			Email: seed.email,
			Name:  string(seed.id),
			Roles: seed.roles,
		})
		if err != nil {
			t.Fatalf("NewUser failed: %v", err)
		}
		if err := users.Save(ctx, account); err != nil {
			t.Fatalf("Save user failed: %v", err)
		}
	}

	return &Service{
		Conversations: memory.NewConversationStore(),
		Messages:      memory.NewMessageStore(),
		Listings:      listings,
		Users:         users,
	}
}

func TestResolveOrCreateBuyerInitiates(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	conversation, err := svc.ResolveOrCreate(ctx, testListing, "", testBuyer)
	if err != nil {
		t.Fatalf("ResolveOrCreate failed: %v", err)
	}
	if conversation.SellerID != testAgent {
		t.Errorf("expected seller %q, got %q", testAgent, conversation.SellerID)
	}
	if conversation.BuyerID != testBuyer {
		t.Errorf("expected buyer %q, got %q", testBuyer, conversation.BuyerID)
	}

	again, err := svc.ResolveOrCreate(ctx, testListing, "", testBuyer)
	if err != nil {
		t.Fatalf("second ResolveOrCreate failed: %v", err)
	}
	if again.ID != conversation.ID {
		t.Errorf("expected the same conversation, got %q and %q", conversation.ID, again.ID)
	}
}

func TestResolveOrCreateAgentInitiates(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	conversation, err := svc.ResolveOrCreate(ctx, testListing, testBuyer, testAgent)
	if err != nil {
		t.Fatalf("ResolveOrCreate failed: %v", err)
	}
	if conversation.SellerID != testAgent || conversation.BuyerID != testBuyer {
		t.Errorf("unexpected parties: seller=%q buyer=%q", conversation.SellerID, conversation.BuyerID)
	}

	// The buyer reaching out over the same listing lands in the same room.
	same, err := svc.ResolveOrCreate(ctx, testListing, "", testBuyer)
	if err != nil {
		t.Fatalf("buyer ResolveOrCreate failed: %v", err)
	}
	if same.ID != conversation.ID {
		t.Errorf("expected shared conversation, got %q and %q", conversation.ID, same.ID)
	}
}

func TestResolveOrCreateValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name        string
		listing     domainlistings.ListingID
		counterpart domainuser.ID
		requester   domainuser.ID
		want        error
	}{
		{"missing listing id", "", "", testBuyer, domainchat.ErrListingIDRequired},
		{"unknown listing", "listing-404", "", testBuyer, domainchat.ErrListingNotFound},
		{"listing without agent", "listing-orphan", "", testBuyer, domainchat.ErrNoAssignedAgent},
		{"agent without counterpart", testListing, "", testAgent, domainchat.ErrCounterpartRequired},
		{"agent with unknown counterpart", testListing, "ghost", testAgent, domainchat.ErrUserNotFound},
		{"agent talking to itself", testListing, testAgent, testAgent, domainchat.ErrSelfChat},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.ResolveOrCreate(ctx, tc.listing, tc.counterpart, tc.requester)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestResolveOrCreateConcurrentFirstContact(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	const attempts = 16
	results := make([]*domainchat.Conversation, attempts)
	var wg sync.WaitGroup
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func(slot int) {
			defer wg.Done()
			conversation, err := svc.ResolveOrCreate(ctx, testListing, "", testBuyer)
			if err != nil {
				t.Errorf("concurrent ResolveOrCreate failed: %v", err)
				return
			}
			results[slot] = conversation
		}(i)
	}
	wg.Wait()

	first := results[0]
	if first == nil {
		t.Fatal("no conversation resolved")
	}
	for _, conversation := range results[1:] {
		if conversation == nil || conversation.ID != first.ID {
			t.Fatalf("race produced divergent conversations: %v vs %v", first, conversation)
		}
	}

	count, err := svc.Conversations.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected a single stored conversation, got %d", count)
	}
}

func TestAuthorizeRejectsOutsider(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	conversation, err := svc.ResolveOrCreate(ctx, testListing, "", testBuyer)
	if err != nil {
		t.Fatalf("ResolveOrCreate failed: %v", err)
	}

	if _, err := svc.Authorize(ctx, conversation.ID, testOtherBuyer); !errors.Is(err, domainchat.ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}
	if _, err := svc.Authorize(ctx, "conversation-404", testBuyer); !errors.Is(err, domainchat.ErrConversationNotFound) {
		t.Fatalf("expected ErrConversationNotFound, got %v", err)
	}
}

func TestHistoryIsScopedPerConversation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first, err := svc.ResolveOrCreate(ctx, testListing, "", testBuyer)
	if err != nil {
		t.Fatalf("ResolveOrCreate failed: %v", err)
	}
	second, err := svc.ResolveOrCreate(ctx, testListing, "", testOtherBuyer)
	if err != nil {
		t.Fatalf("ResolveOrCreate failed: %v", err)
	}
	if first.ID == second.ID {
		t.Fatal("distinct buyers must get distinct conversations")
	}

	if _, err := svc.Append(ctx, first.ID, testBuyer, "hello"); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	// The other buyer shares the listing and the agent, but not the room.
	if _, err := svc.History(ctx, first.ID, testOtherBuyer, 0); !errors.Is(err, domainchat.ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}

	messages, err := svc.History(ctx, second.ID, testOtherBuyer, 0)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(messages) != 0 {
		t.Errorf("expected empty history, got %d messages", len(messages))
	}
}

func TestAppendAndHistoryOrdering(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	conversation, err := svc.ResolveOrCreate(ctx, testListing, "", testBuyer)
	if err != nil {
		t.Fatalf("ResolveOrCreate failed: %v", err)
	}

	texts := []string{"first", "second", "third"}
	for _, text := range texts {
		if _, err := svc.Append(ctx, conversation.ID, testBuyer, text); err != nil {
			t.Fatalf("Append(%q) failed: %v", text, err)
		}
		time.Sleep(time.Millisecond)
	}

	messages, err := svc.History(ctx, conversation.ID, testAgent, 0)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(messages) != len(texts) {
		t.Fatalf("expected %d messages, got %d", len(texts), len(messages))
	}
	for i, text := range texts {
		if messages[i].Text != text {
			t.Errorf("position %d: expected %q, got %q", i, text, messages[i].Text)
		}
	}

	tail, err := svc.History(ctx, conversation.ID, testAgent, 2)
	if err != nil {
		t.Fatalf("limited History failed: %v", err)
	}
	if len(tail) != 2 || tail[0].Text != "second" || tail[1].Text != "third" {
		t.Errorf("expected the two newest messages oldest first, got %+v", tail)
	}
}

func TestAppendValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	conversation, err := svc.ResolveOrCreate(ctx, testListing, "", testBuyer)
	if err != nil {
		t.Fatalf("ResolveOrCreate failed: %v", err)
	}

	if _, err := svc.Append(ctx, conversation.ID, testBuyer, "   "); !errors.Is(err, domainchat.ErrMessageTextRequired) {
		t.Fatalf("expected ErrMessageTextRequired, got %v", err)
	}
	long := make([]byte, domainchat.MaxMessageLength+1)
	for i := range long {
		long[i] = 'a'
	}
	if _, err := svc.Append(ctx, conversation.ID, testBuyer, string(long)); !errors.Is(err, domainchat.ErrMessageTooLong) {
		t.Fatalf("expected ErrMessageTooLong, got %v", err)
	}
	if _, err := svc.Append(ctx, conversation.ID, testOtherBuyer, "hi"); !errors.Is(err, domainchat.ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}
}

func TestMarkRead(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	conversation, err := svc.ResolveOrCreate(ctx, testListing, "", testBuyer)
	if err != nil {
		t.Fatalf("ResolveOrCreate failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := svc.Append(ctx, conversation.ID, testBuyer, "ping"); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	if _, err := svc.Append(ctx, conversation.ID, testAgent, "pong"); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	// The agent reads the buyer's three messages; its own stays untouched.
	changed, err := svc.MarkRead(ctx, conversation.ID, testAgent)
	if err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}
	if changed != 3 {
		t.Errorf("expected 3 messages marked, got %d", changed)
	}

	changed, err = svc.MarkRead(ctx, conversation.ID, testAgent)
	if err != nil {
		t.Fatalf("repeat MarkRead failed: %v", err)
	}
	if changed != 0 {
		t.Errorf("expected idempotent MarkRead, got %d", changed)
	}
}

func TestListForUser(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.ResolveOrCreate(ctx, testListing, "", testBuyer); err != nil {
		t.Fatalf("ResolveOrCreate failed: %v", err)
	}
	if _, err := svc.ResolveOrCreate(ctx, testListing, "", testOtherBuyer); err != nil {
		t.Fatalf("ResolveOrCreate failed: %v", err)
	}

	mine, err := svc.ListForUser(ctx, testBuyer)
	if err != nil {
		t.Fatalf("ListForUser failed: %v", err)
	}
	if len(mine) != 1 {
		t.Errorf("expected 1 conversation for buyer, got %d", len(mine))
	}

	agents, err := svc.ListForUser(ctx, testAgent)
	if err != nil {
		t.Fatalf("ListForUser failed: %v", err)
	}
	if len(agents) != 2 {
		t.Errorf("expected 2 conversations for agent, got %d", len(agents))
	}
}
