package memory

import (
	"context"
	"sort"
	"sync"

	domainchat "estately/internal/domain/chat"
	domainuser "estately/internal/domain/user"
)

// ConversationStore keeps conversations in memory, keyed by the unique
// (listing, seller, buyer) triple the same way the mongo index is.
type ConversationStore struct {
	mu       sync.RWMutex
	byID     map[domainchat.ConversationID]*domainchat.Conversation
	byTriple map[tripleKey]domainchat.ConversationID
}

type tripleKey struct {
	listing string
	seller  string
	buyer   string
}

func NewConversationStore() *ConversationStore {
	return &ConversationStore{
		byID:     make(map[domainchat.ConversationID]*domainchat.Conversation),
		byTriple: make(map[tripleKey]domainchat.ConversationID),
	}
}

// GetOrCreate stores the conversation unless one already exists for the
// triple, in which case the stored row wins and is returned unchanged.
func (s *ConversationStore) GetOrCreate(ctx context.Context, conversation *domainchat.Conversation) (*domainchat.Conversation, error) {
	key := tripleKey{
		listing: string(conversation.ListingID),
		seller:  string(conversation.SellerID),
		buyer:   string(conversation.BuyerID),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byTriple[key]; ok {
		return cloneConversation(s.byID[id]), nil
	}
	s.byTriple[key] = conversation.ID
	s.byID[conversation.ID] = cloneConversation(conversation)
	return cloneConversation(conversation), nil
}

func (s *ConversationStore) ByID(ctx context.Context, id domainchat.ConversationID) (*domainchat.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conversation, ok := s.byID[id]
	if !ok {
		return nil, domainchat.ErrConversationNotFound
	}
	return cloneConversation(conversation), nil
}

func (s *ConversationStore) ByParticipant(ctx context.Context, id domainuser.ID) ([]*domainchat.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*domainchat.Conversation, 0)
	for _, conversation := range s.byID {
		if conversation.HasParticipant(id) {
			result = append(result, cloneConversation(conversation))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (s *ConversationStore) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.byID)), nil
}

func cloneConversation(c *domainchat.Conversation) *domainchat.Conversation {
	if c == nil {
		return nil
	}
	copyConversation := *c
	return &copyConversation
}

// MessageStore keeps ordered messages per conversation.
type MessageStore struct {
	mu             sync.RWMutex
	byConversation map[domainchat.ConversationID][]*domainchat.Message
	total          int64
}

func NewMessageStore() *MessageStore {
	return &MessageStore{
		byConversation: make(map[domainchat.ConversationID][]*domainchat.Message),
	}
}

func (s *MessageStore) Add(ctx context.Context, message *domainchat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byConversation[message.ConversationID] = append(s.byConversation[message.ConversationID], cloneMessage(message))
	s.total++
	return nil
}

func (s *MessageStore) ListByConversation(ctx context.Context, id domainchat.ConversationID, limit int) ([]*domainchat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.byConversation[id]
	start := 0
	if limit > 0 && len(stored) > limit {
		start = len(stored) - limit
	}
	result := make([]*domainchat.Message, 0, len(stored)-start)
	for _, message := range stored[start:] {
		result = append(result, cloneMessage(message))
	}
	return result, nil
}

func (s *MessageStore) MarkRead(ctx context.Context, id domainchat.ConversationID, reader domainuser.ID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := 0
	for _, message := range s.byConversation[id] {
		if message.AuthorID != reader && message.Status == domainchat.StatusSent {
			message.Status = domainchat.StatusRead
			changed++
		}
	}
	return changed, nil
}

func (s *MessageStore) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total, nil
}

func cloneMessage(m *domainchat.Message) *domainchat.Message {
	if m == nil {
		return nil
	}
	copyMessage := *m
	return &copyMessage
}

var _ domainchat.ConversationStore = (*ConversationStore)(nil)
var _ domainchat.MessageStore = (*MessageStore)(nil)
