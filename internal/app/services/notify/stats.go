package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"estately/internal/app/realtime"
	domainchat "estately/internal/domain/chat"
	domainlistings "estately/internal/domain/listings"
	domainuser "estately/internal/domain/user"
)

// Stats is the aggregate snapshot pushed to the global stats room.
type Stats struct {
	Users         int64     `json:"users"`
	Listings      int64     `json:"listings"`
	Conversations int64     `json:"conversations"`
	Messages      int64     `json:"messages"`
	Online        int       `json:"online"`
	GeneratedAt   time.Time `json:"generated_at"`
}

// StatsService assembles and broadcasts snapshots. Three triggers feed it:
// a connection joining the stats room, a collaborator signalling that
// underlying counts changed, and a periodic schedule as a safety net.
type StatsService struct {
	Users         domainuser.Repository
	Listings      domainlistings.Repository
	Conversations domainchat.ConversationStore
	Messages      domainchat.MessageStore
	Online        func() int
	Dispatcher    realtime.Dispatcher
	Logger        *slog.Logger
}

// Snapshot reads current counts from the stores.
func (s *StatsService) Snapshot(ctx context.Context) (Stats, error) {
	if err := s.ensureDependencies(); err != nil {
		return Stats{}, err
	}
	users, err := s.Users.Count(ctx)
	if err != nil {
		return Stats{}, err
	}
	listings, err := s.Listings.Count(ctx)
	if err != nil {
		return Stats{}, err
	}
	conversations, err := s.Conversations.Count(ctx)
	if err != nil {
		return Stats{}, err
	}
	messages, err := s.Messages.Count(ctx)
	if err != nil {
		return Stats{}, err
	}
	online := 0
	if s.Online != nil {
		online = s.Online()
	}
	return Stats{
		Users:         users,
		Listings:      listings,
		Conversations: conversations,
		Messages:      messages,
		Online:        online,
		GeneratedAt:   time.Now().UTC(),
	}, nil
}

// Broadcast pushes a fresh snapshot to the global stats room.
func (s *StatsService) Broadcast(ctx context.Context) error {
	snapshot, err := s.Snapshot(ctx)
	if err != nil {
		if s.Logger != nil {
			s.Logger.Error("stats snapshot failed", "error", err)
		}
		return err
	}
	s.Dispatcher.Publish(realtime.StatsRoom, realtime.EventStatsUpdate, snapshot)
	return nil
}

// PushTo delivers a snapshot to one user's room, used when a freshly
// connected client joins the stats channel and needs current state without
// polling.
func (s *StatsService) PushTo(ctx context.Context, id domainuser.ID) error {
	snapshot, err := s.Snapshot(ctx)
	if err != nil {
		return err
	}
	s.Dispatcher.PublishToUser(id, realtime.EventStatsUpdate, snapshot)
	return nil
}

func (s *StatsService) ensureDependencies() error {
	switch {
	case s.Users == nil:
		return errors.New("notify: user repository required")
	case s.Listings == nil:
		return errors.New("notify: listing repository required")
	case s.Conversations == nil:
		return errors.New("notify: conversation store required")
	case s.Messages == nil:
		return errors.New("notify: message store required")
	case s.Dispatcher == nil:
		return errors.New("notify: dispatcher required")
	default:
		return nil
	}
}
