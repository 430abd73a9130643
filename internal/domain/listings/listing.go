package listings

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrIDRequired    = errors.New("listings: id is required")
	ErrTitleRequired = errors.New("listings: title is required")
	ErrNotFound      = errors.New("listings: not found")
)

type ListingID string

type AgentID string

type ListingState string

const (
	ListingDraft    ListingState = "draft"
	ListingActive   ListingState = "active"
	ListingArchived ListingState = "archived"
)

// Listing carries the slice of a sales listing the chat core depends on:
// its identity and the agent assigned to it. The full CRUD surface lives in
// the back-office collaborators.
type Listing struct {
	ID         ListingID
	Agent      AgentID
	Title      string
	City       string
	PriceCents int64
	State      ListingState
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type CreateListingParams struct {
	ID         ListingID
	Agent      AgentID
	Title      string
	City       string
	PriceCents int64
	Now        time.Time
}

func NewListing(params CreateListingParams) (*Listing, error) {
	id := strings.TrimSpace(string(params.ID))
	if id == "" {
		return nil, ErrIDRequired
	}
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}
	now := params.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()
	return &Listing{
		ID:         ListingID(id),
		Agent:      AgentID(strings.TrimSpace(string(params.Agent))),
		Title:      title,
		City:       strings.TrimSpace(params.City),
		PriceCents: params.PriceCents,
		State:      ListingActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// HasAgent reports whether the listing has an assigned agent.
func (l *Listing) HasAgent() bool {
	return strings.TrimSpace(string(l.Agent)) != ""
}

// Directory is the collaborator contract the chat core consumes to resolve
// a listing together with its assigned agent. Implementations return
// ErrNotFound when the listing does not exist.
type Directory interface {
	FindWithAgent(ctx context.Context, id ListingID) (*Listing, error)
}

// Repository extends the directory with the storage operations the
// composition root needs for seeding and statistics.
type Repository interface {
	Directory
	Save(ctx context.Context, listing *Listing) error
	Count(ctx context.Context) (int64, error)
}
