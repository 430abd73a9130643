package notify

import (
	"errors"
	"strings"
	"time"

	"estately/internal/domain/user"
)

var (
	ErrTitleRequired  = errors.New("notify: title is required")
	ErrTargetRequired = errors.New("notify: delivery target is required")
)

type NotificationID string

// TargetKind distinguishes a single-user delivery from a role-wide fanout.
// An explicit tagged target replaces any "zero user id means everyone"
// convention.
type TargetKind string

const (
	KindTargeted        TargetKind = "targeted"
	KindBroadcastToRole TargetKind = "role"
)

// Target names who a notification is for.
type Target struct {
	Kind   TargetKind
	UserID user.ID
	Role   user.Role
}

// Targeted builds a single-user target.
func Targeted(id user.ID) Target {
	return Target{Kind: KindTargeted, UserID: id}
}

// BroadcastToRole builds a role-wide target.
func BroadcastToRole(role user.Role) Target {
	return Target{Kind: KindBroadcastToRole, Role: role}
}

func (t Target) Valid() bool {
	switch t.Kind {
	case KindTargeted:
		return strings.TrimSpace(string(t.UserID)) != ""
	case KindBroadcastToRole:
		return strings.TrimSpace(string(t.Role)) != ""
	default:
		return false
	}
}

// Notification is a push record delivered over the realtime channel.
type Notification struct {
	ID        NotificationID
	Kind      string
	Title     string
	Body      string
	Target    Target
	CreatedAt time.Time
}

type CreateParams struct {
	ID     NotificationID
	Kind   string
	Title  string
	Body   string
	Target Target
	Now    time.Time
}

func NewNotification(params CreateParams) (*Notification, error) {
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}
	if !params.Target.Valid() {
		return nil, ErrTargetRequired
	}
	kind := strings.TrimSpace(params.Kind)
	if kind == "" {
		kind = "generic"
	}
	now := params.Now
	if now.IsZero() {
		now = time.Now()
	}
	return &Notification{
		ID:        params.ID,
		Kind:      kind,
		Title:     title,
		Body:      strings.TrimSpace(params.Body),
		Target:    params.Target,
		CreatedAt: now.UTC(),
	}, nil
}
