package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"estately/internal/app/realtime"
	domainnotify "estately/internal/domain/notify"
	domainuser "estately/internal/domain/user"
)

// Service pushes notification records over the realtime channel. Delivery
// is best-effort: offline users simply miss the push, there is no queueing
// or mobile/web push fallback.
type Service struct {
	Users      domainuser.Repository
	Dispatcher realtime.Dispatcher
	Logger     *slog.Logger
}

// NotificationView is the wire shape of a pushed notification.
type NotificationView struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	Body      string    `json:"body,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type DispatchParams struct {
	Kind   string
	Title  string
	Body   string
	Target domainnotify.Target
}

// Dispatch builds the notification and fans it out according to its tagged
// target: a single user room for Targeted, one room per matching user for
// BroadcastToRole.
func (s *Service) Dispatch(ctx context.Context, params DispatchParams) (*domainnotify.Notification, error) {
	if err := s.ensureDependencies(); err != nil {
		return nil, err
	}
	notification, err := domainnotify.NewNotification(domainnotify.CreateParams{
		ID:     domainnotify.NotificationID(uuid.NewString()),
		Kind:   params.Kind,
		Title:  params.Title,
		Body:   params.Body,
		Target: params.Target,
		Now:    time.Now(),
	})
	if err != nil {
		return nil, err
	}
	view := NotificationView{
		ID:        string(notification.ID),
		Kind:      notification.Kind,
		Title:     notification.Title,
		Body:      notification.Body,
		CreatedAt: notification.CreatedAt,
	}

	switch notification.Target.Kind {
	case domainnotify.KindTargeted:
		s.Dispatcher.PublishToUser(notification.Target.UserID, realtime.EventNotification, view)
	case domainnotify.KindBroadcastToRole:
		users, err := s.Users.ByRole(ctx, notification.Target.Role)
		if err != nil {
			return nil, err
		}
		for _, u := range users {
			s.Dispatcher.PublishToUser(u.ID, realtime.EventNotification, view)
		}
	}
	if s.Logger != nil {
		s.Logger.Info("notification dispatched",
			"notification_id", notification.ID,
			"kind", notification.Kind,
			"target_kind", notification.Target.Kind,
		)
	}
	return notification, nil
}

func (s *Service) ensureDependencies() error {
	switch {
	case s.Users == nil:
		return errors.New("notify: user repository required")
	case s.Dispatcher == nil:
		return errors.New("notify: dispatcher required")
	default:
		return nil
	}
}
