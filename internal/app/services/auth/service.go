package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	domainauth "estately/internal/domain/auth"
	domainuser "estately/internal/domain/user"
)

var ErrInvalidToken = errors.New("auth: invalid or expired token")

// Identity is the verified claim bound to a connection or request.
type Identity struct {
	UserID domainuser.ID
	Roles  []domainuser.Role
}

func (i Identity) HasRole(role domainuser.Role) bool {
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Verifier validates an opaque bearer credential. Verification is stateless
// with respect to the chat stores; it consults only the session store.
type Verifier interface {
	VerifyToken(ctx context.Context, token string) (Identity, error)
}

// Service resolves bearer tokens against sessions issued by the back-office
// auth collaborator. Token issuance, registration and password handling
// live outside this module.
type Service struct {
	Sessions domainauth.SessionStore
	Logger   *slog.Logger
}

func (s *Service) VerifyToken(ctx context.Context, token string) (Identity, error) {
	if s.Sessions == nil {
		return Identity{}, errors.New("auth: session store required")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, ErrInvalidToken
	}
	session, err := s.Sessions.Get(ctx, domainauth.Token(token))
	if err != nil {
		if errors.Is(err, domainauth.ErrSessionNotFound) {
			return Identity{}, ErrInvalidToken
		}
		return Identity{}, err
	}
	if session.Expired(time.Now()) {
		_ = s.Sessions.Delete(ctx, session.Token)
		return Identity{}, ErrInvalidToken
	}
	return Identity{
		UserID: session.UserID,
		Roles:  append([]domainuser.Role(nil), session.Roles...),
	}, nil
}

var _ Verifier = (*Service)(nil)
