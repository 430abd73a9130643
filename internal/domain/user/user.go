package user

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrIDRequired       = errors.New("user: id is required")
	ErrEmailRequired    = errors.New("user: email is required")
	ErrNameRequired     = errors.New("user: name is required")
	ErrInvalidRole      = errors.New("user: invalid role")
	ErrEmailAlreadyUsed = errors.New("user: email already used")
	ErrNotFound         = errors.New("user: not found")
)

type ID string

type Role string

const (
	RoleClient Role = "client"
	RoleAgent  Role = "agent"
	RoleAdmin  Role = "admin"
)

// KnownRoles lists roles the back office recognizes.
var KnownRoles = []Role{RoleClient, RoleAgent, RoleAdmin}

type User struct {
	ID        ID
	Email     string
	Name      string
	Roles     []Role
	Blocked   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasRole reports whether the user carries the given role.
func (u *User) HasRole(role Role) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Directory is the collaborator contract the chat core consumes: an
// existence check for a user id.
type Directory interface {
	Exists(ctx context.Context, id ID) (bool, error)
}

type Repository interface {
	Directory
	ByID(ctx context.Context, id ID) (*User, error)
	ByRole(ctx context.Context, role Role) ([]*User, error)
	Save(ctx context.Context, user *User) error
	Count(ctx context.Context) (int64, error)
}

type CreateParams struct {
	ID        ID
	Email     string
	Name      string
	Roles     []Role
	CreatedAt time.Time
}

func NewUser(params CreateParams) (*User, error) {
	id := strings.TrimSpace(string(params.ID))
	if id == "" {
		return nil, ErrIDRequired
	}
	email := strings.ToLower(strings.TrimSpace(params.Email))
	if email == "" {
		return nil, ErrEmailRequired
	}
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	roles, err := normalizeRoles(params.Roles)
	if err != nil {
		return nil, err
	}
	if len(roles) == 0 {
		roles = []Role{RoleClient}
	}
	now := params.CreatedAt
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()
	return &User{
		ID:        ID(id),
		Email:     email,
		Name:      name,
		Roles:     roles,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func normalizeRoles(roles []Role) ([]Role, error) {
	seen := make(map[Role]struct{}, len(roles))
	result := make([]Role, 0, len(roles))
	for _, role := range roles {
		normalized := Role(strings.ToLower(strings.TrimSpace(string(role))))
		if normalized == "" {
			continue
		}
		if !roleKnown(normalized) {
			return nil, ErrInvalidRole
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		result = append(result, normalized)
	}
	return result, nil
}

func roleKnown(role Role) bool {
	for _, known := range KnownRoles {
		if known == role {
			return true
		}
	}
	return false
}
