package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	domainauth "estately/internal/domain/auth"
	domainuser "estately/internal/domain/user"
	"estately/internal/infra/storage/memory"
)

func TestVerifyToken(t *testing.T) {
	ctx := context.Background()
	sessions := memory.NewSessionStore()
	session, err := domainauth.NewSession(domainauth.CreateSessionParams{
		Token:  "valid-token",
		UserID: "user-1",
		Roles:  []domainuser.Role{domainuser.RoleClient},
		TTL:    time.Hour,
	})
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	if err := sessions.Save(ctx, session); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	svc := &Service{Sessions: sessions}

	identity, err := svc.VerifyToken(ctx, "valid-token")
	if err != nil {
		t.Fatalf("VerifyToken failed: %v", err)
	}
	if identity.UserID != "user-1" {
		t.Errorf("expected user-1, got %q", identity.UserID)
	}
	if !identity.HasRole(domainuser.RoleClient) {
		t.Error("expected the client role")
	}

	// Surrounding whitespace is tolerated.
	if _, err := svc.VerifyToken(ctx, "  valid-token  "); err != nil {
		t.Errorf("whitespace-wrapped token rejected: %v", err)
	}
}

func TestVerifyTokenRejections(t *testing.T) {
	ctx := context.Background()
	svc := &Service{Sessions: memory.NewSessionStore()}

	if _, err := svc.VerifyToken(ctx, ""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for empty token, got %v", err)
	}
	if _, err := svc.VerifyToken(ctx, "unknown"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for unknown token, got %v", err)
	}
}

func TestVerifyTokenExpired(t *testing.T) {
	ctx := context.Background()
	sessions := memory.NewSessionStore()
	session, err := domainauth.NewSession(domainauth.CreateSessionParams{
		Token:  "stale-token",
		UserID: "user-1",
		TTL:    time.Millisecond,
		Now:    time.Now().Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	if err := sessions.Save(ctx, session); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	svc := &Service{Sessions: sessions}
	if _, err := svc.VerifyToken(ctx, "stale-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired session, got %v", err)
	}
}
