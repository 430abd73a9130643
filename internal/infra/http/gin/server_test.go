package ginserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"estately/internal/app/realtime"
	authservice "estately/internal/app/services/auth"
	chatservice "estately/internal/app/services/chat"
	notifyservice "estately/internal/app/services/notify"
	domainauth "estately/internal/domain/auth"
	domainlistings "estately/internal/domain/listings"
	domainuser "estately/internal/domain/user"
	"estately/internal/infra/config"
	"estately/internal/infra/obs"
	"estately/internal/infra/storage/memory"
)

const (
	restListing = "listing-1"
	restAgent   = "agent-1"
	restBuyer   = "buyer-1"
	restAdmin   = "admin-1"

	restAgentToken = "token-agent"
	restBuyerToken = "token-buyer"
	restAdminToken = "token-admin"
)

type nopDispatcher struct{}

func (nopDispatcher) Publish(room, event string, payload any)                               {}
func (nopDispatcher) PublishExcept(room, event string, payload any, except realtime.ConnID) {}
func (nopDispatcher) PublishToUser(id domainuser.ID, event string, payload any)             {}

type testEnv struct {
	server *httptest.Server
	chat   *chatservice.Service
}

func newRESTEnv(t *testing.T) testEnv {
	t.Helper()
	ctx := context.Background()

	listings := memory.NewListingRepository()
	users := memory.NewUserRepository()
	sessions := memory.NewSessionStore()

	listing, err := domainlistings.NewListing(domainlistings.CreateListingParams{
		ID:         restListing,
		Agent:      restAgent,
		Title:      "Penthouse",
		City:       "Moscow",
		PriceCents: 2000000,
	})
	if err != nil {
		t.Fatalf("NewListing failed: %v", err)
	}
	if err := listings.Save(ctx, listing); err != nil {
		t.Fatalf("Save listing failed: %v", err)
	}

	seeds := []struct {
		id    domainuser.ID
		token string
		roles []domainuser.Role
	}{
		{restAgent, restAgentToken, []domainuser.Role{domainuser.RoleAgent}},
		{restBuyer, restBuyerToken, []domainuser.Role{domainuser.RoleClient}},
		{restAdmin, restAdminToken, []domainuser.Role{domainuser.RoleAdmin}},
	}
	for _, seed := range seeds {
		account, err := domainuser.NewUser(domainuser.CreateParams{
			ID:    seed.id,
			Email: string(seed.id) + "@example.com",
			Name:  string(seed.id),
			Roles: seed.roles,
		})
		if err != nil {
			t.Fatalf("NewUser failed: %v", err)
		}
		if err := users.Save(ctx, account); err != nil {
			t.Fatalf("Save user failed: %v", err)
		}
		session, err := domainauth.NewSession(domainauth.CreateSessionParams{
			Token:  domainauth.Token(seed.token),
			UserID: seed.id,
			Roles:  seed.roles,
			TTL:    time.Hour,
		})
		if err != nil {
			t.Fatalf("NewSession failed: %v", err)
		}
		if err := sessions.Save(ctx, session); err != nil {
			t.Fatalf("Save session failed: %v", err)
		}
	}

	chatSvc := &chatservice.Service{
		Conversations: memory.NewConversationStore(),
		Messages:      memory.NewMessageStore(),
		Listings:      listings,
		Users:         users,
	}
	notifySvc := &notifyservice.Service{Users: users, Dispatcher: nopDispatcher{}}
	authSvc := &authservice.Service{Sessions: sessions}

	authMW := AuthMiddleware{Verifier: authSvc}
	server := NewServer(
		config.Config{Env: "test", HTTPAddr: ":0"},
		obs.Middleware{},
		obs.HealthHandlers{},
		Handlers{
			Chat:           ChatHandler{Chat: chatSvc},
			Notification:   NotificationHandler{Notify: notifySvc},
			AuthMiddleware: authMW.Handle,
		},
	)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)
	return testEnv{server: ts, chat: chatSvc}
}

func doRequest(t *testing.T, env testEnv, method, path, token, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, env.server.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, payload
}

func TestHealthEndpoints(t *testing.T) {
	env := newRESTEnv(t)
	resp, _ := doRequest(t, env, http.MethodGet, "/livez", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("livez returned %d", resp.StatusCode)
	}
	resp, _ = doRequest(t, env, http.MethodGet, "/readyz", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("readyz returned %d", resp.StatusCode)
	}
}

func TestConversationsRequireAuth(t *testing.T) {
	env := newRESTEnv(t)
	resp, _ := doRequest(t, env, http.MethodGet, "/api/v1/chat/conversations", "", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	resp, _ = doRequest(t, env, http.MethodGet, "/api/v1/chat/conversations", "bogus", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a bad token, got %d", resp.StatusCode)
	}
}

func TestConversationListAndHistory(t *testing.T) {
	env := newRESTEnv(t)
	ctx := context.Background()

	conversation, err := env.chat.ResolveOrCreate(ctx, restListing, "", restBuyer)
	if err != nil {
		t.Fatalf("ResolveOrCreate failed: %v", err)
	}
	if _, err := env.chat.Append(ctx, conversation.ID, restBuyer, "hello"); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	resp, body := doRequest(t, env, http.MethodGet, "/api/v1/chat/conversations", restBuyerToken, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	var list struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
	}
	if err := json.Unmarshal(body, &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Items) != 1 || list.Items[0].ID != string(conversation.ID) {
		t.Fatalf("unexpected conversation list: %s", body)
	}

	path := "/api/v1/chat/conversations/" + string(conversation.ID) + "/messages"
	resp, body = doRequest(t, env, http.MethodGet, path, restAgentToken, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for the agent, got %d", resp.StatusCode)
	}
	var messages struct {
		Items []struct {
			Text string `json:"text"`
		} `json:"items"`
	}
	if err := json.Unmarshal(body, &messages); err != nil {
		t.Fatalf("decode messages: %v", err)
	}
	if len(messages.Items) != 1 || messages.Items[0].Text != "hello" {
		t.Fatalf("unexpected history: %s", body)
	}

	// The admin is not a participant; membership is the only access rule.
	resp, _ = doRequest(t, env, http.MethodGet, path, restAdminToken, "")
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for a non-participant, got %d", resp.StatusCode)
	}

	resp, _ = doRequest(t, env, http.MethodGet, "/api/v1/chat/conversations/unknown/messages", restBuyerToken, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for an unknown conversation, got %d", resp.StatusCode)
	}
}

func TestMarkReadEndpoint(t *testing.T) {
	env := newRESTEnv(t)
	ctx := context.Background()

	conversation, err := env.chat.ResolveOrCreate(ctx, restListing, "", restBuyer)
	if err != nil {
		t.Fatalf("ResolveOrCreate failed: %v", err)
	}
	if _, err := env.chat.Append(ctx, conversation.ID, restBuyer, "ping"); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	path := "/api/v1/chat/conversations/" + string(conversation.ID) + "/read"
	resp, body := doRequest(t, env, http.MethodPost, path, restAgentToken, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	var result struct {
		Updated int `json:"updated"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Updated != 1 {
		t.Errorf("expected 1 updated, got %d", result.Updated)
	}
}

func TestNotificationEndpointRequiresAdmin(t *testing.T) {
	env := newRESTEnv(t)

	payload := `{"title":"Hello","target":{"kind":"targeted","userId":"buyer-1"}}`
	resp, _ := doRequest(t, env, http.MethodPost, "/api/v1/notifications", restBuyerToken, payload)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for a non-admin, got %d", resp.StatusCode)
	}

	resp, _ = doRequest(t, env, http.MethodPost, "/api/v1/notifications", restAdminToken, payload)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202 for the admin, got %d", resp.StatusCode)
	}

	bad := `{"title":"Hello","target":{"kind":"everyone"}}`
	resp, _ = doRequest(t, env, http.MethodPost, "/api/v1/notifications", restAdminToken, bad)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for an unknown target kind, got %d", resp.StatusCode)
	}
}
