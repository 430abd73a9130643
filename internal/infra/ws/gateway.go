package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"estately/internal/app/dto"
	"estately/internal/app/realtime"
	authservice "estately/internal/app/services/auth"
	chatservice "estately/internal/app/services/chat"
	notifyservice "estately/internal/app/services/notify"
	domainchat "estately/internal/domain/chat"
	domainlistings "estately/internal/domain/listings"
	domainuser "estately/internal/domain/user"
)

// Gateway authenticates websocket connections and drives the per-connection
// protocol. A connection is either torn down at the door (missing/invalid
// credential) or fully authenticated; there is no anonymous-but-active
// state. Domain errors inside an action go back to the offending caller as
// an error event and never terminate the connection.
type Gateway struct {
	Hub      *Hub
	Verifier authservice.Verifier
	Chat     *chatservice.Service
	Stats    *notifyservice.StatsService
	Logger   *slog.Logger

	WriteTimeout   time.Duration
	PongTimeout    time.Duration
	MaxMessageSize int64
	SendBuffer     int

	upgrader websocket.Upgrader
}

func NewGateway(hub *Hub, verifier authservice.Verifier, chat *chatservice.Service, stats *notifyservice.StatsService, logger *slog.Logger) *Gateway {
	return &Gateway{
		Hub:      hub,
		Verifier: verifier,
		Chat:     chat,
		Stats:    stats,
		Logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Handle upgrades an HTTP request into a realtime session. The credential
// is verified before the upgrade: unauthenticated requests never reach the
// protocol loop.
func (g *Gateway) Handle(c *gin.Context) {
	token := extractCredential(c.Request)
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "credential required"})
		return
	}
	identity, err := g.Verifier.VerifyToken(c.Request.Context(), token)
	if err != nil {
		if !errors.Is(err, authservice.ErrInvalidToken) && g.Logger != nil {
			g.Logger.Error("token verification failed", "error", err)
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credential"})
		return
	}

	socket, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		if g.Logger != nil {
			g.Logger.Debug("websocket upgrade failed", "error", err)
		}
		return
	}

	client := newClient(realtime.ConnID(uuid.NewString()), identity.UserID, socket, g)
	g.Hub.Bind(client)
	if g.Logger != nil {
		g.Logger.Info("connection established", "conn_id", client.ConnID(), "user_id", client.UserID())
	}

	go client.writePump()
	client.readPump(g)
}

func (g *Gateway) disconnect(c *Client) {
	g.Hub.Forget(c.ConnID())
	c.close()
	if g.Logger != nil {
		g.Logger.Info("connection closed", "conn_id", c.ConnID(), "user_id", c.UserID())
	}
}

// handleFrame processes one inbound client frame. Invocations for a single
// connection are sequential by construction: the read pump calls here.
func (g *Gateway) handleFrame(c *Client, raw []byte) {
	var envelope ClientEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		g.sendError(c, "", "malformed frame")
		return
	}
	ctx := context.Background()
	switch envelope.Action {
	case ActionGetOrCreateChat:
		g.handleGetOrCreateChat(ctx, c, envelope.Payload)
	case ActionJoinChat:
		g.handleJoinChat(ctx, c, envelope.Payload)
	case ActionSendMessage:
		g.handleSendMessage(ctx, c, envelope.Payload)
	case ActionTyping:
		g.handleTyping(ctx, c, envelope.Payload)
	case ActionJoinStats:
		g.handleJoinStats(ctx, c)
	default:
		g.sendError(c, envelope.Action, "unknown action")
	}
}

func (g *Gateway) handleGetOrCreateChat(ctx context.Context, c *Client, payload json.RawMessage) {
	var req getOrCreateChatRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		g.sendError(c, ActionGetOrCreateChat, "malformed payload")
		return
	}
	conversation, err := g.Chat.ResolveOrCreate(ctx, domainlistings.ListingID(req.ListingID), "", c.UserID())
	if err != nil {
		g.reportActionError(c, ActionGetOrCreateChat, err)
		return
	}
	c.Send(ServerEnvelope{
		Event:   realtime.EventChatCreated,
		Payload: chatRefPayload{ConversationID: string(conversation.ID)},
	})
}

func (g *Gateway) handleJoinChat(ctx context.Context, c *Client, payload json.RawMessage) {
	var req joinChatRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		g.sendError(c, ActionJoinChat, "malformed payload")
		return
	}
	conversation, err := g.Chat.Authorize(ctx, domainchat.ConversationID(req.ConversationID), c.UserID())
	if err != nil {
		g.reportActionError(c, ActionJoinChat, err)
		return
	}
	g.Hub.Join(c.ConnID(), realtime.ConversationRoom(conversation.ID))
	c.Send(ServerEnvelope{
		Event:   realtime.EventChatJoined,
		Payload: chatRefPayload{ConversationID: string(conversation.ID)},
	})
}

func (g *Gateway) handleSendMessage(ctx context.Context, c *Client, payload json.RawMessage) {
	var req sendMessageRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		g.sendError(c, ActionSendMessage, "malformed payload")
		return
	}
	conversation, err := g.Chat.ResolveOrCreate(ctx, domainlistings.ListingID(req.ListingID), domainuser.ID(req.CounterpartID), c.UserID())
	if err != nil {
		g.reportActionError(c, ActionSendMessage, err)
		return
	}
	message, err := g.Chat.Append(ctx, conversation.ID, c.UserID(), req.Text)
	if err != nil {
		g.reportActionError(c, ActionSendMessage, err)
		return
	}
	view := dto.NewChatMessage(message)
	c.Send(ServerEnvelope{
		Event: realtime.EventMessageSent,
		Payload: messageAckPayload{
			ConversationID: string(conversation.ID),
			Message:        view,
		},
	})
	// The author's own connection receives this broadcast too when it has
	// joined the room: one event path drives both sides' UI state.
	g.Hub.Publish(realtime.ConversationRoom(conversation.ID), realtime.EventMessageReceived, view)
}

func (g *Gateway) handleTyping(ctx context.Context, c *Client, payload json.RawMessage) {
	var req typingRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		g.sendError(c, ActionTyping, "malformed payload")
		return
	}
	conversation, err := g.Chat.Authorize(ctx, domainchat.ConversationID(req.ConversationID), c.UserID())
	if err != nil {
		g.reportActionError(c, ActionTyping, err)
		return
	}
	g.Hub.PublishExcept(
		realtime.ConversationRoom(conversation.ID),
		realtime.EventTyping,
		typingPayload{ConversationID: string(conversation.ID), UserID: string(c.UserID())},
		c.ConnID(),
	)
}

func (g *Gateway) handleJoinStats(ctx context.Context, c *Client) {
	g.Hub.Join(c.ConnID(), realtime.StatsRoom)
	if g.Stats == nil {
		return
	}
	// A freshly joined client gets current state without polling.
	if err := g.Stats.PushTo(ctx, c.UserID()); err != nil && g.Logger != nil {
		g.Logger.Error("stats push failed", "user_id", c.UserID(), "error", err)
	}
}

// reportActionError maps a failure to the structured error event. Domain
// errors carry their message to the caller; anything else is a persistence
// fault, logged and reported generically with the connection preserved.
func (g *Gateway) reportActionError(c *Client, action string, err error) {
	if message, ok := domainErrorMessage(err); ok {
		g.sendError(c, action, message)
		return
	}
	if g.Logger != nil {
		g.Logger.Error("chat action failed", "action", action, "user_id", c.UserID(), "error", err)
	}
	g.sendError(c, action, "internal error, try again")
}

func (g *Gateway) sendError(c *Client, action, message string) {
	c.Send(ServerEnvelope{
		Event:   realtime.EventError,
		Payload: errorPayload{Action: action, Message: message},
	})
}

func domainErrorMessage(err error) (string, bool) {
	for _, domainErr := range []error{
		domainchat.ErrListingNotFound,
		domainchat.ErrNoAssignedAgent,
		domainchat.ErrSelfChat,
		domainchat.ErrNotParticipant,
		domainchat.ErrConversationNotFound,
		domainchat.ErrCounterpartRequired,
		domainchat.ErrUserNotFound,
		domainchat.ErrListingIDRequired,
		domainchat.ErrMessageTextRequired,
		domainchat.ErrMessageTooLong,
	} {
		if errors.Is(err, domainErr) {
			return domainErr.Error(), true
		}
	}
	return "", false
}

// extractCredential pulls the bearer credential from the request, trying
// the token query parameter first, then the Authorization header, then the
// auxiliary access-token header.
func extractCredential(r *http.Request) string {
	if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
		return token
	}
	if header := r.Header.Get("Authorization"); header != "" {
		if strings.HasPrefix(strings.ToLower(header), "bearer ") {
			return strings.TrimSpace(header[7:])
		}
	}
	return strings.TrimSpace(r.Header.Get("X-Access-Token"))
}

func (g *Gateway) writeTimeout() time.Duration {
	if g.WriteTimeout > 0 {
		return g.WriteTimeout
	}
	return 10 * time.Second
}

func (g *Gateway) pongTimeout() time.Duration {
	if g.PongTimeout > 0 {
		return g.PongTimeout
	}
	return 60 * time.Second
}

func (g *Gateway) maxMessageSize() int64 {
	if g.MaxMessageSize > 0 {
		return g.MaxMessageSize
	}
	return 16384
}

func (g *Gateway) sendBuffer() int {
	if g.SendBuffer > 0 {
		return g.SendBuffer
	}
	return 64
}
