package ws

import (
	"log/slog"
	"sync"

	"estately/internal/app/realtime"
	domainuser "estately/internal/domain/user"
)

// Session is one live authenticated connection as the hub sees it. Send
// must never block: implementations drop the frame and return false when
// the peer cannot keep up.
type Session interface {
	ConnID() realtime.ConnID
	UserID() domainuser.ID
	Send(envelope ServerEnvelope) bool
}

// Relay mirrors published events to the other instances behind a load
// balancer. Room membership is process-local, so without a relay a publish
// only reaches connections held by this process.
type Relay interface {
	Forward(room, event string, payload any, except realtime.ConnID)
}

// Hub is the connection registry and broadcast dispatcher: it tracks which
// identity each connection is bound to and which rooms it has joined, and
// fans payloads out to room members. Purely in-memory and ephemeral;
// nothing here survives a restart and clients rejoin rooms on reconnect.
type Hub struct {
	mu       sync.RWMutex
	sessions map[realtime.ConnID]Session
	rooms    map[string]map[realtime.ConnID]struct{}
	joined   map[realtime.ConnID]map[string]struct{}
	byUser   map[domainuser.ID]map[realtime.ConnID]struct{}

	relay  Relay
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		sessions: make(map[realtime.ConnID]Session),
		rooms:    make(map[string]map[realtime.ConnID]struct{}),
		joined:   make(map[realtime.ConnID]map[string]struct{}),
		byUser:   make(map[domainuser.ID]map[realtime.ConnID]struct{}),
		logger:   logger,
	}
}

// SetRelay attaches the cross-instance relay. Call before serving traffic.
func (h *Hub) SetRelay(relay Relay) {
	h.relay = relay
}

// Bind registers an authenticated session. The session automatically joins
// its personal user room so notifications reach it without an explicit join.
func (h *Hub) Bind(session Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := session.ConnID()
	h.sessions[id] = session
	if _, ok := h.byUser[session.UserID()]; !ok {
		h.byUser[session.UserID()] = make(map[realtime.ConnID]struct{})
	}
	h.byUser[session.UserID()][id] = struct{}{}
	h.joinLocked(id, realtime.UserRoom(session.UserID()))
}

// Join adds the connection to a room. Idempotent; unknown (never bound or
// already forgotten) connections are ignored so an unauthenticated
// connection can never enter a room.
func (h *Hub) Join(id realtime.ConnID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[id]; !ok {
		return
	}
	h.joinLocked(id, room)
}

func (h *Hub) joinLocked(id realtime.ConnID, room string) {
	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[realtime.ConnID]struct{})
	}
	h.rooms[room][id] = struct{}{}
	if _, ok := h.joined[id]; !ok {
		h.joined[id] = make(map[string]struct{})
	}
	h.joined[id][room] = struct{}{}
}

// Forget releases the connection and all of its room memberships. No
// persistent state is touched.
func (h *Hub) Forget(id realtime.ConnID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	session, ok := h.sessions[id]
	if !ok {
		return
	}
	delete(h.sessions, id)
	for room := range h.joined[id] {
		delete(h.rooms[room], id)
		if len(h.rooms[room]) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(h.joined, id)
	userConns := h.byUser[session.UserID()]
	delete(userConns, id)
	if len(userConns) == 0 {
		delete(h.byUser, session.UserID())
	}
}

// InRoom reports whether the connection currently belongs to the room.
func (h *Hub) InRoom(id realtime.ConnID, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[room][id]
	return ok
}

// Online returns the number of distinct connected users.
func (h *Hub) Online() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser)
}

// Publish delivers the event to every room member, locally and through the
// relay when one is attached.
func (h *Hub) Publish(room, event string, payload any) {
	h.PublishExcept(room, event, payload, "")
}

// PublishExcept is Publish minus one connection, used for typing signals
// where the sender must not hear its own echo.
func (h *Hub) PublishExcept(room, event string, payload any, except realtime.ConnID) {
	h.deliverLocal(room, event, payload, except)
	if h.relay != nil {
		h.relay.Forward(room, event, payload, except)
	}
}

// PublishToUser delivers to the user's personal room.
func (h *Hub) PublishToUser(id domainuser.ID, event string, payload any) {
	h.Publish(realtime.UserRoom(id), event, payload)
}

// DeliverLocal fans out to local room members only, bypassing the relay.
// The relay consumer uses it to replay events arriving from other
// instances without forwarding them again.
func (h *Hub) DeliverLocal(room, event string, payload any, except realtime.ConnID) {
	h.deliverLocal(room, event, payload, except)
}

func (h *Hub) deliverLocal(room, event string, payload any, except realtime.ConnID) {
	h.mu.RLock()
	members := make([]Session, 0, len(h.rooms[room]))
	for id := range h.rooms[room] {
		if id == except {
			continue
		}
		if session, ok := h.sessions[id]; ok {
			members = append(members, session)
		}
	}
	h.mu.RUnlock()

	envelope := ServerEnvelope{Event: event, Payload: payload}
	for _, session := range members {
		if !session.Send(envelope) && h.logger != nil {
			h.logger.Warn("dropped event for slow connection",
				"conn_id", session.ConnID(),
				"user_id", session.UserID(),
				"event", event,
				"room", room,
			)
		}
	}
}

var _ realtime.Dispatcher = (*Hub)(nil)
