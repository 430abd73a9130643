package ws

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"estately/internal/app/realtime"
	domainuser "estately/internal/domain/user"
)

// Client owns one websocket connection: a read pump that feeds the gateway
// sequentially (no two actions from the same connection run concurrently)
// and a write pump draining the send buffer.
type Client struct {
	id     realtime.ConnID
	userID domainuser.ID
	socket *websocket.Conn
	send   chan ServerEnvelope
	logger *slog.Logger

	mu     sync.Mutex
	closed bool

	writeTimeout   time.Duration
	pongTimeout    time.Duration
	maxMessageSize int64
}

func newClient(id realtime.ConnID, userID domainuser.ID, socket *websocket.Conn, g *Gateway) *Client {
	return &Client{
		id:             id,
		userID:         userID,
		socket:         socket,
		send:           make(chan ServerEnvelope, g.sendBuffer()),
		logger:         g.Logger,
		writeTimeout:   g.writeTimeout(),
		pongTimeout:    g.pongTimeout(),
		maxMessageSize: g.maxMessageSize(),
	}
}

func (c *Client) ConnID() realtime.ConnID { return c.id }
func (c *Client) UserID() domainuser.ID   { return c.userID }

// Send queues an envelope without blocking. A full buffer means the peer is
// not keeping up; the frame is dropped and history remains the catch-up path.
// A hub fanout may still hold this session after a disconnect, so Send keeps
// working (as a drop) once the connection is closed instead of panicking on
// the closed channel.
func (c *Client) Send(envelope ServerEnvelope) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- envelope:
		return true
	default:
		return false
	}
}

// close shuts the send channel exactly once, under the same lock Send takes.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// readPump consumes inbound frames until the connection drops and hands
// each one to the gateway. Runs on the caller's goroutine.
func (c *Client) readPump(g *Gateway) {
	defer func() {
		g.disconnect(c)
	}()
	c.socket.SetReadLimit(c.maxMessageSize)
	_ = c.socket.SetReadDeadline(time.Now().Add(c.pongTimeout))
	c.socket.SetPongHandler(func(string) error {
		return c.socket.SetReadDeadline(time.Now().Add(c.pongTimeout))
	})
	for {
		_, raw, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && c.logger != nil {
				c.logger.Debug("websocket read failed", "conn_id", c.id, "error", err)
			}
			return
		}
		g.handleFrame(c, raw)
	}
}

// writePump drains the send buffer and keeps the connection alive with
// pings. Closing the send channel terminates it.
func (c *Client) writePump() {
	pingInterval := c.pongTimeout * 9 / 10
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.socket.Close()
	}()
	for {
		select {
		case envelope, ok := <-c.send:
			_ = c.socket.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if !ok {
				_ = c.socket.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.socket.WriteJSON(envelope); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.socket.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

var _ Session = (*Client)(nil)
