package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tierline/tierline/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 1 << 20
)

// client is the one active WebSocket connection.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// handleWebSocket upgrades the connection and binds it to the session's
// single client slot. A second connection is refused with 409 until the
// first disconnects.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	c := &client{send: make(chan []byte, 64)}

	s.mu.Lock()
	if s.client != nil {
		s.mu.Unlock()
		logging.SessionEvent("client_refused", s.session.ID, "remote_addr", r.RemoteAddr)
		respondError(w, http.StatusConflict, "session already has a client")
		return
	}
	s.client = c
	s.mu.Unlock()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.release(c)
		logging.Error("websocket upgrade failed", "error", err)
		return
	}
	c.conn = conn

	logging.SessionEvent("client_connected", s.session.ID, "remote_addr", r.RemoteAddr)
	go c.writePump()
	go s.readPump(c)
}

// release frees the client slot if c still holds it.
func (s *Server) release(c *client) {
	s.mu.Lock()
	if s.client == c {
		s.client = nil
	}
	s.mu.Unlock()
}

// readPump reads requests, applies them through the session, and queues
// the reply events. Applying inside the read loop keeps operations in
// arrival order with at most one in flight.
func (s *Server) readPump(c *client) {
	defer func() {
		s.release(c)
		close(c.send)
		c.conn.Close()
		logging.SessionEvent("client_disconnected", s.session.ID)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logging.Error("websocket read failed", "error", err)
			}
			return
		}

		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			c.enqueue(rejected("", "request is not valid JSON"))
			continue
		}
		c.enqueue(s.session.Apply(req))
	}
}

// enqueue marshals an event onto the send channel.
func (c *client) enqueue(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		logging.Error("failed to marshal event", "error", err)
		return
	}
	select {
	case c.send <- data:
	default:
		logging.Warn("client send buffer full, dropping event",
			"event", ev.Event, "op", ev.Op)
	}
}

// writePump writes queued events and keeps the connection alive with
// pings. It exits when the send channel closes or a write fails.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
