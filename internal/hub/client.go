package hub

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 256
)

// client is one live subscriber connection. All writes go through the send
// channel so the write deadline and close are owned by a single goroutine.
// mu guards send against a concurrent close: a broadcast may race with the
// connection's own teardown, and a send after close must degrade to a drop.
type client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// handleWS upgrades the connection, performs the greeting sequence, and
// starts the connection's pumps.
func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("websocket upgrade failed", "err", err)
		return
	}

	c := &client{
		id:   uuid.New().String(),
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
	h.register(c)
	h.log.Info("client connected", "connection_id", c.id)

	go c.writePump()
	c.greet()
	go c.readPump()
}

// trySend queues data without blocking. A message for an already-closed
// client is dropped; a client that cannot keep up is disconnected so it never
// stalls the tick or other subscribers.
func (c *client) trySend(data []byte) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	select {
	case c.send <- data:
		c.mu.Unlock()
	default:
		c.mu.Unlock()
		c.hub.log.Warn("client send buffer full, dropping connection", "connection_id", c.id)
		c.hub.unregister(c)
		c.conn.Close()
	}
}

// shutdown closes the send channel exactly once, releasing the writePump.
func (c *client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// sendEvent marshals and queues one event for this client only.
func (c *client) sendEvent(ev event) {
	data, err := ev.marshal()
	if err != nil {
		c.hub.log.Error("marshal event", "type", ev.Type, "err", err)
		return
	}
	c.trySend(data)
}

// writePump writes queued messages and keepalive pings until the send
// channel closes.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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

// readPump dispatches inbound requests until the connection drops. A drop is
// isolated to this connection.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
		c.hub.log.Info("client disconnected", "connection_id", c.id)
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var req request
		if err := c.conn.ReadJSON(&req); err != nil {
			return
		}
		c.hub.dispatch(c, req)
	}
}
