package ws

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait bounds a single write to a viewer connection.
	writeWait = 10 * time.Second

	// pongWait is how long a viewer may stay silent before the read
	// side gives up; pings go out at pingPeriod to keep it alive.
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize bounds inbound viewer frames.
	maxMessageSize = 64 * 1024

	// sendBufferSize is the per-viewer outbound queue. A viewer that
	// cannot drain this backlog is disconnected rather than allowed to
	// stall fan-out for everyone else.
	sendBufferSize = 256
)

// Client is one connected viewer. All writes to the connection go
// through the buffered send channel and the single writePump goroutine;
// room membership is owned by the hub.
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	id         string
	deviceName string
	send       chan []byte
}

// ID returns the viewer's connection id (also used as relay origin id).
func (c *Client) ID() string {
	return c.id
}

// enqueue hands a frame to the writePump. Returns false when the
// viewer's buffer is full, which the hub treats as a dead connection.
func (c *Client) enqueue(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// readPump consumes viewer frames until the connection dies, then
// unregisters the client. Runs on the connection's handler goroutine.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debugf("Viewer %s read error: %v", c.id, err)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.hub.logger.Warnf("Viewer %s sent malformed frame: %v", c.id, err)
			continue
		}
		c.hub.dispatch(c, env)
	}
}

// writePump drains the send channel onto the connection and keeps the
// viewer alive with pings. One per client; exits when the hub closes
// the send channel or a write fails.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
