package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// conn is one attached socket. The hub owns its lifecycle; lastPong and
// missedPongs are read and written only under the hub lock. sendMu makes
// enqueue and close mutually exclusive, so the read loop can keep replying
// while the heartbeat or a superseding attach tears the connection down.
type conn struct {
	ws     *websocket.Conn
	gameID string
	userID string

	sendMu sync.Mutex
	send   chan any
	closed bool

	lastPong    time.Time
	missedPongs int
}

func newConn(ws *websocket.Conn, gameID, userID string, queueSize int, now time.Time) *conn {
	return &conn{
		ws:       ws,
		gameID:   gameID,
		userID:   userID,
		send:     make(chan any, queueSize),
		lastPong: now,
	}
}

// enqueue hands a frame to the write pump without blocking. Returns false
// when the connection is already closed or the queue is full; a full queue
// means the client is not draining and the caller detaches it.
func (c *conn) enqueue(msg any) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// close shuts the send channel exactly once, which unwinds the write pump.
// Enqueues racing the close see the closed flag instead of a dead channel.
func (c *conn) close() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// writePump drains the send queue onto the socket. It exits when the queue
// is closed or a write fails, closing the socket either way.
func (c *conn) writePump() {
	defer c.ws.Close()

	for msg := range c.send {
		if err := c.ws.WriteJSON(msg); err != nil {
			return
		}
	}
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
}
