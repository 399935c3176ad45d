package ws

import (
	"errors"
	"sync"
	"time"

	"supertictactoe/internal/app"
	"supertictactoe/internal/config"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ErrGameFull rejects attachment beyond the per-game connection cap.
var ErrGameFull = errors.New("game connection limit reached")

// evictAfterMissedPongs is how many consecutive unanswered pings a
// connection survives before the heartbeat gives up on it.
const evictAfterMissedPongs = 3

// Hub tracks every attached socket per game and fans match events out to
// them. It implements app.Sink; Publish never blocks, slow consumers are
// detached instead.
type Hub struct {
	mu    sync.Mutex
	games map[string]map[string]*conn // game id -> user id -> conn

	heartbeatInterval time.Duration
	connectionTimeout time.Duration
	maxPerGame        int
	queueSize         int

	log  *zap.Logger
	now  func() time.Time
	stop chan struct{}
	done chan struct{}
}

// NewHub builds the fan-out layer from config.
func NewHub(cfg config.Config, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		games:             make(map[string]map[string]*conn),
		heartbeatInterval: cfg.HeartbeatInterval(),
		connectionTimeout: cfg.ConnectionTimeout(),
		maxPerGame:        cfg.MaxConnectionsPerGame,
		queueSize:         cfg.SendQueueSize,
		log:               log,
		now:               time.Now,
		stop:              make(chan struct{}),
		done:              make(chan struct{}),
	}
}

// Start launches the heartbeat loop.
func (h *Hub) Start() {
	go h.heartbeatLoop()
}

// Stop ends the heartbeat and closes every connection.
func (h *Hub) Stop() {
	close(h.stop)
	<-h.done

	h.mu.Lock()
	defer h.mu.Unlock()
	for gameID, conns := range h.games {
		for _, c := range conns {
			c.close()
		}
		delete(h.games, gameID)
	}
}

// Attach registers a socket for a game and starts its write pump. A second
// connection by the same user supersedes the first. Returns ErrGameFull at
// the per-game cap.
func (h *Hub) Attach(gameID, userID string, ws *websocket.Conn) (*conn, error) {
	h.mu.Lock()
	conns := h.games[gameID]
	if conns == nil {
		conns = make(map[string]*conn)
		h.games[gameID] = conns
	}

	prev := conns[userID]
	if prev == nil && len(conns) >= h.maxPerGame {
		h.mu.Unlock()
		return nil, ErrGameFull
	}

	c := newConn(ws, gameID, userID, h.queueSize, h.now())
	conns[userID] = c
	h.mu.Unlock()

	if prev != nil {
		prev.close()
		h.log.Info("superseded duplicate connection",
			zap.String("game_id", gameID), zap.String("user_id", userID))
	}

	go c.writePump()
	return c, nil
}

// Detach drops the connection if it is still the registered one for its
// user. Reports whether any sockets remain attached to the game.
func (h *Hub) Detach(c *conn) (remaining int) {
	h.mu.Lock()
	conns := h.games[c.gameID]
	if conns != nil && conns[c.userID] == c {
		delete(conns, c.userID)
		if len(conns) == 0 {
			delete(h.games, c.gameID)
		}
	}
	remaining = len(conns)
	h.mu.Unlock()

	c.close()
	return remaining
}

// Publish implements app.Sink: renders the event once and enqueues it on
// every socket attached to the match.
func (h *Hub) Publish(matchID string, ev app.Event) {
	h.Broadcast(matchID, frameForEvent(matchID, ev))
}

// Broadcast enqueues an already-rendered frame on every socket attached to
// the game. Sockets that cannot keep up are detached.
func (h *Hub) Broadcast(gameID string, frame any) {
	h.mu.Lock()
	var stalled []*conn
	for _, c := range h.games[gameID] {
		if !c.enqueue(frame) {
			stalled = append(stalled, c)
		}
	}
	h.mu.Unlock()

	for _, c := range stalled {
		h.log.Warn("dropping slow connection",
			zap.String("game_id", c.gameID), zap.String("user_id", c.userID))
		h.Detach(c)
	}
}

// SendTo enqueues a frame on one user's socket, if attached.
func (h *Hub) SendTo(gameID, userID string, frame any) bool {
	h.mu.Lock()
	c := h.games[gameID][userID]
	h.mu.Unlock()
	if c == nil {
		return false
	}
	return c.enqueue(frame)
}

// CloseMatch drops every socket attached to the game. Called when a match
// is destroyed.
func (h *Hub) CloseMatch(gameID string) {
	h.mu.Lock()
	conns := h.games[gameID]
	delete(h.games, gameID)
	h.mu.Unlock()

	for _, c := range conns {
		c.close()
	}
}

// ConnectionCount reports how many sockets a game has attached.
func (h *Hub) ConnectionCount(gameID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.games[gameID])
}

// pongReceived resets the connection's heartbeat bookkeeping.
func (h *Hub) pongReceived(c *conn) {
	h.mu.Lock()
	c.lastPong = h.now()
	c.missedPongs = 0
	h.mu.Unlock()
}

func (h *Hub) heartbeatLoop() {
	defer close(h.done)

	ticker := time.NewTicker(h.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.sweepAndPing()
		case <-h.stop:
			return
		}
	}
}

// sweepAndPing evicts connections that went silent past the timeout or
// swallowed too many pings, then pings the survivors.
func (h *Hub) sweepAndPing() {
	now := h.now()
	ping := pingFrame{Type: framePing, Timestamp: now.UnixMilli()}

	h.mu.Lock()
	var stale []*conn
	for _, conns := range h.games {
		for _, c := range conns {
			if now.Sub(c.lastPong) > h.connectionTimeout || c.missedPongs >= evictAfterMissedPongs {
				stale = append(stale, c)
				continue
			}
			if !c.enqueue(ping) {
				c.missedPongs++
			}
		}
	}
	h.mu.Unlock()

	for _, c := range stale {
		h.log.Info("evicting stale connection",
			zap.String("game_id", c.gameID), zap.String("user_id", c.userID))
		h.Detach(c)
	}
}
