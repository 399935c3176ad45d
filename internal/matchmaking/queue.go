// Package matchmaking pairs players looking for a human opponent. The queue
// is strictly first-in first-out: the moment a second player joins, the two
// oldest entries are matched into a fresh game.
package matchmaking

import (
	"errors"
	"sync"
	"time"

	"supertictactoe/internal/config"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateMatchFunc registers a human-vs-human match with both seats filled.
// The first player opens as X.
type CreateMatchFunc func(gameID, player1, player2 string) error

// MatchAliveFunc reports whether the match still exists and is undecided.
// A pairing that points at a dead or finished match is purged instead of
// reported.
type MatchAliveFunc func(gameID string) bool

// State describes where a user stands with the queue.
type State string

const (
	// StateWaiting means the user is queued and unpaired.
	StateWaiting State = "waiting"
	// StateMatched means the user has been paired; GameID points at the match.
	StateMatched State = "matched"
	// StateIdle means the queue knows nothing about the user.
	StateIdle State = "idle"
)

// Status is the answer to a matchmaking poll. Position and WaitSeconds are
// set while waiting; GameID while matched.
type Status struct {
	State       State  `json:"status"`
	GameID      string `json:"game_id,omitempty"`
	Position    *int   `json:"position,omitempty"`
	WaitSeconds int    `json:"wait_seconds,omitempty"`
}

// ErrCreateFailed wraps a match-creation failure during pairing. Both
// entries stay queued so the next join retries.
var ErrCreateFailed = errors.New("failed to create match for pair")

type entry struct {
	userID     string
	enqueuedAt time.Time
}

type pairing struct {
	gameID    string
	matchedAt time.Time
}

// Queue is the FIFO waiting line plus a short-lived table of recent
// pairings, kept so the second player of a pair can still learn the game id
// from a later status poll.
type Queue struct {
	mu      sync.Mutex
	waiting []entry
	matched map[string]pairing

	create CreateMatchFunc
	alive  MatchAliveFunc
	maxAge time.Duration
	log    *zap.Logger
	now    func() time.Time
}

// NewQueue builds an empty queue. create must be non-nil; a nil alive treats
// every pairing as live.
func NewQueue(create CreateMatchFunc, alive MatchAliveFunc, cfg config.Config, log *zap.Logger) *Queue {
	if log == nil {
		log = zap.NewNop()
	}
	return &Queue{
		matched: make(map[string]pairing),
		create:  create,
		alive:   alive,
		maxAge:  cfg.QueueMaxAge(),
		log:     log,
		now:     time.Now,
	}
}

// Join enters the user into the queue. If someone else is already waiting
// the two are paired immediately and both get StateMatched; otherwise the
// caller waits. Joining while already queued or already paired is
// idempotent.
func (q *Queue) Join(userID string) (Status, error) {
	q.mu.Lock()
	if p, ok := q.livePairingLocked(userID); ok {
		q.mu.Unlock()
		return Status{State: StateMatched, GameID: p.gameID}, nil
	}
	if i := q.indexOf(userID); i >= 0 {
		st := q.waitingStatusLocked(i)
		q.mu.Unlock()
		return st, nil
	}
	if len(q.waiting) == 0 {
		q.waiting = append(q.waiting, entry{userID: userID, enqueuedAt: q.now()})
		st := q.waitingStatusLocked(len(q.waiting) - 1)
		q.mu.Unlock()
		return st, nil
	}
	head := q.waiting[0]
	q.waiting = q.waiting[1:]
	q.mu.Unlock()

	// Match creation runs outside the queue lock so the hot matchmaking
	// path never waits on the match subsystem. The popped head goes back
	// to the front on failure.
	gameID := uuid.NewString()
	if err := q.create(gameID, head.userID, userID); err != nil {
		q.mu.Lock()
		q.waiting = append([]entry{head}, q.waiting...)
		q.mu.Unlock()
		q.log.Error("pairing failed",
			zap.String("player_x", head.userID),
			zap.String("player_o", userID),
			zap.Error(err))
		return Status{}, ErrCreateFailed
	}

	now := q.now()
	q.mu.Lock()
	q.matched[head.userID] = pairing{gameID: gameID, matchedAt: now}
	q.matched[userID] = pairing{gameID: gameID, matchedAt: now}
	q.mu.Unlock()

	q.log.Info("players matched",
		zap.String("game_id", gameID),
		zap.String("player_x", head.userID),
		zap.String("player_o", userID))
	return Status{State: StateMatched, GameID: gameID}, nil
}

// livePairingLocked returns the user's pairing if its match is still worth
// pointing at; a dead pairing is purged. Callers hold mu.
func (q *Queue) livePairingLocked(userID string) (pairing, bool) {
	p, ok := q.matched[userID]
	if !ok {
		return pairing{}, false
	}
	if q.alive != nil && !q.alive(p.gameID) {
		delete(q.matched, userID)
		return pairing{}, false
	}
	return p, true
}

// waitingStatusLocked builds the waiting envelope for position i. Callers
// hold mu.
func (q *Queue) waitingStatusLocked(i int) Status {
	pos := i
	return Status{
		State:       StateWaiting,
		Position:    &pos,
		WaitSeconds: int(q.now().Sub(q.waiting[i].enqueuedAt) / time.Second),
	}
}

// Leave removes the user from the waiting line. Pairings are untouched:
// once matched, the game is the thing to leave. Reports whether the user
// was actually waiting.
func (q *Queue) Leave(userID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := q.indexOf(userID)
	if i < 0 {
		return false
	}
	q.waiting = append(q.waiting[:i], q.waiting[i+1:]...)
	return true
}

// Status reports the user's current standing. A matched user keeps seeing
// the pairing until the record expires.
func (q *Queue) Status(userID string) Status {
	q.mu.Lock()
	defer q.mu.Unlock()

	if p, ok := q.livePairingLocked(userID); ok {
		return Status{State: StateMatched, GameID: p.gameID}
	}
	if i := q.indexOf(userID); i >= 0 {
		return q.waitingStatusLocked(i)
	}
	return Status{State: StateIdle}
}

// Waiting returns the number of queued users.
func (q *Queue) Waiting() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiting)
}

// Reap drops waiting entries and pairing records older than the configured
// maximum age. Returns how many of each were removed.
func (q *Queue) Reap(now time.Time) (expired, cleared int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.waiting[:0]
	for _, e := range q.waiting {
		if now.Sub(e.enqueuedAt) < q.maxAge {
			kept = append(kept, e)
		} else {
			expired++
		}
	}
	q.waiting = kept

	for uid, p := range q.matched {
		if now.Sub(p.matchedAt) >= q.maxAge {
			delete(q.matched, uid)
			cleared++
		}
	}
	return expired, cleared
}

// indexOf returns the waiting-line position of userID, or -1. Callers hold mu.
func (q *Queue) indexOf(userID string) int {
	for i, e := range q.waiting {
		if e.userID == userID {
			return i
		}
	}
	return -1
}
