package app

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"supertictactoe/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// aiIDPrefix derives the synthetic computer participant id from a match id.
const aiIDPrefix = "ai-"

// AIParticipantID returns the deterministic id of the computer player for
// the given match.
func AIParticipantID(matchID string) string {
	return aiIDPrefix + matchID
}

// isAIParticipant reports whether id belongs to a computer player.
func isAIParticipant(id string) bool {
	return len(id) > len(aiIDPrefix) && id[:len(aiIDPrefix)] == aiIDPrefix
}

// Match is one registered game plus its executor state. All mutation of the
// embedded Game happens while holding mu, which makes every transition of a
// single match serial while distinct matches progress in parallel.
type Match struct {
	mu   sync.Mutex
	game *domain.Game

	resetting  atomic.Bool
	resultSent bool
	aiPending  bool

	// ctx is cancelled on removal so in-flight engine searches and think
	// delays unwind instead of leaking.
	ctx    context.Context
	cancel context.CancelFunc
}

// ID returns the match id. Immutable, so no lock is needed.
func (m *Match) ID() string { return m.game.ID }

// Snapshot returns a deep copy of the game taken under the executor lock.
func (m *Match) Snapshot() *domain.Game {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.game.Clone()
}

// Terminal reports whether the match has been decided.
func (m *Match) Terminal() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.game.Terminal()
}

// humanPlayerCount counts seated players that are not the synthetic
// computer participant. Callers hold mu.
func humanPlayerCount(g *domain.Game) int {
	n := 0
	for _, p := range g.Participants {
		if p.Role == domain.RolePlayer && !isAIParticipant(p.ID) {
			n++
		}
	}
	return n
}

// Registry is the single shared match-id -> Match mapping. Reads take the
// shared lock, creation and removal the exclusive one.
type Registry struct {
	mu      sync.RWMutex
	matches map[string]*Match
	byUser  map[string]string // participant id -> match id
	log     *zap.Logger
	now     func() time.Time
}

// NewRegistry returns an empty registry.
func NewRegistry(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		matches: make(map[string]*Match),
		byUser:  make(map[string]string),
		log:     log,
		now:     time.Now,
	}
}

func newMatch(g *domain.Game) *Match {
	ctx, cancel := context.WithCancel(context.Background())
	return &Match{game: g, ctx: ctx, cancel: cancel}
}

// Create registers a fresh match in the given mode. For ModeAI an empty
// difficulty defaults to medium.
func (r *Registry) Create(mode domain.Mode, difficulty domain.Difficulty) (*Match, error) {
	if mode == domain.ModeAI {
		if difficulty == "" {
			difficulty = domain.DifficultyMedium
		}
		if !difficulty.Valid() {
			return nil, ErrBadDifficulty
		}
	} else {
		difficulty = ""
	}

	id := uuid.NewString()
	m := newMatch(domain.NewGame(id, mode, difficulty, r.now()))

	r.mu.Lock()
	r.matches[id] = m
	r.mu.Unlock()

	r.log.Info("match created",
		zap.String("game_id", id),
		zap.String("mode", string(mode)),
		zap.String("difficulty", string(difficulty)))
	return m, nil
}

// CreatePrepopulated registers a human-vs-human match under the given id
// with both seats filled: the first player is X and opens, the second is O.
// Used by the matchmaking queue.
func (r *Registry) CreatePrepopulated(id, player1, player2 string) (*Match, error) {
	g := domain.NewGame(id, domain.ModeRemote, "", r.now())
	g.Participants = []*domain.Participant{
		{ID: player1, Mark: domain.MarkX, Role: domain.RolePlayer, JoinOrder: 0},
		{ID: player2, Mark: domain.MarkO, Role: domain.RolePlayer, JoinOrder: 1},
	}
	g.Current = domain.MarkX
	m := newMatch(g)

	r.mu.Lock()
	if _, exists := r.matches[id]; exists {
		r.mu.Unlock()
		return nil, ErrMatchExists
	}
	r.matches[id] = m
	r.byUser[player1] = id
	r.byUser[player2] = id
	r.mu.Unlock()

	r.log.Info("match created from queue",
		zap.String("game_id", id),
		zap.String("player_x", player1),
		zap.String("player_o", player2))
	return m, nil
}

// Get returns the match for id.
func (r *Registry) Get(id string) (*Match, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.matches[id]
	return m, ok
}

// Remove deletes the match and cancels its lifecycle context. Idempotent.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	m, ok := r.matches[id]
	if ok {
		delete(r.matches, id)
		for uid, mid := range r.byUser {
			if mid == id {
				delete(r.byUser, uid)
			}
		}
	}
	r.mu.Unlock()

	if ok {
		m.cancel()
		r.log.Info("match removed", zap.String("game_id", id))
	}
}

// Range calls fn for every registered match until it returns false.
func (r *Registry) Range(fn func(*Match) bool) {
	r.mu.RLock()
	snapshot := make([]*Match, 0, len(r.matches))
	for _, m := range r.matches {
		snapshot = append(snapshot, m)
	}
	r.mu.RUnlock()

	for _, m := range snapshot {
		if !fn(m) {
			return
		}
	}
}

// Len returns the number of registered matches.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.matches)
}

// bindUser records which match a user currently belongs to and returns the
// previous binding, if any.
func (r *Registry) bindUser(userID, matchID string) (prev string, moved bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, had := r.byUser[userID]
	r.byUser[userID] = matchID
	return prev, had && prev != matchID
}

// unbindUser drops the user's binding if it still points at matchID.
func (r *Registry) unbindUser(userID, matchID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byUser[userID] == matchID {
		delete(r.byUser, userID)
	}
}
