package app

import (
	"context"
	"time"

	"supertictactoe/internal/bot"
	"supertictactoe/internal/config"
	"supertictactoe/internal/domain"

	"go.uber.org/zap"
)

// Service contains the match use-cases. Every transition of a single match
// runs under that match's executor lock; events are published in the order
// the transitions were applied.
type Service struct {
	registry *Registry
	results  *ResultSink
	sink     Sink
	log      *zap.Logger
	now      func() time.Time

	thinkDelay     time.Duration
	searchDeadline time.Duration

	// onClose lets the transport drop a match's connections once the
	// match is destroyed. Optional.
	onClose func(matchID string)
}

// NewService wires the match state machine. results may be nil when score
// accounting is not wanted (tests).
func NewService(registry *Registry, results *ResultSink, cfg config.Config, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		registry:       registry,
		results:        results,
		sink:           discardSink{},
		log:            log,
		now:            time.Now,
		thinkDelay:     cfg.AIThinkDelay(),
		searchDeadline: cfg.AISearchDeadline(),
	}
}

// SetSink installs the event fan-out. Must be called before traffic starts.
func (s *Service) SetSink(sink Sink) {
	if sink == nil {
		sink = discardSink{}
	}
	s.sink = sink
}

// SetCloser installs a callback invoked after a match is destroyed.
func (s *Service) SetCloser(fn func(matchID string)) {
	s.onClose = fn
}

// Registry exposes the underlying match registry.
func (s *Service) Registry() *Registry { return s.registry }

// closeTransport notifies the transport that a match is gone.
func (s *Service) closeTransport(matchID string) {
	if s.onClose != nil {
		s.onClose(matchID)
	}
}

// Join attaches a user to a match. Re-joining returns the existing
// participant unchanged. The first joiner of a computer match gets X and a
// synthetic computer participant is seated as O; in human matches the first
// two joiners become players and later arrivals watch.
//
// A user still bound to a different match is moved: they leave the old
// match first (mirrors the client UX of following a new invite link).
func (s *Service) Join(matchID, userID string) (*domain.Participant, *domain.Game, error) {
	m, ok := s.registry.Get(matchID)
	if !ok {
		return nil, nil, ErrMatchNotFound
	}

	if prev, moved := s.registry.bindUser(userID, matchID); moved {
		if err := s.Leave(prev, userID); err != nil {
			s.log.Debug("leaving previous match failed",
				zap.String("game_id", prev), zap.String("user_id", userID), zap.Error(err))
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	g := m.game

	p := g.Participant(userID)
	switch {
	case p != nil:
		// Re-join: same participant, no side effects.

	case g.Mode == domain.ModeAI && g.Participant(AIParticipantID(matchID)) == nil:
		p = &domain.Participant{ID: userID, Mark: domain.MarkX, Role: domain.RolePlayer, JoinOrder: 0}
		ai := &domain.Participant{
			ID:        AIParticipantID(matchID),
			Name:      "Computer",
			Mark:      domain.MarkO,
			Role:      domain.RolePlayer,
			JoinOrder: 1,
		}
		g.Participants = append(g.Participants, p, ai)
		g.Current = domain.MarkX

	case g.Mode == domain.ModeRemote && g.PlayerCount() < 2:
		mark := domain.MarkX
		if g.PlayerByMark(domain.MarkX) != nil {
			mark = domain.MarkO
		}
		p = &domain.Participant{ID: userID, Mark: mark, Role: domain.RolePlayer, JoinOrder: len(g.Participants)}
		g.Participants = append(g.Participants, p)
		if g.PlayerCount() == 2 {
			g.Current = domain.MarkX
		}

	default:
		p = &domain.Participant{ID: userID, Role: domain.RoleWatcher, JoinOrder: len(g.Participants)}
		g.Participants = append(g.Participants, p)
		g.Watchers++
	}

	snap := g.Clone()
	joined := *p
	s.sink.Publish(matchID, Event{Kind: EventPlayerJoined, Game: snap, Participant: &joined})
	return &joined, snap, nil
}

// MakeMove validates and applies a move, then broadcasts the update. In a
// computer match a reply by the engine is scheduled when it is now the
// computer's turn.
func (s *Service) MakeMove(matchID string, mv domain.Move) (*domain.Game, error) {
	m, ok := s.registry.Get(matchID)
	if !ok {
		return nil, ErrMatchNotFound
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	g := m.game

	p := g.Participant(mv.PlayerID)
	if p == nil {
		return nil, ErrPlayerNotFound
	}
	if p.Role == domain.RoleWatcher {
		return nil, ErrWatcherMove
	}
	if err := domain.ValidateMove(g, mv); err != nil {
		return nil, err
	}
	if p.Mark != g.Current {
		return nil, ErrNotYourTurn
	}

	s.applyLocked(m, mv, p.Mark)
	return g.Clone(), nil
}

// applyLocked writes a validated move and runs the post-move machinery:
// broadcast, result accounting on terminal transition, engine scheduling.
// The caller holds m.mu.
func (s *Service) applyLocked(m *Match, mv domain.Move, mark domain.Mark) {
	g := m.game
	g.Apply(mv, mark, s.now())

	snap := g.Clone()
	s.sink.Publish(g.ID, Event{Kind: EventGameUpdate, Game: snap, Participant: snap.Participant(mv.PlayerID)})

	if g.Terminal() {
		if !m.resultSent && s.results != nil {
			m.resultSent = true
			// Store calls never run under the match lock.
			go s.results.Report(context.Background(), snap)
		}
		return
	}

	if g.Mode == domain.ModeAI && g.Current == domain.MarkO && !m.aiPending {
		m.aiPending = true
		go s.aiReply(m)
	}
}

// aiReply waits out the think delay, runs the engine against a snapshot and
// applies the chosen move. The position is re-checked under the lock: a
// reset or teardown during the search simply drops the reply.
func (s *Service) aiReply(m *Match) {
	select {
	case <-time.After(s.thinkDelay):
	case <-m.ctx.Done():
		m.mu.Lock()
		m.aiPending = false
		m.mu.Unlock()
		return
	}

	snap := m.Snapshot()
	engine := bot.NewEngine(domain.MarkO, snap.Difficulty, nil)
	ctx, cancel := context.WithTimeout(m.ctx, s.searchDeadline)
	mv, err := engine.ChooseMove(ctx, snap)
	cancel()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.aiPending = false

	if err != nil {
		s.log.Warn("engine produced no move", zap.String("game_id", snap.ID), zap.Error(err))
		return
	}

	g := m.game
	if g.Terminal() || g.Current != domain.MarkO {
		return
	}
	mv.PlayerID = AIParticipantID(g.ID)
	if domain.ValidateMove(g, mv) != nil {
		// The board changed while searching; take any legal cell.
		legal := domain.LegalCells(&g.Board, g.Active)
		if len(legal) == 0 {
			return
		}
		mv.Board, mv.Cell = legal[0].Board, legal[0].Cell
	}

	s.applyLocked(m, mv, domain.MarkO)
}

// Reset clears the board for a new game on the same match. Only seated
// players may reset, and only one reset runs at a time per match.
func (s *Service) Reset(matchID, callerID string) error {
	m, ok := s.registry.Get(matchID)
	if !ok {
		return ErrMatchNotFound
	}

	if !m.resetting.CompareAndSwap(false, true) {
		return ErrResetInProgress
	}
	defer m.resetting.Store(false)

	m.mu.Lock()
	defer m.mu.Unlock()
	g := m.game

	p := g.Participant(callerID)
	if p == nil || p.Role != domain.RolePlayer {
		return ErrNotPlayer
	}

	prev := g.Winner
	g.ClearBoard()
	if prev == domain.MarkX || prev == domain.MarkO {
		g.Current = prev
	} else {
		g.Current = domain.MarkX
	}
	m.resultSent = false

	snap := g.Clone()
	s.sink.Publish(matchID, Event{Kind: EventGameReset, Game: snap, Message: "Game reset successfully"})

	// When the computer won the last game it opens the next one, so the
	// engine has to be scheduled here; no move will arrive to trigger it.
	if g.Mode == domain.ModeAI && g.Current == domain.MarkO && !m.aiPending {
		m.aiPending = true
		go s.aiReply(m)
	}
	return nil
}

// Leave detaches a participant. Watchers decrement the watcher counter;
// when the last human player is gone the match is destroyed.
func (s *Service) Leave(matchID, userID string) error {
	m, ok := s.registry.Get(matchID)
	if !ok {
		return ErrMatchNotFound
	}

	m.mu.Lock()
	g := m.game
	p := g.Participant(userID)
	if p == nil {
		m.mu.Unlock()
		return nil
	}

	g.RemoveParticipant(userID)
	if p.Role == domain.RoleWatcher && g.Watchers > 0 {
		g.Watchers--
	}
	s.registry.unbindUser(userID, matchID)

	abandoned := humanPlayerCount(g) == 0
	snap := g.Clone()
	s.sink.Publish(matchID, Event{Kind: EventWatchersUpdate, Game: snap})
	m.mu.Unlock()

	if abandoned {
		s.registry.Remove(matchID)
		s.closeTransport(matchID)
	}
	return nil
}
