package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"supertictactoe/internal/config"
	"supertictactoe/internal/domain"
	"supertictactoe/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu      sync.Mutex
	users   map[string]*ports.User
	records []ports.GameResult
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: make(map[string]*ports.User)}
}

func (f *fakeStore) GetUser(ctx context.Context, id string) (*ports.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, ports.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStore) RecordGameResult(ctx context.Context, rec ports.GameResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeStore) recorded() []ports.GameResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ports.GameResult, len(f.records))
	copy(out, f.records)
	return out
}

type captureSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *captureSink) Publish(matchID string, ev Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func (s *captureSink) kinds() []EventKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]EventKind, len(s.events))
	for i, ev := range s.events {
		out[i] = ev.Kind
	}
	return out
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.AIThinkDelayMs = 1
	cfg.AISearchDeadlineSec = 1
	return cfg
}

func newTestService(t *testing.T) (*Service, *fakeStore, *captureSink) {
	t.Helper()
	store := newFakeStore()
	sink := &captureSink{}
	svc := NewService(NewRegistry(nil), NewResultSink(store, nil), testConfig(), nil)
	svc.SetSink(sink)
	return svc, store, sink
}

func TestJoinAssignsSeatsThenWatchers(t *testing.T) {
	svc, _, sink := newTestService(t)
	m, err := svc.Registry().Create(domain.ModeRemote, "")
	require.NoError(t, err)

	p1, g, err := svc.Join(m.ID(), "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.MarkX, p1.Mark)
	assert.Equal(t, domain.RolePlayer, p1.Role)
	assert.Equal(t, domain.MarkNone, g.Current)

	p2, g, err := svc.Join(m.ID(), "u2")
	require.NoError(t, err)
	assert.Equal(t, domain.MarkO, p2.Mark)
	assert.Equal(t, domain.MarkX, g.Current, "X opens once both seats are filled")

	p3, g, err := svc.Join(m.ID(), "u3")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleWatcher, p3.Role)
	assert.Equal(t, 1, g.Watchers)

	assert.Equal(t, []EventKind{EventPlayerJoined, EventPlayerJoined, EventPlayerJoined}, sink.kinds())
}

func TestJoinComputerMatchSeatsEngine(t *testing.T) {
	svc, _, _ := newTestService(t)
	m, err := svc.Registry().Create(domain.ModeAI, domain.DifficultyEasy)
	require.NoError(t, err)

	p, g, err := svc.Join(m.ID(), "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.MarkX, p.Mark)
	assert.Equal(t, domain.MarkX, g.Current)

	ai := g.Participant(AIParticipantID(m.ID()))
	require.NotNil(t, ai)
	assert.Equal(t, domain.MarkO, ai.Mark)
	assert.Equal(t, "Computer", ai.Name)
}

func TestRejoinKeepsSeat(t *testing.T) {
	svc, _, _ := newTestService(t)
	m, err := svc.Registry().Create(domain.ModeRemote, "")
	require.NoError(t, err)

	first, _, err := svc.Join(m.ID(), "u1")
	require.NoError(t, err)
	again, g, err := svc.Join(m.ID(), "u1")
	require.NoError(t, err)

	assert.Equal(t, first.Mark, again.Mark)
	assert.Len(t, g.Participants, 1)
}

func TestJoinMovesUserBetweenMatches(t *testing.T) {
	svc, _, _ := newTestService(t)
	old, err := svc.Registry().Create(domain.ModeRemote, "")
	require.NoError(t, err)
	next, err := svc.Registry().Create(domain.ModeRemote, "")
	require.NoError(t, err)

	_, _, err = svc.Join(old.ID(), "u1")
	require.NoError(t, err)
	_, _, err = svc.Join(old.ID(), "u2")
	require.NoError(t, err)

	_, g, err := svc.Join(next.ID(), "u1")
	require.NoError(t, err)
	assert.NotNil(t, g.Participant("u1"))

	oldSnap := old.Snapshot()
	assert.Nil(t, oldSnap.Participant("u1"), "user left the previous match")
}

func TestMakeMoveEnforcesTurnAndRole(t *testing.T) {
	svc, _, _ := newTestService(t)
	m, err := svc.Registry().Create(domain.ModeRemote, "")
	require.NoError(t, err)
	for _, uid := range []string{"u1", "u2", "u3"} {
		_, _, err = svc.Join(m.ID(), uid)
		require.NoError(t, err)
	}

	_, err = svc.MakeMove(m.ID(), domain.Move{PlayerID: "ghost", Board: 4, Cell: 4})
	assert.ErrorIs(t, err, ErrPlayerNotFound)

	_, err = svc.MakeMove(m.ID(), domain.Move{PlayerID: "u3", Board: 4, Cell: 4})
	assert.ErrorIs(t, err, ErrWatcherMove)

	_, err = svc.MakeMove(m.ID(), domain.Move{PlayerID: "u2", Board: 4, Cell: 4})
	assert.ErrorIs(t, err, ErrNotYourTurn)

	g, err := svc.MakeMove(m.ID(), domain.Move{PlayerID: "u1", Board: 4, Cell: 4})
	require.NoError(t, err)
	assert.Equal(t, domain.MarkO, g.Current)
	assert.Equal(t, domain.ActiveBoard(4), g.Active)
}

// seedNearWin rigs the board so the next X move on sub-board 8 decides the
// match 5-4 on sub-board count.
func seedNearWin(m *Match) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := m.game
	for b := 0; b < 4; b++ {
		for c := 0; c < 9; c++ {
			g.Board[b][c] = domain.MarkX
		}
	}
	for b := 4; b < 8; b++ {
		for c := 0; c < 9; c++ {
			g.Board[b][c] = domain.MarkO
		}
	}
	g.Board[8][0] = domain.MarkX
	g.Board[8][1] = domain.MarkX
	g.Board[8][3] = domain.MarkO
	g.Board[8][4] = domain.MarkO
	g.Active = domain.ActiveBoard(8)
	g.Current = domain.MarkX
	g.MoveCount = 60
}

func TestWinningMoveReportsResultOnce(t *testing.T) {
	svc, store, _ := newTestService(t)
	m, err := svc.Registry().Create(domain.ModeRemote, "")
	require.NoError(t, err)
	_, _, err = svc.Join(m.ID(), "u1")
	require.NoError(t, err)
	_, _, err = svc.Join(m.ID(), "u2")
	require.NoError(t, err)
	seedNearWin(m)

	g, err := svc.MakeMove(m.ID(), domain.Move{PlayerID: "u1", Board: 8, Cell: 2})
	require.NoError(t, err)
	assert.Equal(t, domain.MarkX, g.Winner)

	require.Eventually(t, func() bool {
		return len(store.recorded()) == 2
	}, time.Second, 5*time.Millisecond)

	byUser := make(map[string]ports.GameResult)
	for _, rec := range store.recorded() {
		byUser[rec.UserID] = rec
	}
	assert.Equal(t, ports.OutcomeWin, byUser["u1"].Outcome)
	assert.Equal(t, ports.OutcomeLoss, byUser["u2"].Outcome)
	assert.Equal(t, 5*61, byUser["u1"].DurationSeconds)

	_, err = svc.MakeMove(m.ID(), domain.Move{PlayerID: "u2", Board: 0, Cell: 0})
	assert.ErrorIs(t, err, domain.ErrGameOver)
	assert.Len(t, store.recorded(), 2, "no second report after the game ended")
}

func TestResetRestoresBoardAndWinnerOpens(t *testing.T) {
	svc, _, sink := newTestService(t)
	m, err := svc.Registry().Create(domain.ModeRemote, "")
	require.NoError(t, err)
	_, _, err = svc.Join(m.ID(), "u1")
	require.NoError(t, err)
	_, _, err = svc.Join(m.ID(), "u2")
	require.NoError(t, err)
	seedNearWin(m)

	_, err = svc.MakeMove(m.ID(), domain.Move{PlayerID: "u1", Board: 8, Cell: 2})
	require.NoError(t, err)

	require.NoError(t, svc.Reset(m.ID(), "u2"))
	g := m.Snapshot()
	assert.Equal(t, domain.MarkNone, g.Winner)
	assert.Zero(t, g.MoveCount)
	assert.Equal(t, domain.ActiveAny, g.Active)
	assert.Equal(t, domain.MarkX, g.Current, "previous winner opens the next game")
	assert.Len(t, g.Participants, 2, "players survive a reset")

	kinds := sink.kinds()
	assert.Equal(t, EventGameReset, kinds[len(kinds)-1])
}

func TestResetAfterComputerWinSchedulesEngine(t *testing.T) {
	svc, _, _ := newTestService(t)
	m, err := svc.Registry().Create(domain.ModeAI, domain.DifficultyEasy)
	require.NoError(t, err)
	_, _, err = svc.Join(m.ID(), "u1")
	require.NoError(t, err)

	m.mu.Lock()
	m.game.Winner = domain.MarkO
	m.mu.Unlock()

	require.NoError(t, svc.Reset(m.ID(), "u1"))

	// The computer opens the next game, so the engine must move without a
	// human move to trigger it.
	require.Eventually(t, func() bool {
		g := m.Snapshot()
		return g.MoveCount == 1 && g.Current == domain.MarkX
	}, 2*time.Second, 10*time.Millisecond)
}

func TestResetRejectsWatchersAndConcurrentResets(t *testing.T) {
	svc, _, _ := newTestService(t)
	m, err := svc.Registry().Create(domain.ModeRemote, "")
	require.NoError(t, err)
	_, _, err = svc.Join(m.ID(), "u1")
	require.NoError(t, err)
	_, _, err = svc.Join(m.ID(), "u2")
	require.NoError(t, err)
	_, _, err = svc.Join(m.ID(), "u3")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Reset(m.ID(), "u3"), ErrNotPlayer)
	assert.ErrorIs(t, svc.Reset(m.ID(), "ghost"), ErrNotPlayer)

	m.resetting.Store(true)
	assert.ErrorIs(t, svc.Reset(m.ID(), "u1"), ErrResetInProgress)
	m.resetting.Store(false)
	assert.NoError(t, svc.Reset(m.ID(), "u1"))
}

func TestLeaveDestroysAbandonedMatch(t *testing.T) {
	svc, _, _ := newTestService(t)
	var closedMu sync.Mutex
	var closed []string
	svc.SetCloser(func(matchID string) {
		closedMu.Lock()
		closed = append(closed, matchID)
		closedMu.Unlock()
	})

	m, err := svc.Registry().Create(domain.ModeRemote, "")
	require.NoError(t, err)
	_, _, err = svc.Join(m.ID(), "u1")
	require.NoError(t, err)
	_, _, err = svc.Join(m.ID(), "u2")
	require.NoError(t, err)
	_, _, err = svc.Join(m.ID(), "u3")
	require.NoError(t, err)

	require.NoError(t, svc.Leave(m.ID(), "u3"))
	assert.Equal(t, 1, svc.Registry().Len(), "a watcher leaving keeps the match alive")

	require.NoError(t, svc.Leave(m.ID(), "u1"))
	require.NoError(t, svc.Leave(m.ID(), "u2"))
	assert.Zero(t, svc.Registry().Len())

	closedMu.Lock()
	defer closedMu.Unlock()
	assert.Equal(t, []string{m.ID()}, closed)
}

func TestComputerRepliesAfterHumanMove(t *testing.T) {
	svc, _, _ := newTestService(t)
	m, err := svc.Registry().Create(domain.ModeAI, domain.DifficultyEasy)
	require.NoError(t, err)
	_, _, err = svc.Join(m.ID(), "u1")
	require.NoError(t, err)

	_, err = svc.MakeMove(m.ID(), domain.Move{PlayerID: "u1", Board: 4, Cell: 4})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		g := m.Snapshot()
		return g.MoveCount == 2 && g.Current == domain.MarkX
	}, 2*time.Second, 10*time.Millisecond)

	g := m.Snapshot()
	require.NoError(t, domain.ValidateMove(g, firstLegalMove(g)), "board stays playable after the reply")
}

func firstLegalMove(g *domain.Game) domain.Move {
	legal := domain.LegalCells(&g.Board, g.Active)
	return domain.Move{PlayerID: "u1", Board: legal[0].Board, Cell: legal[0].Cell}
}
