package domain

import "time"

// Mark identifies which side occupies a cell or wins a board.
// The zero value MarkNone means "unset".
type Mark string

const (
	MarkNone Mark = ""
	MarkX    Mark = "X"
	MarkO    Mark = "O"
	// MarkTie is only ever used as a terminal marker on a completed
	// sub-board or match, never written into a cell.
	MarkTie Mark = "T"
)

// Opponent returns the other playing mark. Only meaningful for X and O.
func (m Mark) Opponent() Mark {
	if m == MarkX {
		return MarkO
	}
	return MarkX
}

// Mode distinguishes two-human matches from matches against the engine.
type Mode string

const (
	// ModeRemote is a human-vs-human match.
	ModeRemote Mode = "remote"
	// ModeAI is a human-vs-computer match.
	ModeAI Mode = "ai"
)

// Difficulty selects the strength of the computer opponent.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Valid reports whether d is one of the recognised difficulty levels.
func (d Difficulty) Valid() bool {
	return d == DifficultyEasy || d == DifficultyMedium || d == DifficultyHard
}

// LocalBoard is one 3x3 sub-board, cells indexed 0..8 row-major.
// A completed sub-board has every cell overwritten with its winner's mark,
// so "full" and "decided" coincide.
type LocalBoard [9]Mark

// Full reports whether every cell is set.
func (b *LocalBoard) Full() bool {
	for _, c := range b {
		if c == MarkNone {
			return false
		}
	}
	return true
}

// MetaBoard is the 3x3 arrangement of sub-boards, indexed 0..8.
type MetaBoard [9]LocalBoard

// ActiveBoard constrains where the next move must land.
type ActiveBoard int

// ActiveAny permits the next move in any sub-board with an empty cell.
const ActiveAny ActiveBoard = -1

// Role separates the two seated players from spectators.
type Role string

const (
	RolePlayer  Role = "PLAYER"
	RoleWatcher Role = "WATCHER"
)

// Participant is a user (or the computer) attached to a match.
type Participant struct {
	ID        string
	Name      string
	Mark      Mark // MarkNone for watchers
	Role      Role
	JoinOrder int
}

// Move is a single placement request.
type Move struct {
	PlayerID string
	Board    int // sub-board index 0..8
	Cell     int // cell index 0..8 within the sub-board
}

// Game is the authoritative state of one match. Mutation is serialized by
// the owning match executor; Game itself carries no locking.
type Game struct {
	ID           string
	Mode         Mode
	Difficulty   Difficulty // only meaningful when Mode == ModeAI
	Board        MetaBoard
	Active       ActiveBoard
	Current      Mark // whose turn it is; MarkNone before both players joined
	Winner       Mark // MarkNone until terminal
	MoveCount    int
	Watchers     int
	Participants []*Participant
	LastMoveAt   time.Time
	CreatedAt    time.Time
}

// NewGame returns an empty match in the given mode.
func NewGame(id string, mode Mode, difficulty Difficulty, now time.Time) *Game {
	return &Game{
		ID:         id,
		Mode:       mode,
		Difficulty: difficulty,
		Active:     ActiveAny,
		CreatedAt:  now,
	}
}

// Participant returns the participant with the given id, or nil.
func (g *Game) Participant(id string) *Participant {
	for _, p := range g.Participants {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// PlayerByMark returns the seated player holding the given mark, or nil.
func (g *Game) PlayerByMark(m Mark) *Participant {
	for _, p := range g.Participants {
		if p.Role == RolePlayer && p.Mark == m {
			return p
		}
	}
	return nil
}

// PlayerCount returns the number of participants seated as players.
func (g *Game) PlayerCount() int {
	n := 0
	for _, p := range g.Participants {
		if p.Role == RolePlayer {
			n++
		}
	}
	return n
}

// RemoveParticipant deletes the participant with the given id and reports
// whether one was removed.
func (g *Game) RemoveParticipant(id string) bool {
	for i, p := range g.Participants {
		if p.ID == id {
			g.Participants = append(g.Participants[:i], g.Participants[i+1:]...)
			return true
		}
	}
	return false
}

// Terminal reports whether the match has been decided.
func (g *Game) Terminal() bool {
	return g.Winner != MarkNone
}

// ClearBoard resets board state for a fresh game while keeping participants
// and the watcher counter. Current is left untouched; the caller decides who
// opens the next game.
func (g *Game) ClearBoard() {
	g.Board = MetaBoard{}
	g.Active = ActiveAny
	g.Winner = MarkNone
	g.MoveCount = 0
	g.LastMoveAt = time.Time{}
}

// Clone returns a deep copy of the game, safe to hand to the search engine
// or a serializer while the original keeps mutating under its executor.
func (g *Game) Clone() *Game {
	cp := *g
	cp.Participants = make([]*Participant, len(g.Participants))
	for i, p := range g.Participants {
		pc := *p
		cp.Participants[i] = &pc
	}
	return &cp
}
