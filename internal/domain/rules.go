package domain

import (
	"errors"
	"time"
)

var (
	// ErrGameOver rejects a move after the match is decided.
	ErrGameOver = errors.New("game already won")
	// ErrCellOccupied rejects a move onto a set cell.
	ErrCellOccupied = errors.New("cell already occupied")
	// ErrWrongBoard rejects a move outside the active sub-board.
	ErrWrongBoard = errors.New("invalid board selected")
	// ErrBadIndex rejects board or cell indices outside 0..8.
	ErrBadIndex = errors.New("board and cell indices must be in 0..8")
)

// winPatterns are the 8 three-in-a-row lines of a 3x3 grid:
// 3 rows, 3 columns, 2 diagonals.
var winPatterns = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

// LocalWinner returns X or O if a line is held, MarkTie if the board is full
// without a line, and MarkNone otherwise.
func LocalWinner(b *LocalBoard) Mark {
	for _, pat := range winPatterns {
		a := b[pat[0]]
		if a != MarkNone && a != MarkTie && a == b[pat[1]] && a == b[pat[2]] {
			return a
		}
	}
	if b.Full() {
		return MarkTie
	}
	return MarkNone
}

// MetaWinner returns the match outcome under the count-majority rule: the
// match stays open while any sub-board is undecided; once all nine are
// decided, whoever won strictly more sub-boards wins, otherwise it is a tie.
func MetaWinner(m *MetaBoard) Mark {
	xWins, oWins := 0, 0
	for i := range m {
		w := LocalWinner(&m[i])
		switch w {
		case MarkNone:
			return MarkNone
		case MarkX:
			xWins++
		case MarkO:
			oWins++
		}
	}
	switch {
	case xWins > oWins:
		return MarkX
	case oWins > xWins:
		return MarkO
	default:
		return MarkTie
	}
}

// SubBoardWins counts decided sub-boards per mark, used for scoring margins.
func SubBoardWins(m *MetaBoard) (xWins, oWins int) {
	for i := range m {
		switch LocalWinner(&m[i]) {
		case MarkX:
			xWins++
		case MarkO:
			oWins++
		}
	}
	return xWins, oWins
}

// NextActiveBoard derives the constraint for the move after one landed on
// cell lastCell. A decided target relaxes the constraint to ActiveAny; a
// decided match has no next move, which ActiveAny also covers.
func NextActiveBoard(lastCell int, m *MetaBoard, winner Mark) ActiveBoard {
	if winner != MarkNone {
		return ActiveAny
	}
	if m[lastCell].Full() {
		return ActiveAny
	}
	return ActiveBoard(lastCell)
}

// ValidateMove checks a move against board state: match still open, target
// cell empty, active-sub-board constraint honoured. Turn ownership is the
// caller's concern.
func ValidateMove(g *Game, mv Move) error {
	if mv.Board < 0 || mv.Board > 8 || mv.Cell < 0 || mv.Cell > 8 {
		return ErrBadIndex
	}
	if g.Terminal() {
		return ErrGameOver
	}
	if g.Board[mv.Board][mv.Cell] != MarkNone {
		return ErrCellOccupied
	}
	if g.Active != ActiveAny && ActiveBoard(mv.Board) != g.Active {
		return ErrWrongBoard
	}
	return nil
}

// Apply writes an already validated move for the given mark and advances all
// derived state: the sub-board collapse, turn flip, move counter, meta
// winner, and active-board constraint.
func (g *Game) Apply(mv Move, mark Mark, now time.Time) {
	g.Board[mv.Board][mv.Cell] = mark
	g.Current = mark.Opponent()
	g.MoveCount++
	g.LastMoveAt = now

	// A won sub-board is frozen by overwriting every cell with the winner,
	// which makes it indistinguishable from a filled one on meta lookups.
	if w := LocalWinner(&g.Board[mv.Board]); w == MarkX || w == MarkO {
		for i := range g.Board[mv.Board] {
			g.Board[mv.Board][i] = w
		}
	}

	g.Winner = MetaWinner(&g.Board)
	g.Active = NextActiveBoard(mv.Cell, &g.Board, g.Winner)
}
