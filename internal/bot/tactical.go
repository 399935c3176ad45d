package bot

import "supertictactoe/internal/domain"

// tacticalMove returns the first candidate in deterministic priority order:
//
//  1. a move that completes a sub-board for the engine,
//  2. a move that would complete a sub-board for the human (a block),
//  3. a center cell of some legal sub-board,
//  4. a corner cell.
//
// The boolean is false when no candidate matches.
func (e *Engine) tacticalMove(m *domain.MetaBoard, legal []domain.CellRef) (domain.CellRef, bool) {
	for _, c := range legal {
		if completesSubBoard(m, c, e.mark) {
			return c, true
		}
	}
	for _, c := range legal {
		if completesSubBoard(m, c, e.human) {
			return c, true
		}
	}
	for _, c := range legal {
		if c.Cell == 4 {
			return c, true
		}
	}
	for _, c := range legal {
		switch c.Cell {
		case 0, 2, 6, 8:
			return c, true
		}
	}
	return domain.CellRef{}, false
}

// completesSubBoard reports whether placing mark on c makes a line in that
// sub-board.
func completesSubBoard(m *domain.MetaBoard, c domain.CellRef, mark domain.Mark) bool {
	b := m[c.Board]
	b[c.Cell] = mark
	return domain.LocalWinner(&b) == mark
}
