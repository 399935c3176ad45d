package bot

import (
	"context"
	"math"

	"supertictactoe/internal/domain"
)

// Score function constants. Terminal scores dominate any heuristic sum so a
// forced win is always preferred over a good-looking position.
const (
	terminalScore    = 100
	patternTwoScore  = 20
	patternOneScore  = 2
)

// position is a lightweight board snapshot the search can copy by value.
type position struct {
	board  domain.MetaBoard
	active domain.ActiveBoard
	winner domain.Mark
}

// play returns the successor position after mark moves on c, including the
// sub-board collapse and the derived active-board constraint.
func (p position) play(c domain.CellRef, mark domain.Mark) position {
	p.board[c.Board][c.Cell] = mark
	if w := domain.LocalWinner(&p.board[c.Board]); w == domain.MarkX || w == domain.MarkO {
		for i := range p.board[c.Board] {
			p.board[c.Board][i] = w
		}
	}
	p.winner = domain.MetaWinner(&p.board)
	p.active = domain.NextActiveBoard(c.Cell, &p.board, p.winner)
	return p
}

// searchMove runs depth-limited minimax with alpha-beta pruning from the
// current position and returns the best root move found. Cancellation is
// checked between child expansions; whatever was evaluated so far wins,
// with the first legal move as the floor.
func (e *Engine) searchMove(ctx context.Context, g *domain.Game, legal []domain.CellRef) domain.Move {
	root := position{board: g.Board, active: g.Active, winner: g.Winner}

	best := legal[0]
	bestScore := math.MinInt
	alpha, beta := math.MinInt, math.MaxInt

	for _, c := range legal {
		if ctx.Err() != nil {
			break
		}
		score, ok := e.minimax(ctx, root.play(c, e.mark), hardSearchDepth, alpha, beta, false)
		if !ok {
			break
		}
		if score > bestScore {
			bestScore = score
			best = c
		}
		if score > alpha {
			alpha = score
		}
	}

	return domain.Move{Board: best.Board, Cell: best.Cell}
}

// minimax returns the score of p searched to the given remaining depth.
// ok is false when the context was cancelled mid-search and the score
// must not be trusted.
func (e *Engine) minimax(ctx context.Context, p position, depth, alpha, beta int, maximizing bool) (score int, ok bool) {
	switch p.winner {
	case e.mark:
		return terminalScore + depth, true
	case e.human:
		return -terminalScore - depth, true
	case domain.MarkTie:
		return 0, true
	}
	if depth == 0 {
		return e.evaluate(&p.board), true
	}

	legal := domain.LegalCells(&p.board, p.active)
	if len(legal) == 0 {
		return 0, true
	}

	if maximizing {
		best := math.MinInt
		for _, c := range legal {
			if ctx.Err() != nil {
				return 0, false
			}
			s, ok := e.minimax(ctx, p.play(c, e.mark), depth-1, alpha, beta, false)
			if !ok {
				return 0, false
			}
			if s > best {
				best = s
			}
			if s > alpha {
				alpha = s
			}
			if beta <= alpha {
				break
			}
		}
		return best, true
	}

	best := math.MaxInt
	for _, c := range legal {
		if ctx.Err() != nil {
			return 0, false
		}
		s, ok := e.minimax(ctx, p.play(c, e.human), depth-1, alpha, beta, true)
		if !ok {
			return 0, false
		}
		if s < best {
			best = s
		}
		if s < beta {
			beta = s
		}
		if beta <= alpha {
			break
		}
	}
	return best, true
}

// evaluate scores a non-terminal position as a sum over every three-in-a-row
// pattern of every sub-board: lines with two own marks and an empty cell are
// strong, single marks on an otherwise open line are mildly good, mixed
// lines are dead.
func (e *Engine) evaluate(m *domain.MetaBoard) int {
	score := 0
	for b := range m {
		for _, pat := range [8][3]int{
			{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
			{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
			{0, 4, 8}, {2, 4, 6},
		} {
			var own, opp, empty int
			for _, i := range pat {
				switch m[b][i] {
				case e.mark:
					own++
				case e.human:
					opp++
				default:
					empty++
				}
			}
			switch {
			case own == 2 && opp == 0 && empty == 1:
				score += patternTwoScore
			case own == 1 && opp == 0 && empty == 2:
				score += patternOneScore
			case opp == 2 && own == 0 && empty == 1:
				score -= patternTwoScore
			case opp == 1 && own == 0 && empty == 2:
				score -= patternOneScore
			}
		}
	}
	return score
}
