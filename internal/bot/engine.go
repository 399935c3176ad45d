package bot

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"supertictactoe/internal/domain"
)

// ErrNoMoves is returned when the position has no legal move left.
var ErrNoMoves = errors.New("no legal moves available")

// Tuning knobs for the difficulty mix. The random share is the probability
// of playing a uniformly random legal move instead of a tactical one.
const (
	easyRandomShare   = 0.7
	mediumRandomShare = 0.3
	hardSearchDepth   = 2
)

// Engine is the computer opponent. It is stateless across moves apart from
// its rng, so one instance per match is fine and instances are cheap.
type Engine struct {
	mark       domain.Mark // the engine's own mark
	human      domain.Mark
	difficulty domain.Difficulty
	rng        *rand.Rand
}

// NewEngine constructs an engine playing the given mark. A nil rng falls
// back to a time-seeded source.
func NewEngine(mark domain.Mark, difficulty domain.Difficulty, rng *rand.Rand) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Engine{
		mark:       mark,
		human:      mark.Opponent(),
		difficulty: difficulty,
		rng:        rng,
	}
}

// ChooseMove picks the engine's next move for the position in g.
//
// Easy plays mostly random, medium mostly tactical, hard plays tactical when
// a tactical candidate exists and otherwise runs a depth-limited alpha-beta
// search. The search cooperatively checks ctx between child expansions; on
// cancellation the best move evaluated so far is returned, falling back to
// the first legal move.
func (e *Engine) ChooseMove(ctx context.Context, g *domain.Game) (domain.Move, error) {
	legal := domain.LegalCells(&g.Board, g.Active)
	if len(legal) == 0 || g.Terminal() {
		return domain.Move{}, ErrNoMoves
	}

	pick := func(c domain.CellRef) domain.Move {
		return domain.Move{Board: c.Board, Cell: c.Cell}
	}

	switch e.difficulty {
	case domain.DifficultyEasy:
		if e.rng.Float64() < easyRandomShare {
			return pick(legal[e.rng.Intn(len(legal))]), nil
		}
		if c, ok := e.tacticalMove(&g.Board, legal); ok {
			return pick(c), nil
		}
		return pick(legal[e.rng.Intn(len(legal))]), nil

	case domain.DifficultyMedium:
		if e.rng.Float64() < mediumRandomShare {
			return pick(legal[e.rng.Intn(len(legal))]), nil
		}
		if c, ok := e.tacticalMove(&g.Board, legal); ok {
			return pick(c), nil
		}
		return pick(legal[e.rng.Intn(len(legal))]), nil

	default: // hard
		if c, ok := e.tacticalMove(&g.Board, legal); ok {
			return pick(c), nil
		}
		return e.searchMove(ctx, g, legal), nil
	}
}
