package app

import (
	"context"

	"supertictactoe/internal/domain"
	"supertictactoe/internal/ports"

	"go.uber.org/zap"
)

// Scoring constants. Wins pay out more with a larger sub-board margin;
// losses are softened when the game was close.
const (
	winPoints        = 25
	winBonusMargin3  = 5
	winBonusMargin5  = 10
	lossPoints       = -10
	lossRebateClose2 = 3
	lossRebateClose1 = 5
	tiePoints        = 5

	// The server does not track wall-clock game time; report a rough
	// estimate from the move count instead.
	secondsPerMove = 5
)

// ResultSink records finished human-vs-human games against the user/stats
// store. Persistence is best-effort: failures are logged, never surfaced
// to gameplay.
type ResultSink struct {
	store ports.UserStore
	log   *zap.Logger
}

// NewResultSink wires the sink to a store.
func NewResultSink(store ports.UserStore, log *zap.Logger) *ResultSink {
	if log == nil {
		log = zap.NewNop()
	}
	return &ResultSink{store: store, log: log}
}

// Report writes one result record per seated player of the terminal game
// snapshot. Computer-mode games never touch user stats.
func (rs *ResultSink) Report(ctx context.Context, g *domain.Game) {
	if rs.store == nil || g.Mode != domain.ModeRemote || !g.Terminal() {
		return
	}

	xWins, oWins := domain.SubBoardWins(&g.Board)
	duration := secondsPerMove * g.MoveCount

	for _, p := range g.Participants {
		if p.Role != domain.RolePlayer || p.ID == "" {
			continue
		}

		outcome, points := scoreFor(p.Mark, g.Winner, xWins, oWins)
		rec := ports.GameResult{
			UserID:          p.ID,
			Outcome:         outcome,
			OpponentName:    rs.opponentName(ctx, g, p),
			DurationSeconds: duration,
			PointsDelta:     points,
		}
		if err := rs.store.RecordGameResult(ctx, rec); err != nil {
			rs.log.Error("failed to record game result",
				zap.String("game_id", g.ID),
				zap.String("user_id", p.ID),
				zap.Error(err))
		}
	}
}

// scoreFor computes the outcome and points delta for the player holding
// mark, given the match winner and the sub-board tallies.
func scoreFor(mark, winner domain.Mark, xWins, oWins int) (ports.GameOutcome, int) {
	if winner == domain.MarkTie {
		return ports.OutcomeDraw, tiePoints
	}

	own, opp := xWins, oWins
	if mark == domain.MarkO {
		own, opp = oWins, xWins
	}

	if winner == mark {
		points := winPoints
		switch margin := own - opp; {
		case margin >= 5:
			points += winBonusMargin5
		case margin >= 3:
			points += winBonusMargin3
		}
		return ports.OutcomeWin, points
	}

	points := lossPoints
	switch deficit := opp - own; {
	case deficit <= 1:
		points += lossRebateClose1
	case deficit <= 2:
		points += lossRebateClose2
	}
	return ports.OutcomeLoss, points
}

// opponentName resolves the display name of p's opponent from the store,
// falling back to "Unknown".
func (rs *ResultSink) opponentName(ctx context.Context, g *domain.Game, p *domain.Participant) string {
	opp := g.PlayerByMark(p.Mark.Opponent())
	if opp == nil {
		return "Unknown"
	}
	u, err := rs.store.GetUser(ctx, opp.ID)
	if err != nil || u.Name == "" {
		return "Unknown"
	}
	return u.Name
}
