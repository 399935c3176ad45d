// Package ws is the websocket transport: it upgrades connections, fans match
// events out to every socket attached to a game, and keeps connections honest
// with a ping/pong heartbeat.
package ws

import (
	"supertictactoe/internal/app"
	"supertictactoe/internal/domain"
)

// Client frame types.
const (
	frameJoinGame  = "join_game"
	frameMakeMove  = "make_move"
	frameResetGame = "reset_game"
	frameLeave     = "leave"
	framePing      = "ping"
	framePong      = "pong"
)

// clientFrame is the envelope for every client message.
type clientFrame struct {
	Type      string     `json:"type"`
	Move      *moveFrame `json:"move,omitempty"`
	UserID    string     `json:"userId,omitempty"`
	Timestamp int64      `json:"timestamp,omitempty"`
}

// moveFrame addresses one cell: the sub-board, then the cell within it.
type moveFrame struct {
	PlayerID         string `json:"playerId"`
	GlobalBoardIndex int    `json:"global_board_index"`
	LocalBoardIndex  int    `json:"local_board_index"`
}

// playerFrame is one participant as shown to clients.
type playerFrame struct {
	ID        string  `json:"id"`
	Symbol    *string `json:"symbol"`
	Status    string  `json:"status"`
	JoinOrder int     `json:"join_order"`
}

// gameStateFrame is the full board view embedded in every update. Empty
// cells are null; a decided sub-board shows its winner's mark in all nine.
type gameStateFrame struct {
	GlobalBoard   [9][9]*string `json:"global_board"`
	ActiveBoard   *int          `json:"active_board"`
	MoveCount     int           `json:"move_count"`
	Winner        *string       `json:"winner"`
	CurrentPlayer *string       `json:"current_player"`
	Players       []playerFrame `json:"players"`
}

type playerJoinedFrame struct {
	Type          string         `json:"type"`
	GameID        string         `json:"gameId"`
	UserID        string         `json:"userId"`
	Symbol        *string        `json:"symbol"`
	Status        string         `json:"status"`
	Mode          string         `json:"mode"`
	AIDifficulty  string         `json:"ai_difficulty,omitempty"`
	WatchersCount int            `json:"watchers_count"`
	GameState     gameStateFrame `json:"game_state"`
}

type gameUpdateFrame struct {
	Type      string         `json:"type"`
	GameID    string         `json:"gameId"`
	UserID    string         `json:"userId,omitempty"`
	GameState gameStateFrame `json:"game_state"`
}

type gameResetFrame struct {
	Type      string         `json:"type"`
	GameID    string         `json:"gameId"`
	Message   string         `json:"message,omitempty"`
	GameState gameStateFrame `json:"game_state"`
}

type watchersUpdateFrame struct {
	Type          string `json:"type"`
	GameID        string `json:"gameId"`
	WatchersCount int    `json:"watchers_count"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type pingFrame struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// pongFrame echoes the timestamp of the ping it answers.
type pongFrame struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

func errFrame(msg string) errorFrame {
	return errorFrame{Type: "error", Message: msg}
}

func markPtr(m domain.Mark) *string {
	if m == domain.MarkNone {
		return nil
	}
	s := string(m)
	return &s
}

func gameStateOf(g *domain.Game) gameStateFrame {
	var f gameStateFrame
	for b := range g.Board {
		for c := range g.Board[b] {
			f.GlobalBoard[b][c] = markPtr(g.Board[b][c])
		}
	}
	if g.Active != domain.ActiveAny {
		a := int(g.Active)
		f.ActiveBoard = &a
	}
	f.MoveCount = g.MoveCount
	f.Winner = markPtr(g.Winner)
	f.CurrentPlayer = markPtr(g.Current)

	f.Players = make([]playerFrame, 0, len(g.Participants))
	for _, p := range g.Participants {
		f.Players = append(f.Players, playerFrame{
			ID:        p.ID,
			Symbol:    markPtr(p.Mark),
			Status:    string(p.Role),
			JoinOrder: p.JoinOrder,
		})
	}
	return f
}

// frameForEvent renders a match event into its wire frame.
func frameForEvent(matchID string, ev app.Event) any {
	switch ev.Kind {
	case app.EventPlayerJoined:
		f := playerJoinedFrame{
			Type:          string(ev.Kind),
			GameID:        matchID,
			Mode:          string(ev.Game.Mode),
			AIDifficulty:  string(ev.Game.Difficulty),
			WatchersCount: ev.Game.Watchers,
			GameState:     gameStateOf(ev.Game),
		}
		if ev.Participant != nil {
			f.UserID = ev.Participant.ID
			f.Symbol = markPtr(ev.Participant.Mark)
			f.Status = string(ev.Participant.Role)
		}
		return f

	case app.EventGameReset:
		return gameResetFrame{
			Type:      string(ev.Kind),
			GameID:    matchID,
			Message:   ev.Message,
			GameState: gameStateOf(ev.Game),
		}

	case app.EventWatchersUpdate:
		return watchersUpdateFrame{
			Type:          string(ev.Kind),
			GameID:        matchID,
			WatchersCount: ev.Game.Watchers,
		}

	default:
		f := gameUpdateFrame{
			Type:      string(app.EventGameUpdate),
			GameID:    matchID,
			GameState: gameStateOf(ev.Game),
		}
		if ev.Participant != nil {
			f.UserID = ev.Participant.ID
		}
		return f
	}
}
