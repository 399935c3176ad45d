package app

import "supertictactoe/internal/domain"

// EventKind names the state-update messages a match emits.
type EventKind string

const (
	EventPlayerJoined   EventKind = "player_joined"
	EventGameUpdate     EventKind = "game_update"
	EventGameReset      EventKind = "game_reset"
	EventWatchersUpdate EventKind = "watchers_update"
)

// Event is one state update produced by a match transition. Game is a
// snapshot cloned under the match executor; sinks may keep it.
type Event struct {
	Kind        EventKind
	Game        *domain.Game
	Participant *domain.Participant // joiner or mover, when the event has one
	Message     string              // human-readable note, for EventGameReset
}

// Sink receives match events for fan-out. Publish is called while the match
// executor holds the match, so implementations must not block: hand the
// event to per-connection queues and return.
type Sink interface {
	Publish(matchID string, ev Event)
}

// discardSink drops events. Used until a transport is wired and in tests
// that do not care about broadcasts.
type discardSink struct{}

func (discardSink) Publish(string, Event) {}
