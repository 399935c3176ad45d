package app

import "errors"

var (
	// ErrMatchNotFound rejects operations on unknown match ids.
	ErrMatchNotFound = errors.New("game not found")
	// ErrPlayerNotFound rejects moves by ids that are not participants.
	ErrPlayerNotFound = errors.New("player not found")
	// ErrNotYourTurn rejects moves by the player whose mark is not current.
	ErrNotYourTurn = errors.New("not your turn")
	// ErrWatcherMove rejects moves from spectators.
	ErrWatcherMove = errors.New("watchers cannot make moves")
	// ErrNotPlayer rejects privileged operations from non-players.
	ErrNotPlayer = errors.New("only players can reset the game")
	// ErrResetInProgress rejects a second concurrent reset on one match.
	ErrResetInProgress = errors.New("reset already in progress")
	// ErrMatchExists rejects pre-populated creation on a taken id.
	ErrMatchExists = errors.New("game id already in use")
	// ErrBadDifficulty rejects unknown difficulty labels.
	ErrBadDifficulty = errors.New("unknown ai difficulty")
)
