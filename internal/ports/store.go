// Package ports declares the interfaces through which the game core talks
// to external collaborators. Adapters live in their own packages.
package ports

import (
	"context"
	"errors"
)

// ErrUserNotFound is returned by UserStore lookups for unknown ids.
var ErrUserNotFound = errors.New("user not found")

// GameOutcome is the result of a finished match from one user's view.
type GameOutcome string

const (
	OutcomeWin  GameOutcome = "WIN"
	OutcomeLoss GameOutcome = "LOSS"
	OutcomeDraw GameOutcome = "DRAW"
)

// User is the stats profile kept per external user id.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Wins   int    `json:"wins"`
	Losses int    `json:"losses"`
	Draws  int    `json:"draws"`
	Points int    `json:"points"`
}

// GameResult is one finished game as recorded against a single user.
type GameResult struct {
	UserID          string      `json:"user_id"`
	Outcome         GameOutcome `json:"result"`
	OpponentName    string      `json:"opponent_name,omitempty"`
	DurationSeconds int         `json:"duration_seconds"`
	PointsDelta     int         `json:"points_delta"`
}

// UserStore is the opaque user/stats store. Implementations must be safe
// for concurrent use; callers never hold match locks across these calls.
type UserStore interface {
	// GetUser returns the profile for id or ErrUserNotFound.
	GetUser(ctx context.Context, id string) (*User, error)

	// RecordGameResult appends a history record and folds the outcome
	// into the user's aggregate counters. Points never drop below zero.
	RecordGameResult(ctx context.Context, rec GameResult) error
}
