// Package storage provides the persistent and in-memory implementations of
// the user/stats store.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"supertictactoe/internal/ports"

	"github.com/dgraph-io/badger/v4"
)

// Key layout. Profiles live under one key per user; every finished game
// adds an immutable history record.
const (
	userKeyPrefix    = "user:"
	historyKeyPrefix = "history:"
)

// BadgerStore keeps user profiles and game history in a BadgerDB directory.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens (or creates) the store at dir.
func OpenBadger(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger at %s: %w", dir, err)
	}
	return &BadgerStore{db: db}, nil
}

// Close closes the database.
func (s *BadgerStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func userKey(id string) []byte { return []byte(userKeyPrefix + id) }

func historyKey(id string, at time.Time) []byte {
	return []byte(historyKeyPrefix + id + ":" + strconv.FormatInt(at.UnixNano(), 10))
}

// GetUser returns the stored profile for id.
func (s *BadgerStore) GetUser(ctx context.Context, id string) (*ports.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var u ports.User
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ports.ErrUserNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &u)
		})
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// SaveUser writes or replaces a profile.
func (s *BadgerStore) SaveUser(ctx context.Context, u *ports.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(userKey(u.ID), data)
	})
}

// RecordGameResult folds one finished game into the user's counters and
// appends a history record, all inside a single transaction. An unknown
// user gets a fresh profile first.
func (s *BadgerStore) RecordGameResult(ctx context.Context, rec ports.GameResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		u := ports.User{ID: rec.UserID}
		item, err := txn.Get(userKey(rec.UserID))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			// First recorded game for this user.
		case err != nil:
			return err
		default:
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &u)
			}); err != nil {
				return err
			}
		}

		applyResult(&u, rec)

		profile, err := json.Marshal(&u)
		if err != nil {
			return err
		}
		if err := txn.Set(userKey(rec.UserID), profile); err != nil {
			return err
		}

		history, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return txn.Set(historyKey(rec.UserID, time.Now()), history)
	})
}

// applyResult folds one game into the aggregate counters. Points are
// clamped at zero.
func applyResult(u *ports.User, rec ports.GameResult) {
	switch rec.Outcome {
	case ports.OutcomeWin:
		u.Wins++
	case ports.OutcomeLoss:
		u.Losses++
	case ports.OutcomeDraw:
		u.Draws++
	}
	u.Points += rec.PointsDelta
	if u.Points < 0 {
		u.Points = 0
	}
}
