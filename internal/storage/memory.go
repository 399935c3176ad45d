package storage

import (
	"context"
	"sync"

	"supertictactoe/internal/ports"
)

// MemoryStore is the in-process store used when no data directory is
// configured, and in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	users   map[string]*ports.User
	history map[string][]ports.GameResult
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[string]*ports.User),
		history: make(map[string][]ports.GameResult),
	}
}

// SaveUser writes or replaces a profile.
func (s *MemoryStore) SaveUser(ctx context.Context, u *ports.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

// GetUser returns a copy of the profile for id.
func (s *MemoryStore) GetUser(ctx context.Context, id string) (*ports.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ports.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

// RecordGameResult folds one finished game into the user's counters and
// appends it to the history. An unknown user gets a fresh profile first.
func (s *MemoryStore) RecordGameResult(ctx context.Context, rec ports.GameResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[rec.UserID]
	if !ok {
		u = &ports.User{ID: rec.UserID}
		s.users[rec.UserID] = u
	}
	applyResult(u, rec)
	s.history[rec.UserID] = append(s.history[rec.UserID], rec)
	return nil
}

// History returns the recorded games for id, oldest first.
func (s *MemoryStore) History(id string) []ports.GameResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ports.GameResult, len(s.history[id]))
	copy(out, s.history[id])
	return out
}
