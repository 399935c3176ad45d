// Package onboarding provisions a stats profile for users the store has
// never seen. Players connect with nothing but an opaque id, so first
// contact assigns a generated guest name that later shows up as the
// opponent name in game history.
package onboarding

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"supertictactoe/internal/ports"
)

// ProfileStore is the slice of the user store onboarding needs.
type ProfileStore interface {
	GetUser(ctx context.Context, id string) (*ports.User, error)
	SaveUser(ctx context.Context, u *ports.User) error
}

// Service creates profiles for first-time users.
type Service struct {
	profiles ProfileStore
	rng      *rand.Rand
}

// NewService constructs the onboarding service. profiles must be non-nil;
// rng may be nil to use a time-seeded default.
func NewService(profiles ProfileStore, rng *rand.Rand) *Service {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Service{profiles: profiles, rng: rng}
}

// EnsureProfile returns the user's profile, creating one with a generated
// guest name when the store has no record. created reports whether a new
// profile was written.
func (s *Service) EnsureProfile(ctx context.Context, userID string) (*ports.User, bool, error) {
	if s.profiles == nil {
		return nil, false, fmt.Errorf("onboarding service not configured")
	}

	u, err := s.profiles.GetUser(ctx, userID)
	switch {
	case err == nil:
		return u, false, nil
	case !errors.Is(err, ports.ErrUserNotFound):
		return nil, false, err
	}

	u = &ports.User{ID: userID, Name: s.generateGuestName()}
	if err := s.profiles.SaveUser(ctx, u); err != nil {
		return nil, false, fmt.Errorf("failed to create profile: %w", err)
	}
	return u, true, nil
}

func (s *Service) generateGuestName() string {
	adjectives := []string{"Happy", "Shiny", "Brave", "Clever", "Swift", "Calm", "Mighty", "Witty", "Sly", "Wild"}
	nouns := []string{"Panda", "Tiger", "Eagle", "Dolphin", "Wolf", "Otter", "Falcon", "Bear", "Fox", "Lion"}

	adj := adjectives[s.rng.Intn(len(adjectives))]
	noun := nouns[s.rng.Intn(len(nouns))]
	num := s.rng.Intn(9000) + 1000

	return fmt.Sprintf("%s%s%d", adj, noun, num)
}
