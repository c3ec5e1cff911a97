// Package identity is the engine's view of the user system. User CRUD,
// authentication and profile storage live elsewhere; the realtime core only
// ever needs to turn a player id into a display profile.
package identity

import (
	"context"
	"errors"
	"sync"
)

// ErrUnknownPlayer is returned when no profile exists for a player id.
var ErrUnknownPlayer = errors.New("unknown player")

// Profile is the display identity of a player.
type Profile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Resolver turns a player id into a display profile.
type Resolver interface {
	Resolve(ctx context.Context, playerID string) (Profile, error)
}

// Directory is an in-memory Resolver, used in tests and as a stand-in until
// a real user service is wired up.
type Directory struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{profiles: make(map[string]Profile)}
}

// Put registers or replaces a profile.
func (d *Directory) Put(p Profile) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.profiles[p.ID] = p
}

// Resolve implements Resolver.
func (d *Directory) Resolve(ctx context.Context, playerID string) (Profile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.profiles[playerID]
	if !ok {
		return Profile{}, ErrUnknownPlayer
	}
	return p, nil
}

// Synthesized resolves every player id to a generated display name. Useful
// when the server runs without a user service behind it.
type Synthesized struct{}

// Resolve implements Resolver.
func (Synthesized) Resolve(ctx context.Context, playerID string) (Profile, error) {
	if playerID == "" {
		return Profile{}, ErrUnknownPlayer
	}
	return Profile{ID: playerID, Name: "Player " + playerID}, nil
}
