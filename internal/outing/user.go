// internal/outing/user.go
package outing

import (
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	minNameLen = 2
	maxNameLen = 50
)

// User is a registered participant. CurrentLobbyID is nil while the user is
// unattached; it is exclusive, a user belongs to at most one lobby or
// session at any time.
type User struct {
	ID             uuid.UUID `json:"user_id"`
	Name           string    `json:"name"`
	CurrentLobbyID *string   `json:"current_lobby_id"`
	IsHost         bool      `json:"is_host"`
	CreatedAt      time.Time `json:"created_at"`
}

// Registry tracks users in memory and enforces the single-membership
// invariant with atomic check-and-set on attach.
type Registry struct {
	mu    sync.Mutex
	users map[uuid.UUID]*User
}

// NewRegistry returns an empty user registry.
func NewRegistry() *Registry {
	return &Registry{
		users: make(map[uuid.UUID]*User),
	}
}

// CreateUser validates the display name, allocates an id, and stores the
// user unattached to any lobby.
func (r *Registry) CreateUser(name string) (*User, error) {
	if n := utf8.RuneCountInString(name); n < minNameLen || n > maxNameLen {
		return nil, fmt.Errorf("%w: name must be %d-%d characters, got %d", ErrInvalidInput, minNameLen, maxNameLen, n)
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("failed to generate user id: %w", err)
	}
	u := &User{
		ID:        id,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}

	r.mu.Lock()
	r.users[id] = u
	r.mu.Unlock()

	copied := *u
	return &copied, nil
}

// GetUser returns a copy of the user record, or ErrNotFound.
func (r *Registry) GetUser(id uuid.UUID) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, id)
	}
	copied := *u
	return &copied, nil
}

// attach reserves the user for lobbyID. The existence check and the
// membership write happen under one lock so concurrent create/join calls
// for the same user cannot both succeed.
func (r *Registry) attach(userID uuid.UUID, lobbyID string, isHost bool) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}
	if u.CurrentLobbyID != nil {
		return nil, fmt.Errorf("%w: user %s is in lobby %s", ErrAlreadyInLobby, userID, *u.CurrentLobbyID)
	}
	u.CurrentLobbyID = &lobbyID
	u.IsHost = isHost
	copied := *u
	return &copied, nil
}

// detach clears the user's membership. A no-op for unknown users so that
// rollback paths never fail.
func (r *Registry) detach(userID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[userID]; ok {
		u.CurrentLobbyID = nil
		u.IsHost = false
	}
}

// setHost flips the host flag without touching membership, used when an
// open lobby hands the host role to another member.
func (r *Registry) setHost(userID uuid.UUID, isHost bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[userID]; ok {
		u.IsHost = isHost
	}
}
