// internal/outing/lobby.go
package outing

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Lobby status values. A lobby id resolves to exactly one of the two at any
// time: "open" records live in the open store, "active" ones become
// Sessions in the session store.
const (
	StatusOpen   = "open"
	StatusActive = "active"
	// StatusClosed marks an emptied lobby at the moment it is deleted from
	// the open store, so a join already holding the stale pointer fails its
	// status re-check instead of resurrecting the lobby.
	StatusClosed = "closed"
)

// Member is one entry in a lobby's ordered member list. Order is append
// order and is meaningful: the earliest-joined member inherits the host
// role if the host leaves.
type Member struct {
	UserID   uuid.UUID `json:"user_id"`
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"joined_at"`
}

// Lobby is a pre-session group accepting joins. The mutex serializes all
// per-lobby mutations; it stays held across the activation status flip so
// a racing join observes either "open" or "active", never a half-moved
// record.
type Lobby struct {
	ID        string    `json:"lobby_id"`
	HostID    uuid.UUID `json:"host_id"`
	Members   []Member  `json:"users"`
	CreatedAt time.Time `json:"created_at"`
	Status    string    `json:"status"`

	mu sync.Mutex
}

// LobbySummary is the open-lobby listing row.
type LobbySummary struct {
	LobbyID   string    `json:"lobby_id"`
	HostName  string    `json:"host_name"`
	UserCount int       `json:"user_count"`
	CreatedAt time.Time `json:"created_at"`
}

func newLobby(id string, host *User) *Lobby {
	now := time.Now().UTC()
	return &Lobby{
		ID:     id,
		HostID: host.ID,
		Members: []Member{{
			UserID:   host.ID,
			Name:     host.Name,
			JoinedAt: now,
		}},
		CreatedAt: now,
		Status:    StatusOpen,
	}
}

// snapshot returns a deep copy safe to hand to callers.
func (l *Lobby) snapshot() *Lobby {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotUnsafe()
}

// snapshotUnsafe is the copy itself. Assumes mu is held.
func (l *Lobby) snapshotUnsafe() *Lobby {
	members := make([]Member, len(l.Members))
	copy(members, l.Members)
	return &Lobby{
		ID:        l.ID,
		HostID:    l.HostID,
		Members:   members,
		CreatedAt: l.CreatedAt,
		Status:    l.Status,
	}
}

// summaryUnsafe builds the listing row, deriving the host display name from
// the member list. A host absent from its own members is a broken
// invariant. Assumes mu is held.
func (l *Lobby) summaryUnsafe() (LobbySummary, error) {
	for _, m := range l.Members {
		if m.UserID == l.HostID {
			return LobbySummary{
				LobbyID:   l.ID,
				HostName:  m.Name,
				UserCount: len(l.Members),
				CreatedAt: l.CreatedAt,
			}, nil
		}
	}
	return LobbySummary{}, fmt.Errorf("%w: lobby %s host %s missing from member list", ErrDataIntegrity, l.ID, l.HostID)
}

// memberIndexUnsafe returns the position of userID in Members, or -1.
// Assumes mu is held.
func (l *Lobby) memberIndexUnsafe(userID uuid.UUID) int {
	for i, m := range l.Members {
		if m.UserID == userID {
			return i
		}
	}
	return -1
}

const (
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength   = 6
)

// newJoinCode returns a random 6-character lobby code. The alphabet skips
// easily-confused glyphs (0/O, 1/I). Uniqueness against the live stores is
// the caller's job.
func newJoinCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate join code: %w", err)
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}
