// internal/outing/session.go
package outing

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is an activated lobby. Membership is frozen at the activation
// snapshot; Likes is keyed by exactly the snapshotted member ids and each
// value is an append-only sequence of place ids.
type Session struct {
	ID        string                `json:"lobby_id"`
	HostID    uuid.UUID             `json:"host_id"`
	Members   []Member              `json:"users"`
	CreatedAt time.Time             `json:"created_at"`
	StartedAt time.Time             `json:"started_at"`
	Status    string                `json:"status"`
	Likes     map[uuid.UUID][]int64 `json:"user_likes"`

	mu sync.Mutex
}

// newSession snapshots an open lobby into a session. The caller holds the
// lobby's mutex, so the member list is stable while we copy it.
func newSession(l *Lobby) *Session {
	members := make([]Member, len(l.Members))
	copy(members, l.Members)

	likes := make(map[uuid.UUID][]int64, len(members))
	for _, m := range members {
		likes[m.UserID] = []int64{}
	}

	return &Session{
		ID:        l.ID,
		HostID:    l.HostID,
		Members:   members,
		CreatedAt: l.CreatedAt,
		StartedAt: time.Now().UTC(),
		Status:    StatusActive,
		Likes:     likes,
	}
}

// AddLike appends placeID to the user's like sequence and returns the
// current match set: every place id present in all members' like sets.
// Duplicates are recorded as-is; the intersection treats each sequence as a
// set. The result is recomputed on every call and sorted ascending.
func (s *Session) AddLike(userID uuid.UUID, placeID int64) ([]int64, error) {
	if placeID <= 0 {
		return nil, fmt.Errorf("%w: place id must be positive, got %d", ErrInvalidInput, placeID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.Likes[userID]; !ok {
		return nil, fmt.Errorf("%w: user %s is not in session %s", ErrNotAMember, userID, s.ID)
	}
	s.Likes[userID] = append(s.Likes[userID], placeID)

	return s.matchesUnsafe(), nil
}

// Matches returns the current match set without recording a like.
func (s *Session) Matches() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.matchesUnsafe()
}

// matchesUnsafe intersects every member's like set. Any member with zero
// likes yields an empty intersection, which is the correct signal that not
// everyone has weighed in yet. Assumes mu is held.
func (s *Session) matchesUnsafe() []int64 {
	common := make(map[int64]struct{})
	first := true
	for _, likes := range s.Likes {
		seen := make(map[int64]struct{}, len(likes))
		for _, p := range likes {
			seen[p] = struct{}{}
		}
		if first {
			common = seen
			first = false
			continue
		}
		for p := range common {
			if _, ok := seen[p]; !ok {
				delete(common, p)
			}
		}
		if len(common) == 0 {
			break
		}
	}

	out := make([]int64, 0, len(common))
	for p := range common {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// snapshot returns a deep copy safe to marshal outside the lock.
func (s *Session) snapshot() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	members := make([]Member, len(s.Members))
	copy(members, s.Members)
	likes := make(map[uuid.UUID][]int64, len(s.Likes))
	for uid, seq := range s.Likes {
		likes[uid] = append([]int64(nil), seq...)
	}
	return &Session{
		ID:        s.ID,
		HostID:    s.HostID,
		Members:   members,
		CreatedAt: s.CreatedAt,
		StartedAt: s.StartedAt,
		Status:    s.Status,
		Likes:     likes,
	}
}
