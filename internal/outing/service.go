// internal/outing/service.go
package outing

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Archiver is an optional write-through mirror of the in-memory state,
// typically Postgres-backed. Archive failures are logged by the service and
// never fail the originating operation; the core makes no durability
// promises.
type Archiver interface {
	UserCreated(ctx context.Context, u *User) error
	LobbyCreated(ctx context.Context, l *Lobby) error
	MemberJoined(ctx context.Context, lobbyID string, m Member) error
	MemberLeft(ctx context.Context, lobbyID string, userID uuid.UUID, newHostID uuid.UUID) error
	LobbyDeleted(ctx context.Context, lobbyID string) error
	SessionStarted(ctx context.Context, s *Session) error
	LikeAdded(ctx context.Context, sessionID string, userID uuid.UUID, placeID int64) error
}

// LikeRecord is the journal entry emitted for every accepted like.
type LikeRecord struct {
	SessionID string    `json:"session_id"`
	UserID    uuid.UUID `json:"user_id"`
	PlaceID   int64     `json:"place_id"`
	Matches   []int64   `json:"matches"`
	Timestamp int64     `json:"timestamp"`
}

// LikeJournal receives like events for offline analysis (e.g. a Redis
// queue). Optional, best-effort.
type LikeJournal interface {
	RecordLike(ctx context.Context, rec LikeRecord) error
}

// Service coordinates the user registry, the open-lobby store, and the
// active-session store. The service mutex guards only the two maps; each
// lobby and session serializes its own mutations with its embedded mutex.
//
// Lock order: an entity mutex may be held while taking the store or
// registry mutex, never the reverse. Readers grab pointers under the store
// read-lock, release it, then lock the entity.
type Service struct {
	log      *logrus.Logger
	registry *Registry

	mu       sync.RWMutex
	open     map[string]*Lobby
	sessions map[string]*Session

	// Archive and Journal are optional collaborators; leave nil to disable.
	Archive Archiver
	Journal LikeJournal
}

// NewService returns a Service with empty stores.
func NewService(log *logrus.Logger) *Service {
	if log == nil {
		log = logrus.New()
	}
	return &Service{
		log:      log,
		registry: NewRegistry(),
		open:     make(map[string]*Lobby),
		sessions: make(map[string]*Session),
	}
}

// CreateUser registers a new user with no lobby membership.
func (s *Service) CreateUser(ctx context.Context, name string) (*User, error) {
	u, err := s.registry.CreateUser(name)
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"user_id": u.ID, "name": u.Name}).Info("user created")
	s.archiveEvent("user_created", func(a Archiver) error { return a.UserCreated(ctx, u) })
	return u, nil
}

// GetUser returns a copy of the user record.
func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.registry.GetUser(id)
}

// maxCodeAttempts bounds the join-code collision retry loop. With a 32^6
// code space exhausting this means something is deeply wrong.
const maxCodeAttempts = 5

// CreateLobby opens a new lobby hosted by userID. The code allocation, the
// user attachment, and the store insert all happen under the store lock so
// two CreateLobby calls for the same user cannot both succeed.
func (s *Service) CreateLobby(ctx context.Context, userID uuid.UUID) (string, error) {
	s.mu.Lock()

	var code string
	for attempt := 0; ; attempt++ {
		if attempt == maxCodeAttempts {
			s.mu.Unlock()
			return "", fmt.Errorf("%w: could not allocate a unique lobby code", ErrDataIntegrity)
		}
		c, err := newJoinCode()
		if err != nil {
			s.mu.Unlock()
			return "", err
		}
		_, inOpen := s.open[c]
		_, inSessions := s.sessions[c]
		if !inOpen && !inSessions {
			code = c
			break
		}
	}

	host, err := s.registry.attach(userID, code, true)
	if err != nil {
		s.mu.Unlock()
		return "", err
	}
	l := newLobby(code, host)
	s.open[code] = l
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{"lobby_id": code, "host_id": userID}).Info("lobby created")
	s.archiveEvent("lobby_created", func(a Archiver) error { return a.LobbyCreated(ctx, l.snapshot()) })
	return code, nil
}

// JoinLobby appends userID to an open lobby's member list and attaches the
// user to it.
func (s *Service) JoinLobby(ctx context.Context, lobbyID string, userID uuid.UUID) error {
	l, err := s.findOpen(lobbyID)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// The lobby may have been activated or emptied between the store
	// lookup and acquiring its lock.
	if l.Status != StatusOpen {
		return fmt.Errorf("%w: lobby %s", ErrLobbyNotOpen, lobbyID)
	}

	u, err := s.registry.attach(userID, lobbyID, false)
	if err != nil {
		return err
	}
	l.Members = append(l.Members, Member{
		UserID:   u.ID,
		Name:     u.Name,
		JoinedAt: time.Now().UTC(),
	})

	s.log.WithFields(logrus.Fields{"lobby_id": lobbyID, "user_id": userID}).Info("user joined lobby")
	m := l.Members[len(l.Members)-1]
	s.archiveEvent("member_joined", func(a Archiver) error { return a.MemberJoined(ctx, lobbyID, m) })
	return nil
}

// LeaveLobby removes userID from an open lobby. The earliest-joined
// remaining member inherits the host role; an emptied lobby is deleted.
// Sessions have no leave transition.
func (s *Service) LeaveLobby(ctx context.Context, lobbyID string, userID uuid.UUID) error {
	l, err := s.findOpen(lobbyID)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.Status != StatusOpen {
		return fmt.Errorf("%w: lobby %s", ErrLobbyNotOpen, lobbyID)
	}
	idx := l.memberIndexUnsafe(userID)
	if idx < 0 {
		return fmt.Errorf("%w: user %s in lobby %s", ErrNotAMember, userID, lobbyID)
	}

	l.Members = append(l.Members[:idx], l.Members[idx+1:]...)
	s.registry.detach(userID)

	newHostID := l.HostID
	if len(l.Members) == 0 {
		// The status flip and the store delete happen under the lobby
		// mutex, exactly like activation: a join parked on l.mu must see
		// the lobby as no longer open once it gets the lock.
		l.Status = StatusClosed
		s.mu.Lock()
		delete(s.open, l.ID)
		s.mu.Unlock()
		s.log.WithField("lobby_id", lobbyID).Info("lobby emptied, deleting")
		s.archiveEvent("lobby_deleted", func(a Archiver) error { return a.LobbyDeleted(ctx, lobbyID) })
		return nil
	}
	if l.HostID == userID {
		newHostID = l.Members[0].UserID
		l.HostID = newHostID
		s.registry.setHost(newHostID, true)
		s.log.WithFields(logrus.Fields{"lobby_id": lobbyID, "new_host_id": newHostID}).Info("host left, promoting earliest member")
	}

	s.log.WithFields(logrus.Fields{"lobby_id": lobbyID, "user_id": userID}).Info("user left lobby")
	s.archiveEvent("member_left", func(a Archiver) error { return a.MemberLeft(ctx, lobbyID, userID, newHostID) })
	return nil
}

// StartSession activates an open lobby: host-only. Membership is
// snapshotted and the record moves from the open store to the session
// store in one critical section under the lobby's mutex, so a concurrent
// join either lands in the snapshot or fails with ErrLobbyNotOpen.
func (s *Service) StartSession(ctx context.Context, lobbyID string, userID uuid.UUID) error {
	s.mu.RLock()
	l, ok := s.open[lobbyID]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: open lobby %s", ErrNotFound, lobbyID)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.Status != StatusOpen {
		// Lost the race to another activation; the id no longer resolves
		// to an open lobby.
		return fmt.Errorf("%w: open lobby %s", ErrNotFound, lobbyID)
	}
	if l.HostID != userID {
		return fmt.Errorf("%w: user %s is not the host of lobby %s", ErrForbidden, userID, lobbyID)
	}

	sess := newSession(l)
	l.Status = StatusActive

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	delete(s.open, l.ID)
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{"lobby_id": lobbyID, "members": len(sess.Members)}).Info("session started")
	snap := sess.snapshot()
	s.archiveEvent("session_started", func(a Archiver) error { return a.SessionStarted(ctx, snap) })
	return nil
}

// AddLike records a like in an active session and returns the current
// match set across all members.
func (s *Service) AddLike(ctx context.Context, sessionID string, userID uuid.UUID, placeID int64) ([]int64, error) {
	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
	}

	matches, err := sess.AddLike(userID, placeID)
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"session_id": sessionID,
		"user_id":    userID,
		"place_id":   placeID,
		"matches":    len(matches),
	}).Info("like recorded")

	rec := LikeRecord{
		SessionID: sessionID,
		UserID:    userID,
		PlaceID:   placeID,
		Matches:   matches,
		Timestamp: time.Now().Unix(),
	}
	if s.Journal != nil {
		if err := s.Journal.RecordLike(ctx, rec); err != nil {
			s.log.WithError(err).Warn("like journal write failed")
		}
	}
	s.archiveEvent("like_added", func(a Archiver) error { return a.LikeAdded(ctx, sessionID, userID, placeID) })
	return matches, nil
}

// ListOpenLobbies returns summaries of all open lobbies, newest first.
func (s *Service) ListOpenLobbies(ctx context.Context) ([]LobbySummary, error) {
	s.mu.RLock()
	lobbies := make([]*Lobby, 0, len(s.open))
	for _, l := range s.open {
		lobbies = append(lobbies, l)
	}
	s.mu.RUnlock()

	out := make([]LobbySummary, 0, len(lobbies))
	for _, l := range lobbies {
		l.mu.Lock()
		if l.Status != StatusOpen {
			// Activated after we snapshotted the map; no longer listable.
			l.mu.Unlock()
			continue
		}
		sum, err := l.summaryUnsafe()
		l.mu.Unlock()
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// GetLobbyOrSession resolves id against the open store first, then the
// session store. Exactly one of the two return values is non-nil on
// success.
func (s *Service) GetLobbyOrSession(ctx context.Context, id string) (*Lobby, *Session, error) {
	s.mu.RLock()
	l, isOpen := s.open[id]
	sess, isActive := s.sessions[id]
	s.mu.RUnlock()

	if isOpen {
		snap := l.snapshot()
		if snap.Status == StatusOpen {
			return snap, nil, nil
		}
		// Activated between lookup and snapshot; fall through to sessions.
		s.mu.RLock()
		sess, isActive = s.sessions[id]
		s.mu.RUnlock()
	}
	if isActive {
		return nil, sess.snapshot(), nil
	}
	return nil, nil, fmt.Errorf("%w: lobby or session %s", ErrNotFound, id)
}

// findOpen resolves lobbyID in the open store, distinguishing "never
// existed" from "already activated".
func (s *Service) findOpen(lobbyID string) (*Lobby, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if l, ok := s.open[lobbyID]; ok {
		return l, nil
	}
	if _, ok := s.sessions[lobbyID]; ok {
		return nil, fmt.Errorf("%w: lobby %s is already active", ErrLobbyNotOpen, lobbyID)
	}
	return nil, fmt.Errorf("%w: lobby %s", ErrNotFound, lobbyID)
}

// archiveEvent runs one archiver call, logging instead of propagating
// failures.
func (s *Service) archiveEvent(event string, fn func(Archiver) error) {
	if s.Archive == nil {
		return
	}
	if err := fn(s.Archive); err != nil {
		s.log.WithError(err).WithField("event", event).Warn("archive write failed")
	}
}
