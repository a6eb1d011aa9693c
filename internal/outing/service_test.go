// internal/outing/service_test.go
package outing

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() *Service {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewService(logger)
}

func mustCreateUser(t *testing.T, s *Service, name string) *User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), name)
	require.NoError(t, err)
	return u
}

func TestCreateLobby(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	host := mustCreateUser(t, s, "alice")

	lobbyID, err := s.CreateLobby(ctx, host.ID)
	require.NoError(t, err)
	assert.Len(t, lobbyID, 6)

	l, sess, err := s.GetLobbyOrSession(ctx, lobbyID)
	require.NoError(t, err)
	require.NotNil(t, l)
	assert.Nil(t, sess)
	assert.Equal(t, StatusOpen, l.Status)
	assert.Equal(t, host.ID, l.HostID)
	require.Len(t, l.Members, 1)
	assert.Equal(t, host.ID, l.Members[0].UserID)

	got, err := s.GetUser(ctx, host.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CurrentLobbyID)
	assert.Equal(t, lobbyID, *got.CurrentLobbyID)
	assert.True(t, got.IsHost)

	// host is attached, so a second lobby is refused
	_, err = s.CreateLobby(ctx, host.ID)
	require.ErrorIs(t, err, ErrAlreadyInLobby)

	_, err = s.CreateLobby(ctx, uuid.New())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestJoinLobby(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	host := mustCreateUser(t, s, "alice")
	joiner := mustCreateUser(t, s, "bob")

	lobbyID, err := s.CreateLobby(ctx, host.ID)
	require.NoError(t, err)

	require.NoError(t, s.JoinLobby(ctx, lobbyID, joiner.ID))

	l, _, err := s.GetLobbyOrSession(ctx, lobbyID)
	require.NoError(t, err)
	require.Len(t, l.Members, 2)
	assert.Equal(t, joiner.ID, l.Members[1].UserID, "members keep append order")

	// a joined user cannot join again, anywhere
	require.ErrorIs(t, s.JoinLobby(ctx, lobbyID, joiner.ID), ErrAlreadyInLobby)

	require.ErrorIs(t, s.JoinLobby(ctx, "NOSUCH", joiner.ID), ErrNotFound)
	require.ErrorIs(t, s.JoinLobby(ctx, lobbyID, uuid.New()), ErrNotFound)
}

func TestStartSession(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	host := mustCreateUser(t, s, "alice")
	joiner := mustCreateUser(t, s, "bob")

	lobbyID, err := s.CreateLobby(ctx, host.ID)
	require.NoError(t, err)
	require.NoError(t, s.JoinLobby(ctx, lobbyID, joiner.ID))

	// host-only
	require.ErrorIs(t, s.StartSession(ctx, lobbyID, joiner.ID), ErrForbidden)
	require.ErrorIs(t, s.StartSession(ctx, "NOSUCH", host.ID), ErrNotFound)

	require.NoError(t, s.StartSession(ctx, lobbyID, host.ID))

	// the id now resolves to a session, never both
	l, sess, err := s.GetLobbyOrSession(ctx, lobbyID)
	require.NoError(t, err)
	assert.Nil(t, l)
	require.NotNil(t, sess)
	assert.Equal(t, StatusActive, sess.Status)
	require.Len(t, sess.Likes, 2)

	// no longer open: joins fail, repeat start reports not found
	require.ErrorIs(t, s.JoinLobby(ctx, lobbyID, mustCreateUser(t, s, "carol").ID), ErrLobbyNotOpen)
	require.ErrorIs(t, s.StartSession(ctx, lobbyID, host.ID), ErrNotFound)

	// and it disappears from the open listing
	lobbies, err := s.ListOpenLobbies(ctx)
	require.NoError(t, err)
	assert.Empty(t, lobbies)
}

func TestListOpenLobbies(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	first := mustCreateUser(t, s, "alice")
	second := mustCreateUser(t, s, "bob")
	firstID, err := s.CreateLobby(ctx, first.ID)
	require.NoError(t, err)
	secondID, err := s.CreateLobby(ctx, second.ID)
	require.NoError(t, err)

	lobbies, err := s.ListOpenLobbies(ctx)
	require.NoError(t, err)
	require.Len(t, lobbies, 2)

	ids := []string{lobbies[0].LobbyID, lobbies[1].LobbyID}
	assert.ElementsMatch(t, []string{firstID, secondID}, ids)
	assert.False(t, lobbies[0].CreatedAt.Before(lobbies[1].CreatedAt), "newest first")
	for _, sum := range lobbies {
		assert.Equal(t, 1, sum.UserCount)
		assert.NotEmpty(t, sum.HostName)
	}
}

func TestLeaveLobby(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	host := mustCreateUser(t, s, "alice")
	joiner := mustCreateUser(t, s, "bob")

	lobbyID, err := s.CreateLobby(ctx, host.ID)
	require.NoError(t, err)
	require.NoError(t, s.JoinLobby(ctx, lobbyID, joiner.ID))

	require.ErrorIs(t, s.LeaveLobby(ctx, lobbyID, uuid.New()), ErrNotAMember)

	// host leaves: earliest-joined member inherits the lobby
	require.NoError(t, s.LeaveLobby(ctx, lobbyID, host.ID))
	l, _, err := s.GetLobbyOrSession(ctx, lobbyID)
	require.NoError(t, err)
	assert.Equal(t, joiner.ID, l.HostID)

	promoted, err := s.GetUser(ctx, joiner.ID)
	require.NoError(t, err)
	assert.True(t, promoted.IsHost)

	left, err := s.GetUser(ctx, host.ID)
	require.NoError(t, err)
	assert.Nil(t, left.CurrentLobbyID, "leaving detaches the user")

	// the detached user can open a new lobby
	_, err = s.CreateLobby(ctx, host.ID)
	require.NoError(t, err)

	// last member out deletes the lobby
	require.NoError(t, s.LeaveLobby(ctx, lobbyID, joiner.ID))
	_, _, err = s.GetLobbyOrSession(ctx, lobbyID)
	require.ErrorIs(t, err, ErrNotFound)
}

// TestLeaveLobbyClosesEmptiedLobby pins the status flip that guards joins
// holding a stale pointer: deleting an emptied lobby from the open store
// must also mark the record closed, so a join that resolved the pointer
// before the delete fails its status re-check instead of resurrecting it.
func TestLeaveLobbyClosesEmptiedLobby(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	host := mustCreateUser(t, s, "alice")

	lobbyID, err := s.CreateLobby(ctx, host.ID)
	require.NoError(t, err)

	stale, err := s.findOpen(lobbyID)
	require.NoError(t, err)

	require.NoError(t, s.LeaveLobby(ctx, lobbyID, host.ID))

	stale.mu.Lock()
	status := stale.Status
	stale.mu.Unlock()
	assert.Equal(t, StatusClosed, status, "emptied lobby must not stay open")

	// a later join sees the id as gone and the joiner stays attachable
	joiner := mustCreateUser(t, s, "bob")
	require.ErrorIs(t, s.JoinLobby(ctx, lobbyID, joiner.ID), ErrNotFound)
	got, err := s.GetUser(ctx, joiner.ID)
	require.NoError(t, err)
	assert.Nil(t, got.CurrentLobbyID)
	_, err = s.CreateLobby(ctx, joiner.ID)
	require.NoError(t, err)
}

// TestEmptyLeaveJoinRace races a join against the sole member leaving.
// Whichever wins, the joiner must end up in a consistent state: either a
// member of a lobby that still resolves, or cleanly detached and free to
// open a lobby of their own.
func TestEmptyLeaveJoinRace(t *testing.T) {
	ctx := context.Background()

	for round := 0; round < 50; round++ {
		s := newTestService()
		host := mustCreateUser(t, s, "host")
		joiner := mustCreateUser(t, s, "joiner")

		lobbyID, err := s.CreateLobby(ctx, host.ID)
		require.NoError(t, err)

		var wg sync.WaitGroup
		var joinErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			joinErr = s.JoinLobby(ctx, lobbyID, joiner.ID)
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, s.LeaveLobby(ctx, lobbyID, host.ID))
		}()
		wg.Wait()

		got, err := s.GetUser(ctx, joiner.ID)
		require.NoError(t, err)

		if joinErr == nil {
			// join won: the lobby survived with the joiner inside
			l, _, err := s.GetLobbyOrSession(ctx, lobbyID)
			require.NoError(t, err, "joined lobby must still resolve")
			require.NotNil(t, l)
			require.GreaterOrEqual(t, l.memberIndexUnsafe(joiner.ID), 0)
			require.NotNil(t, got.CurrentLobbyID)
			assert.Equal(t, lobbyID, *got.CurrentLobbyID)
		} else {
			// leave won: the joiner was turned away, never stranded
			assert.True(t, errors.Is(joinErr, ErrLobbyNotOpen) || errors.Is(joinErr, ErrNotFound), "unexpected join error: %v", joinErr)
			require.Nil(t, got.CurrentLobbyID, "refused joiner must stay detached")
			_, err = s.CreateLobby(ctx, joiner.ID)
			require.NoError(t, err)
		}
	}
}

// TestFullScenario walks the end-to-end flow: create users, lobby, join,
// start, and reach a mutual match.
func TestFullScenario(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	u1 := mustCreateUser(t, s, "User One")
	lobbyID, err := s.CreateLobby(ctx, u1.ID)
	require.NoError(t, err)

	u2 := mustCreateUser(t, s, "User Two")
	require.NoError(t, s.JoinLobby(ctx, lobbyID, u2.ID))

	l, _, err := s.GetLobbyOrSession(ctx, lobbyID)
	require.NoError(t, err)
	require.Len(t, l.Members, 2)

	require.NoError(t, s.StartSession(ctx, lobbyID, u1.ID))

	u3 := mustCreateUser(t, s, "User Three")
	err = s.JoinLobby(ctx, lobbyID, u3.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLobbyNotOpen) || errors.Is(err, ErrNotFound))

	matches, err := s.AddLike(ctx, lobbyID, u1.ID, 5)
	require.NoError(t, err)
	assert.Empty(t, matches)

	matches, err = s.AddLike(ctx, lobbyID, u2.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, []int64{5}, matches)
}

func TestAddLikeOnService(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	host := mustCreateUser(t, s, "alice")

	lobbyID, err := s.CreateLobby(ctx, host.ID)
	require.NoError(t, err)

	// not a session yet
	_, err = s.AddLike(ctx, lobbyID, host.ID, 1)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.StartSession(ctx, lobbyID, host.ID))

	_, err = s.AddLike(ctx, lobbyID, host.ID, -1)
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = s.AddLike(ctx, lobbyID, uuid.New(), 1)
	require.ErrorIs(t, err, ErrNotAMember)
	_, err = s.AddLike(ctx, "NOSUCH", host.ID, 1)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentJoinsAllRecorded(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	host := mustCreateUser(t, s, "host")
	lobbyID, err := s.CreateLobby(ctx, host.ID)
	require.NoError(t, err)

	const joiners = 16
	users := make([]*User, joiners)
	for i := range users {
		users[i] = mustCreateUser(t, s, "joiner-"+uuid.NewString()[:8])
	}

	var wg sync.WaitGroup
	for _, u := range users {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			assert.NoError(t, s.JoinLobby(ctx, lobbyID, id))
		}(u.ID)
	}
	wg.Wait()

	l, _, err := s.GetLobbyOrSession(ctx, lobbyID)
	require.NoError(t, err)
	assert.Len(t, l.Members, joiners+1, "no join may be lost")
}

func TestConcurrentLikesAllRecorded(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	host := mustCreateUser(t, s, "host")
	other := mustCreateUser(t, s, "other")
	lobbyID, err := s.CreateLobby(ctx, host.ID)
	require.NoError(t, err)
	require.NoError(t, s.JoinLobby(ctx, lobbyID, other.ID))
	require.NoError(t, s.StartSession(ctx, lobbyID, host.ID))

	const likesPerUser = 50
	var wg sync.WaitGroup
	for _, uid := range []uuid.UUID{host.ID, other.ID} {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			for p := int64(1); p <= likesPerUser; p++ {
				_, err := s.AddLike(ctx, lobbyID, id, p)
				assert.NoError(t, err)
			}
		}(uid)
	}
	wg.Wait()

	_, sess, err := s.GetLobbyOrSession(ctx, lobbyID)
	require.NoError(t, err)
	assert.Len(t, sess.Likes[host.ID], likesPerUser)
	assert.Len(t, sess.Likes[other.ID], likesPerUser)
	assert.Len(t, sess.Matches(), likesPerUser, "every place was liked by both")
}

// TestActivationJoinRace pits concurrent joins against an activation. Each
// join must either land in the session snapshot or fail cleanly; nobody
// may end up attached to a lobby that no longer records them.
func TestActivationJoinRace(t *testing.T) {
	ctx := context.Background()

	for round := 0; round < 20; round++ {
		s := newTestService()
		host := mustCreateUser(t, s, "host")
		lobbyID, err := s.CreateLobby(ctx, host.ID)
		require.NoError(t, err)

		const racers = 8
		joinErrs := make([]error, racers)
		users := make([]*User, racers)
		for i := range users {
			users[i] = mustCreateUser(t, s, "racer-"+uuid.NewString()[:8])
		}

		var wg sync.WaitGroup
		for i, u := range users {
			wg.Add(1)
			go func(slot int, id uuid.UUID) {
				defer wg.Done()
				joinErrs[slot] = s.JoinLobby(ctx, lobbyID, id)
			}(i, u.ID)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.StartSession(ctx, lobbyID, host.ID))
		}()
		wg.Wait()

		_, sess, err := s.GetLobbyOrSession(ctx, lobbyID)
		require.NoError(t, err)
		require.NotNil(t, sess)

		inSnapshot := make(map[uuid.UUID]bool, len(sess.Members))
		for _, m := range sess.Members {
			inSnapshot[m.UserID] = true
		}

		for i, u := range users {
			if joinErrs[i] == nil {
				assert.True(t, inSnapshot[u.ID], "successful joiner missing from snapshot")
				got, err := s.GetUser(ctx, u.ID)
				require.NoError(t, err)
				require.NotNil(t, got.CurrentLobbyID)
				assert.Equal(t, lobbyID, *got.CurrentLobbyID)
			} else {
				require.ErrorIs(t, joinErrs[i], ErrLobbyNotOpen)
				assert.False(t, inSnapshot[u.ID], "failed joiner must not be in snapshot")
			}
		}
		assert.Len(t, sess.Likes, len(sess.Members), "likes keys track the snapshot exactly")
	}
}

// TestConcurrentCreateLobbySameUser checks the attachment check-and-set:
// at most one of two racing creates may win.
func TestConcurrentCreateLobbySameUser(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	u := mustCreateUser(t, s, "eager")

	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			_, errs[slot] = s.CreateLobby(ctx, u.ID)
		}(i)
	}
	wg.Wait()

	var wins int
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			require.ErrorIs(t, err, ErrAlreadyInLobby)
		}
	}
	assert.Equal(t, 1, wins, "exactly one create may attach the user")

	lobbies, err := s.ListOpenLobbies(ctx)
	require.NoError(t, err)
	assert.Len(t, lobbies, 1)
}
