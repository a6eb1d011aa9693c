// internal/outing/errors.go
package outing

import "errors"

// Every precondition failure in the core maps to exactly one of these
// sentinels. Callers match with errors.Is; the HTTP layer translates them
// to status codes.
var (
	// ErrInvalidInput is returned for malformed input: a display name
	// outside the 2-50 character bounds, or a non-positive place id.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound is returned when a user, lobby, or session id does not
	// resolve to a live record.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyInLobby is returned when a user who is already attached to
	// a lobby or session attempts to create or join another one.
	ErrAlreadyInLobby = errors.New("user already in a lobby")

	// ErrLobbyNotOpen is returned when a join or leave targets a lobby
	// whose status is no longer "open" (it has been activated).
	ErrLobbyNotOpen = errors.New("lobby is not open")

	// ErrForbidden is returned when a non-host attempts a host-only action.
	ErrForbidden = errors.New("only the host may do that")

	// ErrNotAMember is returned when a like arrives from a user who is not
	// part of the session's membership snapshot.
	ErrNotAMember = errors.New("user is not a session member")

	// ErrDataIntegrity signals a broken invariant (e.g. a host missing from
	// its own member list). Surfacing it means a bug, not a caller mistake.
	ErrDataIntegrity = errors.New("data integrity violation")
)
