// internal/outing/user_test.go
package outing

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUserValidation(t *testing.T) {
	r := NewRegistry()

	cases := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"too short", "J", true},
		{"empty", "", true},
		{"min length", "Jo", false},
		{"normal", "John Doe", false},
		{"max length", strings.Repeat("a", 50), false},
		{"too long", strings.Repeat("a", 51), true},
		{"multibyte counts runes", strings.Repeat("ü", 50), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			u, err := r.CreateUser(tc.input)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.NotEqual(t, uuid.Nil, u.ID)
			assert.Nil(t, u.CurrentLobbyID, "new users start unattached")
			assert.False(t, u.IsHost)
		})
	}
}

func TestGetUser(t *testing.T) {
	r := NewRegistry()
	u, err := r.CreateUser("alice")
	require.NoError(t, err)

	got, err := r.GetUser(u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "alice", got.Name)

	_, err = r.GetUser(uuid.New())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAttachIsExclusive(t *testing.T) {
	r := NewRegistry()
	u, err := r.CreateUser("bob")
	require.NoError(t, err)

	attached, err := r.attach(u.ID, "AAAAAA", true)
	require.NoError(t, err)
	require.NotNil(t, attached.CurrentLobbyID)
	assert.Equal(t, "AAAAAA", *attached.CurrentLobbyID)
	assert.True(t, attached.IsHost)

	_, err = r.attach(u.ID, "BBBBBB", false)
	require.ErrorIs(t, err, ErrAlreadyInLobby)

	r.detach(u.ID)
	got, err := r.GetUser(u.ID)
	require.NoError(t, err)
	assert.Nil(t, got.CurrentLobbyID)
	assert.False(t, got.IsHost)

	_, err = r.attach(u.ID, "BBBBBB", false)
	require.NoError(t, err)
}

func TestGetUserReturnsCopy(t *testing.T) {
	r := NewRegistry()
	u, err := r.CreateUser("carol")
	require.NoError(t, err)

	got, err := r.GetUser(u.ID)
	require.NoError(t, err)
	bogus := "ZZZZZZ"
	got.CurrentLobbyID = &bogus

	again, err := r.GetUser(u.ID)
	require.NoError(t, err)
	assert.Nil(t, again.CurrentLobbyID, "mutating a returned record must not affect the registry")
}
