// internal/database/archive.go
package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dayout/planner/internal/outing"
)

// Store implements outing.Archiver: a write-through mirror of the
// in-memory lobby state. Tables:
//
//	users          (id, name, created_at)
//	lobbies        (id, host_id, status, created_at, started_at)
//	lobby_members  (lobby_id, user_id, name, joined_at)
//	session_likes  (lobby_id, user_id, place_id, liked_at)
//
// The mirror exists for inspection and recovery tooling, not correctness;
// the service treats write failures as non-fatal.

// UserCreated inserts the user row.
func (s *Store) UserCreated(ctx context.Context, u *outing.User) error {
	q := `INSERT INTO users (id, name, created_at) VALUES ($1, $2, $3)`
	return pgx.BeginTxFunc(ctx, s.Pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, u.ID, u.Name, u.CreatedAt)
		return err
	})
}

// LobbyCreated inserts the lobby row plus its initial members in one
// transaction.
func (s *Store) LobbyCreated(ctx context.Context, l *outing.Lobby) error {
	return pgx.BeginTxFunc(ctx, s.Pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO lobbies (id, host_id, status, created_at) VALUES ($1, $2, $3, $4)`,
			l.ID, l.HostID, l.Status, l.CreatedAt,
		)
		if err != nil {
			return err
		}
		for _, m := range l.Members {
			_, err = tx.Exec(ctx,
				`INSERT INTO lobby_members (lobby_id, user_id, name, joined_at) VALUES ($1, $2, $3, $4)`,
				l.ID, m.UserID, m.Name, m.JoinedAt,
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// MemberJoined appends one member row.
func (s *Store) MemberJoined(ctx context.Context, lobbyID string, m outing.Member) error {
	q := `INSERT INTO lobby_members (lobby_id, user_id, name, joined_at) VALUES ($1, $2, $3, $4)`
	return pgx.BeginTxFunc(ctx, s.Pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, lobbyID, m.UserID, m.Name, m.JoinedAt)
		return err
	})
}

// MemberLeft removes the member row and records any host handover.
func (s *Store) MemberLeft(ctx context.Context, lobbyID string, userID uuid.UUID, newHostID uuid.UUID) error {
	return pgx.BeginTxFunc(ctx, s.Pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`DELETE FROM lobby_members WHERE lobby_id=$1 AND user_id=$2`, lobbyID, userID)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`UPDATE lobbies SET host_id=$1 WHERE id=$2`, newHostID, lobbyID)
		return err
	})
}

// LobbyDeleted removes the lobby and its members.
func (s *Store) LobbyDeleted(ctx context.Context, lobbyID string) error {
	return pgx.BeginTxFunc(ctx, s.Pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `DELETE FROM lobby_members WHERE lobby_id=$1`, lobbyID)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `DELETE FROM lobbies WHERE id=$1`, lobbyID)
		return err
	})
}

// SessionStarted flips the mirrored lobby to active and stamps started_at.
func (s *Store) SessionStarted(ctx context.Context, sess *outing.Session) error {
	q := `UPDATE lobbies SET status=$1, started_at=$2 WHERE id=$3`
	return pgx.BeginTxFunc(ctx, s.Pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, sess.Status, sess.StartedAt, sess.ID)
		return err
	})
}

// LikeAdded appends one like row.
func (s *Store) LikeAdded(ctx context.Context, sessionID string, userID uuid.UUID, placeID int64) error {
	q := `INSERT INTO session_likes (lobby_id, user_id, place_id, liked_at) VALUES ($1, $2, $3, now())`
	return pgx.BeginTxFunc(ctx, s.Pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, sessionID, userID, placeID)
		return err
	})
}
