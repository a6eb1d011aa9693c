// internal/database/db.go
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store wraps a pgx pool with an explicit lifecycle: constructed at
// startup, injected into whoever needs it, closed at shutdown. There is no
// package-level connection.
type Store struct {
	Pool *pgxpool.Pool
}

// Connect parses connString, opens the pool, and verifies it with a ping.
func Connect(ctx context.Context, connString string) (*Store, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse pgx config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	return &Store{Pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.Pool.Close()
}
