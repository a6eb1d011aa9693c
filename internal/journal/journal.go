// internal/journal/journal.go
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dayout/planner/internal/outing"
)

// DefaultQueueName is the Redis list that receives like events.
const DefaultQueueName = "dayout_likes"

// Journal pushes accepted like events onto a Redis list so offline
// consumers (analytics, debugging) can replay them. It satisfies
// outing.LikeJournal.
type Journal struct {
	client *redis.Client
	queue  string
}

// Connect dials Redis at addr and verifies the connection with a ping.
// The returned Journal owns the client; close it with Close at shutdown.
func Connect(ctx context.Context, addr string, db int, queue string) (*Journal, error) {
	if queue == "" {
		queue = DefaultQueueName
	}
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return &Journal{client: client, queue: queue}, nil
}

// RecordLike serializes the record and RPushes it onto the queue.
func (j *Journal) RecordLike(ctx context.Context, rec outing.LikeRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal like record: %w", err)
	}
	if err := j.client.RPush(ctx, j.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", j.queue, err)
	}
	return nil
}

// Close releases the underlying Redis client.
func (j *Journal) Close() error {
	return j.client.Close()
}
