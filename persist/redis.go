package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/playdate-app/playdate-server/game/session"
)

const outcomeKeyPrefix = "playdate:outcome:"

// RedisRecorder stores outcomes as JSON values in redis, one key per
// session, with an optional TTL.
type RedisRecorder struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisRecorder connects to redis and verifies the connection with a
// ping. A zero ttl keeps outcomes forever.
func NewRedisRecorder(addr, password string, db int, ttl time.Duration) (*RedisRecorder, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisRecorder{client: client, ttl: ttl}, nil
}

// RecordOutcome implements Recorder.
func (rr *RedisRecorder) RecordOutcome(ctx context.Context, snap *session.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("snapshot cannot be nil")
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal session outcome: %w", err)
	}

	if err := rr.client.Set(ctx, outcomeKeyPrefix+snap.ID, data, rr.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store outcome: %w", err)
	}
	return nil
}

// Close releases the redis connection.
func (rr *RedisRecorder) Close() error {
	return rr.client.Close()
}
