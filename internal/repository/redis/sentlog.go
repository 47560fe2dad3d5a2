package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const sentKeyPrefix = "notify:sent:"

// SentLog claims notification keys with SETNX so a message is handed to a
// sender at most once, across restarts and replicas, for the TTL window.
type SentLog struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSentLog creates a Redis-backed sent log.
func NewSentLog(client *redis.Client, ttl time.Duration) *SentLog {
	return &SentLog{client: client, ttl: ttl}
}

// Claim reports whether this call was first to claim key.
func (l *SentLog) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := l.client.SetNX(ctx, sentKeyPrefix+key, time.Now().UTC().Format(time.RFC3339), l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx sent log: %w", err)
	}
	return ok, nil
}
