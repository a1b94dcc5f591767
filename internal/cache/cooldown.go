// Package cache provides the Redis-backed keyed caches the core uses for
// transient state. The email cooldown used to live in a process-global map;
// a TTL key per (sender, receiver) pair replaces it so eviction is defined
// and the state survives restarts.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultEmailCooldown is the rolling window during which repeat message
// emails for the same (sender, receiver) pair are suppressed.
const DefaultEmailCooldown = 15 * time.Minute

// CooldownStore tracks per-pair email suppression windows.
type CooldownStore interface {
	// Acquire returns true when no window is open for the pair and opens
	// one; false when a previous email is still inside its window.
	Acquire(ctx context.Context, senderID, receiverID string) (bool, error)
	Close() error
}

type redisCooldown struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewCooldownStore connects to Redis and returns a cooldown store.
func NewCooldownStore(redisURL string, ttl time.Duration) (CooldownStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewCooldownStoreWithClient(client, ttl), nil
}

// NewCooldownStoreWithClient builds a store from an existing client.
func NewCooldownStoreWithClient(client *redis.Client, ttl time.Duration) CooldownStore {
	if ttl <= 0 {
		ttl = DefaultEmailCooldown
	}
	return &redisCooldown{
		client: client,
		prefix: "emailcooldown:",
		ttl:    ttl,
	}
}

func (s *redisCooldown) key(senderID, receiverID string) string {
	return s.prefix + senderID + ":" + receiverID
}

func (s *redisCooldown) Acquire(ctx context.Context, senderID, receiverID string) (bool, error) {
	// SET NX with TTL is atomic: the first caller in a window wins, every
	// later caller sees false until the key expires.
	ok, err := s.client.SetNX(ctx, s.key(senderID, receiverID), time.Now().Unix(), s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire cooldown: %w", err)
	}
	return ok, nil
}

func (s *redisCooldown) Close() error {
	return s.client.Close()
}
