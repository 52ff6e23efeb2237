// Package dedup remembers which restaurants were already written in a run.
package dedup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store records keys and reports whether a key was seen before.
type Store interface {
	// Seen marks key and returns true if it had been marked earlier.
	Seen(ctx context.Context, key string) (bool, error)
}

// MemoryStore keeps keys in process memory.
type MemoryStore struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{keys: make(map[string]struct{})}
}

// Seen implements Store.
func (s *MemoryStore) Seen(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.keys[key]; ok {
		return true, nil
	}
	s.keys[key] = struct{}{}
	return false, nil
}

// Len returns the number of distinct keys recorded.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}

// RedisKeyPrefix prefixes the per-run set key.
const RedisKeyPrefix = "listing:seen:"

// RedisStore keeps keys in a Redis set scoped to one run.
type RedisStore struct {
	redis *redis.Client
	key   string
	ttl   time.Duration
}

// NewRedisStore creates a store backed by the set RedisKeyPrefix+runID.
// The set expires ttl after the latest insert; zero keeps it forever.
func NewRedisStore(redisClient *redis.Client, runID string, ttl time.Duration) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{
		redis: redisClient,
		key:   RedisKeyPrefix + runID,
		ttl:   ttl,
	}
}

// Key returns the Redis set key.
func (s *RedisStore) Key() string {
	return s.key
}

// Seen implements Store.
func (s *RedisStore) Seen(ctx context.Context, key string) (bool, error) {
	pipe := s.redis.TxPipeline()
	added := pipe.SAdd(ctx, s.key, key)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("redis sadd: %w", err)
	}

	return added.Val() == 0, nil
}
