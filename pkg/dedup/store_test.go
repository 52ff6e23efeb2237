package dedup

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// setupTestRedis connects to a local Redis and skips when none is running.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // Use a separate DB for tests
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func TestMemoryStore_Seen(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	seen, err := store.Seen(ctx, "https://example.com/a")
	if err != nil || seen {
		t.Errorf("first Seen() = %v, %v; want false, nil", seen, err)
	}

	seen, _ = store.Seen(ctx, "https://example.com/a")
	if !seen {
		t.Error("second Seen() should report true")
	}

	seen, _ = store.Seen(ctx, "https://example.com/b")
	if seen {
		t.Error("Seen() on a new key should report false")
	}

	if store.Len() != 2 {
		t.Errorf("Len() = %d, want 2", store.Len())
	}
}

func TestNewRedisStore_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewRedisStore should panic with nil redis client")
		}
	}()
	NewRedisStore(nil, "run", time.Hour)
}

func TestRedisStore_Seen(t *testing.T) {
	client := setupTestRedis(t)
	store := NewRedisStore(client, "test-run", time.Hour)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		seen, err := store.Seen(ctx, fmt.Sprintf("key-%d", i))
		if err != nil {
			t.Fatalf("Seen() error = %v", err)
		}
		if seen {
			t.Errorf("key-%d reported as seen on first insert", i)
		}
	}

	seen, err := store.Seen(ctx, "key-1")
	if err != nil {
		t.Fatalf("Seen() error = %v", err)
	}
	if !seen {
		t.Error("key-1 should be reported as seen")
	}

	if n := client.SCard(ctx, store.Key()).Val(); n != 3 {
		t.Errorf("SCARD = %d, want 3", n)
	}

	ttl := client.TTL(ctx, store.Key()).Val()
	if ttl <= 0 || ttl > time.Hour {
		t.Errorf("TTL = %v, want (0, 1h]", ttl)
	}
}

func TestRedisStore_RunsAreIsolated(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()

	first := NewRedisStore(client, "run-1", 0)
	second := NewRedisStore(client, "run-2", 0)

	first.Seen(ctx, "shared")
	seen, err := second.Seen(ctx, "shared")
	if err != nil {
		t.Fatalf("Seen() error = %v", err)
	}
	if seen {
		t.Error("a key from another run should not count as seen")
	}
}
