package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T, ttl time.Duration) (CooldownStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewCooldownStoreWithClient(client, ttl)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestAcquireOpensWindow(t *testing.T) {
	store, _ := newTestStore(t, time.Minute)
	ctx := context.Background()

	ok, err := store.Acquire(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if !ok {
		t.Fatal("first acquire must win")
	}

	ok, err = store.Acquire(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if ok {
		t.Error("second acquire inside the window must be suppressed")
	}
}

func TestAcquireWindowExpires(t *testing.T) {
	store, mr := newTestStore(t, time.Minute)
	ctx := context.Background()

	if ok, _ := store.Acquire(ctx, "alice", "bob"); !ok {
		t.Fatal("first acquire must win")
	}

	mr.FastForward(time.Minute + time.Second)

	ok, err := store.Acquire(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("acquire after expiry: %v", err)
	}
	if !ok {
		t.Error("window should reopen after the TTL elapses")
	}
}

func TestAcquireIsDirectional(t *testing.T) {
	store, _ := newTestStore(t, time.Minute)
	ctx := context.Background()

	if ok, _ := store.Acquire(ctx, "alice", "bob"); !ok {
		t.Fatal("alice->bob must win")
	}
	// The reverse direction is a different pair and gets its own window.
	if ok, _ := store.Acquire(ctx, "bob", "alice"); !ok {
		t.Error("bob->alice must have an independent window")
	}
}

func TestZeroTTLFallsBackToDefault(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewCooldownStoreWithClient(client, 0)
	t.Cleanup(func() { _ = store.Close() })

	if ok, _ := store.Acquire(context.Background(), "alice", "bob"); !ok {
		t.Fatal("first acquire must win")
	}

	ttl := mr.TTL("emailcooldown:alice:bob")
	if ttl != DefaultEmailCooldown {
		t.Errorf("ttl = %v, want %v", ttl, DefaultEmailCooldown)
	}
}
