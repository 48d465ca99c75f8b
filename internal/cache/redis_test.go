package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T, ttl time.Duration) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client, "authcache", ttl), mr
}

func TestRedis_InsertGetInvalidate(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRedis(t, time.Minute)

	if _, ok, err := r.Get(ctx, "session:s1"); err != nil || ok {
		t.Fatalf("Get empty = ok=%v err=%v, want miss", ok, err)
	}

	if err := r.Insert(ctx, "session:s1", `{"id":"s1"}`); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	got, ok, err := r.Get(ctx, "session:s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok || got != `{"id":"s1"}` {
		t.Errorf("Get = (%q, %v)", got, ok)
	}

	if err := r.Invalidate(ctx, "session:s1"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, ok, _ := r.Get(ctx, "session:s1"); ok {
		t.Error("Get after Invalidate should miss")
	}
}

func TestRedis_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	r, mr := newTestRedis(t, time.Minute)

	if err := r.Insert(ctx, "user:u1", `{"id":"u1"}`); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	mr.FastForward(2 * time.Minute)
	if _, ok, _ := r.Get(ctx, "user:u1"); ok {
		t.Error("Get after TTL should miss")
	}
}

func TestRedis_KeysArePrefixed(t *testing.T) {
	ctx := context.Background()
	r, mr := newTestRedis(t, time.Minute)

	if err := r.Insert(ctx, "session:s1", "v"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if !mr.Exists("authcache:session:s1") {
		t.Error("expected prefixed key in redis")
	}
}
