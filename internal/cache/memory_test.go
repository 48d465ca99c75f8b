package cache

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestMemory_InsertGet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Minute, 10)

	if _, ok, _ := m.Get(ctx, "k"); ok {
		t.Fatal("Get on empty store should miss")
	}

	if err := m.Insert(ctx, "k", "v"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	got, ok, err := m.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok || got != "v" {
		t.Errorf("Get = (%q, %v), want (v, true)", got, ok)
	}

	if err := m.Insert(ctx, "k", "v2"); err != nil {
		t.Fatalf("Insert overwrite: %v", err)
	}
	got, ok, _ = m.Get(ctx, "k")
	if !ok || got != "v2" {
		t.Errorf("Get after overwrite = (%q, %v), want (v2, true)", got, ok)
	}
}

func TestMemory_InvalidateThenMiss(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Minute, 10)

	if err := m.Insert(ctx, "k", "v"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := m.Invalidate(ctx, "k"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, ok, _ := m.Get(ctx, "k"); ok {
		t.Error("Get after Invalidate should miss")
	}

	// Invalidating an absent key is a no-op.
	if err := m.Invalidate(ctx, "absent"); err != nil {
		t.Errorf("Invalidate absent key: %v", err)
	}
}

func TestMemory_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(10*time.Millisecond, 10)

	if err := m.Insert(ctx, "k", "v"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, ok, _ := m.Get(ctx, "k"); !ok {
		t.Fatal("Get within TTL should hit")
	}

	time.Sleep(25 * time.Millisecond)
	if _, ok, _ := m.Get(ctx, "k"); ok {
		t.Error("Get after TTL should miss")
	}
	if m.Len() != 0 {
		t.Errorf("expired entry should be dropped on read, Len = %d", m.Len())
	}
}

func TestMemory_CapacityEviction(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Minute, 3)

	for i := 0; i < 3; i++ {
		if err := m.Insert(ctx, fmt.Sprintf("k%d", i), "v"); err != nil {
			t.Fatalf("Insert: %v", err)
		}
		time.Sleep(time.Millisecond) // distinct insertion order
	}
	if err := m.Insert(ctx, "k3", "v"); err != nil {
		t.Fatalf("Insert at capacity: %v", err)
	}

	if m.Len() != 3 {
		t.Errorf("Len = %d, want capacity 3", m.Len())
	}
	if _, ok, _ := m.Get(ctx, "k0"); ok {
		t.Error("oldest entry should have been evicted")
	}
	if _, ok, _ := m.Get(ctx, "k3"); !ok {
		t.Error("newest entry should be present")
	}
}

func TestMemory_OverwriteAtCapacityDoesNotEvict(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Minute, 2)

	m.Insert(ctx, "a", "1")
	m.Insert(ctx, "b", "2")
	m.Insert(ctx, "a", "3") // existing key, no eviction needed

	if _, ok, _ := m.Get(ctx, "b"); !ok {
		t.Error("overwrite of existing key must not evict others")
	}
	if got, _, _ := m.Get(ctx, "a"); got != "3" {
		t.Errorf("overwritten value = %q, want 3", got)
	}
}
