package fakeapi

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
)

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	first := Object{ID: "b", Name: "first", Data: map[string]any{"info": "one"}, CreatedAt: base}
	second := Object{ID: "a", Name: "second", CreatedAt: base.Add(time.Second)}
	if err := store.Create(ctx, first); err != nil {
		t.Fatalf("create first: %v", err)
	}
	if err := store.Create(ctx, second); err != nil {
		t.Fatalf("create second: %v", err)
	}
	if err := store.Create(ctx, first); err == nil {
		t.Fatalf("expected duplicate create to fail")
	}

	got, err := store.Get(ctx, "b")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "first" || got.Data["info"] != "one" || !got.CreatedAt.Equal(base) {
		t.Fatalf("unexpected object: %#v", got)
	}

	listed, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 2 || listed[0].ID != "b" || listed[1].ID != "a" {
		t.Fatalf("expected creation order [b a], got %#v", listed)
	}

	first.Name = "renamed"
	if err := store.Replace(ctx, first); err != nil {
		t.Fatalf("replace: %v", err)
	}
	got, err = store.Get(ctx, "b")
	if err != nil {
		t.Fatalf("get after replace: %v", err)
	}
	if got.Name != "renamed" {
		t.Fatalf("expected replaced name, got %q", got.Name)
	}
	if err := store.Replace(ctx, Object{ID: "missing", Name: "x"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound replacing missing object, got %v", err)
	}

	if err := store.Delete(ctx, "b"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "b"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.Delete(ctx, "b"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound deleting twice, got %v", err)
	}

	listed, err = store.List(ctx)
	if err != nil {
		t.Fatalf("list after delete: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != "a" {
		t.Fatalf("expected only [a] after delete, got %#v", listed)
	}

	if err := store.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Create(ctx, Object{ID: "x", Name: "n", Data: map[string]any{"info": "v"}}); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := store.Get(ctx, "x")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	got.Data["info"] = "mutated"

	again, err := store.Get(ctx, "x")
	if err != nil {
		t.Fatalf("get again: %v", err)
	}
	if again.Data["info"] != "v" {
		t.Fatalf("expected stored data to be isolated from callers, got %v", again.Data["info"])
	}
}

func TestValkeyStore(t *testing.T) {
	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer server.Close()

	store, err := NewValkeyStore(ValkeyConfig{Address: server.Addr(), KeyPrefix: "test:"})
	if err != nil {
		t.Fatalf("new valkey store: %v", err)
	}
	exerciseStore(t, store)

	if !server.Exists("test:object:a") {
		t.Fatalf("expected object key under configured prefix")
	}
	members, err := server.SMembers("test:index")
	if err != nil {
		t.Fatalf("index members: %v", err)
	}
	if len(members) != 1 || members[0] != "a" {
		t.Fatalf("expected index [a], got %v", members)
	}
}

func TestNewValkeyStoreRequiresAddress(t *testing.T) {
	if _, err := NewValkeyStore(ValkeyConfig{}); err == nil {
		t.Fatalf("expected error without address")
	}
}
