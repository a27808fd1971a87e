package kv

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if err := store.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "v" {
		t.Errorf("Get = %q, want %q", got, "v")
	}

	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Delete: err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreMissingKey(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.Get(context.Background(), "absent"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreFaultInjection(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	store.FailWrites = true
	if err := store.Set(ctx, "k", "v2"); err == nil {
		t.Error("Set with FailWrites: want error")
	}
	if err := store.Delete(ctx, "k"); err == nil {
		t.Error("Delete with FailWrites: want error")
	}

	store.FailReads = true
	_, err := store.Get(ctx, "k")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("Get with FailReads: err = %v, want non-NotFound error", err)
	}

	// The stored value must survive the failed write attempts.
	store.FailWrites = false
	store.FailReads = false
	got, err := store.Get(ctx, "k")
	if err != nil || got != "v" {
		t.Errorf("Get after recovery = %q, %v; want %q, nil", got, err, "v")
	}
}
