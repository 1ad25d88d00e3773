package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

type payload struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	in := payload{Name: "SPY-QQQ", Value: 0.82}
	if err := store.Set(ctx, "test:key", in, time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	var out payload
	if err := store.Get(ctx, "test:key", &out); err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if out != in {
		t.Errorf("expected %+v, got %+v", in, out)
	}
}

func TestMemoryStoreMissIsErrMiss(t *testing.T) {
	store := NewMemoryStore()

	var out payload
	if err := store.Get(context.Background(), "absent", &out); !errors.Is(err, ErrMiss) {
		t.Errorf("expected ErrMiss, got %v", err)
	}
}

func TestMemoryStoreTTLExpiry(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Set(ctx, "short", payload{Name: "x"}, time.Millisecond); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	var out payload
	if err := store.Get(ctx, "short", &out); !errors.Is(err, ErrMiss) {
		t.Errorf("expected expiry miss, got %v", err)
	}
}

func TestMemoryStoreNoTTLNeverExpires(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Set(ctx, "halt", payload{Name: "active"}, 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	time.Sleep(2 * time.Millisecond)

	var out payload
	if err := store.Get(ctx, "halt", &out); err != nil {
		t.Errorf("expected persistent key, got %v", err)
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.Set(ctx, "a", payload{}, 0)
	store.Set(ctx, "b", payload{}, 0)

	if err := store.Delete(ctx, "a", "b"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	var out payload
	if err := store.Get(ctx, "a", &out); !errors.Is(err, ErrMiss) {
		t.Errorf("expected miss after delete, got %v", err)
	}
}
