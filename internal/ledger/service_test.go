package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	pkgerrors "github.com/Kowshalya-Eswar/agrofarm/pkg/errors"
)

type fakeStore struct {
	counters map[string]int64
	fail     bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{counters: map[string]int64{}}
}

func (f *fakeStore) GetInt(ctx context.Context, key string) (int64, error) {
	if f.fail {
		return 0, errors.New("store down")
	}
	return f.counters[key], nil
}

func (f *fakeStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if f.fail {
		return errors.New("store down")
	}
	f.counters[key] = value.(int64)
	return nil
}

func (f *fakeStore) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	if f.fail {
		return 0, errors.New("store down")
	}
	f.counters[key] += delta
	return f.counters[key], nil
}

func (f *fakeStore) DecrBy(ctx context.Context, key string, delta int64) (int64, error) {
	if f.fail {
		return 0, errors.New("store down")
	}
	f.counters[key] -= delta
	return f.counters[key], nil
}

func (f *fakeStore) StockKey(productID string) string {
	return "agrofarm:stock:" + productID
}

func TestCounterLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := NewService(store)

	if err := svc.Set(ctx, "p1", int64(10)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if n, err := svc.DecrementBy(ctx, "p1", 3); err != nil || n != 7 {
		t.Fatalf("decrement: n=%d err=%v", n, err)
	}
	if n, err := svc.IncrementBy(ctx, "p1", 2); err != nil || n != 9 {
		t.Fatalf("increment: n=%d err=%v", n, err)
	}
	if n, err := svc.Get(ctx, "p1"); err != nil || n != 9 {
		t.Fatalf("get: n=%d err=%v", n, err)
	}
}

func TestCounterMayGoNegative(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := NewService(store)

	n, err := svc.DecrementBy(ctx, "p1", 5)
	if err != nil {
		t.Fatalf("decrement: %v", err)
	}
	if n != -5 {
		t.Fatalf("expected -5, got %d", n)
	}
}

func TestStoreFailureSurfacesDependencyError(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.fail = true
	svc := NewService(store)

	_, err := svc.Get(ctx, "p1")
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if _, err := svc.DecrementBy(ctx, "p1", 1); !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}
