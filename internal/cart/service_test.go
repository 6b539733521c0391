package cart

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Kowshalya-Eswar/agrofarm/internal/holds"
	"github.com/Kowshalya-Eswar/agrofarm/internal/ledger"
	pkgerrors "github.com/Kowshalya-Eswar/agrofarm/pkg/errors"
)

// memStore backs both the counter and hold surfaces in memory, guarded by a
// mutex so concurrency tests exercise real interleavings.
type memStore struct {
	mu       sync.Mutex
	counters map[string]int64
	hashes   map[string]map[string]string
	locks    map[string]string
	hsetErr  error
	delErr   error
}

func newMemStore() *memStore {
	return &memStore{
		counters: map[string]int64{},
		hashes:   map[string]map[string]string{},
		locks:    map[string]string{},
	}
}

func (m *memStore) GetInt(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[key], nil
}

func (m *memStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[key] = value.(int64)
	return nil
}

func (m *memStore) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[key] += delta
	return m.counters[key], nil
}

func (m *memStore) DecrBy(ctx context.Context, key string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[key] -= delta
	return m.counters[key], nil
}

func (m *memStore) HSet(ctx context.Context, key string, values ...any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hsetErr != nil {
		return m.hsetErr
	}
	hash, ok := m.hashes[key]
	if !ok {
		hash = map[string]string{}
		m.hashes[key] = hash
	}
	for i := 0; i+1 < len(values); i += 2 {
		hash[values[i].(string)] = values[i+1].(string)
	}
	return nil
}

func (m *memStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]string{}
	for k, v := range m.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (m *memStore) Del(ctx context.Context, keys ...string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.delErr != nil {
		return 0, m.delErr
	}
	var removed int64
	for _, key := range keys {
		_, inHashes := m.hashes[key]
		_, inLocks := m.locks[key]
		if inHashes || inLocks {
			removed++
		}
		delete(m.hashes, key)
		delete(m.locks, key)
	}
	return removed, nil
}

func (m *memStore) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.hashes {
		if matchGlob(pattern, k) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (m *memStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.locks[key]; exists {
		return false, nil
	}
	m.locks[key] = value.(string)
	return true, nil
}

func (m *memStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locks[key], nil
}

func (m *memStore) StockKey(productID string) string { return "agrofarm:stock:" + productID }

func (m *memStore) HoldKey(productID, cartID string) string {
	return "agrofarm:hold:" + productID + ":" + cartID
}

func (m *memStore) HoldPattern() string { return "agrofarm:hold:*:*" }

func (m *memStore) CartHoldPattern(cartID string) string { return "agrofarm:hold:*:" + cartID }

func (m *memStore) LockKey(scope string) string { return "agrofarm:lock:" + scope }

func matchGlob(pattern, key string) bool {
	pp := strings.Split(pattern, ":")
	kp := strings.Split(key, ":")
	if len(pp) != len(kp) {
		return false
	}
	for i := range pp {
		if pp[i] != "*" && pp[i] != kp[i] {
			return false
		}
	}
	return true
}

func newTestService() (*Service, *memStore, *holds.Registry) {
	store := newMemStore()
	led := ledger.NewService(store)
	reg := holds.NewRegistry(store, nil, time.Second, time.Millisecond)
	return NewService(led, reg, nil, nil), store, reg
}

func TestAddThenRemoveScenario(t *testing.T) {
	ctx := context.Background()
	svc, store, reg := newTestService()
	store.counters["agrofarm:stock:p"] = 10

	if err := svc.AddToCart(ctx, "p", "cart", 3); err != nil {
		t.Fatalf("add: %v", err)
	}
	if n, _ := svc.GetStock(ctx, "p"); n != 7 {
		t.Fatalf("expected stock 7 after add, got %d", n)
	}
	hold, _ := reg.Get(ctx, "p", "cart")
	if hold == nil || hold.Qty != 3 {
		t.Fatalf("expected hold qty 3, got %+v", hold)
	}

	if err := svc.RemoveFromCart(ctx, "p", "cart", 2); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if n, _ := svc.GetStock(ctx, "p"); n != 9 {
		t.Fatalf("expected stock 9, got %d", n)
	}

	if err := svc.RemoveFromCart(ctx, "p", "cart", 1); err != nil {
		t.Fatalf("final remove: %v", err)
	}
	if n, _ := svc.GetStock(ctx, "p"); n != 10 {
		t.Fatalf("expected stock 10, got %d", n)
	}
	hold, _ = reg.Get(ctx, "p", "cart")
	if hold != nil {
		t.Fatalf("hold should be deleted, got %+v", hold)
	}
}

func TestAddToCartInsufficientStockMakesNoMutation(t *testing.T) {
	ctx := context.Background()
	svc, store, reg := newTestService()
	store.counters["agrofarm:stock:p"] = 2

	err := svc.AddToCart(ctx, "p", "cart", 3)
	if !pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if n, _ := svc.GetStock(ctx, "p"); n != 2 {
		t.Fatalf("counter mutated by rejected add: %d", n)
	}
	if hold, _ := reg.Get(ctx, "p", "cart"); hold != nil {
		t.Fatalf("hold created by rejected add: %+v", hold)
	}
}

func TestAddToCartTopUpCountsExistingHold(t *testing.T) {
	ctx := context.Background()
	svc, store, reg := newTestService()
	store.counters["agrofarm:stock:p"] = 10

	if err := svc.AddToCart(ctx, "p", "cart", 4); err != nil {
		t.Fatalf("add: %v", err)
	}

	// Counter is 6 which covers qty=3 alone, but not held(4)+3.
	err := svc.AddToCart(ctx, "p", "cart", 3)
	if !pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if n, _ := svc.GetStock(ctx, "p"); n != 6 {
		t.Fatalf("counter mutated by rejected top-up: %d", n)
	}
	if hold, _ := reg.Get(ctx, "p", "cart"); hold == nil || hold.Qty != 4 {
		t.Fatalf("hold mutated by rejected top-up: %+v", hold)
	}
}

func TestRemoveMoreThanHeldRejected(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService()
	store.counters["agrofarm:stock:p"] = 10

	if err := svc.AddToCart(ctx, "p", "cart", 2); err != nil {
		t.Fatalf("add: %v", err)
	}
	err := svc.RemoveFromCart(ctx, "p", "cart", 5)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if n, _ := svc.GetStock(ctx, "p"); n != 8 {
		t.Fatalf("counter mutated by rejected remove: %d", n)
	}
}

func TestNoOversellUnderConcurrentAdds(t *testing.T) {
	ctx := context.Background()
	svc, store, reg := newTestService()
	const stock = 10
	store.counters["agrofarm:stock:p"] = stock

	const workers = 25
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- svc.AddToCart(ctx, "p", "cart", 1)
		}()
	}
	wg.Wait()
	close(results)

	var succeeded int64
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		if !pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock) {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if succeeded > stock {
		t.Fatalf("oversold: %d adds succeeded with stock %d", succeeded, stock)
	}

	// Ledger invariant at quiescence: counter + held quantities == stock.
	counter, _ := svc.GetStock(ctx, "p")
	hold, _ := reg.Get(ctx, "p", "cart")
	held := int64(0)
	if hold != nil {
		held = hold.Qty
	}
	if counter+held != stock {
		t.Fatalf("invariant broken: counter=%d held=%d stock=%d", counter, held, stock)
	}
	if held != succeeded {
		t.Fatalf("held %d but %d adds succeeded", held, succeeded)
	}
}

func TestClearCartLeavesCounterAlone(t *testing.T) {
	ctx := context.Background()
	svc, store, reg := newTestService()
	store.counters["agrofarm:stock:p1"] = 10
	store.counters["agrofarm:stock:p2"] = 10

	_ = svc.AddToCart(ctx, "p1", "cart", 3)
	_ = svc.AddToCart(ctx, "p2", "cart", 2)

	if err := svc.ClearCart(ctx, "cart"); err != nil {
		t.Fatalf("clear: %v", err)
	}

	if n, _ := svc.GetStock(ctx, "p1"); n != 7 {
		t.Fatalf("clear must not restore counters, got %d", n)
	}
	if hold, _ := reg.Get(ctx, "p1", "cart"); hold != nil {
		t.Fatalf("hold survived clear: %+v", hold)
	}
	if hold, _ := reg.Get(ctx, "p2", "cart"); hold != nil {
		t.Fatalf("hold survived clear: %+v", hold)
	}
}

func TestRestoreCartReturnsStock(t *testing.T) {
	ctx := context.Background()
	svc, store, reg := newTestService()
	store.counters["agrofarm:stock:p1"] = 10

	_ = svc.AddToCart(ctx, "p1", "cart", 4)

	err := svc.RestoreCart(ctx, "cart", []RestoreItem{{ProductID: "p1", Qty: 4}})
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if n, _ := svc.GetStock(ctx, "p1"); n != 10 {
		t.Fatalf("expected stock restored to 10, got %d", n)
	}
	if hold, _ := reg.Get(ctx, "p1", "cart"); hold != nil {
		t.Fatalf("hold survived restore: %+v", hold)
	}
}

func TestRestoreCartRetryIsNoOp(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService()
	store.counters["agrofarm:stock:p1"] = 10

	_ = svc.AddToCart(ctx, "p1", "cart", 4)

	items := []RestoreItem{{ProductID: "p1", Qty: 4}}
	if err := svc.RestoreCart(ctx, "cart", items); err != nil {
		t.Fatalf("restore: %v", err)
	}
	// A redelivered restore finds no hold and must not credit the counter
	// past authoritative stock.
	if err := svc.RestoreCart(ctx, "cart", items); err != nil {
		t.Fatalf("retried restore: %v", err)
	}
	if n, _ := svc.GetStock(ctx, "p1"); n != 10 {
		t.Fatalf("retried restore inflated counter to %d, stock is 10", n)
	}
}

func TestRestoreCartIgnoresClientQuantity(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService()
	store.counters["agrofarm:stock:p1"] = 10

	_ = svc.AddToCart(ctx, "p1", "cart", 4)

	// The hold records 4; a client claiming 9 gets back exactly 4.
	if err := svc.RestoreCart(ctx, "cart", []RestoreItem{{ProductID: "p1", Qty: 9}}); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if n, _ := svc.GetStock(ctx, "p1"); n != 10 {
		t.Fatalf("restore credited client quantity, counter %d", n)
	}
}

func TestRestoreCartSurfacesDeleteFailure(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService()
	store.counters["agrofarm:stock:p1"] = 10

	_ = svc.AddToCart(ctx, "p1", "cart", 4)

	store.delErr = errors.New("redis down")
	err := svc.RestoreCart(ctx, "cart", []RestoreItem{{ProductID: "p1", Qty: 4}})
	if err == nil {
		t.Fatalf("expected error when hold delete fails")
	}
	if n, _ := svc.GetStock(ctx, "p1"); n != 6 {
		t.Fatalf("counter mutated despite failed delete: %d", n)
	}
}

func TestRemoveFromCartRollsBackCounterOnHoldFailure(t *testing.T) {
	ctx := context.Background()
	svc, store, reg := newTestService()
	store.counters["agrofarm:stock:p"] = 10

	if err := svc.AddToCart(ctx, "p", "cart", 3); err != nil {
		t.Fatalf("add: %v", err)
	}

	store.hsetErr = errors.New("redis down")
	err := svc.RemoveFromCart(ctx, "p", "cart", 2)
	if err == nil {
		t.Fatalf("expected error when hold write fails")
	}
	if n, _ := svc.GetStock(ctx, "p"); n != 7 {
		t.Fatalf("counter not rolled back after hold write failure: %d", n)
	}

	store.hsetErr = nil
	if hold, _ := reg.Get(ctx, "p", "cart"); hold == nil || hold.Qty != 3 {
		t.Fatalf("hold mutated by failed remove: %+v", hold)
	}
}
