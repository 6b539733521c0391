package holds

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// KeyLock serializes hold mutations for one (product, cart) pair. Concurrent
// adds for the same pair race on the check-then-act sequence; the lock closes
// that window while leaving different pairs fully parallel.
type KeyLock struct {
	registry  *Registry
	key       string
	owner     string
	ttl       time.Duration
	retryWait time.Duration
}

// KeyLock returns an unacquired lock for the pair.
func (r *Registry) KeyLock(productID, cartID string) *KeyLock {
	return &KeyLock{
		registry:  r,
		key:       r.store.LockKey(fmt.Sprintf("hold:%s:%s", productID, cartID)),
		ttl:       r.lockTTL,
		retryWait: r.lockRetry,
	}
}

// Acquire blocks until the lock is owned or the context ends. The TTL bounds
// how long a crashed owner can wedge the pair.
func (l *KeyLock) Acquire(ctx context.Context) error {
	owner := uuid.NewString()
	for {
		ok, err := l.registry.store.SetNX(ctx, l.key, owner, l.ttl)
		if err != nil {
			return fmt.Errorf("acquire key lock: %w", err)
		}
		if ok {
			l.owner = owner
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.retryWait):
		}
	}
}

// Release frees the lock only if this holder still owns it.
func (l *KeyLock) Release(ctx context.Context) error {
	if l.owner == "" {
		return nil
	}
	value, err := l.registry.store.Get(ctx, l.key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			l.owner = ""
			return nil
		}
		return fmt.Errorf("read lock owner: %w", err)
	}
	if value != l.owner {
		l.owner = ""
		return nil
	}
	if _, err := l.registry.store.Del(ctx, l.key); err != nil {
		return fmt.Errorf("delete lock: %w", err)
	}
	l.owner = ""
	return nil
}
