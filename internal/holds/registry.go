package holds

import (
	"context"
	"strconv"
	"time"

	pkgerrors "github.com/Kowshalya-Eswar/agrofarm/pkg/errors"
	"github.com/Kowshalya-Eswar/agrofarm/pkg/logger"
	"github.com/Kowshalya-Eswar/agrofarm/pkg/redis"
)

const (
	fieldQty       = "qty"
	fieldCreatedAt = "created_at"
)

// Hold is a soft reservation of quantity against a product for one cart.
type Hold struct {
	ProductID string
	CartID    string
	Qty       int64
	CreatedAt time.Time
}

// Age reports how long the hold has existed.
func (h Hold) Age(now time.Time) time.Duration {
	return now.Sub(h.CreatedAt)
}

// Store is the hash/scan surface of the shared reservation store.
type Store interface {
	HSet(ctx context.Context, key string, values ...any) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, keys ...string) (int64, error)
	ScanKeys(ctx context.Context, pattern string) ([]string, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	HoldKey(productID, cartID string) string
	HoldPattern() string
	CartHoldPattern(cartID string) string
	LockKey(scope string) string
}

// Registry owns hold records in the shared store. One hold per (product, cart);
// a second add merges into the existing quantity.
type Registry struct {
	store     Store
	logger    *logger.Logger
	lockTTL   time.Duration
	lockRetry time.Duration
}

func NewRegistry(store Store, logg *logger.Logger, lockTTL, lockRetry time.Duration) *Registry {
	if lockTTL <= 0 {
		lockTTL = 5 * time.Second
	}
	if lockRetry <= 0 {
		lockRetry = 25 * time.Millisecond
	}
	return &Registry{store: store, logger: logg, lockTTL: lockTTL, lockRetry: lockRetry}
}

// Get returns the hold for the pair, or nil when none exists.
func (r *Registry) Get(ctx context.Context, productID, cartID string) (*Hold, error) {
	fields, err := r.store.HGetAll(ctx, r.store.HoldKey(productID, cartID))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read hold")
	}
	if len(fields) == 0 {
		return nil, nil
	}
	hold, err := holdFromFields(productID, cartID, fields)
	if err != nil {
		return nil, err
	}
	return hold, nil
}

// Upsert merges qty into the hold for the pair. created_at is written only on
// first creation so the TTL reflects the original reservation.
func (r *Registry) Upsert(ctx context.Context, productID, cartID string, qty int64, now time.Time) error {
	existing, err := r.Get(ctx, productID, cartID)
	if err != nil {
		return err
	}
	key := r.store.HoldKey(productID, cartID)
	if existing == nil {
		err = r.store.HSet(ctx, key,
			fieldQty, strconv.FormatInt(qty, 10),
			fieldCreatedAt, now.UTC().Format(time.RFC3339Nano),
		)
	} else {
		err = r.store.HSet(ctx, key, fieldQty, strconv.FormatInt(existing.Qty+qty, 10))
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write hold")
	}
	return nil
}

// Decrement subtracts qty from the hold and deletes it at zero. The remaining
// quantity is returned.
func (r *Registry) Decrement(ctx context.Context, productID, cartID string, qty int64) (int64, error) {
	existing, err := r.Get(ctx, productID, cartID)
	if err != nil {
		return 0, err
	}
	if existing == nil || existing.Qty < qty {
		current := int64(0)
		if existing != nil {
			current = existing.Qty
		}
		return current, pkgerrors.New(pkgerrors.CodeValidation, "quantity exceeds held amount").
			WithDetails(map[string]any{"held": current, "requested": qty})
	}
	remaining := existing.Qty - qty
	key := r.store.HoldKey(productID, cartID)
	if remaining == 0 {
		if _, err := r.store.Del(ctx, key); err != nil {
			return remaining, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete hold")
		}
		return 0, nil
	}
	if err := r.store.HSet(ctx, key, fieldQty, strconv.FormatInt(remaining, 10)); err != nil {
		return remaining, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write hold")
	}
	return remaining, nil
}

// Delete removes the hold unconditionally and reports whether it existed.
// Callers returning quantity to a counter gate on that report, so a hold
// deleted concurrently is handed back at most once.
func (r *Registry) Delete(ctx context.Context, productID, cartID string) (bool, error) {
	removed, err := r.store.Del(ctx, r.store.HoldKey(productID, cartID))
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete hold")
	}
	return removed > 0, nil
}

// ListByCart enumerates every hold belonging to one cart.
func (r *Registry) ListByCart(ctx context.Context, cartID string) ([]Hold, error) {
	return r.list(ctx, r.store.CartHoldPattern(cartID))
}

// ListAll enumerates every hold in the keyspace. Corrupt records are logged
// and skipped so a bad key never stops a sweep.
func (r *Registry) ListAll(ctx context.Context) ([]Hold, error) {
	return r.list(ctx, r.store.HoldPattern())
}

func (r *Registry) list(ctx context.Context, pattern string) ([]Hold, error) {
	keys, err := r.store.ScanKeys(ctx, pattern)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "scan holds")
	}
	out := make([]Hold, 0, len(keys))
	for _, key := range keys {
		productID, cartID, ok := redis.SplitHoldKey(key)
		if !ok {
			r.warnSkip(ctx, key, "unparseable hold key")
			continue
		}
		fields, err := r.store.HGetAll(ctx, key)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read hold")
		}
		if len(fields) == 0 {
			// deleted between scan and read
			continue
		}
		hold, err := holdFromFields(productID, cartID, fields)
		if err != nil {
			r.warnSkip(ctx, key, err.Error())
			continue
		}
		out = append(out, *hold)
	}
	return out, nil
}

func (r *Registry) warnSkip(ctx context.Context, key, reason string) {
	if r.logger == nil {
		return
	}
	ctx = r.logger.WithFields(ctx, map[string]any{"hold_key": key, "reason": reason})
	r.logger.Warn(ctx, "skipping corrupt hold")
}

func holdFromFields(productID, cartID string, fields map[string]string) (*Hold, error) {
	qty, err := strconv.ParseInt(fields[fieldQty], 10, 64)
	if err != nil || qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "hold has invalid quantity")
	}
	createdAt, err := time.Parse(time.RFC3339Nano, fields[fieldCreatedAt])
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "hold has invalid created_at")
	}
	return &Hold{ProductID: productID, CartID: cartID, Qty: qty, CreatedAt: createdAt}, nil
}
