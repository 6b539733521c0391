package ledger

import (
	"context"
	"time"

	pkgerrors "github.com/Kowshalya-Eswar/agrofarm/pkg/errors"
)

// Store is the counter surface of the shared reservation store.
type Store interface {
	GetInt(ctx context.Context, key string) (int64, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)
	DecrBy(ctx context.Context, key string, delta int64) (int64, error)
	StockKey(productID string) string
}

// Service exposes the per-product reservation counter. The counter tracks
// stock available for new reservations; it is seeded at product creation and
// allowed to go negative briefly while a hold mutation is in flight.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Get reads the current reservable quantity for a product.
func (s *Service) Get(ctx context.Context, productID string) (int64, error) {
	n, err := s.store.GetInt(ctx, s.store.StockKey(productID))
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read stock counter")
	}
	return n, nil
}

// Set overwrites the counter. Used only when a product is created.
func (s *Service) Set(ctx context.Context, productID string, qty int64) error {
	if err := s.store.Set(ctx, s.store.StockKey(productID), qty, 0); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "seed stock counter")
	}
	return nil
}

// IncrementBy atomically returns quantity to the counter.
func (s *Service) IncrementBy(ctx context.Context, productID string, qty int64) (int64, error) {
	n, err := s.store.IncrBy(ctx, s.store.StockKey(productID), qty)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment stock counter")
	}
	return n, nil
}

// DecrementBy atomically removes quantity from the counter. Callers pre-check
// availability; a negative result is theirs to repair.
func (s *Service) DecrementBy(ctx context.Context, productID string, qty int64) (int64, error) {
	n, err := s.store.DecrBy(ctx, s.store.StockKey(productID), qty)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement stock counter")
	}
	return n, nil
}
