package cart

import (
	"context"
	"time"

	"github.com/Kowshalya-Eswar/agrofarm/internal/holds"
	"github.com/Kowshalya-Eswar/agrofarm/internal/ledger"
	pkgerrors "github.com/Kowshalya-Eswar/agrofarm/pkg/errors"
	"github.com/Kowshalya-Eswar/agrofarm/pkg/logger"
	"github.com/Kowshalya-Eswar/agrofarm/pkg/metrics"
)

// RestoreItem names a (product, quantity) pair handed back on cart abandonment.
type RestoreItem struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Qty       int64  `json:"qty" validate:"required,gt=0"`
}

// Service turns cart line mutations into ledger + hold updates. Every mutation
// for a (product, cart) pair runs under that pair's key lock.
type Service struct {
	ledger  *ledger.Service
	holds   *holds.Registry
	logger  *logger.Logger
	metrics *metrics.ReservationMetrics
	now     func() time.Time
}

func NewService(led *ledger.Service, reg *holds.Registry, logg *logger.Logger, m *metrics.ReservationMetrics) *Service {
	return &Service{
		ledger:  led,
		holds:   reg,
		logger:  logg,
		metrics: m,
		now:     time.Now,
	}
}

// AddToCart reserves qty for the cart. The counter check and the hold upsert
// are two steps; the key lock keeps concurrent adds for the same pair from
// interleaving between them.
func (s *Service) AddToCart(ctx context.Context, productID, cartID string, qty int64) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	lock := s.holds.KeyLock(productID, cartID)
	if err := lock.Acquire(ctx); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire reservation lock")
	}
	defer lock.Release(ctx)

	available, err := s.ledger.Get(ctx, productID)
	if err != nil {
		return err
	}
	hold, err := s.holds.Get(ctx, productID, cartID)
	if err != nil {
		return err
	}
	held := int64(0)
	if hold != nil {
		held = hold.Qty
	}
	// The counter must cover the pair's existing hold plus the new quantity,
	// so a cart topping up an already-large hold does not crowd out others.
	if available < held+qty {
		return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
			WithDetails(map[string]any{"product_id": productID, "available": available, "held": held, "requested": qty})
	}

	if _, err := s.ledger.DecrementBy(ctx, productID, qty); err != nil {
		return err
	}
	if err := s.holds.Upsert(ctx, productID, cartID, qty, s.now()); err != nil {
		// counter already moved; put it back so the invariant holds
		if _, restoreErr := s.ledger.IncrementBy(ctx, productID, qty); restoreErr != nil {
			s.warn(ctx, productID, cartID, "counter restore failed after hold write failure", restoreErr)
		}
		return err
	}

	s.metrics.IncHoldCreated()
	return nil
}

// RemoveFromCart returns qty from the hold to the counter. Removing more than
// is held is rejected without mutation.
func (s *Service) RemoveFromCart(ctx context.Context, productID, cartID string, qty int64) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	lock := s.holds.KeyLock(productID, cartID)
	if err := lock.Acquire(ctx); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire reservation lock")
	}
	defer lock.Release(ctx)

	hold, err := s.holds.Get(ctx, productID, cartID)
	if err != nil {
		return err
	}
	if hold == nil || hold.Qty < qty {
		held := int64(0)
		if hold != nil {
			held = hold.Qty
		}
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity exceeds held amount").
			WithDetails(map[string]any{"held": held, "requested": qty})
	}

	if _, err := s.ledger.IncrementBy(ctx, productID, qty); err != nil {
		return err
	}
	remaining, err := s.holds.Decrement(ctx, productID, cartID, qty)
	if err != nil {
		// counter already moved; put it back so the invariant holds
		if _, restoreErr := s.ledger.DecrementBy(ctx, productID, qty); restoreErr != nil {
			s.warn(ctx, productID, cartID, "counter restore failed after hold decrement failure", restoreErr)
		}
		return err
	}
	if remaining == 0 {
		s.metrics.IncHoldReleased("removal")
	}
	return nil
}

// ClearCart drops every hold for the cart without touching the counter. Used
// after an order commits: authoritative stock was already decremented, so the
// reservation is spent, not returned.
func (s *Service) ClearCart(ctx context.Context, cartID string) error {
	cartHolds, err := s.holds.ListByCart(ctx, cartID)
	if err != nil {
		return err
	}
	for _, h := range cartHolds {
		removed, err := s.holds.Delete(ctx, h.ProductID, h.CartID)
		if err != nil {
			return err
		}
		if removed {
			s.metrics.IncHoldReleased("checkout")
		}
	}
	return nil
}

// RestoreCart hands back abandoned reservations. The quantity returned is the
// recorded hold's, never the client's, and the hold delete gates the counter
// increment, so a retried restore finds no hold and is a no-op.
func (s *Service) RestoreCart(ctx context.Context, cartID string, items []RestoreItem) error {
	if len(items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "items are required")
	}
	for _, item := range items {
		if item.Qty <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
		}
	}
	for _, item := range items {
		if err := s.restoreItem(ctx, cartID, item.ProductID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) restoreItem(ctx context.Context, cartID, productID string) error {
	lock := s.holds.KeyLock(productID, cartID)
	if err := lock.Acquire(ctx); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire reservation lock")
	}
	defer lock.Release(ctx)

	hold, err := s.holds.Get(ctx, productID, cartID)
	if err != nil {
		return err
	}
	if hold == nil {
		return nil
	}
	removed, err := s.holds.Delete(ctx, productID, cartID)
	if err != nil {
		return err
	}
	if !removed {
		return nil
	}
	if _, err := s.ledger.IncrementBy(ctx, productID, hold.Qty); err != nil {
		s.warn(ctx, productID, cartID, "counter restore failed after hold delete", err)
		return err
	}
	s.metrics.IncHoldReleased("removal")
	return nil
}

// GetStock reads the reservable quantity for display. It can lag behind
// authoritative stock until the next sweep.
func (s *Service) GetStock(ctx context.Context, productID string) (int64, error) {
	return s.ledger.Get(ctx, productID)
}

func (s *Service) warn(ctx context.Context, productID, cartID, msg string, err error) {
	if s.logger == nil {
		return
	}
	ctx = s.logger.WithFields(ctx, map[string]any{
		"product_id": productID,
		"cart_id":    cartID,
		"error":      err.Error(),
	})
	s.logger.Warn(ctx, msg)
}
