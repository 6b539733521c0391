package reconciler

import (
	"context"
	"fmt"
	"strings"

	"github.com/Kowshalya-Eswar/agrofarm/internal/orders"
	"github.com/Kowshalya-Eswar/agrofarm/internal/products"
	"github.com/Kowshalya-Eswar/agrofarm/pkg/db/models"
	"github.com/Kowshalya-Eswar/agrofarm/pkg/enums"
	pkgerrors "github.com/Kowshalya-Eswar/agrofarm/pkg/errors"
	"github.com/Kowshalya-Eswar/agrofarm/pkg/logger"
	"github.com/Kowshalya-Eswar/agrofarm/pkg/metrics"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stockCounter interface {
	IncrementBy(ctx context.Context, productID string, qty int64) (int64, error)
}

// Notifier is the outbound order-confirmation collaborator.
type Notifier interface {
	OrderConfirmed(ctx context.Context, order *models.Order) error
}

// Event is an asynchronous payment verdict keyed by the provider reference.
type Event struct {
	Reference   string `json:"reference"`
	Status      string `json:"status"`
	AmountCents int64  `json:"amount_cents,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// Service applies payment verdicts to orders. Every path is idempotent
// against duplicate delivery: the payment row's pending→terminal transition
// is the single gate deciding whether side effects (order transition, stock
// restore, notification) run.
type Service struct {
	tx       txRunner
	repo     *orders.Repository
	products *products.Repository
	counter  stockCounter
	notifier Notifier
	logger   *logger.Logger
	metrics  *metrics.ReservationMetrics
}

func NewService(tx txRunner, repo *orders.Repository, productRepo *products.Repository, counter stockCounter, notifier Notifier, logg *logger.Logger, m *metrics.ReservationMetrics) (*Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if productRepo == nil {
		return nil, fmt.Errorf("products repository required")
	}
	if counter == nil {
		return nil, fmt.Errorf("stock counter required")
	}
	return &Service{
		tx:       tx,
		repo:     repo,
		products: productRepo,
		counter:  counter,
		notifier: notifier,
		logger:   logg,
		metrics:  m,
	}, nil
}

// HandleEvent processes one payment event. A nil return means the event is
// fully applied (or is a recognized no-op) and may be acknowledged; an error
// means the transport should redeliver.
func (s *Service) HandleEvent(ctx context.Context, event Event) error {
	reference := strings.TrimSpace(event.Reference)
	if reference == "" {
		s.warn(ctx, reference, "payment event without reference")
		s.metrics.IncPaymentEvent("malformed")
		return nil
	}
	if s.logger != nil {
		ctx = s.logger.WithOrderRef(ctx, reference)
	}

	payment, err := s.repo.FindPaymentByProviderRef(ctx, reference)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			// Unexpected or duplicate provider event for an order we never
			// persisted. Acknowledge so the transport stops retrying.
			s.warn(ctx, reference, "payment event for unknown order")
			s.metrics.IncPaymentEvent("unknown_order")
			return nil
		}
		return err
	}

	switch strings.ToLower(strings.TrimSpace(event.Status)) {
	case "captured", "completed", "approved":
		return s.applyCapture(ctx, payment, event)
	case "failed", "canceled", "cancelled":
		return s.applyFailure(ctx, payment, event)
	default:
		s.warn(ctx, reference, "payment event with unknown status "+event.Status)
		s.metrics.IncPaymentEvent("unknown_status")
		return nil
	}
}

func (s *Service) applyCapture(ctx context.Context, payment *models.Payment, event Event) error {
	captured := event.AmountCents
	if captured <= 0 {
		captured = payment.AmountCents
	}

	var updated, covered bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		updated, err = repo.MarkPaymentCaptured(ctx, payment.ID, captured)
		if err != nil {
			return err
		}
		// The order moves forward only once captures cover its total, so
		// a partial capture on a split payment leaves it pending. Summing
		// inside the transaction also lets a redelivered event whose first
		// delivery captured the payment but lost the order update finish
		// the job here.
		total, err := repo.SumCaptured(ctx, payment.OrderReference)
		if err != nil {
			return err
		}
		order, err := repo.FindByReference(ctx, payment.OrderReference)
		if err != nil {
			return err
		}
		if total < order.TotalCents {
			return nil
		}
		covered = true
		return s.ensureOrderStatus(ctx, repo, payment.OrderReference, enums.OrderStatusProcessing)
	})
	if err != nil {
		return err
	}

	if !updated {
		s.metrics.IncPaymentEvent("duplicate")
		return nil
	}
	s.metrics.IncPaymentEvent("captured")

	if s.notifier != nil && covered {
		order, err := s.repo.FindByReference(ctx, payment.OrderReference)
		if err == nil {
			if err := s.notifier.OrderConfirmed(ctx, order); err != nil {
				// Notification failures never block the acknowledgment;
				// the status mutation already committed.
				s.warn(ctx, payment.OrderReference, "order confirmation notification failed: "+err.Error())
			}
		}
	}
	return nil
}

// applyFailure marks the payment and order failed and restores authoritative
// stock for every line item. All three run in one transaction gated on the
// payment transition, so a duplicate delivery restores nothing.
func (s *Service) applyFailure(ctx context.Context, payment *models.Payment, event Event) error {
	var (
		updated  bool
		restored []models.OrderLineItem
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		updated, err = repo.MarkPaymentFailed(ctx, payment.ID, event.Reason)
		if err != nil {
			return err
		}
		if err := s.ensureOrderStatus(ctx, repo, payment.OrderReference, enums.OrderStatusFailed); err != nil {
			return err
		}
		if !updated {
			return nil
		}

		order, err := repo.FindByReference(ctx, payment.OrderReference)
		if err != nil {
			return err
		}
		productRepo := s.products.WithTx(tx)
		for _, line := range order.Items {
			if err := productRepo.IncrementStock(ctx, line.ProductID, line.Qty); err != nil {
				return err
			}
		}
		restored = order.Items
		return repo.UpdateStatus(ctx, payment.OrderReference, enums.OrderStatusFailedStockRolledback)
	})
	if err != nil {
		return err
	}

	if !updated {
		s.metrics.IncPaymentEvent("duplicate")
		return nil
	}

	// The reservable counter tracks authoritative stock; hand the restored
	// quantities back so carts can see them again. The counter lives outside
	// the database transaction, so failures here are logged for repair, not
	// redelivered: the payment is already terminal and a retry would be a
	// duplicate no-op.
	for _, line := range restored {
		if _, err := s.counter.IncrementBy(ctx, line.ProductID.String(), int64(line.Qty)); err != nil {
			if s.logger != nil {
				logCtx := s.logger.WithFields(ctx, map[string]any{
					"product_id": line.ProductID.String(),
					"qty":        line.Qty,
				})
				s.logger.Error(logCtx, "reservable counter restore failed", err)
			}
		}
	}
	s.metrics.IncPaymentEvent("failed")
	return nil
}

// ensureOrderStatus moves the order to target when the transition table
// allows it. Orders already at target, or past it, stay put, so a
// redelivered event cannot regress a shipped order, while a failure
// arriving after capture still moves processing to failed.
func (s *Service) ensureOrderStatus(ctx context.Context, repo *orders.Repository, reference string, target enums.OrderStatus) error {
	order, err := repo.FindByReference(ctx, reference)
	if err != nil {
		return err
	}
	if order.Status == target || !order.Status.CanTransition(target) {
		return nil
	}
	return repo.UpdateStatus(ctx, reference, target)
}

func (s *Service) warn(ctx context.Context, reference, msg string) {
	if s.logger == nil {
		return
	}
	if reference != "" {
		ctx = s.logger.WithOrderRef(ctx, reference)
	}
	s.logger.Warn(ctx, msg)
}
