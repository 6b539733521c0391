package orders

import (
	"context"
	"errors"

	"github.com/Kowshalya-Eswar/agrofarm/pkg/db/models"
	"github.com/Kowshalya-Eswar/agrofarm/pkg/enums"
	pkgerrors "github.com/Kowshalya-Eswar/agrofarm/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists orders, their line item snapshots and payment rows.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts the order together with its line items and payment rows.
func (r *Repository) Create(ctx context.Context, order *models.Order) error {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to persist order")
	}
	return nil
}

func (r *Repository) FindByReference(ctx context.Context, reference string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Payments").
		Where("reference = ?", reference).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load order")
	}
	return &order, nil
}

func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to list orders")
	}
	return orders, nil
}

// UpdateStatus moves the order from its current status to target. The update
// is conditioned on the current status so a concurrent transition loses
// cleanly instead of overwriting.
func (r *Repository) UpdateStatus(ctx context.Context, reference string, target enums.OrderStatus) error {
	order, err := r.FindByReference(ctx, reference)
	if err != nil {
		return err
	}
	if !order.Status.CanTransition(target) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "illegal order status transition").
			WithDetails(map[string]any{"from": order.Status.String(), "to": target.String()})
	}

	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("reference = ? AND status = ?", reference, order.Status).
		UpdateColumn("status", target)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "failed to update order status")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently")
	}
	return nil
}

func (r *Repository) FindPaymentByProviderRef(ctx context.Context, providerRef string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("provider_ref = ?", providerRef).
		First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load payment")
	}
	return &payment, nil
}

// MarkPaymentCaptured records a capture against a pending payment. A payment
// already in a terminal status is left untouched and reported via the bool so
// duplicate event deliveries stay no-ops.
func (r *Repository) MarkPaymentCaptured(ctx context.Context, paymentID uuid.UUID, capturedCents int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status = ?", paymentID, enums.PaymentStatusPending).
		Updates(map[string]any{
			"status":         enums.PaymentStatusCaptured,
			"captured_cents": capturedCents,
		})
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "failed to mark payment captured")
	}
	return res.RowsAffected > 0, nil
}

// MarkPaymentFailed records a failure against a pending payment. Same
// duplicate-delivery contract as MarkPaymentCaptured.
func (r *Repository) MarkPaymentFailed(ctx context.Context, paymentID uuid.UUID, reason string) (bool, error) {
	updates := map[string]any{"status": enums.PaymentStatusFailed}
	if reason != "" {
		updates["failure_reason"] = reason
	}
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status = ?", paymentID, enums.PaymentStatusPending).
		Updates(updates)
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "failed to mark payment failed")
	}
	return res.RowsAffected > 0, nil
}

// SumCaptured totals the captured amounts across the order's payments.
func (r *Repository) SumCaptured(ctx context.Context, reference string) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("order_reference = ?", reference).
		Select("COALESCE(SUM(captured_cents), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to sum captured payments")
	}
	return total, nil
}
