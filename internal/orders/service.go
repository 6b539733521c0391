package orders

import (
	"context"
	"fmt"
	"strings"

	"github.com/Kowshalya-Eswar/agrofarm/internal/payments"
	"github.com/Kowshalya-Eswar/agrofarm/pkg/db/models"
	"github.com/Kowshalya-Eswar/agrofarm/pkg/enums"
	pkgerrors "github.com/Kowshalya-Eswar/agrofarm/pkg/errors"
	"github.com/Kowshalya-Eswar/agrofarm/pkg/logger"
	"github.com/Kowshalya-Eswar/agrofarm/pkg/metrics"
	"github.com/Kowshalya-Eswar/agrofarm/pkg/types"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	DecrementStock(ctx context.Context, id uuid.UUID, qty int) error
	IncrementStock(ctx context.Context, id uuid.UUID, qty int) error
}

type paymentGateway interface {
	CreatePayment(ctx context.Context, req payments.Request) (*payments.ProviderPayment, error)
}

// OrderItemInput is one requested line. Unit prices always come from the
// product record, never from the client.
type OrderItemInput struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Qty       int       `json:"qty" validate:"required,gt=0"`
}

type CreateOrderInput struct {
	Items           []OrderItemInput `json:"items" validate:"required,min=1,dive"`
	ShippingAddress types.Address    `json:"shipping_address"`
	PaymentMethod   string           `json:"payment_method"`
	SourceID        string           `json:"source_id" validate:"required"`
}

// CreateOrderResult is returned to the client to continue checkout.
type CreateOrderResult struct {
	Reference     string `json:"reference"`
	CheckoutToken string `json:"checkout_token,omitempty"`
	TotalCents    int64  `json:"total_cents"`
}

// Service orchestrates order creation against the authoritative store and the
// payment gateway.
type Service struct {
	tx       txRunner
	products productStore
	gateway  paymentGateway
	repo     *Repository
	currency string
	logger   *logger.Logger
	metrics  *metrics.ReservationMetrics
}

func NewService(tx txRunner, products productStore, gateway paymentGateway, repo *Repository, currency string, logg *logger.Logger, m *metrics.ReservationMetrics) (*Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if products == nil {
		return nil, fmt.Errorf("product store required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if strings.TrimSpace(currency) == "" {
		currency = "USD"
	}
	return &Service{
		tx:       tx,
		products: products,
		gateway:  gateway,
		repo:     repo,
		currency: currency,
		logger:   logg,
		metrics:  m,
	}, nil
}

type decrementedItem struct {
	productID uuid.UUID
	qty       int
}

// CreateOrder decrements authoritative stock per item, charges the total and
// persists the order as pending. Stock is decremented one item at a time, so
// any failure after the first decrement runs a compensating restore loop
// before the error is returned. The payment call is an external side effect
// and cannot participate in a database transaction.
func (s *Service) CreateOrder(ctx context.Context, userID uuid.UUID, input CreateOrderInput) (*CreateOrderResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	items, err := normalizeItems(input.Items)
	if err != nil {
		return nil, err
	}
	address := input.ShippingAddress
	address.Normalize()
	if !address.Complete() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping address incomplete")
	}
	method := enums.PaymentMethodCard
	if strings.TrimSpace(input.PaymentMethod) != "" {
		method, err = enums.ParsePaymentMethod(input.PaymentMethod)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown payment method")
		}
	}
	if strings.TrimSpace(input.SourceID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment source required")
	}

	var (
		decremented []decrementedItem
		lines       []models.OrderLineItem
		totalCents  int64
	)
	for _, item := range items {
		product, err := s.products.FindByID(ctx, item.ProductID)
		if err != nil {
			return nil, s.compensate(ctx, decremented, err)
		}
		// Plainly insufficient stock is a business rejection; the guarded
		// update below only ever reports a lost race.
		if product.Stock < item.Qty {
			err := pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
				WithDetails(map[string]any{"product_id": item.ProductID, "available": product.Stock, "requested": item.Qty})
			return nil, s.compensate(ctx, decremented, err)
		}
		if err := s.products.DecrementStock(ctx, item.ProductID, item.Qty); err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeStockConflict) {
				s.metrics.IncStockConflict()
			}
			return nil, s.compensate(ctx, decremented, err)
		}
		decremented = append(decremented, decrementedItem{productID: item.ProductID, qty: item.Qty})
		totalCents += product.PriceCents * int64(item.Qty)
		lines = append(lines, models.OrderLineItem{
			ID:             uuid.New(),
			ProductID:      product.ID,
			Name:           product.Name,
			UnitPriceCents: product.PriceCents,
			Qty:            item.Qty,
		})
	}

	providerPayment, err := s.gateway.CreatePayment(ctx, payments.Request{
		UserID:      userID.String(),
		AmountCents: totalCents,
		Currency:    s.currency,
		SourceID:    input.SourceID,
	})
	if err != nil {
		return nil, s.compensate(ctx, decremented, err)
	}

	order := &models.Order{
		Reference:       providerPayment.Reference,
		UserID:          userID,
		Status:          enums.OrderStatusPending,
		TotalCents:      totalCents,
		ShippingAddress: address,
		Items:           lines,
		Payments: []models.Payment{{
			ID:          uuid.New(),
			ProviderRef: &providerPayment.Reference,
			Method:      method,
			Status:      enums.PaymentStatusPending,
			AmountCents: totalCents,
		}},
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).Create(ctx, order)
	})
	if err != nil {
		// Payment was requested but the order never landed. Stock is
		// restored here; the charge itself is settled asynchronously by
		// the reconciler once the provider reports on the reference.
		return nil, s.compensate(ctx, decremented, err)
	}

	if s.logger != nil {
		s.logger.Info(s.logger.WithOrderRef(ctx, order.Reference), "order created")
	}
	return &CreateOrderResult{
		Reference:     order.Reference,
		CheckoutToken: providerPayment.CheckoutToken,
		TotalCents:    totalCents,
	}, nil
}

// Get loads an order for its owner. Admins may read any order.
func (s *Service) Get(ctx context.Context, userID uuid.UUID, isAdmin bool, reference string) (*models.Order, error) {
	order, err := s.repo.FindByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if !isAdmin && order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another user")
	}
	return order, nil
}

// ListForUser returns the user's orders, newest first.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	return s.repo.ListByUser(ctx, userID)
}

// compensate restores every already-decremented item, then returns cause.
// Restore failures are logged; the original error always wins.
func (s *Service) compensate(ctx context.Context, decremented []decrementedItem, cause error) error {
	var restoreErr error
	for _, item := range decremented {
		if err := s.products.IncrementStock(ctx, item.productID, item.qty); err != nil {
			restoreErr = multierr.Append(restoreErr, fmt.Errorf("restore %s x%d: %w", item.productID, item.qty, err))
		}
	}
	if restoreErr != nil && s.logger != nil {
		s.logger.Error(ctx, "stock compensation incomplete", restoreErr)
	}
	return cause
}

func normalizeItems(items []OrderItemInput) ([]OrderItemInput, error) {
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order contains no items")
	}
	merged := make([]OrderItemInput, 0, len(items))
	index := map[uuid.UUID]int{}
	for _, item := range items {
		if item.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
		}
		if item.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
		}
		if i, ok := index[item.ProductID]; ok {
			merged[i].Qty += item.Qty
			continue
		}
		index[item.ProductID] = len(merged)
		merged = append(merged, item)
	}
	return merged, nil
}
