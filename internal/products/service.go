package products

import (
	"context"
	"strings"

	"github.com/Kowshalya-Eswar/agrofarm/internal/ledger"
	"github.com/Kowshalya-Eswar/agrofarm/pkg/db/models"
	pkgerrors "github.com/Kowshalya-Eswar/agrofarm/pkg/errors"
	"github.com/Kowshalya-Eswar/agrofarm/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreateInput carries the admin product-creation payload.
type CreateInput struct {
	Name        string  `json:"name" validate:"required,min=2"`
	Description *string `json:"description,omitempty"`
	PriceCents  int64   `json:"price_cents" validate:"required,gt=0"`
	Stock       int     `json:"stock" validate:"gte=0"`
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service owns product reads and admin creation. Creation seeds the
// reservation counter so carts can hold against the new product immediately.
type Service struct {
	tx     txRunner
	repo   *Repository
	ledger *ledger.Service
	logger *logger.Logger
}

func NewService(tx txRunner, repo *Repository, led *ledger.Service, logg *logger.Logger) *Service {
	return &Service{tx: tx, repo: repo, ledger: led, logger: logg}
}

// Create inserts the product and seeds its reservation counter.
func (s *Service) Create(ctx context.Context, input CreateInput) (*models.Product, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}

	product := &models.Product{
		ID:          uuid.New(),
		Name:        name,
		Description: input.Description,
		PriceCents:  input.PriceCents,
		Stock:       input.Stock,
		IsActive:    true,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).Create(ctx, product)
	})
	if err != nil {
		return nil, err
	}

	if err := s.ledger.Set(ctx, product.ID.String(), int64(product.Stock)); err != nil {
		// product exists but counter seeding failed; carts will see zero
		// availability until the counter is repaired
		s.warn(ctx, product.ID.String(), err)
		return nil, err
	}

	return product, nil
}

// Get returns the product by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	return s.repo.FindByID(ctx, id)
}

// List returns the active catalog.
func (s *Service) List(ctx context.Context) ([]models.Product, error) {
	return s.repo.ListActive(ctx)
}

func (s *Service) warn(ctx context.Context, productID string, err error) {
	if s.logger == nil {
		return
	}
	ctx = s.logger.WithFields(ctx, map[string]any{"product_id": productID, "error": err.Error()})
	s.logger.Warn(ctx, "seeding reservation counter failed")
}
