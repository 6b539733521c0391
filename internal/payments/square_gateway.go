package payments

import (
	"context"
	"fmt"

	pkgerrors "github.com/Kowshalya-Eswar/agrofarm/pkg/errors"
	"github.com/Kowshalya-Eswar/agrofarm/pkg/square"
	"github.com/shopspring/decimal"
)

// SquareGateway opens payments synchronously against the Square API.
type SquareGateway struct {
	client   *square.Client
	currency string
}

func NewSquareGateway(client *square.Client, currency string) *SquareGateway {
	if currency == "" {
		currency = "USD"
	}
	return &SquareGateway{client: client, currency: currency}
}

// CreatePayment charges through Square and returns the provider reference.
func (g *SquareGateway) CreatePayment(ctx context.Context, req Request) (*ProviderPayment, error) {
	if req.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}

	display := decimal.NewFromInt(req.AmountCents).Div(decimal.NewFromInt(100)).StringFixed(2)
	note := req.Note
	if note == "" {
		note = fmt.Sprintf("agrofarm order %s %s", display, g.currency)
	}

	payment, err := g.client.CreatePayment(ctx, square.PaymentCreateParams{
		AmountCents: req.AmountCents,
		Currency:    g.currency,
		LocationID:  g.client.LocationID(),
		CustomerID:  req.UserID,
		SourceID:    req.SourceID,
		Note:        note,
	})
	if err != nil {
		return nil, err
	}

	reference := stringValue(payment.GetID())
	if reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodePaymentProvider, "provider returned no payment reference")
	}

	return &ProviderPayment{
		Reference:     reference,
		CheckoutToken: reference,
		AmountCents:   req.AmountCents,
		Status:        stringValue(payment.GetStatus()),
	}, nil
}

// Close is a no-op; the SDK client holds no per-request resources.
func (g *SquareGateway) Close() error { return nil }

func stringValue(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
