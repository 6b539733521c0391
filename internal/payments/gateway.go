package payments

import (
	"context"
)

// Request carries what the provider needs to open a payment for an order.
type Request struct {
	UserID      string
	AmountCents int64
	Currency    string
	SourceID    string
	Note        string
}

// ProviderPayment is the provider's answer: a reference that doubles as the
// order identifier, plus client-continuation data.
type ProviderPayment struct {
	Reference     string
	CheckoutToken string
	AmountCents   int64
	Status        string
}

// Gateway opens a payment with the provider. Implementations are a direct
// provider call or a request/reply bridge over the broker; the orchestrator
// does not care which.
type Gateway interface {
	CreatePayment(ctx context.Context, req Request) (*ProviderPayment, error)
	Close() error
}
