package reconciler

import (
	"context"

	"github.com/Kowshalya-Eswar/agrofarm/pkg/db/models"
	"github.com/Kowshalya-Eswar/agrofarm/pkg/logger"
)

// LogNotifier records order confirmations in the service log. It stands in
// for an outbound channel (email, push) that is owned by another system.
type LogNotifier struct {
	logger *logger.Logger
}

func NewLogNotifier(logg *logger.Logger) *LogNotifier {
	return &LogNotifier{logger: logg}
}

func (n *LogNotifier) OrderConfirmed(ctx context.Context, order *models.Order) error {
	if n.logger == nil || order == nil {
		return nil
	}
	ctx = n.logger.WithFields(ctx, map[string]any{
		"order_reference": order.Reference,
		"user_id":         order.UserID.String(),
		"total_cents":     order.TotalCents,
	})
	n.logger.Info(ctx, "order confirmed")
	return nil
}
