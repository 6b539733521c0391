package reconciler

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/Kowshalya-Eswar/agrofarm/pkg/logger"
)

type subscription interface {
	Receive(ctx context.Context, f func(ctx context.Context, msg *pubsub.Message)) error
}

type eventHandler interface {
	HandleEvent(ctx context.Context, event Event) error
}

// Consumer feeds broker payment events into the reconciler. Messages are
// acknowledged only after the status mutation commits; failures are nacked so
// the transport redelivers.
type Consumer struct {
	handler      eventHandler
	subscription subscription
	logg         *logger.Logger
}

func NewConsumer(handler eventHandler, sub subscription, logg *logger.Logger) (*Consumer, error) {
	if handler == nil {
		return nil, fmt.Errorf("event handler required")
	}
	if sub == nil {
		return nil, fmt.Errorf("payment events subscription required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{handler: handler, subscription: sub, logg: logg}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) bool {
	ctx = c.logg.WithFields(ctx, map[string]any{"message_id": msg.ID})

	var event Event
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		// Malformed payloads never become parseable; ack and move on.
		c.logg.Error(ctx, "failed to decode payment event", err)
		return true
	}

	if err := c.handler.HandleEvent(ctx, event); err != nil {
		c.logg.Error(ctx, "payment event handling failed", err)
		return false
	}
	return true
}
