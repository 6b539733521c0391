package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/Kowshalya-Eswar/agrofarm/pkg/config"
	pkgerrors "github.com/Kowshalya-Eswar/agrofarm/pkg/errors"
	"github.com/Kowshalya-Eswar/agrofarm/pkg/logger"
	"github.com/Kowshalya-Eswar/agrofarm/pkg/pubsub"
	"github.com/google/uuid"
)

const (
	attrCorrelationID = "correlation_id"
	attrReplyTo       = "reply_to"

	defaultReplyTimeout = 15 * time.Second
)

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type replySubscriber interface {
	Receive(ctx context.Context, f func(ctx context.Context, msg *gcppubsub.Message)) error
}

// paymentRequestMessage is the wire shape published to the payment broker.
type paymentRequestMessage struct {
	RequestID   string `json:"request_id"`
	UserID      string `json:"user_id"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	SourceID    string `json:"source_id"`
	Note        string `json:"note,omitempty"`
}

// paymentReplyMessage is the broker's answer, matched back by correlation id.
type paymentReplyMessage struct {
	Reference     string `json:"reference"`
	CheckoutToken string `json:"checkout_token,omitempty"`
	AmountCents   int64  `json:"amount_cents"`
	Status        string `json:"status"`
	FailureReason string `json:"failure_reason,omitempty"`
}

// BrokerGateway fulfils payment requests over Pub/Sub request/reply. Each
// instance owns one exclusive subscription on the reply topic, filtered to
// messages addressed to it, and matches replies to in-flight requests by
// correlation id.
type BrokerGateway struct {
	pub     publisher
	sub     replySubscriber
	cleanup func(context.Context) error
	subID   string
	timeout time.Duration
	logg    *logger.Logger

	mu      sync.Mutex
	waiters map[string]chan paymentReplyMessage

	cancel context.CancelFunc
	done   chan struct{}
}

// NewBrokerGateway provisions the instance's reply subscription and starts the
// reply receive loop. Close must be called to release the subscription.
func NewBrokerGateway(ctx context.Context, bus *pubsub.Client, cfg config.PaymentConfig, logg *logger.Logger) (*BrokerGateway, error) {
	if bus == nil {
		return nil, fmt.Errorf("pubsub client required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}

	subID := fmt.Sprintf("agrofarm-payment-replies-%s", uuid.NewString())
	filter := fmt.Sprintf(`attributes.%s = "%s"`, attrReplyTo, subID)
	sub, err := bus.CreateReplySubscription(ctx, subID, filter)
	if err != nil {
		return nil, err
	}

	pub := bus.PaymentRequestPublisher()
	if pub == nil {
		_ = bus.DeleteSubscription(ctx, subID)
		return nil, fmt.Errorf("payment request topic not configured")
	}

	gw := newBrokerGateway(&gcpPublisher{pub: pub}, sub, subID, cfg.ReplyTimeout, logg)
	gw.cleanup = func(ctx context.Context) error {
		return bus.DeleteSubscription(ctx, subID)
	}
	gw.start()
	return gw, nil
}

func newBrokerGateway(pub publisher, sub replySubscriber, subID string, timeout time.Duration, logg *logger.Logger) *BrokerGateway {
	if timeout <= 0 {
		timeout = defaultReplyTimeout
	}
	return &BrokerGateway{
		pub:     pub,
		sub:     sub,
		subID:   subID,
		timeout: timeout,
		logg:    logg,
		waiters: map[string]chan paymentReplyMessage{},
		done:    make(chan struct{}),
	}
}

func (g *BrokerGateway) start() {
	ctx, cancel := context.WithCancel(context.Background())
	g.cancel = cancel
	go func() {
		defer close(g.done)
		if err := g.sub.Receive(ctx, g.handleReply); err != nil && ctx.Err() == nil {
			g.logg.Error(ctx, "payment reply receive loop stopped", err)
		}
	}()
}

func (g *BrokerGateway) handleReply(ctx context.Context, msg *gcppubsub.Message) {
	// The subscription is exclusive to this instance, so every message is
	// either an answer to an in-flight request or to one that already timed
	// out. Ack in both cases.
	defer msg.Ack()

	correlationID := msg.Attributes[attrCorrelationID]
	if correlationID == "" {
		g.logg.Warn(ctx, "payment reply without correlation id")
		return
	}

	var reply paymentReplyMessage
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		g.logg.Error(g.logg.WithFields(ctx, map[string]any{attrCorrelationID: correlationID}), "failed to decode payment reply", err)
		return
	}

	g.mu.Lock()
	waiter, ok := g.waiters[correlationID]
	g.mu.Unlock()
	if !ok {
		g.logg.Warn(g.logg.WithFields(ctx, map[string]any{attrCorrelationID: correlationID}), "payment reply for unknown request")
		return
	}

	select {
	case waiter <- reply:
	default:
	}
}

// CreatePayment publishes the request and blocks until the broker replies or
// the reply timeout elapses.
func (g *BrokerGateway) CreatePayment(ctx context.Context, req Request) (*ProviderPayment, error) {
	if req.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be positive")
	}

	correlationID := uuid.NewString()
	waiter := make(chan paymentReplyMessage, 1)
	g.mu.Lock()
	g.waiters[correlationID] = waiter
	g.mu.Unlock()
	defer func() {
		g.mu.Lock()
		delete(g.waiters, correlationID)
		g.mu.Unlock()
	}()

	payload, err := json.Marshal(paymentRequestMessage{
		RequestID:   correlationID,
		UserID:      req.UserID,
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
		SourceID:    req.SourceID,
		Note:        req.Note,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to encode payment request")
	}

	result := g.pub.Publish(ctx, &gcppubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			attrCorrelationID: correlationID,
			attrReplyTo:       g.subID,
		},
	})
	if result == nil {
		return nil, pkgerrors.New(pkgerrors.CodePaymentProvider, "payment request publisher unavailable")
	}
	if _, err := result.Get(ctx); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePaymentProvider, err, "failed to publish payment request")
	}

	timer := time.NewTimer(g.timeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, pkgerrors.Wrap(pkgerrors.CodePaymentTimeout, ctx.Err(), "payment request canceled")
	case <-timer.C:
		return nil, pkgerrors.New(pkgerrors.CodePaymentTimeout, "payment broker did not reply in time")
	case reply := <-waiter:
		return providerPaymentFromReply(reply)
	}
}

func providerPaymentFromReply(reply paymentReplyMessage) (*ProviderPayment, error) {
	if strings.EqualFold(reply.Status, "failed") {
		reason := reply.FailureReason
		if reason == "" {
			reason = "payment rejected by provider"
		}
		return nil, pkgerrors.New(pkgerrors.CodePaymentProvider, reason)
	}
	if strings.TrimSpace(reply.Reference) == "" {
		return nil, pkgerrors.New(pkgerrors.CodePaymentProvider, "payment reply missing provider reference")
	}
	return &ProviderPayment{
		Reference:     reply.Reference,
		CheckoutToken: reply.CheckoutToken,
		AmountCents:   reply.AmountCents,
		Status:        reply.Status,
	}, nil
}

// Close stops the reply loop and deletes the instance's reply subscription.
func (g *BrokerGateway) Close() error {
	if g.cancel != nil {
		g.cancel()
		<-g.done
	}
	if g.cleanup == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return g.cleanup(ctx)
}

type gcpPublisher struct {
	pub *gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if p == nil || p.pub == nil {
		return nil
	}
	return p.pub.Publish(ctx, msg)
}
