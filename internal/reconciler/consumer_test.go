package reconciler

import (
	"context"
	"errors"
	"io"
	"testing"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/Kowshalya-Eswar/agrofarm/pkg/logger"
	"github.com/stretchr/testify/require"
)

type fakeHandler struct {
	events []Event
	err    error
}

func (h *fakeHandler) HandleEvent(ctx context.Context, event Event) error {
	h.events = append(h.events, event)
	return h.err
}

type nopSubscription struct{}

func (nopSubscription) Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error {
	<-ctx.Done()
	return ctx.Err()
}

func newTestConsumer(t *testing.T, handler *fakeHandler) *Consumer {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	consumer, err := NewConsumer(handler, nopSubscription{}, logg)
	require.NoError(t, err)
	return consumer
}

func TestProcessAcksOnSuccess(t *testing.T) {
	handler := &fakeHandler{}
	consumer := newTestConsumer(t, handler)

	msg := &pubsub.Message{Data: []byte(`{"reference":"pay_1","status":"captured"}`)}
	require.True(t, consumer.process(context.Background(), msg))
	require.Len(t, handler.events, 1)
	require.Equal(t, "pay_1", handler.events[0].Reference)
}

func TestProcessNacksOnHandlerError(t *testing.T) {
	handler := &fakeHandler{err: errors.New("db down")}
	consumer := newTestConsumer(t, handler)

	msg := &pubsub.Message{Data: []byte(`{"reference":"pay_2","status":"failed"}`)}
	require.False(t, consumer.process(context.Background(), msg))
}

func TestProcessAcksMalformedPayload(t *testing.T) {
	handler := &fakeHandler{}
	consumer := newTestConsumer(t, handler)

	msg := &pubsub.Message{Data: []byte(`not-json`)}
	require.True(t, consumer.process(context.Background(), msg))
	require.Empty(t, handler.events)
}
