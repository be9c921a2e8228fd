package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courseportal/portal/internal/models"
)

type fakeChannel struct {
	mu         sync.Mutex
	published  []amqp091.Publishing
	consumers  int
	closed     bool
	deliveries chan amqp091.Delivery
}

func (c *fakeChannel) PublishWithContext(_ context.Context, _, _ string, _, _ bool, msg amqp091.Publishing) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, msg)
	return nil
}

func (c *fakeChannel) Consume(string, string, bool, bool, bool, bool, amqp091.Table) (<-chan amqp091.Delivery, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consumers++
	return c.deliveries, nil
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

type fakeAcker struct {
	mu    sync.Mutex
	acked []uint64
}

func (a *fakeAcker) Ack(tag uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked = append(a.acked, tag)
	return nil
}

func (a *fakeAcker) Nack(uint64, bool, bool) error { return nil }
func (a *fakeAcker) Reject(uint64, bool) error     { return nil }

type chanPublisher chan models.ChangeEvent

func (p chanPublisher) Publish(_ context.Context, evt models.ChangeEvent) error {
	p <- evt
	return nil
}

func TestBroker_SeparateChannels(t *testing.T) {
	pub := &fakeChannel{}
	con := &fakeChannel{deliveries: make(chan amqp091.Delivery, 1)}
	b := &Broker{
		publishCh:  pub,
		consumeCh:  con,
		exchange:   "portal.changes",
		routingKey: "changes",
		queueName:  "portal-1",
		logger:     zerolog.Nop(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	local := make(chanPublisher, 1)
	done := make(chan error, 1)
	go func() { done <- b.Forward(ctx, local) }()

	evt := models.ChangeEvent{ID: "evt-1", Table: "tickets", Type: models.ChangeInsert, Timestamp: time.Now().UTC()}
	require.NoError(t, b.Publish(ctx, evt))
	require.Len(t, pub.published, 1)
	assert.Equal(t, "evt-1", pub.published[0].MessageId)

	acker := &fakeAcker{}
	con.deliveries <- amqp091.Delivery{Acknowledger: acker, DeliveryTag: 7, Body: pub.published[0].Body}

	select {
	case got := <-local:
		assert.Equal(t, "evt-1", got.ID)
	case <-time.After(time.Second):
		t.Fatal("event was not forwarded")
	}
	cancel()
	require.NoError(t, <-done)

	con.mu.Lock()
	assert.Equal(t, 1, con.consumers)
	con.mu.Unlock()
	assert.Zero(t, pub.consumers, "the publishing channel never consumes")
	assert.Empty(t, con.published, "the consuming channel never publishes")
	acker.mu.Lock()
	assert.Equal(t, []uint64{7}, acker.acked)
	acker.mu.Unlock()

	require.NoError(t, b.Close())
	assert.True(t, pub.closed)
	assert.True(t, con.closed)
}
