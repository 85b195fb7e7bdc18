package broker

import (
	"context"
	"errors"
	"testing"
	"time"

	"keystore/internal/config"

	"github.com/segmentio/kafka-go"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedTime = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *fakeWriter) Close() error { return nil }

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{w: w, now: func() time.Time { return fixedTime }}

	require.NoError(t, p.Publish(context.Background(), "license.delivered", "order-paid:o1", []byte(`{"orderId":"o1"}`)))

	require.Len(t, w.msgs, 1)
	m := w.msgs[0]
	assert.Equal(t, "license.delivered", m.Topic)
	assert.Equal(t, []byte("order-paid:o1"), m.Key)
	assert.Equal(t, []byte(`{"orderId":"o1"}`), m.Value)
	assert.Equal(t, fixedTime, m.Time)
	assert.Equal(t, "dedupe-key", m.Headers[0].Key)
}

func TestKafkaPublisher_PublishError(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	p := &KafkaPublisher{w: w, now: time.Now}

	err := p.Publish(context.Background(), "t", "k", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "leader not available")
}

type fakeChannel struct {
	exchange string
	key      string
	msg      amqp.Publishing
	err      error
}

func (c *fakeChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	c.exchange, c.key, c.msg = exchange, key, msg
	return c.err
}

func (c *fakeChannel) Close() error { return nil }

func TestAMQPPublisher_Publish(t *testing.T) {
	ch := &fakeChannel{}
	p := &AMQPPublisher{channel: ch, exchange: "keystore.events", now: func() time.Time { return fixedTime }}

	require.NoError(t, p.Publish(context.Background(), "license.delivered", "order-paid:o1", []byte("{}")))

	assert.Equal(t, "keystore.events", ch.exchange)
	assert.Equal(t, "license.delivered", ch.key)
	assert.Equal(t, "order-paid:o1", ch.msg.MessageId)
	assert.Equal(t, amqp.Persistent, ch.msg.DeliveryMode)
	assert.Equal(t, "application/json", ch.msg.ContentType)
}

func TestAMQPPublisher_CanceledContext(t *testing.T) {
	ch := &fakeChannel{}
	p := &AMQPPublisher{channel: ch, exchange: "x", now: time.Now}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, p.Publish(ctx, "t", "k", nil), context.Canceled)
	assert.Empty(t, ch.key)
}

func TestNew_UnknownKind(t *testing.T) {
	_, err := New(config.Broker{Kind: "sqs"})
	assert.Error(t, err)
}

func TestNew_Kafka(t *testing.T) {
	p, err := New(config.Broker{Kind: "kafka", KafkaBrokers: []string{"localhost:9092"}})
	require.NoError(t, err)
	_, ok := p.(*KafkaPublisher)
	assert.True(t, ok)
	assert.NoError(t, p.Close())
}
