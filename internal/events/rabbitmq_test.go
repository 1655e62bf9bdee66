package events

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Lixing-Zhang/warehouse-pos/pkg/logger"
)

type recordingChannel struct {
	exchange string
	key      string
	msg      amqp.Publishing
	err      error
	closed   bool
}

func (c *recordingChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	c.exchange, c.key, c.msg = exchange, key, msg
	return c.err
}

func (c *recordingChannel) Close() error {
	c.closed = true
	return nil
}

func sampleEvent() OrderPlaced {
	return OrderPlaced{
		OrderID:       "1042",
		SessionID:     "s-1",
		CustomerID:    "7",
		POSTerminalID: "POS001",
		Lines:         2,
		Total:         decimal.RequireFromString("65.50"),
		PlacedAt:      time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestRabbitMQPublisher_PublishOrderPlaced(t *testing.T) {
	ch := &recordingChannel{}
	p := &RabbitMQPublisher{ch: ch, exchange: "orders_topic", logger: logger.Discard()}

	require.NoError(t, p.PublishOrderPlaced(context.Background(), sampleEvent()))

	require.Equal(t, "orders_topic", ch.exchange)
	require.Equal(t, OrderPlacedKey, ch.key)
	require.Equal(t, amqp.Persistent, ch.msg.DeliveryMode)
	require.Equal(t, "application/json", ch.msg.ContentType)
	require.Equal(t, "1042", ch.msg.MessageId)

	var body map[string]any
	require.NoError(t, json.Unmarshal(ch.msg.Body, &body))
	require.Equal(t, "1042", body["order_id"])
	require.Equal(t, "65.5", body["total"])

	require.NoError(t, p.Close())
	require.True(t, ch.closed)
}

func TestRabbitMQPublisher_PublishError(t *testing.T) {
	boom := errors.New("channel closed")
	p := &RabbitMQPublisher{ch: &recordingChannel{err: boom}, exchange: "orders_topic", logger: logger.Discard()}

	err := p.PublishOrderPlaced(context.Background(), sampleEvent())
	require.ErrorIs(t, err, boom)
}

func TestNoop(t *testing.T) {
	var p Publisher = Noop{}
	require.NoError(t, p.PublishOrderPlaced(context.Background(), sampleEvent()))
	require.NoError(t, p.Close())
}

func TestNewRabbitMQPublisher_Integration(t *testing.T) {
	url := os.Getenv("RABBITMQ_URL")
	if url == "" {
		t.Skip("RABBITMQ_URL not set, skipping rabbitmq integration test")
	}

	p, err := NewRabbitMQPublisher(url, "orders_topic_test", logger.Discard())
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.PublishOrderPlaced(context.Background(), sampleEvent()))
}
