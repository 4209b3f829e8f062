package broker

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/quantbrief/quantbrief-backend/internal/platform/logger"
)

// Queue is the single work queue: every message is a full report state.
const Queue = "report_status"

// Publisher is the outbound half; the scheduler republishes the next-stage
// message through it before acknowledging the current one.
type Publisher interface {
	Publish(ctx context.Context, body []byte) error
}

// Broker wraps one AMQP connection and channel over the durable report
// queue. The broker guarantees at-least-once delivery; stages are idempotent
// at the report-state level to absorb redelivery.
type Broker struct {
	log  *logger.Logger
	conn *amqp.Connection
	ch   *amqp.Channel
}

func Connect(baseLog *logger.Logger, url string, prefetch int) (*Broker, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if prefetch > 0 {
		if err := ch.Qos(prefetch, 0, false); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, err
		}
	}
	if _, err := ch.QueueDeclare(Queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &Broker{
		log:  baseLog.With("service", "Broker"),
		conn: conn,
		ch:   ch,
	}, nil
}

func (b *Broker) Publish(ctx context.Context, body []byte) error {
	return b.ch.PublishWithContext(ctx, "", Queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

// Consume opens the delivery stream with manual acknowledgement.
func (b *Broker) Consume() (<-chan amqp.Delivery, error) {
	return b.ch.Consume(Queue, "", false, false, false, false, nil)
}

func (b *Broker) Close() {
	if err := b.ch.Close(); err != nil {
		b.log.Warn("AMQP channel close failed", "error", err)
	}
	if err := b.conn.Close(); err != nil {
		b.log.Warn("AMQP connection close failed", "error", err)
	}
}
