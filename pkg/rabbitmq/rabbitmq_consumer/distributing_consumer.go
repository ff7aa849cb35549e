package rabbitmq_consumer

import (
	"context"
	"fmt"
	"time"

	"search-service/pkg/rabbitmq/rabbitmq_common"

	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageHandler обрабатывает одно сообщение.
// nil - ack; Permanent(err) - сразу в финальный DLX; иначе - ретрай.
type MessageHandler func(ctx context.Context, delivery amqp.Delivery) error

// Заголовки, которые добавляются к сообщению в финальном DLX
const (
	HeaderLastError    = "x-last-error"
	HeaderFailedQueue  = "x-failed-queue"
	HeaderFailedAtUnix = "x-failed-at"
)

// DistributingConsumer раздает сообщения по горутинам, по одной на доставку
type DistributingConsumer struct {
	base    *baseConsumer
	handler MessageHandler
}

// NewDistributingConsumer создает потребителя и объявляет его топологию
func NewDistributingConsumer(cfg ConsumerConfig, handler MessageHandler, connManager *rabbitmq_common.ConnectionManager) (*DistributingConsumer, error) {
	if handler == nil {
		return nil, fmt.Errorf("distributing consumer: message handler is required")
	}
	bc, err := newBaseConsumer(cfg, connManager)
	if err != nil {
		return nil, fmt.Errorf("distributing consumer: %w", err)
	}
	return &DistributingConsumer{base: bc, handler: handler}, nil
}

// StartConsuming блокируется до отмены ctx или потери соединения
func (c *DistributingConsumer) StartConsuming(ctx context.Context) error {
	b := c.base
	if b.channel == nil || b.connection == nil || b.connection.IsClosed() {
		return fmt.Errorf("distributing consumer: not connected")
	}

	msgs, err := b.channel.Consume(b.config.QueueName, b.config.ConsumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("distributing consumer: failed to consume from '%s': %w", b.config.QueueName, err)
	}
	b.Logger.Info("[*] Waiting for messages", "queue", b.config.QueueName)

	notifyClose := b.connection.NotifyClose(make(chan *amqp.Error, 1))

	for {
		// отмена проверяется первой, чтобы не брать новую работу после сигнала
		select {
		case <-ctx.Done():
			b.Logger.Info("Context cancelled, consumer stops", "queue", b.config.QueueName)
			return nil
		default:
		}

		select {
		case <-ctx.Done():
			b.Logger.Info("Context cancelled, consumer stops", "queue", b.config.QueueName)
			return nil
		case amqpErr := <-notifyClose:
			if amqpErr == nil {
				return fmt.Errorf("distributing consumer: connection closed")
			}
			b.Logger.Error(amqpErr, "Connection closed", "queue", b.config.QueueName)
			return amqpErr
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("distributing consumer: deliveries channel closed for '%s'", b.config.QueueName)
			}
			b.wg.Add(1)
			go func(d amqp.Delivery) {
				defer b.wg.Done()
				// обработку не прерываем отменой: ack должен уйти после записи
				c.process(context.WithoutCancel(ctx), d)
			}(d)
		}
	}
}

// process вызывает обработчик и решает судьбу сообщения
func (c *DistributingConsumer) process(ctx context.Context, d amqp.Delivery) {
	b := c.base
	handlerErr := c.handler(ctx, d)
	if handlerErr == nil {
		if err := d.Ack(false); err != nil {
			b.Logger.Error(err, "Ack failed", "delivery_tag", d.DeliveryTag)
		}
		return
	}

	b.Logger.Warn("Handler failed", "queue", b.config.QueueName, "delivery_tag", d.DeliveryTag, "error", handlerErr.Error())

	if !b.config.EnableRetryMechanism {
		_ = d.Nack(false, false)
		return
	}

	deaths := deathCount(d, b.config.QueueName)
	if !IsPermanent(handlerErr) && deaths < int64(b.config.MaxRetries) {
		b.Logger.Info("Sending message to retry", "delivery_tag", d.DeliveryTag, "death_count", deaths)
		_ = d.Nack(false, false)
		return
	}

	if err := c.park(ctx, d, handlerErr); err != nil {
		b.Logger.Error(err, "Failed to publish to final DLX, message goes to retry", "delivery_tag", d.DeliveryTag)
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}

// park публикует копию сообщения в финальный DLX с описанием ошибки
func (c *DistributingConsumer) park(ctx context.Context, d amqp.Delivery, cause error) error {
	headers := amqp.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers[HeaderLastError] = cause.Error()
	headers[HeaderFailedQueue] = c.base.config.QueueName
	headers[HeaderFailedAtUnix] = time.Now().Unix()
	headers["x-original-routing-key"] = d.RoutingKey

	return c.base.finalDLX.Publish(ctx, c.base.config.FinalDLQRoutingKey, amqp.Publishing{
		ContentType:  d.ContentType,
		Body:         d.Body,
		Headers:      headers,
		Timestamp:    time.Now(),
		DeliveryMode: amqp.Persistent,
	})
}

// Close ждет незавершенные обработчики и закрывает канал
func (c *DistributingConsumer) Close() error {
	return c.base.Close()
}
