package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"search-service/internal/contextkeys"
	"search-service/internal/contracts"
	"search-service/internal/core/domain"
	"search-service/internal/core/port"
	"search-service/internal/core/port/usecases_port"
	"search-service/internal/core/usecase"
	"search-service/pkg/rabbitmq/rabbitmq_common"
	"search-service/pkg/rabbitmq/rabbitmq_consumer"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	headerTraceID      = "x-trace-id"
	headerEventType    = "event-type"
	headerEventVersion = "event-version"
)

// MalformedRecorder учитывает сообщения, отброшенные до вызова use case
type MalformedRecorder interface {
	RecordMalformed()
}

// ChangeEventConsumerAdapter входящий адаптер: слушает очередь изменений
// одного вида сущностей и применяет каждое событие к индексу
type ChangeEventConsumerAdapter struct {
	consumer *rabbitmq_consumer.DistributingConsumer
	useCase  usecases_port.ApplyChangeEventUseCase
	stats    MalformedRecorder
	metrics  port.MetricsPort
	logger   port.LoggerPort
	now      func() time.Time
}

func NewChangeEventConsumerAdapter(
	cfg rabbitmq_consumer.ConsumerConfig,
	uc usecases_port.ApplyChangeEventUseCase,
	stats MalformedRecorder,
	metrics port.MetricsPort,
	logger port.LoggerPort,
	connManager *rabbitmq_common.ConnectionManager,
) (*ChangeEventConsumerAdapter, error) {
	adapter := newChangeEventHandler(uc, stats, metrics, logger.WithFields(port.Fields{
		"component": "ChangeEventConsumerAdapter",
		"queue":     cfg.QueueName,
	}))

	pkgLogger := logger.WithFields(port.Fields{"component": "rabbitmq_distributing_consumer", "consumer_tag": cfg.ConsumerTag})
	cfg.Logger = NewPkgLoggerBridge(pkgLogger)

	consumer, err := rabbitmq_consumer.NewDistributingConsumer(cfg, adapter.messageHandler, connManager)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer for queue '%s': %w", cfg.QueueName, err)
	}
	adapter.consumer = consumer
	return adapter, nil
}

func newChangeEventHandler(
	uc usecases_port.ApplyChangeEventUseCase,
	stats MalformedRecorder,
	metrics port.MetricsPort,
	logger port.LoggerPort,
) *ChangeEventConsumerAdapter {
	if metrics == nil {
		metrics = port.NoopMetrics{}
	}
	return &ChangeEventConsumerAdapter{
		useCase: uc,
		stats:   stats,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// messageHandler разбирает одно сообщение.
// Битое сообщение уходит в финальный DLX без ретраев, ошибка хранилища - на ретрай.
func (a *ChangeEventConsumerAdapter) messageHandler(ctx context.Context, d amqp.Delivery) error {
	rawTraceID, _ := d.Headers[headerTraceID].(string)
	traceID := contextkeys.NormalizeTraceID(rawTraceID)

	msgLogger := a.logger.WithFields(port.Fields{
		"trace_id":     traceID,
		"delivery_tag": d.DeliveryTag,
		"routing_key":  d.RoutingKey,
	})
	ctx = contextkeys.ContextWithTraceID(ctx, traceID)
	ctx = contextkeys.ContextWithLogger(ctx, msgLogger)

	eventType, _ := d.Headers[headerEventType].(string)
	if eventType == "" {
		eventType = contracts.ChangeEventType
	}
	eventVersion, _ := d.Headers[headerEventVersion].(string)
	if eventVersion == "" {
		eventVersion = contracts.ChangeEventVersion
	}
	if err := contracts.ValidateEvent(eventType, eventVersion, d.Body); err != nil {
		return a.reject(msgLogger, fmt.Errorf("%w: %v", domain.ErrMalformedEvent, err))
	}

	event, err := contracts.DecodeChangeEvent(d.Body, a.now())
	if err != nil {
		return a.reject(msgLogger, err)
	}

	if err := a.useCase.Execute(ctx, event); err != nil {
		if errors.Is(err, domain.ErrMalformedEvent) {
			// use case уже учел такое событие
			return rabbitmq_consumer.Permanent(err)
		}
		msgLogger.Warn("Change event not applied, message goes to retry", port.Fields{"error": err.Error()})
		return err
	}
	return nil
}

func (a *ChangeEventConsumerAdapter) reject(logger port.LoggerPort, err error) error {
	logger.Error("Malformed change event, message parked", err, nil)
	if a.stats != nil {
		a.stats.RecordMalformed()
	}
	a.metrics.EventProcessed("unknown", "unknown", usecase.OutcomeMalformed)
	return rabbitmq_consumer.Permanent(err)
}

// Start блокируется до отмены ctx или потери соединения
func (a *ChangeEventConsumerAdapter) Start(ctx context.Context) error {
	return a.consumer.StartConsuming(ctx)
}

func (a *ChangeEventConsumerAdapter) Close() error {
	return a.consumer.Close()
}
