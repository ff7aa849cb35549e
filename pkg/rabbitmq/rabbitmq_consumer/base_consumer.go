package rabbitmq_consumer

import (
	"context"
	"fmt"
	"sync"

	"search-service/pkg/rabbitmq/rabbitmq_common"
	"search-service/pkg/rabbitmq/rabbitmq_producer"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ConsumerConfig конфигурация потребителя
type ConsumerConfig struct {
	rabbitmq_common.Config

	// очередь
	QueueName    string
	DeclareQueue bool
	DurableQueue bool
	QueueArgs    amqp.Table

	// обменник, к которому привязывается очередь
	ExchangeNameForBind    string
	DeclareExchangeForBind bool
	ExchangeTypeForBind    string
	DurableExchangeForBind bool
	RoutingKeysForBind     []string // несколько ключей, например "listing.*" и "property.*"

	// QoS; PrefetchCount заодно ограничивает число одновременно работающих обработчиков
	PrefetchCount int

	ConsumerTag string

	// ретраи через отдельный обменник и очередь ожидания с TTL
	EnableRetryMechanism bool
	RetryExchange        string
	RetryQueue           string
	RetryTTL             int // мс
	FinalDLXExchange     string
	FinalDLQ             string
	FinalDLQRoutingKey   string
	MaxRetries           int

	Logger rabbitmq_common.Logger
}

// Validate проверяет согласованность настроек
func (c ConsumerConfig) Validate() error {
	if err := c.Config.Validate(); err != nil {
		return err
	}
	if c.QueueName == "" {
		return fmt.Errorf("queue name is required")
	}
	if c.DeclareExchangeForBind && c.ExchangeTypeForBind == "" {
		return fmt.Errorf("exchange type is required to declare exchange '%s'", c.ExchangeNameForBind)
	}
	if c.EnableRetryMechanism {
		if c.RetryExchange == "" || c.RetryQueue == "" || c.FinalDLXExchange == "" || c.FinalDLQ == "" {
			return fmt.Errorf("retry exchange/queue and final DLX/DLQ are required when retries are enabled")
		}
		if c.RetryTTL <= 0 {
			return fmt.Errorf("retry TTL must be positive")
		}
		if c.MaxRetries < 0 {
			return fmt.Errorf("max retries must not be negative")
		}
	}
	return nil
}

// dlxPublisher то, что нужно потребителю от издателя в финальный DLX
type dlxPublisher interface {
	Publish(ctx context.Context, routingKey string, msg amqp.Publishing) error
	Close() error
}

// baseConsumer держит канал, топологию и издателя в DLX
type baseConsumer struct {
	config     ConsumerConfig
	connection *amqp.Connection
	channel    *amqp.Channel
	finalDLX   dlxPublisher
	wg         sync.WaitGroup

	Logger rabbitmq_common.Logger
}

func newBaseConsumer(cfg ConsumerConfig, connManager *rabbitmq_common.ConnectionManager) (*baseConsumer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("base consumer: invalid config: %w", err)
	}
	if connManager == nil {
		return nil, fmt.Errorf("base consumer: connection manager is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = rabbitmq_common.NewNoopLogger()
	}
	c := &baseConsumer{config: cfg, Logger: logger}

	conn, ch, err := connManager.GetChannel()
	if err != nil {
		return nil, fmt.Errorf("base consumer: failed to get channel: %w", err)
	}
	c.connection = conn
	c.channel = ch

	if err := c.declareTopology(); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("base consumer: setup failed: %w", err)
	}

	if cfg.EnableRetryMechanism {
		pub, err := rabbitmq_producer.NewPublisher(rabbitmq_producer.PublisherConfig{
			Config:       cfg.Config,
			ExchangeName: cfg.FinalDLXExchange,
			Logger:       logger,
		}, connManager)
		if err != nil {
			_ = ch.Close()
			return nil, fmt.Errorf("base consumer: failed to create final DLX publisher: %w", err)
		}
		c.finalDLX = pub
	}

	return c, nil
}

// declareTopology объявляет очередь, привязки и инфраструктуру ретраев
func (c *baseConsumer) declareTopology() error {
	cfg := c.config

	if cfg.PrefetchCount > 0 {
		if err := c.channel.Qos(cfg.PrefetchCount, 0, false); err != nil {
			return fmt.Errorf("failed to set QoS: %w", err)
		}
	}

	if cfg.EnableRetryMechanism {
		// финальный DLX и DLQ для сообщений, которые не удалось обработать
		if err := c.channel.ExchangeDeclare(cfg.FinalDLXExchange, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare final DLX '%s': %w", cfg.FinalDLXExchange, err)
		}
		if _, err := c.channel.QueueDeclare(cfg.FinalDLQ, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare final DLQ '%s': %w", cfg.FinalDLQ, err)
		}
		if err := c.channel.QueueBind(cfg.FinalDLQ, cfg.FinalDLQRoutingKey, cfg.FinalDLXExchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind final DLQ: %w", err)
		}

		if err := c.channel.ExchangeDeclare(cfg.RetryExchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare retry exchange '%s': %w", cfg.RetryExchange, err)
		}
		// очередь ожидания: после TTL сообщение возвращается в основной обменник с исходным ключом
		_, err := c.channel.QueueDeclare(cfg.RetryQueue, true, false, false, false, amqp.Table{
			"x-message-ttl":          int32(cfg.RetryTTL),
			"x-dead-letter-exchange": cfg.ExchangeNameForBind,
		})
		if err != nil {
			return fmt.Errorf("failed to declare retry queue '%s': %w", cfg.RetryQueue, err)
		}
		if err := c.channel.QueueBind(cfg.RetryQueue, "", cfg.RetryExchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind retry queue: %w", err)
		}
	}

	if cfg.DeclareExchangeForBind {
		err := c.channel.ExchangeDeclare(cfg.ExchangeNameForBind, cfg.ExchangeTypeForBind, cfg.DurableExchangeForBind, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("failed to declare exchange '%s': %w", cfg.ExchangeNameForBind, err)
		}
	}

	if cfg.DeclareQueue {
		args := amqp.Table{}
		for k, v := range cfg.QueueArgs {
			args[k] = v
		}
		if cfg.EnableRetryMechanism {
			args["x-dead-letter-exchange"] = cfg.RetryExchange
		}
		if _, err := c.channel.QueueDeclare(cfg.QueueName, cfg.DurableQueue, false, false, false, args); err != nil {
			return fmt.Errorf("failed to declare queue '%s': %w", cfg.QueueName, err)
		}
	}

	if cfg.ExchangeNameForBind != "" {
		for _, key := range cfg.RoutingKeysForBind {
			c.Logger.Debug("Binding queue", "queue", cfg.QueueName, "exchange", cfg.ExchangeNameForBind, "routing_key", key)
			if err := c.channel.QueueBind(cfg.QueueName, key, cfg.ExchangeNameForBind, false, nil); err != nil {
				return fmt.Errorf("failed to bind queue '%s' with key '%s': %w", cfg.QueueName, key, err)
			}
		}
	}

	c.Logger.Debug("Consumer topology ready", "queue", cfg.QueueName)
	return nil
}

// deathCount сколько раз сообщение уже отклонялось из очереди queueName
func deathCount(d amqp.Delivery, queueName string) int64 {
	deaths, ok := d.Headers["x-death"].([]interface{})
	if !ok {
		return 0
	}
	for _, death := range deaths {
		tbl, ok := death.(amqp.Table)
		if !ok {
			continue
		}
		if q, _ := tbl["queue"].(string); q != queueName {
			continue
		}
		switch n := tbl["count"].(type) {
		case int64:
			return n
		case int32:
			return int64(n)
		case int:
			return int64(n)
		}
	}
	return 0
}

// Close ждет обработчики и закрывает канал
func (c *baseConsumer) Close() error {
	c.wg.Wait()

	var firstErr error
	if c.finalDLX != nil {
		if err := c.finalDLX.Close(); err != nil {
			firstErr = err
		}
	}
	if c.channel != nil {
		if err := c.channel.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		c.channel = nil
	}
	c.Logger.Info("Consumer closed", "queue", c.config.QueueName)
	return firstErr
}
